package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/ReviewGo/internal/domain"
	"github.com/utafrali/ReviewGo/internal/search"
	"github.com/utafrali/ReviewGo/internal/service"
	apperrors "github.com/utafrali/ReviewGo/pkg/errors"
	"github.com/utafrali/ReviewGo/pkg/httputil"
	"github.com/utafrali/ReviewGo/pkg/middleware"
	"github.com/utafrali/ReviewGo/pkg/pagination"
)

// ReviewHandler handles HTTP requests for review endpoints.
type ReviewHandler struct {
	reviews    *service.ReviewService
	moderation *service.ModerationService
	analytics  *service.AnalyticsService
	export     *service.ExportService
	logger     *slog.Logger
}

// NewReviewHandler creates a new review HTTP handler.
func NewReviewHandler(
	reviews *service.ReviewService,
	moderation *service.ModerationService,
	analytics *service.AnalyticsService,
	export *service.ExportService,
	logger *slog.Logger,
) *ReviewHandler {
	return &ReviewHandler{
		reviews:    reviews,
		moderation: moderation,
		analytics:  analytics,
		export:     export,
		logger:     logger,
	}
}

// --- Request DTOs ---

// CreateReviewRequest is the JSON request body for submitting a review.
// Text length is checked against the configured review policy.
type CreateReviewRequest struct {
	CompanyID string `json:"company_id" validate:"required,uuid"`
	Rating    int    `json:"rating" validate:"gte=1,lte=5"`
	Text      string `json:"text" validate:"required"`
}

// UpdateStatusRequest is the JSON request body for moderating a review.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending approved rejected"`
}

// ReplyRequest is the JSON request body for a company reply.
type ReplyRequest struct {
	Text string `json:"text" validate:"required,notblank,max=1000"`
}

// ReportRequest is the JSON request body for reporting a review.
type ReportRequest struct {
	Reason string `json:"reason" validate:"required,notblank,max=500"`
}

// --- Handlers ---

// CreateReview handles POST /api/v1/reviews.
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	var req CreateReviewRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	review, err := h.reviews.CreateReview(r.Context(), actorFrom(r), &service.CreateReviewInput{
		CompanyID: req.CompanyID,
		Rating:    req.Rating,
		Text:      req.Text,
		IPAddress: middleware.ClientIP(r),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, review)
}

// ListReviews handles GET /api/v1/reviews.
func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	filter, err := reviewFilterFromRequest(r)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if err := restrictToPublished(r, &filter); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	page, err := h.reviews.ListReviews(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(page.Reviews, page.Total, page.Page, page.PerPage))
}

func reviewFilterFromRequest(r *http.Request) (domain.ReviewFilter, error) {
	p := pagination.FromRequest(r)
	filter := domain.ReviewFilter{Page: p.Page, PerPage: p.PerPage}

	if id := queryString(r, "company_id"); id != nil {
		if !isUUID(*id) {
			return filter, apperrors.Validation("company_id must be a valid UUID")
		}
		filter.CompanyID = id
	}
	if s := queryString(r, "status"); s != nil {
		status, err := domain.ParseReviewStatus(*s)
		if err != nil {
			return filter, err
		}
		filter.Status = &status
	}
	rating, err := queryInt(r, "rating")
	if err != nil {
		return filter, err
	}
	if rating != nil && (*rating < 1 || *rating > 5) {
		return filter, apperrors.Validation("rating must be between 1 and 5")
	}
	filter.Rating = rating

	if filter.Verified, err = queryBool(r, "verified"); err != nil {
		return filter, err
	}
	return filter, nil
}

// restrictToPublished limits non-admin listings to approved reviews.
func restrictToPublished(r *http.Request, filter *domain.ReviewFilter) error {
	if middleware.ClaimsFromContext(r.Context()).IsAdmin() {
		return nil
	}
	if filter.Status != nil && *filter.Status != domain.ReviewApproved {
		return apperrors.Forbidden("only admins can list " + string(*filter.Status) + " reviews")
	}
	approved := domain.ReviewApproved
	filter.Status = &approved
	return nil
}

// GetReview handles GET /api/v1/reviews/{id}.
func (h *ReviewHandler) GetReview(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	review, err := h.reviews.GetReview(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, review)
}

// DeleteReview handles DELETE /api/v1/reviews/{id}.
func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.reviews.DeleteReview(r.Context(), actorFrom(r), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateStatus handles PATCH /api/v1/reviews/{id}/status.
func (h *ReviewHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	review, err := h.moderation.UpdateStatus(r.Context(), actorFrom(r), id.String(), domain.ReviewStatus(req.Status))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, review)
}

// AddReply handles POST /api/v1/reviews/{id}/reply.
func (h *ReviewHandler) AddReply(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req ReplyRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	reply, err := h.moderation.AddReply(r.Context(), actorFrom(r), id.String(), req.Text)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, reply)
}

// ReportReview handles POST /api/v1/reviews/{id}/report.
func (h *ReviewHandler) ReportReview(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req ReportRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	result, err := h.moderation.ReportReview(r.Context(), actorFrom(r), id.String(), req.Reason)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, result)
}

// VoteHelpful handles POST /api/v1/reviews/{id}/vote.
func (h *ReviewHandler) VoteHelpful(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	result, err := h.moderation.VoteHelpful(r.Context(), actorFrom(r), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, result)
}

// Analytics handles GET /api/v1/reviews/analytics?company_id=&range=.
func (h *ReviewHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	companyID, ok := requireCompanyID(w, r)
	if !ok {
		return
	}

	tr, err := domain.ParseTimeRange(r.URL.Query().Get("range"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	analytics, err := h.analytics.CompanyAnalytics(r.Context(), companyID, tr)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, analytics)
}

// Export handles GET /api/v1/reviews/export?company_id=&format=.
func (h *ReviewHandler) Export(w http.ResponseWriter, r *http.Request) {
	companyID, ok := requireCompanyID(w, r)
	if !ok {
		return
	}

	format, err := service.ParseExportFormat(r.URL.Query().Get("format"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	export, err := h.export.ExportReviews(r.Context(), actorFrom(r), companyID, format)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteAttachment(w, export.ContentType, export.Filename, export.Body)
}

// Search handles GET /api/v1/reviews/search?q=&company_id=&min_rating=.
func (h *ReviewHandler) Search(w http.ResponseWriter, r *http.Request) {
	p := pagination.FromRequest(r)
	q := &search.Query{
		Text:    r.URL.Query().Get("q"),
		Page:    p.Page,
		PerPage: p.PerPage,
	}
	if id := queryString(r, "company_id"); id != nil {
		if !isUUID(*id) {
			httputil.WriteError(w, r, apperrors.Validation("company_id must be a valid UUID"), h.logger)
			return
		}
		q.CompanyID = id
	}
	minRating, err := queryInt(r, "min_rating")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	q.MinRating = minRating

	result, err := h.reviews.SearchReviews(r.Context(), q)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(result.Reviews, result.Total, result.Page, result.PerPage))
}

// requireCompanyID reads the mandatory company_id query parameter.
func requireCompanyID(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := r.URL.Query().Get("company_id")
	if raw == "" {
		httputil.WriteError(w, r, apperrors.Validation("company_id is required"), nil)
		return "", false
	}
	id, ok := httputil.ParseUUID(w, raw)
	if !ok {
		return "", false
	}
	return id.String(), true
}
