package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/ReviewGo/internal/domain"
	"github.com/utafrali/ReviewGo/internal/service"
	"github.com/utafrali/ReviewGo/pkg/httputil"
	"github.com/utafrali/ReviewGo/pkg/pagination"
)

// CompanyHandler handles HTTP requests for company endpoints.
type CompanyHandler struct {
	service *service.CompanyService
	logger  *slog.Logger
}

// NewCompanyHandler creates a new company HTTP handler.
func NewCompanyHandler(svc *service.CompanyService, logger *slog.Logger) *CompanyHandler {
	return &CompanyHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CompanyStatusRequest is the JSON request body for changing a company's
// listing status.
type CompanyStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending active suspended"`
}

// VerifyRequest is the JSON request body for setting the verified flag.
type VerifyRequest struct {
	Verified *bool `json:"verified" validate:"required"`
}

// --- Handlers ---

// CreateCompany handles POST /api/v1/companies.
func (h *CompanyHandler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	var req domain.CompanyInput
	if !decodeRequest(w, r, &req) {
		return
	}

	company, err := h.service.CreateCompany(r.Context(), actorFrom(r), &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, company)
}

// ListCompanies handles GET /api/v1/companies.
func (h *CompanyHandler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	p := pagination.FromRequest(r)
	filter := domain.CompanyFilter{
		Category: queryString(r, "category"),
		Query:    queryString(r, "q"),
		Page:     p.Page,
		PerPage:  p.PerPage,
	}
	if s := queryString(r, "status"); s != nil {
		status, err := domain.ParseCompanyStatus(*s)
		if err != nil {
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		filter.Status = &status
	}
	verified, err := queryBool(r, "verified")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	filter.Verified = verified

	page, err := h.service.ListCompanies(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(page.Companies, page.Total, page.Page, page.PerPage))
}

// GetCompany handles GET /api/v1/companies/{id}. The parameter may be a
// UUID or a slug.
func (h *CompanyHandler) GetCompany(w http.ResponseWriter, r *http.Request) {
	company, err := h.service.GetCompany(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, company)
}

// UpdateCompany handles PATCH /api/v1/companies/{id}.
func (h *CompanyHandler) UpdateCompany(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req domain.CompanyUpdate
	if !decodeRequest(w, r, &req) {
		return
	}

	company, err := h.service.UpdateCompany(r.Context(), actorFrom(r), id.String(), &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, company)
}

// SetStatus handles PATCH /api/v1/companies/{id}/status.
func (h *CompanyHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req CompanyStatusRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	company, err := h.service.SetStatus(r.Context(), id.String(), domain.CompanyStatus(req.Status))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, company)
}

// Verify handles PATCH /api/v1/companies/{id}/verify.
func (h *CompanyHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req VerifyRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	company, err := h.service.Verify(r.Context(), id.String(), *req.Verified)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, company)
}

// RecomputeRating handles POST /api/v1/companies/{id}/recompute.
func (h *CompanyHandler) RecomputeRating(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	agg, err := h.service.RecomputeRating(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, agg)
}
