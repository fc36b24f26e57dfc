package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/ReviewGo/internal/domain"
	"github.com/utafrali/ReviewGo/internal/service"
	"github.com/utafrali/ReviewGo/pkg/httputil"
)

// AdHandler handles HTTP requests for ad endpoints.
type AdHandler struct {
	service *service.AdService
	logger  *slog.Logger
}

// NewAdHandler creates a new ad HTTP handler.
func NewAdHandler(svc *service.AdService, logger *slog.Logger) *AdHandler {
	return &AdHandler{
		service: svc,
		logger:  logger,
	}
}

// AdStatusRequest is the JSON request body for moderating an ad.
type AdStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending active rejected expired"`
}

// CreateAd handles POST /api/v1/companies/{id}/ads.
func (h *AdHandler) CreateAd(w http.ResponseWriter, r *http.Request) {
	companyID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req domain.AdInput
	if !decodeRequest(w, r, &req) {
		return
	}

	ad, err := h.service.CreateAd(r.Context(), actorFrom(r), companyID.String(), &req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, ad)
}

// ListAds handles GET /api/v1/companies/{id}/ads.
func (h *AdHandler) ListAds(w http.ResponseWriter, r *http.Request) {
	companyID, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	ads, err := h.service.ListAds(r.Context(), actorFrom(r), companyID.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, ads)
}

// ActiveAds handles GET /api/v1/ads/active?category=.
func (h *AdHandler) ActiveAds(w http.ResponseWriter, r *http.Request) {
	ads, err := h.service.ActiveAds(r.Context(), queryString(r, "category"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, ads)
}

// RecordView handles POST /api/v1/ads/{id}/view.
func (h *AdHandler) RecordView(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.RecordView(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RecordClick handles POST /api/v1/ads/{id}/click.
func (h *AdHandler) RecordClick(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.RecordClick(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetStatus handles PATCH /api/v1/ads/{id}/status.
func (h *AdHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req AdStatusRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	ad, err := h.service.SetStatus(r.Context(), id.String(), domain.AdStatus(req.Status))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, ad)
}
