package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/ReviewGo/internal/service"
	"github.com/utafrali/ReviewGo/pkg/httputil"
)

// AdminHandler serves platform-wide administration endpoints.
type AdminHandler struct {
	analytics *service.AnalyticsService
	logger    *slog.Logger
}

// NewAdminHandler creates a new admin HTTP handler.
func NewAdminHandler(analytics *service.AnalyticsService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		analytics: analytics,
		logger:    logger,
	}
}

// Analytics handles GET /api/v1/admin/analytics?from=YYYY-MM-DD&to=YYYY-MM-DD.
func (h *AdminHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	days, err := h.analytics.AdminAnalytics(r.Context(), r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, days)
}
