package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/ReviewGo/internal/service"
	"github.com/utafrali/ReviewGo/pkg/health"
	"github.com/utafrali/ReviewGo/pkg/middleware"
)

// Services are the application services exposed over HTTP.
type Services struct {
	Reviews    *service.ReviewService
	Moderation *service.ModerationService
	Companies  *service.CompanyService
	Ads        *service.AdService
	Analytics  *service.AnalyticsService
	Export     *service.ExportService
}

// RouterConfig holds the cross-cutting settings of the router.
type RouterConfig struct {
	ServiceName string
	// Validate verifies bearer tokens.
	Validate middleware.TokenValidator
	// CreateLimiter throttles review submissions per client IP. Nil disables it.
	CreateLimiter *middleware.RateLimiter
	CORS          middleware.CORSConfig
	// PprofCIDRs enables /debug/pprof for the listed networks when non-empty.
	PprofCIDRs []string
	// TrustedProxies are the networks allowed to set X-Forwarded-For.
	TrustedProxies []string
}

// NewRouter creates a chi router with all API routes registered.
func NewRouter(svc Services, cfg RouterConfig, healthHandler *health.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP(cfg.TrustedProxies, logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.CORS(cfg.CORS))

	// Infrastructure endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())
	if len(cfg.PprofCIDRs) > 0 {
		middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)
	}

	auth := middleware.Auth(cfg.Validate)
	adminOnly := middleware.RequireRole(middleware.RoleAdmin)
	cacheable := middleware.CacheControl(time.Minute)

	reviewHandler := NewReviewHandler(svc.Reviews, svc.Moderation, svc.Analytics, svc.Export, logger)
	companyHandler := NewCompanyHandler(svc.Companies, logger)
	adHandler := NewAdHandler(svc.Ads, logger)
	adminHandler := NewAdminHandler(svc.Analytics, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Route("/reviews", func(r chi.Router) {
			r.With(middleware.OptionalAuth(cfg.Validate)).Get("/", reviewHandler.ListReviews)
			r.Get("/analytics", reviewHandler.Analytics)
			r.Get("/search", reviewHandler.Search)
			r.Get("/{id}", reviewHandler.GetReview)

			r.Group(func(r chi.Router) {
				r.Use(auth, middleware.UserLogger)
				if cfg.CreateLimiter != nil {
					r.With(cfg.CreateLimiter.Middleware).Post("/", reviewHandler.CreateReview)
				} else {
					r.Post("/", reviewHandler.CreateReview)
				}
				r.Get("/export", reviewHandler.Export)
				r.Delete("/{id}", reviewHandler.DeleteReview)
				r.Post("/{id}/reply", reviewHandler.AddReply)
				r.Post("/{id}/report", reviewHandler.ReportReview)
				r.Post("/{id}/vote", reviewHandler.VoteHelpful)
				r.With(adminOnly).Patch("/{id}/status", reviewHandler.UpdateStatus)
			})
		})

		r.Route("/companies", func(r chi.Router) {
			r.With(cacheable).Get("/", companyHandler.ListCompanies)
			r.With(cacheable).Get("/{id}", companyHandler.GetCompany)

			r.Group(func(r chi.Router) {
				r.Use(auth, middleware.UserLogger)
				r.Post("/", companyHandler.CreateCompany)
				r.Patch("/{id}", companyHandler.UpdateCompany)
				r.Post("/{id}/ads", adHandler.CreateAd)
				r.Get("/{id}/ads", adHandler.ListAds)

				r.Group(func(r chi.Router) {
					r.Use(adminOnly)
					r.Patch("/{id}/status", companyHandler.SetStatus)
					r.Patch("/{id}/verify", companyHandler.Verify)
					r.Post("/{id}/recompute", companyHandler.RecomputeRating)
				})
			})
		})

		r.Route("/ads", func(r chi.Router) {
			r.With(cacheable).Get("/active", adHandler.ActiveAds)
			r.Post("/{id}/view", adHandler.RecordView)
			r.Post("/{id}/click", adHandler.RecordClick)
			r.With(auth, adminOnly).Patch("/{id}/status", adHandler.SetStatus)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth, middleware.UserLogger, adminOnly)
			r.Get("/analytics", adminHandler.Analytics)
		})
	})

	return r
}
