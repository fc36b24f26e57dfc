package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/ReviewGo/internal/domain"
	"github.com/utafrali/ReviewGo/internal/repository"
)

// AnalyticsService computes company and platform dashboards.
type AnalyticsService struct {
	reviews   repository.ReviewRepository
	companies repository.CompanyRepository
	platform  repository.AnalyticsRepository
	cache     ReviewCache
	logger    *slog.Logger
	now       func() time.Time
}

// NewAnalyticsService creates a new analytics service.
func NewAnalyticsService(
	reviews repository.ReviewRepository,
	companies repository.CompanyRepository,
	platform repository.AnalyticsRepository,
	cache ReviewCache,
	logger *slog.Logger,
) *AnalyticsService {
	return &AnalyticsService{
		reviews:   reviews,
		companies: companies,
		platform:  platform,
		cache:     cache,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CompanyAnalytics summarises reviews of a company created within the
// window. Results are cached per company and window.
func (s *AnalyticsService) CompanyAnalytics(ctx context.Context, companyID string, tr domain.TimeRange) (*domain.Analytics, error) {
	var a domain.Analytics
	hit, err := s.cache.GetAnalytics(ctx, companyID, tr, &a)
	if err != nil {
		s.logger.WarnContext(ctx, "analytics cache read failed",
			slog.String("company_id", companyID),
			slog.String("error", err.Error()),
		)
	}
	if hit {
		return &a, nil
	}

	if _, err := s.companies.GetByID(ctx, companyID); err != nil {
		return nil, fmt.Errorf("company analytics: %w", err)
	}

	to := s.now()
	from := tr.Since(to)
	points, err := s.reviews.RatingPoints(ctx, companyID, from, to)
	if err != nil {
		return nil, fmt.Errorf("company analytics: %w", err)
	}
	result := domain.BuildAnalytics(companyID, tr, from, to, points)

	if err := s.cache.SetAnalytics(ctx, companyID, tr, result); err != nil {
		s.logger.WarnContext(ctx, "analytics cache write failed",
			slog.String("company_id", companyID),
			slog.String("error", err.Error()),
		)
	}
	return result, nil
}

// AdminAnalytics returns platform growth per day between the YYYY-MM-DD
// bounds, inclusive.
func (s *AnalyticsService) AdminAnalytics(ctx context.Context, fromStr, toStr string) ([]domain.AdminDay, error) {
	from, to, err := domain.ParseDateRange(fromStr, toStr, s.now())
	if err != nil {
		return nil, err
	}
	days, err := s.platform.AdminDaily(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("admin analytics: %w", err)
	}
	if days == nil {
		days = []domain.AdminDay{}
	}
	return days, nil
}
