package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/ReviewGo/internal/domain"
	"github.com/utafrali/ReviewGo/internal/repository"
	apperrors "github.com/utafrali/ReviewGo/pkg/errors"
)

// activeAdsLimit caps the public active-ads listing.
const activeAdsLimit = 20

// AdService implements ad booking, moderation and counters.
type AdService struct {
	ads       repository.AdRepository
	companies repository.CompanyRepository
	logger    *slog.Logger
	now       func() time.Time
}

// NewAdService creates a new ad service.
func NewAdService(ads repository.AdRepository, companies repository.CompanyRepository, logger *slog.Logger) *AdService {
	return &AdService{
		ads:       ads,
		companies: companies,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateAd books a pending ad for a company owned by the actor.
func (s *AdService) CreateAd(ctx context.Context, actor Actor, companyID string, input *domain.AdInput) (*domain.Ad, error) {
	if !input.EndDate.After(input.StartDate) {
		return nil, apperrors.Validation("end_date must be after start_date")
	}

	c, err := s.companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("create ad: %w", err)
	}
	if !c.IsOwnedBy(actor.UserID) {
		return nil, apperrors.Forbidden("only the company owner can book ads")
	}

	now := s.now()
	ad := &domain.Ad{
		ID:        uuid.New().String(),
		CompanyID: c.ID,
		Title:     input.Title,
		Content:   input.Content,
		ImageURL:  input.ImageURL,
		TargetURL: input.TargetURL,
		Category:  input.Category,
		Status:    domain.AdPending,
		StartDate: input.StartDate.UTC(),
		EndDate:   input.EndDate.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.ads.Create(ctx, ad); err != nil {
		return nil, fmt.Errorf("create ad: %w", err)
	}

	s.logger.InfoContext(ctx, "ad created",
		slog.String("ad_id", ad.ID),
		slog.String("company_id", ad.CompanyID),
	)
	return ad, nil
}

// ListAds returns every ad of a company with its click-through rate.
func (s *AdService) ListAds(ctx context.Context, actor Actor, companyID string) ([]domain.Ad, error) {
	if _, err := requireCompanyAccess(ctx, s.companies, actor, companyID); err != nil {
		return nil, fmt.Errorf("list ads: %w", err)
	}
	ads, err := s.ads.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list ads: %w", err)
	}
	if ads == nil {
		ads = []domain.Ad{}
	}
	for i := range ads {
		ads[i].ComputeCTR()
	}
	return ads, nil
}

// ActiveAds returns ads currently running, optionally in one category.
func (s *AdService) ActiveAds(ctx context.Context, category *string) ([]domain.Ad, error) {
	ads, err := s.ads.ListRunning(ctx, category, s.now(), activeAdsLimit)
	if err != nil {
		return nil, fmt.Errorf("list active ads: %w", err)
	}
	if ads == nil {
		ads = []domain.Ad{}
	}
	return ads, nil
}

// SetStatus moves an ad through its lifecycle on behalf of an admin.
func (s *AdService) SetStatus(ctx context.Context, id string, status domain.AdStatus) (*domain.Ad, error) {
	ad, err := s.ads.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("set ad status: %w", err)
	}
	if ad.Status == status {
		return ad, nil
	}
	if !ad.Status.CanTransitionTo(status) {
		return nil, domain.ErrInvalidTransition("ad", ad.Status, status)
	}
	if err := s.ads.UpdateStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("set ad status: %w", err)
	}

	s.logger.InfoContext(ctx, "ad status changed",
		slog.String("ad_id", id),
		slog.String("from", string(ad.Status)),
		slog.String("to", string(status)),
	)
	ad.Status = status
	ad.UpdatedAt = s.now()
	return ad, nil
}

// RecordView counts an impression of a running ad.
func (s *AdService) RecordView(ctx context.Context, id string) error {
	if err := s.ads.IncrementViews(ctx, id, s.now()); err != nil {
		return fmt.Errorf("record ad view: %w", err)
	}
	return nil
}

// RecordClick counts a click on a running ad.
func (s *AdService) RecordClick(ctx context.Context, id string) error {
	if err := s.ads.IncrementClicks(ctx, id, s.now()); err != nil {
		return fmt.Errorf("record ad click: %w", err)
	}
	return nil
}

// ExpireAds marks active ads past their end date as expired.
func (s *AdService) ExpireAds(ctx context.Context) (int64, error) {
	n, err := s.ads.ExpireEnded(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("expire ads: %w", err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "ads expired", slog.Int64("count", n))
	}
	return n, nil
}
