package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/ReviewGo/internal/repository"
)

// MinIPRetention is the shortest allowed retention of raw IP addresses.
const MinIPRetention = 24 * time.Hour

// RetentionService clears personal data that moderation no longer needs.
type RetentionService struct {
	reviews   repository.ReviewRepository
	retention time.Duration
	logger    *slog.Logger
}

// NewRetentionService creates a retention service keeping raw addresses
// for retention, raised to MinIPRetention if shorter.
func NewRetentionService(reviews repository.ReviewRepository, retention time.Duration, logger *slog.Logger) *RetentionService {
	if retention < MinIPRetention {
		retention = MinIPRetention
	}
	return &RetentionService{reviews: reviews, retention: retention, logger: logger}
}

// ScrubIPAddresses clears raw addresses of moderated reviews not updated
// within the retention period.
func (s *RetentionService) ScrubIPAddresses(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.reviews.ScrubAddresses(ctx, now.Add(-s.retention))
	if err != nil {
		return 0, fmt.Errorf("scrub ip addresses: %w", err)
	}
	s.logger.InfoContext(ctx, "ip addresses scrubbed",
		slog.Int64("reviews", n),
		slog.Duration("retention", s.retention),
	)
	return n, nil
}
