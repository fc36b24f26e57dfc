package service

import (
	"context"
	"log/slog"

	"github.com/utafrali/ReviewGo/internal/domain"
	"github.com/utafrali/ReviewGo/internal/notify"
	"github.com/utafrali/ReviewGo/internal/search"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID string
	Email  string
	Name   string
	Admin  bool
}

// User returns the mirror record for the actor.
func (a Actor) User() *domain.User {
	return &domain.User{ID: a.UserID, Email: a.Email, Name: a.Name}
}

// ReviewCache is the read-through cache for listings and analytics.
// *cache.ReviewCache satisfies it.
type ReviewCache interface {
	GetList(ctx context.Context, f domain.ReviewFilter, dst any) (bool, error)
	SetList(ctx context.Context, f domain.ReviewFilter, v any) error
	GetAnalytics(ctx context.Context, companyID string, tr domain.TimeRange, dst any) (bool, error)
	SetAnalytics(ctx context.Context, companyID string, tr domain.TimeRange, v any) error
	InvalidateCompany(ctx context.Context, companyID string) error
}

// Notifier accepts lifecycle events for asynchronous delivery.
// *notify.Dispatcher satisfies it.
type Notifier interface {
	Publish(ctx context.Context, event notify.Event) bool
}

// effects runs the best-effort work that follows a committed write. None of
// it can fail the operation; failures are logged.
type effects struct {
	cache    ReviewCache
	search   search.Engine
	notifier Notifier
	logger   *slog.Logger
}

func (e *effects) invalidate(ctx context.Context, companyID string) {
	if err := e.cache.InvalidateCompany(ctx, companyID); err != nil {
		e.logger.WarnContext(ctx, "failed to invalidate review cache",
			slog.String("company_id", companyID),
			slog.String("error", err.Error()),
		)
	}
}

// syncIndex keeps the search index equal to the approved review set.
func (e *effects) syncIndex(ctx context.Context, rv *domain.Review) {
	var err error
	if rv.Status == domain.ReviewApproved {
		doc := search.NewDocument(rv)
		err = e.search.Index(ctx, &doc)
	} else {
		err = e.search.Delete(ctx, rv.ID)
	}
	if err != nil {
		e.logger.WarnContext(ctx, "failed to sync search index",
			slog.String("review_id", rv.ID),
			slog.String("status", string(rv.Status)),
			slog.String("error", err.Error()),
		)
	}
}

func (e *effects) unindex(ctx context.Context, reviewID string) {
	if err := e.search.Delete(ctx, reviewID); err != nil {
		e.logger.WarnContext(ctx, "failed to remove review from search index",
			slog.String("review_id", reviewID),
			slog.String("error", err.Error()),
		)
	}
}

func (e *effects) notify(ctx context.Context, event notify.Event) {
	e.notifier.Publish(ctx, event)
}
