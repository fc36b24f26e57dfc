package repository

import (
	"context"
	"time"

	"github.com/utafrali/ReviewGo/internal/domain"
)

// ReviewRepository defines persistence operations for reviews and their
// replies, reports and helpful votes.
type ReviewRepository interface {
	// Create inserts a review. A second review by the same user for the same
	// company fails with domain.ErrDuplicateReview.
	Create(ctx context.Context, review *domain.Review) error

	// GetByID retrieves a review with its replies.
	GetByID(ctx context.Context, id string) (*domain.Review, error)

	// GetForUpdate retrieves a review and locks its row until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.Review, error)

	// List returns reviews matching filter, newest first, with the total count.
	List(ctx context.Context, filter domain.ReviewFilter) ([]domain.Review, int, error)

	// UpdateStatus sets the moderation status of a review.
	UpdateStatus(ctx context.Context, id string, status domain.ReviewStatus) error

	// Delete removes a review together with its replies, reports and votes.
	Delete(ctx context.Context, id string) error

	// LockAddress serialises review creation for one address hash until the
	// surrounding transaction ends.
	LockAddress(ctx context.Context, ipHash string) error

	// CountByAddressSince counts reviews created from ipHash since the given time.
	CountByAddressSince(ctx context.Context, ipHash string, since time.Time) (int, error)

	// AddReply inserts a reply.
	AddReply(ctx context.Context, reply *domain.Reply) error

	// AddReport inserts a report and bumps the review's report count. It
	// fails with domain.ErrDuplicateReport if the user already reported it,
	// and returns the new report count otherwise.
	AddReport(ctx context.Context, report *domain.Report) (int, error)

	// ToggleHelpful flips the user's helpful vote and returns whether the
	// user now has a vote and the resulting helpful count.
	ToggleHelpful(ctx context.Context, reviewID, userID string) (bool, int, error)

	// RatingPoints returns rating and creation time of every review of a
	// company created in [from, to].
	RatingPoints(ctx context.Context, companyID string, from, to time.Time) ([]domain.RatingPoint, error)

	// ListByCompany returns every review of a company, newest first, with replies.
	ListByCompany(ctx context.Context, companyID string) ([]domain.Review, error)

	// ListApproved pages through approved reviews ordered by id, starting
	// after the given id.
	ListApproved(ctx context.Context, afterID string, limit int) ([]domain.Review, error)

	// ScrubAddresses clears stored IP addresses of moderated reviews last
	// updated before the given time and returns how many were cleared.
	ScrubAddresses(ctx context.Context, before time.Time) (int64, error)
}

// CompanyRepository defines persistence operations for companies.
type CompanyRepository interface {
	// Create inserts a company. A taken slug fails with ErrAlreadyExists.
	Create(ctx context.Context, company *domain.Company) error

	// GetByID retrieves a company by id.
	GetByID(ctx context.Context, id string) (*domain.Company, error)

	// GetBySlug retrieves a company by slug.
	GetBySlug(ctx context.Context, slug string) (*domain.Company, error)

	// LockForUpdate locks the company row until the surrounding transaction ends.
	LockForUpdate(ctx context.Context, id string) error

	// List returns companies matching filter with the total count.
	List(ctx context.Context, filter domain.CompanyFilter) ([]domain.Company, int, error)

	// Update writes the editable profile fields of a company.
	Update(ctx context.Context, company *domain.Company) error

	// UpdateStatus sets the listing status of a company.
	UpdateStatus(ctx context.Context, id string, status domain.CompanyStatus) error

	// SetVerified sets the verification flag of a company.
	SetVerified(ctx context.Context, id string, verified bool) error

	// RecomputeRating derives average rating and review count from the
	// company's approved reviews, stores them and returns them.
	RecomputeRating(ctx context.Context, id string) (*domain.RatingAggregate, error)
}

// UserRepository defines persistence operations for mirrored users.
type UserRepository interface {
	// Upsert inserts the user or refreshes its email and name.
	Upsert(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by id.
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// AdRepository defines persistence operations for ads.
type AdRepository interface {
	Create(ctx context.Context, ad *domain.Ad) error
	GetByID(ctx context.Context, id string) (*domain.Ad, error)
	ListByCompany(ctx context.Context, companyID string) ([]domain.Ad, error)
	// ListRunning returns active ads whose window contains now.
	ListRunning(ctx context.Context, category *string, now time.Time, limit int) ([]domain.Ad, error)
	UpdateStatus(ctx context.Context, id string, status domain.AdStatus) error
	// IncrementViews and IncrementClicks only count running ads and return
	// ErrNotFound otherwise.
	IncrementViews(ctx context.Context, id string, now time.Time) error
	IncrementClicks(ctx context.Context, id string, now time.Time) error
	// ExpireEnded marks active ads whose end date has passed as expired.
	ExpireEnded(ctx context.Context, now time.Time) (int64, error)
}

// AnalyticsRepository provides platform-wide aggregates.
type AnalyticsRepository interface {
	// AdminDaily returns one row per day in [from, to].
	AdminDaily(ctx context.Context, from, to time.Time) ([]domain.AdminDay, error)
}

// Repositories groups repositories that share one connection or transaction.
type Repositories struct {
	Reviews   ReviewRepository
	Companies CompanyRepository
	Users     UserRepository
	Ads       AdRepository
}

// TxManager runs fn with repositories bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise. fn may be
// called again after a deadlock, so it must only assign state it resets.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
