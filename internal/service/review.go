package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/utafrali/ReviewGo/internal/domain"
	"github.com/utafrali/ReviewGo/internal/notify"
	"github.com/utafrali/ReviewGo/internal/repository"
	"github.com/utafrali/ReviewGo/internal/search"
	apperrors "github.com/utafrali/ReviewGo/pkg/errors"
	"github.com/utafrali/ReviewGo/pkg/pagination"
	"github.com/utafrali/ReviewGo/pkg/tracing"
)

const tracerName = "github.com/utafrali/ReviewGo/internal/service"

// reindexBatch is the page size used when rebuilding the search index.
const reindexBatch = 500

// CreateReviewInput holds the parameters for submitting a review.
type CreateReviewInput struct {
	CompanyID string
	Rating    int
	Text      string
	IPAddress string
}

// ReviewPage is one page of a review listing.
type ReviewPage struct {
	Reviews []domain.Review `json:"reviews"`
	Total   int             `json:"total"`
	Page    int             `json:"page"`
	PerPage int             `json:"per_page"`
}

// ReviewDeps are the collaborators of ReviewService and ModerationService.
type ReviewDeps struct {
	Repos    repository.Repositories
	Tx       repository.TxManager
	Cache    ReviewCache
	Search   search.Engine
	Notifier Notifier
	Hasher   *AddressHasher
	Policy   domain.ReviewPolicy
	Logger   *slog.Logger
}

func (d ReviewDeps) effects() *effects {
	return &effects{cache: d.Cache, search: d.Search, notifier: d.Notifier, logger: d.Logger}
}

// ReviewService implements review submission, listing, deletion and search.
type ReviewService struct {
	repos  repository.Repositories
	tx     repository.TxManager
	cache  ReviewCache
	search search.Engine
	hasher *AddressHasher
	policy domain.ReviewPolicy
	fx     *effects
	logger *slog.Logger
	now    func() time.Time
}

// NewReviewService creates a new review service.
func NewReviewService(deps ReviewDeps) *ReviewService {
	return &ReviewService{
		repos:  deps.Repos,
		tx:     deps.Tx,
		cache:  deps.Cache,
		search: deps.Search,
		hasher: deps.Hasher,
		policy: deps.Policy,
		fx:     deps.effects(),
		logger: deps.Logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateReview stores a pending review. The per-address limit is checked
// under an advisory lock in the same transaction as the insert, so
// concurrent submissions from one address cannot overshoot it.
func (s *ReviewService) CreateReview(ctx context.Context, actor Actor, input *CreateReviewInput) (*domain.Review, error) {
	ctx, span := tracing.Start(ctx, tracerName, "ReviewService.CreateReview",
		attribute.String("review.company_id", input.CompanyID),
	)
	defer span.End()

	if err := s.policy.ValidateReview(input.Rating, input.Text); err != nil {
		reviewRejectionsTotal.WithLabelValues("validation").Inc()
		return nil, err
	}
	if input.CompanyID == "" {
		return nil, apperrors.Validation("company_id is required")
	}

	now := s.now()
	rv := &domain.Review{
		ID:        uuid.New().String(),
		CompanyID: input.CompanyID,
		UserID:    actor.UserID,
		Rating:    input.Rating,
		Text:      input.Text,
		Status:    domain.ReviewPending,
		Replies:   []domain.Reply{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if input.IPAddress != "" {
		ip := input.IPAddress
		rv.IPAddress = &ip
		rv.IPHash = s.hasher.Hash(ip)
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		// Lock the company before the insert; the foreign key check takes
		// KEY SHARE on the same row.
		if err := repos.Companies.LockForUpdate(ctx, rv.CompanyID); err != nil {
			return err
		}
		company, err := repos.Companies.GetByID(ctx, rv.CompanyID)
		if err != nil {
			return err
		}
		if company.Status == domain.CompanySuspended {
			return apperrors.Forbidden("company is not accepting reviews")
		}

		if err := repos.Users.Upsert(ctx, actor.User()); err != nil {
			return err
		}

		if rv.IPHash != "" {
			if err := repos.Reviews.LockAddress(ctx, rv.IPHash); err != nil {
				return err
			}
			n, err := repos.Reviews.CountByAddressSince(ctx, rv.IPHash, now.Add(-s.policy.IPWindow))
			if err != nil {
				return err
			}
			if n >= s.policy.MaxPerIP {
				return domain.ErrTooManyReviews(s.policy.MaxPerIP)
			}
		}

		if err := repos.Reviews.Create(ctx, rv); err != nil {
			return err
		}
		_, err = repos.Companies.RecomputeRating(ctx, rv.CompanyID)
		return err
	})
	if err != nil {
		reviewRejectionsTotal.WithLabelValues(rejectionReason(err)).Inc()
		return nil, tracing.RecordError(span, fmt.Errorf("create review: %w", err))
	}

	reviewsCreatedTotal.Inc()
	s.fx.invalidate(ctx, rv.CompanyID)
	s.fx.notify(ctx, notify.NewEvent(notify.EventNewReview, rv, actor.UserID))

	s.logger.InfoContext(ctx, "review created",
		slog.String("review_id", rv.ID),
		slog.String("company_id", rv.CompanyID),
		slog.String("user_id", rv.UserID),
		slog.Int("rating", rv.Rating),
	)
	return rv, nil
}

func rejectionReason(err error) string {
	switch apperrors.HTTPStatus(err) {
	case http.StatusConflict:
		return "duplicate"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusForbidden:
		return "forbidden"
	default:
		return "error"
	}
}

// ListReviews returns a page of reviews, newest first. Pages are cached
// under a key derived from the full filter.
func (s *ReviewService) ListReviews(ctx context.Context, filter domain.ReviewFilter) (*ReviewPage, error) {
	p := pagination.Params{Page: filter.Page, PerPage: filter.PerPage}.Normalize()
	filter.Page, filter.PerPage = p.Page, p.PerPage

	var page ReviewPage
	hit, err := s.cache.GetList(ctx, filter, &page)
	if err != nil {
		s.logger.WarnContext(ctx, "review list cache read failed", slog.String("error", err.Error()))
	}
	if hit {
		return &page, nil
	}

	reviews, total, err := s.repos.Reviews.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	if reviews == nil {
		reviews = []domain.Review{}
	}
	page = ReviewPage{Reviews: reviews, Total: total, Page: filter.Page, PerPage: filter.PerPage}

	if err := s.cache.SetList(ctx, filter, &page); err != nil {
		s.logger.WarnContext(ctx, "review list cache write failed", slog.String("error", err.Error()))
	}
	return &page, nil
}

// GetReview retrieves a review with its replies.
func (s *ReviewService) GetReview(ctx context.Context, id string) (*domain.Review, error) {
	rv, err := s.repos.Reviews.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get review: %w", err)
	}
	return rv, nil
}

// DeleteReview removes a review. Only its author or an admin may do so.
func (s *ReviewService) DeleteReview(ctx context.Context, actor Actor, id string) error {
	var companyID string
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		rv, err := repos.Reviews.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !actor.Admin && rv.UserID != actor.UserID {
			return apperrors.Forbidden("only the author or an admin can delete this review")
		}
		companyID = rv.CompanyID

		if err := repos.Companies.LockForUpdate(ctx, rv.CompanyID); err != nil {
			return err
		}
		if err := repos.Reviews.Delete(ctx, id); err != nil {
			return err
		}
		_, err = repos.Companies.RecomputeRating(ctx, rv.CompanyID)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}

	s.fx.invalidate(ctx, companyID)
	s.fx.unindex(ctx, id)

	s.logger.InfoContext(ctx, "review deleted",
		slog.String("review_id", id),
		slog.String("company_id", companyID),
		slog.String("deleted_by", actor.UserID),
	)
	return nil
}

// SearchReviews runs a full-text query over approved reviews.
func (s *ReviewService) SearchReviews(ctx context.Context, q *search.Query) (*search.Result, error) {
	q.Normalize()
	res, err := s.search.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search reviews: %w", err)
	}
	return res, nil
}

// Reindex loads every approved review into the search index and returns
// how many were indexed.
func (s *ReviewService) Reindex(ctx context.Context) (int, error) {
	total := 0
	after := ""
	for {
		batch, err := s.repos.Reviews.ListApproved(ctx, after, reindexBatch)
		if err != nil {
			return total, fmt.Errorf("reindex: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		docs := make([]search.Document, 0, len(batch))
		for i := range batch {
			docs = append(docs, search.NewDocument(&batch[i]))
		}
		if err := s.search.BulkIndex(ctx, docs); err != nil {
			return total, fmt.Errorf("reindex: %w", err)
		}

		total += len(batch)
		after = batch[len(batch)-1].ID
		if len(batch) < reindexBatch {
			break
		}
	}

	s.logger.InfoContext(ctx, "search index rebuilt", slog.Int("reviews", total))
	return total, nil
}
