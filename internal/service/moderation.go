package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/utafrali/ReviewGo/internal/domain"
	"github.com/utafrali/ReviewGo/internal/notify"
	"github.com/utafrali/ReviewGo/internal/repository"
	apperrors "github.com/utafrali/ReviewGo/pkg/errors"
	"github.com/utafrali/ReviewGo/pkg/tracing"
)

const (
	maxReplyLength  = 1000
	maxReasonLength = 500
)

// ReportResult is the state of a review after a report.
type ReportResult struct {
	ReviewID    string              `json:"review_id"`
	ReportCount int                 `json:"report_count"`
	Status      domain.ReviewStatus `json:"status"`
	Demoted     bool                `json:"demoted"`
}

// VoteResult is the caller's helpful vote after a toggle.
type VoteResult struct {
	ReviewID     string `json:"review_id"`
	Voted        bool   `json:"voted"`
	HelpfulCount int    `json:"helpful_count"`
}

// ModerationService implements status changes, replies, reports and
// helpful votes.
type ModerationService struct {
	repos  repository.Repositories
	tx     repository.TxManager
	policy domain.ReviewPolicy
	fx     *effects
	logger *slog.Logger
	now    func() time.Time
}

// NewModerationService creates a new moderation service.
func NewModerationService(deps ReviewDeps) *ModerationService {
	return &ModerationService{
		repos:  deps.Repos,
		tx:     deps.Tx,
		policy: deps.Policy,
		fx:     deps.effects(),
		logger: deps.Logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// UpdateStatus moves a review to status on behalf of an admin. Setting the
// current status is a no-op. The company aggregate is recomputed in the
// same transaction whenever the approved set changes.
func (s *ModerationService) UpdateStatus(ctx context.Context, actor Actor, id string, status domain.ReviewStatus) (*domain.Review, error) {
	if !actor.Admin {
		return nil, apperrors.Forbidden("only admins can moderate reviews")
	}

	ctx, span := tracing.Start(ctx, tracerName, "ModerationService.UpdateStatus",
		attribute.String("review.id", id),
		attribute.String("review.status", string(status)),
	)
	defer span.End()

	var (
		rv   *domain.Review
		from domain.ReviewStatus
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		rv, err = repos.Reviews.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		from = rv.Status
		if from == status {
			return nil
		}
		if !from.CanTransitionTo(status) {
			return domain.ErrInvalidTransition("review", from, status)
		}
		return s.applyStatus(ctx, repos, rv, status)
	})
	if err != nil {
		return nil, tracing.RecordError(span, fmt.Errorf("update review status: %w", err))
	}
	if from == status {
		return rv, nil
	}

	statusTransitionsTotal.WithLabelValues(string(from), string(status), "admin").Inc()
	s.afterStatusChange(ctx, rv)
	if typ, ok := notify.StatusEvent(status); ok {
		s.fx.notify(ctx, notify.NewEvent(typ, rv, actor.UserID))
	}

	s.logger.InfoContext(ctx, "review status changed",
		slog.String("review_id", rv.ID),
		slog.String("from", string(from)),
		slog.String("to", string(status)),
		slog.String("moderator_id", actor.UserID),
	)
	return rv, nil
}

// applyStatus writes the new status and, if the approved set changed,
// recomputes the company aggregate under the company row lock.
func (s *ModerationService) applyStatus(ctx context.Context, repos repository.Repositories, rv *domain.Review, status domain.ReviewStatus) error {
	from := rv.Status
	if err := repos.Reviews.UpdateStatus(ctx, rv.ID, status); err != nil {
		return err
	}
	rv.Status = status
	rv.UpdatedAt = s.now()

	if !domain.AffectsAggregate(from, status) {
		return nil
	}
	if err := repos.Companies.LockForUpdate(ctx, rv.CompanyID); err != nil {
		return err
	}
	_, err := repos.Companies.RecomputeRating(ctx, rv.CompanyID)
	return err
}

func (s *ModerationService) afterStatusChange(ctx context.Context, rv *domain.Review) {
	s.fx.invalidate(ctx, rv.CompanyID)
	s.fx.syncIndex(ctx, rv)
}

// AddReply appends a reply from the owner of the reviewed company. The
// company is loaded from the review, never taken from the caller.
func (s *ModerationService) AddReply(ctx context.Context, actor Actor, reviewID, text string) (*domain.Reply, error) {
	text = strings.TrimSpace(text)
	if n := utf8.RuneCountInString(text); n == 0 || n > maxReplyLength {
		return nil, apperrors.Validation(fmt.Sprintf("reply must be between 1 and %d characters", maxReplyLength))
	}

	rv, err := s.repos.Reviews.GetByID(ctx, reviewID)
	if err != nil {
		return nil, fmt.Errorf("add reply: %w", err)
	}
	company, err := s.repos.Companies.GetByID(ctx, rv.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("add reply: %w", err)
	}
	if !company.IsOwnedBy(actor.UserID) {
		return nil, apperrors.Forbidden("only the owner of the reviewed company can reply")
	}

	reply := &domain.Reply{
		ID:        uuid.New().String(),
		ReviewID:  rv.ID,
		CompanyID: company.ID,
		UserID:    actor.UserID,
		Text:      text,
		CreatedAt: s.now(),
	}
	if err := s.repos.Reviews.AddReply(ctx, reply); err != nil {
		return nil, fmt.Errorf("add reply: %w", err)
	}

	s.fx.invalidate(ctx, rv.CompanyID)
	s.fx.notify(ctx, notify.NewEvent(notify.EventNewReply, rv, actor.UserID))

	s.logger.InfoContext(ctx, "reply added",
		slog.String("review_id", rv.ID),
		slog.String("reply_id", reply.ID),
		slog.String("company_id", company.ID),
	)
	return reply, nil
}

// ReportReview files a report. Authors cannot report their own review and
// each user can report a review once. Reaching the report threshold sends
// an approved review back to pending; further reports leave it there.
func (s *ModerationService) ReportReview(ctx context.Context, actor Actor, reviewID, reason string) (*ReportResult, error) {
	reason = strings.TrimSpace(reason)
	if n := utf8.RuneCountInString(reason); n == 0 || n > maxReasonLength {
		return nil, apperrors.Validation(fmt.Sprintf("reason must be between 1 and %d characters", maxReasonLength))
	}

	var (
		rv      *domain.Review
		demoted bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		demoted = false
		var err error
		rv, err = repos.Reviews.GetForUpdate(ctx, reviewID)
		if err != nil {
			return err
		}
		if rv.UserID == actor.UserID {
			return apperrors.Forbidden("you cannot report your own review")
		}

		count, err := repos.Reviews.AddReport(ctx, &domain.Report{
			ID:        uuid.New().String(),
			ReviewID:  rv.ID,
			UserID:    actor.UserID,
			Reason:    reason,
			CreatedAt: s.now(),
		})
		if err != nil {
			return err
		}
		rv.ReportCount = count

		if !s.policy.ShouldDemote(rv.Status, count) {
			return nil
		}
		demoted = true
		return s.applyStatus(ctx, repos, rv, domain.ReviewPending)
	})
	if err != nil {
		return nil, fmt.Errorf("report review: %w", err)
	}

	reportsTotal.Inc()
	if demoted {
		statusTransitionsTotal.WithLabelValues(string(domain.ReviewApproved), string(domain.ReviewPending), "reports").Inc()
		s.afterStatusChange(ctx, rv)
		s.logger.InfoContext(ctx, "review demoted after reports",
			slog.String("review_id", rv.ID),
			slog.Int("report_count", rv.ReportCount),
		)
	}

	ev := notify.NewEvent(notify.EventReviewReported, rv, actor.UserID)
	ev.Reason = reason
	s.fx.notify(ctx, ev)

	return &ReportResult{
		ReviewID:    rv.ID,
		ReportCount: rv.ReportCount,
		Status:      rv.Status,
		Demoted:     demoted,
	}, nil
}

// VoteHelpful flips the caller's helpful vote on a review.
func (s *ModerationService) VoteHelpful(ctx context.Context, actor Actor, reviewID string) (*VoteResult, error) {
	rv, err := s.repos.Reviews.GetByID(ctx, reviewID)
	if err != nil {
		return nil, fmt.Errorf("vote helpful: %w", err)
	}

	voted, count, err := s.repos.Reviews.ToggleHelpful(ctx, reviewID, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("vote helpful: %w", err)
	}

	action := "removed"
	if voted {
		action = "added"
	}
	helpfulVotesTotal.WithLabelValues(action).Inc()

	rv.HelpfulCount = count
	s.fx.invalidate(ctx, rv.CompanyID)
	if rv.Status == domain.ReviewApproved {
		s.fx.syncIndex(ctx, rv)
	}

	return &VoteResult{ReviewID: reviewID, Voted: voted, HelpfulCount: count}, nil
}
