package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/ReviewGo/internal/domain"
)

// EventType names a review lifecycle event.
type EventType string

const (
	EventNewReview      EventType = "new_review"
	EventReviewApproved EventType = "review_approved"
	EventReviewRejected EventType = "review_rejected"
	EventNewReply       EventType = "new_reply"
	EventReviewReported EventType = "review_reported"
)

// Event is a review lifecycle notification.
type Event struct {
	ID          string              `json:"id"`
	Type        EventType           `json:"type"`
	ReviewID    string              `json:"review_id"`
	CompanyID   string              `json:"company_id"`
	AuthorID    string              `json:"author_id"`
	ActorID     string              `json:"actor_id,omitempty"`
	Rating      int                 `json:"rating"`
	Text        string              `json:"text"`
	Status      domain.ReviewStatus `json:"status"`
	ReportCount int                 `json:"report_count,omitempty"`
	Reason      string              `json:"reason,omitempty"`
	OccurredAt  time.Time           `json:"occurred_at"`
}

// NewEvent builds an event about rv. actorID is the user whose action caused
// it: the replier, the reporter or the moderating admin.
func NewEvent(t EventType, rv *domain.Review, actorID string) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        t,
		ReviewID:    rv.ID,
		CompanyID:   rv.CompanyID,
		AuthorID:    rv.UserID,
		ActorID:     actorID,
		Rating:      rv.Rating,
		Text:        rv.Text,
		Status:      rv.Status,
		ReportCount: rv.ReportCount,
		OccurredAt:  time.Now().UTC(),
	}
}

// StatusEvent maps a moderation result to its event type.
func StatusEvent(status domain.ReviewStatus) (EventType, bool) {
	switch status {
	case domain.ReviewApproved:
		return EventReviewApproved, true
	case domain.ReviewRejected:
		return EventReviewRejected, true
	default:
		return "", false
	}
}

// Subject is a one-line human summary of the event.
func (e *Event) Subject() string {
	switch e.Type {
	case EventNewReview:
		return fmt.Sprintf("New %d-star review awaiting moderation", e.Rating)
	case EventReviewApproved:
		return "Your review has been approved"
	case EventReviewRejected:
		return "Your review has been rejected"
	case EventNewReply:
		return "The company replied to your review"
	case EventReviewReported:
		return fmt.Sprintf("Review reported (%d reports)", e.ReportCount)
	default:
		return string(e.Type)
	}
}

// Body is the plain-text message used by email and chat sinks.
func (e *Event) Body() string {
	body := fmt.Sprintf("%s\n\nReview: %s\nCompany: %s\nRating: %d\n\n%s",
		e.Subject(), e.ReviewID, e.CompanyID, e.Rating, e.Text)
	if e.Reason != "" {
		body += "\n\nReason: " + e.Reason
	}
	return body
}

// Sink delivers events to one channel.
type Sink interface {
	Name() string
	Send(ctx context.Context, event *Event) error
}
