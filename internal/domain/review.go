package domain

import (
	"fmt"
	"time"
	"unicode/utf8"

	apperrors "github.com/utafrali/ReviewGo/pkg/errors"
)

// ReviewStatus is the moderation state of a review.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// ParseReviewStatus converts s into a ReviewStatus.
func ParseReviewStatus(s string) (ReviewStatus, error) {
	switch st := ReviewStatus(s); st {
	case ReviewPending, ReviewApproved, ReviewRejected:
		return st, nil
	default:
		return "", apperrors.Validation(fmt.Sprintf("unknown review status %q", s))
	}
}

// reviewTransitions lists the allowed moderation moves. Rejected is terminal.
var reviewTransitions = map[ReviewStatus][]ReviewStatus{
	ReviewPending:  {ReviewApproved, ReviewRejected},
	ReviewApproved: {ReviewPending},
}

// CanTransitionTo reports whether a review may move from s to next.
func (s ReviewStatus) CanTransitionTo(next ReviewStatus) bool {
	for _, allowed := range reviewTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AffectsAggregate reports whether moving between from and to changes the
// set of approved reviews.
func AffectsAggregate(from, to ReviewStatus) bool {
	return from != to && (from == ReviewApproved || to == ReviewApproved)
}

// Review is a user's rating of a company.
type Review struct {
	ID           string       `json:"id"`
	CompanyID    string       `json:"company_id"`
	UserID       string       `json:"user_id"`
	AuthorName   string       `json:"author_name,omitempty"`
	Rating       int          `json:"rating"`
	Text         string       `json:"text"`
	Status       ReviewStatus `json:"status"`
	ReportCount  int          `json:"report_count"`
	HelpfulCount int          `json:"helpful_count"`
	Replies      []Reply      `json:"replies"`
	IPAddress    *string      `json:"-"`
	IPHash       string       `json:"-"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Reply is a company owner's answer to a review. Replies are immutable.
type Reply struct {
	ID        string    `json:"id"`
	ReviewID  string    `json:"review_id"`
	CompanyID string    `json:"company_id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Report is one user's complaint about a review.
type Report struct {
	ID        string    `json:"id"`
	ReviewID  string    `json:"review_id"`
	UserID    string    `json:"user_id"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// ReviewFilter narrows review listings. Nil fields are not applied.
type ReviewFilter struct {
	CompanyID *string
	Status    *ReviewStatus
	Rating    *int
	// Verified filters on the reviewed company's verification flag.
	Verified *bool
	Page     int
	PerPage  int
}

// ReviewPolicy holds the tunable rules for review submission and moderation.
type ReviewPolicy struct {
	MinTextLength   int
	MaxTextLength   int
	MaxPerIP        int
	IPWindow        time.Duration
	ReportThreshold int
}

// DefaultReviewPolicy returns the production rules: 10-1000 characters,
// five reviews per IP per 24 hours, demotion at three reports.
func DefaultReviewPolicy() ReviewPolicy {
	return ReviewPolicy{
		MinTextLength:   10,
		MaxTextLength:   1000,
		MaxPerIP:        5,
		IPWindow:        24 * time.Hour,
		ReportThreshold: 3,
	}
}

// ValidateReview checks rating range and text length in characters.
func (p ReviewPolicy) ValidateReview(rating int, text string) error {
	if rating < 1 || rating > 5 {
		return apperrors.Validation("rating must be between 1 and 5")
	}
	n := utf8.RuneCountInString(text)
	if n < p.MinTextLength || n > p.MaxTextLength {
		return apperrors.Validation(fmt.Sprintf("text must be between %d and %d characters", p.MinTextLength, p.MaxTextLength))
	}
	return nil
}

// ShouldDemote reports whether a review with reportCount reports must be
// sent back to moderation.
func (p ReviewPolicy) ShouldDemote(status ReviewStatus, reportCount int) bool {
	return status == ReviewApproved && reportCount >= p.ReportThreshold
}
