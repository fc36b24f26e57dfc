package domain

import (
	"fmt"
	"math"
	"time"

	apperrors "github.com/utafrali/ReviewGo/pkg/errors"
)

// AdStatus is the lifecycle state of an ad.
type AdStatus string

const (
	AdPending  AdStatus = "pending"
	AdActive   AdStatus = "active"
	AdRejected AdStatus = "rejected"
	AdExpired  AdStatus = "expired"
)

// ParseAdStatus converts s into an AdStatus.
func ParseAdStatus(s string) (AdStatus, error) {
	switch st := AdStatus(s); st {
	case AdPending, AdActive, AdRejected, AdExpired:
		return st, nil
	default:
		return "", apperrors.Validation(fmt.Sprintf("unknown ad status %q", s))
	}
}

var adTransitions = map[AdStatus][]AdStatus{
	AdPending: {AdActive, AdRejected},
	AdActive:  {AdExpired},
}

// CanTransitionTo reports whether an ad may move from s to next.
func (s AdStatus) CanTransitionTo(next AdStatus) bool {
	for _, allowed := range adTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Ad is a paid placement owned by a company.
type Ad struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	ImageURL  *string   `json:"image_url,omitempty"`
	TargetURL string    `json:"target_url"`
	Category  *string   `json:"category,omitempty"`
	Status    AdStatus  `json:"status"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Views     int64     `json:"views"`
	Clicks    int64     `json:"clicks"`
	CTR       float64   `json:"ctr"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ComputeCTR sets CTR to clicks/views as a percentage rounded to two places.
func (a *Ad) ComputeCTR() {
	if a.Views == 0 {
		a.CTR = 0
		return
	}
	a.CTR = math.Round(float64(a.Clicks)/float64(a.Views)*10000) / 100
}

// IsRunning reports whether the ad is active and inside its date window.
func (a *Ad) IsRunning(now time.Time) bool {
	return a.Status == AdActive && !now.Before(a.StartDate) && now.Before(a.EndDate)
}

// AdInput holds the fields of a new ad.
type AdInput struct {
	Title     string    `json:"title" validate:"required,max=200"`
	Content   string    `json:"content" validate:"required,max=2000"`
	ImageURL  *string   `json:"image_url" validate:"omitempty,http_url"`
	TargetURL string    `json:"target_url" validate:"required,http_url"`
	Category  *string   `json:"category" validate:"omitempty,max=100"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
}
