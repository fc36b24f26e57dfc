package domain

import (
	"fmt"
	"time"

	apperrors "github.com/utafrali/ReviewGo/pkg/errors"
)

// CompanyStatus is the listing state of a company.
type CompanyStatus string

const (
	CompanyPending   CompanyStatus = "pending"
	CompanyActive    CompanyStatus = "active"
	CompanySuspended CompanyStatus = "suspended"
)

// ParseCompanyStatus converts s into a CompanyStatus.
func ParseCompanyStatus(s string) (CompanyStatus, error) {
	switch st := CompanyStatus(s); st {
	case CompanyPending, CompanyActive, CompanySuspended:
		return st, nil
	default:
		return "", apperrors.Validation(fmt.Sprintf("unknown company status %q", s))
	}
}

// Company is a business that can be reviewed. AverageRating and TotalReviews
// are derived from its approved reviews and only ever recomputed in full.
type Company struct {
	ID            string        `json:"id"`
	OwnerID       string        `json:"owner_id"`
	Name          string        `json:"name"`
	Slug          string        `json:"slug"`
	Description   string        `json:"description"`
	Category      string        `json:"category"`
	Email         *string       `json:"email,omitempty"`
	Phone         *string       `json:"phone,omitempty"`
	Website       *string       `json:"website,omitempty"`
	Address       *string       `json:"address,omitempty"`
	AverageRating float64       `json:"average_rating"`
	TotalReviews  int           `json:"total_reviews"`
	Status        CompanyStatus `json:"status"`
	IsVerified    bool          `json:"is_verified"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// IsOwnedBy reports whether userID owns the company.
func (c *Company) IsOwnedBy(userID string) bool {
	return userID != "" && c.OwnerID == userID
}

// CompanyInput holds the editable company fields.
type CompanyInput struct {
	Name        string  `json:"name" validate:"required,notblank,min=2,max=200"`
	Description string  `json:"description" validate:"max=5000"`
	Category    string  `json:"category" validate:"required,max=100"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Phone       *string `json:"phone" validate:"omitempty,max=50"`
	Website     *string `json:"website" validate:"omitempty,http_url"`
	Address     *string `json:"address" validate:"omitempty,max=500"`
}

// CompanyUpdate holds a partial update; nil fields are left unchanged. The
// name, and with it the slug, cannot be changed.
type CompanyUpdate struct {
	Description *string `json:"description" validate:"omitempty,max=5000"`
	Category    *string `json:"category" validate:"omitempty,max=100"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Phone       *string `json:"phone" validate:"omitempty,max=50"`
	Website     *string `json:"website" validate:"omitempty,http_url"`
	Address     *string `json:"address" validate:"omitempty,max=500"`
}

// Apply copies the set fields of u onto c.
func (u CompanyUpdate) Apply(c *Company) {
	if u.Description != nil {
		c.Description = *u.Description
	}
	if u.Category != nil {
		c.Category = *u.Category
	}
	if u.Email != nil {
		c.Email = u.Email
	}
	if u.Phone != nil {
		c.Phone = u.Phone
	}
	if u.Website != nil {
		c.Website = u.Website
	}
	if u.Address != nil {
		c.Address = u.Address
	}
}

// CompanyFilter narrows company listings.
type CompanyFilter struct {
	Category *string
	Status   *CompanyStatus
	Verified *bool
	Query    *string
	Page     int
	PerPage  int
}

// RatingAggregate is the denormalized rating summary of a company.
type RatingAggregate struct {
	AverageRating float64 `json:"average_rating"`
	TotalReviews  int     `json:"total_reviews"`
}
