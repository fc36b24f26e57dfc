package domain

import (
	"fmt"

	apperrors "github.com/utafrali/ReviewGo/pkg/errors"
)

// Error codes specific to the review domain.
const (
	CodeDuplicateReview         = "DUPLICATE_REVIEW"
	CodeDuplicateReport         = "DUPLICATE_REPORT"
	CodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
)

// ErrDuplicateReview is returned when a user reviews the same company twice.
func ErrDuplicateReview() *apperrors.AppError {
	return apperrors.Conflict(CodeDuplicateReview, "you have already reviewed this company")
}

// ErrDuplicateReport is returned when a user reports the same review twice.
func ErrDuplicateReport() *apperrors.AppError {
	return apperrors.Conflict(CodeDuplicateReport, "you have already reported this review")
}

// ErrInvalidTransition is returned for a status change the state machine forbids.
func ErrInvalidTransition(entity string, from, to any) *apperrors.AppError {
	return apperrors.Conflict(CodeInvalidStatusTransition,
		fmt.Sprintf("%s cannot move from %v to %v", entity, from, to))
}

// ErrTooManyReviews is returned when an address exceeds the creation limit.
func ErrTooManyReviews(limit int) *apperrors.AppError {
	return apperrors.RateLimited(fmt.Sprintf("no more than %d reviews per address in 24 hours", limit))
}
