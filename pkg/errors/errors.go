package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels classify errors independently of their AppError code, so
// callers can test with errors.Is after any amount of wrapping.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrForbidden     = errors.New("forbidden")
	ErrConflict      = errors.New("conflict")
	ErrRateLimited   = errors.New("rate limited")
)

// sentinelStatus maps each sentinel to its HTTP status, in match order.
var sentinelStatus = []struct {
	err    error
	status int
}{
	{ErrNotFound, http.StatusNotFound},
	{ErrAlreadyExists, http.StatusConflict},
	{ErrConflict, http.StatusConflict},
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrForbidden, http.StatusForbidden},
	{ErrRateLimited, http.StatusTooManyRequests},
}

// AppError is an error with a stable machine-readable code and the HTTP
// status it maps to. Message is safe to show to API clients.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func newError(code string, status int, sentinel error, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: sentinel}
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound reports a missing resource by kind and id.
func NotFound(resource, id string) *AppError {
	return newError("NOT_FOUND", http.StatusNotFound, ErrNotFound,
		fmt.Sprintf("%s with id %s not found", resource, id))
}

// AlreadyExists reports a uniqueness violation on field.
func AlreadyExists(resource, field, value string) *AppError {
	return newError("ALREADY_EXISTS", http.StatusConflict, ErrAlreadyExists,
		fmt.Sprintf("%s with %s %q already exists", resource, field, value))
}

// InvalidInput is for requests that cannot be parsed at all.
func InvalidInput(message string) *AppError {
	return newError("INVALID_INPUT", http.StatusBadRequest, ErrInvalidInput, message)
}

// Validation is for well-formed values that break a rule.
func Validation(message string) *AppError {
	return newError("VALIDATION_ERROR", http.StatusBadRequest, ErrInvalidInput, message)
}

func Forbidden(message string) *AppError {
	return newError("FORBIDDEN", http.StatusForbidden, ErrForbidden, message)
}

// Conflict reports a state conflict under a caller-chosen code such as
// INVALID_STATUS_TRANSITION.
func Conflict(code, message string) *AppError {
	return newError(code, http.StatusConflict, ErrConflict, message)
}

func RateLimited(message string) *AppError {
	return newError("RATE_LIMITED", http.StatusTooManyRequests, ErrRateLimited, message)
}

// HTTPStatus returns the status for err: the AppError's own status when
// there is one, otherwise the status of the first matching sentinel, else 500.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	for _, s := range sentinelStatus {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}
