package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/ReviewGo/pkg/errors"
	"github.com/utafrali/ReviewGo/pkg/logger"
	"github.com/utafrali/ReviewGo/pkg/validator"
)

// Response is the {"data": ..., "error": ...} envelope every endpoint returns.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse is the error half of the envelope.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData writes v inside the data envelope.
func WriteData(w http.ResponseWriter, status int, v any) {
	WriteJSON(w, status, Response{Data: v})
}

// sentinelErrors are the public code and message for bare sentinels that
// reach the handler without an AppError around them.
var sentinelErrors = []struct {
	err     error
	status  int
	code    string
	message string
}{
	{apperrors.ErrNotFound, http.StatusNotFound, "NOT_FOUND", "resource not found"},
	{apperrors.ErrAlreadyExists, http.StatusConflict, "ALREADY_EXISTS", "resource already exists"},
	{apperrors.ErrConflict, http.StatusConflict, "CONFLICT", "resource conflict"},
	{apperrors.ErrForbidden, http.StatusForbidden, "FORBIDDEN", "insufficient permissions"},
	{apperrors.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests"},
}

// WriteError renders err in the error envelope. Validation errors list
// their fields, AppErrors keep their code and message, and anything else
// is logged and answered with an opaque 500. The request-scoped logger is
// preferred over fallback.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	status, body := describeError(err)
	body.RequestID = logger.CorrelationIDFromContext(r.Context())

	if status >= http.StatusInternalServerError {
		l := logger.FromContext(r.Context())
		if l == slog.Default() && fallback != nil {
			l = fallback
		}
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, Response{Error: body})
}

func describeError(err error) (int, *ErrorResponse) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		return http.StatusBadRequest, &ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "request validation failed",
			Fields:  valErr.Fields(),
		}
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Status, &ErrorResponse{Code: appErr.Code, Message: appErr.Message}
	}

	if errors.Is(err, apperrors.ErrInvalidInput) {
		return http.StatusBadRequest, &ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()}
	}
	for _, s := range sentinelErrors {
		if errors.Is(err, s.err) {
			return s.status, &ErrorResponse{Code: s.code, Message: s.message}
		}
	}
	return http.StatusInternalServerError, &ErrorResponse{Code: "INTERNAL_ERROR", Message: "an internal error occurred"}
}

// PaginatedResponse is a page of T with its position in the full result.
type PaginatedResponse[T any] struct {
	Data       []T  `json:"data"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

// NewPaginatedResponse fills in TotalPages and HasNext. A nil page is
// rendered as an empty array.
func NewPaginatedResponse[T any](data []T, totalCount, page, perPage int) PaginatedResponse[T] {
	resp := PaginatedResponse[T]{Data: data, TotalCount: totalCount, Page: page, PerPage: perPage}
	if resp.Data == nil {
		resp.Data = []T{}
	}
	if perPage > 0 {
		resp.TotalPages = (totalCount + perPage - 1) / perPage
	}
	resp.HasNext = page < resp.TotalPages
	return resp
}

// WriteAttachment sends body as a file download named filename.
func WriteAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Disposition", "attachment; filename="+strconv.Quote(filename))
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// ParseUUID parses param as a UUID. On failure it writes a 400
// INVALID_PARAMETER response and reports false.
func ParseUUID(w http.ResponseWriter, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(param)
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, Response{Error: &ErrorResponse{
			Code:    "INVALID_PARAMETER",
			Message: "invalid UUID: " + param,
		}})
		return uuid.Nil, false
	}
	return id, true
}
