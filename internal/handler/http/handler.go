package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/utafrali/ReviewGo/internal/service"
	apperrors "github.com/utafrali/ReviewGo/pkg/errors"
	"github.com/utafrali/ReviewGo/pkg/httputil"
	"github.com/utafrali/ReviewGo/pkg/middleware"
	"github.com/utafrali/ReviewGo/pkg/validator"
)

// ContentTypeJSON sets the response content type for JSON endpoints.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// actorFrom builds the service actor from the authenticated claims. Routes
// that call it sit behind middleware.Auth, so claims are always present.
func actorFrom(r *http.Request) service.Actor {
	c := middleware.ClaimsFromContext(r.Context())
	if c == nil {
		return service.Actor{}
	}
	return service.Actor{
		UserID: c.UserID,
		Email:  c.Email,
		Name:   c.Name,
		Admin:  c.IsAdmin(),
	}
}

// decodeRequest decodes and validates a JSON body into dst. On failure it
// writes the error response and returns false.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := validator.DecodeAndValidate(w, r, dst)
	if err == nil {
		return true
	}
	var valErr *validator.ValidationError
	if !errors.As(err, &valErr) {
		err = apperrors.InvalidInput("invalid request body: " + err.Error())
	}
	httputil.WriteError(w, r, err, nil)
	return false
}

func queryString(r *http.Request, key string) *string {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	return &v
}

func queryInt(r *http.Request, key string) (*int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, apperrors.Validation(key + " must be an integer")
	}
	return &n, nil
}

func queryBool(r *http.Request, key string) (*bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, apperrors.Validation(key + " must be true or false")
	}
	return &b, nil
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
