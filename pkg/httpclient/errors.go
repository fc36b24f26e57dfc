package httpclient

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of a failed response body is kept.
const maxErrorBody = 4 << 10

// StatusError reports a non-2xx answer from a delivery target.
type StatusError struct {
	Target string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Target, e.Status)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Target, e.Status, e.Body)
}

// Temporary reports whether retrying later could succeed.
func (e *StatusError) Temporary() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// ReadStatusError consumes and closes resp.Body and returns a *StatusError
// carrying a truncated copy of it.
func ReadStatusError(resp *http.Response, target string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", target, resp.StatusCode, err)
	}
	return &StatusError{Target: target, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// CheckResponse returns nil and drains resp for 2xx answers, otherwise a
// *StatusError.
func CheckResponse(resp *http.Response, target string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		drain(resp)
		return nil
	}
	return ReadStatusError(resp, target)
}

// IsClientError reports whether status is a 4xx code.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
