package pagination

import (
	"net/http"
	"strconv"
)

// MaxPerPage caps the page size a client may request.
const MaxPerPage = 100

// Params holds pagination parameters extracted from query strings.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// DefaultParams returns page 1 with 20 items.
func DefaultParams() Params {
	return Params{Page: 1, PerPage: 20}
}

// FromRequest reads page and per_page, ignoring invalid values.
func FromRequest(r *http.Request) Params {
	p := DefaultParams()
	q := r.URL.Query()

	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(q.Get("per_page")); err == nil && v > 0 && v <= MaxPerPage {
		p.PerPage = v
	}
	return p
}

// Offset returns the row offset for the current page.
func (p Params) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PerPage
}

// Normalize clamps out-of-range values to the defaults.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 || p.PerPage > MaxPerPage {
		p.PerPage = DefaultParams().PerPage
	}
	return p
}
