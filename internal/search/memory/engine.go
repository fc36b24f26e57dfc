package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/utafrali/ReviewGo/internal/search"
)

// Engine is an in-memory search.Engine doing case-insensitive substring
// matching on review text and author name. Safe for concurrent use.
type Engine struct {
	mu   sync.RWMutex
	docs map[string]search.Document
}

// New creates an empty in-memory engine.
func New() *Engine {
	return &Engine{docs: make(map[string]search.Document)}
}

// Index adds or updates a document.
func (e *Engine) Index(_ context.Context, doc *search.Document) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.docs[doc.ID] = *doc
	return nil
}

// Delete removes a document.
func (e *Engine) Delete(_ context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.docs, id)
	return nil
}

// BulkIndex adds or updates many documents.
func (e *Engine) BulkIndex(_ context.Context, docs []search.Document) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range docs {
		e.docs[docs[i].ID] = docs[i]
	}
	return nil
}

// Search returns matching documents, newest first.
func (e *Engine) Search(_ context.Context, q *search.Query) (*search.Result, error) {
	start := time.Now()
	q.Normalize()
	text := strings.ToLower(strings.TrimSpace(q.Text))

	e.mu.RLock()
	matched := make([]search.Document, 0)
	for _, d := range e.docs {
		if matches(d, q, text) {
			matched = append(matched, d)
		}
	}
	e.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	offset := (q.Page - 1) * q.PerPage
	if offset > total {
		offset = total
	}
	end := offset + q.PerPage
	if end > total {
		end = total
	}

	return &search.Result{
		Reviews: matched[offset:end],
		Total:   total,
		Page:    q.Page,
		PerPage: q.PerPage,
		TookMs:  time.Since(start).Milliseconds(),
	}, nil
}

func matches(d search.Document, q *search.Query, text string) bool {
	if text != "" &&
		!strings.Contains(strings.ToLower(d.Text), text) &&
		!strings.Contains(strings.ToLower(d.AuthorName), text) {
		return false
	}
	if q.CompanyID != nil && *q.CompanyID != "" && d.CompanyID != *q.CompanyID {
		return false
	}
	if q.MinRating != nil && d.Rating < *q.MinRating {
		return false
	}
	return true
}
