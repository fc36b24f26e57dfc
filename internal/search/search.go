package search

import (
	"context"
	"time"

	"github.com/utafrali/ReviewGo/internal/domain"
)

// Engine indexes approved reviews and runs full-text queries over them.
// Implementations may use Elasticsearch, in-memory storage, or other backends.
type Engine interface {
	// Index adds or updates a single review document.
	Index(ctx context.Context, doc *Document) error

	// Delete removes a review document. Missing documents are not an error.
	Delete(ctx context.Context, id string) error

	// Search executes a query and returns matching reviews.
	Search(ctx context.Context, q *Query) (*Result, error)

	// BulkIndex adds or updates many documents at once.
	BulkIndex(ctx context.Context, docs []Document) error
}

// Document is a review as stored in the search index.
type Document struct {
	ID           string    `json:"id"`
	CompanyID    string    `json:"company_id"`
	AuthorName   string    `json:"author_name"`
	Rating       int       `json:"rating"`
	Text         string    `json:"text"`
	HelpfulCount int       `json:"helpful_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewDocument builds the index document of a review.
func NewDocument(rv *domain.Review) Document {
	return Document{
		ID:           rv.ID,
		CompanyID:    rv.CompanyID,
		AuthorName:   rv.AuthorName,
		Rating:       rv.Rating,
		Text:         rv.Text,
		HelpfulCount: rv.HelpfulCount,
		CreatedAt:    rv.CreatedAt,
	}
}

// Query holds the parameters of a review search.
type Query struct {
	Text      string  `json:"q"`
	CompanyID *string `json:"company_id,omitempty"`
	MinRating *int    `json:"min_rating,omitempty"`
	Page      int     `json:"page"`
	PerPage   int     `json:"per_page"`
}

// Normalize clamps paging to page >= 1 and 1..100 results per page.
func (q *Query) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 {
		q.PerPage = 20
	}
	if q.PerPage > 100 {
		q.PerPage = 100
	}
}

// Result is one page of search hits.
type Result struct {
	Reviews []Document `json:"reviews"`
	Total   int        `json:"total"`
	Page    int        `json:"page"`
	PerPage int        `json:"per_page"`
	TookMs  int64      `json:"took_ms"`
}
