package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/ReviewGo/internal/domain"
	"github.com/utafrali/ReviewGo/pkg/database"
	apperrors "github.com/utafrali/ReviewGo/pkg/errors"
)

const reviewColumns = `r.id, r.company_id, r.user_id, COALESCE(u.name, ''), r.rating, r.text, r.status,
		       r.report_count, r.helpful_count, r.ip_address, r.ip_hash, r.created_at, r.updated_at`

// ReviewRepository implements repository.ReviewRepository using PostgreSQL.
type ReviewRepository struct {
	db database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(db database.DBTX) *ReviewRepository {
	return &ReviewRepository{db: traced(db)}
}

// Create inserts a new review.
func (r *ReviewRepository) Create(ctx context.Context, rv *domain.Review) error {
	query := `
		INSERT INTO reviews (id, company_id, user_id, rating, text, status, ip_address, ip_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.Exec(ctx, query,
		rv.ID,
		rv.CompanyID,
		rv.UserID,
		rv.Rating,
		rv.Text,
		rv.Status,
		rv.IPAddress,
		rv.IPHash,
		rv.CreatedAt,
		rv.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateReview()
		}
		if isForeignKeyViolation(err) {
			return apperrors.NotFound("company", rv.CompanyID)
		}
		return fmt.Errorf("insert review: %w", err)
	}

	return nil
}

// GetByID retrieves a review and its replies.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	query := `
		SELECT ` + reviewColumns + `
		FROM reviews r
		LEFT JOIN users u ON u.id = r.user_id
		WHERE r.id = $1`

	rv, err := scanReview(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, fmt.Errorf("get review: %w", err)
	}

	reviews := []domain.Review{*rv}
	if err := r.attachReplies(ctx, reviews); err != nil {
		return nil, err
	}
	return &reviews[0], nil
}

// GetForUpdate retrieves a review and holds a row lock on it. Replies are
// not loaded.
func (r *ReviewRepository) GetForUpdate(ctx context.Context, id string) (*domain.Review, error) {
	query := `
		SELECT ` + reviewColumns + `
		FROM reviews r
		LEFT JOIN users u ON u.id = r.user_id
		WHERE r.id = $1
		FOR UPDATE OF r`

	rv, err := scanReview(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", id)
		}
		return nil, fmt.Errorf("lock review: %w", err)
	}
	rv.Replies = []domain.Reply{}
	return rv, nil
}

// List returns reviews matching the filter, newest first, with the total count.
func (r *ReviewRepository) List(ctx context.Context, filter domain.ReviewFilter) ([]domain.Review, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.CompanyID != nil {
		conditions = append(conditions, fmt.Sprintf("r.company_id = $%d", argIndex))
		args = append(args, *filter.CompanyID)
		argIndex++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("r.status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	if filter.Rating != nil {
		conditions = append(conditions, fmt.Sprintf("r.rating = $%d", argIndex))
		args = append(args, *filter.Rating)
		argIndex++
	}

	if filter.Verified != nil {
		conditions = append(conditions, fmt.Sprintf("c.is_verified = $%d", argIndex))
		args = append(args, *filter.Verified)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT `+reviewColumns+`,
		       count(*) OVER() AS total_count
		FROM reviews r
		JOIN companies c ON c.id = r.company_id
		LEFT JOIN users u ON u.id = r.user_id
		%s
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, argIndex, argIndex+1,
	)

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var (
		reviews    []domain.Review
		totalCount int
	)
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(append(reviewDest(&rv), &totalCount)...); err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}

	if reviews == nil {
		return []domain.Review{}, totalCount, nil
	}
	if err := r.attachReplies(ctx, reviews); err != nil {
		return nil, 0, err
	}
	return reviews, totalCount, nil
}

// UpdateStatus sets the moderation status of a review.
func (r *ReviewRepository) UpdateStatus(ctx context.Context, id string, status domain.ReviewStatus) error {
	ct, err := r.db.Exec(ctx,
		`UPDATE reviews SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("update review status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("review", id)
	}
	return nil
}

// Delete removes a review. Replies, reports and votes cascade.
func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("review", id)
	}
	return nil
}

// LockAddress takes a transaction-scoped advisory lock keyed by ipHash.
func (r *ReviewRepository) LockAddress(ctx context.Context, ipHash string) error {
	if _, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, ipHash); err != nil {
		return fmt.Errorf("lock address: %w", err)
	}
	return nil
}

// CountByAddressSince counts reviews created from ipHash at or after since.
func (r *ReviewRepository) CountByAddressSince(ctx context.Context, ipHash string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM reviews WHERE ip_hash = $1 AND created_at >= $2`,
		ipHash, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count reviews by address: %w", err)
	}
	return n, nil
}

// AddReply inserts a reply.
func (r *ReviewRepository) AddReply(ctx context.Context, reply *domain.Reply) error {
	query := `
		INSERT INTO review_replies (id, review_id, company_id, user_id, text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		reply.ID,
		reply.ReviewID,
		reply.CompanyID,
		reply.UserID,
		reply.Text,
		reply.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperrors.NotFound("review", reply.ReviewID)
		}
		return fmt.Errorf("insert reply: %w", err)
	}
	return nil
}

// AddReport inserts a report and returns the review's new report count.
func (r *ReviewRepository) AddReport(ctx context.Context, report *domain.Report) (int, error) {
	ct, err := r.db.Exec(ctx, `
		INSERT INTO review_reports (id, review_id, user_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (review_id, user_id) DO NOTHING`,
		report.ID, report.ReviewID, report.UserID, report.Reason, report.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, apperrors.NotFound("review", report.ReviewID)
		}
		return 0, fmt.Errorf("insert report: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return 0, domain.ErrDuplicateReport()
	}

	var count int
	err = r.db.QueryRow(ctx,
		`UPDATE reviews SET report_count = report_count + 1 WHERE id = $1 RETURNING report_count`,
		report.ReviewID,
	).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.NotFound("review", report.ReviewID)
		}
		return 0, fmt.Errorf("increment report count: %w", err)
	}
	return count, nil
}

// ToggleHelpful removes the user's vote if present and adds it otherwise,
// then refreshes helpful_count from the vote table.
func (r *ReviewRepository) ToggleHelpful(ctx context.Context, reviewID, userID string) (bool, int, error) {
	ct, err := r.db.Exec(ctx,
		`DELETE FROM review_helpful_votes WHERE review_id = $1 AND user_id = $2`,
		reviewID, userID,
	)
	if err != nil {
		return false, 0, fmt.Errorf("remove helpful vote: %w", err)
	}

	voted := false
	if ct.RowsAffected() == 0 {
		_, err = r.db.Exec(ctx, `
			INSERT INTO review_helpful_votes (review_id, user_id, created_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (review_id, user_id) DO NOTHING`,
			reviewID, userID,
		)
		if err != nil {
			if isForeignKeyViolation(err) {
				return false, 0, apperrors.NotFound("review", reviewID)
			}
			return false, 0, fmt.Errorf("add helpful vote: %w", err)
		}
		voted = true
	}

	var count int
	err = r.db.QueryRow(ctx, `
		UPDATE reviews
		SET helpful_count = (SELECT COUNT(*) FROM review_helpful_votes WHERE review_id = $1)
		WHERE id = $1
		RETURNING helpful_count`,
		reviewID,
	).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, 0, apperrors.NotFound("review", reviewID)
		}
		return false, 0, fmt.Errorf("refresh helpful count: %w", err)
	}
	return voted, count, nil
}

// RatingPoints returns ratings of a company's reviews created in [from, to].
func (r *ReviewRepository) RatingPoints(ctx context.Context, companyID string, from, to time.Time) ([]domain.RatingPoint, error) {
	rows, err := r.db.Query(ctx, `
		SELECT rating, created_at
		FROM reviews
		WHERE company_id = $1 AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at`,
		companyID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("query rating points: %w", err)
	}
	defer rows.Close()

	var points []domain.RatingPoint
	for rows.Next() {
		var p domain.RatingPoint
		if err := rows.Scan(&p.Rating, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rating point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rating points: %w", err)
	}
	return points, nil
}

// ListByCompany returns every review of a company with replies, newest first.
func (r *ReviewRepository) ListByCompany(ctx context.Context, companyID string) ([]domain.Review, error) {
	reviews, err := r.queryReviews(ctx, `
		SELECT `+reviewColumns+`
		FROM reviews r
		LEFT JOIN users u ON u.id = r.user_id
		WHERE r.company_id = $1
		ORDER BY r.created_at DESC, r.id DESC`,
		companyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list company reviews: %w", err)
	}
	if err := r.attachReplies(ctx, reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// ListApproved returns up to limit approved reviews with ids after afterID.
func (r *ReviewRepository) ListApproved(ctx context.Context, afterID string, limit int) ([]domain.Review, error) {
	reviews, err := r.queryReviews(ctx, `
		SELECT `+reviewColumns+`
		FROM reviews r
		LEFT JOIN users u ON u.id = r.user_id
		WHERE r.status = 'approved' AND r.id::text > $1
		ORDER BY r.id
		LIMIT $2`,
		afterID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list approved reviews: %w", err)
	}
	return reviews, nil
}

// ScrubAddresses clears ip_address on reviews that have left moderation and
// were last updated before the cutoff.
func (r *ReviewRepository) ScrubAddresses(ctx context.Context, before time.Time) (int64, error) {
	ct, err := r.db.Exec(ctx, `
		UPDATE reviews
		SET ip_address = NULL
		WHERE ip_address IS NOT NULL AND status <> 'pending' AND updated_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("scrub review addresses: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (r *ReviewRepository) queryReviews(ctx context.Context, query string, args ...any) ([]domain.Review, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := []domain.Review{}
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(reviewDest(&rv)...); err != nil {
			return nil, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review rows: %w", err)
	}
	return reviews, nil
}

// attachReplies loads the replies of all reviews with one query.
func (r *ReviewRepository) attachReplies(ctx context.Context, reviews []domain.Review) error {
	if len(reviews) == 0 {
		return nil
	}

	ids := make([]string, len(reviews))
	index := make(map[string]int, len(reviews))
	for i := range reviews {
		ids[i] = reviews[i].ID
		index[reviews[i].ID] = i
		reviews[i].Replies = []domain.Reply{}
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, review_id, company_id, user_id, text, created_at
		FROM review_replies
		WHERE review_id::text = ANY($1)
		ORDER BY created_at`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("list replies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rp domain.Reply
		if err := rows.Scan(&rp.ID, &rp.ReviewID, &rp.CompanyID, &rp.UserID, &rp.Text, &rp.CreatedAt); err != nil {
			return fmt.Errorf("scan reply row: %w", err)
		}
		if i, ok := index[rp.ReviewID]; ok {
			reviews[i].Replies = append(reviews[i].Replies, rp)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate reply rows: %w", err)
	}
	return nil
}

func reviewDest(rv *domain.Review) []any {
	return []any{
		&rv.ID,
		&rv.CompanyID,
		&rv.UserID,
		&rv.AuthorName,
		&rv.Rating,
		&rv.Text,
		&rv.Status,
		&rv.ReportCount,
		&rv.HelpfulCount,
		&rv.IPAddress,
		&rv.IPHash,
		&rv.CreatedAt,
		&rv.UpdatedAt,
	}
}

func scanReview(row pgx.Row) (*domain.Review, error) {
	var rv domain.Review
	if err := row.Scan(reviewDest(&rv)...); err != nil {
		return nil, err
	}
	return &rv, nil
}
