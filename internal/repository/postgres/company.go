package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/ReviewGo/internal/domain"
	"github.com/utafrali/ReviewGo/pkg/database"
	apperrors "github.com/utafrali/ReviewGo/pkg/errors"
)

const companyColumns = `id, owner_id, name, slug, description, category, email, phone, website, address,
		       average_rating, total_reviews, status, is_verified, created_at, updated_at`

// CompanyRepository implements repository.CompanyRepository using PostgreSQL.
type CompanyRepository struct {
	db database.DBTX
}

// NewCompanyRepository creates a new PostgreSQL-backed company repository.
func NewCompanyRepository(db database.DBTX) *CompanyRepository {
	return &CompanyRepository{db: traced(db)}
}

// Create inserts a new company.
func (r *CompanyRepository) Create(ctx context.Context, c *domain.Company) error {
	query := `
		INSERT INTO companies (id, owner_id, name, slug, description, category, email, phone, website, address,
		                       average_rating, total_reviews, status, is_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := r.db.Exec(ctx, query,
		c.ID,
		c.OwnerID,
		c.Name,
		c.Slug,
		c.Description,
		c.Category,
		c.Email,
		c.Phone,
		c.Website,
		c.Address,
		c.AverageRating,
		c.TotalReviews,
		c.Status,
		c.IsVerified,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("company", "slug", c.Slug)
		}
		return fmt.Errorf("insert company: %w", err)
	}
	return nil
}

// GetByID retrieves a company by id.
func (r *CompanyRepository) GetByID(ctx context.Context, id string) (*domain.Company, error) {
	return r.getOne(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id)
}

// GetBySlug retrieves a company by slug.
func (r *CompanyRepository) GetBySlug(ctx context.Context, slug string) (*domain.Company, error) {
	return r.getOne(ctx, `SELECT `+companyColumns+` FROM companies WHERE slug = $1`, slug)
}

func (r *CompanyRepository) getOne(ctx context.Context, query, key string) (*domain.Company, error) {
	var c domain.Company
	if err := r.db.QueryRow(ctx, query, key).Scan(companyDest(&c)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("company", key)
		}
		return nil, fmt.Errorf("get company: %w", err)
	}
	return &c, nil
}

// LockForUpdate holds a row lock on the company.
func (r *CompanyRepository) LockForUpdate(ctx context.Context, id string) error {
	var locked string
	err := r.db.QueryRow(ctx, `SELECT id FROM companies WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("company", id)
		}
		return fmt.Errorf("lock company: %w", err)
	}
	return nil
}

// List returns companies matching the filter, newest first, with the total count.
func (r *CompanyRepository) List(ctx context.Context, filter domain.CompanyFilter) ([]domain.Company, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.Category != nil {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argIndex))
		args = append(args, *filter.Category)
		argIndex++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	if filter.Verified != nil {
		conditions = append(conditions, fmt.Sprintf("is_verified = $%d", argIndex))
		args = append(args, *filter.Verified)
		argIndex++
	}

	if filter.Query != nil {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+*filter.Query+"%")
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT `+companyColumns+`,
		       count(*) OVER() AS total_count
		FROM companies
		%s
		ORDER BY created_at DESC
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
		return nil, 0, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	var (
		companies  []domain.Company
		totalCount int
	)
	for rows.Next() {
		var c domain.Company
		if err := rows.Scan(append(companyDest(&c), &totalCount)...); err != nil {
			return nil, 0, fmt.Errorf("scan company row: %w", err)
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate company rows: %w", err)
	}

	if companies == nil {
		companies = []domain.Company{}
	}
	return companies, totalCount, nil
}

// Update writes the editable profile fields.
func (r *CompanyRepository) Update(ctx context.Context, c *domain.Company) error {
	query := `
		UPDATE companies
		SET description = $1, category = $2, email = $3, phone = $4, website = $5, address = $6, updated_at = $7
		WHERE id = $8`

	ct, err := r.db.Exec(ctx, query,
		c.Description,
		c.Category,
		c.Email,
		c.Phone,
		c.Website,
		c.Address,
		c.UpdatedAt,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("update company: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("company", c.ID)
	}
	return nil
}

// UpdateStatus sets the listing status.
func (r *CompanyRepository) UpdateStatus(ctx context.Context, id string, status domain.CompanyStatus) error {
	ct, err := r.db.Exec(ctx, `UPDATE companies SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update company status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("company", id)
	}
	return nil
}

// SetVerified sets the verification flag.
func (r *CompanyRepository) SetVerified(ctx context.Context, id string, verified bool) error {
	ct, err := r.db.Exec(ctx, `UPDATE companies SET is_verified = $1, updated_at = NOW() WHERE id = $2`, verified, id)
	if err != nil {
		return fmt.Errorf("set company verified: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("company", id)
	}
	return nil
}

// RecomputeRating recalculates the aggregate from the approved reviews.
func (r *CompanyRepository) RecomputeRating(ctx context.Context, id string) (*domain.RatingAggregate, error) {
	query := `
		UPDATE companies c
		SET average_rating = agg.average, total_reviews = agg.total, updated_at = NOW()
		FROM (
			SELECT COALESCE(AVG(rating)::float8, 0) AS average,
			       COUNT(*)::int AS total
			FROM reviews
			WHERE company_id = $1 AND status = 'approved'
		) agg
		WHERE c.id = $1
		RETURNING c.average_rating, c.total_reviews`

	var agg domain.RatingAggregate
	if err := r.db.QueryRow(ctx, query, id).Scan(&agg.AverageRating, &agg.TotalReviews); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("company", id)
		}
		return nil, fmt.Errorf("recompute company rating: %w", err)
	}
	return &agg, nil
}

func companyDest(c *domain.Company) []any {
	return []any{
		&c.ID,
		&c.OwnerID,
		&c.Name,
		&c.Slug,
		&c.Description,
		&c.Category,
		&c.Email,
		&c.Phone,
		&c.Website,
		&c.Address,
		&c.AverageRating,
		&c.TotalReviews,
		&c.Status,
		&c.IsVerified,
		&c.CreatedAt,
		&c.UpdatedAt,
	}
}
