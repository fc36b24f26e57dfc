package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/ReviewGo/internal/domain"
	"github.com/utafrali/ReviewGo/pkg/database"
	apperrors "github.com/utafrali/ReviewGo/pkg/errors"
)

const adColumns = `id, company_id, title, content, image_url, target_url, category, status,
		       start_date, end_date, views, clicks, created_at, updated_at`

// AdRepository implements repository.AdRepository using PostgreSQL.
type AdRepository struct {
	db database.DBTX
}

// NewAdRepository creates a new PostgreSQL-backed ad repository.
func NewAdRepository(db database.DBTX) *AdRepository {
	return &AdRepository{db: traced(db)}
}

// Create inserts a new ad.
func (r *AdRepository) Create(ctx context.Context, ad *domain.Ad) error {
	query := `
		INSERT INTO ads (id, company_id, title, content, image_url, target_url, category, status,
		                 start_date, end_date, views, clicks, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.Exec(ctx, query,
		ad.ID,
		ad.CompanyID,
		ad.Title,
		ad.Content,
		ad.ImageURL,
		ad.TargetURL,
		ad.Category,
		ad.Status,
		ad.StartDate,
		ad.EndDate,
		ad.Views,
		ad.Clicks,
		ad.CreatedAt,
		ad.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperrors.NotFound("company", ad.CompanyID)
		}
		return fmt.Errorf("insert ad: %w", err)
	}
	return nil
}

// GetByID retrieves an ad by id.
func (r *AdRepository) GetByID(ctx context.Context, id string) (*domain.Ad, error) {
	var ad domain.Ad
	err := r.db.QueryRow(ctx, `SELECT `+adColumns+` FROM ads WHERE id = $1`, id).Scan(adDest(&ad)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("ad", id)
		}
		return nil, fmt.Errorf("get ad: %w", err)
	}
	ad.ComputeCTR()
	return &ad, nil
}

// ListByCompany returns a company's ads, newest first.
func (r *AdRepository) ListByCompany(ctx context.Context, companyID string) ([]domain.Ad, error) {
	ads, err := r.queryAds(ctx,
		`SELECT `+adColumns+` FROM ads WHERE company_id = $1 ORDER BY created_at DESC`,
		companyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list company ads: %w", err)
	}
	return ads, nil
}

// ListRunning returns active ads whose window contains now, optionally
// restricted to a category.
func (r *AdRepository) ListRunning(ctx context.Context, category *string, now time.Time, limit int) ([]domain.Ad, error) {
	ads, err := r.queryAds(ctx, `
		SELECT `+adColumns+`
		FROM ads
		WHERE status = 'active' AND start_date <= $1 AND end_date > $1
		  AND ($2::text IS NULL OR category = $2)
		ORDER BY start_date DESC
		LIMIT $3`,
		now, category, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list running ads: %w", err)
	}
	return ads, nil
}

// UpdateStatus sets the status of an ad.
func (r *AdRepository) UpdateStatus(ctx context.Context, id string, status domain.AdStatus) error {
	ct, err := r.db.Exec(ctx, `UPDATE ads SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update ad status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("ad", id)
	}
	return nil
}

// IncrementViews counts one impression of a running ad.
func (r *AdRepository) IncrementViews(ctx context.Context, id string, now time.Time) error {
	return r.increment(ctx, "views", id, now)
}

// IncrementClicks counts one click on a running ad.
func (r *AdRepository) IncrementClicks(ctx context.Context, id string, now time.Time) error {
	return r.increment(ctx, "clicks", id, now)
}

func (r *AdRepository) increment(ctx context.Context, column, id string, now time.Time) error {
	query := fmt.Sprintf(`
		UPDATE ads SET %[1]s = %[1]s + 1
		WHERE id = $1 AND status = 'active' AND start_date <= $2 AND end_date > $2`, column)

	ct, err := r.db.Exec(ctx, query, id, now)
	if err != nil {
		return fmt.Errorf("increment ad %s: %w", column, err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("running ad", id)
	}
	return nil
}

// ExpireEnded moves active ads past their end date to expired.
func (r *AdRepository) ExpireEnded(ctx context.Context, now time.Time) (int64, error) {
	ct, err := r.db.Exec(ctx,
		`UPDATE ads SET status = 'expired', updated_at = NOW() WHERE status = 'active' AND end_date <= $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("expire ads: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (r *AdRepository) queryAds(ctx context.Context, query string, args ...any) ([]domain.Ad, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ads := []domain.Ad{}
	for rows.Next() {
		var ad domain.Ad
		if err := rows.Scan(adDest(&ad)...); err != nil {
			return nil, fmt.Errorf("scan ad row: %w", err)
		}
		ad.ComputeCTR()
		ads = append(ads, ad)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ad rows: %w", err)
	}
	return ads, nil
}

func adDest(ad *domain.Ad) []any {
	return []any{
		&ad.ID,
		&ad.CompanyID,
		&ad.Title,
		&ad.Content,
		&ad.ImageURL,
		&ad.TargetURL,
		&ad.Category,
		&ad.Status,
		&ad.StartDate,
		&ad.EndDate,
		&ad.Views,
		&ad.Clicks,
		&ad.CreatedAt,
		&ad.UpdatedAt,
	}
}
