package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/utafrali/ReviewGo/internal/domain"
	"github.com/utafrali/ReviewGo/pkg/database"
)

// AnalyticsRepository implements repository.AnalyticsRepository using PostgreSQL.
type AnalyticsRepository struct {
	db database.DBTX
}

// NewAnalyticsRepository creates a new PostgreSQL-backed analytics repository.
func NewAnalyticsRepository(db database.DBTX) *AnalyticsRepository {
	return &AnalyticsRepository{db: traced(db)}
}

// AdminDaily returns per-day signups, new companies, new reviews and the
// day's average rating for every UTC day in [from, to].
func (r *AnalyticsRepository) AdminDaily(ctx context.Context, from, to time.Time) ([]domain.AdminDay, error) {
	query := `
		SELECT to_char(d AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
		       (SELECT COUNT(*) FROM users     WHERE created_at >= d AND created_at < d + INTERVAL '1 day')::int,
		       (SELECT COUNT(*) FROM companies WHERE created_at >= d AND created_at < d + INTERVAL '1 day')::int,
		       (SELECT COUNT(*) FROM reviews   WHERE created_at >= d AND created_at < d + INTERVAL '1 day')::int,
		       (SELECT COALESCE(ROUND(AVG(rating)::numeric, 2), 0)::float8
		          FROM reviews WHERE created_at >= d AND created_at < d + INTERVAL '1 day')
		FROM generate_series($1::timestamptz, $2::timestamptz, INTERVAL '1 day') AS d
		ORDER BY d`

	rows, err := r.db.Query(ctx, query, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("query admin analytics: %w", err)
	}
	defer rows.Close()

	days := []domain.AdminDay{}
	for rows.Next() {
		var d domain.AdminDay
		if err := rows.Scan(&d.Date, &d.NewUsers, &d.NewCompanies, &d.NewReviews, &d.AverageRating); err != nil {
			return nil, fmt.Errorf("scan admin analytics row: %w", err)
		}
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate admin analytics rows: %w", err)
	}
	return days, nil
}
