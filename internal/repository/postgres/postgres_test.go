package postgres

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/ReviewGo/internal/domain"
	"github.com/utafrali/ReviewGo/internal/repository"
	"github.com/utafrali/ReviewGo/pkg/database"
	apperrors "github.com/utafrali/ReviewGo/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────────

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	return database.NewMockPool(t)
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
func intPtr(n int) *int       { return &n }

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

var reviewCols = []string{
	"id", "company_id", "user_id", "author_name", "rating", "text", "status",
	"report_count", "helpful_count", "ip_address", "ip_hash", "created_at", "updated_at",
}

var replyCols = []string{"id", "review_id", "company_id", "user_id", "text", "created_at"}

func sampleReview() domain.Review {
	return domain.Review{
		ID:         "11111111-1111-1111-1111-111111111111",
		CompanyID:  "22222222-2222-2222-2222-222222222222",
		UserID:     "user-1",
		AuthorName: "Ayşe",
		Rating:     5,
		Text:       "Great service, fast delivery",
		Status:     domain.ReviewPending,
		IPAddress:  strPtr("203.0.113.7"),
		IPHash:     "hash-1",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func reviewRow(r domain.Review) []any {
	return []any{
		r.ID, r.CompanyID, r.UserID, r.AuthorName, r.Rating, r.Text, r.Status,
		r.ReportCount, r.HelpfulCount, r.IPAddress, r.IPHash, r.CreatedAt, r.UpdatedAt,
	}
}

var companyCols = []string{
	"id", "owner_id", "name", "slug", "description", "category", "email", "phone", "website", "address",
	"average_rating", "total_reviews", "status", "is_verified", "created_at", "updated_at",
}

func sampleCompany() domain.Company {
	return domain.Company{
		ID:            "22222222-2222-2222-2222-222222222222",
		OwnerID:       "owner-1",
		Name:          "Acme Bakery",
		Slug:          "acme-bakery",
		Description:   "Fresh bread",
		Category:      "food",
		Email:         strPtr("hello@acme.example"),
		AverageRating: 4.5,
		TotalReviews:  2,
		Status:        domain.CompanyActive,
		IsVerified:    true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func companyRow(c domain.Company) []any {
	return []any{
		c.ID, c.OwnerID, c.Name, c.Slug, c.Description, c.Category, c.Email, c.Phone, c.Website, c.Address,
		c.AverageRating, c.TotalReviews, c.Status, c.IsVerified, c.CreatedAt, c.UpdatedAt,
	}
}

var adCols = []string{
	"id", "company_id", "title", "content", "image_url", "target_url", "category", "status",
	"start_date", "end_date", "views", "clicks", "created_at", "updated_at",
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

// ─────────────────────────────────────────────────────────────────────────────
// ReviewRepository
// ─────────────────────────────────────────────────────────────────────────────

func TestReviewRepository_Create_Success(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	rv := sampleReview()
	mock.ExpectExec("INSERT INTO reviews").
		WithArgs(rv.ID, rv.CompanyID, rv.UserID, rv.Rating, rv.Text, rv.Status,
			rv.IPAddress, rv.IPHash, rv.CreatedAt, rv.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), &rv))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_Create_DuplicateReview(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	rv := sampleReview()
	mock.ExpectExec("INSERT INTO reviews").
		WillReturnError(uniqueViolation("reviews_user_company_key"))

	err := repo.Create(context.Background(), &rv)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, domain.CodeDuplicateReview, appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_Create_UnknownCompany(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	rv := sampleReview()
	mock.ExpectExec("INSERT INTO reviews").
		WillReturnError(&pgconn.PgError{Code: "23503"})

	err := repo.Create(context.Background(), &rv)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestReviewRepository_GetByID_WithReplies(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	rv := sampleReview()
	mock.ExpectQuery("SELECT .+ FROM reviews r .+ WHERE r.id").
		WithArgs(rv.ID).
		WillReturnRows(pgxmock.NewRows(reviewCols).AddRow(reviewRow(rv)...))
	mock.ExpectQuery("FROM review_replies").
		WithArgs([]string{rv.ID}).
		WillReturnRows(pgxmock.NewRows(replyCols).
			AddRow("reply-1", rv.ID, rv.CompanyID, "owner-1", "Thank you!", now))

	got, err := repo.GetByID(context.Background(), rv.ID)
	require.NoError(t, err)
	assert.Equal(t, rv.Text, got.Text)
	assert.Equal(t, domain.ReviewPending, got.Status)
	require.Len(t, got.Replies, 1)
	assert.Equal(t, "Thank you!", got.Replies[0].Text)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_GetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM reviews r").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestReviewRepository_GetForUpdate_LocksRow(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	rv := sampleReview()
	mock.ExpectQuery("FOR UPDATE OF r").
		WithArgs(rv.ID).
		WillReturnRows(pgxmock.NewRows(reviewCols).AddRow(reviewRow(rv)...))

	got, err := repo.GetForUpdate(context.Background(), rv.ID)
	require.NoError(t, err)
	assert.Equal(t, rv.ID, got.ID)
	assert.Empty(t, got.Replies)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_List_AppliesFilters(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	rv := sampleReview()
	status := domain.ReviewApproved
	filter := domain.ReviewFilter{
		CompanyID: strPtr(rv.CompanyID),
		Status:    &status,
		Rating:    intPtr(5),
		Verified:  boolPtr(true),
		Page:      2,
		PerPage:   10,
	}

	mock.ExpectQuery("r.company_id = \\$1 AND r.status = \\$2 AND r.rating = \\$3 AND c.is_verified = \\$4").
		WithArgs(rv.CompanyID, status, 5, true, 10, 10).
		WillReturnRows(pgxmock.NewRows(append(reviewCols, "total_count")).
			AddRow(append(reviewRow(rv), 11)...))
	mock.ExpectQuery("FROM review_replies").
		WithArgs([]string{rv.ID}).
		WillReturnRows(pgxmock.NewRows(replyCols))

	reviews, total, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	require.Len(t, reviews, 1)
	assert.NotNil(t, reviews[0].Replies)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_List_EmptySkipsReplies(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("FROM reviews r").
		WithArgs(20, 0).
		WillReturnRows(pgxmock.NewRows(append(reviewCols, "total_count")))

	reviews, total, err := repo.List(context.Background(), domain.ReviewFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, reviews)
	assert.Empty(t, reviews)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_UpdateStatus_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectExec("UPDATE reviews SET status").
		WithArgs(domain.ReviewApproved, "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateStatus(context.Background(), "missing", domain.ReviewApproved)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestReviewRepository_LockAndCountAddress(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	since := now.Add(-24 * time.Hour)
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs("hash-1").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM reviews WHERE ip_hash").
		WithArgs("hash-1", since).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	require.NoError(t, repo.LockAddress(context.Background(), "hash-1"))
	n, err := repo.CountByAddressSince(context.Background(), "hash-1", since)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_AddReport(t *testing.T) {
	report := &domain.Report{ID: "rep-1", ReviewID: "rev-1", UserID: "u2", Reason: "spam", CreatedAt: now}

	t.Run("first report increments count", func(t *testing.T) {
		mock := newMock(t)
		defer mock.Close()
		repo := NewReviewRepository(mock)

		mock.ExpectExec("INSERT INTO review_reports").
			WithArgs(report.ID, report.ReviewID, report.UserID, report.Reason, report.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectQuery("UPDATE reviews SET report_count = report_count \\+ 1").
			WithArgs(report.ReviewID).
			WillReturnRows(pgxmock.NewRows([]string{"report_count"}).AddRow(3))

		count, err := repo.AddReport(context.Background(), report)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second report by same user is rejected", func(t *testing.T) {
		mock := newMock(t)
		defer mock.Close()
		repo := NewReviewRepository(mock)

		mock.ExpectExec("INSERT INTO review_reports").
			WillReturnResult(pgxmock.NewResult("INSERT", 0))

		_, err := repo.AddReport(context.Background(), report)
		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, domain.CodeDuplicateReport, appErr.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReviewRepository_ToggleHelpful(t *testing.T) {
	t.Run("adds vote when absent", func(t *testing.T) {
		mock := newMock(t)
		defer mock.Close()
		repo := NewReviewRepository(mock)

		mock.ExpectExec("DELETE FROM review_helpful_votes").
			WithArgs("rev-1", "u1").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mock.ExpectExec("INSERT INTO review_helpful_votes").
			WithArgs("rev-1", "u1").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectQuery("SET helpful_count").
			WithArgs("rev-1").
			WillReturnRows(pgxmock.NewRows([]string{"helpful_count"}).AddRow(1))

		voted, count, err := repo.ToggleHelpful(context.Background(), "rev-1", "u1")
		require.NoError(t, err)
		assert.True(t, voted)
		assert.Equal(t, 1, count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("removes existing vote", func(t *testing.T) {
		mock := newMock(t)
		defer mock.Close()
		repo := NewReviewRepository(mock)

		mock.ExpectExec("DELETE FROM review_helpful_votes").
			WithArgs("rev-1", "u1").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectQuery("SET helpful_count").
			WithArgs("rev-1").
			WillReturnRows(pgxmock.NewRows([]string{"helpful_count"}).AddRow(0))

		voted, count, err := repo.ToggleHelpful(context.Background(), "rev-1", "u1")
		require.NoError(t, err)
		assert.False(t, voted)
		assert.Zero(t, count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReviewRepository_RatingPoints(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	from := now.AddDate(0, 0, -7)
	mock.ExpectQuery("SELECT rating, created_at").
		WithArgs("c1", from, now).
		WillReturnRows(pgxmock.NewRows([]string{"rating", "created_at"}).
			AddRow(5, now.Add(-time.Hour)).
			AddRow(2, now.Add(-2*time.Hour)))

	points, err := repo.RatingPoints(context.Background(), "c1", from, now)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 5, points[0].Rating)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_ScrubAddresses(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	cutoff := now.Add(-48 * time.Hour)
	mock.ExpectExec("SET ip_address = NULL").
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("UPDATE", 7))

	n, err := repo.ScrubAddresses(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_ListApproved(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	rv := sampleReview()
	rv.Status = domain.ReviewApproved
	mock.ExpectQuery("r.status = 'approved'").
		WithArgs("", 100).
		WillReturnRows(pgxmock.NewRows(reviewCols).AddRow(reviewRow(rv)...))

	got, err := repo.ListApproved(context.Background(), "", 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.ReviewApproved, got[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ─────────────────────────────────────────────────────────────────────────────
// CompanyRepository
// ─────────────────────────────────────────────────────────────────────────────

func TestCompanyRepository_Create_DuplicateSlug(t *testing.T) {
	mock := newMock(t)
	repo := NewCompanyRepository(mock)

	c := sampleCompany()
	mock.ExpectExec("INSERT INTO companies").
		WillReturnError(uniqueViolation("companies_slug_key"))

	err := repo.Create(context.Background(), &c)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestCompanyRepository_GetBySlug(t *testing.T) {
	mock := newMock(t)
	repo := NewCompanyRepository(mock)

	c := sampleCompany()
	mock.ExpectQuery("SELECT .+ FROM companies WHERE slug").
		WithArgs(c.Slug).
		WillReturnRows(pgxmock.NewRows(companyCols).AddRow(companyRow(c)...))

	got, err := repo.GetBySlug(context.Background(), c.Slug)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, "hello@acme.example", *got.Email)
	assert.Nil(t, got.Phone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompanyRepository_LockForUpdate_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewCompanyRepository(mock)

	mock.ExpectQuery("SELECT id FROM companies WHERE id = \\$1 FOR UPDATE").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	assert.ErrorIs(t, repo.LockForUpdate(context.Background(), "missing"), apperrors.ErrNotFound)
}

func TestCompanyRepository_RecomputeRating(t *testing.T) {
	mock := newMock(t)
	repo := NewCompanyRepository(mock)

	mock.ExpectQuery(`UPDATE companies c(.|\n)+COALESCE\(AVG\(rating\)::float8, 0\) AS average(.|\n)+status = 'approved'`).
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows([]string{"average_rating", "total_reviews"}).AddRow(13.0/3, 3))

	agg, err := repo.RecomputeRating(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, &domain.RatingAggregate{AverageRating: 13.0 / 3, TotalReviews: 3}, agg)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompanyRepository_RecomputeRating_StoresUnroundedAverage(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherFunc(
		func(_, actual string) error {
			if strings.Contains(actual, "ROUND(") {
				return fmt.Errorf("aggregate must not be rounded: %s", actual)
			}
			return nil
		},
	)))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("recompute").
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows([]string{"average_rating", "total_reviews"}).AddRow(13.0/3, 3))

	agg, err := NewCompanyRepository(mock).RecomputeRating(context.Background(), "c1")
	require.NoError(t, err)
	assert.InDelta(t, 4.3333333, agg.AverageRating, 1e-6)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompanyRepository_List_Search(t *testing.T) {
	mock := newMock(t)
	repo := NewCompanyRepository(mock)

	c := sampleCompany()
	mock.ExpectQuery("name ILIKE \\$1 OR description ILIKE \\$1").
		WithArgs("%bak%", 20, 0).
		WillReturnRows(pgxmock.NewRows(append(companyCols, "total_count")).
			AddRow(append(companyRow(c), 1)...))

	got, total, err := repo.List(context.Background(), domain.CompanyFilter{Query: strPtr("bak")})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, got, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ─────────────────────────────────────────────────────────────────────────────
// UserRepository, AdRepository, AnalyticsRepository
// ─────────────────────────────────────────────────────────────────────────────

func TestUserRepository_Upsert(t *testing.T) {
	mock := newMock(t)
	repo := NewUserRepository(mock)

	u := &domain.User{ID: "u1", Email: "u1@example.com", Name: "U One", UpdatedAt: now}
	mock.ExpectExec("ON CONFLICT \\(id\\) DO UPDATE").
		WithArgs(u.ID, u.Email, u.Name, u.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Upsert(context.Background(), u))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdRepository_GetByID_ComputesCTR(t *testing.T) {
	mock := newMock(t)
	repo := NewAdRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM ads WHERE id").
		WithArgs("ad-1").
		WillReturnRows(pgxmock.NewRows(adCols).AddRow(
			"ad-1", "c1", "Spring sale", "20% off", nil, "https://acme.example", nil, domain.AdActive,
			now, now.AddDate(0, 1, 0), int64(200), int64(10), now, now,
		))

	ad, err := repo.GetByID(context.Background(), "ad-1")
	require.NoError(t, err)
	assert.Equal(t, 5.0, ad.CTR)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdRepository_IncrementClicks_NotRunning(t *testing.T) {
	mock := newMock(t)
	repo := NewAdRepository(mock)

	mock.ExpectExec("UPDATE ads SET clicks = clicks \\+ 1").
		WithArgs("ad-1", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.IncrementClicks(context.Background(), "ad-1", now)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdRepository_ExpireEnded(t *testing.T) {
	mock := newMock(t)
	repo := NewAdRepository(mock)

	mock.ExpectExec("SET status = 'expired'").
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := repo.ExpireEnded(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestAnalyticsRepository_AdminDaily(t *testing.T) {
	mock := newMock(t)
	repo := NewAnalyticsRepository(mock)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	mock.ExpectQuery("generate_series").
		WithArgs(from, to).
		WillReturnRows(pgxmock.NewRows([]string{"day", "users", "companies", "reviews", "avg"}).
			AddRow("2026-03-01", 3, 1, 4, 4.25).
			AddRow("2026-03-02", 0, 0, 0, 0.0))

	days, err := repo.AdminDaily(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, domain.AdminDay{Date: "2026-03-01", NewUsers: 3, NewCompanies: 1, NewReviews: 4, AverageRating: 4.25}, days[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ─────────────────────────────────────────────────────────────────────────────
// Store
// ─────────────────────────────────────────────────────────────────────────────

func TestStore_WithinTx_Commits(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectExec("UPDATE reviews SET status").
		WithArgs(domain.ReviewApproved, "rev-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery("UPDATE companies c").
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows([]string{"average_rating", "total_reviews"}).AddRow(5.0, 1))
	mock.ExpectCommit()

	err := store.WithinTx(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Reviews.UpdateStatus(ctx, "rev-1", domain.ReviewApproved); err != nil {
			return err
		}
		_, err := repos.Companies.RecomputeRating(ctx, "c1")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithinTx_RollsBackOnError(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := store.WithinTx(context.Background(), func(context.Context, repository.Repositories) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithinTx_RetriesDeadlock(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("hash-1").
		WillReturnError(&pgconn.PgError{Code: "40P01", Message: "deadlock detected"})
	mock.ExpectRollback()
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WithArgs("hash-1").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectCommit()

	attempts := 0
	err := store.WithinTx(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
		attempts++
		return repos.Reviews.LockAddress(ctx, "hash-1")
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithinTx_GivesUpAfterRepeatedSerializationFailures(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)

	for range maxTxAttempts {
		mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
		mock.ExpectRollback()
	}

	attempts := 0
	err := store.WithinTx(context.Background(), func(context.Context, repository.Repositories) error {
		attempts++
		return fmt.Errorf("lock company: %w", &pgconn.PgError{Code: "40001"})
	})
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "40001", pgErr.Code)
	assert.Equal(t, maxTxAttempts, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrations_Embedded(t *testing.T) {
	names, err := fs.Glob(Migrations(), "*.up.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"001_create_users_companies.up.sql",
		"002_create_reviews.up.sql",
		"003_create_ads.up.sql",
	}, names)

	body, err := fs.ReadFile(Migrations(), "002_create_reviews.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "UNIQUE (user_id, company_id)")
	assert.Contains(t, string(body), "UNIQUE (review_id, user_id)")
}

func TestOperation(t *testing.T) {
	assert.Equal(t, "select", operation("\n\t\tSELECT 1"))
	assert.Equal(t, "query", operation("   "))
}
