package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/ReviewGo/internal/domain"
	"github.com/utafrali/ReviewGo/internal/notify"
	"github.com/utafrali/ReviewGo/internal/search"
	apperrors "github.com/utafrali/ReviewGo/pkg/errors"
)

const clientIP = "203.0.113.7"

func indexedIDs(t *testing.T, f *reviewFixture) []string {
	t.Helper()
	res, err := f.search.Search(context.Background(), &search.Query{PerPage: 100})
	require.NoError(t, err)
	ids := make([]string, 0, len(res.Reviews))
	for _, d := range res.Reviews {
		ids = append(ids, d.ID)
	}
	return ids
}

func validInput() *CreateReviewInput {
	return &CreateReviewInput{
		CompanyID: companyID,
		Rating:    5,
		Text:      "Great service, fast delivery",
		IPAddress: clientIP,
	}
}

func TestCreateReview_Success(t *testing.T) {
	f := newReviewFixture(t)
	svc := f.reviewService()
	hash := f.deps.Hasher.Hash(clientIP)

	f.companies.On("LockForUpdate", mock.Anything, companyID).Return(nil)
	f.companies.On("GetByID", mock.Anything, companyID).Return(activeCompany(), nil)
	f.users.On("Upsert", mock.Anything, author.User()).Return(nil)
	f.reviews.On("LockAddress", mock.Anything, hash).Return(nil)
	f.reviews.On("CountByAddressSince", mock.Anything, hash, fixedNow.Add(-24*time.Hour)).Return(4, nil)
	f.reviews.On("Create", mock.Anything, mock.AnythingOfType("*domain.Review")).Return(nil)
	f.companies.On("RecomputeRating", mock.Anything, companyID).Return(&domain.RatingAggregate{}, nil)

	rv, err := svc.CreateReview(context.Background(), author, validInput())

	require.NoError(t, err)
	assert.NotEmpty(t, rv.ID)
	assert.Equal(t, domain.ReviewPending, rv.Status)
	assert.Equal(t, authorID, rv.UserID)
	assert.Equal(t, hash, rv.IPHash)
	require.NotNil(t, rv.IPAddress)
	assert.Equal(t, clientIP, *rv.IPAddress)
	assert.Equal(t, fixedNow, rv.CreatedAt)

	assert.Equal(t, 1, f.tx.commits)
	assert.Equal(t, []string{companyID}, f.cache.invalidated)
	assert.Equal(t, []notify.EventType{notify.EventNewReview}, f.notifier.types())
	assert.Empty(t, indexedIDs(t, f), "pending reviews are not searchable")
}

func TestCreateReview_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input *CreateReviewInput
	}{
		{"rating too low", &CreateReviewInput{CompanyID: companyID, Rating: 0, Text: "Great service, fast delivery"}},
		{"rating too high", &CreateReviewInput{CompanyID: companyID, Rating: 6, Text: "Great service, fast delivery"}},
		{"text too short", &CreateReviewInput{CompanyID: companyID, Rating: 3, Text: "meh"}},
		{"missing company", &CreateReviewInput{Rating: 3, Text: "Great service, fast delivery"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReviewFixture(t)

			_, err := f.reviewService().CreateReview(context.Background(), author, tt.input)

			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Zero(t, f.tx.commits+f.tx.rollbacks, "no transaction is opened for invalid input")
		})
	}
}

func TestCreateReview_RateLimited(t *testing.T) {
	f := newReviewFixture(t)
	hash := f.deps.Hasher.Hash(clientIP)

	f.companies.On("LockForUpdate", mock.Anything, companyID).Return(nil)
	f.companies.On("GetByID", mock.Anything, companyID).Return(activeCompany(), nil)
	f.users.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	f.reviews.On("LockAddress", mock.Anything, hash).Return(nil)
	f.reviews.On("CountByAddressSince", mock.Anything, hash, mock.Anything).Return(5, nil)

	_, err := f.reviewService().CreateReview(context.Background(), author, validInput())

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrRateLimited)
	assert.Equal(t, 429, apperrors.HTTPStatus(err))
	f.reviews.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.Equal(t, 1, f.tx.rollbacks)
	assert.Empty(t, f.notifier.types())
	assert.Empty(t, f.cache.invalidated)
}

func TestCreateReview_Duplicate(t *testing.T) {
	f := newReviewFixture(t)

	f.companies.On("LockForUpdate", mock.Anything, companyID).Return(nil)
	f.companies.On("GetByID", mock.Anything, companyID).Return(activeCompany(), nil)
	f.users.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	f.reviews.On("LockAddress", mock.Anything, mock.Anything).Return(nil)
	f.reviews.On("CountByAddressSince", mock.Anything, mock.Anything, mock.Anything).Return(0, nil)
	f.reviews.On("Create", mock.Anything, mock.Anything).Return(domain.ErrDuplicateReview())

	_, err := f.reviewService().CreateReview(context.Background(), author, validInput())

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, domain.CodeDuplicateReview, appErr.Code)
	assert.Equal(t, 409, appErr.Status)
	f.companies.AssertNotCalled(t, "RecomputeRating", mock.Anything, mock.Anything)
	assert.Empty(t, f.notifier.types())
}

func TestCreateReview_CompanyErrors(t *testing.T) {
	t.Run("missing company", func(t *testing.T) {
		f := newReviewFixture(t)
		f.companies.On("LockForUpdate", mock.Anything, companyID).Return(apperrors.NotFound("company", companyID))

		_, err := f.reviewService().CreateReview(context.Background(), author, validInput())
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		f.reviews.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("suspended company", func(t *testing.T) {
		f := newReviewFixture(t)
		c := activeCompany()
		c.Status = domain.CompanySuspended
		f.companies.On("LockForUpdate", mock.Anything, companyID).Return(nil)
		f.companies.On("GetByID", mock.Anything, companyID).Return(c, nil)

		_, err := f.reviewService().CreateReview(context.Background(), author, validInput())
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})
}

func TestCreateReview_LocksCompanyBeforeInsert(t *testing.T) {
	f := newReviewFixture(t)
	var calls []string
	record := func(name string) func(mock.Arguments) {
		return func(mock.Arguments) { calls = append(calls, name) }
	}

	f.companies.On("LockForUpdate", mock.Anything, companyID).Return(nil).Run(record("lock company"))
	f.companies.On("GetByID", mock.Anything, companyID).Return(activeCompany(), nil).Run(record("get company"))
	f.users.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	f.reviews.On("LockAddress", mock.Anything, mock.Anything).Return(nil).Run(record("lock address"))
	f.reviews.On("CountByAddressSince", mock.Anything, mock.Anything, mock.Anything).Return(0, nil)
	f.reviews.On("Create", mock.Anything, mock.Anything).Return(nil).Run(record("insert"))
	f.companies.On("RecomputeRating", mock.Anything, companyID).Return(&domain.RatingAggregate{}, nil).Run(record("recompute"))

	_, err := f.reviewService().CreateReview(context.Background(), author, validInput())

	require.NoError(t, err)
	assert.Equal(t, []string{"lock company", "get company", "lock address", "insert", "recompute"}, calls)
	f.companies.AssertNumberOfCalls(t, "LockForUpdate", 1)
}

func TestCreateReview_WithoutAddressSkipsLimit(t *testing.T) {
	f := newReviewFixture(t)
	input := validInput()
	input.IPAddress = ""

	f.companies.On("LockForUpdate", mock.Anything, companyID).Return(nil)
	f.companies.On("GetByID", mock.Anything, companyID).Return(activeCompany(), nil)
	f.users.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	f.reviews.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.companies.On("RecomputeRating", mock.Anything, companyID).Return(&domain.RatingAggregate{}, nil)

	rv, err := f.reviewService().CreateReview(context.Background(), author, input)

	require.NoError(t, err)
	assert.Nil(t, rv.IPAddress)
	assert.Empty(t, rv.IPHash)
	f.reviews.AssertNotCalled(t, "LockAddress", mock.Anything, mock.Anything)
}

func TestCreateReview_CacheFailureIsNotFatal(t *testing.T) {
	f := newReviewFixture(t)
	f.cache.err = errors.New("redis: connection refused")

	f.companies.On("LockForUpdate", mock.Anything, companyID).Return(nil)
	f.companies.On("GetByID", mock.Anything, companyID).Return(activeCompany(), nil)
	f.users.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	f.reviews.On("LockAddress", mock.Anything, mock.Anything).Return(nil)
	f.reviews.On("CountByAddressSince", mock.Anything, mock.Anything, mock.Anything).Return(0, nil)
	f.reviews.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.companies.On("RecomputeRating", mock.Anything, companyID).Return(&domain.RatingAggregate{}, nil)

	_, err := f.reviewService().CreateReview(context.Background(), author, validInput())

	require.NoError(t, err)
	assert.Equal(t, []string{companyID}, f.cache.invalidated)
}

func TestListReviews_CachesPages(t *testing.T) {
	f := newReviewFixture(t)
	svc := f.reviewService()
	cid := companyID
	status := domain.ReviewApproved

	filter := domain.ReviewFilter{CompanyID: &cid, Status: &status}
	normalized := filter
	normalized.Page, normalized.PerPage = 1, 20

	rows := []domain.Review{*sampleReview(domain.ReviewApproved)}
	f.reviews.On("List", mock.Anything, normalized).Return(rows, 1, nil).Once()

	first, err := svc.ListReviews(context.Background(), filter)
	require.NoError(t, err)
	second, err := svc.ListReviews(context.Background(), filter)
	require.NoError(t, err)

	assert.Equal(t, 1, first.Total)
	assert.Equal(t, 1, first.Page)
	assert.Equal(t, 20, first.PerPage)
	require.Len(t, second.Reviews, 1)
	assert.Equal(t, "rev-1", second.Reviews[0].ID)
	assert.True(t, first.Reviews[0].CreatedAt.Equal(second.Reviews[0].CreatedAt))
	f.reviews.AssertNumberOfCalls(t, "List", 1)
}

func TestListReviews_InvalidationRefetches(t *testing.T) {
	f := newReviewFixture(t)
	svc := f.reviewService()

	f.reviews.On("List", mock.Anything, mock.Anything).Return([]domain.Review{}, 0, nil).Twice()

	_, err := svc.ListReviews(context.Background(), domain.ReviewFilter{})
	require.NoError(t, err)
	require.NoError(t, f.cache.InvalidateCompany(context.Background(), companyID))
	page, err := svc.ListReviews(context.Background(), domain.ReviewFilter{})
	require.NoError(t, err)

	assert.NotNil(t, page.Reviews)
	f.reviews.AssertNumberOfCalls(t, "List", 2)
}

func TestListReviews_RepositoryError(t *testing.T) {
	f := newReviewFixture(t)
	f.reviews.On("List", mock.Anything, mock.Anything).Return([]domain.Review(nil), 0, errDBDown)

	_, err := f.reviewService().ListReviews(context.Background(), domain.ReviewFilter{})
	assert.ErrorIs(t, err, errDBDown)
}

func TestGetReview_NotFound(t *testing.T) {
	f := newReviewFixture(t)
	f.reviews.On("GetByID", mock.Anything, "missing").Return(nil, apperrors.NotFound("review", "missing"))

	_, err := f.reviewService().GetReview(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDeleteReview(t *testing.T) {
	tests := []struct {
		name    string
		actor   Actor
		wantErr error
	}{
		{"author", author, nil},
		{"admin", admin, nil},
		{"someone else", reader, apperrors.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newReviewFixture(t)
			rv := sampleReview(domain.ReviewApproved)
			doc := search.NewDocument(rv)
			require.NoError(t, f.search.Index(context.Background(), &doc))

			f.reviews.On("GetForUpdate", mock.Anything, rv.ID).Return(rv, nil)
			if tt.wantErr == nil {
				f.companies.On("LockForUpdate", mock.Anything, companyID).Return(nil)
				f.reviews.On("Delete", mock.Anything, rv.ID).Return(nil)
				f.companies.On("RecomputeRating", mock.Anything, companyID).Return(&domain.RatingAggregate{}, nil)
			}

			err := f.reviewService().DeleteReview(context.Background(), tt.actor, rv.ID)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				f.reviews.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
				assert.Equal(t, []string{rv.ID}, indexedIDs(t, f))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{companyID}, f.cache.invalidated)
			assert.Empty(t, indexedIDs(t, f))
		})
	}
}

func TestSearchReviews(t *testing.T) {
	f := newReviewFixture(t)
	ctx := context.Background()

	a := sampleReview(domain.ReviewApproved)
	b := sampleReview(domain.ReviewApproved)
	b.ID, b.Text, b.Rating = "rev-2", "Slow delivery and cold food", 2
	require.NoError(t, f.search.BulkIndex(ctx, []search.Document{search.NewDocument(a), search.NewDocument(b)}))

	res, err := f.reviewService().SearchReviews(ctx, &search.Query{Text: "delivery"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)

	minRating := 4
	res, err = f.reviewService().SearchReviews(ctx, &search.Query{Text: "delivery", MinRating: &minRating})
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	assert.Equal(t, "rev-1", res.Reviews[0].ID)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 20, res.PerPage)
}

func TestReindex(t *testing.T) {
	f := newReviewFixture(t)

	a := sampleReview(domain.ReviewApproved)
	b := sampleReview(domain.ReviewApproved)
	b.ID = "rev-2"
	f.reviews.On("ListApproved", mock.Anything, "", reindexBatch).Return([]domain.Review{*a, *b}, nil)

	n, err := f.reviewService().Reindex(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{"rev-1", "rev-2"}, indexedIDs(t, f))
}

func TestReindex_RepositoryError(t *testing.T) {
	f := newReviewFixture(t)
	f.reviews.On("ListApproved", mock.Anything, "", reindexBatch).Return([]domain.Review(nil), errDBDown)

	n, err := f.reviewService().Reindex(context.Background())
	assert.ErrorIs(t, err, errDBDown)
	assert.Zero(t, n)
}

func TestAddressHasher(t *testing.T) {
	h, err := NewAddressHasher("k1")
	require.NoError(t, err)
	other, err := NewAddressHasher("k2")
	require.NoError(t, err)

	assert.Len(t, h.Hash(clientIP), 64)
	assert.Equal(t, h.Hash(clientIP), h.Hash(clientIP))
	assert.NotEqual(t, h.Hash(clientIP), h.Hash("198.51.100.1"))
	assert.NotEqual(t, h.Hash(clientIP), other.Hash(clientIP))

	_, err = NewAddressHasher(string(make([]byte, 65)))
	assert.Error(t, err)
}
