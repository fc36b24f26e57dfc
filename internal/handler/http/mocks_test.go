package http

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/utafrali/ReviewGo/internal/domain"
	"github.com/utafrali/ReviewGo/internal/repository"
)

// --- Mock Repositories ---

type mockReviewRepository struct {
	mock.Mock
}

func (m *mockReviewRepository) Create(ctx context.Context, rv *domain.Review) error {
	return m.Called(ctx, rv).Error(0)
}

func (m *mockReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *mockReviewRepository) GetForUpdate(ctx context.Context, id string) (*domain.Review, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *mockReviewRepository) List(ctx context.Context, filter domain.ReviewFilter) ([]domain.Review, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Review), args.Int(1), args.Error(2)
}

func (m *mockReviewRepository) UpdateStatus(ctx context.Context, id string, status domain.ReviewStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *mockReviewRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockReviewRepository) LockAddress(ctx context.Context, ipHash string) error {
	return m.Called(ctx, ipHash).Error(0)
}

func (m *mockReviewRepository) CountByAddressSince(ctx context.Context, ipHash string, since time.Time) (int, error) {
	args := m.Called(ctx, ipHash, since)
	return args.Int(0), args.Error(1)
}

func (m *mockReviewRepository) AddReply(ctx context.Context, reply *domain.Reply) error {
	return m.Called(ctx, reply).Error(0)
}

func (m *mockReviewRepository) AddReport(ctx context.Context, report *domain.Report) (int, error) {
	args := m.Called(ctx, report)
	return args.Int(0), args.Error(1)
}

func (m *mockReviewRepository) ToggleHelpful(ctx context.Context, reviewID, userID string) (bool, int, error) {
	args := m.Called(ctx, reviewID, userID)
	return args.Bool(0), args.Int(1), args.Error(2)
}

func (m *mockReviewRepository) RatingPoints(ctx context.Context, companyID string, from, to time.Time) ([]domain.RatingPoint, error) {
	args := m.Called(ctx, companyID, from, to)
	return args.Get(0).([]domain.RatingPoint), args.Error(1)
}

func (m *mockReviewRepository) ListByCompany(ctx context.Context, companyID string) ([]domain.Review, error) {
	args := m.Called(ctx, companyID)
	return args.Get(0).([]domain.Review), args.Error(1)
}

func (m *mockReviewRepository) ListApproved(ctx context.Context, afterID string, limit int) ([]domain.Review, error) {
	args := m.Called(ctx, afterID, limit)
	return args.Get(0).([]domain.Review), args.Error(1)
}

func (m *mockReviewRepository) ScrubAddresses(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

type mockCompanyRepository struct {
	mock.Mock
}

func (m *mockCompanyRepository) Create(ctx context.Context, c *domain.Company) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockCompanyRepository) GetByID(ctx context.Context, id string) (*domain.Company, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Company), args.Error(1)
}

func (m *mockCompanyRepository) GetBySlug(ctx context.Context, slug string) (*domain.Company, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Company), args.Error(1)
}

func (m *mockCompanyRepository) LockForUpdate(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockCompanyRepository) List(ctx context.Context, filter domain.CompanyFilter) ([]domain.Company, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.Company), args.Int(1), args.Error(2)
}

func (m *mockCompanyRepository) Update(ctx context.Context, c *domain.Company) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockCompanyRepository) UpdateStatus(ctx context.Context, id string, status domain.CompanyStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *mockCompanyRepository) SetVerified(ctx context.Context, id string, verified bool) error {
	return m.Called(ctx, id, verified).Error(0)
}

func (m *mockCompanyRepository) RecomputeRating(ctx context.Context, id string) (*domain.RatingAggregate, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RatingAggregate), args.Error(1)
}

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Upsert(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type mockAdRepository struct {
	mock.Mock
}

func (m *mockAdRepository) Create(ctx context.Context, ad *domain.Ad) error {
	return m.Called(ctx, ad).Error(0)
}

func (m *mockAdRepository) GetByID(ctx context.Context, id string) (*domain.Ad, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ad), args.Error(1)
}

func (m *mockAdRepository) ListByCompany(ctx context.Context, companyID string) ([]domain.Ad, error) {
	args := m.Called(ctx, companyID)
	return args.Get(0).([]domain.Ad), args.Error(1)
}

func (m *mockAdRepository) ListRunning(ctx context.Context, category *string, now time.Time, limit int) ([]domain.Ad, error) {
	args := m.Called(ctx, category, now, limit)
	return args.Get(0).([]domain.Ad), args.Error(1)
}

func (m *mockAdRepository) UpdateStatus(ctx context.Context, id string, status domain.AdStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *mockAdRepository) IncrementViews(ctx context.Context, id string, now time.Time) error {
	return m.Called(ctx, id, now).Error(0)
}

func (m *mockAdRepository) IncrementClicks(ctx context.Context, id string, now time.Time) error {
	return m.Called(ctx, id, now).Error(0)
}

func (m *mockAdRepository) ExpireEnded(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type mockAnalyticsRepository struct {
	mock.Mock
}

func (m *mockAnalyticsRepository) AdminDaily(ctx context.Context, from, to time.Time) ([]domain.AdminDay, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).([]domain.AdminDay), args.Error(1)
}

// fakeTx runs fn directly against the mock repositories.
type fakeTx struct {
	repos repository.Repositories
}

func (f *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	return fn(ctx, f.repos)
}
