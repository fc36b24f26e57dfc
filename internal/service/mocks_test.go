package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/utafrali/ReviewGo/internal/cache"
	"github.com/utafrali/ReviewGo/internal/domain"
	"github.com/utafrali/ReviewGo/internal/notify"
	"github.com/utafrali/ReviewGo/internal/repository"
	"github.com/utafrali/ReviewGo/internal/search/memory"
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

// --- Fakes ---

// fakeTx runs fn directly against the mock repositories and records
// whether the transaction would have committed.
type fakeTx struct {
	repos     repository.Repositories
	commits   int
	rollbacks int
}

func (f *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	if err := fn(ctx, f.repos); err != nil {
		f.rollbacks++
		return err
	}
	f.commits++
	return nil
}

// fakeCache is an in-process ReviewCache keyed like the Redis one.
type fakeCache struct {
	mu          sync.Mutex
	entries     map[string][]byte
	invalidated []string
	err         error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (c *fakeCache) get(key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	data, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dst)
}

func (c *fakeCache) set(key string, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.entries[key] = data
	return nil
}

func (c *fakeCache) GetList(_ context.Context, f domain.ReviewFilter, dst any) (bool, error) {
	return c.get(cache.ListKey(f), dst)
}

func (c *fakeCache) SetList(_ context.Context, f domain.ReviewFilter, v any) error {
	return c.set(cache.ListKey(f), v)
}

func (c *fakeCache) GetAnalytics(_ context.Context, companyID string, tr domain.TimeRange, dst any) (bool, error) {
	return c.get(cache.AnalyticsKey(companyID, tr), dst)
}

func (c *fakeCache) SetAnalytics(_ context.Context, companyID string, tr domain.TimeRange, v any) error {
	return c.set(cache.AnalyticsKey(companyID, tr), v)
}

func (c *fakeCache) InvalidateCompany(_ context.Context, companyID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, companyID)
	if c.err != nil {
		return c.err
	}
	c.entries = make(map[string][]byte)
	return nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *fakeNotifier) Publish(_ context.Context, event notify.Event) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return true
}

func (n *fakeNotifier) types() []notify.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.EventType, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var (
	fixedNow  = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	errDBDown = errors.New("connection refused")
)

const (
	companyID = "7f1c6b1e-3b5e-4a57-9d43-0d2f2b8a1c01"
	ownerID   = "owner-1"
	authorID  = "author-1"
	readerID  = "reader-1"
	adminID   = "admin-1"
)

var (
	owner  = Actor{UserID: ownerID, Email: "owner@example.com", Name: "Owner"}
	author = Actor{UserID: authorID, Email: "author@example.com", Name: "Author"}
	reader = Actor{UserID: readerID, Email: "reader@example.com", Name: "Reader"}
	admin  = Actor{UserID: adminID, Admin: true}
)

type reviewFixture struct {
	reviews   *mockReviewRepository
	companies *mockCompanyRepository
	users     *mockUserRepository
	tx        *fakeTx
	cache     *fakeCache
	search    *memory.Engine
	notifier  *fakeNotifier
	deps      ReviewDeps
}

func newReviewFixture(t *testing.T) *reviewFixture {
	t.Helper()
	f := &reviewFixture{
		reviews:   new(mockReviewRepository),
		companies: new(mockCompanyRepository),
		users:     new(mockUserRepository),
		cache:     newFakeCache(),
		search:    memory.New(),
		notifier:  &fakeNotifier{},
	}
	repos := repository.Repositories{Reviews: f.reviews, Companies: f.companies, Users: f.users}
	f.tx = &fakeTx{repos: repos}

	hasher, err := NewAddressHasher("test-key")
	if err != nil {
		t.Fatal(err)
	}
	f.deps = ReviewDeps{
		Repos:    repos,
		Tx:       f.tx,
		Cache:    f.cache,
		Search:   f.search,
		Notifier: f.notifier,
		Hasher:   hasher,
		Policy:   domain.DefaultReviewPolicy(),
		Logger:   newTestLogger(),
	}
	t.Cleanup(func() {
		f.reviews.AssertExpectations(t)
		f.companies.AssertExpectations(t)
		f.users.AssertExpectations(t)
	})
	return f
}

func (f *reviewFixture) reviewService() *ReviewService {
	svc := NewReviewService(f.deps)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func (f *reviewFixture) moderationService() *ModerationService {
	svc := NewModerationService(f.deps)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func activeCompany() *domain.Company {
	return &domain.Company{
		ID:       companyID,
		OwnerID:  ownerID,
		Name:     "Bakery",
		Slug:     "bakery",
		Category: "food",
		Status:   domain.CompanyActive,
	}
}

func sampleReview(status domain.ReviewStatus) *domain.Review {
	return &domain.Review{
		ID:        "rev-1",
		CompanyID: companyID,
		UserID:    authorID,
		Rating:    5,
		Text:      "Great service, fast delivery",
		Status:    status,
		Replies:   []domain.Reply{},
		CreatedAt: fixedNow.Add(-time.Hour),
		UpdatedAt: fixedNow.Add(-time.Hour),
	}
}

func strPtr(s string) *string { return &s }
