package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/ReviewGo/internal/domain"
	"github.com/utafrali/ReviewGo/internal/repository"
	apperrors "github.com/utafrali/ReviewGo/pkg/errors"
	"github.com/utafrali/ReviewGo/pkg/pagination"
	"github.com/utafrali/ReviewGo/pkg/slug"
)

// CompanyPage is one page of a company listing.
type CompanyPage struct {
	Companies []domain.Company
	Total     int
	Page      int
	PerPage   int
}

// CompanyService implements company registration and administration.
type CompanyService struct {
	repos  repository.Repositories
	tx     repository.TxManager
	cache  ReviewCache
	logger *slog.Logger
}

// NewCompanyService creates a new company service.
func NewCompanyService(repos repository.Repositories, tx repository.TxManager, cache ReviewCache, logger *slog.Logger) *CompanyService {
	return &CompanyService{repos: repos, tx: tx, cache: cache, logger: logger}
}

// CreateCompany registers a pending company owned by the actor. Names
// without a Latin transliteration get an id-based slug.
func (s *CompanyService) CreateCompany(ctx context.Context, actor Actor, input *domain.CompanyInput) (*domain.Company, error) {
	id := uuid.New().String()
	companySlug := slug.Generate(input.Name)
	if companySlug == "" {
		companySlug = slug.WithSuffix("", "company", id[:8])
	}

	now := time.Now().UTC()
	c := &domain.Company{
		ID:          id,
		OwnerID:     actor.UserID,
		Name:        input.Name,
		Slug:        companySlug,
		Description: input.Description,
		Category:    input.Category,
		Email:       input.Email,
		Phone:       input.Phone,
		Website:     input.Website,
		Address:     input.Address,
		Status:      domain.CompanyPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Users.Upsert(ctx, actor.User()); err != nil {
			return err
		}
		return repos.Companies.Create(ctx, c)
	})
	if err != nil {
		return nil, fmt.Errorf("create company: %w", err)
	}

	s.logger.InfoContext(ctx, "company created",
		slog.String("company_id", c.ID),
		slog.String("slug", c.Slug),
		slog.String("owner_id", c.OwnerID),
	)
	return c, nil
}

// GetCompany retrieves a company by id or slug.
func (s *CompanyService) GetCompany(ctx context.Context, idOrSlug string) (*domain.Company, error) {
	var (
		c   *domain.Company
		err error
	)
	if _, perr := uuid.Parse(idOrSlug); perr == nil {
		c, err = s.repos.Companies.GetByID(ctx, idOrSlug)
	} else {
		c, err = s.repos.Companies.GetBySlug(ctx, idOrSlug)
	}
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	return c, nil
}

// ListCompanies returns a filtered page of companies.
func (s *CompanyService) ListCompanies(ctx context.Context, filter domain.CompanyFilter) (*CompanyPage, error) {
	p := pagination.Params{Page: filter.Page, PerPage: filter.PerPage}.Normalize()
	filter.Page, filter.PerPage = p.Page, p.PerPage

	companies, total, err := s.repos.Companies.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	if companies == nil {
		companies = []domain.Company{}
	}
	return &CompanyPage{Companies: companies, Total: total, Page: filter.Page, PerPage: filter.PerPage}, nil
}

// UpdateCompany applies a partial profile update by the owner or an admin.
func (s *CompanyService) UpdateCompany(ctx context.Context, actor Actor, id string, update *domain.CompanyUpdate) (*domain.Company, error) {
	c, err := s.repos.Companies.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("update company: %w", err)
	}
	if !actor.Admin && !c.IsOwnedBy(actor.UserID) {
		return nil, apperrors.Forbidden("only the owner or an admin can edit this company")
	}

	update.Apply(c)
	c.UpdatedAt = time.Now().UTC()
	if err := s.repos.Companies.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update company: %w", err)
	}
	return c, nil
}

// SetStatus changes the listing status of a company.
func (s *CompanyService) SetStatus(ctx context.Context, id string, status domain.CompanyStatus) (*domain.Company, error) {
	if err := s.repos.Companies.UpdateStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("set company status: %w", err)
	}
	s.logger.InfoContext(ctx, "company status changed",
		slog.String("company_id", id),
		slog.String("status", string(status)),
	)
	return s.GetCompany(ctx, id)
}

// Verify sets the verification flag. Listings filtered on it are dropped
// from the cache.
func (s *CompanyService) Verify(ctx context.Context, id string, verified bool) (*domain.Company, error) {
	if err := s.repos.Companies.SetVerified(ctx, id, verified); err != nil {
		return nil, fmt.Errorf("verify company: %w", err)
	}
	s.invalidate(ctx, id)
	return s.GetCompany(ctx, id)
}

// RecomputeRating rebuilds the aggregate of a company from its approved
// reviews.
func (s *CompanyService) RecomputeRating(ctx context.Context, id string) (*domain.RatingAggregate, error) {
	var agg *domain.RatingAggregate
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Companies.LockForUpdate(ctx, id); err != nil {
			return err
		}
		var err error
		agg, err = repos.Companies.RecomputeRating(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("recompute rating: %w", err)
	}
	s.invalidate(ctx, id)
	return agg, nil
}

func (s *CompanyService) invalidate(ctx context.Context, id string) {
	if err := s.cache.InvalidateCompany(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate review cache",
			slog.String("company_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// requireCompanyAccess loads a company and checks that actor owns it or is
// an admin.
func requireCompanyAccess(ctx context.Context, companies repository.CompanyRepository, actor Actor, id string) (*domain.Company, error) {
	c, err := companies.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Admin || c.IsOwnedBy(actor.UserID) {
		return c, nil
	}
	return nil, apperrors.Forbidden("only the company owner or an admin can access this resource")
}
