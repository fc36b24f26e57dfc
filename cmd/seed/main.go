// Command seed fills a development database with users, companies and
// reviews. It talks to Postgres directly through the repositories and
// skips companies that already exist, so it can be run repeatedly.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/ReviewGo/internal/config"
	"github.com/utafrali/ReviewGo/internal/domain"
	"github.com/utafrali/ReviewGo/internal/repository"
	"github.com/utafrali/ReviewGo/internal/repository/postgres"
	"github.com/utafrali/ReviewGo/pkg/database"
	apperrors "github.com/utafrali/ReviewGo/pkg/errors"
	"github.com/utafrali/ReviewGo/pkg/logger"
	"github.com/utafrali/ReviewGo/pkg/slug"
)

var companyNames = []struct{ name, category string }{
	{"Kahve Durağı", "cafe"},
	{"Anadolu Lezzetleri", "restaurant"},
	{"Café Crème", "cafe"},
	{"Hızlı Kargo", "logistics"},
	{"Yeşil Market", "grocery"},
	{"TechFix Servis", "electronics"},
	{"Mavi Otel", "hotel"},
	{"Güneş Eczanesi", "pharmacy"},
}

var reviewTexts = map[int][]string{
	1: {"Order never arrived and support stopped answering.", "Rude staff, I will not come back."},
	2: {"Slow service and the food was cold.", "Overpriced for what you get."},
	3: {"Average experience, nothing special either way.", "Fine, but the wait was long."},
	4: {"Friendly staff and quick delivery.", "Good value, would recommend to friends."},
	5: {"Excellent service from start to finish!", "Best coffee in the neighbourhood, every time."},
}

func main() {
	users := flag.Int("users", 25, "number of reviewer accounts")
	perCompany := flag.Int("reviews", 12, "reviews per company, capped by -users")
	seed := flag.Uint64("seed", 42, "random seed")
	flag.Parse()

	cfg, err := config.Load(".env")
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New("review-seed", cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := run(ctx, cfg, log, *users, *perCompany, rand.New(rand.NewPCG(*seed, *seed))); err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, users, perCompany int, rng *rand.Rand) error {
	if users < 1 || perCompany < 0 {
		return errors.New("-users must be positive and -reviews not negative")
	}

	pgCfg := cfg.Postgres()
	pgCfg.ApplicationName = "review-seed"
	pool, err := database.NewPostgresPool(ctx, &pgCfg, log)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, postgres.Migrations(), log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	store := postgres.NewStore(pool)
	reviewers := make([]*domain.User, users)
	for i := range reviewers {
		reviewers[i] = &domain.User{
			ID:    uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "reviewgo-seed-user-%d", i)).String(),
			Email: fmt.Sprintf("reviewer%02d@reviewgo.local", i),
			Name:  fmt.Sprintf("Reviewer %02d", i),
		}
		if err := store.Repositories().Users.Upsert(ctx, reviewers[i]); err != nil {
			return fmt.Errorf("upsert user %s: %w", reviewers[i].Email, err)
		}
	}

	var created, reviews int
	for _, c := range companyNames {
		n, err := seedCompany(ctx, store, reviewers, c.name, c.category, min(perCompany, users), rng)
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			log.Info("company exists, skipped", slog.String("name", c.name))
			continue
		}
		if err != nil {
			return fmt.Errorf("seed %s: %w", c.name, err)
		}
		created++
		reviews += n
	}

	log.Info("seed complete",
		slog.Int("users", len(reviewers)),
		slog.Int("companies", created),
		slog.Int("reviews", reviews),
	)
	return nil
}

// seedCompany creates one company owned by the first reviewer plus n
// reviews by distinct users, then recomputes its rating, all in one
// transaction.
func seedCompany(ctx context.Context, tx repository.TxManager, users []*domain.User, name, category string, n int, rng *rand.Rand) (int, error) {
	now := time.Now().UTC()
	company := &domain.Company{
		ID:          uuid.New().String(),
		OwnerID:     users[0].ID,
		Name:        name,
		Slug:        slug.Generate(name),
		Description: name + " is a demo listing.",
		Category:    category,
		Status:      domain.CompanyActive,
		IsVerified:  rng.IntN(2) == 0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if _, err := repos.Companies.GetBySlug(ctx, company.Slug); err == nil {
			return apperrors.AlreadyExists("company", "slug", company.Slug)
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		if err := repos.Companies.Create(ctx, company); err != nil {
			return err
		}

		for _, i := range rng.Perm(len(users))[:n] {
			rating := 1 + rng.IntN(5)
			texts := reviewTexts[rating]
			at := now.Add(-time.Duration(rng.IntN(90*24)) * time.Hour)

			rv := &domain.Review{
				ID:        uuid.New().String(),
				CompanyID: company.ID,
				UserID:    users[i].ID,
				Rating:    rating,
				Text:      texts[rng.IntN(len(texts))],
				Status:    seedStatus(rng),
				CreatedAt: at,
				UpdatedAt: at,
			}
			if err := repos.Reviews.Create(ctx, rv); err != nil {
				return err
			}
		}

		_, err := repos.Companies.RecomputeRating(ctx, company.ID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// seedStatus approves most reviews and leaves a few in the moderation queue.
func seedStatus(rng *rand.Rand) domain.ReviewStatus {
	switch p := rng.IntN(10); {
	case p < 7:
		return domain.ReviewApproved
	case p < 9:
		return domain.ReviewPending
	default:
		return domain.ReviewRejected
	}
}
