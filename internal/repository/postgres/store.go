package postgres

import (
	"context"
	"embed"
	"io/fs"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/ReviewGo/internal/repository"
	"github.com/utafrali/ReviewGo/pkg/database"
)

//go:embed migrations/*.up.sql
var migrationFiles embed.FS

// Migrations returns the schema migrations for database.RunMigrations.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// DB is satisfied by *pgxpool.Pool and pgxmock pools.
type DB interface {
	database.DBTX
	database.TxBeginner
}

// Store hands out pool-backed repositories and runs transactions that bind
// the same repositories to a single pgx.Tx.
type Store struct {
	db    DB
	repos repository.Repositories
}

// NewStore creates a Store on db.
func NewStore(db DB) *Store {
	return &Store{db: db, repos: newRepositories(db)}
}

func newRepositories(db database.DBTX) repository.Repositories {
	return repository.Repositories{
		Reviews:   NewReviewRepository(db),
		Companies: NewCompanyRepository(db),
		Users:     NewUserRepository(db),
		Ads:       NewAdRepository(db),
	}
}

// Repositories returns repositories that run each statement on the pool.
func (s *Store) Repositories() repository.Repositories {
	return s.repos
}

// Analytics returns the platform analytics repository.
func (s *Store) Analytics() *AnalyticsRepository {
	return NewAnalyticsRepository(s.db)
}

// maxTxAttempts bounds how often a transaction aborted by a deadlock or a
// serialization failure is replayed.
const maxTxAttempts = 3

// WithinTx implements repository.TxManager with a read-committed
// transaction. fn may run more than once and must not have side effects
// outside the transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
			return fn(ctx, newRepositories(tx))
		})
		if !isRetryableTx(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}
