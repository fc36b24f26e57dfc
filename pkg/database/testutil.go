package database

import (
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
)

// NewMockPool returns a pgxmock pool usable wherever DBTX or TxBeginner is
// expected. SQL expectations are matched as regular expressions and the pool
// is closed when the test ends.
func NewMockPool(tb testing.TB) pgxmock.PgxPoolIface {
	tb.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		tb.Fatalf("create mock pool: %v", err)
	}
	tb.Cleanup(mock.Close)
	return mock
}
