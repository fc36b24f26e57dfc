package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/ReviewGo/pkg/database"
)

// tracedDB opens a span per statement through database.TraceQuery.
type tracedDB struct {
	database.DBTX
}

func traced(db database.DBTX) database.DBTX {
	if _, ok := db.(tracedDB); ok {
		return db
	}
	return tracedDB{DBTX: db}
}

func (t tracedDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	ctx, end := database.TraceQuery(ctx, operation(sql), sql)
	tag, err := t.DBTX.Exec(ctx, sql, args...)
	end(err)
	return tag, err
}

func (t tracedDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	ctx, end := database.TraceQuery(ctx, operation(sql), sql)
	rows, err := t.DBTX.Query(ctx, sql, args...)
	end(err)
	return rows, err
}

func (t tracedDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	ctx, end := database.TraceQuery(ctx, operation(sql), sql)
	return tracedRow{row: t.DBTX.QueryRow(ctx, sql, args...), end: end}
}

type tracedRow struct {
	row pgx.Row
	end func(error)
}

func (r tracedRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		r.end(nil)
	} else {
		r.end(err)
	}
	return err
}

// operation names a span after the statement verb, e.g. "select".
func operation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "query"
	}
	return strings.ToLower(fields[0])
}
