package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeSerializationFail   = "40001"
	codeDeadlockDetected    = "40P01"
)

// pgCode returns the SQLSTATE of err and the violated constraint, if any.
func pgCode(err error) (code, constraint string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

func isUniqueViolation(err error) bool {
	code, _ := pgCode(err)
	return code == codeUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	code, _ := pgCode(err)
	return code == codeForeignKeyViolation
}

// isRetryableTx reports whether the server aborted the transaction and
// replaying it from the start may succeed.
func isRetryableTx(err error) bool {
	code, _ := pgCode(err)
	return code == codeDeadlockDetected || code == codeSerializationFail
}
