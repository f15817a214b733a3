package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrConditionFailed is returned when a guarded write matched no row because the
// persisted value no longer satisfies the guard.
var ErrConditionFailed = errors.New("repository: write condition not met")

const pgForeignKeyViolation = "23503"

// IsForeignKeyViolation reports whether err is a Postgres foreign-key violation.
func IsForeignKeyViolation(err error) bool {
	return hasPgCode(err, pgForeignKeyViolation)
}

func hasPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
