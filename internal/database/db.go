package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/melizondo/voltcart/internal/models"
)

// Postgres error codes mapped to domain sentinels. 22P02 covers malformed
// uuid lookups from the admin dashboard; 22003 covers totals past the
// NUMERIC(12,2) columns.
const (
	codeUniqueViolation           = "23505"
	codeForeignKeyViolation       = "23503"
	codeNotNullViolation          = "23502"
	codeInvalidTextRepresentation = "22P02"
	codeNumericOutOfRange         = "22003"
)

// MapPostgresError translates driver errors into the sentinels handlers
// dispatch on. Anything unrecognized passes through unchanged.
func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return models.ErrConflict
		case codeForeignKeyViolation, codeNotNullViolation,
			codeInvalidTextRepresentation, codeNumericOutOfRange:
			return models.ErrBadRequest
		}
	}

	return err
}

// WithTransaction runs fn inside a transaction, rolling back on error or
// panic and committing otherwise.
func (db *DB) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}
