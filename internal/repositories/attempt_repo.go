package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/melizondo/voltcart/internal/database"
	"github.com/melizondo/voltcart/internal/models"
)

// AttemptRepository persists per-identity failed-attempt records. One row per
// identity; the row is deleted outright on successful login or observed
// lockout expiry. Reads and writes are plain read-modify-write: the increment
// happens in SQL (ON CONFLICT arithmetic) so concurrent failures for the same
// identity cannot lose counts.
type AttemptRepository struct {
	db *database.DB
}

// NewAttemptRepository creates a new AttemptRepository
func NewAttemptRepository(db *database.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// Get returns the attempt record for an identity, or models.ErrNotFound
func (r *AttemptRepository) Get(ctx context.Context, identity string) (*models.AttemptRecord, error) {
	query := `
		SELECT identity, attempt_count, last_attempt, lockout_until
		FROM login_attempts
		WHERE identity = $1
	`

	var rec models.AttemptRecord
	err := r.db.Pool.QueryRow(ctx, query, identity).Scan(
		&rec.Identity, &rec.Count, &rec.LastAttempt, &rec.LockoutUntil,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// IncrementFailure adds one failed attempt for an identity and returns the
// updated record. lockoutUntil is recomputed by the caller; this method only
// handles the counter and timestamp.
func (r *AttemptRepository) IncrementFailure(ctx context.Context, identity string, at time.Time) (*models.AttemptRecord, error) {
	query := `
		INSERT INTO login_attempts (identity, attempt_count, last_attempt)
		VALUES ($1, 1, $2)
		ON CONFLICT (identity) DO UPDATE
		SET attempt_count = login_attempts.attempt_count + 1,
		    last_attempt = EXCLUDED.last_attempt
		RETURNING identity, attempt_count, last_attempt, lockout_until
	`

	var rec models.AttemptRecord
	err := r.db.Pool.QueryRow(ctx, query, identity, at).Scan(
		&rec.Identity, &rec.Count, &rec.LastAttempt, &rec.LockoutUntil,
	)
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// SetLockout stamps the lockout expiry on an existing record
func (r *AttemptRepository) SetLockout(ctx context.Context, identity string, until time.Time) error {
	query := `UPDATE login_attempts SET lockout_until = $2 WHERE identity = $1`
	_, err := r.db.Pool.Exec(ctx, query, identity, until)
	return err
}

// Delete removes the record entirely, restoring the full attempt allotment
func (r *AttemptRepository) Delete(ctx context.Context, identity string) error {
	query := `DELETE FROM login_attempts WHERE identity = $1`
	_, err := r.db.Pool.Exec(ctx, query, identity)
	return err
}

// DeleteStale removes records whose lockout has expired and records with no
// activity since the cutoff. Run by the background sweeper.
func (r *AttemptRepository) DeleteStale(ctx context.Context, inactiveSince time.Time) (int64, error) {
	query := `
		DELETE FROM login_attempts
		WHERE (lockout_until IS NOT NULL AND lockout_until <= CURRENT_TIMESTAMP)
		   OR last_attempt < $1
	`

	result, err := r.db.Pool.Exec(ctx, query, inactiveSince)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
