package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/melizondo/voltcart/internal/database"
	"github.com/melizondo/voltcart/internal/models"
)

// SecurityEventRepository handles the persisted security event log
type SecurityEventRepository struct {
	db *database.DB
}

// NewSecurityEventRepository creates a new SecurityEventRepository
func NewSecurityEventRepository(db *database.DB) *SecurityEventRepository {
	return &SecurityEventRepository{db: db}
}

func scanEventRows(rows pgx.Rows) ([]*models.SecurityEvent, error) {
	defer rows.Close()

	events := make([]*models.SecurityEvent, 0)

	for rows.Next() {
		var ev models.SecurityEvent
		err := rows.Scan(&ev.ID, &ev.Type, &ev.Timestamp, &ev.URL, &ev.UserAgent, &ev.Details)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security event: %w", err)
		}
		events = append(events, &ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating security event rows: %w", err)
	}

	return events, nil
}

// Insert appends one event to the log
func (r *SecurityEventRepository) Insert(ctx context.Context, ev *models.SecurityEvent) error {
	query := `
		INSERT INTO security_events (event_type, created_at, url, user_agent, details)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Pool.Exec(ctx, query, ev.Type, ev.Timestamp, ev.URL, ev.UserAgent, ev.Details)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}

// Count returns the total number of stored events
func (r *SecurityEventRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM security_events`).Scan(&count)
	return count, err
}

// DeleteOldest evicts the n oldest events (FIFO cap enforcement)
func (r *SecurityEventRepository) DeleteOldest(ctx context.Context, n int) error {
	query := `
		DELETE FROM security_events
		WHERE id IN (
			SELECT id FROM security_events
			ORDER BY created_at ASC, id ASC
			LIMIT $1
		)
	`

	_, err := r.db.Pool.Exec(ctx, query, n)
	return err
}

// ListSince returns events at or after the cutoff, oldest first
func (r *SecurityEventRepository) ListSince(ctx context.Context, since time.Time) ([]*models.SecurityEvent, error) {
	query := `
		SELECT id, event_type, created_at, url, user_agent, details
		FROM security_events
		WHERE created_at >= $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query security events: %w", err)
	}

	return scanEventRows(rows)
}

// ListAll returns the full event log, oldest first
func (r *SecurityEventRepository) ListAll(ctx context.Context) ([]*models.SecurityEvent, error) {
	query := `
		SELECT id, event_type, created_at, url, user_agent, details
		FROM security_events
		ORDER BY created_at ASC
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query security events: %w", err)
	}

	return scanEventRows(rows)
}

// DeleteOlderThan removes events created before the cutoff and returns the
// number removed. Age-based retention, distinct from the FIFO cap.
func (r *SecurityEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM security_events WHERE created_at < $1`

	result, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune security events: %w", err)
	}

	return result.RowsAffected(), nil
}
