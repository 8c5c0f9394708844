package background

import (
	"context"
	"log/slog"
	"time"
)

// EventPruner removes security events older than the retention window.
type EventPruner interface {
	PruneOlderThan(ctx context.Context) (int64, error)
}

// AttemptPruner removes login attempt records with no recent activity.
type AttemptPruner interface {
	DeleteStale(ctx context.Context, inactiveSince time.Time) (int64, error)
}

// PruneManager periodically removes aged security events and stale
// login attempt records from the database.
type PruneManager struct {
	events   EventPruner
	attempts AttemptPruner
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewPruneManager creates a new prune manager
func NewPruneManager(
	events EventPruner,
	attempts AttemptPruner,
	logger *slog.Logger,
	interval time.Duration,
) *PruneManager {
	return &PruneManager{
		events:   events,
		attempts: attempts,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic pruning task. It runs once immediately so
// stale data from before the last shutdown is cleared on boot.
func (pm *PruneManager) Start(ctx context.Context) {
	ticker := time.NewTicker(pm.interval)
	defer ticker.Stop()

	pm.runPrune(ctx)

	for {
		select {
		case <-ticker.C:
			pm.runPrune(ctx)
		case <-pm.stopCh:
			pm.logger.Info("prune manager stopped")
			return
		case <-ctx.Done():
			pm.logger.Info("prune manager context cancelled")
			return
		}
	}
}

func (pm *PruneManager) runPrune(ctx context.Context) {
	pruneCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	eventsDeleted, err := pm.events.PruneOlderThan(pruneCtx)
	if err != nil {
		pm.logger.Error("failed to prune security events", slog.Any("error", err))
	} else if eventsDeleted > 0 {
		pm.logger.Info("security event prune completed", slog.Int64("rows_deleted", eventsDeleted))
	}

	// Attempt records untouched for a day carry no lockout state worth keeping
	attemptsDeleted, err := pm.attempts.DeleteStale(pruneCtx, time.Now().Add(-24*time.Hour))
	if err != nil {
		pm.logger.Error("failed to prune login attempts", slog.Any("error", err))
	} else if attemptsDeleted > 0 {
		pm.logger.Info("login attempt prune completed", slog.Int64("rows_deleted", attemptsDeleted))
	}
}

// Stop signals the prune manager to stop
func (pm *PruneManager) Stop() {
	close(pm.stopCh)
}
