package services

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/melizondo/voltcart/internal/models"
	pkglogger "github.com/melizondo/voltcart/pkg/logger"
)

// AttemptStore defines the storage interface for attempt records
type AttemptStore interface {
	Get(ctx context.Context, identity string) (*models.AttemptRecord, error)
	IncrementFailure(ctx context.Context, identity string, at time.Time) (*models.AttemptRecord, error)
	SetLockout(ctx context.Context, identity string, until time.Time) error
	Delete(ctx context.Context, identity string) error
}

// EventSink is the narrow capability the tracker needs from the security
// event log. Keeping it this small inverts what would otherwise be a
// cycle between the tracker and the full event service.
type EventSink interface {
	LogEvent(ctx context.Context, eventType, url, userAgent string, details models.EventDetails)
}

// LockoutNotifier emails the account holder when their login is locked.
// Delivery is best effort; nil disables notices.
type LockoutNotifier interface {
	SendLockoutNotice(ctx context.Context, email string, minutes int) error
}

// RateLimitConfig holds thresholds for per-identity attempt tracking
type RateLimitConfig struct {
	MaxFailedAttempts int
	LockoutDuration   time.Duration
}

// RateLimitService tracks consecutive failed authentication attempts per
// identity and enforces a hard lockout once the threshold is crossed. There
// is no sliding window below the threshold: any count under the maximum is
// allowed regardless of how recent the failures were.
type RateLimitService struct {
	store    AttemptStore
	events   EventSink
	notifier LockoutNotifier
	config   RateLimitConfig
	logger   *slog.Logger
}

// NewRateLimitService creates a new RateLimitService
func NewRateLimitService(store AttemptStore, events EventSink, notifier LockoutNotifier, config RateLimitConfig, logger *slog.Logger) *RateLimitService {
	return &RateLimitService{
		store:    store,
		events:   events,
		notifier: notifier,
		config:   config,
		logger:   logger,
	}
}

// CheckRateLimit answers whether an identity may attempt to authenticate.
// An expired lockout deletes the record entirely, so the identity returns
// with a full fresh allotment of attempts rather than a decayed count.
// Storage failures fail open: an unreadable store must not block all logins.
func (s *RateLimitService) CheckRateLimit(ctx context.Context, identity, url, userAgent string) models.RateLimitStatus {
	rec, err := s.store.Get(ctx, identity)
	if errors.Is(err, models.ErrNotFound) {
		return models.RateLimitStatus{}
	}
	if err != nil {
		s.logger.Error("failed to read attempt record, failing open",
			slog.String("identity", pkglogger.SanitizedEmail(identity)),
			slog.Any("error", err))
		return models.RateLimitStatus{}
	}

	if rec.Count < s.config.MaxFailedAttempts {
		return models.RateLimitStatus{}
	}

	now := time.Now()
	if rec.LockedAt(now) {
		remaining := rec.LockoutUntil.Sub(now)
		minutes := int(math.Ceil(remaining.Minutes()))

		s.events.LogEvent(ctx, models.EventRateLimitTriggered, url, userAgent, models.EventDetails{
			"identity":     pkglogger.SanitizedEmail(identity),
			"minutes_left": minutes,
		})
		s.logger.Warn("identity locked out",
			slog.String("identity", pkglogger.SanitizedEmail(identity)),
			slog.Int("minutes_left", minutes))

		return models.RateLimitStatus{Locked: true, MinutesLeft: minutes}
	}

	// Lockout expired (or was never stamped): clear the record outright
	if err := s.store.Delete(ctx, identity); err != nil {
		s.logger.Error("failed to clear expired lockout", slog.Any("error", err))
	}

	return models.RateLimitStatus{}
}

// RecordFailedAttempt increments the failure count, creating the record at
// count 1 when absent. Whenever the count is at or past the threshold the
// lockout expiry is recomputed from now, so failures during an active
// lockout keep extending it.
func (s *RateLimitService) RecordFailedAttempt(ctx context.Context, identity string) error {
	now := time.Now()

	rec, err := s.store.IncrementFailure(ctx, identity, now)
	if err != nil {
		return err
	}

	if rec.Count >= s.config.MaxFailedAttempts {
		until := now.Add(s.config.LockoutDuration)
		if err := s.store.SetLockout(ctx, identity, until); err != nil {
			return err
		}
		s.logger.Warn("lockout threshold reached",
			slog.String("identity", pkglogger.SanitizedEmail(identity)),
			slog.Int("count", rec.Count),
			slog.Time("lockout_until", until))

		// Notify only on the first crossing; failures during an active
		// lockout extend it silently.
		if s.notifier != nil && rec.Count == s.config.MaxFailedAttempts {
			minutes := int(math.Ceil(s.config.LockoutDuration.Minutes()))
			if err := s.notifier.SendLockoutNotice(ctx, identity, minutes); err != nil {
				s.logger.Error("failed to send lockout notice",
					slog.String("identity", pkglogger.SanitizedEmail(identity)),
					slog.Any("error", err))
			}
		}
	}

	return nil
}

// ResetFailedAttempts deletes the record entirely. Called only after a
// successful authentication.
func (s *RateLimitService) ResetFailedAttempts(ctx context.Context, identity string) error {
	return s.store.Delete(ctx, identity)
}

// AttemptStatus is a read-only view of one identity's attempt state, for
// the admin dashboard.
type AttemptStatus struct {
	Identity          string     `json:"identity"`
	FailedAttempts    int        `json:"failed_attempts"`
	RemainingAttempts int        `json:"remaining_attempts"`
	Locked            bool       `json:"locked"`
	MinutesLeft       int        `json:"minutes_left"`
	LastAttempt       *time.Time `json:"last_attempt,omitempty"`
}

// InspectAttempts reports an identity's attempt state without side effects:
// unlike CheckRateLimit it neither emits events nor clears expired records.
func (s *RateLimitService) InspectAttempts(ctx context.Context, identity string) (*AttemptStatus, error) {
	status := &AttemptStatus{
		Identity:          identity,
		RemainingAttempts: s.config.MaxFailedAttempts,
	}

	rec, err := s.store.Get(ctx, identity)
	if errors.Is(err, models.ErrNotFound) {
		return status, nil
	}
	if err != nil {
		return nil, err
	}

	status.FailedAttempts = rec.Count
	status.RemainingAttempts = s.config.MaxFailedAttempts - rec.Count
	if status.RemainingAttempts < 0 {
		status.RemainingAttempts = 0
	}
	status.LastAttempt = &rec.LastAttempt

	now := time.Now()
	if rec.LockedAt(now) {
		status.Locked = true
		status.MinutesLeft = int(math.Ceil(rec.LockoutUntil.Sub(now).Minutes()))
	}

	return status, nil
}

// RemainingAttempts reports how many attempts the identity has left before
// lockout; a missing record means the full allotment.
func (s *RateLimitService) RemainingAttempts(ctx context.Context, identity string) int {
	rec, err := s.store.Get(ctx, identity)
	if err != nil {
		return s.config.MaxFailedAttempts
	}

	remaining := s.config.MaxFailedAttempts - rec.Count
	if remaining < 0 {
		return 0
	}
	return remaining
}
