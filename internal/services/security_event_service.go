package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/melizondo/voltcart/internal/models"
	pkglogger "github.com/melizondo/voltcart/pkg/logger"
)

// EventStore defines the storage interface for the security event log
type EventStore interface {
	Insert(ctx context.Context, ev *models.SecurityEvent) error
	Count(ctx context.Context) (int, error)
	DeleteOldest(ctx context.Context, n int) error
	ListSince(ctx context.Context, since time.Time) ([]*models.SecurityEvent, error)
	ListAll(ctx context.Context) ([]*models.SecurityEvent, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// EventLogConfig holds retention and analysis thresholds for the event log
type EventLogConfig struct {
	Cap                 int           // hard entry cap, FIFO eviction
	RetentionDays       int           // age-based pruning at startup
	SuspiciousWindow    time.Duration // rolling window for pattern analysis
	SuspiciousThreshold int           // suspicious events within window to alert
}

// Event types counted toward the suspicious-activity signal
var suspiciousEventTypes = map[string]bool{
	models.EventLoginFailed:        true,
	models.EventRateLimitTriggered: true,
	models.EventUnauthorizedAccess: true,
	models.EventSuspiciousInput:    true,
}

// Signatures of script/markup injection attempts. Deliberately coarse: the
// goal is flagging probes, not parsing HTML.
var suspiciousInputPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)vbscript:`),
	regexp.MustCompile(`(?i)\bon\w+\s*=`),
	regexp.MustCompile(`(?i)eval\(`),
	regexp.MustCompile(`(?i)&lt;|&#0*60;?`),
}

const detailTruncateLen = 100

// SecurityEventService maintains a bounded, rolling log of security-relevant
// occurrences and derives a coarse suspicious-activity signal from recent
// event density. Logging is best-effort everywhere: a failure to record or
// analyze an event must never break the user flow being observed.
type SecurityEventService struct {
	store      EventStore
	config     EventLogConfig
	logger     *slog.Logger
	alertCount atomic.Int64
}

// NewSecurityEventService creates a new SecurityEventService
func NewSecurityEventService(store EventStore, config EventLogConfig, logger *slog.Logger) *SecurityEventService {
	return &SecurityEventService{
		store:  store,
		config: config,
		logger: logger,
	}
}

// LogEvent appends an event to the persisted log, evicting the oldest entry
// when the cap would be exceeded, then runs pattern analysis as a side
// effect. Errors are swallowed after logging: security logging is
// observational and fail-silent toward its callers.
func (s *SecurityEventService) LogEvent(ctx context.Context, eventType, url, userAgent string, details models.EventDetails) {
	if !models.IsValidEventType(eventType) {
		s.logger.Error("unknown security event type dropped", slog.String("event_type", eventType))
		return
	}
	if details == nil {
		details = models.EventDetails{}
	}

	ev := &models.SecurityEvent{
		Type:      eventType,
		Timestamp: time.Now(),
		URL:       url,
		UserAgent: userAgent,
		Details:   details,
	}

	// Dual-write: immediate slog output alongside persistence
	s.logger.Info("security event",
		slog.String("event_type", eventType),
		slog.String("url", url),
		slog.Any("details", details),
	)

	if err := s.store.Insert(ctx, ev); err != nil {
		s.logger.Error("failed to persist security event", slog.Any("error", err))
		return
	}

	s.enforceCap(ctx)
	s.analyzeSuspiciousPatterns(ctx)
}

// enforceCap evicts the oldest entries so the stored count never exceeds the
// cap after an append.
func (s *SecurityEventService) enforceCap(ctx context.Context) {
	count, err := s.store.Count(ctx)
	if err != nil {
		s.logger.Error("failed to count security events", slog.Any("error", err))
		return
	}

	if excess := count - s.config.Cap; excess > 0 {
		if err := s.store.DeleteOldest(ctx, excess); err != nil {
			s.logger.Error("failed to evict oldest security events", slog.Any("error", err))
		}
	}
}

// analyzeSuspiciousPatterns raises a warning when suspicious events cluster
// within the rolling window. A coarse, over-inclusive heuristic; any error
// here is logged and discarded.
func (s *SecurityEventService) analyzeSuspiciousPatterns(ctx context.Context) {
	since := time.Now().Add(-s.config.SuspiciousWindow)

	recent, err := s.store.ListSince(ctx, since)
	if err != nil {
		s.logger.Error("pattern analysis failed", slog.Any("error", err))
		return
	}

	suspicious := 0
	for _, ev := range recent {
		if suspiciousEventTypes[ev.Type] {
			suspicious++
		}
	}

	if suspicious >= s.config.SuspiciousThreshold {
		s.alertCount.Add(1)
		s.logger.Warn("suspicious activity detected",
			slog.Int("suspicious_events", suspicious),
			slog.Duration("window", s.config.SuspiciousWindow))
	}
}

// AlertCount returns how many times the suspicious-activity signal has fired
// since startup.
func (s *SecurityEventService) AlertCount() int64 {
	return s.alertCount.Load()
}

// PruneOlderThan removes events older than the configured retention. Meant
// to run once at process start; the per-write cap bounds storage in between.
func (s *SecurityEventService) PruneOlderThan(ctx context.Context) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -s.config.RetentionDays)

	removed, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune security events: %w", err)
	}

	if removed > 0 {
		s.logger.Info("pruned aged security events", slog.Int64("removed", removed))
	}
	return removed, nil
}

// DetectSuspiciousInput tests free-form text against the injection signature
// list. A match logs a suspicious_input event carrying a truncated copy of
// the offending text, so the bounded log never stores a full payload.
func (s *SecurityEventService) DetectSuspiciousInput(ctx context.Context, text, url, userAgent string) bool {
	for _, pattern := range suspiciousInputPatterns {
		if pattern.MatchString(text) {
			s.LogEvent(ctx, models.EventSuspiciousInput, url, userAgent, models.EventDetails{
				"pattern": pattern.String(),
				"input":   pkglogger.Truncate(text, detailTruncateLen),
			})
			return true
		}
	}
	return false
}

// ListEvents returns the full stored log, oldest first. The cap keeps this
// bounded to at most EventLogConfig.Cap entries.
func (s *SecurityEventService) ListEvents(ctx context.Context) ([]*models.SecurityEvent, error) {
	events, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list security events: %w", err)
	}
	return events, nil
}

// ExportEvents serializes the full event log to delimited text for offline
// analysis. Commas inside the detail blob are replaced with semicolons
// rather than quoted, a deliberately lossy choice. An empty log returns
// models.ErrNoEvents instead of a header-only export.
func (s *SecurityEventService) ExportEvents(ctx context.Context) (string, error) {
	events, err := s.store.ListAll(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to export security events: %w", err)
	}

	if len(events) == 0 {
		return "", models.ErrNoEvents
	}

	var b strings.Builder
	b.WriteString("Tipo,Timestamp,URL,User Agent,Detalles\n")

	for _, ev := range events {
		blob, err := json.Marshal(ev.Details)
		if err != nil {
			blob = []byte("{}")
		}
		detail := strings.ReplaceAll(string(blob), ",", ";")

		b.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s\n",
			ev.Type,
			ev.Timestamp.Format(time.RFC3339),
			strings.ReplaceAll(ev.URL, ",", ";"),
			strings.ReplaceAll(ev.UserAgent, ",", ";"),
			detail,
		))
	}

	return b.String(), nil
}
