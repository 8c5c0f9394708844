package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Security event types (closed set)
const (
	EventLoginFailed        = "login_failed"
	EventLoginSuccess       = "login_success"
	EventRateLimitTriggered = "rate_limit_triggered"
	EventUnauthorizedAccess = "unauthorized_access"
	EventSuspiciousInput    = "suspicious_input"
	EventAdminAction        = "admin_action"
)

var eventTypes = map[string]bool{
	EventLoginFailed:        true,
	EventLoginSuccess:       true,
	EventRateLimitTriggered: true,
	EventUnauthorizedAccess: true,
	EventSuspiciousInput:    true,
	EventAdminAction:        true,
}

// IsValidEventType reports whether t belongs to the closed event type set.
func IsValidEventType(t string) bool {
	return eventTypes[t]
}

// SecurityEvent is a structured record of a security-relevant occurrence,
// kept in a bounded rolling log for pattern analysis and audit export.
type SecurityEvent struct {
	ID        uuid.UUID    `db:"id"`
	Type      string       `db:"event_type"`
	Timestamp time.Time    `db:"created_at"`
	URL       string       `db:"url"`
	UserAgent string       `db:"user_agent"`
	Details   EventDetails `db:"details"`
}

// EventDetails holds per-event context (identity, reason, remaining
// attempts, ...). Stored as JSONB.
type EventDetails map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (d *EventDetails) Scan(value interface{}) error {
	if value == nil {
		*d = make(EventDetails)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return ErrBadRequest
	}

	var m map[string]interface{}
	if err := json.Unmarshal(bytes, &m); err != nil {
		return err
	}
	*d = EventDetails(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (d EventDetails) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}
