package models

import (
	"errors"
	"testing"
)

func TestIsValidEventType(t *testing.T) {
	valid := []string{
		EventLoginFailed, EventLoginSuccess, EventRateLimitTriggered,
		EventUnauthorizedAccess, EventSuspiciousInput, EventAdminAction,
	}
	for _, et := range valid {
		if !IsValidEventType(et) {
			t.Errorf("IsValidEventType(%q) = false", et)
		}
	}

	for _, et := range []string{"", "login", "LOGIN_FAILED", "made_up"} {
		if IsValidEventType(et) {
			t.Errorf("IsValidEventType(%q) = true", et)
		}
	}
}

func TestEventDetails_ScanValue(t *testing.T) {
	in := EventDetails{"reason": "invalid_credentials", "remaining": float64(3)}

	raw, err := in.Value()
	if err != nil {
		t.Fatalf("Value() = %v", err)
	}

	var out EventDetails
	if err := out.Scan(raw); err != nil {
		t.Fatalf("Scan() = %v", err)
	}

	if out["reason"] != "invalid_credentials" {
		t.Errorf("reason = %v", out["reason"])
	}
	if out["remaining"] != float64(3) {
		t.Errorf("remaining = %v", out["remaining"])
	}
}

func TestEventDetails_ScanNil(t *testing.T) {
	var d EventDetails
	if err := d.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) = %v", err)
	}
	if d == nil {
		t.Error("Scan(nil) left details nil")
	}
}

func TestLockoutError_MatchesRateLimitSentinel(t *testing.T) {
	err := &LockoutError{MinutesLeft: 7}

	if !errors.Is(err, ErrRateLimitExceeded) {
		t.Error("LockoutError does not match ErrRateLimitExceeded")
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Error("LockoutError matches unrelated sentinel")
	}

	var lockout *LockoutError
	if !errors.As(error(err), &lockout) || lockout.MinutesLeft != 7 {
		t.Error("errors.As failed to recover MinutesLeft")
	}
}
