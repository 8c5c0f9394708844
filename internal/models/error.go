package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Abuse-mitigation errors
	ErrRateLimitExceeded = errors.New("too many failed attempts")
	ErrChallengeFailed   = errors.New("challenge answer incorrect")
	ErrChallengeExpired  = errors.New("challenge expired or already used")

	// Order integrity errors
	ErrEmptyOrder    = errors.New("order must contain at least one item")
	ErrTotalMismatch = errors.New("order total does not match line items")

	// Event log errors
	ErrNoEvents = errors.New("no security events recorded")

	// MFA errors
	ErrMFARequired = errors.New("totp code required")
	ErrMFAInvalid  = errors.New("totp code invalid")
)

// LockoutError carries the remaining lockout duration so handlers can tell
// the user how long to wait. errors.Is matches it to ErrRateLimitExceeded.
type LockoutError struct {
	MinutesLeft int
}

func (e *LockoutError) Error() string {
	return "too many failed attempts"
}

func (e *LockoutError) Is(target error) bool {
	return target == ErrRateLimitExceeded
}
