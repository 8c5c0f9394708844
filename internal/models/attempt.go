package models

import "time"

// AttemptRecord tracks consecutive failed authentication attempts for one
// identity (the login email). A record exists only while there are failures
// to count: it is created on the first failure and deleted entirely on a
// successful login or once an expired lockout is observed, so a previously
// locked identity gets a fresh allotment of attempts.
type AttemptRecord struct {
	Identity     string
	Count        int
	LastAttempt  time.Time
	LockoutUntil *time.Time // set once Count reaches the lockout threshold
}

// LockedAt reports whether the record represents an active lockout at t.
func (r *AttemptRecord) LockedAt(t time.Time) bool {
	return r.LockoutUntil != nil && t.Before(*r.LockoutUntil)
}

// RateLimitStatus is the answer to "may this identity attempt to log in?".
type RateLimitStatus struct {
	Locked      bool
	MinutesLeft int // whole minutes remaining in the lockout, rounded up
}
