package models

// Challenge is a simple arithmetic human-verification puzzle. It is held
// server-side for the lifetime of one form render and consumed exactly once;
// a failed validation always discards it in favor of a fresh one.
type Challenge struct {
	ID       string `json:"challenge_id"`
	Question string `json:"question"`
	Answer   int    `json:"-"`
}
