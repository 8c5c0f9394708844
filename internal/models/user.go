package models

import "time"

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Role         string // "customer" or "admin"
	MFAEnabled   bool
	TOTPSecret   []byte // AES-GCM encrypted TOTP secret, nil when MFA is off
	TOTPNonce    []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the user may access the admin surface
func (u *User) IsAdmin() bool {
	return u.Role == "admin"
}
