package model

import (
	"time"
)

type User struct {
	ID                    string     `db:"id"`
	Email                 string     `db:"email"`
	PasswordHash          string     `db:"password_hash"`
	Verified              bool       `db:"verified"`
	VerificationToken     *string    `db:"verification_token"`      // Set only while unverified
	VerificationExpiresAt *time.Time `db:"verification_expires_at"` // Token is unusable after this instant
	CreatedAt             time.Time  `db:"created_at"`
}

// VerificationExpired reports whether the pending verification token is past its expiry at now.
// A token expiring exactly at now is still valid.
func (u *User) VerificationExpired(now time.Time) bool {
	return u.VerificationExpiresAt == nil || now.After(*u.VerificationExpiresAt)
}

// PendingVerification reports whether a verification token is outstanding.
func (u *User) PendingVerification() bool {
	return !u.Verified && u.VerificationToken != nil && *u.VerificationToken != ""
}
