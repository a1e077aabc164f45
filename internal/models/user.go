package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User represents an account in the system. Accounts are created either by
// local signup (email + password) or by a first Google login. Every user
// carries at least one of PasswordHash or GoogleID.
type User struct {
	UserID uuid.UUID // UUIDv7

	Email        string  // unique, stored lower-cased
	PasswordHash []byte  // bcrypt, nil for OAuth-only accounts
	GoogleID     *string // Google subject id, nil for local-only accounts

	FirstName string
	LastName  string
	Phone     string

	// IsVerified is set for OAuth accounts, where Google vouches for the email.
	IsVerified bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPassword reports whether the account can log in with a local password.
func (u *User) HasPassword() bool {
	return len(u.PasswordHash) > 0
}

// DisplayName returns the user's full name, falling back to the email when no
// name was captured at signup.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// NormalizeEmail lower-cases and trims an email address. All store lookups and
// uniqueness checks operate on the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
