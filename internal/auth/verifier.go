package auth

import (
	"context"
	"errors"

	"github.com/chronocam/chronocam/internal/models"
	"github.com/chronocam/chronocam/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for any login failure. Callers must not
// distinguish unknown email from wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// PasswordVerifier checks email/password credentials against the user store.
type PasswordVerifier struct {
	users store.UserStore
}

// NewPasswordVerifier creates a new password verifier.
func NewPasswordVerifier(users store.UserStore) *PasswordVerifier {
	return &PasswordVerifier{
		users: users,
	}
}

// Verify looks up the account by email and checks the password. It returns
// ErrInvalidCredentials on unknown email, wrong password, or a Google-only
// account with no password set. All three paths perform a bcrypt comparison
// so response timing does not reveal which one failed.
func (v *PasswordVerifier) Verify(ctx context.Context, email, password string) (*models.User, error) {
	user, err := v.users.GetByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !VerifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}
