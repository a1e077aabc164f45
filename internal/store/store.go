package store

import (
	"context"
	"errors"
	"time"

	"github.com/chronocam/chronocam/internal/models"
	"github.com/google/uuid"
)

// Sentinel errors for common error conditions
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateEmail    = errors.New("email already registered")
	ErrDuplicateGoogleID = errors.New("google account already linked")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionExpired    = errors.New("session expired")
	ErrImageNotFound     = errors.New("image not found")
)

// UserStore manages user identity records. Email lookups expect the
// normalized (lower-cased, trimmed) form; see models.NormalizeEmail.
type UserStore interface {
	// Create creates a new user. Returns ErrDuplicateEmail or
	// ErrDuplicateGoogleID when a uniqueness constraint is violated.
	Create(ctx context.Context, user *models.User) error

	// Get retrieves a user by ID.
	Get(ctx context.Context, userID uuid.UUID) (*models.User, error)

	// GetByEmail retrieves a user by normalized email.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// GetByGoogleID retrieves a user by Google subject id.
	GetByGoogleID(ctx context.Context, googleID string) (*models.User, error)

	// Update updates an existing user.
	Update(ctx context.Context, user *models.User) error
}

// SessionStore manages server-side session records.
type SessionStore interface {
	// Create creates a new session.
	Create(ctx context.Context, session *models.Session) error

	// Get retrieves a session by ID. Returns ErrSessionExpired when the
	// record exists but is past its expiry.
	Get(ctx context.Context, sessionID uuid.UUID) (*models.Session, error)

	// UpdateLastUsed updates the last_used_at timestamp for a session.
	UpdateLastUsed(ctx context.Context, sessionID uuid.UUID) error

	// Delete deletes a session by ID (logout).
	Delete(ctx context.Context, sessionID uuid.UUID) error

	// DeleteByUser deletes all sessions for a user (logout everywhere).
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int, error)

	// DeleteExpired deletes all expired sessions (background sweep).
	DeleteExpired(ctx context.Context) (int, error)
}

// ImageFilter narrows an image listing by capture time.
type ImageFilter struct {
	From  *time.Time // inclusive lower bound on CapturedAt
	To    *time.Time // inclusive upper bound on CapturedAt
	Limit int        // max results (0 = no limit)
}

// ImageStore manages uploaded image records.
type ImageStore interface {
	// Create stores a new image.
	Create(ctx context.Context, image *models.Image) error

	// Get retrieves an image by ID, including its bytes.
	Get(ctx context.Context, imageID uuid.UUID) (*models.Image, error)

	// ListByOwner returns the owner's images matching the filter, newest
	// capture first. Returned records omit the raw bytes.
	ListByOwner(ctx context.Context, ownerID uuid.UUID, filter ImageFilter) ([]*models.Image, error)

	// Delete removes an image by ID.
	Delete(ctx context.Context, imageID uuid.UUID) error
}
