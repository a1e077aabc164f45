package memory

import (
	"context"
	"sync"
	"time"

	"github.com/chronocam/chronocam/internal/models"
	"github.com/chronocam/chronocam/internal/store"
	"github.com/google/uuid"
)

// UserStore implements store.UserStore using in-memory storage.
// This implementation is for development and testing - data is lost on restart.
type UserStore struct {
	mu sync.RWMutex

	users         map[uuid.UUID]*models.User // user_id -> User
	usersByEmail  map[string]*models.User    // normalized email -> User
	usersByGoogle map[string]*models.User    // google subject id -> User
}

// NewUserStore creates a new in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		users:         make(map[uuid.UUID]*models.User),
		usersByEmail:  make(map[string]*models.User),
		usersByGoogle: make(map[string]*models.User),
	}
}

// Create creates a new user in memory.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByEmail[user.Email]; exists {
		return store.ErrDuplicateEmail
	}
	if user.GoogleID != nil {
		if _, exists := s.usersByGoogle[*user.GoogleID]; exists {
			return store.ErrDuplicateGoogleID
		}
	}

	// Clone to avoid external modifications
	clone := *user
	s.users[user.UserID] = &clone
	s.usersByEmail[clone.Email] = &clone
	if clone.GoogleID != nil {
		s.usersByGoogle[*clone.GoogleID] = &clone
	}

	return nil
}

// Get retrieves a user by ID.
func (s *UserStore) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[userID]
	if !exists {
		return nil, store.ErrUserNotFound
	}

	clone := *user
	return &clone, nil
}

// GetByEmail retrieves a user by normalized email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByEmail[email]
	if !exists {
		return nil, store.ErrUserNotFound
	}

	clone := *user
	return &clone, nil
}

// GetByGoogleID retrieves a user by Google subject id.
func (s *UserStore) GetByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByGoogle[googleID]
	if !exists {
		return nil, store.ErrUserNotFound
	}

	clone := *user
	return &clone, nil
}

// Update updates an existing user.
func (s *UserStore) Update(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.users[user.UserID]
	if !exists {
		return store.ErrUserNotFound
	}

	// An email change must not collide with another account
	if other, taken := s.usersByEmail[user.Email]; taken && other.UserID != user.UserID {
		return store.ErrDuplicateEmail
	}
	if user.GoogleID != nil {
		if other, taken := s.usersByGoogle[*user.GoogleID]; taken && other.UserID != user.UserID {
			return store.ErrDuplicateGoogleID
		}
	}

	user.UpdatedAt = time.Now()

	// Remove old indexes
	if existing.Email != user.Email {
		delete(s.usersByEmail, existing.Email)
	}
	if existing.GoogleID != nil && (user.GoogleID == nil || *existing.GoogleID != *user.GoogleID) {
		delete(s.usersByGoogle, *existing.GoogleID)
	}

	clone := *user
	s.users[user.UserID] = &clone
	s.usersByEmail[clone.Email] = &clone
	if clone.GoogleID != nil {
		s.usersByGoogle[*clone.GoogleID] = &clone
	}

	return nil
}
