package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chronocam/chronocam/internal/models"
	"github.com/chronocam/chronocam/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultSessionTTL matches the cookie lifetime of 24 hours.
const DefaultSessionTTL = 24 * time.Hour

// Resolution reasons surfaced to the gate when no principal is attached.
const (
	ReasonInvalid = "invalid"
	ReasonExpired = "expired"
)

// Principal is an authenticated user attached to a request.
type Principal struct {
	User      *models.User
	SessionID uuid.UUID
}

// SessionManager creates, resolves, and ends server-side sessions.
type SessionManager struct {
	sessions store.SessionStore
	users    store.UserStore
	ttl      time.Duration
}

// NewSessionManager creates a session manager. A zero ttl falls back to
// DefaultSessionTTL.
func NewSessionManager(sessions store.SessionStore, users store.UserStore, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{
		sessions: sessions,
		users:    users,
		ttl:      ttl,
	}
}

// TTL returns the configured session lifetime.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Start creates a new session for the user and returns it. Each login gets a
// fresh session ID, existing sessions on other devices are untouched.
func (m *SessionManager) Start(ctx context.Context, user *models.User, userAgent, ipAddress string) (*models.Session, error) {
	sessionID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	now := time.Now()
	session := &models.Session{
		SessionID:  sessionID,
		UserID:     user.UserID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.ttl),
		LastUsedAt: now,
		UserAgent:  userAgent,
		IPAddress:  ipAddress,
	}

	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.Info().
		Str("session_id", session.SessionID.String()).
		Str("user_id", user.UserID.String()).
		Time("expires_at", session.ExpiresAt).
		Msg("Started session")

	return session, nil
}

// Resolve maps a session ID to a principal. A missing, expired, or orphaned
// session yields a nil principal with a reason, never an error, so requests
// proceed as anonymous. Errors are reserved for store failures.
func (m *SessionManager) Resolve(ctx context.Context, sessionID uuid.UUID) (*Principal, string, error) {
	session, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrSessionNotFound):
			return nil, ReasonInvalid, nil
		case errors.Is(err, store.ErrSessionExpired):
			// Evict eagerly rather than waiting for the sweeper
			if delErr := m.sessions.Delete(ctx, sessionID); delErr != nil && !errors.Is(delErr, store.ErrSessionNotFound) {
				log.Warn().Err(delErr).Str("session_id", sessionID.String()).Msg("Failed to delete expired session")
			}
			return nil, ReasonExpired, nil
		}
		return nil, "", fmt.Errorf("failed to resolve session: %w", err)
	}

	user, err := m.users.Get(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			// Session outlived its user
			if delErr := m.sessions.Delete(ctx, sessionID); delErr != nil && !errors.Is(delErr, store.ErrSessionNotFound) {
				log.Warn().Err(delErr).Str("session_id", sessionID.String()).Msg("Failed to delete orphaned session")
			}
			return nil, ReasonInvalid, nil
		}
		return nil, "", fmt.Errorf("failed to load session user: %w", err)
	}

	// Touch last_used_at, losing this update is harmless
	if err := m.sessions.UpdateLastUsed(ctx, sessionID); err != nil && !errors.Is(err, store.ErrSessionNotFound) {
		log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Failed to update session last_used_at")
	}

	return &Principal{
		User:      user,
		SessionID: sessionID,
	}, "", nil
}

// End deletes a session. Ending a session that no longer exists is not an
// error, logout is idempotent.
func (m *SessionManager) End(ctx context.Context, sessionID uuid.UUID) error {
	err := m.sessions.Delete(ctx, sessionID)
	if err != nil && !errors.Is(err, store.ErrSessionNotFound) {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

// EndAll deletes every session for a user and returns the count.
func (m *SessionManager) EndAll(ctx context.Context, userID uuid.UUID) (int, error) {
	count, err := m.sessions.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to end all sessions: %w", err)
	}
	return count, nil
}
