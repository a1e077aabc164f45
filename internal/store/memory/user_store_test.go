package memory

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chronocam/chronocam/internal/models"
	"github.com/chronocam/chronocam/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestUser(t *testing.T, email string) *models.User {
	t.Helper()

	id, err := uuid.NewV7()
	require.NoError(t, err)

	now := time.Now()

	return &models.User{
		UserID:       id,
		Email:        models.NormalizeEmail(email),
		PasswordHash: []byte("$2a$10$notarealhashnotarealhashnotarealhash"),
		FirstName:    "Ada",
		LastName:     "Lovelace",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestUserStoreCreate(t *testing.T) {
	ctx := t.Context()
	s := NewUserStore()

	user := newTestUser(t, "ada@example.com")
	require.NoError(t, s.Create(ctx, user))

	t.Run("duplicate email rejected", func(t *testing.T) {
		dup := newTestUser(t, "ada@example.com")
		err := s.Create(ctx, dup)
		require.ErrorIs(t, err, store.ErrDuplicateEmail)
	})

	t.Run("duplicate google id rejected", func(t *testing.T) {
		googleID := "google-sub-1"

		first := newTestUser(t, "first@example.com")
		first.GoogleID = &googleID
		require.NoError(t, s.Create(ctx, first))

		second := newTestUser(t, "second@example.com")
		second.GoogleID = &googleID
		err := s.Create(ctx, second)
		require.ErrorIs(t, err, store.ErrDuplicateGoogleID)
	})
}

func TestUserStoreGet(t *testing.T) {
	ctx := t.Context()
	s := NewUserStore()

	user := newTestUser(t, "ada@example.com")
	require.NoError(t, s.Create(ctx, user))

	t.Run("by id", func(t *testing.T) {
		got, err := s.Get(ctx, user.UserID)
		require.NoError(t, err)
		require.Equal(t, user.Email, got.Email)
	})

	t.Run("by email", func(t *testing.T) {
		got, err := s.GetByEmail(ctx, "ada@example.com")
		require.NoError(t, err)
		require.Equal(t, user.UserID, got.UserID)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := s.Get(ctx, uuid.New())
		require.ErrorIs(t, err, store.ErrUserNotFound)

		_, err = s.GetByEmail(ctx, "nobody@example.com")
		require.ErrorIs(t, err, store.ErrUserNotFound)

		_, err = s.GetByGoogleID(ctx, "no-such-sub")
		require.ErrorIs(t, err, store.ErrUserNotFound)
	})

	t.Run("returned record is a copy", func(t *testing.T) {
		got, err := s.Get(ctx, user.UserID)
		require.NoError(t, err)

		got.FirstName = "Mutated"

		again, err := s.Get(ctx, user.UserID)
		require.NoError(t, err)
		require.Equal(t, "Ada", again.FirstName)
	})
}

func TestUserStoreConcurrentCreate(t *testing.T) {
	ctx := t.Context()
	s := NewUserStore()

	const racers = 8

	candidates := make([]*models.User, racers)
	for i := range candidates {
		candidates[i] = newTestUser(t, "race@example.com")
	}

	errs := make(chan error, racers)
	var wg sync.WaitGroup
	for _, user := range candidates {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Create(ctx, user)
		}()
	}
	wg.Wait()
	close(errs)

	// Exactly one signup wins, the rest see the duplicate
	var created, duplicates int
	for err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, store.ErrDuplicateEmail):
			duplicates++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, created)
	require.Equal(t, racers-1, duplicates)

	got, err := s.GetByEmail(ctx, "race@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestUserStoreUpdate(t *testing.T) {
	ctx := t.Context()
	s := NewUserStore()

	user := newTestUser(t, "ada@example.com")
	require.NoError(t, s.Create(ctx, user))

	t.Run("attach google id", func(t *testing.T) {
		googleID := "google-sub-42"
		user.GoogleID = &googleID
		user.IsVerified = true
		require.NoError(t, s.Update(ctx, user))

		got, err := s.GetByGoogleID(ctx, googleID)
		require.NoError(t, err)
		require.Equal(t, user.UserID, got.UserID)
		require.True(t, got.IsVerified)
	})

	t.Run("email change reindexes", func(t *testing.T) {
		user.Email = models.NormalizeEmail("ada.lovelace@example.com")
		require.NoError(t, s.Update(ctx, user))

		_, err := s.GetByEmail(ctx, "ada@example.com")
		require.ErrorIs(t, err, store.ErrUserNotFound)

		got, err := s.GetByEmail(ctx, "ada.lovelace@example.com")
		require.NoError(t, err)
		require.Equal(t, user.UserID, got.UserID)
	})

	t.Run("email collision rejected", func(t *testing.T) {
		other := newTestUser(t, "other@example.com")
		require.NoError(t, s.Create(ctx, other))

		other.Email = user.Email
		err := s.Update(ctx, other)
		require.ErrorIs(t, err, store.ErrDuplicateEmail)
	})

	t.Run("unknown user", func(t *testing.T) {
		ghost := newTestUser(t, "ghost@example.com")
		err := s.Update(ctx, ghost)
		require.ErrorIs(t, err, store.ErrUserNotFound)
	})
}
