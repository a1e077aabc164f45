//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/chronocam/chronocam/internal/models"
	"github.com/chronocam/chronocam/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupStores starts a disposable PostgreSQL container, runs migrations, and
// returns the stores. Run with: go test -tags integration ./internal/store/postgres/
func setupStores(t *testing.T) *Stores {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:18-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "chronocam",
			"POSTGRES_PASSWORD": "chronocam",
			"POSTGRES_DB":       "chronocam_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connString := fmt.Sprintf("postgres://chronocam:chronocam@%s:%s/chronocam_test?sslmode=disable",
		host, port.Port())

	stores, err := NewStores(ctx, &PoolConfig{ConnString: connString})
	require.NoError(t, err)
	t.Cleanup(stores.Close)

	return stores
}

func createUser(t *testing.T, stores *Stores, email string) *models.User {
	t.Helper()

	id, err := uuid.NewV7()
	require.NoError(t, err)

	now := time.Now()
	user := &models.User{
		UserID:       id,
		Email:        models.NormalizeEmail(email),
		PasswordHash: []byte("$2a$10$notarealhashnotarealhashnotarealhash"),
		FirstName:    "Grace",
		LastName:     "Hopper",
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	require.NoError(t, stores.Users.Create(context.Background(), user))
	return user
}

func TestIntegrationUserStore(t *testing.T) {
	stores := setupStores(t)
	ctx := context.Background()

	user := createUser(t, stores, "grace@example.com")

	t.Run("get by email", func(t *testing.T) {
		got, err := stores.Users.GetByEmail(ctx, "grace@example.com")
		require.NoError(t, err)
		require.Equal(t, user.UserID, got.UserID)
		require.Equal(t, user.PasswordHash, got.PasswordHash)
	})

	t.Run("duplicate email maps to sentinel", func(t *testing.T) {
		dup := *user
		dupID, err := uuid.NewV7()
		require.NoError(t, err)
		dup.UserID = dupID

		err = stores.Users.Create(ctx, &dup)
		require.ErrorIs(t, err, store.ErrDuplicateEmail)
	})

	t.Run("attach google id and fetch", func(t *testing.T) {
		googleID := "google-sub-123"
		user.GoogleID = &googleID
		user.IsVerified = true
		require.NoError(t, stores.Users.Update(ctx, user))

		got, err := stores.Users.GetByGoogleID(ctx, googleID)
		require.NoError(t, err)
		require.Equal(t, user.UserID, got.UserID)
		require.True(t, got.IsVerified)
	})

	t.Run("duplicate google id maps to sentinel", func(t *testing.T) {
		other := createUser(t, stores, "other@example.com")

		googleID := "google-sub-123"
		other.GoogleID = &googleID
		err := stores.Users.Update(ctx, other)
		require.ErrorIs(t, err, store.ErrDuplicateGoogleID)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := stores.Users.Get(ctx, uuid.New())
		require.ErrorIs(t, err, store.ErrUserNotFound)
	})
}

func TestIntegrationSessionStore(t *testing.T) {
	stores := setupStores(t)
	ctx := context.Background()

	user := createUser(t, stores, "sessions@example.com")

	newSession := func(ttl time.Duration) *models.Session {
		id, err := uuid.NewV7()
		require.NoError(t, err)

		now := time.Now()
		return &models.Session{
			SessionID:  id,
			UserID:     user.UserID,
			CreatedAt:  now,
			ExpiresAt:  now.Add(ttl),
			LastUsedAt: now,
			UserAgent:  "integration-test",
			IPAddress:  "192.0.2.1",
		}
	}

	t.Run("create and get", func(t *testing.T) {
		session := newSession(time.Hour)
		require.NoError(t, stores.Sessions.Create(ctx, session))

		got, err := stores.Sessions.Get(ctx, session.SessionID)
		require.NoError(t, err)
		require.Equal(t, user.UserID, got.UserID)
	})

	t.Run("expired session", func(t *testing.T) {
		session := newSession(-time.Minute)
		require.NoError(t, stores.Sessions.Create(ctx, session))

		_, err := stores.Sessions.Get(ctx, session.SessionID)
		require.ErrorIs(t, err, store.ErrSessionExpired)
	})

	t.Run("sweep removes expired only", func(t *testing.T) {
		live := newSession(time.Hour)
		require.NoError(t, stores.Sessions.Create(ctx, live))

		count, err := stores.Sessions.DeleteExpired(ctx)
		require.NoError(t, err)
		require.GreaterOrEqual(t, count, 1)

		_, err = stores.Sessions.Get(ctx, live.SessionID)
		require.NoError(t, err)
	})

	t.Run("delete by user", func(t *testing.T) {
		count, err := stores.Sessions.DeleteByUser(ctx, user.UserID)
		require.NoError(t, err)
		require.GreaterOrEqual(t, count, 1)

		count, err = stores.Sessions.DeleteByUser(ctx, user.UserID)
		require.NoError(t, err)
		require.Zero(t, count)
	})
}

func TestIntegrationImageStore(t *testing.T) {
	stores := setupStores(t)
	ctx := context.Background()

	user := createUser(t, stores, "images@example.com")
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	newImage := func(capturedAt time.Time) *models.Image {
		id, err := uuid.NewV7()
		require.NoError(t, err)

		return &models.Image{
			ImageID:     id,
			OwnerID:     user.UserID,
			Filename:    "shot.jpg",
			ContentType: "image/jpeg",
			SizeBytes:   4,
			Data:        []byte{0xff, 0xd8, 0xff, 0xd9},
			CapturedAt:  capturedAt,
			CreatedAt:   time.Now(),
		}
	}

	oldest := newImage(base)
	newest := newImage(base.Add(48 * time.Hour))
	require.NoError(t, stores.Images.Create(ctx, oldest))
	require.NoError(t, stores.Images.Create(ctx, newest))

	t.Run("get includes bytes", func(t *testing.T) {
		got, err := stores.Images.Get(ctx, oldest.ImageID)
		require.NoError(t, err)
		require.Equal(t, oldest.Data, got.Data)
	})

	t.Run("list newest first without bytes", func(t *testing.T) {
		images, err := stores.Images.ListByOwner(ctx, user.UserID, store.ImageFilter{})
		require.NoError(t, err)
		require.Len(t, images, 2)
		require.Equal(t, newest.ImageID, images[0].ImageID)
		require.Nil(t, images[0].Data)
	})

	t.Run("capture time filters", func(t *testing.T) {
		from := base.Add(time.Hour)
		images, err := stores.Images.ListByOwner(ctx, user.UserID, store.ImageFilter{From: &from})
		require.NoError(t, err)
		require.Len(t, images, 1)
		require.Equal(t, newest.ImageID, images[0].ImageID)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, stores.Images.Delete(ctx, oldest.ImageID))

		_, err := stores.Images.Get(ctx, oldest.ImageID)
		require.ErrorIs(t, err, store.ErrImageNotFound)
	})
}
