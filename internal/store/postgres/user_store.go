package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chronocam/chronocam/internal/models"
	"github.com/chronocam/chronocam/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// UserStore implements store.UserStore using PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a new PostgreSQL-backed user store.
// It shares the connection pool with other stores.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{
		pool: pool,
	}
}

// Create creates a new user in the database.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (
			user_id, email, password_hash, google_id,
			first_name, last_name, phone, is_verified,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	// Google-only accounts carry no password hash
	var passwordHash any
	if len(user.PasswordHash) == 0 {
		passwordHash = nil
	} else {
		passwordHash = user.PasswordHash
	}

	_, err := s.pool.Exec(ctx, query,
		user.UserID,
		user.Email,
		passwordHash,
		user.GoogleID,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.IsVerified,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		return mapPostgresError(err)
	}

	log.Debug().
		Str("user_id", user.UserID.String()).
		Str("email", user.Email).
		Msg("Created user")

	return nil
}

// Get retrieves a user by ID.
func (s *UserStore) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	query := userSelect + ` WHERE user_id = $1`
	return s.getOne(ctx, query, userID)
}

// GetByEmail retrieves a user by normalized email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := userSelect + ` WHERE email = $1`
	return s.getOne(ctx, query, email)
}

// GetByGoogleID retrieves a user by Google subject id.
func (s *UserStore) GetByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	query := userSelect + ` WHERE google_id = $1`
	return s.getOne(ctx, query, googleID)
}

// Update updates an existing user.
func (s *UserStore) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()

	query := `
		UPDATE users SET
			email = $2,
			password_hash = $3,
			google_id = $4,
			first_name = $5,
			last_name = $6,
			phone = $7,
			is_verified = $8,
			updated_at = $9
		WHERE user_id = $1
	`

	var passwordHash any
	if len(user.PasswordHash) == 0 {
		passwordHash = nil
	} else {
		passwordHash = user.PasswordHash
	}

	result, err := s.pool.Exec(ctx, query,
		user.UserID,
		user.Email,
		passwordHash,
		user.GoogleID,
		user.FirstName,
		user.LastName,
		user.Phone,
		user.IsVerified,
		user.UpdatedAt,
	)

	if err != nil {
		return mapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrUserNotFound
	}

	log.Debug().
		Str("user_id", user.UserID.String()).
		Msg("Updated user")

	return nil
}

const userSelect = `
	SELECT
		user_id, email, password_hash, google_id,
		first_name, last_name, phone, is_verified,
		created_at, updated_at
	FROM users
`

func (s *UserStore) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&user.UserID,
		&user.Email,
		&user.PasswordHash,
		&user.GoogleID,
		&user.FirstName,
		&user.LastName,
		&user.Phone,
		&user.IsVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}
