package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/chronocam/chronocam/internal/models"
	"github.com/chronocam/chronocam/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// ImageStore implements store.ImageStore using PostgreSQL.
// Image bytes are stored inline in the images table.
type ImageStore struct {
	pool *pgxpool.Pool
}

// NewImageStore creates a new PostgreSQL-backed image store.
func NewImageStore(pool *pgxpool.Pool) *ImageStore {
	return &ImageStore{
		pool: pool,
	}
}

// Create stores a new image in the database.
func (s *ImageStore) Create(ctx context.Context, image *models.Image) error {
	query := `
		INSERT INTO images (
			image_id, owner_id, filename, content_type,
			size_bytes, data, captured_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := s.pool.Exec(ctx, query,
		image.ImageID,
		image.OwnerID,
		image.Filename,
		image.ContentType,
		image.SizeBytes,
		image.Data,
		image.CapturedAt,
		image.CreatedAt,
	)

	if err != nil {
		return mapPostgresError(err)
	}

	log.Debug().
		Str("image_id", image.ImageID.String()).
		Str("owner_id", image.OwnerID.String()).
		Int64("size_bytes", image.SizeBytes).
		Msg("Created image")

	return nil
}

// Get retrieves an image by ID, including its bytes.
func (s *ImageStore) Get(ctx context.Context, imageID uuid.UUID) (*models.Image, error) {
	query := `
		SELECT
			image_id, owner_id, filename, content_type,
			size_bytes, data, captured_at, created_at
		FROM images
		WHERE image_id = $1
	`

	var image models.Image
	err := s.pool.QueryRow(ctx, query, imageID).Scan(
		&image.ImageID,
		&image.OwnerID,
		&image.Filename,
		&image.ContentType,
		&image.SizeBytes,
		&image.Data,
		&image.CapturedAt,
		&image.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to get image: %w", err)
	}

	return &image, nil
}

// ListByOwner returns the owner's images matching the filter, newest capture first.
// Listings omit the raw bytes.
func (s *ImageStore) ListByOwner(ctx context.Context, ownerID uuid.UUID, filter store.ImageFilter) ([]*models.Image, error) {
	query := `
		SELECT
			image_id, owner_id, filename, content_type,
			size_bytes, captured_at, created_at
		FROM images
		WHERE owner_id = $1
	`

	args := []any{ownerID}

	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND captured_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND captured_at <= $%d", len(args))
	}

	query += " ORDER BY captured_at DESC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	var images []*models.Image
	for rows.Next() {
		var image models.Image
		err := rows.Scan(
			&image.ImageID,
			&image.OwnerID,
			&image.Filename,
			&image.ContentType,
			&image.SizeBytes,
			&image.CapturedAt,
			&image.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}

		images = append(images, &image)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating images: %w", err)
	}

	return images, nil
}

// Delete removes an image by ID.
func (s *ImageStore) Delete(ctx context.Context, imageID uuid.UUID) error {
	query := `DELETE FROM images WHERE image_id = $1`

	result, err := s.pool.Exec(ctx, query, imageID)
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrImageNotFound
	}

	log.Debug().
		Str("image_id", imageID.String()).
		Msg("Deleted image")

	return nil
}
