package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/chronocam/chronocam/internal/models"
	"github.com/chronocam/chronocam/internal/store"
	"github.com/google/uuid"
)

// ImageStore implements store.ImageStore using in-memory storage.
// This implementation is for development and testing - data is lost on restart.
type ImageStore struct {
	mu sync.RWMutex

	images        map[uuid.UUID]*models.Image // image_id -> Image
	imagesByOwner map[uuid.UUID][]uuid.UUID   // owner_id -> []image_id
}

// NewImageStore creates a new in-memory image store.
func NewImageStore() *ImageStore {
	return &ImageStore{
		images:        make(map[uuid.UUID]*models.Image),
		imagesByOwner: make(map[uuid.UUID][]uuid.UUID),
	}
}

// Create stores a new image in memory.
func (s *ImageStore) Create(ctx context.Context, image *models.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Clone to avoid external modifications
	clone := *image
	s.images[image.ImageID] = &clone

	s.imagesByOwner[image.OwnerID] = append(
		s.imagesByOwner[image.OwnerID],
		image.ImageID,
	)

	return nil
}

// Get retrieves an image by ID, including its bytes.
func (s *ImageStore) Get(ctx context.Context, imageID uuid.UUID) (*models.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	image, exists := s.images[imageID]
	if !exists {
		return nil, store.ErrImageNotFound
	}

	clone := *image
	return &clone, nil
}

// ListByOwner returns the owner's images matching the filter, newest capture first.
func (s *ImageStore) ListByOwner(ctx context.Context, ownerID uuid.UUID, filter store.ImageFilter) ([]*models.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Image
	for _, imageID := range s.imagesByOwner[ownerID] {
		image := s.images[imageID]
		if filter.From != nil && image.CapturedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && image.CapturedAt.After(*filter.To) {
			continue
		}

		// Listings omit the raw bytes
		clone := *image
		clone.Data = nil
		result = append(result, &clone)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CapturedAt.After(result[j].CapturedAt)
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}

	return result, nil
}

// Delete removes an image by ID.
func (s *ImageStore) Delete(ctx context.Context, imageID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	image, exists := s.images[imageID]
	if !exists {
		return store.ErrImageNotFound
	}

	imageIDs := s.imagesByOwner[image.OwnerID]
	for i, id := range imageIDs {
		if id == imageID {
			s.imagesByOwner[image.OwnerID] = append(imageIDs[:i], imageIDs[i+1:]...)
			break
		}
	}
	if len(s.imagesByOwner[image.OwnerID]) == 0 {
		delete(s.imagesByOwner, image.OwnerID)
	}
	delete(s.images, imageID)

	return nil
}
