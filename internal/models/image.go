package models

import (
	"time"

	"github.com/google/uuid"
)

// Image is a stored camera capture owned by exactly one user. The raw bytes
// are kept as an opaque blob; encoding and playback are the client's concern.
type Image struct {
	ImageID uuid.UUID // UUIDv7
	OwnerID uuid.UUID // FK to users

	Filename    string
	ContentType string
	SizeBytes   int64
	Data        []byte

	CapturedAt time.Time // when the camera recorded the frame
	CreatedAt  time.Time // when the upload was stored
}
