package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/chronocam/chronocam/internal/models"
	"github.com/rs/zerolog/log"
)

// userResponse is the public view of an account. The password hash never
// leaves the server.
type userResponse struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	IsVerified bool      `json:"is_verified"`
	HasGoogle  bool      `json:"has_google"`
	CreatedAt  time.Time `json:"created_at"`
}

func newUserResponse(user *models.User) userResponse {
	return userResponse{
		UserID:     user.UserID.String(),
		Email:      user.Email,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		Phone:      user.Phone,
		IsVerified: user.IsVerified,
		HasGoogle:  user.GoogleID != nil,
		CreatedAt:  user.CreatedAt,
	}
}

// imageResponse is the metadata view of an image, bytes are served separately.
type imageResponse struct {
	ImageID     string    `json:"image_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	CapturedAt  time.Time `json:"captured_at"`
	CreatedAt   time.Time `json:"created_at"`
	URL         string    `json:"url"`
}

func newImageResponse(image *models.Image) imageResponse {
	return imageResponse{
		ImageID:     image.ImageID.String(),
		Filename:    image.Filename,
		ContentType: image.ContentType,
		SizeBytes:   image.SizeBytes,
		CapturedAt:  image.CapturedAt,
		CreatedAt:   image.CreatedAt,
		URL:         "/images/" + image.ImageID.String(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeInternalError logs the detail server-side and returns a generic 500.
func writeInternalError(w http.ResponseWriter, err error) {
	log.Error().Err(err).Msg("Internal server error")
	writeError(w, http.StatusInternalServerError, "internal server error")
}
