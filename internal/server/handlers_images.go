package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chronocam/chronocam/internal/auth"
	"github.com/chronocam/chronocam/internal/models"
	"github.com/chronocam/chronocam/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// maxUploadBytes caps a single upload at 32 MB.
const maxUploadBytes = 32 << 20

// Upload stores a multipart image for the authenticated user. The file goes
// in the "image" field, an optional "captured_at" field carries the RFC 3339
// capture time and defaults to now.
func (s *Server) Upload(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "upload too large or malformed")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeInternalError(w, fmt.Errorf("failed to read upload: %w", err))
		return
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, http.StatusBadRequest, "file is not an image")
		return
	}

	capturedAt := time.Now()
	if v := r.FormValue("captured_at"); v != "" {
		capturedAt, err = time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "captured_at must be RFC 3339")
			return
		}
	}

	imageID, err := uuid.NewV7()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	image := &models.Image{
		ImageID:     imageID,
		OwnerID:     principal.User.UserID,
		Filename:    header.Filename,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		Data:        data,
		CapturedAt:  capturedAt,
		CreatedAt:   time.Now(),
	}

	if err := s.images.Create(r.Context(), image); err != nil {
		writeInternalError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.UploadsTotal.Inc()
		s.metrics.UploadBytes.Observe(float64(image.SizeBytes))
	}

	log.Info().
		Str("image_id", image.ImageID.String()).
		Str("owner_id", image.OwnerID.String()).
		Int64("size_bytes", image.SizeBytes).
		Msg("Image uploaded")

	writeJSON(w, http.StatusCreated, newImageResponse(image))
}

// ListImages returns the authenticated user's images, optionally narrowed by
// capture time with from/to query parameters in RFC 3339. The owner comes
// from the session, never from the request.
func (s *Server) ListImages(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var filter store.ImageFilter

	if v := r.URL.Query().Get("from"); v != "" {
		from, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be RFC 3339")
			return
		}
		filter.From = &from
	}
	if v := r.URL.Query().Get("to"); v != "" {
		to, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to must be RFC 3339")
			return
		}
		filter.To = &to
	}

	images, err := s.images.ListByOwner(r.Context(), principal.User.UserID, filter)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	responses := make([]imageResponse, 0, len(images))
	for _, image := range images {
		responses = append(responses, newImageResponse(image))
	}

	writeJSON(w, http.StatusOK, map[string]any{"images": responses})
}

// GetImage serves the image bytes. Another user's image returns 404, not 403,
// existence is not revealed.
func (s *Server) GetImage(w http.ResponseWriter, r *http.Request) {
	_, image, ok := s.ownedImage(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", image.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", image.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(image.Data)
}

// DeleteImage removes one of the authenticated user's images.
func (s *Server) DeleteImage(w http.ResponseWriter, r *http.Request) {
	_, image, ok := s.ownedImage(w, r)
	if !ok {
		return
	}

	if err := s.images.Delete(r.Context(), image.ImageID); err != nil {
		if errors.Is(err, store.ErrImageNotFound) {
			writeError(w, http.StatusNotFound, "image not found")
			return
		}
		writeInternalError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ownedImage loads the image from the path and checks the principal owns it.
// Writes the error response itself when ok is false.
func (s *Server) ownedImage(w http.ResponseWriter, r *http.Request) (*auth.Principal, *models.Image, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, nil, false
	}

	imageID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "image not found")
		return nil, nil, false
	}

	image, err := s.images.Get(r.Context(), imageID)
	if err != nil {
		if errors.Is(err, store.ErrImageNotFound) {
			writeError(w, http.StatusNotFound, "image not found")
			return nil, nil, false
		}
		writeInternalError(w, err)
		return nil, nil, false
	}

	if image.OwnerID != principal.User.UserID {
		writeError(w, http.StatusNotFound, "image not found")
		return nil, nil, false
	}

	return principal, image, true
}
