package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chronocam/chronocam/internal/auth"
	chronohttp "github.com/chronocam/chronocam/internal/http"
	"github.com/chronocam/chronocam/internal/models"
	"github.com/chronocam/chronocam/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const minPasswordLength = 8

type signupRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

func (r *signupRequest) validate() error {
	if r.Email == "" || !strings.Contains(r.Email, "@") {
		return fmt.Errorf("a valid email address is required")
	}
	if len(r.Password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	return nil
}

// Signup creates a password account. The new user is not logged in, they go
// through the login flow like everyone else.
func (s *Server) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	userID, err := uuid.NewV7()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	now := time.Now()
	user := &models.User{
		UserID:       userID,
		Email:        models.NormalizeEmail(req.Email),
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		writeInternalError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.SignupsTotal.Inc()
	}

	log.Info().Str("user_id", user.UserID.String()).Msg("User signed up")

	writeJSON(w, http.StatusCreated, newUserResponse(user))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login checks email/password credentials and starts a session. Accepts a
// JSON body or a classic form post, form posts get a redirect instead of a
// JSON response.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	isForm := false

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	} else {
		isForm = true
		req.Email = r.FormValue("email")
		req.Password = r.FormValue("password")
	}

	user, err := s.verifier.Verify(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.recordLogin("password", "failure")
			if isForm {
				http.Redirect(w, r, "/login?error_code=invalid", http.StatusFound)
				return
			}
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		writeInternalError(w, err)
		return
	}

	session, err := s.sessions.Start(r.Context(), user,
		r.UserAgent(), chronohttp.ClientIPFromContext(r.Context()))
	if err != nil {
		writeInternalError(w, err)
		return
	}

	auth.SetSessionCookie(w, session.SessionID, session.ExpiresAt, s.secure)
	s.recordLogin("password", "success")

	if isForm {
		http.Redirect(w, r, s.loginSuccessURL, http.StatusFound)
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(user))
}

func (s *Server) recordLogin(method, result string) {
	if s.metrics != nil {
		s.metrics.LoginsTotal.WithLabelValues(method, result).Inc()
	}
}

// Logout ends the current session and clears the cookie. It succeeds even
// without a valid session, logging out twice is fine.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID, ok := auth.SessionIDFromRequest(r); ok {
		if err := s.sessions.End(r.Context(), sessionID); err != nil {
			writeInternalError(w, err)
			return
		}
		if s.metrics != nil {
			s.metrics.LogoutsTotal.Inc()
		}
	}

	auth.ClearSessionCookie(w, s.secure)

	if r.Method == http.MethodGet {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated user's account.
func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, newUserResponse(principal.User))
}
