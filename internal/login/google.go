package login

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chronocam/chronocam/internal/auth"
	chronohttp "github.com/chronocam/chronocam/internal/http"
	"github.com/chronocam/chronocam/internal/models"
	"github.com/chronocam/chronocam/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const userInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// Google handles the Google OAuth login flow. A successful callback resolves
// or creates a local account and starts a server-side session, the OAuth
// token itself is discarded.
type Google struct {
	config      *oauth2.Config
	userInfoURL string
	users       store.UserStore
	sessions    *auth.SessionManager
	successURL  string
	secure      bool
}

// NewGoogle creates the Google OAuth login flow.
func NewGoogle(
	clientID, clientSecret, callbackURL string,
	users store.UserStore,
	sessions *auth.SessionManager,
	successURL string,
	secure bool,
) (*Google, error) {
	if clientID == "" || clientSecret == "" || callbackURL == "" {
		return nil, fmt.Errorf("client ID, client secret, and callback URL are required")
	}

	return &Google{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: userInfoURL,
		users:       users,
		sessions:    sessions,
		successURL:  successURL,
		secure:      secure,
	}, nil
}

func (g *Google) saveState(w http.ResponseWriter) string {
	// generate random state
	state := rand.Text()

	cookie := &http.Cookie{
		Name:     "state",
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300, // 5 minutes - enough time for OAuth flow
	}
	http.SetCookie(w, cookie)

	return state
}

// LoginHandler starts the OAuth flow by redirecting to Google's consent page.
func (g *Google) LoginHandler(w http.ResponseWriter, r *http.Request) {
	log.Debug().Msg("Initiating Google OAuth flow")

	state := g.saveState(w)

	http.Redirect(w, r, g.config.AuthCodeURL(state), http.StatusFound)
}

// CallbackHandler completes the OAuth flow: validates state, exchanges the
// code, fetches the Google profile, resolves the local account, and starts a
// session.
func (g *Google) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	log.Debug().Msg("OAuth callback received")

	state := r.FormValue("state")
	code := r.FormValue("code")

	if state == "" || code == "" {
		log.Warn().Msg("OAuth callback missing state or code")
		http.Error(w, "Authentication failed", http.StatusBadRequest)
		return
	}

	cookie, err := r.Cookie("state")
	if err != nil {
		log.Warn().Err(err).Msg("OAuth callback missing state cookie")
		http.Error(w, "Authentication failed", http.StatusBadRequest)
		return
	}

	if state != cookie.Value {
		log.Warn().Msg("OAuth callback state mismatch")
		http.Error(w, "Authentication failed", http.StatusBadRequest)
		return
	}

	log.Debug().Msg("OAuth state validated successfully")

	// Clear the state cookie after validation
	http.SetCookie(w, &http.Cookie{
		Name:     "state",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
	})

	token, err := g.config.Exchange(r.Context(), code)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to exchange OAuth code for token")
		g.redirectWithError(w, r, "provider_error")
		return
	}

	log.Debug().Msg("OAuth token exchange successful")

	userInfo, err := g.getUserInfo(r.Context(), token)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to fetch user info from Google")
		g.redirectWithError(w, r, "provider_error")
		return
	}

	if userInfo.Email == "" {
		log.Warn().Msg("Google user info missing email address")
		g.redirectWithError(w, r, "email_required")
		return
	}

	user, err := g.ResolveOrCreate(r.Context(), userInfo)
	if err != nil {
		log.Error().Err(err).Msg("Failed to resolve Google account")
		g.redirectWithError(w, r, "login_failed")
		return
	}

	session, err := g.sessions.Start(r.Context(), user,
		r.UserAgent(), chronohttp.ClientIPFromContext(r.Context()))
	if err != nil {
		log.Error().Err(err).Msg("Failed to start session")
		g.redirectWithError(w, r, "login_failed")
		return
	}

	auth.SetSessionCookie(w, session.SessionID, session.ExpiresAt, g.secure)

	log.Info().Str("user", user.Email).Msg("User authenticated via Google")

	http.Redirect(w, r, g.successURL, http.StatusFound)
}

// ResolveOrCreate maps a Google profile to a local account. Lookup order:
// by Google subject id, then by email (which attaches the Google id to an
// existing password account), then a fresh account. Google accounts are
// created verified, their email was already confirmed by Google.
func (g *Google) ResolveOrCreate(ctx context.Context, info *UserInfo) (*models.User, error) {
	user, err := g.users.GetByGoogleID(ctx, info.Sub)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up google account: %w", err)
	}

	email := models.NormalizeEmail(info.Email)

	user, err = g.users.GetByEmail(ctx, email)
	if err == nil {
		// Existing password account, attach the Google identity
		user.GoogleID = &info.Sub
		user.IsVerified = true
		if err := g.users.Update(ctx, user); err != nil {
			if errors.Is(err, store.ErrDuplicateGoogleID) {
				// Lost a race with another callback, re-fetch
				return g.users.GetByGoogleID(ctx, info.Sub)
			}
			return nil, fmt.Errorf("failed to attach google account: %w", err)
		}

		log.Info().Str("user", user.Email).Msg("Attached Google identity to existing account")
		return user, nil
	}
	if !errors.Is(err, store.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up account by email: %w", err)
	}

	userID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user id: %w", err)
	}

	now := time.Now()
	user = &models.User{
		UserID:     userID,
		Email:      email,
		GoogleID:   &info.Sub,
		FirstName:  info.GivenName,
		LastName:   info.FamilyName,
		IsVerified: true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := g.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) || errors.Is(err, store.ErrDuplicateGoogleID) {
			// Lost a race with another callback, re-fetch
			return g.users.GetByGoogleID(ctx, info.Sub)
		}
		return nil, fmt.Errorf("failed to create google account: %w", err)
	}

	log.Info().Str("user", user.Email).Msg("Created account from Google profile")
	return user, nil
}

// redirectWithError sends the browser back to the application root with an
// error code. Provider detail stays in the logs.
func (g *Google) redirectWithError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, "/?error_code="+code, http.StatusFound)
}

func (g *Google) getUserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error) {
	// Add timeout to prevent hanging on a slow userinfo endpoint
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client := g.config.Client(ctx, token)
	resp, err := client.Get(g.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo endpoint returned HTTP %d", resp.StatusCode)
	}

	var userInfo UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	return &userInfo, nil
}

// UserInfo is the OpenID Connect userinfo response from Google.
type UserInfo struct {
	Sub        string `json:"sub"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}
