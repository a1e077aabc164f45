package login

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/chronocam/chronocam/internal/auth"
	chronohttp "github.com/chronocam/chronocam/internal/http"
	"github.com/chronocam/chronocam/internal/models"
	"github.com/chronocam/chronocam/internal/store/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestGoogle(t *testing.T) (*Google, *memory.UserStore) {
	t.Helper()

	users := memory.NewUserStore()
	sessions := memory.NewSessionStore()
	manager := auth.NewSessionManager(sessions, users, time.Hour)

	g, err := NewGoogle("client-id", "client-secret", "http://localhost:8080/auth/google/callback",
		users, manager, "/gallery", false)
	require.NoError(t, err)

	return g, users
}

func TestNewGoogleValidation(t *testing.T) {
	_, err := NewGoogle("", "", "", nil, nil, "/", false)
	require.Error(t, err)
}

func TestLoginHandlerSetsStateCookie(t *testing.T) {
	g, _ := newTestGoogle(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/google", nil)
	rec := httptest.NewRecorder()

	g.LoginHandler(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "state", cookies[0].Name)
	require.NotEmpty(t, cookies[0].Value)
	require.Equal(t, 300, cookies[0].MaxAge)

	// The redirect carries the same state
	location := rec.Header().Get("Location")
	require.Contains(t, location, "state="+cookies[0].Value)
	require.Contains(t, location, "accounts.google.com")
}

func TestCallbackHandlerRejectsBadState(t *testing.T) {
	g, _ := newTestGoogle(t)

	t.Run("missing state and code", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/google/callback", nil)
		rec := httptest.NewRecorder()

		g.CallbackHandler(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing state cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=abc&code=xyz", nil)
		rec := httptest.NewRecorder()

		g.CallbackHandler(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("state mismatch", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=abc&code=xyz", nil)
		req.AddCookie(&http.Cookie{Name: "state", Value: "different"})
		rec := httptest.NewRecorder()

		g.CallbackHandler(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCallbackHandlerStartsSession(t *testing.T) {
	users := memory.NewUserStore()
	sessions := memory.NewSessionStore()
	manager := auth.NewSessionManager(sessions, users, time.Hour)

	// Stand-in for Google's token and userinfo endpoints
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"test-token","token_type":"Bearer"}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"google-sub-7","email":"callback@example.com","given_name":"Ada","family_name":"Lovelace"}`))
	})
	provider := httptest.NewServer(mux)
	defer provider.Close()

	g, err := NewGoogle("client-id", "client-secret", "http://localhost:8080/auth/google/callback",
		users, manager, "/", false)
	require.NoError(t, err)
	g.config.Endpoint = oauth2.Endpoint{
		AuthURL:  provider.URL + "/auth",
		TokenURL: provider.URL + "/token",
	}
	g.userInfoURL = provider.URL + "/userinfo"

	handler := chronohttp.ClientIPMiddleware()(http.HandlerFunc(g.CallbackHandler))

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=abc&code=xyz", nil)
	req.AddCookie(&http.Cookie{Name: "state", Value: "abc"})
	req.RemoteAddr = "[2001:db8::1]:51234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))

	var sessionID uuid.UUID
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			sessionID, err = uuid.Parse(c.Value)
			require.NoError(t, err)
		}
	}
	require.NotEqual(t, uuid.Nil, sessionID)

	session, err := sessions.Get(t.Context(), sessionID)
	require.NoError(t, err)

	// The audit IP is the client address the middleware extracted, not the
	// raw host:port pair, so the postgres INET column accepts it
	addr, err := netip.ParseAddr(session.IPAddress)
	require.NoError(t, err)
	require.Equal(t, "2001:db8::1", addr.String())

	user, err := users.GetByGoogleID(t.Context(), "google-sub-7")
	require.NoError(t, err)
	require.Equal(t, session.UserID, user.UserID)
}

func TestResolveOrCreate(t *testing.T) {
	ctx := t.Context()
	g, users := newTestGoogle(t)

	info := &UserInfo{
		Sub:        "google-sub-1",
		Email:      "Traveler@Example.com",
		Name:       "Ada Lovelace",
		GivenName:  "Ada",
		FamilyName: "Lovelace",
	}

	t.Run("creates verified account", func(t *testing.T) {
		user, err := g.ResolveOrCreate(ctx, info)
		require.NoError(t, err)
		require.Equal(t, "traveler@example.com", user.Email)
		require.NotNil(t, user.GoogleID)
		require.Equal(t, "google-sub-1", *user.GoogleID)
		require.True(t, user.IsVerified)
		require.Equal(t, "Ada", user.FirstName)
		require.False(t, user.HasPassword())
	})

	t.Run("repeat login finds same account", func(t *testing.T) {
		first, err := g.ResolveOrCreate(ctx, info)
		require.NoError(t, err)

		second, err := g.ResolveOrCreate(ctx, info)
		require.NoError(t, err)
		require.Equal(t, first.UserID, second.UserID)
	})

	t.Run("attaches to existing password account", func(t *testing.T) {
		id, err := uuid.NewV7()
		require.NoError(t, err)

		now := time.Now()
		local := &models.User{
			UserID:       id,
			Email:        "local@example.com",
			PasswordHash: []byte("$2a$10$notarealhashnotarealhashnotarealhash"),
			FirstName:    "Grace",
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		require.NoError(t, users.Create(ctx, local))

		user, err := g.ResolveOrCreate(ctx, &UserInfo{
			Sub:   "google-sub-2",
			Email: "local@example.com",
		})
		require.NoError(t, err)
		require.Equal(t, local.UserID, user.UserID)
		require.NotNil(t, user.GoogleID)
		require.Equal(t, "google-sub-2", *user.GoogleID)
		require.True(t, user.IsVerified)

		// Password login still works for the linked account
		require.True(t, user.HasPassword())
	})
}
