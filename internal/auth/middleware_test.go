package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chronocam/chronocam/internal/store/memory"
	"github.com/stretchr/testify/require"
)

func newTestGate(t *testing.T) (*Gate, *SessionManager, *memory.UserStore) {
	t.Helper()

	users := memory.NewUserStore()
	sessions := memory.NewSessionStore()
	manager := NewSessionManager(sessions, users, time.Hour)

	return NewGate(manager, "/login", false), manager, users
}

func okHandler(t *testing.T, wantPrincipal bool) http.Handler {
	t.Helper()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := PrincipalFromContext(r.Context())
		require.Equal(t, wantPrincipal, ok)
		w.WriteHeader(http.StatusOK)
	})
}

func TestGateWithPrincipal(t *testing.T) {
	gate, manager, users := newTestGate(t)

	user := newTestUser(t, users, "gate@example.com")
	session, err := manager.Start(t.Context(), user, "", "")
	require.NoError(t, err)

	t.Run("valid cookie attaches principal", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: session.SessionID.String()})

		rec := httptest.NewRecorder()
		gate.WithPrincipal(okHandler(t, true)).ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("no cookie proceeds as anonymous", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)

		rec := httptest.NewRecorder()
		gate.WithPrincipal(okHandler(t, false)).ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("garbage cookie proceeds as anonymous", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "not-a-uuid"})

		rec := httptest.NewRecorder()
		gate.WithPrincipal(okHandler(t, false)).ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("dead cookie is cleared", func(t *testing.T) {
		ended, err := manager.Start(t.Context(), user, "", "")
		require.NoError(t, err)
		require.NoError(t, manager.End(t.Context(), ended.SessionID))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: ended.SessionID.String()})

		rec := httptest.NewRecorder()
		gate.WithPrincipal(okHandler(t, false)).ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		require.Equal(t, SessionCookieName, cookies[0].Name)
		require.Negative(t, cookies[0].MaxAge)
	})
}

func TestGateRequirePage(t *testing.T) {
	gate, manager, users := newTestGate(t)
	user := newTestUser(t, users, "page@example.com")

	protected := gate.WithPrincipal(gate.RequirePage(okHandler(t, true)))

	t.Run("authenticated passes through", func(t *testing.T) {
		session, err := manager.Start(t.Context(), user, "", "")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/gallery", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: session.SessionID.String()})

		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("anonymous redirects with invalid code", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/gallery", nil)

		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		require.Equal(t, http.StatusFound, rec.Code)
		require.Equal(t, "/login?error_code=invalid", rec.Header().Get("Location"))
	})
}

func TestGateRequireAPI(t *testing.T) {
	gate, manager, users := newTestGate(t)
	user := newTestUser(t, users, "api@example.com")

	protected := gate.WithPrincipal(gate.RequireAPI(okHandler(t, true)))

	t.Run("authenticated passes through", func(t *testing.T) {
		session, err := manager.Start(t.Context(), user, "", "")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: session.SessionID.String()})

		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("anonymous gets 401 json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)

		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		require.JSONEq(t, `{"error":"unauthorized","error_code":"invalid"}`, rec.Body.String())
	})
}
