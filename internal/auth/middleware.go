package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"
)

type contextKey string

const (
	principalContextKey contextKey = "principal"
	reasonContextKey    contextKey = "auth_reason"
)

// Gate attaches principals to requests and guards protected routes.
type Gate struct {
	manager  *SessionManager
	loginURL string
	secure   bool
}

// NewGate creates a gate that resolves sessions via the manager. Unauthorized
// page requests redirect to loginURL. secure controls the Secure flag on
// cleared cookies.
func NewGate(manager *SessionManager, loginURL string, secure bool) *Gate {
	return &Gate{
		manager:  manager,
		loginURL: loginURL,
		secure:   secure,
	}
}

// PrincipalFromContext returns the authenticated principal for the request,
// if any. Handlers behind RequirePage or RequireAPI can rely on ok being true.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(*Principal)
	return principal, ok
}

// reasonFromContext returns why the request is anonymous.
func reasonFromContext(ctx context.Context) string {
	reason, _ := ctx.Value(reasonContextKey).(string)
	return reason
}

// WithPrincipal resolves the session cookie on every request and attaches the
// principal to the context. Requests without a valid session proceed as
// anonymous, a dead cookie is cleared on the way through.
func (g *Gate) WithPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := SessionIDFromRequest(r)
		if !ok {
			next.ServeHTTP(w, r.WithContext(
				context.WithValue(r.Context(), reasonContextKey, ReasonInvalid)))
			return
		}

		principal, reason, err := g.manager.Resolve(r.Context(), sessionID)
		if err != nil {
			log.Error().Err(err).Msg("Session resolution failed")
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		if principal == nil {
			ClearSessionCookie(w, g.secure)
			next.ServeHTTP(w, r.WithContext(
				context.WithValue(r.Context(), reasonContextKey, reason)))
			return
		}

		next.ServeHTTP(w, r.WithContext(
			context.WithValue(r.Context(), principalContextKey, principal)))
	})
}

// RequirePage guards browser-facing routes. Anonymous requests are redirected
// to the login page with an error_code explaining whether the session was
// missing or expired.
func (g *Gate) RequirePage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}

		reason := reasonFromContext(r.Context())
		if reason == "" {
			reason = ReasonInvalid
		}

		location := g.loginURL + "?error_code=" + url.QueryEscape(reason)
		http.Redirect(w, r, location, http.StatusFound)
	})
}

// RequireAPI guards JSON API routes. Anonymous requests get 401 with a JSON
// body, no redirect.
func (g *Gate) RequireAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}

		reason := reasonFromContext(r.Context())
		if reason == "" {
			reason = ReasonInvalid
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":      "unauthorized",
			"error_code": reason,
		})
	})
}
