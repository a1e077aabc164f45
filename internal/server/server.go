package server

import (
	"net/http"

	"github.com/chronocam/chronocam/internal/auth"
	"github.com/chronocam/chronocam/internal/login"
	"github.com/chronocam/chronocam/internal/store"
	"github.com/chronocam/chronocam/internal/telemetry"
)

// Config wires the server's dependencies.
type Config struct {
	Users    store.UserStore
	Images   store.ImageStore
	Sessions *auth.SessionManager
	Verifier *auth.PasswordVerifier
	Gate     *auth.Gate

	// Google is optional, login routes return 404 when it is nil.
	Google *login.Google

	Metrics *telemetry.Metrics

	// Secure marks cookies Secure, set when serving over TLS.
	Secure bool

	// LoginSuccessURL is where form logins land after authenticating.
	LoginSuccessURL string
}

// Server holds the HTTP handlers for the auth gate and image endpoints.
type Server struct {
	users    store.UserStore
	images   store.ImageStore
	sessions *auth.SessionManager
	verifier *auth.PasswordVerifier
	gate     *auth.Gate
	google   *login.Google
	metrics  *telemetry.Metrics

	secure          bool
	loginSuccessURL string
}

// New creates the server.
func New(cfg Config) *Server {
	loginSuccessURL := cfg.LoginSuccessURL
	if loginSuccessURL == "" {
		loginSuccessURL = "/"
	}

	return &Server{
		users:           cfg.Users,
		images:          cfg.Images,
		sessions:        cfg.Sessions,
		verifier:        cfg.Verifier,
		gate:            cfg.Gate,
		google:          cfg.Google,
		metrics:         cfg.Metrics,
		secure:          cfg.Secure,
		loginSuccessURL: loginSuccessURL,
	}
}

// Handler builds the route table. Every request passes through the gate so
// handlers can check for a principal, protected routes additionally require
// one.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/signup", s.Signup)
	mux.HandleFunc("POST /auth/login", s.Login)
	mux.HandleFunc("GET /logout", s.Logout)
	mux.HandleFunc("POST /logout", s.Logout)

	if s.google != nil {
		mux.HandleFunc("GET /auth/google", s.google.LoginHandler)
		mux.HandleFunc("GET /auth/google/callback", s.google.CallbackHandler)
	}

	mux.Handle("GET /api/me", s.gate.RequireAPI(http.HandlerFunc(s.Me)))
	mux.Handle("POST /upload", s.gate.RequireAPI(http.HandlerFunc(s.Upload)))
	mux.Handle("GET /images/user-images", s.gate.RequireAPI(http.HandlerFunc(s.ListImages)))
	mux.Handle("GET /images/{id}", s.gate.RequireAPI(http.HandlerFunc(s.GetImage)))
	mux.Handle("DELETE /images/{id}", s.gate.RequireAPI(http.HandlerFunc(s.DeleteImage)))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return s.gate.WithPrincipal(mux)
}
