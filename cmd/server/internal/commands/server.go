package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"filippo.io/csrf"
	"github.com/chronocam/chronocam/internal/auth"
	chronohttp "github.com/chronocam/chronocam/internal/http"
	"github.com/chronocam/chronocam/internal/logger"
	"github.com/chronocam/chronocam/internal/login"
	"github.com/chronocam/chronocam/internal/server"
	"github.com/chronocam/chronocam/internal/store"
	memorystore "github.com/chronocam/chronocam/internal/store/memory"
	postgresstore "github.com/chronocam/chronocam/internal/store/postgres"
	"github.com/chronocam/chronocam/internal/telemetry"
	"github.com/rs/cors"
)

type ServerCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"CHRONOCAM_LISTEN"`
	Cert   string `help:"path to TLS cert file" default:"" env:"CHRONOCAM_TLS_CERT"`
	Key    string `help:"path to TLS key file" default:"" env:"CHRONOCAM_TLS_KEY"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"http://localhost:5173" env:"CHRONOCAM_CORS_ORIGINS"`

	// Google OAuth configuration, login routes are disabled when unset
	GoogleClientID     string `help:"Google OAuth client ID" default:"" env:"CHRONOCAM_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `help:"Google OAuth client secret" default:"" env:"CHRONOCAM_GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL  string `help:"Google OAuth callback URL" default:"" env:"CHRONOCAM_GOOGLE_CALLBACK_URL"`

	// Session configuration
	SessionTTL    time.Duration `help:"session TTL" default:"24h" env:"CHRONOCAM_SESSION_TTL"`
	SweepInterval time.Duration `help:"how often expired sessions are removed" default:"10m" env:"CHRONOCAM_SWEEP_INTERVAL"`
	LoginURL      string        `help:"login page URL for unauthenticated redirects" default:"/login" env:"CHRONOCAM_LOGIN_URL"`
	LoginSuccess  string        `help:"where logins land after authenticating" default:"/" env:"CHRONOCAM_LOGIN_SUCCESS_URL"`

	// Rate limiting for credential endpoints
	RateLimitRPS   float64 `help:"requests per second per client for auth endpoints" default:"5" env:"CHRONOCAM_RATE_LIMIT_RPS"`
	RateLimitBurst int     `help:"burst size per client for auth endpoints" default:"10" env:"CHRONOCAM_RATE_LIMIT_BURST"`

	// Operational modes
	Tracing bool `help:"enable tracing" default:"false" env:"CHRONOCAM_TRACING"`

	// Store configuration
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"CHRONOCAM_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"5"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`
}

func (s *PostgresStoreFlags) validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

func (c *ServerCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTracing(ctx, "chronocam-server", globals.Version)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without it")
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("Failed to shutdown tracing")
				}
			}()
		}
	}

	// Create stores based on store type
	var (
		userStore    store.UserStore
		sessionStore store.SessionStore
		imageStore   store.ImageStore
	)

	switch c.StoreType {
	case "postgres":
		if err := c.PostgresStore.validate(); err != nil {
			return fmt.Errorf("failed to validate postgres flags: %w", err)
		}

		stores, err := postgresstore.NewStores(ctx, &postgresstore.PoolConfig{
			ConnString:      c.PostgresStore.ConnString,
			MaxConns:        c.PostgresStore.MaxConns,
			MinConns:        c.PostgresStore.MinConns,
			MaxConnLifetime: c.PostgresStore.MaxConnLifetime,
			MaxConnIdleTime: c.PostgresStore.MaxConnIdleTime,
		})
		if err != nil {
			return fmt.Errorf("failed to create postgres stores: %w", err)
		}
		defer stores.Close()

		userStore = stores.Users
		sessionStore = stores.Sessions
		imageStore = stores.Images
		log.Info().Msg("Using PostgreSQL stores")

	default:
		userStore = memorystore.NewUserStore()
		sessionStore = memorystore.NewSessionStore()
		imageStore = memorystore.NewImageStore()
		log.Info().Msg("Using in-memory stores, data is lost on restart")
	}

	metrics := telemetry.NewMetrics()

	secure := c.Cert != "" && c.Key != ""

	sessionManager := auth.NewSessionManager(sessionStore, userStore, c.SessionTTL)
	gate := auth.NewGate(sessionManager, c.LoginURL, secure)

	sweeper := auth.NewSweeper(ctx, sessionStore, c.SweepInterval, func(count int) {
		metrics.SessionsSwept.Add(float64(count))
	})
	defer sweeper.Stop()

	var googleLogin *login.Google
	if c.GoogleClientID != "" {
		var err error
		googleLogin, err = login.NewGoogle(
			c.GoogleClientID, c.GoogleClientSecret, c.GoogleCallbackURL,
			userStore, sessionManager, c.LoginSuccess, secure)
		if err != nil {
			return fmt.Errorf("failed to initialize Google OAuth: %w", err)
		}
		log.Info().Msg("Google login enabled")
	} else {
		log.Info().Msg("Google login disabled, no client ID configured")
	}

	srv := server.New(server.Config{
		Users:           userStore,
		Images:          imageStore,
		Sessions:        sessionManager,
		Verifier:        auth.NewPasswordVerifier(userStore),
		Gate:            gate,
		Google:          googleLogin,
		Metrics:         metrics,
		Secure:          secure,
		LoginSuccessURL: c.LoginSuccess,
	})

	limiter := chronohttp.NewRateLimiter(ctx, c.RateLimitRPS, c.RateLimitBurst)
	defer limiter.Stop()

	handler, err := c.buildHandler(srv.Handler(), limiter, metrics)
	if err != nil {
		return err
	}

	httpServer := configureHTTPServer(c.Listen, handler)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", c.Listen).Bool("tls", secure).Msg("Server listening")
		if secure {
			errCh <- httpServer.ListenAndServeTLS(c.Cert, c.Key)
		} else {
			errCh <- httpServer.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	return nil
}

// buildHandler assembles the middleware chain around the route table.
// Recovery and logging wrap everything, the rate limiter only guards the
// credential endpoints, CSRF checks cross-site writes, CORS lets the
// configured frontends call the API with credentials.
func (c *ServerCmd) buildHandler(routes http.Handler, limiter *chronohttp.RateLimiter, metrics *telemetry.Metrics) (http.Handler, error) {
	protection := csrf.New()
	for _, origin := range c.CORSOrigins {
		if err := protection.AddTrustedOrigin(origin); err != nil {
			return nil, fmt.Errorf("invalid CORS origin %q: %w", origin, err)
		}
	}

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   c.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true, // Required for cookie-based authentication
	})

	handler := metrics.Middleware()(routes)
	handler = protection.Handler(handler)
	handler = corsMiddleware.Handler(handler)
	handler = limitAuthRoutes(limiter, handler)
	handler = chronohttp.ClientIPMiddleware()(handler)
	handler = chronohttp.RequestLogger()(handler)
	handler = chronohttp.Recover()(handler)

	return handler, nil
}

// limitAuthRoutes applies the rate limiter to the credential endpoints only,
// image serving stays unthrottled.
func limitAuthRoutes(limiter *chronohttp.RateLimiter, next http.Handler) http.Handler {
	limited := limiter.Middleware()(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login", "/auth/signup":
			limited.ServeHTTP(w, r)
		default:
			next.ServeHTTP(w, r)
		}
	})
}
