package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Stores bundles the PostgreSQL-backed stores over a shared connection pool.
type Stores struct {
	Users    *UserStore
	Sessions *SessionStore
	Images   *ImageStore

	pool *pgxpool.Pool
}

// NewStores connects to PostgreSQL, runs pending migrations, and returns the
// stores sharing one pool. Callers must Close the result on shutdown.
func NewStores(ctx context.Context, cfg *PoolConfig) (*Stores, error) {
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Stores{
		Users:    NewUserStore(pool),
		Sessions: NewSessionStore(pool),
		Images:   NewImageStore(pool),
		pool:     pool,
	}, nil
}

// Close releases the underlying connection pool.
func (s *Stores) Close() {
	s.pool.Close()
}
