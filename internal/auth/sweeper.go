package auth

import (
	"context"
	"sync"
	"time"

	"github.com/chronocam/chronocam/internal/store"
	"github.com/rs/zerolog/log"
)

// Sweeper periodically deletes expired sessions from the store.
type Sweeper struct {
	sessions store.SessionStore
	interval time.Duration
	onSweep  func(count int)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a sweeper that deletes expired sessions every interval.
// The sweeper starts a background goroutine that runs until Stop() is called.
// onSweep, if non-nil, is called with the number of sessions removed.
func NewSweeper(
	ctx context.Context,
	sessions store.SessionStore,
	interval time.Duration,
	onSweep func(count int),
) *Sweeper {
	sweeperCtx, cancel := context.WithCancel(ctx)

	s := &Sweeper{
		sessions: sessions,
		interval: interval,
		onSweep:  onSweep,
		ctx:      sweeperCtx,
		cancel:   cancel,
	}

	s.wg.Add(1)
	go s.sweepLoop()

	return s
}

// Stop gracefully stops the background sweep goroutine.
func (s *Sweeper) Stop() {
	s.cancel()
	s.wg.Wait()
}

// sweepLoop periodically deletes expired sessions.
func (s *Sweeper) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			log.Info().Msg("Session sweeper stopped")
			return

		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep deletes expired sessions and reports the count.
func (s *Sweeper) sweep() {
	count, err := s.sessions.DeleteExpired(s.ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to sweep expired sessions")
		return
	}

	if count > 0 {
		log.Info().Int("count", count).Msg("Swept expired sessions")
	}

	if s.onSweep != nil {
		s.onSweep(count)
	}
}
