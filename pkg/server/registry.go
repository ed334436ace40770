package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vango-dev/navrouter/pkg/middleware"
	"go.uber.org/multierr"
)

// Registry holds the live sessions, bounded by an LRU on activity.
type Registry struct {
	cache       *lru.Cache[string, *Session]
	clock       clock.Clock
	idleTimeout time.Duration
	interval    time.Duration
	metrics     *middleware.Metrics
	logger      *slog.Logger

	done       chan struct{}
	reaperDone chan struct{}
	stopOnce   sync.Once
}

// NewRegistry creates a registry holding at most size sessions and starts
// its idle reaper.
func NewRegistry(size int, config *SessionConfig, clk clock.Clock, metrics *middleware.Metrics, logger *slog.Logger) (*Registry, error) {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		clock:       clk,
		idleTimeout: config.IdleTimeout,
		interval:    config.CleanupInterval,
		metrics:     metrics,
		logger:      logger.With("component", "session_registry"),
		done:        make(chan struct{}),
		reaperDone:  make(chan struct{}),
	}
	cache, err := lru.NewWithEvict[string, *Session](size, r.evicted)
	if err != nil {
		return nil, err
	}
	r.cache = cache

	go r.reap()
	return r, nil
}

// Add registers s, closing the least recently active session when full.
func (r *Registry) Add(s *Session) {
	s.onClose = r.remove
	s.onActive = r.Touch
	r.cache.Add(s.ID, s)
}

// Get returns the session with the given ID.
func (r *Registry) Get(id string) (*Session, bool) {
	return r.cache.Peek(id)
}

// Touch marks the session as most recently active.
func (r *Registry) Touch(id string) {
	r.cache.Get(id)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return r.cache.Len()
}

// Sessions returns the live sessions, least recently active first.
func (r *Registry) Sessions() []*Session {
	return r.cache.Values()
}

func (r *Registry) remove(s *Session) {
	r.cache.Remove(s.ID)
}

// evicted is called for every session leaving the cache, including removals
// by closing sessions, which are already closed.
func (r *Registry) evicted(id string, s *Session) {
	if s.IsClosed() {
		return
	}
	r.metrics.SessionEvicted()
	r.logger.Info("session evicted", "session_id", id, "reason", "capacity")
	_ = s.CloseWithReason(websocket.CloseTryAgainLater, "session capacity")
}

func (r *Registry) reap() {
	defer close(r.reaperDone)

	ticker := r.clock.Ticker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.ReapIdle()
		case <-r.done:
			return
		}
	}
}

// ReapIdle closes sessions silent for longer than the idle timeout and
// returns how many it closed.
func (r *Registry) ReapIdle() int {
	now := r.clock.Now()
	var reaped int
	for _, s := range r.cache.Values() {
		if now.Sub(s.LastActive()) <= r.idleTimeout {
			continue
		}
		r.metrics.SessionEvicted()
		_ = s.CloseWithReason(websocket.CloseNormalClosure, "idle timeout")
		reaped++
	}
	if reaped > 0 {
		r.logger.Info("cleaned up idle sessions",
			"count", reaped,
			"remaining", r.cache.Len())
	}
	return reaped
}

// Shutdown stops the reaper and closes every session concurrently.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.stopOnce.Do(func() {
		close(r.done)
	})
	<-r.reaperDone

	sessions := r.cache.Values()

	var (
		mu   sync.Mutex
		errs error
		wg   sync.WaitGroup
	)
	for _, s := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			if err := s.CloseWithReason(websocket.CloseGoingAway, "server shutdown"); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
		}(s)
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
		mu.Lock()
		defer mu.Unlock()
		return multierr.Append(errs, ctx.Err())
	}

	r.logger.Info("session registry shutdown", "closed_sessions", len(sessions))
	return errs
}
