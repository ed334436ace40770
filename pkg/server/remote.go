package server

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/vango-dev/navrouter/internal/observer"
	"github.com/vango-dev/navrouter/pkg/history"
	"github.com/vango-dev/navrouter/pkg/protocol"
	"github.com/vango-dev/navrouter/pkg/routepath"
)

// RemoteSource is a navigation source whose history lives in the browser.
//
// Push and Replace send a numbered push/replace message and block until the
// browser acks it; only then does the current location change, and the
// call returning is the only report of it. Pops from the browser change the
// location directly and notify subscribers.
type RemoteSource struct {
	send       func(*protocol.Message) error
	ackTimeout time.Duration
	clock      clock.Clock

	mu      sync.Mutex
	loc     routepath.Location
	seq     uint64
	pending map[uint64]pendingNav
	closed  bool

	listeners observer.Registry[func()]
}

type pendingNav struct {
	loc  routepath.Location
	done chan error
}

// NewRemoteSource creates a source positioned at initial. send delivers a
// message to the browser.
func NewRemoteSource(initial string, send func(*protocol.Message) error, ackTimeout time.Duration, clk clock.Clock) (*RemoteSource, error) {
	loc, err := routepath.ParseLocation(initial)
	if err != nil {
		return nil, fmt.Errorf("server: initial location %q: %w", initial, err)
	}
	if clk == nil {
		clk = clock.New()
	}
	return &RemoteSource{
		send:       send,
		ackTimeout: ackTimeout,
		clock:      clk,
		loc:        loc,
		pending:    make(map[uint64]pendingNav),
	}, nil
}

// CurrentPath implements history.Source.
func (s *RemoteSource) CurrentPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc.Path
}

// CurrentQuery implements history.Source.
func (s *RemoteSource) CurrentQuery() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(url.Values, len(s.loc.Query))
	for k, v := range s.loc.Query {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Location returns the current location.
func (s *RemoteSource) Location() routepath.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc
}

// Push implements history.Source.
func (s *RemoteSource) Push(ctx context.Context, path string) error {
	return s.navigate(ctx, protocol.TypePush, path)
}

// Replace implements history.Source.
func (s *RemoteSource) Replace(ctx context.Context, path string) error {
	return s.navigate(ctx, protocol.TypeReplace, path)
}

func (s *RemoteSource) navigate(ctx context.Context, typ protocol.MessageType, path string) error {
	loc, err := routepath.ParseLocation(path)
	if err != nil {
		return fmt.Errorf("server: %s %q: %w", typ, path, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.seq++
	seq := s.seq
	done := make(chan error, 1)
	s.pending[seq] = pendingNav{loc: loc, done: done}
	s.mu.Unlock()

	msg := protocol.Push(seq, loc.String())
	if typ == protocol.TypeReplace {
		msg = protocol.Replace(seq, loc.String())
	}
	timer := s.clock.Timer(s.ackTimeout)
	defer timer.Stop()

	if err := s.send(msg); err != nil {
		s.forget(seq)
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		s.forget(seq)
		return ctx.Err()
	case <-timer.C:
		s.forget(seq)
		return ErrAckTimeout
	}
}

func (s *RemoteSource) forget(seq uint64) {
	s.mu.Lock()
	delete(s.pending, seq)
	s.mu.Unlock()
}

// Ack completes the push or replace numbered seq. Subscribers are not
// notified; the waiting Push or Replace returns instead.
func (s *RemoteSource) Ack(seq uint64) error {
	s.mu.Lock()
	p, ok := s.pending[seq]
	if ok {
		delete(s.pending, seq)
		s.loc = p.loc
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAck, seq)
	}
	p.done <- nil
	return nil
}

// Pop records a history move the browser made on its own.
func (s *RemoteSource) Pop(path string) error {
	loc, err := routepath.ParseLocation(path)
	if err != nil {
		return fmt.Errorf("server: pop %q: %w", path, err)
	}
	s.mu.Lock()
	s.loc = loc
	s.mu.Unlock()

	s.notify()
	return nil
}

// Subscribe implements history.Source.
func (s *RemoteSource) Subscribe(fn func()) func() {
	return s.listeners.Add(fn)
}

// Close fails every pending navigation and all later ones with
// ErrSessionClosed.
func (s *RemoteSource) Close() {
	s.mu.Lock()
	s.closed = true
	pending := s.pending
	s.pending = make(map[uint64]pendingNav)
	s.mu.Unlock()

	for _, p := range pending {
		p.done <- ErrSessionClosed
	}
}

func (s *RemoteSource) notify() {
	for _, fn := range s.listeners.Snapshot() {
		fn()
	}
}

var _ history.Source = (*RemoteSource)(nil)
