package history

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/vango-dev/navrouter/internal/observer"
	"github.com/vango-dev/navrouter/pkg/routepath"
)

// Memory is an in-memory history stack. It is what server-side rendering
// and tests bind to, and what a live session mirrors of its client.
//
// Listeners are called synchronously, outside the internal lock, after every
// Push, Replace, Back, Forward or Go that changes the current entry.
type Memory struct {
	mu        sync.Mutex
	entries   []routepath.Location
	index     int
	listeners observer.Registry[func()]
}

// NewMemory creates a history whose only entry is initial.
func NewMemory(initial string) (*Memory, error) {
	loc, err := routepath.ParseLocation(initial)
	if err != nil {
		return nil, fmt.Errorf("history: initial location %q: %w", initial, err)
	}
	return &Memory{entries: []routepath.Location{loc}}, nil
}

// CurrentPath implements Source.
func (m *Memory) CurrentPath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[m.index].Path
}

// CurrentQuery implements Source. The returned values are a copy.
func (m *Memory) CurrentQuery() url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneValues(m.entries[m.index].Query)
}

// Location returns the current entry.
func (m *Memory) Location() routepath.Location {
	m.mu.Lock()
	defer m.mu.Unlock()
	loc := m.entries[m.index]
	loc.Query = cloneValues(loc.Query)
	return loc
}

// Push implements Source. Forward entries are discarded.
func (m *Memory) Push(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	loc, err := routepath.ParseLocation(path)
	if err != nil {
		return fmt.Errorf("history: push %q: %w", path, err)
	}

	m.mu.Lock()
	m.entries = append(m.entries[:m.index+1], loc)
	m.index++
	m.mu.Unlock()

	m.notify()
	return nil
}

// Replace implements Source.
func (m *Memory) Replace(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	loc, err := routepath.ParseLocation(path)
	if err != nil {
		return fmt.Errorf("history: replace %q: %w", path, err)
	}

	m.mu.Lock()
	m.entries[m.index] = loc
	m.mu.Unlock()

	m.notify()
	return nil
}

// Go moves n entries through the stack (negative is back). Moves past either
// end are clamped; a move that lands on the current entry does nothing.
func (m *Memory) Go(n int) {
	m.mu.Lock()
	target := m.index + n
	if target < 0 {
		target = 0
	}
	if target > len(m.entries)-1 {
		target = len(m.entries) - 1
	}
	changed := target != m.index
	m.index = target
	m.mu.Unlock()

	if changed {
		m.notify()
	}
}

// Back is Go(-1).
func (m *Memory) Back() { m.Go(-1) }

// Forward is Go(1).
func (m *Memory) Forward() { m.Go(1) }

// Index returns the position of the current entry.
func (m *Memory) Index() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index
}

// Len returns the number of entries in the stack.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Entries returns the stack as path+query strings, oldest first.
func (m *Memory) Entries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.String()
	}
	return out
}

// Subscribe implements Source.
func (m *Memory) Subscribe(fn func()) func() {
	return m.listeners.Add(fn)
}

// notify calls listeners in subscription order.
func (m *Memory) notify() {
	for _, fn := range m.listeners.Snapshot() {
		fn()
	}
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

var _ Source = (*Memory)(nil)
