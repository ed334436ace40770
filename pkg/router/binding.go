package router

import (
	"context"
	"net/url"
	"sync"

	"github.com/vango-dev/navrouter/pkg/history"
)

// binding is the single cell holding the bound navigation source.
//
// Each bind gets a new generation. Change notifications carry the
// generation they were subscribed under so notifications from a replaced
// source can be told apart and dropped.
type binding struct {
	mu          sync.RWMutex
	src         history.Source
	gen         uint64
	scope       context.Context
	unsubscribe func()
}

// bind replaces the bound source and subscribes onChange to it. ctx is kept,
// detached from its cancellation, as the scope for work the new source
// triggers later.
func (b *binding) bind(ctx context.Context, src history.Source, onChange func(gen uint64, src history.Source)) uint64 {
	b.mu.Lock()
	old := b.unsubscribe
	b.gen++
	gen := b.gen
	b.src = src
	b.scope = context.WithoutCancel(ctx)
	b.unsubscribe = nil
	b.mu.Unlock()

	if old != nil {
		old()
	}

	unsubscribe := src.Subscribe(func() { onChange(gen, src) })

	b.mu.Lock()
	if b.gen == gen {
		b.unsubscribe = unsubscribe
		unsubscribe = nil
	}
	b.mu.Unlock()

	// Rebound while subscribing.
	if unsubscribe != nil {
		unsubscribe()
	}
	return gen
}

// release drops the bound source and its subscription.
func (b *binding) release() {
	b.mu.Lock()
	unsubscribe := b.unsubscribe
	b.unsubscribe = nil
	b.src = nil
	b.gen++
	b.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (b *binding) source() history.Source {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.src
}

func (b *binding) current() (history.Source, error) {
	src := b.source()
	if src == nil {
		return nil, ErrNoSourceBound
	}
	return src, nil
}

func (b *binding) generation() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.gen
}

// context returns the scope captured at bind time, or Background while
// unbound.
func (b *binding) context() context.Context {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.scope == nil {
		return context.Background()
	}
	return b.scope
}

func (b *binding) currentPath() (string, error) {
	src, err := b.current()
	if err != nil {
		return "", err
	}
	return src.CurrentPath(), nil
}

func (b *binding) currentQuery() (url.Values, error) {
	src, err := b.current()
	if err != nil {
		return nil, err
	}
	return src.CurrentQuery(), nil
}

func (b *binding) push(ctx context.Context, path string) error {
	src, err := b.current()
	if err != nil {
		return err
	}
	return src.Push(ctx, path)
}

func (b *binding) replace(ctx context.Context, path string) error {
	src, err := b.current()
	if err != nil {
		return err
	}
	return src.Replace(ctx, path)
}
