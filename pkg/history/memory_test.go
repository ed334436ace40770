package history

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/vango-dev/navrouter/pkg/routepath"
)

func TestNewMemory(t *testing.T) {
	m, err := NewMemory("/posts/1?tab=comments")
	if err != nil {
		t.Fatalf("NewMemory() error = %v", err)
	}
	if got := m.CurrentPath(); got != "/posts/1" {
		t.Errorf("CurrentPath() = %q, want %q", got, "/posts/1")
	}
	if diff := cmp.Diff(url.Values{"tab": {"comments"}}, m.CurrentQuery()); diff != "" {
		t.Errorf("CurrentQuery() mismatch (-want +got):\n%s", diff)
	}

	if _, err := NewMemory("relative"); !errors.Is(err, routepath.ErrInvalidPath) {
		t.Errorf("NewMemory(relative) error = %v, want ErrInvalidPath", err)
	}
}

func TestMemoryPushReplaceNavigate(t *testing.T) {
	ctx := context.Background()
	m, _ := NewMemory("/")

	calls := 0
	unsubscribe := m.Subscribe(func() { calls++ })

	if err := m.Push(ctx, "/a"); err != nil {
		t.Fatal(err)
	}
	if err := m.Push(ctx, "/b"); err != nil {
		t.Fatal(err)
	}
	if err := m.Replace(ctx, "/c?x=1"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"/", "/a", "/c?x=1"}, m.Entries()); diff != "" {
		t.Errorf("Entries() mismatch (-want +got):\n%s", diff)
	}
	if calls != 3 {
		t.Errorf("listener calls = %d, want 3", calls)
	}

	m.Back()
	if m.CurrentPath() != "/a" || m.Index() != 1 {
		t.Errorf("after Back: path = %q, index = %d", m.CurrentPath(), m.Index())
	}
	m.Forward()
	if m.CurrentPath() != "/c" {
		t.Errorf("after Forward: path = %q, want /c", m.CurrentPath())
	}
	if calls != 5 {
		t.Errorf("listener calls = %d, want 5", calls)
	}

	// Clamped no-op moves do not notify.
	m.Forward()
	m.Go(10)
	if calls != 5 {
		t.Errorf("no-op moves notified: calls = %d, want 5", calls)
	}

	// Pushing from the middle discards forward entries.
	m.Go(-2)
	if err := m.Push(ctx, "/d"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"/", "/d"}, m.Entries()); diff != "" {
		t.Errorf("Entries() mismatch (-want +got):\n%s", diff)
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}

	unsubscribe()
	unsubscribe()
	before := calls
	m.Back()
	if calls != before {
		t.Error("unsubscribed listener was called")
	}
}

func TestMemoryRejectsBadPaths(t *testing.T) {
	ctx := context.Background()
	m, _ := NewMemory("/start")

	if err := m.Push(ctx, "http://evil.example/"); !errors.Is(err, routepath.ErrInvalidPath) {
		t.Errorf("Push() error = %v, want ErrInvalidPath", err)
	}
	if err := m.Replace(ctx, "/a\\b"); !errors.Is(err, routepath.ErrBackslashInPath) {
		t.Errorf("Replace() error = %v, want ErrBackslashInPath", err)
	}
	if m.CurrentPath() != "/start" {
		t.Errorf("failed navigation changed path to %q", m.CurrentPath())
	}
}

func TestMemoryCanceledContext(t *testing.T) {
	m, _ := NewMemory("/")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Push(ctx, "/a"); !errors.Is(err, context.Canceled) {
		t.Errorf("Push() error = %v, want context.Canceled", err)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}

func TestMemoryQueryIsCopied(t *testing.T) {
	m, _ := NewMemory("/?a=1")
	q := m.CurrentQuery()
	q.Set("a", "2")
	if got := m.CurrentQuery().Get("a"); got != "1" {
		t.Errorf("CurrentQuery() leaked internal state, a = %q", got)
	}
}

func TestMemoryListenerOrder(t *testing.T) {
	m, _ := NewMemory("/")
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		m.Subscribe(func() { order = append(order, i) })
	}
	_ = m.Push(context.Background(), "/x")
	if diff := cmp.Diff([]int{0, 1, 2, 3, 4}, order); diff != "" {
		t.Errorf("listener order mismatch (-want +got):\n%s", diff)
	}
}
