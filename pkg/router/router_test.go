package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/vango-dev/navrouter/pkg/history"
	"github.com/vango-dev/navrouter/pkg/route"
	"github.com/vango-dev/navrouter/pkg/routepath"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// recorder is a route that logs its lifecycle calls.
type recorder struct {
	*route.Route

	mu    sync.Mutex
	calls []string
}

func newRecorder(name string) *recorder {
	rec := &recorder{Route: route.New(name)}
	rec.OnOpened(func(p routepath.Params, _ url.Values) { rec.add(fmt.Sprintf("opened %v", map[string]string(p))) })
	rec.OnUpdated(func(p routepath.Params, _ url.Values) { rec.add(fmt.Sprintf("updated %v", map[string]string(p))) })
	rec.OnLeft(func() { rec.add("left") })
	return rec
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// failingSource refuses every navigation.
type failingSource struct {
	*history.Memory
	err error
}

func (f *failingSource) Push(context.Context, string) error    { return f.err }
func (f *failingSource) Replace(context.Context, string) error { return f.err }

// gatedSource holds every Push until release is closed, then fails with err
// or pushes onto the embedded memory history.
type gatedSource struct {
	*history.Memory
	entered chan struct{}
	release chan struct{}
	err     error
}

func newGatedSource(t *testing.T, mem *history.Memory, err error) *gatedSource {
	t.Helper()
	return &gatedSource{
		Memory:  mem,
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
		err:     err,
	}
}

func (g *gatedSource) Push(ctx context.Context, path string) error {
	g.entered <- struct{}{}
	<-g.release
	if g.err != nil {
		return g.err
	}
	return g.Memory.Push(ctx, path)
}

func newTestRouter(t *testing.T, decls []Declaration, opts ...Option) *Router {
	t.Helper()
	r, err := New(decls, append([]Option{WithLogger(quietLogger)}, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

func newMemory(t *testing.T, initial string) *history.Memory {
	t.Helper()
	m, err := history.NewMemory(initial)
	if err != nil {
		t.Fatalf("NewMemory(%q) error = %v", initial, err)
	}
	return m
}

// results subscribes to passes and returns a channel of them.
func results(r *Router) <-chan Result {
	ch := make(chan Result, 64)
	r.Subscribe(func(res Result) { ch <- res })
	return ch
}

func waitResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a reconciliation pass")
		return Result{}
	}
}

func expectNoResult(t *testing.T, ch <-chan Result) {
	t.Helper()
	select {
	case res := <-ch:
		t.Fatalf("unexpected reconciliation pass for %q", res.Path)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNewRejectsMalformedTemplate(t *testing.T) {
	good := route.New("good")
	bad := route.New("bad")
	_, err := New([]Declaration{
		{Path: "/posts/:id", Route: good},
		{Path: "/posts/::id", Route: bad},
	})
	if !errors.Is(err, routepath.ErrMalformedTemplate) {
		t.Fatalf("New() error = %v, want ErrMalformedTemplate", err)
	}
	if good.NavigateSubscribers() != 0 {
		t.Error("no route should be subscribed when construction fails")
	}
}

func TestNewRejectsInvalidDeclarations(t *testing.T) {
	shared := route.New("shared")
	tests := []struct {
		name  string
		decls []Declaration
	}{
		{"nil route", []Declaration{{Path: "/a"}}},
		{"duplicate route", []Declaration{{Path: "/a", Route: shared}, {Path: "/b", Route: shared}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.decls); err == nil {
				t.Error("New() expected error")
			}
		})
	}
}

func TestBindReconcilesImmediately(t *testing.T) {
	posts := newRecorder("posts")
	users := newRecorder("users")
	r := newTestRouter(t, []Declaration{
		{Path: "/posts/:postId1", Route: posts},
		{Path: "/users/:userId", Route: users},
	})

	if err := r.BindSource(context.Background(), newMemory(t, "/posts/5")); err != nil {
		t.Fatalf("BindSource() error = %v", err)
	}

	res, ok := r.Last()
	if !ok {
		t.Fatal("Last() should report the bind pass")
	}
	if len(res.Entered) != 1 || res.Entered[0].Route != Handle(posts) {
		t.Fatalf("Entered = %+v", res.Entered)
	}
	if diff := cmp.Diff(routepath.Params{"postId1": "5"}, res.Entered[0].Params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
	if len(res.Left) != 1 || res.Left[0].Route != Handle(users) {
		t.Errorf("Left = %+v", res.Left)
	}
	if diff := cmp.Diff([]string{"opened map[postId1:5]"}, posts.Calls()); diff != "" {
		t.Errorf("posts calls mismatch (-want +got):\n%s", diff)
	}
	if len(users.Calls()) != 0 {
		t.Errorf("users should see no calls while closed, got %v", users.Calls())
	}
}

func TestExclusiveMatchOpensFirstRoute(t *testing.T) {
	first := newRecorder("first")
	second := newRecorder("second")
	r := newTestRouter(t, []Declaration{
		{Path: "/posts/:postId1", Route: first},
		{Path: "/posts/:postId2", Route: second},
	}, WithExclusiveMatch())

	if err := r.BindSource(context.Background(), newMemory(t, "/posts/5")); err != nil {
		t.Fatalf("BindSource() error = %v", err)
	}

	res, _ := r.Last()
	if len(res.Entered) != 1 || res.Entered[0].Route != Handle(first) {
		t.Fatalf("Entered = %+v, want only the first route", res.Entered)
	}
	if len(res.Left) != 1 || res.Left[0].Route != Handle(second) {
		t.Errorf("Left = %+v, want the second route", res.Left)
	}
	if diff := cmp.Diff([]string{"opened map[postId1:5]"}, first.Calls()); diff != "" {
		t.Errorf("first calls mismatch (-want +got):\n%s", diff)
	}
	if second.IsOpened() {
		t.Error("second route should stay closed")
	}
}

func TestRouteNavigateUpdatesOpenedRoute(t *testing.T) {
	post := newRecorder("post")
	r := newTestRouter(t, []Declaration{{Path: "/posts/:postId", Route: post}})
	mem := newMemory(t, "/posts/5")
	if err := r.BindSource(context.Background(), mem); err != nil {
		t.Fatal(err)
	}
	passes := results(r)

	post.Navigate(routepath.Params{"postId": "6"}, nil)
	res := waitResult(t, passes)

	if res.Path != "/posts/6" {
		t.Errorf("Path = %q, want /posts/6", res.Path)
	}
	if diff := cmp.Diff([]string{"/posts/5", "/posts/6"}, mem.Entries()); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
	want := []string{"opened map[postId:5]", "updated map[postId:6]"}
	if diff := cmp.Diff(want, post.Calls()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestPushWithoutSource(t *testing.T) {
	home := newRecorder("home")
	r := newTestRouter(t, []Declaration{{Path: "/", Route: home}})
	passes := results(r)

	for _, op := range []func() error{
		func() error { return r.Push(context.Background(), "/", nil, nil) },
		func() error { return r.Replace(context.Background(), "/", nil, nil) },
		func() error { return r.Navigate(context.Background(), "/") },
	} {
		if err := op(); !errors.Is(err, ErrNoSourceBound) {
			t.Errorf("error = %v, want ErrNoSourceBound", err)
		}
	}
	if _, err := r.CurrentPath(); !errors.Is(err, ErrNoSourceBound) {
		t.Errorf("CurrentPath() error = %v, want ErrNoSourceBound", err)
	}
	if _, ok := r.Last(); ok {
		t.Error("Last() should be empty")
	}
	expectNoResult(t, passes)
	if home.IsOpened() || len(home.Calls()) != 0 {
		t.Error("route state should be untouched")
	}
}

func TestBindNilSource(t *testing.T) {
	r := newTestRouter(t, nil)
	if err := r.BindSource(context.Background(), nil); !errors.Is(err, ErrNilSource) {
		t.Errorf("BindSource(nil) error = %v, want ErrNilSource", err)
	}
}

func TestPushLifecycle(t *testing.T) {
	list := newRecorder("list")
	post := newRecorder("post")
	r := newTestRouter(t, []Declaration{
		{Path: "/posts", Route: list},
		{Path: "/posts/:id", Route: post},
	})
	mem := newMemory(t, "/posts")
	ctx := context.Background()
	if err := r.BindSource(ctx, mem); err != nil {
		t.Fatal(err)
	}

	steps := []struct {
		method func(context.Context, string, routepath.Params, url.Values) error
		path   string
	}{
		{r.Push, "/posts/1"},
		{r.Push, "/posts/1"},
		{r.Replace, "/posts/2"},
		{r.Push, "/about"},
		{r.Push, "/contact"},
		{r.Push, "/posts"},
	}
	for _, s := range steps {
		if err := s.method(ctx, s.path, nil, nil); err != nil {
			t.Fatalf("navigate %q error = %v", s.path, err)
		}
	}

	wantList := []string{"opened map[]", "left", "opened map[]"}
	if diff := cmp.Diff(wantList, list.Calls()); diff != "" {
		t.Errorf("list calls mismatch (-want +got):\n%s", diff)
	}
	// Leaving twice in a row reports a single left.
	wantPost := []string{"opened map[id:1]", "updated map[id:1]", "updated map[id:2]", "left"}
	if diff := cmp.Diff(wantPost, post.Calls()); diff != "" {
		t.Errorf("post calls mismatch (-want +got):\n%s", diff)
	}
	wantHistory := []string{"/posts", "/posts/1", "/posts/2", "/about", "/contact", "/posts"}
	if diff := cmp.Diff(wantHistory, mem.Entries()); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestPushOneReconciliationPerNavigation(t *testing.T) {
	r := newTestRouter(t, []Declaration{{Path: "/:page", Route: route.New("page")}})
	if err := r.BindSource(context.Background(), newMemory(t, "/a")); err != nil {
		t.Fatal(err)
	}
	passes := results(r)

	if err := r.Push(context.Background(), "/b", nil, nil); err != nil {
		t.Fatal(err)
	}
	if res := waitResult(t, passes); res.Path != "/b" {
		t.Errorf("Path = %q, want /b", res.Path)
	}
	// The source's own change notification must not cause a second pass.
	expectNoResult(t, passes)
}

func TestChangeDuringPushGetsItsOwnPass(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    []string
		current string
	}{
		{name: "push succeeds", want: []string{"/a", "/c"}, current: "/c"},
		{name: "push fails", err: errors.New("boom"), want: []string{"/a"}, current: "/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := newRecorder("page")
			r := newTestRouter(t, []Declaration{{Path: "/:page", Route: page}})
			mem := newMemory(t, "/a")
			if err := mem.Push(context.Background(), "/b"); err != nil {
				t.Fatal(err)
			}
			src := newGatedSource(t, mem, tt.err)
			if err := r.BindSource(context.Background(), src); err != nil {
				t.Fatal(err)
			}
			passes := results(r)

			errc := make(chan error, 1)
			go func() { errc <- r.Push(context.Background(), "/c", nil, nil) }()
			<-src.entered
			mem.Back()
			close(src.release)

			err := <-errc
			if !errors.Is(err, tt.err) {
				t.Fatalf("Push() error = %v, want %v", err, tt.err)
			}
			var got []string
			for range tt.want {
				got = append(got, waitResult(t, passes).Path)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("passes mismatch (-want +got):\n%s", diff)
			}
			// The memory history's own echo of /c is folded.
			expectNoResult(t, passes)
			if p := page.Params()["page"]; "/"+p != tt.current {
				t.Errorf("route page = %q, want %q", p, tt.current)
			}
		})
	}
}

func TestExternalChangeReconciles(t *testing.T) {
	page := newRecorder("page")
	r := newTestRouter(t, []Declaration{{Path: "/posts/:id", Route: page}})
	mem := newMemory(t, "/posts/1")
	if err := r.BindSource(context.Background(), mem); err != nil {
		t.Fatal(err)
	}
	if err := r.Push(context.Background(), "/posts/2", nil, nil); err != nil {
		t.Fatal(err)
	}
	passes := results(r)

	mem.Back()
	res := waitResult(t, passes)
	if res.Path != "/posts/1" {
		t.Errorf("Path = %q, want /posts/1", res.Path)
	}
	if got := page.Params()["id"]; got != "1" {
		t.Errorf("route param = %q, want 1", got)
	}

	mem.Forward()
	if res := waitResult(t, passes); res.Path != "/posts/2" {
		t.Errorf("Path = %q, want /posts/2", res.Path)
	}
}

func TestRebindUsesNewSource(t *testing.T) {
	a := newRecorder("a")
	b := newRecorder("b")
	r := newTestRouter(t, []Declaration{{Path: "/a", Route: a}, {Path: "/b", Route: b}})
	ctx := context.Background()

	first := newMemory(t, "/a")
	second := newMemory(t, "/b")
	if err := r.BindSource(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := r.BindSource(ctx, second); err != nil {
		t.Fatal(err)
	}
	if !b.IsOpened() || a.IsOpened() {
		t.Fatalf("rebind should reconcile against the new source: a=%v b=%v", a.IsOpened(), b.IsOpened())
	}
	if r.Source() != history.Source(second) {
		t.Error("Source() should return the latest binding")
	}

	passes := results(r)
	// The replaced source is no longer observed.
	if err := first.Push(ctx, "/a"); err != nil {
		t.Fatal(err)
	}
	expectNoResult(t, passes)

	if err := r.Push(ctx, "/a", nil, nil); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"/b", "/a"}, second.Entries()); diff != "" {
		t.Errorf("second history mismatch (-want +got):\n%s", diff)
	}
	if len(first.Entries()) != 2 {
		t.Errorf("first source should only hold its own pushes, got %v", first.Entries())
	}
}

func TestSourceFailureLeavesRoutesUntouched(t *testing.T) {
	page := newRecorder("page")
	r := newTestRouter(t, []Declaration{{Path: "/:page", Route: page}})
	boom := errors.New("boom")
	src := &failingSource{Memory: newMemory(t, "/a"), err: boom}
	if err := r.BindSource(context.Background(), src); err != nil {
		t.Fatal(err)
	}
	passes := results(r)

	err := r.Push(context.Background(), "/b", nil, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("Push() error = %v, want %v", err, boom)
	}
	expectNoResult(t, passes)
	if diff := cmp.Diff([]string{"opened map[page:a]"}, page.Calls()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestRouteNavigateMissingParam(t *testing.T) {
	errs := make(chan error, 1)
	post := newRecorder("post")
	r := newTestRouter(t, []Declaration{{Path: "/posts/:postId", Route: post}},
		WithErrorHandler(func(err error) { errs <- err }))
	mem := newMemory(t, "/")
	if err := r.BindSource(context.Background(), mem); err != nil {
		t.Fatal(err)
	}

	post.Navigate(routepath.Params{"id": "1"}, nil)

	select {
	case err := <-errs:
		if !errors.Is(err, routepath.ErrMissingParam) {
			t.Errorf("error = %v, want ErrMissingParam", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error handler not called")
	}
	if len(mem.Entries()) != 1 {
		t.Errorf("no push should be issued, history = %v", mem.Entries())
	}
}

func TestRouteNavigateWithQuery(t *testing.T) {
	search := newRecorder("search")
	r := newTestRouter(t, []Declaration{{Path: "/search", Route: search}})
	mem := newMemory(t, "/")
	if err := r.BindSource(context.Background(), mem); err != nil {
		t.Fatal(err)
	}
	passes := results(r)

	search.Navigate(nil, url.Values{"q": {"go"}})
	res := waitResult(t, passes)

	if res.Path != "/search" || res.Query.Get("q") != "go" {
		t.Errorf("reconciled %q %v", res.Path, res.Query)
	}
	if got := search.Query().Get("q"); got != "go" {
		t.Errorf("route query q = %q, want go", got)
	}
	if mem.Location().String() != "/search?q=go" {
		t.Errorf("history location = %q", mem.Location().String())
	}
}

func TestFacadeQueryHandling(t *testing.T) {
	r := newTestRouter(t, []Declaration{{Path: "/search", Route: route.New("search")}})
	mem := newMemory(t, "/")
	ctx := context.Background()
	if err := r.BindSource(ctx, mem); err != nil {
		t.Fatal(err)
	}

	if err := r.Push(ctx, "/search", nil, url.Values{"q": {"a"}}); err != nil {
		t.Fatal(err)
	}
	if got := mem.Location().String(); got != "/search?q=a" {
		t.Errorf("after query push: %q", got)
	}
	if err := r.Push(ctx, "/search?q=b", nil, url.Values{"q": {"ignored"}}); err != nil {
		t.Fatal(err)
	}
	if got := mem.Location().String(); got != "/search?q=b" {
		t.Errorf("path with query should be kept verbatim: %q", got)
	}
	q, err := r.CurrentQuery()
	if err != nil || q.Get("q") != "b" {
		t.Errorf("CurrentQuery() = %v, %v", q, err)
	}
}

func TestGoFromLifecycleCallback(t *testing.T) {
	legacy := route.New("legacy")
	target := newRecorder("target")
	r := newTestRouter(t, []Declaration{
		{Path: "/old", Route: legacy},
		{Path: "/new", Route: target},
	})
	legacy.OnOpened(func(routepath.Params, url.Values) {
		r.Go("/new", WithReplace())
	})
	mem := newMemory(t, "/")
	if err := r.BindSource(context.Background(), mem); err != nil {
		t.Fatal(err)
	}
	passes := results(r)

	if err := r.Push(context.Background(), "/old", nil, nil); err != nil {
		t.Fatal(err)
	}
	waitResult(t, passes)
	if res := waitResult(t, passes); res.Path != "/new" {
		t.Fatalf("Path = %q, want /new", res.Path)
	}
	if diff := cmp.Diff([]string{"/", "/new"}, mem.Entries()); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
	if !target.IsOpened() || legacy.IsOpened() {
		t.Error("target should be the only opened route")
	}
}

func TestBindScopeFlowsToLaterPasses(t *testing.T) {
	type key struct{}
	seen := make(chan any, 8)
	mw := MiddlewareFunc(func(ctx context.Context, ev *Event, next func(context.Context) error) error {
		if ev.Kind == EventSourceChange {
			seen <- ctx.Value(key{})
		}
		return next(ctx)
	})
	r := newTestRouter(t, []Declaration{{Path: "/:p", Route: route.New("p")}}, WithMiddleware(mw))
	mem := newMemory(t, "/a")

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), key{}, "scope-1"))
	if err := r.BindSource(ctx, mem); err != nil {
		t.Fatal(err)
	}
	cancel()

	if err := mem.Push(context.Background(), "/b"); err != nil {
		t.Fatal(err)
	}
	select {
	case v := <-seen:
		if v != "scope-1" {
			t.Errorf("scope value = %v, want scope-1", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("source change not processed")
	}
}

func TestCanceledCallerIsSkipped(t *testing.T) {
	r := newTestRouter(t, []Declaration{{Path: "/:p", Route: route.New("p")}})
	mem := newMemory(t, "/a")
	if err := r.BindSource(context.Background(), mem); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Push(ctx, "/b", nil, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Push() error = %v, want context.Canceled", err)
	}
	// Flush the loop with a blocking call that is known to run.
	if err := r.Replace(context.Background(), "/a", nil, nil); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"/a"}, mem.Entries()); diff != "" {
		t.Errorf("canceled push should not reach the source (-want +got):\n%s", diff)
	}
}

func TestClose(t *testing.T) {
	page := route.New("page")
	r, err := New([]Declaration{{Path: "/:p", Route: page}}, WithLogger(quietLogger))
	if err != nil {
		t.Fatal(err)
	}
	mem := newMemory(t, "/a")
	if err := r.BindSource(context.Background(), mem); err != nil {
		t.Fatal(err)
	}

	r.Close()
	r.Close()

	if err := r.Push(context.Background(), "/b", nil, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Push() after Close error = %v, want ErrClosed", err)
	}
	if page.NavigateSubscribers() != 0 {
		t.Error("Close should cancel route subscriptions")
	}
	if r.Source() != nil {
		t.Error("Close should release the source")
	}
	if !page.IsOpened() {
		t.Error("routes keep their state after Close")
	}
}

func TestConcurrentPushes(t *testing.T) {
	r := newTestRouter(t, []Declaration{{Path: "/items/:id", Route: route.New("item")}})
	mem := newMemory(t, "/")
	if err := r.BindSource(context.Background(), mem); err != nil {
		t.Fatal(err)
	}

	var passes int
	var mu sync.Mutex
	r.Subscribe(func(Result) {
		mu.Lock()
		passes++
		mu.Unlock()
	})

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := r.Push(context.Background(), fmt.Sprintf("/items/%d", i), nil, nil); err != nil {
				t.Errorf("Push() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if passes != n {
		t.Errorf("passes = %d, want %d", passes, n)
	}
	if len(mem.Entries()) != n+1 {
		t.Errorf("history length = %d, want %d", len(mem.Entries()), n+1)
	}
}

func TestSubscribeCancel(t *testing.T) {
	r := newTestRouter(t, []Declaration{{Path: "/", Route: route.New("home")}})
	calls := 0
	cancel := r.Subscribe(func(Result) { calls++ })
	if err := r.BindSource(context.Background(), newMemory(t, "/")); err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := r.Replace(context.Background(), "/", nil, nil); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRoutesReturnsDeclarations(t *testing.T) {
	home := route.New("home")
	r := newTestRouter(t, []Declaration{{Path: "/", Route: home}})
	decls := r.Routes()
	decls[0].Path = "/mutated"
	if r.Routes()[0].Path != "/" {
		t.Error("Routes should return a copy")
	}
}
