package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/vango-dev/navrouter/internal/observer"
	"github.com/vango-dev/navrouter/pkg/history"
	"github.com/vango-dev/navrouter/pkg/routepath"
)

// Router keeps declared routes in sync with a navigation source.
type Router struct {
	engine  engine
	binding binding

	middleware []Middleware
	logger     *slog.Logger
	onError    func(error)

	// While the loop is inside the source's Push/Replace, issueGen holds the
	// binding generation being navigated and held collects that source's
	// notifications with the location each one reported. 0 means idle.
	issueMu  sync.Mutex
	issueGen uint64
	held     []location

	observers observer.Registry[func(Result)]
	last      atomic.Pointer[Result]

	// Event queue. pending is unbounded so enqueueing never blocks, which
	// lets lifecycle callbacks on the loop goroutine request navigation.
	queueMu sync.Mutex
	pending []*event
	wake    chan struct{}

	cancels   []func()
	closed    atomic.Bool
	done      chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router's logger.
// Default: slog.Default() with component=router.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMiddleware appends middleware around every event-loop unit of work.
func WithMiddleware(mw ...Middleware) Option {
	return func(r *Router) {
		r.middleware = append(r.middleware, mw...)
	}
}

// WithExclusiveMatch makes at most one route active per pass: the first
// declaration, in order, whose template matches. Other matching routes are
// left. By default every matching route is entered.
func WithExclusiveMatch() Option {
	return func(r *Router) {
		r.engine.exclusive = true
	}
}

// WithErrorHandler receives errors no caller is waiting for: failed route
// navigate requests and failed Go calls. They are logged either way.
func WithErrorHandler(fn func(error)) Option {
	return func(r *Router) {
		r.onError = fn
	}
}

// event is a queued unit of work for the loop.
type event struct {
	kind  EventKind
	ctx   context.Context
	src   history.Source
	req   NavigationRequest
	route int
	gen   uint64

	// done receives the outcome for blocking callers; nil for fire-and-forget.
	done chan error
}

// New compiles the declarations and starts the router's event loop. A
// malformed template, a nil route or a route declared twice is an error:
// no router is returned and no route is subscribed to.
func New(decls []Declaration, opts ...Option) (*Router, error) {
	routes := make([]compiledRoute, 0, len(decls))
	seen := make(map[Handle]string, len(decls))

	for i, d := range decls {
		if d.Route == nil {
			return nil, fmt.Errorf("router: declaration %d (%q): nil route", i, d.Path)
		}
		if prev, dup := seen[d.Route]; dup {
			return nil, fmt.Errorf("router: declaration %d (%q): route already declared for %q", i, d.Path, prev)
		}
		seen[d.Route] = d.Path

		t, err := routepath.Compile(d.Path)
		if err != nil {
			return nil, fmt.Errorf("router: declaration %d: %w", i, err)
		}
		routes = append(routes, compiledRoute{Declaration: d, template: t})
	}

	r := &Router{
		engine:   engine{routes: routes},
		logger:   slog.Default().With("component", "router"),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	for i, rt := range routes {
		i := i
		cancel := rt.Route.OnNavigate(func(params routepath.Params, query url.Values) {
			r.routeNavigate(i, params, query)
		})
		r.cancels = append(r.cancels, cancel)
	}

	go r.loop()
	return r, nil
}

// Routes returns a copy of the declarations.
func (r *Router) Routes() []Declaration {
	out := make([]Declaration, len(r.engine.routes))
	for i, rt := range r.engine.routes {
		out[i] = rt.Declaration
	}
	return out
}

// Source returns the bound navigation source, or nil while unbound.
func (r *Router) Source() history.Source {
	return r.binding.source()
}

// CurrentPath returns the bound source's current path.
func (r *Router) CurrentPath() (string, error) {
	return r.binding.currentPath()
}

// CurrentQuery returns the bound source's current query.
func (r *Router) CurrentQuery() (url.Values, error) {
	return r.binding.currentQuery()
}

// Last returns the most recent reconciliation result.
func (r *Router) Last() (Result, bool) {
	res := r.last.Load()
	if res == nil {
		return Result{}, false
	}
	return *res, true
}

// Subscribe registers fn to receive every reconciliation result, after the
// routes have been driven. fn runs on the event loop.
func (r *Router) Subscribe(fn func(Result)) (cancel func()) {
	return r.observers.Add(fn)
}

// BindSource binds src, replacing any previously bound source, and runs a
// reconciliation pass against src's current location. ctx, without its
// cancellation, becomes the context of passes src triggers later.
func (r *Router) BindSource(ctx context.Context, src history.Source) error {
	if src == nil {
		return ErrNilSource
	}
	return r.submit(ctx, &event{kind: EventBind, src: src})
}

// Push navigates to path with a new history entry. A non-empty query is
// appended unless path already carries one.
func (r *Router) Push(ctx context.Context, path string, params routepath.Params, query url.Values) error {
	return r.submit(ctx, &event{kind: EventNavigate, req: NavigationRequest{
		Path:   withQuery(path, query),
		Params: params,
		Query:  query,
		Method: MethodPush,
	}})
}

// Replace navigates to path by overwriting the current history entry.
func (r *Router) Replace(ctx context.Context, path string, params routepath.Params, query url.Values) error {
	return r.submit(ctx, &event{kind: EventNavigate, req: NavigationRequest{
		Path:   withQuery(path, query),
		Params: params,
		Query:  query,
		Method: MethodReplace,
	}})
}

// Navigate is Push or Replace configured with options.
func (r *Router) Navigate(ctx context.Context, path string, opts ...NavigateOption) error {
	req := newNavigationRequest(path, opts)
	return r.submit(ctx, &event{kind: EventNavigate, req: req})
}

// Go queues a navigation and returns without waiting for it. It is the form
// to use from route lifecycle callbacks. Failures are logged and passed to
// the error handler.
func (r *Router) Go(path string, opts ...NavigateOption) {
	req := newNavigationRequest(path, opts)
	err := r.enqueue(&event{kind: EventNavigate, ctx: r.binding.context(), req: req})
	if err != nil {
		r.report(err, "navigation dropped", "path", req.Path)
	}
}

// Close stops the event loop, fails queued blocking calls with ErrClosed
// and drops the source and route subscriptions. Routes keep their state.
func (r *Router) Close() {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.done)
		<-r.loopDone

		r.queueMu.Lock()
		pending := r.pending
		r.pending = nil
		r.queueMu.Unlock()
		for _, ev := range pending {
			if ev.done != nil {
				ev.done <- ErrClosed
			}
		}

		for _, cancel := range r.cancels {
			cancel()
		}
		r.binding.release()
	})
}

// routeNavigate handles a declared route's navigate request.
func (r *Router) routeNavigate(index int, params routepath.Params, query url.Values) {
	err := r.enqueue(&event{
		kind:  EventRouteNavigate,
		ctx:   r.binding.context(),
		route: index,
		req:   NavigationRequest{Params: params, Query: query, Method: MethodPush},
	})
	if err != nil {
		r.logger.Debug("route navigate request dropped", "template", r.engine.routes[index].Path, "error", err)
	}
}

// sourceChanged is subscribed to the bound source. Notifications arriving
// while the loop navigates that same source are held for the coordinator;
// the rest are queued as source-change events.
func (r *Router) sourceChanged(gen uint64, src history.Source) {
	loc := location{path: src.CurrentPath(), query: src.CurrentQuery()}

	r.issueMu.Lock()
	if r.issueGen != 0 && r.issueGen == gen {
		r.held = append(r.held, loc)
		r.issueMu.Unlock()
		return
	}
	r.issueMu.Unlock()

	if err := r.enqueue(&event{kind: EventSourceChange, ctx: r.binding.context(), gen: gen}); err != nil {
		r.logger.Debug("source change dropped", "error", err)
	}
}

func (r *Router) submit(ctx context.Context, ev *event) error {
	ev.ctx = ctx
	ev.done = make(chan error, 1)
	if err := r.enqueue(ev); err != nil {
		return err
	}
	select {
	case err := <-ev.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		// The loop may have finished the event just before closing.
		select {
		case err := <-ev.done:
			return err
		default:
			return ErrClosed
		}
	}
}

func (r *Router) enqueue(ev *event) error {
	if r.closed.Load() {
		return ErrClosed
	}
	r.queueMu.Lock()
	r.pending = append(r.pending, ev)
	r.queueMu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
	return nil
}

func (r *Router) dequeue() *event {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()
	if len(r.pending) == 0 {
		return nil
	}
	ev := r.pending[0]
	r.pending[0] = nil
	r.pending = r.pending[1:]
	return ev
}

func (r *Router) loop() {
	defer close(r.loopDone)
	for {
		select {
		case <-r.done:
			return
		case <-r.wake:
		}
		for {
			select {
			case <-r.done:
				return
			default:
			}
			ev := r.dequeue()
			if ev == nil {
				break
			}
			r.process(ev)
		}
	}
}

// process runs one event through the middleware chain.
func (r *Router) process(ev *event) {
	ctx := ev.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	// The blocking caller already gave up; do not act on its behalf.
	if ev.done != nil {
		if err := ctx.Err(); err != nil {
			ev.done <- err
			return
		}
	}

	info := &Event{Kind: ev.kind}
	err := ComposeMiddleware(ctx, info, r.middleware, func(ctx context.Context) error {
		return r.handle(ctx, ev, info)
	})

	if ev.done != nil {
		ev.done <- err
		return
	}
	if err != nil {
		r.report(err, "navigation failed", "event", ev.kind.String(), "path", info.Path)
	}
}

func (r *Router) handle(ctx context.Context, ev *event, info *Event) error {
	switch ev.kind {
	case EventBind:
		gen := r.binding.bind(ctx, ev.src, r.sourceChanged)
		r.logger.Info("navigation source bound", "generation", gen, "path", ev.src.CurrentPath())
		return r.reconcileBound(info)

	case EventSourceChange:
		if ev.gen != r.binding.generation() {
			r.logger.Debug("stale source notification ignored", "generation", ev.gen)
			return nil
		}
		return r.reconcileBound(info)

	case EventNavigate:
		return r.requestNavigation(ctx, ev.req, info)

	case EventRouteNavigate:
		rt := r.engine.routes[ev.route]
		info.Template = rt.Path
		path, err := rt.template.Build(ev.req.Params, ev.req.Query)
		if err != nil {
			return err
		}
		req := ev.req
		req.Path = path
		return r.requestNavigation(ctx, req, info)

	default:
		return fmt.Errorf("router: unknown event kind %d", ev.kind)
	}
}

// report logs an error nobody is waiting for and forwards it.
func (r *Router) report(err error, msg string, args ...any) {
	level := slog.LevelError
	if errors.Is(err, ErrClosed) {
		level = slog.LevelDebug
	}
	r.logger.Log(context.Background(), level, msg, append(args, "error", err)...)
	if r.onError != nil {
		r.onError(err)
	}
}

func withQuery(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?" + query.Encode()
}
