// Package route provides Route, a route handle a router can drive.
//
// A Route owns its opened flag. The router calls Opened, Updated and Left
// as reconciliation passes find the route's template matching (or no longer
// matching) the current path; Navigate asks the router to make the route
// current.
//
//	posts := route.New("posts")
//	posts.OnOpened(func(p routepath.Params, q url.Values) {
//	    loadPost(p["postId"])
//	})
//	posts.Navigate(routepath.Params{"postId": "42"}, nil)
package route

import (
	"net/url"
	"sync"

	"github.com/vango-dev/navrouter/internal/observer"
	"github.com/vango-dev/navrouter/pkg/routepath"
)

// Route is a route handle. All methods are safe for concurrent use.
type Route struct {
	name string

	mu     sync.RWMutex
	opened bool
	params routepath.Params
	query  url.Values

	navigate observer.Registry[func(routepath.Params, url.Values)]
	onOpened observer.Registry[func(routepath.Params, url.Values)]
	onUpdate observer.Registry[func(routepath.Params, url.Values)]
	onLeft   observer.Registry[func()]
	watchers observer.Registry[func(bool)]
}

// New creates a closed route. The name is only used for diagnostics.
func New(name string) *Route {
	return &Route{name: name}
}

// Name returns the route's name.
func (r *Route) Name() string {
	return r.name
}

// IsOpened reports whether the route matched the last reconciled path.
func (r *Route) IsOpened() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.opened
}

// Params returns the params of the last Opened or Updated call, or nil
// while closed.
func (r *Route) Params() routepath.Params {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.params == nil {
		return nil
	}
	return r.params.Clone()
}

// Query returns the query of the last Opened or Updated call, or nil while
// closed.
func (r *Route) Query() url.Values {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.query == nil {
		return nil
	}
	out := make(url.Values, len(r.query))
	for k, v := range r.query {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Navigate requests navigation to this route. The request is delivered to
// every OnNavigate subscriber (normally the router that declared the route);
// the route itself changes state only when the router drives it.
func (r *Route) Navigate(params routepath.Params, query url.Values) {
	for _, fn := range r.navigate.Snapshot() {
		fn(params, query)
	}
}

// OnNavigate subscribes to navigate requests.
func (r *Route) OnNavigate(fn func(routepath.Params, url.Values)) func() {
	return r.navigate.Add(fn)
}

// Opened marks the route opened and notifies OnOpened subscribers.
func (r *Route) Opened(params routepath.Params, query url.Values) {
	r.mu.Lock()
	r.opened = true
	r.params = params
	r.query = query
	r.mu.Unlock()

	for _, fn := range r.watchers.Snapshot() {
		fn(true)
	}
	for _, fn := range r.onOpened.Snapshot() {
		fn(params, query)
	}
}

// Updated records new params for an opened route and notifies OnUpdated
// subscribers.
func (r *Route) Updated(params routepath.Params, query url.Values) {
	r.mu.Lock()
	r.params = params
	r.query = query
	r.mu.Unlock()

	for _, fn := range r.onUpdate.Snapshot() {
		fn(params, query)
	}
}

// Left marks the route closed and notifies OnLeft subscribers.
func (r *Route) Left() {
	r.mu.Lock()
	r.opened = false
	r.params = nil
	r.query = nil
	r.mu.Unlock()

	for _, fn := range r.watchers.Snapshot() {
		fn(false)
	}
	for _, fn := range r.onLeft.Snapshot() {
		fn()
	}
}

// OnOpened subscribes to the closed → opened transition.
func (r *Route) OnOpened(fn func(routepath.Params, url.Values)) func() {
	return r.onOpened.Add(fn)
}

// OnUpdated subscribes to revisits of an opened route.
func (r *Route) OnUpdated(fn func(routepath.Params, url.Values)) func() {
	return r.onUpdate.Add(fn)
}

// OnLeft subscribes to the opened → closed transition.
func (r *Route) OnLeft(fn func()) func() {
	return r.onLeft.Add(fn)
}

// Watch subscribes to changes of the opened flag.
func (r *Route) Watch(fn func(opened bool)) func() {
	return r.watchers.Add(fn)
}

// NavigateSubscribers returns how many navigate subscribers are registered.
func (r *Route) NavigateSubscribers() int {
	return r.navigate.Len()
}
