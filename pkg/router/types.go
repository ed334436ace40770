package router

import (
	"net/url"

	"github.com/vango-dev/navrouter/pkg/routepath"
)

// Handle is a route's state machine as the router sees it. The router never
// sets the opened flag itself: Opened must make IsOpened report true and
// Left must make it report false.
type Handle interface {
	// IsOpened reports whether the route is currently opened.
	IsOpened() bool

	// Opened is the closed → opened transition.
	Opened(params routepath.Params, query url.Values)

	// Updated is called for a route that is already opened and matched
	// again, even with identical params.
	Updated(params routepath.Params, query url.Values)

	// Left is the opened → closed transition.
	Left()

	// OnNavigate subscribes to the route's navigate requests.
	OnNavigate(fn func(params routepath.Params, query url.Values)) (cancel func())
}

// Declaration pairs a path template with the route it drives.
type Declaration struct {
	Path  string
	Route Handle
}

// Entry is one route's outcome in a reconciliation pass.
type Entry struct {
	// Route is the declared handle.
	Route Handle

	// Template is the declared path template.
	Template string

	// Params are the matched params; empty for left routes.
	Params routepath.Params

	// Query is the query of the reconciled location.
	Query url.Values
}

// Result is the outcome of one reconciliation pass. Entered and Left are
// disjoint and together hold every declared route, in declaration order.
type Result struct {
	// Path is the reconciled path.
	Path string

	// Query is the reconciled query.
	Query url.Values

	// Entered holds routes whose template matches Path.
	Entered []Entry

	// Left holds routes whose template does not match Path.
	Left []Entry
}

// Opened reports whether route is in the entered set.
func (r Result) Opened(route Handle) (Entry, bool) {
	for _, e := range r.Entered {
		if e.Route == route {
			return e, true
		}
	}
	return Entry{}, false
}

// Transitions counts the lifecycle calls the driver made for one pass.
type Transitions struct {
	Opened  int
	Updated int
	Left    int
}

// Method selects how a navigation changes the history stack.
type Method int

const (
	// MethodPush adds a new history entry.
	MethodPush Method = iota

	// MethodReplace overwrites the current history entry.
	MethodReplace
)

// String returns "push" or "replace".
func (m Method) String() string {
	if m == MethodReplace {
		return "replace"
	}
	return "push"
}

// NavigationRequest is a navigation handed to the push coordinator.
type NavigationRequest struct {
	// Path is the literal destination, optionally with a query string.
	Path string

	// Params and Query describe the destination; Path already reflects them.
	Params routepath.Params
	Query  url.Values

	Method Method
}

// EventKind identifies what triggered a unit of work on the event loop.
type EventKind int

const (
	// EventBind is a BindSource call.
	EventBind EventKind = iota

	// EventNavigate is a Push, Replace, Navigate or Go call.
	EventNavigate

	// EventSourceChange is a change notification from the bound source.
	EventSourceChange

	// EventRouteNavigate is a navigate request from a declared route.
	EventRouteNavigate
)

// String returns the kind as used in logs and metric labels.
func (k EventKind) String() string {
	switch k {
	case EventBind:
		return "bind"
	case EventNavigate:
		return "navigate"
	case EventSourceChange:
		return "source_change"
	case EventRouteNavigate:
		return "route_navigate"
	default:
		return "unknown"
	}
}

// Event describes the unit of work middleware wraps. Result is the last
// pass the event ran and Transitions sums all of them; they stay nil and
// zero when no pass ran (failed navigation, stale notification). A
// navigation runs more than one pass when the source reported other
// changes while it was in flight.
type Event struct {
	Kind EventKind

	// Method and Path are set for navigation events. For route navigate
	// requests Path is set once the destination has been built.
	Method Method
	Path   string

	// Template is the declaring template for route navigate requests.
	Template string

	Result      *Result
	Transitions Transitions
}
