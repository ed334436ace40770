// Package history defines the navigation source a router binds to and
// provides an in-memory implementation.
//
// A Source is the history stack plus the current location. Sources notify
// subscribers once per location change they make on their own (back,
// forward, an external navigation). A change made through Push or Replace
// is reported by the call returning; a source may also notify for it from
// inside the call, and routers treat that as an echo.
package history

import (
	"context"
	"net/url"
)

// Source is a navigation source: a browser history, a remote client's
// history, or an in-memory stack.
type Source interface {
	// CurrentPath returns the path of the current location, without query.
	CurrentPath() string

	// CurrentQuery returns the decoded query of the current location.
	CurrentQuery() url.Values

	// Push adds a new history entry and makes it current.
	Push(ctx context.Context, path string) error

	// Replace overwrites the current history entry.
	Replace(ctx context.Context, path string) error

	// Subscribe registers fn to be called after location changes, at least
	// those not made through Push or Replace. The returned function removes
	// the subscription.
	Subscribe(fn func()) (unsubscribe func())
}
