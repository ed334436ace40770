// Package router keeps a set of declared routes in sync with a navigation
// source.
//
// A Router is built from a fixed list of declarations, each pairing a path
// template with a route handle:
//
//	posts := route.New("posts")
//	r, err := router.New([]router.Declaration{
//	    {Path: "/posts/:postId", Route: posts},
//	})
//
// Binding a navigation source runs a reconciliation pass against the
// source's current location:
//
//	h, _ := history.NewMemory("/posts/5")
//	err = r.BindSource(ctx, h) // posts.Opened({postId: 5})
//
// # Reconciliation
//
// Every pass matches the current path against every declared template and
// splits the routes into entered (template matches) and left (it does not).
// The split is total: every route lands in exactly one set on every pass.
// The driver then calls, per route:
//
//	entered, closed  → Opened(params, query)
//	entered, opened  → Updated(params, query)
//	left,    opened  → Left()
//	left,    closed  → nothing
//
// A pass runs when a source is bound, after every Push/Replace the router
// issues, and once for every change notification from the bound source.
//
// # Navigation
//
// Push and Replace navigate the bound source and reconcile against the
// location the source reports afterwards. A route's own navigate request
// (route.Navigate) builds the destination from the route's template and
// pushes it.
//
// # Concurrency
//
// Each Router owns one event loop. Binds, navigations, source notifications
// and route navigate requests are queued and processed one at a time in
// arrival order; a navigation and its pass complete before the next event
// starts. Route lifecycle callbacks run on the loop goroutine. They may call
// route.Navigate or Router.Go, which only enqueue, but must not call the
// blocking Push, Replace or BindSource: those wait for the loop.
package router
