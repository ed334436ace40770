package router

import (
	"context"
	"fmt"
	"net/url"
)

// location is a path and query a source reported.
type location struct {
	path  string
	query url.Values
}

func (l location) equal(o location) bool {
	return l.path == o.path && l.query.Encode() == o.query.Encode()
}

// requestNavigation issues req against the source bound right now and, if
// the source accepts it, reconciles against the location the source reports
// afterwards. A rejected navigation leaves every route untouched.
//
// Changes the source reports while the call is in flight each get their own
// pass, in arrival order, before the navigation's pass. One reporting the
// location the navigation ended on is the navigation's own echo and is
// folded into its pass.
func (r *Router) requestNavigation(ctx context.Context, req NavigationRequest, ev *Event) error {
	ev.Method = req.Method
	ev.Path = req.Path

	if _, err := r.binding.current(); err != nil {
		return err
	}

	r.beginIssue(r.binding.generation())
	var err error
	switch req.Method {
	case MethodReplace:
		err = r.binding.replace(ctx, req.Path)
	default:
		err = r.binding.push(ctx, req.Path)
	}
	held := r.endIssue()

	if err != nil {
		for _, loc := range held {
			r.reconcile(ev, loc)
		}
		return fmt.Errorf("router: %s %q: %w", req.Method, req.Path, err)
	}

	final, err := r.currentLocation()
	if err != nil {
		return err
	}
	for _, loc := range held {
		if loc.equal(final) {
			continue
		}
		r.reconcile(ev, loc)
	}
	r.reconcile(ev, final)
	return nil
}

func (r *Router) beginIssue(gen uint64) {
	r.issueMu.Lock()
	r.issueGen = gen
	r.held = nil
	r.issueMu.Unlock()
}

func (r *Router) endIssue() []location {
	r.issueMu.Lock()
	defer r.issueMu.Unlock()
	held := r.held
	r.issueGen = 0
	r.held = nil
	return held
}

func (r *Router) currentLocation() (location, error) {
	path, err := r.binding.currentPath()
	if err != nil {
		return location{}, err
	}
	query, err := r.binding.currentQuery()
	if err != nil {
		return location{}, err
	}
	return location{path: path, query: query}, nil
}

// reconcileBound runs a pass against the bound source's current location.
func (r *Router) reconcileBound(ev *Event) error {
	loc, err := r.currentLocation()
	if err != nil {
		return err
	}
	r.reconcile(ev, loc)
	return nil
}

// reconcile runs one pass against loc, drives the routes and publishes the
// result.
func (r *Router) reconcile(ev *Event, loc location) {
	res := r.engine.reconcile(loc.path, loc.query)
	t := drive(res)

	r.last.Store(&res)
	ev.Result = &res
	ev.Transitions.Opened += t.Opened
	ev.Transitions.Updated += t.Updated
	ev.Transitions.Left += t.Left

	r.logger.Debug("reconciled",
		"path", loc.path,
		"entered", len(res.Entered),
		"left", len(res.Left),
		"opened", t.Opened,
		"updated", t.Updated,
		"closed", t.Left)

	for _, fn := range r.observers.Snapshot() {
		fn(res)
	}
}
