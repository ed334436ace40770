package server

import (
	"fmt"

	"github.com/vango-dev/navrouter/pkg/protocol"
	"github.com/vango-dev/navrouter/pkg/route"
	"github.com/vango-dev/navrouter/pkg/router"
	"github.com/vango-dev/navrouter/pkg/routepath"
)

// RouteSpec declares a named route.
type RouteSpec struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Manifest is a validated, immutable route declaration list.
type Manifest struct {
	specs []RouteSpec
	names [][]string
}

// NewManifest validates specs: every template must compile and every name
// must be unique and non-empty.
func NewManifest(specs []RouteSpec) (*Manifest, error) {
	m := &Manifest{
		specs: make([]RouteSpec, len(specs)),
		names: make([][]string, len(specs)),
	}
	seen := make(map[string]bool, len(specs))
	for i, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("server: route %d (%q): empty name", i, spec.Path)
		}
		if seen[spec.Name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateRoute, spec.Name)
		}
		seen[spec.Name] = true

		t, err := routepath.Compile(spec.Path)
		if err != nil {
			return nil, fmt.Errorf("server: route %q: %w", spec.Name, err)
		}
		m.specs[i] = spec
		m.names[i] = t.Names()
	}
	return m, nil
}

// Routes returns a copy of the declarations.
func (m *Manifest) Routes() []RouteSpec {
	return append([]RouteSpec(nil), m.specs...)
}

// Params returns the param names of the route at index i.
func (m *Manifest) Params(i int) []string {
	return m.names[i]
}

// Scope is one isolated instantiation of a manifest: fresh route handles
// and the router driving them.
type Scope struct {
	Router *router.Router

	specs  []RouteSpec
	routes []*route.Route
	byName map[string]*route.Route
}

// NewScope creates route handles for every declaration and a router over
// them. The caller owns the scope and must Close it.
func (m *Manifest) NewScope(opts ...router.Option) (*Scope, error) {
	sc := &Scope{
		specs:  m.specs,
		routes: make([]*route.Route, len(m.specs)),
		byName: make(map[string]*route.Route, len(m.specs)),
	}
	decls := make([]router.Declaration, len(m.specs))
	for i, spec := range m.specs {
		rt := route.New(spec.Name)
		sc.routes[i] = rt
		sc.byName[spec.Name] = rt
		decls[i] = router.Declaration{Path: spec.Path, Route: rt}
	}

	r, err := router.New(decls, opts...)
	if err != nil {
		return nil, err
	}
	sc.Router = r
	return sc, nil
}

// Route returns the handle declared under name.
func (sc *Scope) Route(name string) (*route.Route, bool) {
	rt, ok := sc.byName[name]
	return rt, ok
}

// Spec returns the declaration named name.
func (sc *Scope) Spec(name string) (RouteSpec, bool) {
	for _, spec := range sc.specs {
		if spec.Name == name {
			return spec, true
		}
	}
	return RouteSpec{}, false
}

// States reports every declared route, in declaration order, as the pass
// res left it.
func (sc *Scope) States(res router.Result) []protocol.RouteState {
	states := make([]protocol.RouteState, len(sc.routes))
	for i, rt := range sc.routes {
		state := protocol.RouteState{Name: sc.specs[i].Name, Template: sc.specs[i].Path}
		if entry, ok := res.Opened(rt); ok {
			state.Opened = true
			state.Params = entry.Params
		}
		states[i] = state
	}
	return states
}

// Close closes the scope's router.
func (sc *Scope) Close() {
	sc.Router.Close()
}
