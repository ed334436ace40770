package router

import (
	"net/url"

	"github.com/vango-dev/navrouter/pkg/routepath"
)

// compiledRoute is a declaration with its template compiled.
type compiledRoute struct {
	Declaration
	template *routepath.Template
}

// engine matches a location against every declared route.
type engine struct {
	routes []compiledRoute

	// exclusive limits each pass to the first matching route in
	// declaration order. Later matches are placed in Left.
	exclusive bool
}

// reconcile runs one full pass. It never consults previous passes: every
// declared route is placed in Entered or Left from scratch.
func (e *engine) reconcile(path string, query url.Values) Result {
	res := Result{
		Path:  path,
		Query: query,
	}
	matched := false
	for _, rt := range e.routes {
		params, ok := rt.template.Match(path)
		if ok && e.exclusive && matched {
			params, ok = routepath.Params{}, false
		}
		matched = matched || ok
		entry := Entry{
			Route:    rt.Route,
			Template: rt.Path,
			Params:   params,
			Query:    cloneQuery(query),
		}
		if ok {
			res.Entered = append(res.Entered, entry)
		} else {
			res.Left = append(res.Left, entry)
		}
	}
	return res
}

func cloneQuery(q url.Values) url.Values {
	out := make(url.Values, len(q))
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	return out
}
