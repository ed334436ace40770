package router

import (
	"net/url"

	"github.com/vango-dev/navrouter/pkg/routepath"
)

// NavigateOptions configures navigation behavior.
type NavigateOptions struct {
	// Replace replaces the current history entry instead of pushing.
	Replace bool

	// Query is appended to the path unless the path already has a query.
	Query url.Values

	// Params describe the destination. They are carried on the request for
	// middleware; the path is not rebuilt from them.
	Params routepath.Params
}

// NavigateOption is a functional option for Navigate and Go.
type NavigateOption func(*NavigateOptions)

// WithReplace replaces the current history entry instead of pushing.
func WithReplace() NavigateOption {
	return func(o *NavigateOptions) {
		o.Replace = true
	}
}

// WithQuery adds query parameters to the navigation URL.
func WithQuery(query url.Values) NavigateOption {
	return func(o *NavigateOptions) {
		o.Query = query
	}
}

// WithParams attaches destination params to the request.
func WithParams(params routepath.Params) NavigateOption {
	return func(o *NavigateOptions) {
		o.Params = params
	}
}

// newNavigationRequest applies opts to a request for path.
func newNavigationRequest(path string, opts []NavigateOption) NavigationRequest {
	var options NavigateOptions
	for _, opt := range opts {
		opt(&options)
	}

	method := MethodPush
	if options.Replace {
		method = MethodReplace
	}
	return NavigationRequest{
		Path:   withQuery(path, options.Query),
		Params: options.Params,
		Query:  options.Query,
		Method: method,
	}
}
