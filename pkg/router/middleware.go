package router

import "context"

// Middleware wraps every unit of work on the router's event loop.
type Middleware interface {
	// Handle processes the event and normally calls next. Returning without
	// calling next skips the event; the returned error is what a blocking
	// caller receives.
	Handle(ctx context.Context, ev *Event, next func(context.Context) error) error
}

// MiddlewareFunc is a function adapter for Middleware.
type MiddlewareFunc func(ctx context.Context, ev *Event, next func(context.Context) error) error

// Handle implements Middleware.
func (f MiddlewareFunc) Handle(ctx context.Context, ev *Event, next func(context.Context) error) error {
	return f(ctx, ev, next)
}

// ComposeMiddleware builds a handler chain from middleware and a final handler.
// Middleware is executed in order (first to last), with the handler at the end.
func ComposeMiddleware(ctx context.Context, ev *Event, mw []Middleware, handler func(context.Context) error) error {
	if len(mw) == 0 {
		return handler(ctx)
	}

	// Build chain from end to start
	chain := handler
	for i := len(mw) - 1; i >= 0; i-- {
		m := mw[i]
		next := chain
		chain = func(ctx context.Context) error {
			return m.Handle(ctx, ev, next)
		}
	}

	return chain(ctx)
}

// Chain creates a middleware that combines multiple middleware in order.
func Chain(middleware ...Middleware) Middleware {
	return MiddlewareFunc(func(ctx context.Context, ev *Event, next func(context.Context) error) error {
		return ComposeMiddleware(ctx, ev, middleware, next)
	})
}

// Skip bypasses mw for events matching condition.
func Skip(condition func(ev *Event) bool, mw Middleware) Middleware {
	return MiddlewareFunc(func(ctx context.Context, ev *Event, next func(context.Context) error) error {
		if condition(ev) {
			return next(ctx)
		}
		return mw.Handle(ctx, ev, next)
	})
}

// Only runs mw for events matching condition.
func Only(condition func(ev *Event) bool, mw Middleware) Middleware {
	return MiddlewareFunc(func(ctx context.Context, ev *Event, next func(context.Context) error) error {
		if !condition(ev) {
			return next(ctx)
		}
		return mw.Handle(ctx, ev, next)
	})
}
