// Package middleware provides observability middleware for navrouter.
//
// This package includes:
//   - OpenTelemetry tracing middleware
//   - Prometheus metrics middleware
//
// Both wrap router events (binds, navigations, source changes and route
// navigate requests), so a span or a duration covers the navigation issued
// to the source and the reconciliation pass that follows it.
//
// # OpenTelemetry Middleware
//
//	r, err := router.New(decls, router.WithMiddleware(
//	    middleware.OpenTelemetry(),
//	))
//
// Configure with options:
//
//	middleware.OpenTelemetry(
//	    middleware.WithTracerName("my-app"),
//	    middleware.WithEventFilter(func(ev *router.Event) bool {
//	        return ev.Kind != router.EventSourceChange
//	    }),
//	)
//
// # Prometheus Metrics
//
// NewMetrics registers router and session metrics:
//   - navrouter_events_total: router events by kind and status
//   - navrouter_event_duration_seconds: event processing duration histogram
//   - navrouter_reconciliations_total: reconciliation passes
//   - navrouter_route_transitions_total: opened/updated/left lifecycle calls
//   - navrouter_active_sessions: live websocket sessions
//
//	m := middleware.NewMetrics(middleware.WithNamespace("myapp"))
//	r, err := router.New(decls, router.WithMiddleware(m.Middleware()))
//
// Then expose the metrics endpoint:
//
//	http.Handle("/metrics", promhttp.Handler())
//
// # Context Propagation
//
// The tracing middleware hands the span's context to the rest of the chain.
// A navigation source receives it in Push and Replace:
//
//	func (s *mySource) Push(ctx context.Context, path string) error {
//	    req, _ := http.NewRequestWithContext(ctx, "POST", s.url, body)
//	    ...
//	}
package middleware
