// Package server exposes navrouter routers over HTTP.
//
// A Manifest declares the routes by name. Every unit of work gets its own
// Scope: fresh route handles and a fresh router, so no two requests or
// sessions share route state.
//
// # Endpoints
//
//   - GET /resolve/*: resolves a URL in an isolated per-request scope. The
//     request path is bound as an in-memory history, reconciled once and
//     reported as JSON. 404 when no route matches.
//   - GET /ws: a live session. The browser's history is the router's
//     navigation source (see RemoteSource and package protocol).
//   - GET /routes: the declared routes.
//   - GET /healthz: liveness and the live session count.
//   - GET /metrics: Prometheus metrics, when configured.
//
// # Sessions
//
// Live sessions are kept in an LRU registry bounded by MaxSessions; adding
// a session to a full registry closes the least recently active one. An
// idle reaper closes sessions that have been silent longer than
// SessionConfig.IdleTimeout.
//
//	srv, err := server.New(manifest, server.DefaultServerConfig(),
//	    server.WithMetrics(metrics, prometheus.DefaultGatherer),
//	)
//	if err != nil {
//	    return err
//	}
//	return srv.Run(ctx)
package server
