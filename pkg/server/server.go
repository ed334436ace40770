package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vango-dev/navrouter/pkg/middleware"
	"github.com/vango-dev/navrouter/pkg/protocol"
	"github.com/vango-dev/navrouter/pkg/router"
)

// Server serves a manifest over HTTP and WebSocket.
type Server struct {
	manifest *Manifest
	config   *ServerConfig
	sessions *Registry
	upgrader websocket.Upgrader
	handler  http.Handler

	metrics    *middleware.Metrics
	gatherer   prometheus.Gatherer
	routerOpts []router.Option
	clock      clock.Clock
	logger     *slog.Logger

	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
// Default: slog.Default() with component=server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records router and session metrics into m and serves g at
// ServerConfig.MetricsPath. Either may be nil.
func WithMetrics(m *middleware.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// WithRouterOptions adds options to every scope router, after the server's
// own logger and metrics options.
func WithRouterOptions(opts ...router.Option) Option {
	return func(s *Server) {
		s.routerOpts = append(s.routerOpts, opts...)
	}
}

// WithClock sets the clock used for session activity and ack timeouts.
func WithClock(clk clock.Clock) Option {
	return func(s *Server) {
		s.clock = clk
	}
}

// New creates a server for manifest. Unset config fields take defaults.
func New(manifest *Manifest, config *ServerConfig, opts ...Option) (*Server, error) {
	if manifest == nil {
		return nil, errors.New("server: nil manifest")
	}
	config = config.withDefaults()

	s := &Server{
		manifest: manifest,
		config:   config,
		clock:    clock.New(),
		logger:   slog.Default().With("component", "server"),
	}
	for _, opt := range opts {
		opt(s)
	}

	sessions, err := NewRegistry(config.MaxSessions, config.SessionConfig, s.clock, s.metrics, s.logger)
	if err != nil {
		return nil, fmt.Errorf("server: session registry: %w", err)
	}
	s.sessions = sessions

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  config.ReadBufferSize,
		WriteBufferSize: config.WriteBufferSize,
		CheckOrigin:     config.CheckOrigin,
	}
	s.handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/routes", s.handleRoutes)
	r.Get("/resolve", s.handleResolve)
	r.Get("/resolve/*", s.handleResolve)
	r.Get("/ws", s.HandleWebSocket)
	if s.gatherer != nil {
		r.Handle(s.config.MetricsPath, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Sessions returns the live session registry.
func (s *Server) Sessions() *Registry {
	return s.sessions
}

// Config returns the effective configuration.
func (s *Server) Config() *ServerConfig {
	return s.config
}

// routerOptions are the options for a new scope router.
func (s *Server) routerOptions(logger *slog.Logger, extra ...router.Option) []router.Option {
	opts := []router.Option{router.WithLogger(logger.With("component", "router"))}
	if s.metrics != nil {
		opts = append(opts, router.WithMiddleware(s.metrics.Middleware()))
	}
	opts = append(opts, s.routerOpts...)
	return append(opts, extra...)
}

// HandleWebSocket upgrades the connection, waits for hello and runs a live
// session until the connection ends.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		s.metrics.WebSocketError("upgrade")
		return
	}
	conn.SetReadLimit(protocol.MaxMessageSize)

	hello, err := s.readHello(conn)
	if err != nil {
		s.logger.Warn("handshake failed", "error", err)
		s.metrics.WebSocketError("handshake")
		s.rejectConn(conn, protocol.ErrInvalidMessage, err.Error())
		return
	}

	sess, err := s.openSession(r.Context(), conn, hello.Path)
	if err != nil {
		s.logger.Warn("session start failed", "error", err)
		s.rejectConn(conn, protocol.ErrServerError, err.Error())
		return
	}
	sess.ReadLoop()
}

func (s *Server) readHello(conn *websocket.Conn) (*protocol.Message, error) {
	conn.SetReadDeadline(time.Now().Add(s.config.SessionConfig.HandshakeTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	msg, err := protocol.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHandshake, err)
	}
	if msg.Type != protocol.TypeHello {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidHandshake, msg.Type)
	}
	return msg, nil
}

func (s *Server) rejectConn(conn *websocket.Conn, code protocol.ErrorCode, message string) {
	deadline := time.Now().Add(s.config.SessionConfig.WriteTimeout)
	if data, err := protocol.Encode(protocol.Error(code, message, true)); err == nil {
		conn.SetWriteDeadline(deadline)
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, code.String()), deadline)
	conn.Close()
}

// openSession creates the session's scope and source, registers it and
// binds the source, which reports the initial state.
func (s *Server) openSession(ctx context.Context, conn *websocket.Conn, initial string) (*Session, error) {
	sess := &Session{
		ID:      uuid.NewString(),
		conn:    conn,
		config:  s.config.SessionConfig,
		clock:   s.clock,
		metrics: s.metrics,
		created: s.clock.Now(),
	}
	sess.logger = s.logger.With("session_id", sess.ID)

	src, err := NewRemoteSource(initial, sess.send, sess.config.AckTimeout, s.clock)
	if err != nil {
		return nil, err
	}
	sess.source = src

	scope, err := s.manifest.NewScope(s.routerOptions(sess.logger, router.WithErrorHandler(sess.reportError))...)
	if err != nil {
		return nil, err
	}
	sess.scope = scope
	scope.Router.Subscribe(sess.sendState)
	sess.touch()

	if err := sess.send(protocol.Welcome(sess.ID)); err != nil {
		scope.Close()
		return nil, err
	}

	s.sessions.Add(sess)
	s.metrics.SessionOpened()
	sess.logger.Info("session started", "path", initial)

	if err := scope.Router.BindSource(ctx, src); err != nil {
		sess.Close()
		return nil, err
	}
	return sess, nil
}

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Sessions: s.sessions.Len()})
}

type routeInfo struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Params []string `json:"params"`
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	specs := s.manifest.Routes()
	out := make([]routeInfo, len(specs))
	for i, spec := range specs {
		params := s.manifest.Params(i)
		if params == nil {
			params = []string{}
		}
		out[i] = routeInfo{Name: spec.Name, Path: spec.Path, Params: params}
	}
	writeJSON(w, http.StatusOK, out)
}

// Run serves on the configured address until ctx ends, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx ends, then shuts down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", ln.Addr().String())
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down...")
		return s.Shutdown(context.WithoutCancel(ctx))
	}
}

// Shutdown closes every session, then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	err := s.sessions.Shutdown(ctx)

	if s.httpServer != nil {
		if herr := s.httpServer.Shutdown(ctx); herr != nil {
			s.logger.Error("shutdown error", "error", herr)
			err = errors.Join(err, herr)
		}
	}

	s.logger.Info("server shutdown complete")
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
