package server

import (
	"net/http"
	"net/url"
	"slices"
	"time"
)

// SessionConfig holds per-session settings.
type SessionConfig struct {
	// HandshakeTimeout is how long a new connection may take to send hello.
	// Default: 10 seconds.
	HandshakeTimeout time.Duration

	// ReadTimeout is the maximum time to wait for a message from the client.
	// Clients should ping more often than this.
	// Default: 60 seconds.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a message.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// AckTimeout is how long a push or replace waits for the browser's ack.
	// Default: 5 seconds.
	AckTimeout time.Duration

	// IdleTimeout is the time after which an inactive session is closed.
	// Default: 5 minutes.
	IdleTimeout time.Duration

	// CleanupInterval is how often the idle reaper runs.
	// Default: 30 seconds.
	CleanupInterval time.Duration
}

// DefaultSessionConfig returns a SessionConfig with sensible defaults.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		AckTimeout:       5 * time.Second,
		IdleTimeout:      5 * time.Minute,
		CleanupInterval:  30 * time.Second,
	}
}

// Clone returns a copy of the SessionConfig.
func (c *SessionConfig) Clone() *SessionConfig {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// ServerConfig holds configuration for the HTTP/WebSocket server.
type ServerConfig struct {
	// Address is the address to listen on (e.g., ":8080" or "localhost:3000").
	// Default: ":8080".
	Address string

	// ReadBufferSize is the WebSocket read buffer size.
	// Default: 4096.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	// Default: 4096.
	WriteBufferSize int

	// AllowedOrigins lists the origins allowed to open sessions. Empty means
	// same-origin only.
	AllowedOrigins []string

	// CheckOrigin overrides the origin check entirely.
	// Default: derived from AllowedOrigins.
	CheckOrigin func(r *http.Request) bool

	// SessionConfig is the configuration for individual sessions.
	// Default: DefaultSessionConfig().
	SessionConfig *SessionConfig

	// MaxSessions bounds the live session registry.
	// Default: 1024.
	MaxSessions int

	// ReadHeaderTimeout bounds reading request headers.
	// Default: 5 seconds.
	ReadHeaderTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// MetricsPath is where Prometheus metrics are served when a gatherer is
	// configured.
	// Default: "/metrics".
	MetricsPath string
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:           ":8080",
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
		SessionConfig:     DefaultSessionConfig(),
		MaxSessions:       1024,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		MetricsPath:       "/metrics",
	}
}

// withDefaults fills unset fields from DefaultServerConfig.
func (c *ServerConfig) withDefaults() *ServerConfig {
	defaults := DefaultServerConfig()
	if c == nil {
		return defaults
	}
	config := c.Clone()
	if config.Address == "" {
		config.Address = defaults.Address
	}
	if config.ReadBufferSize == 0 {
		config.ReadBufferSize = defaults.ReadBufferSize
	}
	if config.WriteBufferSize == 0 {
		config.WriteBufferSize = defaults.WriteBufferSize
	}
	if config.MaxSessions <= 0 {
		config.MaxSessions = defaults.MaxSessions
	}
	if config.ReadHeaderTimeout == 0 {
		config.ReadHeaderTimeout = defaults.ReadHeaderTimeout
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if config.MetricsPath == "" {
		config.MetricsPath = defaults.MetricsPath
	}
	if config.CheckOrigin == nil {
		config.CheckOrigin = OriginCheck(config.AllowedOrigins)
	}

	sc := config.SessionConfig
	if sc == nil {
		sc = defaults.SessionConfig
	}
	ds := defaults.SessionConfig
	if sc.HandshakeTimeout == 0 {
		sc.HandshakeTimeout = ds.HandshakeTimeout
	}
	if sc.ReadTimeout == 0 {
		sc.ReadTimeout = ds.ReadTimeout
	}
	if sc.WriteTimeout == 0 {
		sc.WriteTimeout = ds.WriteTimeout
	}
	if sc.AckTimeout == 0 {
		sc.AckTimeout = ds.AckTimeout
	}
	if sc.IdleTimeout == 0 {
		sc.IdleTimeout = ds.IdleTimeout
	}
	if sc.CleanupInterval == 0 {
		sc.CleanupInterval = ds.CleanupInterval
	}
	config.SessionConfig = sc
	return config
}

// Clone returns a copy of the ServerConfig.
func (c *ServerConfig) Clone() *ServerConfig {
	if c == nil {
		return nil
	}
	clone := *c
	clone.SessionConfig = c.SessionConfig.Clone()
	clone.AllowedOrigins = slices.Clone(c.AllowedOrigins)
	return &clone
}

// OriginCheck returns SameOriginCheck when allowed is empty, and otherwise
// a check accepting same-origin requests plus the listed origins.
func OriginCheck(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return SameOriginCheck
	}
	allowed = slices.Clone(allowed)
	return func(r *http.Request) bool {
		if SameOriginCheck(r) {
			return true
		}
		return slices.Contains(allowed, r.Header.Get("Origin"))
	}
}

// SameOriginCheck validates that the WebSocket request origin matches the host.
// SECURITY: Uses proper URL parsing to avoid edge cases with string manipulation.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// No Origin header (e.g., same-origin request or curl)
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := r.Host
	if host == "" {
		return false
	}
	return originURL.Host == host
}
