package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vango-dev/navrouter/internal/errors"
	"github.com/vango-dev/navrouter/pkg/routepath"
	"github.com/vango-dev/navrouter/pkg/server"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the file looked up when no path is given.
	ConfigFileName = "navrouter.yaml"

	// DefaultAddress is the default listen address.
	DefaultAddress = ":8080"

	// DefaultMetricsPath is where metrics are served by default.
	DefaultMetricsPath = "/metrics"

	// DefaultNamespace prefixes metric names by default.
	DefaultNamespace = "navrouter"
)

// Config is the complete configuration file.
type Config struct {
	// Name is the application name.
	Name string `yaml:"name,omitempty"`

	// Routes is the route manifest, in declaration order.
	Routes []RouteConfig `yaml:"routes" validate:"required,min=1,dive"`

	Server  ServerConfig  `yaml:"server,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
	Log     LogConfig     `yaml:"log,omitempty"`

	// source is where the config was loaded from.
	source string
}

// RouteConfig declares one named route.
type RouteConfig struct {
	Name string `yaml:"name" validate:"required"`
	Path string `yaml:"path" validate:"required,startswith=/"`
}

// ServerConfig holds the HTTP and session settings.
type ServerConfig struct {
	Address            string        `yaml:"address,omitempty" validate:"omitempty,hostname_port"`
	ReadHeaderTimeout  time.Duration `yaml:"readHeaderTimeout,omitempty" validate:"gte=0"`
	ShutdownTimeout    time.Duration `yaml:"shutdownTimeout,omitempty" validate:"gte=0"`
	MaxSessions        int           `yaml:"maxSessions,omitempty" validate:"gte=0"`
	SessionIdleTimeout time.Duration `yaml:"sessionIdleTimeout,omitempty" validate:"gte=0"`
	AckTimeout         time.Duration `yaml:"ackTimeout,omitempty" validate:"gte=0"`
	AllowedOrigins     []string      `yaml:"allowedOrigins,omitempty" validate:"dive,url"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace,omitempty"`
	Path      string `yaml:"path,omitempty" validate:"omitempty,startswith=/"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format,omitempty" validate:"omitempty,oneof=text json"`
}

// New returns a Config with defaults and no routes.
func New() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads, defaults and validates the configuration at uri: a file
// path, or s3://bucket/key.
func Load(ctx context.Context, uri string, opts ...LoadOption) (*Config, error) {
	var lo loadOptions
	for _, opt := range opts {
		opt(&lo)
	}

	var (
		data []byte
		err  error
	)
	if isS3URI(uri) {
		data, err = fetchS3(ctx, uri, lo)
	} else {
		data, err = readFile(uri)
	}
	if err != nil {
		return nil, err
	}

	cfg, err := Parse(data, uri)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads the configuration at path.
func LoadFile(path string) (*Config, error) {
	return Load(context.Background(), path)
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E121").
				WithDetail("No configuration at " + path).
				Wrap(err)
		}
		return nil, errors.New("E120").WithDetail(err.Error()).Wrap(err)
	}
	return data, nil
}

// Parse decodes a YAML or JSON document; source names it in errors.
func Parse(data []byte, source string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		ne := errors.New("E120").WithDetail(err.Error()).Wrap(err)
		if !isS3URI(source) && source != "" {
			ne.WithLocationFromError(source, err)
		}
		return nil, ne
	}
	cfg.source = source
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// SaveTo writes the configuration as YAML to path.
func (c *Config) SaveTo(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return errors.New("E120").Wrap(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New("E120").WithDetail(err.Error()).Wrap(err)
	}
	c.source = path
	return nil
}

// Source returns where the configuration was loaded from.
func (c *Config) Source() string {
	return c.source
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	defaults := server.DefaultServerConfig()

	if c.Server.Address == "" {
		c.Server.Address = DefaultAddress
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = defaults.ReadHeaderTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if c.Server.MaxSessions == 0 {
		c.Server.MaxSessions = defaults.MaxSessions
	}
	if c.Server.SessionIdleTimeout == 0 {
		c.Server.SessionIdleTimeout = defaults.SessionConfig.IdleTimeout
	}
	if c.Server.AckTimeout == 0 {
		c.Server.AckTimeout = defaults.SessionConfig.AckTimeout
	}

	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints, then that every route template
// compiles and every route name is unique.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return c.validationError(err)
	}

	seen := make(map[string]int, len(c.Routes))
	for i, rt := range c.Routes {
		if j, dup := seen[rt.Name]; dup {
			return c.locate(errors.New("E124").
				WithDetail(fmt.Sprintf("%q is declared by routes %d and %d", rt.Name, j, i)), "name: "+rt.Name, 2)
		}
		seen[rt.Name] = i

		if _, err := routepath.Compile(rt.Path); err != nil {
			return c.locate(errors.New("E123").
				WithDetail(fmt.Sprintf("route %q: %v", rt.Name, err)).
				Wrap(err), "path: "+rt.Path, 1)
		}
	}
	return nil
}

func (c *Config) validationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return errors.New("E122").WithDetail(err.Error()).Wrap(err)
	}
	fe := verrs[0]
	detail := fmt.Sprintf("%s fails %q", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag())
	if fe.Param() != "" {
		detail += " (" + fe.Param() + ")"
	}
	return errors.New("E122").WithDetail(detail).Wrap(err)
}

// locate points e at the nth line of the source file containing needle.
func (c *Config) locate(e *errors.NavError, needle string, nth int) *errors.NavError {
	if c.source == "" || isS3URI(c.source) {
		return e
	}
	data, err := os.ReadFile(c.source)
	if err != nil {
		return e
	}
	seen := 0
	for i, line := range strings.Split(string(data), "\n") {
		if strings.Contains(line, needle) {
			seen++
			if seen == nth {
				return e.WithLocation(c.source, i+1)
			}
		}
	}
	return e
}

// RouteSpecs returns the route manifest declarations.
func (c *Config) RouteSpecs() []server.RouteSpec {
	specs := make([]server.RouteSpec, len(c.Routes))
	for i, rt := range c.Routes {
		specs[i] = server.RouteSpec{Name: rt.Name, Path: rt.Path}
	}
	return specs
}

// ServerConfig converts the server section for server.New.
func (c *Config) ServerConfig() *server.ServerConfig {
	sc := server.DefaultServerConfig()
	sc.Address = c.Server.Address
	sc.ReadHeaderTimeout = c.Server.ReadHeaderTimeout
	sc.ShutdownTimeout = c.Server.ShutdownTimeout
	sc.MaxSessions = c.Server.MaxSessions
	sc.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	sc.SessionConfig.IdleTimeout = c.Server.SessionIdleTimeout
	sc.SessionConfig.AckTimeout = c.Server.AckTimeout
	sc.MetricsPath = c.Metrics.Path
	return sc
}

// Exists reports whether dir contains ConfigFileName.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindConfig walks up from startDir to the first directory holding
// ConfigFileName and returns the file's path.
func FindConfig(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}
	for {
		if Exists(dir) {
			return filepath.Join(dir, ConfigFileName), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E121").
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}
