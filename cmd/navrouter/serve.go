package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	naverrors "github.com/vango-dev/navrouter/internal/errors"
	"github.com/vango-dev/navrouter/pkg/middleware"
	"github.com/vango-dev/navrouter/pkg/router"
	"github.com/vango-dev/navrouter/pkg/server"
	"golang.org/x/sync/errgroup"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var (
		address        string
		metricsAddress string
		tracing        bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the session server",
		Long: `Run the HTTP and WebSocket server for the configured route manifest.

Browsers connect to /ws and keep their history in sync with a route
scope of their own. /resolve/<path> reconciles a path without a session.

Examples:
  navrouter serve
  navrouter serve --config routes.yaml --address :9000
  navrouter serve --metrics-address :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, flags, address, metricsAddress, tracing)
		},
	}

	cmd.Flags().StringVarP(&address, "address", "a", "", "Address to listen on (default from config)")
	cmd.Flags().StringVar(&metricsAddress, "metrics-address", "", "Serve metrics on a separate listener instead of the main one")
	cmd.Flags().BoolVar(&tracing, "tracing", false, "Record an OpenTelemetry span for every router event")

	return cmd
}

func runServe(cmd *cobra.Command, flags *globalFlags, address, metricsAddress string, tracing bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := loadConfig(ctx, flags)
	if err != nil {
		return err
	}
	manifest, err := server.NewManifest(cfg.RouteSpecs())
	if err != nil {
		return naverrors.FromRouting(err)
	}

	sc := cfg.ServerConfig()
	if address != "" {
		sc.Address = address
	}

	opts := []server.Option{server.WithLogger(logger)}
	var registry *prometheus.Registry
	if cfg.Metrics.Enabled || metricsAddress != "" {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics := middleware.NewMetrics(
			middleware.WithNamespace(cfg.Metrics.Namespace),
			middleware.WithRegistry(registry),
		)
		var gatherer prometheus.Gatherer = registry
		if metricsAddress != "" {
			gatherer = nil
		}
		opts = append(opts, server.WithMetrics(metrics, gatherer))
	}
	if tracing {
		opts = append(opts, server.WithRouterOptions(router.WithMiddleware(middleware.OpenTelemetry())))
	}

	srv, err := server.New(manifest, sc, opts...)
	if err != nil {
		return naverrors.New("E401").WithDetail(err.Error()).Wrap(err)
	}

	success(cmd.OutOrStdout(), "Serving %d routes on %s", len(cfg.Routes), sc.Address)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if metricsAddress != "" {
		g.Go(func() error {
			return serveMetrics(gctx, metricsAddress, registry, sc.MetricsPath)
		})
		info(cmd.OutOrStdout(), "Metrics on %s%s", metricsAddress, sc.MetricsPath)
	}

	if err := g.Wait(); err != nil {
		return naverrors.New("E401").WithDetail(err.Error()).Wrap(err)
	}
	return nil
}

// serveMetrics serves the registry on its own listener until ctx ends.
func serveMetrics(ctx context.Context, address string, registry *prometheus.Registry, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	hs := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	}
}
