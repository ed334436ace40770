// Command navrouter-bench measures live-session navigation round trips:
// each client asks the server to navigate, acks the resulting push and
// waits for the reconciled state.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"runtime"
	"runtime/debug"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"github.com/vango-dev/navrouter/pkg/protocol"
	"github.com/vango-dev/navrouter/pkg/server"
	"golang.org/x/sync/errgroup"
)

type profile struct {
	Name     string
	Clients  int
	Duration time.Duration
	RPS      float64
	Routes   int
	MaxProcs int
}

var profiles = map[string]profile{
	"fast": {
		Name:     "fast",
		Clients:  50,
		Duration: 10 * time.Second,
		RPS:      2,
		Routes:   10,
	},
	"standard": {
		Name:     "standard",
		Clients:  200,
		Duration: 30 * time.Second,
		RPS:      5,
		Routes:   50,
	},
	"stress": {
		Name:     "stress",
		Clients:  500,
		Duration: 60 * time.Second,
		RPS:      10,
		Routes:   200,
		MaxProcs: 4,
	},
}

type benchConfig struct {
	Profile      string
	Clients      int
	Duration     time.Duration
	RPS          float64
	Routes       int
	MaxProcs     int
	JSONOutput   string
	EventTimeout time.Duration
}

type benchCounters struct {
	navigationsSent     atomic.Uint64
	navigationsComplete atomic.Uint64
	bytesSent           atomic.Uint64
	bytesReceived       atomic.Uint64
	stateMessages       atomic.Uint64
}

type benchErrors struct {
	handshakeFailures atomic.Uint64
	writeFailures     atomic.Uint64
	decodeFailures    atomic.Uint64
	serverErrors      atomic.Uint64
	stateMissing      atomic.Uint64
	totalErrors       atomic.Uint64
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		profileName string
		clients     int
		duration    time.Duration
		rps         float64
		routes      int
		maxProcs    int
		jsonOutput  string
	)

	cmd := &cobra.Command{
		Use:   "navrouter-bench",
		Short: "Benchmark live-session navigation",
		Long: `Start an in-process navrouter server and drive it with concurrent
WebSocket clients. Every client loops: navigate to a random item route,
ack the push, wait for the state that reports it opened.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, profileName, clients, duration, rps, routes, maxProcs, jsonOutput)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVar(&profileName, "profile", "standard", "Profile: fast|standard|stress")
	f.IntVar(&clients, "clients", 0, "Concurrent WebSocket clients (default from profile)")
	f.DurationVar(&duration, "duration", 0, "Benchmark duration (default from profile)")
	f.Float64Var(&rps, "rps", 0, "Target navigations/sec per client (default from profile)")
	f.IntVar(&routes, "routes", 0, "Number of declared routes (default from profile)")
	f.IntVar(&maxProcs, "max-procs", -1, "GOMAXPROCS cap (0 to leave unchanged)")
	f.StringVar(&jsonOutput, "json", "-", "JSON output path ('-' for stdout)")

	return cmd
}

func resolveConfig(cmd *cobra.Command, name string, clients int, duration time.Duration, rps float64, routes, maxProcs int, jsonOutput string) (benchConfig, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	base, ok := profiles[name]
	if !ok {
		return benchConfig{}, fmt.Errorf("unknown profile %q", name)
	}

	cfg := benchConfig{
		Profile:    base.Name,
		Clients:    base.Clients,
		Duration:   base.Duration,
		RPS:        base.RPS,
		Routes:     base.Routes,
		MaxProcs:   base.MaxProcs,
		JSONOutput: strings.TrimSpace(jsonOutput),
	}
	if cmd.Flags().Changed("clients") {
		cfg.Clients = clients
	}
	if cmd.Flags().Changed("duration") {
		cfg.Duration = duration
	}
	if cmd.Flags().Changed("rps") {
		cfg.RPS = rps
	}
	if cmd.Flags().Changed("routes") {
		cfg.Routes = routes
	}
	if maxProcs != -1 {
		cfg.MaxProcs = maxProcs
	}
	if cfg.JSONOutput == "" {
		cfg.JSONOutput = "-"
	}

	switch {
	case cfg.Clients <= 0:
		return benchConfig{}, errors.New("--clients must be > 0")
	case cfg.Duration <= 0:
		return benchConfig{}, errors.New("--duration must be > 0")
	case cfg.RPS <= 0:
		return benchConfig{}, errors.New("--rps must be > 0")
	case cfg.Routes <= 0:
		return benchConfig{}, errors.New("--routes must be > 0")
	case cfg.MaxProcs < 0:
		return benchConfig{}, errors.New("--max-procs must be >= 0")
	}

	cfg.EventTimeout = eventTimeout(cfg.RPS)
	return cfg, nil
}

func eventTimeout(rps float64) time.Duration {
	period := time.Duration(float64(time.Second) / rps)
	return max(period*10, 2*time.Second)
}

// benchManifest declares a home route plus n item routes, each with its
// own literal prefix so every navigation opens exactly one route.
func benchManifest(n int) (*server.Manifest, error) {
	specs := []server.RouteSpec{{Name: "home", Path: "/"}}
	for i := range n {
		specs = append(specs, server.RouteSpec{
			Name: "item" + strconv.Itoa(i),
			Path: "/items" + strconv.Itoa(i) + "/:id",
		})
	}
	return server.NewManifest(specs)
}

func run(ctx context.Context, cfg benchConfig, summary io.Writer) error {
	if cfg.MaxProcs > 0 {
		runtime.GOMAXPROCS(cfg.MaxProcs)
	}
	debug.SetGCPercent(100)

	manifest, err := benchManifest(cfg.Routes)
	if err != nil {
		return err
	}
	srv, err := server.New(manifest, &server.ServerConfig{
		MaxSessions: cfg.Clients * 2,
		CheckOrigin: func(r *http.Request) bool { return true },
	}, server.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	httpServer := &http.Server{Handler: srv.Handler()}
	go func() {
		_ = httpServer.Serve(ln)
	}()
	defer func() {
		_ = srv.Shutdown(context.Background())
		_ = httpServer.Shutdown(context.Background())
	}()

	wsURL := "ws://" + ln.Addr().String() + "/ws"

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var (
		samplesMu sync.Mutex
		samples   []time.Duration
		counters  benchCounters
		errCounts benchErrors
	)
	record := func(rtt time.Duration) {
		samplesMu.Lock()
		samples = append(samples, rtt)
		samplesMu.Unlock()
	}

	var before runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	beforeMetrics := readRuntimeMetrics()

	start := time.Now()
	// Client failures are counted, not fatal: the group never cancels.
	var g errgroup.Group
	for i := range cfg.Clients {
		g.Go(func() error {
			if err := runClient(ctx, wsURL, i, cfg, &counters, &errCounts, record); err != nil {
				errCounts.totalErrors.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	elapsed := time.Since(start)

	var after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&after)
	afterMetrics := readRuntimeMetrics()

	latencies := slices.Clone(samples)
	slices.Sort(latencies)

	report := buildReport(cfg, elapsed, latencies, &counters, &errCounts, before, after, beforeMetrics, afterMetrics)
	writeSummary(summary, report)
	return writeJSON(cfg.JSONOutput, report)
}

// benchConn wraps a client connection with byte accounting.
type benchConn struct {
	*websocket.Conn
	counters *benchCounters
}

func (c benchConn) send(msg *protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	c.counters.bytesSent.Add(uint64(len(data)))
	return c.WriteMessage(websocket.TextMessage, data)
}

func (c benchConn) receive() (*protocol.Message, error) {
	_, data, err := c.ReadMessage()
	if err != nil {
		return nil, err
	}
	c.counters.bytesReceived.Add(uint64(len(data)))
	return protocol.Decode(data)
}

func runClient(
	ctx context.Context,
	wsURL string,
	clientID int,
	cfg benchConfig,
	counters *benchCounters,
	errCounts *benchErrors,
	record func(time.Duration),
) error {
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		errCounts.handshakeFailures.Add(1)
		return fmt.Errorf("dial: %w", err)
	}
	defer ws.Close()
	conn := benchConn{Conn: ws, counters: counters}

	if err := conn.send(protocol.Hello("/")); err != nil {
		errCounts.handshakeFailures.Add(1)
		return fmt.Errorf("hello: %w", err)
	}
	for _, want := range []protocol.MessageType{protocol.TypeWelcome, protocol.TypeState} {
		msg, err := conn.receive()
		if err != nil || msg.Type != want {
			errCounts.handshakeFailures.Add(1)
			return fmt.Errorf("handshake: expected %s: %v", want, err)
		}
	}

	period := time.Duration(float64(time.Second) / cfg.RPS)
	var n uint64

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n++
		route := int(n) % cfg.Routes
		id := strconv.Itoa(clientID) + "-" + strconv.FormatUint(n, 36)
		want := "/items" + strconv.Itoa(route) + "/" + id

		start := time.Now()
		nav := protocol.Navigate("item"+strconv.Itoa(route), map[string]string{"id": id}, nil, false)
		if err := conn.send(nav); err != nil {
			errCounts.writeFailures.Add(1)
			return fmt.Errorf("navigate write: %w", err)
		}
		counters.navigationsSent.Add(1)

		conn.SetReadDeadline(time.Now().Add(cfg.EventTimeout))
		if err := awaitState(conn, want, counters, errCounts); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		counters.navigationsComplete.Add(1)
		record(time.Since(start))

		if sleep := period - time.Since(start); sleep > 0 {
			timer := time.NewTimer(sleep)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
	}
}

// awaitState acks pushes until a state for path arrives.
func awaitState(conn benchConn, path string, counters *benchCounters, errCounts *benchErrors) error {
	for {
		msg, err := conn.receive()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				errCounts.stateMissing.Add(1)
				return fmt.Errorf("state for %s not observed", path)
			}
			errCounts.decodeFailures.Add(1)
			return err
		}

		switch msg.Type {
		case protocol.TypePush, protocol.TypeReplace:
			if err := conn.send(protocol.Ack(msg.Seq)); err != nil {
				errCounts.writeFailures.Add(1)
				return fmt.Errorf("ack write: %w", err)
			}
		case protocol.TypeState:
			counters.stateMessages.Add(1)
			if msg.Path == path {
				return nil
			}
		case protocol.TypeError:
			errCounts.serverErrors.Add(1)
			return msg.Error
		}
	}
}
