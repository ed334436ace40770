package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// resolveArgs parses args the way the root command does and resolves them.
func resolveArgs(t *testing.T, args []string) (benchConfig, error) {
	t.Helper()
	cmd := newRootCmd()
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags(%v): %v", args, err)
	}
	f := cmd.Flags()
	name, _ := f.GetString("profile")
	clients, _ := f.GetInt("clients")
	duration, _ := f.GetDuration("duration")
	rps, _ := f.GetFloat64("rps")
	routes, _ := f.GetInt("routes")
	maxProcs, _ := f.GetInt("max-procs")
	jsonOutput, _ := f.GetString("json")
	return resolveConfig(cmd, name, clients, duration, rps, routes, maxProcs, jsonOutput)
}

func TestResolveConfig(t *testing.T) {
	fast := profiles["fast"]
	standard := profiles["standard"]

	tests := []struct {
		name    string
		args    []string
		want    benchConfig
		wantErr string
	}{
		{
			name: "profile defaults",
			args: []string{"--profile", "fast"},
			want: benchConfig{
				Profile:      "fast",
				Clients:      fast.Clients,
				Duration:     fast.Duration,
				RPS:          fast.RPS,
				Routes:       fast.Routes,
				JSONOutput:   "-",
				EventTimeout: eventTimeout(fast.RPS),
			},
		},
		{
			name: "flag overrides",
			args: []string{"--profile", " Standard ", "--clients", "3", "--routes", "2", "--duration", "1s", "--json", "out.json"},
			want: benchConfig{
				Profile:      "standard",
				Clients:      3,
				Duration:     time.Second,
				RPS:          standard.RPS,
				Routes:       2,
				JSONOutput:   "out.json",
				EventTimeout: eventTimeout(standard.RPS),
			},
		},
		{
			name: "max procs from profile",
			args: []string{"--profile", "stress"},
			want: benchConfig{
				Profile:      "stress",
				Clients:      profiles["stress"].Clients,
				Duration:     profiles["stress"].Duration,
				RPS:          profiles["stress"].RPS,
				Routes:       profiles["stress"].Routes,
				MaxProcs:     4,
				JSONOutput:   "-",
				EventTimeout: eventTimeout(profiles["stress"].RPS),
			},
		},
		{name: "unknown profile", args: []string{"--profile", "huge"}, wantErr: `unknown profile "huge"`},
		{name: "zero clients", args: []string{"--clients", "0"}, wantErr: "--clients must be > 0"},
		{name: "zero routes", args: []string{"--routes", "0"}, wantErr: "--routes must be > 0"},
		{name: "negative rps", args: []string{"--rps=-1"}, wantErr: "--rps must be > 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveArgs(t, tt.args)
			if tt.wantErr != "" {
				if err == nil || err.Error() != tt.wantErr {
					t.Fatalf("error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveConfig: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEventTimeout(t *testing.T) {
	tests := []struct {
		rps  float64
		want time.Duration
	}{
		{rps: 10, want: 2 * time.Second},
		{rps: 1, want: 10 * time.Second},
		{rps: 0.5, want: 20 * time.Second},
	}
	for _, tt := range tests {
		if got := eventTimeout(tt.rps); got != tt.want {
			t.Errorf("eventTimeout(%v) = %v, want %v", tt.rps, got, tt.want)
		}
	}
}

func TestPercentile(t *testing.T) {
	sorted := make([]time.Duration, 100)
	for i := range sorted {
		sorted[i] = time.Duration(i+1) * time.Millisecond
	}

	tests := []struct {
		p    float64
		want time.Duration
	}{
		{p: 0, want: time.Millisecond},
		{p: 0.5, want: 50 * time.Millisecond},
		{p: 0.95, want: 95 * time.Millisecond},
		{p: 0.99, want: 99 * time.Millisecond},
		{p: 1, want: 100 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := percentile(sorted, tt.p); got != tt.want {
			t.Errorf("percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if got := percentile(nil, 0.5); got != 0 {
		t.Errorf("percentile(nil) = %v, want 0", got)
	}
}

func TestBenchManifest(t *testing.T) {
	m, err := benchManifest(3)
	if err != nil {
		t.Fatalf("benchManifest: %v", err)
	}
	var names []string
	for _, r := range m.Routes() {
		names = append(names, r.Name+" "+r.Path)
	}
	want := []string{"home /", "item0 /items0/:id", "item1 /items1/:id", "item2 /items2/:id"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("routes mismatch (-want +got):\n%s", diff)
	}
}

func TestRunShortBenchmark(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping benchmark run in short mode")
	}

	out := filepath.Join(t.TempDir(), "report.json")
	cfg := benchConfig{
		Profile:      "test",
		Clients:      2,
		Duration:     300 * time.Millisecond,
		RPS:          50,
		Routes:       2,
		JSONOutput:   out,
		EventTimeout: eventTimeout(50),
	}

	var summary bytes.Buffer
	if err := run(context.Background(), cfg, &summary); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(summary.String(), "=== navrouter session benchmark ===") {
		t.Errorf("summary missing header:\n%s", summary.String())
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var report benchReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Workload.Clients != 2 || report.Workload.Routes != 2 {
		t.Errorf("workload = %+v", report.Workload)
	}
	if report.Throughput.NavigationsTotal == 0 {
		t.Errorf("no navigations completed; errors = %+v", report.Errors)
	}
	if report.Errors.HandshakeFailures != 0 {
		t.Errorf("handshake failures = %d", report.Errors.HandshakeFailures)
	}
}
