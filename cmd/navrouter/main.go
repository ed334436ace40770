package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vango-dev/navrouter/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.PrintError(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	rootCmd := &cobra.Command{
		Use:   "navrouter",
		Short: "Route manifests served to live browser sessions",
		Long: `navrouter keeps a set of declared routes in sync with a navigation
history: every route whose template matches the current path is opened
with its params, and every other route is left.

Commands:
  • serve:   run the session server for a route manifest
  • resolve: reconcile one path against a manifest
  • match:   match a path against a single template
  • build:   build a path from a template and params
  • routes:  list the routes of a manifest`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Configuration file or s3://bucket/key (default: nearest navrouter.yaml)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn or error (default from config)")
	pf.StringVar(&flags.logFormat, "log-format", "", "Log format: text or json (default from config)")

	rootCmd.AddCommand(
		serveCmd(&flags),
		resolveCmd(&flags),
		matchCmd(),
		buildCmd(),
		routesCmd(&flags),
		versionCmd(),
	)
	return rootCmd
}

// newLogger builds the slog logger for the given level and format.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, errors.New("E122").WithDetail(fmt.Sprintf("log level %q", level)).Wrap(err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, errors.New("E122").WithDetail(fmt.Sprintf("log format %q", format))
	}
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}
