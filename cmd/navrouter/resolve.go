package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/vango-dev/navrouter/internal/errors"
	"github.com/vango-dev/navrouter/pkg/history"
	"github.com/vango-dev/navrouter/pkg/protocol"
	"github.com/vango-dev/navrouter/pkg/router"
	"github.com/vango-dev/navrouter/pkg/server"
)

func resolveCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "resolve <path>",
		Short: "Reconcile a path against the manifest",
		Long: `Bind the manifest's routes to an in-memory history positioned at path
and print which routes the reconciliation opened, with their params.

Examples:
  navrouter resolve /posts/42
  navrouter resolve "/search?q=go" --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd.Context(), flags)
			if err != nil {
				return err
			}
			manifest, err := server.NewManifest(cfg.RouteSpecs())
			if err != nil {
				return errors.FromRouting(err)
			}

			mem, err := history.NewMemory(args[0])
			if err != nil {
				return errors.FromRouting(err)
			}
			scope, err := manifest.NewScope(router.WithLogger(logger))
			if err != nil {
				return errors.FromRouting(err)
			}
			defer scope.Close()

			if err := scope.Router.BindSource(cmd.Context(), mem); err != nil {
				return errors.FromRouting(err)
			}
			res, _ := scope.Router.Last()
			states := scope.States(res)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(protocol.State(res.Path, states))
			}
			printStates(out, states)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as a state message")
	return cmd
}

func printStates(w io.Writer, states []protocol.RouteState) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROUTE\tTEMPLATE\tSTATE\tPARAMS")
	for _, st := range states {
		state := "left"
		if st.Opened {
			state = "opened"
		}
		pairs := make([]string, 0, len(st.Params))
		for _, name := range slices.Sorted(maps.Keys(st.Params)) {
			pairs = append(pairs, name+"="+st.Params[name])
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", st.Name, st.Template, state, strings.Join(pairs, " "))
	}
	tw.Flush()
}

func routesCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the manifest's routes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd.Context(), flags)
			if err != nil {
				return err
			}
			manifest, err := server.NewManifest(cfg.RouteSpecs())
			if err != nil {
				return errors.FromRouting(err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tPATH\tPARAMS")
			for i, spec := range manifest.Routes() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", spec.Name, spec.Path, strings.Join(manifest.Params(i), ","))
			}
			return tw.Flush()
		},
	}
}
