package main

import (
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vango-dev/navrouter/internal/errors"
	"github.com/vango-dev/navrouter/pkg/routepath"
)

func matchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "match <template> <path>",
		Short: "Match a path against a template",
		Long: `Match a path against a route template and print the extracted params,
one name=value per line. Literal segments match case-sensitively and the
segment counts must be equal.

Examples:
  navrouter match /posts/:postId /posts/42
  navrouter match /users/:id/edit /users/7/edit`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl, err := routepath.Compile(args[0])
			if err != nil {
				return errors.FromRouting(err)
			}
			params, ok := tmpl.Match(args[1])
			if !ok {
				return errors.Newf(errors.CategoryRouting, "%q does not match %q", args[1], args[0])
			}
			for _, name := range slices.Sorted(maps.Keys(params)) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", name, params[name])
			}
			return nil
		},
	}
}

func buildCmd() *cobra.Command {
	var query []string

	cmd := &cobra.Command{
		Use:   "build <template> [name=value...]",
		Short: "Build a path from a template",
		Long: `Build a path by substituting params into a route template. Every
parameter of the template needs a value; extra params are ignored.

Examples:
  navrouter build /posts/:postId postId=42
  navrouter build /search --query q=go --query page=2`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args[1:])
			if err != nil {
				return err
			}
			values, err := parseQuery(query)
			if err != nil {
				return err
			}
			path, err := routepath.Build(args[0], params, values)
			if err != nil {
				return errors.FromRouting(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&query, "query", "q", nil, "Query parameter name=value (repeatable)")
	return cmd
}

// parseParams parses name=value arguments. A later value for a name
// replaces an earlier one.
func parseParams(args []string) (routepath.Params, error) {
	params := make(routepath.Params, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, errors.New("E400").WithDetail(fmt.Sprintf("%q", arg))
		}
		params[name] = value
	}
	return params, nil
}

// parseQuery parses repeated name=value flags, keeping every value.
func parseQuery(args []string) (url.Values, error) {
	if len(args) == 0 {
		return nil, nil
	}
	values := make(url.Values, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, errors.New("E400").WithDetail(fmt.Sprintf("query %q", arg))
		}
		values.Add(name, value)
	}
	return values, nil
}
