// Package errors provides coded, actionable errors for navrouter's command
// line and configuration layers.
//
// Every code maps to a registered template with a short message and a
// longer explanation:
//   - config: configuration file errors (E120-E129)
//   - routing: route declaration and navigation errors (E200-E209)
//   - protocol: live session errors (E300-E309)
//   - cli: command usage errors (E400-E409)
//
// Errors from the routing packages are classified with FromRouting:
//
//	err := r.Push(ctx, "/posts/1", nil, nil)
//	if err != nil {
//	    errors.PrintError(errors.FromRouting(err))
//	}
//
// Configuration errors carry the file and line they refer to, and Format
// prints the surrounding lines:
//
//	ERROR E123: Invalid route declaration
//
//	  routes.yaml:4
//
//	       3 │   - name: post
//	     → 4 │     path: /posts/::id
//	       5 │   - name: about
//
//	  Hint: Parameter segments are written ":name"
package errors
