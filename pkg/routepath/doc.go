// Package routepath converts between path templates and literal URL paths.
//
// A template is an absolute, "/"-separated pattern whose segments are either
// literal text or named parameters:
//
//	/posts/:postId
//	/users/:userId/settings
//
// Matching splits the template and the actual path into segments. The
// segment counts must be equal, literal segments must be equal byte for
// byte, and each named segment captures the corresponding actual segment
// verbatim. There is no wildcard segment and no trailing-slash folding:
// "/posts/" and "/posts" are different paths.
//
//	t := routepath.MustCompile("/posts/:postId")
//	params, ok := t.Match("/posts/42")   // {"postId": "42"}, true
//	path, err := t.Build(params, nil)    // "/posts/42"
//
// A name may appear more than once in a template. Matching then keeps the
// value of the last occurrence.
//
// Templates are validated by Compile. Malformed templates (empty names, "::",
// empty interior segments, query or fragment characters) are rejected with
// ErrMalformedTemplate so routers can refuse them at declaration time.
package routepath
