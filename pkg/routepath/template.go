package routepath

import (
	"net/url"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Params maps parameter names to the literal segment values they matched.
type Params map[string]string

// Clone returns a copy of p. A nil Params clones to an empty, non-nil map.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// segment is one "/"-separated piece of a template.
type segment struct {
	// literal is the exact text for static segments.
	literal string

	// name is the parameter name (without ":") for named segments.
	name string

	// isParam indicates this is a named segment (:id).
	isParam bool
}

// Template is a compiled path template. It is immutable and safe for
// concurrent use.
type Template struct {
	raw      string
	segments []segment
	names    []string
}

// Compile parses a path template.
func Compile(template string) (*Template, error) {
	if template == "" {
		return nil, &TemplateError{Template: template, Reason: "empty template"}
	}
	if !strings.HasPrefix(template, "/") {
		return nil, &TemplateError{Template: template, Reason: `must start with "/"`}
	}
	if strings.ContainsAny(template, "?#") {
		return nil, &TemplateError{Template: template, Reason: "query and fragment are not allowed"}
	}

	parts := splitSegments(template)
	t := &Template{
		raw:      template,
		segments: make([]segment, 0, len(parts)),
	}
	seen := make(map[string]bool)

	for i, part := range parts {
		// A trailing empty segment is the literal trailing slash; anywhere
		// else it means "//".
		if part == "" && i != len(parts)-1 {
			return nil, &TemplateError{Template: template, Reason: "empty segment"}
		}

		if !strings.HasPrefix(part, ":") {
			t.segments = append(t.segments, segment{literal: part})
			continue
		}

		name := part[1:]
		if name == "" {
			return nil, &TemplateError{Template: template, Reason: "parameter without a name"}
		}
		if !validName(name) {
			return nil, &TemplateError{Template: template, Reason: "invalid parameter name " + strconv.Quote(name)}
		}
		t.segments = append(t.segments, segment{name: name, isParam: true})
		if !seen[name] {
			seen[name] = true
			t.names = append(t.names, name)
		}
	}

	return t, nil
}

// MustCompile is like Compile but panics if the template is malformed.
func MustCompile(template string) *Template {
	t, err := Compile(template)
	if err != nil {
		panic(err)
	}
	return t
}

// String returns the source template.
func (t *Template) String() string {
	return t.raw
}

// Names returns the distinct parameter names in order of first appearance.
func (t *Template) Names() []string {
	return append([]string(nil), t.names...)
}

// Match matches an actual path against the template. On a mismatch the
// returned Params is empty and ok is false.
func (t *Template) Match(path string) (params Params, ok bool) {
	parts := splitSegments(path)
	if len(parts) != len(t.segments) {
		return Params{}, false
	}

	params = make(Params, len(t.names))
	for i, seg := range t.segments {
		actual := parts[i]
		if !seg.isParam {
			if actual != seg.literal {
				return Params{}, false
			}
			continue
		}
		if actual == "" {
			return Params{}, false
		}
		// Repeated names: the later occurrence overwrites.
		params[seg.name] = actual
	}
	return params, true
}

// Build substitutes params into the template and appends the encoded query
// when it is non-empty.
func (t *Template) Build(params Params, query url.Values) (string, error) {
	var b strings.Builder
	b.Grow(len(t.raw))

	for _, seg := range t.segments {
		b.WriteByte('/')
		if !seg.isParam {
			b.WriteString(seg.literal)
			continue
		}
		value, ok := params[seg.name]
		if !ok {
			return "", &MissingParamError{Template: t.raw, Name: seg.name}
		}
		b.WriteString(value)
	}

	if len(query) > 0 {
		b.WriteByte('?')
		b.WriteString(query.Encode())
	}
	return b.String(), nil
}

// compiled caches templates used through the package-level helpers.
var compiled, _ = lru.New[string, *Template](512)

func lookup(template string) (*Template, error) {
	if t, ok := compiled.Get(template); ok {
		return t, nil
	}
	t, err := Compile(template)
	if err != nil {
		return nil, err
	}
	compiled.Add(template, t)
	return t, nil
}

// Match matches actualPath against template. A malformed template never
// matches.
func Match(template, actualPath string) (Params, bool) {
	t, err := lookup(template)
	if err != nil {
		return Params{}, false
	}
	return t.Match(actualPath)
}

// Build builds a literal path from template, params and query.
func Build(template string, params Params, query url.Values) (string, error) {
	t, err := lookup(template)
	if err != nil {
		return "", err
	}
	return t.Build(params, query)
}

// splitSegments splits a path into segments after dropping one leading "/".
// "/" yields a single empty segment.
func splitSegments(path string) []string {
	return strings.Split(strings.TrimPrefix(path, "/"), "/")
}

// validName accepts letters, digits, "_" and "-".
func validName(name string) bool {
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}
