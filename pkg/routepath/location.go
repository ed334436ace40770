package routepath

import (
	"net/url"
	"strings"
)

// Location is a parsed navigation target: a path plus its query.
type Location struct {
	// Path is the path exactly as given (no canonicalization).
	Path string

	// RawQuery is the query string without the leading "?".
	RawQuery string

	// Query is the decoded query.
	Query url.Values
}

// String returns the path with the raw query appended when present.
func (l Location) String() string {
	if l.RawQuery == "" {
		return l.Path
	}
	return l.Path + "?" + l.RawQuery
}

// ParseLocation parses an absolute path with an optional query and fragment.
// The fragment is dropped. The path is not normalized: trailing slashes,
// repeated slashes and dot segments pass through unchanged.
//
// The following inputs are rejected:
//   - relative paths and full URLs ("about", "http://x/", "//x/")
//   - paths containing a backslash or NUL byte (literal or %00)
//   - invalid percent-escapes (%GG, %2)
//   - query strings url.ParseQuery refuses
func ParseLocation(raw string) (Location, error) {
	raw, _, _ = strings.Cut(raw, "#")
	path, rawQuery := SplitPathAndQuery(raw)

	if path == "" {
		path = "/"
	}
	// SECURITY: only same-origin absolute paths.
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") {
		return Location{}, ErrInvalidPath
	}
	if strings.Contains(path, "\\") {
		return Location{}, ErrBackslashInPath
	}
	if strings.Contains(path, "\x00") || strings.Contains(strings.ToUpper(path), "%00") {
		return Location{}, ErrNullByteInPath
	}
	if strings.Contains(path, "%") {
		if err := validatePercentEscapes(path); err != nil {
			return Location{}, err
		}
	}

	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return Location{}, ErrInvalidQuery
	}

	return Location{Path: path, RawQuery: rawQuery, Query: query}, nil
}

// SplitPathAndQuery splits a path into path and query components.
// The query is returned without the leading "?".
func SplitPathAndQuery(input string) (path, query string) {
	path, query, _ = strings.Cut(input, "?")
	return path, query
}

// validatePercentEscapes checks that all percent-escapes are valid.
// Valid escapes are %XX where X is a hex digit (0-9, a-f, A-F).
func validatePercentEscapes(path string) error {
	i := 0
	for i < len(path) {
		if path[i] == '%' {
			if i+2 >= len(path) {
				return ErrInvalidPercentEscape
			}
			if !isHexDigit(path[i+1]) || !isHexDigit(path[i+2]) {
				return ErrInvalidPercentEscape
			}
			i += 3
		} else {
			i++
		}
	}
	return nil
}

// isHexDigit returns true if c is a valid hex digit.
func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
