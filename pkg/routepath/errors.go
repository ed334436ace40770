package routepath

import (
	"errors"
	"fmt"
)

// Template errors.
var (
	ErrMalformedTemplate = errors.New("malformed path template")
	ErrMissingParam      = errors.New("missing path parameter")
)

// Location errors.
var (
	ErrInvalidPath          = errors.New("invalid path")
	ErrBackslashInPath      = errors.New("path contains backslash")
	ErrNullByteInPath       = errors.New("path contains null byte")
	ErrInvalidPercentEscape = errors.New("invalid percent escape sequence")
	ErrInvalidQuery         = errors.New("invalid query string")
)

// TemplateError reports why a template failed to compile.
type TemplateError struct {
	Template string
	Reason   string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrMalformedTemplate, e.Template, e.Reason)
}

// Is reports whether target is ErrMalformedTemplate.
func (e *TemplateError) Is(target error) bool {
	return target == ErrMalformedTemplate
}

// MissingParamError is returned by Build when a named segment has no value.
type MissingParamError struct {
	Template string
	Name     string
}

func (e *MissingParamError) Error() string {
	return fmt.Sprintf("%s %q for template %q", ErrMissingParam, e.Name, e.Template)
}

// Is reports whether target is ErrMissingParam.
func (e *MissingParamError) Is(target error) bool {
	return target == ErrMissingParam
}
