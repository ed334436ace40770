package errors

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/vango-dev/navrouter/pkg/router"
	"github.com/vango-dev/navrouter/pkg/routepath"
)

// Category groups error codes.
type Category string

const (
	CategoryConfig   Category = "config"
	CategoryRouting  Category = "routing"
	CategoryProtocol Category = "protocol"
	CategoryCLI      Category = "cli"
)

// Location is a position in a file.
type Location struct {
	File string
	Line int
}

// String returns the location as file:line.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Line > 0 {
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	}
	return l.File
}

// NavError is a coded error with an explanation and a fix suggestion.
type NavError struct {
	// Code is the registered identifier (e.g., "E201").
	Code string

	Category Category

	// Message is a short description of the error.
	Message string

	// Detail explains the specific occurrence.
	Detail string

	// Location is where in a file the error was found, if anywhere.
	Location *Location

	// Context holds the lines around Location.
	Context []string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *NavError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *NavError) Unwrap() error {
	return e.Wrapped
}

// WithLocation points the error at a line of file and loads the lines
// around it.
func (e *NavError) WithLocation(file string, line int) *NavError {
	e.Location = &Location{File: file, Line: line}
	if line > 0 {
		e.Context = readContextLines(file, line, 5)
	}
	return e
}

var lineRe = regexp.MustCompile(`line (\d+)`)

// WithLocationFromError points the error at file, taking the line from a
// parser message such as "yaml: line 4: mapping values are not allowed".
func (e *NavError) WithLocationFromError(file string, err error) *NavError {
	line := 0
	if err != nil {
		if m := lineRe.FindStringSubmatch(err.Error()); m != nil {
			line, _ = strconv.Atoi(m[1])
		}
	}
	return e.WithLocation(file, line)
}

// WithDetail sets the explanation of this occurrence.
func (e *NavError) WithDetail(d string) *NavError {
	e.Detail = d
	return e
}

// WithSuggestion adds a fix suggestion.
func (e *NavError) WithSuggestion(s string) *NavError {
	e.Suggestion = s
	return e
}

// Wrap wraps another error.
func (e *NavError) Wrap(err error) *NavError {
	e.Wrapped = err
	return e
}

func readContextLines(filename string, targetLine, contextSize int) []string {
	file, err := os.Open(filename)
	if err != nil {
		return nil
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	lineNum := 0
	startLine := max(targetLine-contextSize/2, 1)
	endLine := targetLine + contextSize/2

	for scanner.Scan() {
		lineNum++
		if lineNum >= startLine && lineNum <= endLine {
			lines = append(lines, scanner.Text())
		}
		if lineNum > endLine {
			break
		}
	}
	return lines
}

// contextStart is the line number of Context[0].
func (e *NavError) contextStart() int {
	return max(e.Location.Line-5/2, 1)
}

// New creates a NavError from a registered code.
func New(code string) *NavError {
	template, ok := registry[code]
	if !ok {
		return &NavError{Code: code, Message: "Unknown error"}
	}
	return &NavError{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Suggestion: template.Suggestion,
	}
}

// Newf creates an uncoded NavError with a formatted message.
func Newf(category Category, format string, args ...any) *NavError {
	return &NavError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps err under code unless it already is a NavError.
func FromError(err error, code string) *NavError {
	if err == nil {
		return nil
	}
	var ne *NavError
	if stderrors.As(err, &ne) {
		return ne
	}
	return New(code).WithDetail(err.Error()).Wrap(err)
}

// FromRouting classifies an error returned by the router, route path or
// history packages.
func FromRouting(err error) *NavError {
	if err == nil {
		return nil
	}
	var ne *NavError
	if stderrors.As(err, &ne) {
		return ne
	}

	code := "E203"
	switch {
	case stderrors.Is(err, router.ErrNoSourceBound), stderrors.Is(err, router.ErrNilSource):
		code = "E200"
	case stderrors.Is(err, routepath.ErrMissingParam):
		code = "E201"
	case stderrors.Is(err, routepath.ErrMalformedTemplate):
		code = "E202"
	case stderrors.Is(err, router.ErrClosed):
		code = "E204"
	case isInvalidPath(err):
		code = "E205"
	}
	return New(code).WithDetail(err.Error()).Wrap(err)
}

func isInvalidPath(err error) bool {
	for _, target := range []error{
		routepath.ErrInvalidPath,
		routepath.ErrBackslashInPath,
		routepath.ErrNullByteInPath,
		routepath.ErrInvalidPercentEscape,
		routepath.ErrInvalidQuery,
	} {
		if stderrors.Is(err, target) {
			return true
		}
	}
	return false
}
