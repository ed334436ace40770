package protocol

import (
	"errors"
	"fmt"
)

// Decoding errors.
var (
	ErrMessageTooLarge = errors.New("protocol: message too large")
	ErrUnknownType     = errors.New("protocol: unknown message type")
	ErrMissingField    = errors.New("protocol: missing field")
	ErrPathTooLong     = errors.New("protocol: path too long")
	ErrTooManyParams   = errors.New("protocol: too many params")
)

// FieldError reports a required field missing from a message.
type FieldError struct {
	Type  MessageType
	Field string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("protocol: %s message missing %q", e.Type, e.Field)
}

// Is reports ErrMissingField.
func (e *FieldError) Is(target error) bool {
	return target == ErrMissingField
}

// ErrorCode identifies the type of error.
type ErrorCode uint16

const (
	ErrUnknown         ErrorCode = 0x0000 // Unknown error
	ErrInvalidMessage  ErrorCode = 0x0001 // Malformed frame
	ErrUnexpected      ErrorCode = 0x0002 // Valid frame, wrong time (e.g. second hello)
	ErrRouteNotFound   ErrorCode = 0x0003 // navigate names no declared route
	ErrMissingParam    ErrorCode = 0x0004 // navigate lacks a template param
	ErrNavigation      ErrorCode = 0x0005 // navigation failed
	ErrSessionExpired  ErrorCode = 0x0006 // Session no longer valid
	ErrServerError     ErrorCode = 0x0100 // Internal server error
	ErrSessionCapacity ErrorCode = 0x0101 // Too many live sessions
)

// String returns the string representation of the error code.
func (ec ErrorCode) String() string {
	switch ec {
	case ErrUnknown:
		return "Unknown"
	case ErrInvalidMessage:
		return "InvalidMessage"
	case ErrUnexpected:
		return "Unexpected"
	case ErrRouteNotFound:
		return "RouteNotFound"
	case ErrMissingParam:
		return "MissingParam"
	case ErrNavigation:
		return "Navigation"
	case ErrSessionExpired:
		return "SessionExpired"
	case ErrServerError:
		return "ServerError"
	case ErrSessionCapacity:
		return "SessionCapacity"
	default:
		return "Unknown"
	}
}

// MarshalText encodes the code by name.
func (ec ErrorCode) MarshalText() ([]byte, error) {
	return []byte(ec.String()), nil
}

// UnmarshalText decodes a code name; unknown names become ErrUnknown.
func (ec *ErrorCode) UnmarshalText(text []byte) error {
	for _, c := range []ErrorCode{ErrInvalidMessage, ErrUnexpected, ErrRouteNotFound, ErrMissingParam,
		ErrNavigation, ErrSessionExpired, ErrServerError, ErrSessionCapacity} {
		if c.String() == string(text) {
			*ec = c
			return nil
		}
	}
	*ec = ErrUnknown
	return nil
}

// ErrorMessage is sent when an error occurs.
type ErrorMessage struct {
	Code    ErrorCode `json:"code"`    // Error code
	Message string    `json:"message"` // Human-readable error message
	Fatal   bool      `json:"fatal"`   // If true, connection will be closed
}

func (em *ErrorMessage) Error() string {
	return fmt.Sprintf("%s: %s", em.Code, em.Message)
}
