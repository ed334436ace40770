package protocol

import (
	"encoding/json"
	"fmt"
)

// MessageType identifies a message.
type MessageType string

const (
	// Client → Server
	TypeHello    MessageType = "hello"
	TypePop      MessageType = "pop"
	TypeAck      MessageType = "ack"
	TypeNavigate MessageType = "navigate"
	TypePing     MessageType = "ping"

	// Server → Client
	TypeWelcome MessageType = "welcome"
	TypePush    MessageType = "push"
	TypeReplace MessageType = "replace"
	TypeState   MessageType = "state"
	TypeError   MessageType = "error"
	TypePong    MessageType = "pong"
)

// FromClient reports whether clients may send messages of this type.
func (t MessageType) FromClient() bool {
	switch t {
	case TypeHello, TypePop, TypeAck, TypeNavigate, TypePing:
		return true
	default:
		return false
	}
}

// Message is a single frame. Only the fields of its type are set.
type Message struct {
	Type MessageType `json:"type"`

	// Seq numbers push/replace frames and their acks.
	Seq uint64 `json:"seq,omitempty"`

	// Path is a location: hello, pop, push, replace, state.
	Path string `json:"path,omitempty"`

	// Route, Params, Query and Replace describe a navigate request.
	Route   string              `json:"route,omitempty"`
	Params  map[string]string   `json:"params,omitempty"`
	Query   map[string][]string `json:"query,omitempty"`
	Replace bool                `json:"replace,omitempty"`

	// Session is the session ID of a welcome.
	Session string `json:"session,omitempty"`

	// Routes is the declared route set after a pass.
	Routes []RouteState `json:"routes,omitempty"`

	Error *ErrorMessage `json:"error,omitempty"`
}

// RouteState is one declared route as reported in a state message.
type RouteState struct {
	Name     string            `json:"name"`
	Template string            `json:"template"`
	Opened   bool              `json:"opened"`
	Params   map[string]string `json:"params,omitempty"`
}

// Hello creates a hello message.
func Hello(path string) *Message { return &Message{Type: TypeHello, Path: path} }

// Pop creates a pop message.
func Pop(path string) *Message { return &Message{Type: TypePop, Path: path} }

// Ack creates an ack message.
func Ack(seq uint64) *Message { return &Message{Type: TypeAck, Seq: seq} }

// Navigate creates a navigate message.
func Navigate(route string, params map[string]string, query map[string][]string, replace bool) *Message {
	return &Message{Type: TypeNavigate, Route: route, Params: params, Query: query, Replace: replace}
}

// Welcome creates a welcome message.
func Welcome(session string) *Message { return &Message{Type: TypeWelcome, Session: session} }

// Push creates a push message.
func Push(seq uint64, path string) *Message { return &Message{Type: TypePush, Seq: seq, Path: path} }

// Replace creates a replace message.
func Replace(seq uint64, path string) *Message {
	return &Message{Type: TypeReplace, Seq: seq, Path: path}
}

// State creates a state message.
func State(path string, routes []RouteState) *Message {
	return &Message{Type: TypeState, Path: path, Routes: routes}
}

// Error creates an error message.
func Error(code ErrorCode, message string, fatal bool) *Message {
	return &Message{Type: TypeError, Error: &ErrorMessage{Code: code, Message: message, Fatal: fatal}}
}

// Encode marshals m.
func Encode(m *Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// Decode unmarshals and validates a frame.
func Decode(data []byte) (*Message, error) {
	if len(data) > MaxMessageSize {
		return nil, ErrMessageTooLarge
	}
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("protocol: decode: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that the fields m's type requires are present and within
// limits.
func (m *Message) Validate() error {
	switch m.Type {
	case TypeHello, TypePop, TypePush, TypeReplace, TypeState:
		if m.Path == "" {
			return &FieldError{Type: m.Type, Field: "path"}
		}
	case TypeAck:
		if m.Seq == 0 {
			return &FieldError{Type: m.Type, Field: "seq"}
		}
	case TypeNavigate:
		if m.Route == "" {
			return &FieldError{Type: m.Type, Field: "route"}
		}
		if len(m.Params) > MaxParams {
			return ErrTooManyParams
		}
	case TypeWelcome:
		if m.Session == "" {
			return &FieldError{Type: m.Type, Field: "session"}
		}
	case TypeError:
		if m.Error == nil {
			return &FieldError{Type: m.Type, Field: "error"}
		}
	case TypePing, TypePong:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}

	if len(m.Path) > MaxPathLength {
		return ErrPathTooLong
	}
	if (m.Type == TypePush || m.Type == TypeReplace) && m.Seq == 0 {
		return &FieldError{Type: m.Type, Field: "seq"}
	}
	return nil
}
