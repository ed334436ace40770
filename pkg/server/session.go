package server

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/vango-dev/navrouter/pkg/middleware"
	"github.com/vango-dev/navrouter/pkg/protocol"
	"github.com/vango-dev/navrouter/pkg/router"
	"github.com/vango-dev/navrouter/pkg/routepath"
)

// Session is one live WebSocket connection with its own route scope. The
// browser's history is the scope router's navigation source.
type Session struct {
	ID string

	conn    *websocket.Conn
	config  *SessionConfig
	scope   *Scope
	source  *RemoteSource
	clock   clock.Clock
	logger  *slog.Logger
	metrics *middleware.Metrics
	created time.Time

	writeMu    sync.Mutex
	lastActive atomic.Int64
	closed     atomic.Bool
	closeOnce  sync.Once
	closeErr   error
	onClose    func(*Session)
	onActive   func(id string)
}

// LastActive returns when the client last sent a message.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// Scope returns the session's route scope.
func (s *Session) Scope() *Scope {
	return s.scope
}

// Source returns the session's remote navigation source.
func (s *Session) Source() *RemoteSource {
	return s.source
}

// IsClosed reports whether the session has been closed.
func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

func (s *Session) touch() {
	s.lastActive.Store(s.clock.Now().UnixNano())
	if s.onActive != nil {
		s.onActive(s.ID)
	}
}

// ReadLoop continuously reads messages from the WebSocket connection.
// It blocks until the connection is closed or an error occurs, then closes
// the session.
func (s *Session) ReadLoop() {
	defer s.Close()

	for {
		s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) && !s.closed.Load() {
				s.logger.Error("read error", "error", err)
				s.metrics.WebSocketError("read")
			}
			return
		}
		s.touch()

		msg, err := protocol.Decode(data)
		if err != nil {
			s.logger.Warn("message decode error", "error", err)
			s.sendError(protocol.ErrInvalidMessage, err.Error(), false)
			continue
		}
		s.handle(msg)
	}
}

func (s *Session) handle(msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypePop:
		if err := s.source.Pop(msg.Path); err != nil {
			s.sendError(protocol.ErrInvalidMessage, err.Error(), false)
		}

	case protocol.TypeAck:
		if err := s.source.Ack(msg.Seq); err != nil {
			s.logger.Debug("ack ignored", "seq", msg.Seq, "error", err)
		}

	case protocol.TypeNavigate:
		s.navigate(msg)

	case protocol.TypePing:
		_ = s.send(&protocol.Message{Type: protocol.TypePong})

	default:
		s.sendError(protocol.ErrUnexpected, "unexpected "+string(msg.Type)+" message", false)
	}
}

// navigate turns a client navigate message into a route navigate request.
// Replace requests bypass the route since route requests always push.
func (s *Session) navigate(msg *protocol.Message) {
	rt, ok := s.scope.Route(msg.Route)
	if !ok {
		s.sendError(protocol.ErrRouteNotFound, "no route named "+msg.Route, false)
		return
	}
	params := routepath.Params(msg.Params)

	if !msg.Replace {
		rt.Navigate(params, msg.Query)
		return
	}
	spec, _ := s.scope.Spec(msg.Route)
	path, err := routepath.Build(spec.Path, params, msg.Query)
	if err != nil {
		s.reportError(err)
		return
	}
	s.scope.Router.Go(path, router.WithReplace(), router.WithParams(params))
}

// sendState reports a reconciliation pass to the browser. It runs on the
// router's event loop.
func (s *Session) sendState(res router.Result) {
	msg := protocol.State(res.Path, s.scope.States(res))
	if len(res.Query) > 0 {
		msg.Query = res.Query
	}
	if err := s.send(msg); err != nil && !errors.Is(err, ErrSessionClosed) {
		s.logger.Warn("state send failed", "error", err)
	}
}

// reportError forwards a failed navigation to the browser.
func (s *Session) reportError(err error) {
	switch {
	case errors.Is(err, ErrSessionClosed), errors.Is(err, router.ErrClosed):
		return
	case errors.Is(err, routepath.ErrMissingParam):
		s.sendError(protocol.ErrMissingParam, err.Error(), false)
	default:
		s.sendError(protocol.ErrNavigation, err.Error(), false)
	}
}

func (s *Session) sendError(code protocol.ErrorCode, message string, fatal bool) {
	if err := s.send(protocol.Error(code, message, fatal)); err != nil && !errors.Is(err, ErrSessionClosed) {
		s.logger.Warn("error send failed", "code", code, "error", err)
	}
}

// send writes one message. Writes are serialized; the router loop and the
// read loop both send.
func (s *Session) send(msg *protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed.Load() {
		return ErrSessionClosed
	}
	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.metrics.WebSocketError("write")
		return &SessionError{SessionID: s.ID, Op: "write " + string(msg.Type), Err: err}
	}
	return nil
}

// Close closes the session normally.
func (s *Session) Close() error {
	return s.CloseWithReason(websocket.CloseNormalClosure, "")
}

// CloseWithReason fails pending navigations, stops the router, sends a close
// frame and closes the connection. Only the first call has an effect.
func (s *Session) CloseWithReason(code int, reason string) error {
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		s.closed.Store(true)
		s.writeMu.Unlock()

		// Unblocks a router loop waiting for an ack.
		s.source.Close()
		s.scope.Close()

		s.writeMu.Lock()
		deadline := time.Now().Add(s.config.WriteTimeout)
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		s.closeErr = s.conn.Close()
		s.writeMu.Unlock()

		if s.onClose != nil {
			s.onClose(s)
		}
		s.metrics.SessionClosed()
		s.logger.Info("session closed",
			"reason", reason,
			"duration", s.clock.Since(s.created))
	})
	return s.closeErr
}
