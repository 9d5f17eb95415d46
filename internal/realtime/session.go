// Package realtime serves the interactive web chat over websockets. Every
// connection is a Session bound to one identity; a bound session is also a
// delivery target, so fired reminders are pushed to it.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/claudioaldrian-source/asistente-macla-ia/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 << 10
)

// ErrSessionClosed is returned when delivering to a disconnected session.
var ErrSessionClosed = errors.New("realtime: session closed")

// Envelope is the wire frame in both directions: {"event": ..., "data": ...}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Session is one websocket connection.
type Session struct {
	ID string

	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  atomic.Bool

	mu       sync.RWMutex
	identity string
}

func newSession(id string, conn *websocket.Conn) *Session {
	return &Session{ID: id, conn: conn}
}

// Identity returns the identity currently bound to the session.
func (s *Session) Identity() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

func (s *Session) bind(identity string) (previous string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous, s.identity = s.identity, identity
	return previous
}

// Kind implements dispatch.Target.
func (s *Session) Kind() string { return "web" }

// Closed implements dispatch.Closer.
func (s *Session) Closed() bool { return s.closed.Load() }

// Deliver implements dispatch.Target by pushing the notification frame.
func (s *Session) Deliver(ctx context.Context, n domain.Notification) error {
	return s.emitCtx(ctx, n.Event, n.Data)
}

func (s *Session) emit(event string, data any) error {
	return s.emitCtx(context.Background(), event, data)
}

func (s *Session) emitCtx(ctx context.Context, event string, data any) error {
	if s.Closed() {
		return ErrSessionClosed
	}
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(deadline)
	return s.conn.WriteJSON(outbound{Event: event, Data: data})
}

func (s *Session) ping() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (s *Session) close() {
	if s.closed.CompareAndSwap(false, true) {
		_ = s.conn.Close()
	}
}
