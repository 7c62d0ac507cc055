package connection

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rickgao/position-relay/internal/position"
)

// Session is the broker side of one accepted connection.
type Session struct {
	id       uuid.UUID
	endpoint string
	conn     Transport
	handler  Handler
	logger   *slog.Logger

	writes *writeQueue
	state  atomic.Int32

	mu       sync.RWMutex
	clientID string
	err      error

	closeOnce sync.Once
}

// NewSession wraps an upgraded connection. The session does nothing until Run.
func NewSession(conn Transport, handler Handler, cfg SessionConfig, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	endpoint := ""
	if addr := conn.RemoteAddr(); addr != nil {
		endpoint = addr.String()
	}

	id := uuid.New()
	s := &Session{
		id:       id,
		endpoint: endpoint,
		conn:     conn,
		handler:  handler,
		logger:   logger.With("session_id", id.String(), "endpoint", endpoint),
		writes:   newWriteQueue(conn, cfg.QueueCapacity, cfg.WriteTimeout),
	}
	s.state.Store(int32(StateAccepting))
	return s
}

// ID returns the session's unique id.
func (s *Session) ID() uuid.UUID { return s.id }

// Endpoint returns the remote address the session is keyed by.
func (s *Session) Endpoint() string { return s.endpoint }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// ClientID returns the id received in the handshake, or "" before it.
func (s *Session) ClientID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientID
}

// Err returns the error that closed the session, if any.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Run drives the session until the transport fails, a frame is rejected, or ctx
// is cancelled. It calls handler.OnClose exactly once before returning.
func (s *Session) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateAccepting), int32(StateAwaitingHandshake)) {
		return ErrSessionClosed
	}

	go s.writes.run(s.terminate)

	stop := context.AfterFunc(ctx, func() { s.terminate(ctx.Err()) })
	defer stop()

	s.terminate(s.readLoop())
	<-s.writes.done

	err := s.Err()
	s.handler.OnClose(s, err)
	return err
}

// Enqueue schedules frame for transmission after every frame enqueued before it.
// Returns false if the session is closed.
func (s *Session) Enqueue(frame []byte) bool {
	if s.State() == StateClosed {
		return false
	}
	return s.writes.enqueue(frame)
}

// InFlight reports whether a write is currently in progress.
func (s *Session) InFlight() bool { return s.writes.inFlight.Load() }

// Pending returns the number of frames waiting to be written.
func (s *Session) Pending() int { return s.writes.pending() }

// Close stops the session. Safe to call more than once.
func (s *Session) Close() {
	s.terminate(ErrSessionClosed)
}

func (s *Session) readLoop() error {
	mt, data, err := s.conn.ReadMessage()
	if err != nil {
		return &TransportError{Op: "handshake", Err: err}
	}
	if mt != websocket.BinaryMessage {
		return ErrMessageType
	}

	clientID := string(data)
	s.mu.Lock()
	s.clientID = clientID
	s.mu.Unlock()

	s.handler.OnHandshake(s, clientID)
	if !s.state.CompareAndSwap(int32(StateAwaitingHandshake), int32(StateActive)) {
		return ErrSessionClosed
	}
	s.logger.Debug("handshake complete", "client_id", clientID)

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			return &TransportError{Op: "read", Err: err}
		}
		if mt != websocket.BinaryMessage {
			return ErrMessageType
		}

		pos, err := position.Decode(data)
		if err != nil {
			return err
		}
		s.handler.OnPosition(s, pos)
	}
}

// terminate records the first cause, closes the queue, and closes the transport
// so the read loop unblocks.
func (s *Session) terminate(cause error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.err = cause
		s.mu.Unlock()

		s.state.Store(int32(StateClosed))
		if dropped := s.writes.close(); dropped > 0 {
			s.logger.Debug("dropped pending frames", "count", dropped)
		}
		s.conn.Close()
	})
}
