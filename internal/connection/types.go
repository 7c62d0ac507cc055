package connection

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/rickgao/position-relay/internal/position"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrAlreadyClosed = errors.New("already closed")
	ErrSessionClosed = errors.New("session closed")
	ErrMessageType   = errors.New("non-binary message")
)

// Transport is a message-oriented duplex connection. *websocket.Conn satisfies it.
// ReadMessage and WriteMessage may each be called from at most one goroutine at a time.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	RemoteAddr() net.Addr
	Close() error
}

// TransportError wraps a failure of the underlying connection.
type TransportError struct {
	Op  string // accept, dial, handshake, read, write
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// State is the lifecycle stage of a Session.
type State int32

const (
	StateAccepting State = iota
	StateAwaitingHandshake
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAccepting:
		return "accepting"
	case StateAwaitingHandshake:
		return "awaiting_handshake"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Handler receives session events. Calls for one session come from that
// session's read goroutine, in arrival order.
type Handler interface {
	// OnHandshake is called once with the client id from the first frame.
	OnHandshake(s *Session, clientID string)

	// OnPosition is called for every decoded position frame after the handshake.
	OnPosition(s *Session, pos position.SymbolPosition)

	// OnClose is called once when the session stops. err is the first cause.
	OnClose(s *Session, err error)
}

// SessionConfig configures a broker-side session.
type SessionConfig struct {
	WriteTimeout  time.Duration // Per-frame write deadline (0 = none)
	QueueCapacity int           // Initial outbound FIFO capacity
}

// DefaultSessionConfig returns sensible defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		QueueCapacity: 64,
	}
}

// Update is a broadcast position received by a Client.
type Update struct {
	ClientID   string                  // Originating peer
	Position   position.SymbolPosition // Bare symbol
	ReceivedAt time.Time
}

// ClientConfig configures a peer client.
type ClientConfig struct {
	URL              string        // Relay URL (e.g., ws://localhost:9002/)
	ClientID         string        // Sent as the handshake frame
	HandshakeTimeout time.Duration // WebSocket opening handshake timeout
	WriteTimeout     time.Duration // Per-frame write deadline (0 = none)
	QueueCapacity    int           // Initial outbound FIFO capacity
	UpdateBufferSize int           // Updates channel buffer size
	MaxFrameSize     int64         // Read limit (0 = unlimited)
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		QueueCapacity:    64,
		UpdateBufferSize: 1024,
	}
}
