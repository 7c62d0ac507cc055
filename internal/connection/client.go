package connection

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/position-relay/internal/position"
	"github.com/rickgao/position-relay/internal/version"
)

// Client is a peer's connection to the relay. It keeps a mirror of the latest
// position every other peer has broadcast.
type Client struct {
	cfg    ClientConfig
	logger *slog.Logger

	// Output channels
	updates chan Update
	errors  chan error
	done    chan struct{}

	// State
	mu        sync.RWMutex
	conn      *websocket.Conn
	writes    *writeQueue
	connected bool
	closed    bool

	mirrorMu sync.RWMutex
	mirror   map[string]*position.ClientPosition // source client id → positions
}

// NewClient creates a peer client. Call Connect before sending.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg:     cfg,
		logger:  logger.With("client_id", cfg.ClientID),
		updates: make(chan Update, cfg.UpdateBufferSize),
		errors:  make(chan error, 1),
		done:    make(chan struct{}),
		mirror:  make(map[string]*position.ClientPosition),
	}
}

// Connect dials the relay and sends the client id as the first frame. Calling it
// again after the connection was lost reconnects; the mirror is kept.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.RLock()
	closed, connected := c.closed, c.connected
	c.mu.RUnlock()
	if closed {
		return ErrAlreadyClosed
	}
	if connected {
		return nil
	}

	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return &TransportError{Op: "dial", Err: err}
	}
	if c.cfg.MaxFrameSize > 0 {
		conn.SetReadLimit(c.cfg.MaxFrameSize)
	}

	writes := newWriteQueue(conn, c.cfg.QueueCapacity, c.cfg.WriteTimeout)
	writes.enqueue([]byte(c.cfg.ClientID))

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrAlreadyClosed
	}
	c.conn = conn
	c.writes = writes
	c.connected = true
	c.mu.Unlock()

	go writes.run(func(err error) { c.fail(conn, err) })
	go c.readLoop(conn)

	c.logger.Info("connected", "url", c.cfg.URL, "local_addr", conn.LocalAddr().String())
	return nil
}

// SendPosition queues a bare position frame for symbol.
func (c *Client) SendPosition(symbol string, netPosition float64) error {
	if err := position.Validate(symbol); err != nil {
		return err
	}

	c.mu.RLock()
	writes, connected := c.writes, c.connected
	c.mu.RUnlock()
	if !connected {
		return ErrNotConnected
	}

	frame := position.Encode(position.SymbolPosition{Symbol: symbol, NetPosition: netPosition})
	if !writes.enqueue(frame) {
		return ErrNotConnected
	}
	return nil
}

// Updates returns broadcasts as they are applied to the mirror. Updates are
// dropped when the channel is full; the mirror is always current.
func (c *Client) Updates() <-chan Update {
	return c.updates
}

// Errors returns the channel of connection-ending errors.
func (c *Client) Errors() <-chan error {
	return c.errors
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Mirror returns a deep copy of every peer's known positions.
func (c *Client) Mirror() map[string]position.ClientPosition {
	c.mirrorMu.RLock()
	defer c.mirrorMu.RUnlock()

	out := make(map[string]position.ClientPosition, len(c.mirror))
	for id, cp := range c.mirror {
		out[id] = cp.Clone()
	}
	return out
}

// Position returns the latest position clientID broadcast for symbol.
func (c *Client) Position(clientID, symbol string) (position.SymbolPosition, bool) {
	c.mirrorMu.RLock()
	defer c.mirrorMu.RUnlock()

	cp, ok := c.mirror[clientID]
	if !ok {
		return position.SymbolPosition{}, false
	}
	p, ok := cp.Positions[symbol]
	return p, ok
}

// Close gracefully closes the connection. Pending frames are dropped.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	conn, writes := c.conn, c.writes
	c.mu.Unlock()

	close(c.done)

	if conn == nil {
		return nil
	}
	writes.close()
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return conn.Close()
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		mt, data, err := conn.ReadMessage()
		receivedAt := time.Now()
		if err != nil {
			c.fail(conn, &TransportError{Op: "read", Err: err})
			return
		}
		if mt != websocket.BinaryMessage {
			c.logger.Warn("discarding frame", "error", ErrMessageType, "type", mt)
			continue
		}

		qualified, err := position.DecodeQualified(data)
		if err != nil {
			c.logger.Warn("discarding frame", "error", err, "length", len(data))
			continue
		}
		pos, source, err := position.SplitQualified(qualified)
		if err != nil {
			c.logger.Warn("discarding frame", "error", err)
			continue
		}

		c.apply(source, pos)
		c.logger.Debug("position received",
			"source", source,
			"symbol", pos.Symbol,
			"net_position", pos.NetPosition,
		)

		select {
		case c.updates <- Update{ClientID: source, Position: pos, ReceivedAt: receivedAt}:
		case <-c.done:
			return
		default:
			c.logger.Warn("update buffer full, dropping update", "source", source)
		}
	}
}

func (c *Client) apply(source string, pos position.SymbolPosition) {
	c.mirrorMu.Lock()
	defer c.mirrorMu.Unlock()

	cp, ok := c.mirror[source]
	if !ok {
		cp = position.NewClientPosition(source)
		c.mirror[source] = cp
	}
	cp.Set(pos)
}

// fail tears down conn after a read or write error. Errors from a connection
// that has already been replaced are ignored.
func (c *Client) fail(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if !c.connected || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.connected = false
	writes := c.writes
	c.mu.Unlock()

	// Ignore errors after Close() is called
	select {
	case <-c.done:
		return
	default:
	}

	c.logger.Warn("connection lost", "error", err)
	writes.close()
	conn.Close()

	select {
	case c.errors <- err:
	default:
	}
}
