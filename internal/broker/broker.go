package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rickgao/position-relay/internal/connection"
	"github.com/rickgao/position-relay/internal/metrics"
	"github.com/rickgao/position-relay/internal/position"
	"github.com/rickgao/position-relay/internal/store"
)

// Broker owns the live session set and the position store.
type Broker struct {
	cfg      Config
	store    *store.Store
	logger   *slog.Logger
	metrics  *metrics.Metrics
	recorder Recorder

	upgrader websocket.Upgrader

	// Sessions run under ctx until Shutdown
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	sessions map[uuid.UUID]*connection.Session
	closed   bool
	server   *http.Server
}

// New creates a broker around st.
func New(cfg Config, st *store.Store, opts ...Option) *Broker {
	if st == nil {
		st = store.New()
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Broker{
		cfg:      cfg,
		store:    st,
		logger:   slog.Default(),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[uuid.UUID]*connection.Session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "broker")
	return b
}

// Store returns the broker's position store.
func (b *Broker) Store() *store.Store { return b.store }

// SessionCount returns the number of live sessions.
func (b *Broker) SessionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions)
}

// ServeHTTP upgrades the request to a WebSocket and accepts it.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		b.logger.Warn("upgrade failed",
			"remote_addr", r.RemoteAddr,
			"error", &connection.TransportError{Op: "accept", Err: err},
		)
		return
	}
	if b.cfg.MaxFrameSize > 0 {
		conn.SetReadLimit(b.cfg.MaxFrameSize)
	}

	// The request context ends when ServeHTTP returns, so sessions use the broker's.
	b.Accept(b.ctx, conn)
}

// Accept registers conn as a live session and runs it in its own goroutine.
// Returns nil if the broker is shut down.
func (b *Broker) Accept(ctx context.Context, conn connection.Transport) *connection.Session {
	sess := connection.NewSession(conn, b, b.cfg.Session, b.logger)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		conn.Close()
		return nil
	}
	b.sessions[sess.ID()] = sess
	b.mu.Unlock()

	b.metrics.SessionOpened()
	b.logger.Debug("session accepted", "session_id", sess.ID(), "endpoint", sess.Endpoint())

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		sess.Run(ctx)
		b.unregister(sess)
	}()

	return sess
}

// OnHandshake registers the peer's client id under its endpoint.
func (b *Broker) OnHandshake(s *connection.Session, clientID string) {
	b.metrics.FrameReceived("handshake")
	if clientID == "" {
		b.logger.Warn("empty client id in handshake", "endpoint", s.Endpoint())
	}

	if b.store.Upsert(s.Endpoint(), clientID) {
		b.metrics.SetStoreClients(b.store.Len())
	}
	b.logger.Info("client registered", "client_id", clientID, "endpoint", s.Endpoint())
}

// OnPosition merges pos into the store and broadcasts it to every other peer.
func (b *Broker) OnPosition(s *connection.Session, pos position.SymbolPosition) {
	receivedAt := time.Now()
	b.metrics.FrameReceived("position")

	cp := b.store.Update(s.Endpoint(), pos)
	if cp.ClientID == "" {
		b.logger.Warn("position from unregistered endpoint", "endpoint", s.Endpoint(), "symbol", pos.Symbol)
	}

	if b.recorder != nil {
		b.recorder.Record(s.Endpoint(), cp.ClientID, pos, receivedAt)
	}

	n := b.broadcastUpdate(s.Endpoint(), cp.ClientID, pos)
	b.logger.Debug("position relayed",
		"client_id", cp.ClientID,
		"symbol", pos.Symbol,
		"net_position", pos.NetPosition,
		"recipients", n,
	)
}

// OnClose drops the session from the live set, evicting its store entry first
// when configured.
func (b *Broker) OnClose(s *connection.Session, err error) {
	reason := closeReason(err)
	b.metrics.SessionClosed(reason)
	if reason == "frame_length" {
		b.metrics.FrameRejected()
	}

	if b.cfg.EvictOnDisconnect && b.store.Remove(s.Endpoint()) {
		b.metrics.SetStoreClients(b.store.Len())
	}
	b.unregister(s)

	log := b.logger.Info
	if reason == "write" || reason == "frame_length" {
		log = b.logger.Warn
	}
	log("session closed",
		"session_id", s.ID(),
		"endpoint", s.Endpoint(),
		"client_id", s.ClientID(),
		"reason", reason,
		"error", err,
	)
}

// broadcastUpdate qualifies pos with clientID, encodes it once, and enqueues it
// on every live session whose endpoint differs from origin. Returns the number
// of sessions the frame was queued on.
func (b *Broker) broadcastUpdate(origin, clientID string, pos position.SymbolPosition) int {
	frame := position.Encode(pos.Qualify(clientID))

	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, sess := range b.sessions {
		if sess.Endpoint() == origin {
			continue
		}
		if sess.Enqueue(frame) {
			n++
		}
	}
	b.metrics.Broadcast(n)
	return n
}

func (b *Broker) unregister(s *connection.Session) {
	b.mu.Lock()
	delete(b.sessions, s.ID())
	b.mu.Unlock()
}

// ListenAndServe binds cfg.Addr and serves until ctx is cancelled, then shuts
// down within cfg.ShutdownTimeout.
func (b *Broker) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", b.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", b.cfg.Addr, err)
	}
	return b.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (b *Broker) Serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle(b.cfg.Path, b)

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		ln.Close()
		return connection.ErrAlreadyClosed
	}
	b.server = srv
	b.mu.Unlock()

	b.logger.Info("relay listening", "addr", ln.Addr().String(), "path", b.cfg.Path)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
		timeout := b.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return b.Shutdown(shutdownCtx)
	}
}

// Shutdown stops accepting, closes every live session, and waits for their
// goroutines to exit or ctx to expire.
func (b *Broker) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	srv := b.server
	sessions := make([]*connection.Session, 0, len(b.sessions))
	for _, s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.mu.Unlock()

	var errs []error
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}

	// Hijacked connections are not tracked by http.Server
	b.cancel()
	for _, s := range sessions {
		s.Close()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("broker stopped", "sessions_closed", len(sessions))
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}
	return errors.Join(errs...)
}

// closeReason maps a session's terminal error to a metrics label.
func closeReason(err error) string {
	var te *connection.TransportError
	switch {
	case err == nil, errors.Is(err, connection.ErrSessionClosed):
		return "shutdown"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "shutdown"
	case errors.Is(err, position.ErrFrameLength):
		return "frame_length"
	case errors.Is(err, connection.ErrMessageType):
		return "message_type"
	case errors.As(err, &te):
		if te.Op == "write" {
			return "write"
		}
		if errors.Is(te.Err, io.EOF) || websocket.IsCloseError(te.Err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return "peer_closed"
		}
		return te.Op
	default:
		return "unknown"
	}
}
