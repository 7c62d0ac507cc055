package broker

import (
	"log/slog"
	"time"

	"github.com/rickgao/position-relay/internal/connection"
	"github.com/rickgao/position-relay/internal/metrics"
	"github.com/rickgao/position-relay/internal/position"
)

// Config configures the Broker.
type Config struct {
	Addr              string        // Listen address (e.g., ":9002")
	Path              string        // WebSocket upgrade path
	ReadBufferSize    int           // Upgrader read buffer
	WriteBufferSize   int           // Upgrader write buffer
	MaxFrameSize      int64         // Per-frame read limit (0 = unlimited)
	EvictOnDisconnect bool          // Remove the store entry when a session closes
	ShutdownTimeout   time.Duration // Bound on graceful shutdown in ListenAndServe
	Session           connection.SessionConfig
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            ":9002",
		Path:            "/",
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		MaxFrameSize:    4096,
		ShutdownTimeout: 10 * time.Second,
		Session:         connection.DefaultSessionConfig(),
	}
}

// Recorder receives every accepted position frame.
type Recorder interface {
	Record(endpoint, clientID string, pos position.SymbolPosition, receivedAt time.Time)
}

// Option configures a Broker.
type Option func(*Broker)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broker) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Broker) {
		b.metrics = m
	}
}

// WithRecorder sets the journal sink.
func WithRecorder(r Recorder) Option {
	return func(b *Broker) {
		b.recorder = r
	}
}
