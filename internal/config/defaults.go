package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultListenerPort       = 9002
	DefaultListenerPath       = "/"
	DefaultSocketBufferSize   = 1024
	DefaultMaxFrameSize       = 4096
	DefaultShutdownTimeout    = 10 * time.Second
	DefaultQueueCapacity      = 64
	DefaultPeerURL            = "ws://localhost:9002/"
	DefaultSendInterval       = 1 * time.Second
	DefaultHandshakeTimeout   = 10 * time.Second
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 30 * time.Second
	DefaultBatchSize          = 500
	DefaultFlushInterval      = 1 * time.Second
	DefaultBufferSize         = 10000
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 4
	DefaultMinConns           = 1
	DefaultMetricsPort        = 9090
	DefaultMetricsPath        = "/metrics"
	DefaultLogLevel           = "info"
	DefaultLogMaxSizeMB       = 100
	DefaultLogMaxBackups      = 3
	DefaultLogMaxAgeDays      = 28
)

// DefaultSymbols are reported by the synthetic peer when none are configured.
var DefaultSymbols = []string{"BTC", "ETH"}

func (c *Config) applyDefaults() {
	// Listener defaults
	if c.Listener.Port == 0 {
		c.Listener.Port = DefaultListenerPort
	}
	if c.Listener.Path == "" {
		c.Listener.Path = DefaultListenerPath
	}
	if c.Listener.ReadBufferSize == 0 {
		c.Listener.ReadBufferSize = DefaultSocketBufferSize
	}
	if c.Listener.WriteBufferSize == 0 {
		c.Listener.WriteBufferSize = DefaultSocketBufferSize
	}
	if c.Listener.MaxFrameSize == 0 {
		c.Listener.MaxFrameSize = DefaultMaxFrameSize
	}
	if c.Listener.ShutdownTimeout == 0 {
		c.Listener.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Session defaults
	if c.Session.QueueCapacity == 0 {
		c.Session.QueueCapacity = DefaultQueueCapacity
	}

	// Peer defaults
	if c.Peer.URL == "" {
		c.Peer.URL = DefaultPeerURL
	}
	if len(c.Peer.Symbols) == 0 {
		c.Peer.Symbols = append([]string(nil), DefaultSymbols...)
	}
	if c.Peer.SendInterval == 0 {
		c.Peer.SendInterval = DefaultSendInterval
	}
	if c.Peer.HandshakeTimeout == 0 {
		c.Peer.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Peer.ReconnectBaseDelay == 0 {
		c.Peer.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Peer.ReconnectMaxDelay == 0 {
		c.Peer.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}

	// Journal defaults
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultFlushInterval
	}
	if c.Journal.BufferSize == 0 {
		c.Journal.BufferSize = DefaultBufferSize
	}

	// Database defaults
	applyDBDefaults(&c.Database.Timescale)

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = DefaultLogMaxBackups
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = DefaultLogMaxAgeDays
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

// Default returns a config with every optional field defaulted.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
