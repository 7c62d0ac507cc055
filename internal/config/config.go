package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the root configuration shared by the relay and peer executables.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	Listener ListenerConfig `yaml:"listener"`
	Session  SessionConfig  `yaml:"session"`
	Store    StoreConfig    `yaml:"store"`
	Peer     PeerConfig     `yaml:"peer"`
	Journal  JournalConfig  `yaml:"journal"`
	Database DatabaseConfig `yaml:"database"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// InstanceConfig identifies this relay.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ListenerConfig holds the WebSocket listener settings.
type ListenerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Path            string        `yaml:"path"`
	ReadBufferSize  int           `yaml:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size"`
	MaxFrameSize    int64         `yaml:"max_frame_size"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns host:port.
func (l ListenerConfig) Addr() string {
	return net.JoinHostPort(l.Host, strconv.Itoa(l.Port))
}

// SessionConfig holds per-connection settings.
type SessionConfig struct {
	WriteTimeout  time.Duration `yaml:"write_timeout"` // 0 = no deadline
	QueueCapacity int           `yaml:"queue_capacity"`
}

// StoreConfig holds position store settings.
type StoreConfig struct {
	EvictOnDisconnect bool `yaml:"evict_on_disconnect"`
}

// PeerConfig holds settings for the synthetic peer.
type PeerConfig struct {
	URL                string        `yaml:"url"`
	ClientID           string        `yaml:"client_id"`
	Symbols            []string      `yaml:"symbols"`
	SendInterval       time.Duration `yaml:"send_interval"`
	HandshakeTimeout   time.Duration `yaml:"handshake_timeout"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	MaxFrameSize       int64         `yaml:"max_frame_size"` // 0 = unlimited
}

// JournalConfig holds the audit journal writer settings.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DatabaseConfig holds the TimescaleDB connection used by the journal.
type DatabaseConfig struct {
	Timescale DBConfig `yaml:"timescale"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds the ops HTTP server settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LoggingConfig holds log level and optional rotating file output.
type LoggingConfig struct {
	Level      string `yaml:"level"` // debug, info, warn, error
	File       string `yaml:"file"`  // empty = stdout only
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}
