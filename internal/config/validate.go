package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rickgao/position-relay/internal/position"
)

// Validate checks the sections the relay uses.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Listener.Port < 1 || c.Listener.Port > 65535 {
		return fmt.Errorf("listener.port must be between 1 and 65535, got %d", c.Listener.Port)
	}
	if !strings.HasPrefix(c.Listener.Path, "/") {
		return fmt.Errorf("listener.path must start with /, got %q", c.Listener.Path)
	}
	if minFrame := int64(position.MinSymbolLength + position.NetPositionSize); c.Listener.MaxFrameSize < minFrame {
		return fmt.Errorf("listener.max_frame_size must be >= %d", minFrame)
	}
	if c.Listener.ShutdownTimeout < 0 {
		return errors.New("listener.shutdown_timeout must be >= 0")
	}

	if c.Session.WriteTimeout < 0 {
		return errors.New("session.write_timeout must be >= 0")
	}
	if c.Session.QueueCapacity < 1 {
		return errors.New("session.queue_capacity must be >= 1")
	}

	if c.Journal.Enabled {
		if c.Journal.BatchSize < 1 {
			return errors.New("journal.batch_size must be >= 1")
		}
		if c.Journal.BufferSize < 1 {
			return errors.New("journal.buffer_size must be >= 1")
		}
		if c.Journal.FlushInterval <= 0 {
			return errors.New("journal.flush_interval must be > 0")
		}
		if err := c.Database.Timescale.validate("database.timescale"); err != nil {
			return err
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}
	if c.Metrics.Port == c.Listener.Port {
		return fmt.Errorf("metrics.port must differ from listener.port (%d)", c.Listener.Port)
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}

	return c.Logging.validate()
}

// ValidatePeer checks the sections the synthetic peer uses.
func (c *Config) ValidatePeer() error {
	if c.Peer.URL == "" {
		return errors.New("peer.url is required")
	}
	if !strings.HasPrefix(c.Peer.URL, "ws://") && !strings.HasPrefix(c.Peer.URL, "wss://") {
		return fmt.Errorf("peer.url must be a ws:// or wss:// URL, got %q", c.Peer.URL)
	}
	if c.Peer.ClientID == "" {
		return errors.New("peer.client_id is required")
	}
	for i, s := range c.Peer.Symbols {
		if err := position.Validate(s); err != nil {
			return fmt.Errorf("peer.symbols[%d]: %w", i, err)
		}
	}
	if c.Peer.SendInterval <= 0 {
		return errors.New("peer.send_interval must be > 0")
	}
	if c.Peer.MaxFrameSize < 0 {
		return errors.New("peer.max_frame_size must be >= 0")
	}
	if c.Peer.ReconnectMaxDelay < c.Peer.ReconnectBaseDelay {
		return errors.New("peer.reconnect_max_delay must be >= peer.reconnect_base_delay")
	}

	return c.Logging.validate()
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

func (l *LoggingConfig) validate() error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", l.Level)
	}
	if l.File != "" && l.MaxSizeMB < 1 {
		return errors.New("logging.max_size_mb must be >= 1")
	}
	return nil
}
