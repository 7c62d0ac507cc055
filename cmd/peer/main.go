package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/position-relay/internal/config"
	"github.com/rickgao/position-relay/internal/connection"
	"github.com/rickgao/position-relay/internal/logging"
	"github.com/rickgao/position-relay/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	clientID := flag.String("id", "", "client id sent in the handshake (overrides peer.client_id)")
	url := flag.String("url", "", "relay URL (overrides peer.url)")
	flag.Parse()

	if version.Binary == "" {
		version.Binary = "peer"
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadWithDefaults(*configPath)
		if err != nil {
			logger.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *clientID != "" {
		cfg.Peer.ClientID = *clientID
	}
	if *url != "" {
		cfg.Peer.URL = *url
	}
	if err := cfg.ValidatePeer(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		slog.Error("failed to set up logging", "error", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("starting peer",
		"build", version.String(),
		"client_id", cfg.Peer.ClientID,
		"url", cfg.Peer.URL,
		"symbols", cfg.Peer.Symbols,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	client := connection.NewClient(connection.ClientConfig{
		URL:              cfg.Peer.URL,
		ClientID:         cfg.Peer.ClientID,
		HandshakeTimeout: cfg.Peer.HandshakeTimeout,
		QueueCapacity:    cfg.Session.QueueCapacity,
		UpdateBufferSize: 1024,
		MaxFrameSize:     cfg.Peer.MaxFrameSize,
	}, logger)
	defer client.Close()

	p := &peer{
		client: client,
		walk:   newRandomWalk(cfg.Peer.Symbols, nil),
		cfg:    cfg.Peer,
		logger: logger,
	}
	p.run(ctx)

	logger.Info("peer stopped", "known_peers", len(client.Mirror()))
}

// peer drives a Client with synthetic positions and reconnects when the
// connection drops.
type peer struct {
	client *connection.Client
	walk   *randomWalk
	cfg    config.PeerConfig
	logger *slog.Logger
}

func (p *peer) run(ctx context.Context) {
	if !p.connect(ctx) {
		return
	}

	go p.logUpdates(ctx)

	ticker := time.NewTicker(p.cfg.SendInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-p.client.Errors():
			p.logger.Warn("connection lost", "error", err)
			if !p.connect(ctx) {
				return
			}
		case <-ticker.C:
			for _, pos := range p.walk.Step() {
				if err := p.client.SendPosition(pos.Symbol, pos.NetPosition); err != nil {
					p.logger.Warn("send failed", "symbol", pos.Symbol, "error", err)
					continue
				}
				p.logger.Debug("position sent", "symbol", pos.Symbol, "net_position", pos.NetPosition)
			}
		}
	}
}

// connect dials until it succeeds or ctx is cancelled, backing off exponentially.
func (p *peer) connect(ctx context.Context) bool {
	wait := p.cfg.ReconnectBaseDelay

	for {
		err := p.client.Connect(ctx)
		if err == nil {
			return true
		}

		p.logger.Warn("connect failed", "error", err, "retry_in", wait)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}

		// Exponential backoff
		wait = nextBackoff(wait, p.cfg.ReconnectMaxDelay)
	}
}

func (p *peer) logUpdates(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-p.client.Updates():
			p.logger.Info("position received",
				"from", u.ClientID,
				"symbol", u.Position.Symbol,
				"net_position", u.Position.NetPosition,
			)
		}
	}
}

func nextBackoff(wait, maxWait time.Duration) time.Duration {
	wait *= 2
	if wait > maxWait {
		wait = maxWait
	}
	return wait
}
