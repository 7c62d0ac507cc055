package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/position-relay/internal/broker"
	"github.com/rickgao/position-relay/internal/config"
	"github.com/rickgao/position-relay/internal/connection"
	"github.com/rickgao/position-relay/internal/database"
	"github.com/rickgao/position-relay/internal/journal"
	"github.com/rickgao/position-relay/internal/logging"
	"github.com/rickgao/position-relay/internal/metrics"
	"github.com/rickgao/position-relay/internal/store"
	"github.com/rickgao/position-relay/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/relay.example.yaml", "path to config file")
	flag.Parse()

	if version.Binary == "" {
		version.Binary = "relay"
	}

	// Bootstrap logger until config is loaded
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		slog.Error("failed to set up logging", "error", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	logger = logger.With("instance_id", cfg.Instance.ID)
	slog.SetDefault(logger)

	logger.Info("starting relay",
		"build", version.String(),
		"config", *configPath,
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

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("relay failed", "error", err)
		os.Exit(1)
	}
	logger.Info("relay stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg, metrics.DefaultNamespace)

	opts := []broker.Option{
		broker.WithLogger(logger),
		broker.WithMetrics(m),
	}

	// Optional audit journal
	var db pinger
	if cfg.Journal.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Timescale.Host,
			"port", cfg.Database.Timescale.Port,
			"database", cfg.Database.Timescale.Name,
		)

		pool, err := database.Connect(ctx, cfg.Database.Timescale)
		if err != nil {
			return fmt.Errorf("connect timescale: %w", err)
		}
		defer pool.Close()
		db = pool

		if err := journal.EnsureSchema(ctx, pool); err != nil {
			return err
		}

		jw := journal.NewWriter(journal.Config{
			BatchSize:     cfg.Journal.BatchSize,
			FlushInterval: cfg.Journal.FlushInterval,
			BufferSize:    cfg.Journal.BufferSize,
		}, pool, m, logger)
		if err := jw.Start(ctx); err != nil {
			return fmt.Errorf("start journal: %w", err)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			jw.Stop(stopCtx)
		}()

		opts = append(opts, broker.WithRecorder(jw))
	}

	b := broker.New(brokerConfig(cfg), store.New(), opts...)

	opsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           createOpsHandler(b, db, reg, cfg.Metrics.Path),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return b.ListenAndServe(gctx)
	})

	g.Go(func() error {
		logger.Info("starting ops server", "port", cfg.Metrics.Port, "metrics_path", cfg.Metrics.Path)
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return opsServer.Shutdown(shutdownCtx)
	})

	logger.Info("relay running",
		"listen_addr", cfg.Listener.Addr(),
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	return g.Wait()
}

func brokerConfig(cfg *config.Config) broker.Config {
	return broker.Config{
		Addr:              cfg.Listener.Addr(),
		Path:              cfg.Listener.Path,
		ReadBufferSize:    cfg.Listener.ReadBufferSize,
		WriteBufferSize:   cfg.Listener.WriteBufferSize,
		MaxFrameSize:      cfg.Listener.MaxFrameSize,
		EvictOnDisconnect: cfg.Store.EvictOnDisconnect,
		ShutdownTimeout:   cfg.Listener.ShutdownTimeout,
		Session: connection.SessionConfig{
			WriteTimeout:  cfg.Session.WriteTimeout,
			QueueCapacity: cfg.Session.QueueCapacity,
		},
	}
}
