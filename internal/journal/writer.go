package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rickgao/position-relay/internal/buffer"
	"github.com/rickgao/position-relay/internal/metrics"
	"github.com/rickgao/position-relay/internal/position"
)

// Writer consumes journal entries and writes them to position_updates.
type Writer struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	input *buffer.GrowableBuffer[Entry]

	// Database
	db DB

	// Batching
	batch       []row
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	consumed chan struct{}

	stats Stats
}

// NewWriter creates a Writer. db may be nil in tests; batches then fail and are counted.
func NewWriter(cfg Config, db DB, m *metrics.Metrics, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	return &Writer{
		cfg:     cfg,
		db:      db,
		metrics: m,
		logger:  logger.With("component", "journal"),
		input:   buffer.NewGrowableBuffer[Entry](cfg.BufferSize),
		batch:   make([]row, 0, cfg.BatchSize),
	}
}

// Record queues an accepted position. It never blocks the caller.
func (w *Writer) Record(endpoint, clientID string, pos position.SymbolPosition, receivedAt time.Time) {
	entry := Entry{
		ID:          uuid.New(),
		ReceivedAt:  receivedAt,
		Endpoint:    endpoint,
		ClientID:    clientID,
		Symbol:      pos.Symbol,
		NetPosition: pos.NetPosition,
	}
	if !w.input.Send(entry) {
		w.batchMu.Lock()
		w.stats.Dropped++
		w.batchMu.Unlock()
	}
}

// Start begins consuming entries and writing to the database.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)
	w.consumed = make(chan struct{})

	// Consumer goroutine
	go w.consumeLoop()

	// Flush ticker goroutine
	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("journal writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop closes the input, waits for the loops, and writes whatever is left
// using ctx for the final insert.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping journal writer")

	w.input.Close()

	// The consumer drains what was queued before Close.
	if w.consumed != nil {
		select {
		case <-w.consumed:
		case <-ctx.Done():
			w.logger.Warn("journal writer stop timed out")
		}
	}

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("journal writer stopped")
	case <-ctx.Done():
		w.logger.Warn("journal writer stop timed out")
	}

	// Final flush
	for _, e := range w.input.DrainTo(0) {
		w.add(e)
	}
	w.flush(ctx)

	return nil
}

// Stats returns current counters.
func (w *Writer) Stats() Stats {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.stats
}

// Pending returns entries queued but not yet batched.
func (w *Writer) Pending() int {
	return w.input.Len()
}

// consumeLoop reads from the input buffer and accumulates batches until the
// buffer is closed and empty.
func (w *Writer) consumeLoop() {
	defer close(w.consumed)

	for {
		entry, ok := w.input.Receive()
		if !ok {
			return
		}

		// Once the parent context is gone, full batches wait for the final flush in Stop.
		if w.add(entry) && w.ctx.Err() == nil {
			w.flush(w.ctx)
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *Writer) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

// add appends entry to the batch and reports whether the batch is full.
func (w *Writer) add(e Entry) bool {
	r := transform(e)

	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batch = append(w.batch, r)
	return len(w.batch) >= w.cfg.BatchSize
}

func transform(e Entry) row {
	return row{
		ID:          e.ID,
		ReceivedAt:  e.ReceivedAt.UnixMicro(),
		Endpoint:    e.Endpoint,
		ClientID:    e.ClientID,
		Symbol:      e.Symbol,
		NetPosition: e.NetPosition,
	}
}

// flush writes the current batch to the database.
func (w *Writer) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]row, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.stats.Errors++
		w.batchMu.Unlock()
		w.metrics.JournalRows("failed", len(batch))
		return
	}

	w.batchMu.Lock()
	w.stats.Inserts += int64(len(batch) - conflicts)
	w.stats.Conflicts += int64(conflicts)
	w.stats.Flushes++
	w.batchMu.Unlock()
	w.metrics.JournalRows("inserted", len(batch)-conflicts)

	w.logger.Debug("flushed position updates",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *Writer) batchInsert(ctx context.Context, rows []row) (conflicts int, err error) {
	if w.db == nil {
		return 0, errNoDatabase
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertSQL, r.ID, r.ReceivedAt, r.Endpoint, r.ClientID, r.Symbol, r.NetPosition)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
