package journal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Entry is one accepted position frame.
type Entry struct {
	ID          uuid.UUID
	ReceivedAt  time.Time
	Endpoint    string // Store key (remote ip:port)
	ClientID    string
	Symbol      string
	NetPosition float64
}

// Config configures the Writer.
type Config struct {
	BatchSize     int           // Rows per insert batch
	FlushInterval time.Duration // Max time a row waits before flush
	BufferSize    int           // Initial input buffer capacity
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		FlushInterval: time.Second,
		BufferSize:    10000,
	}
}

// Stats tracks writer activity.
type Stats struct {
	Inserts   int64
	Conflicts int64
	Errors    int64 // failed batches
	Dropped   int64 // entries recorded after Stop
	Flushes   int64
}

// DB is the subset of *pgxpool.Pool the journal uses.
type DB interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// row is the database representation of an Entry.
type row struct {
	ID          uuid.UUID
	ReceivedAt  int64 // µs since epoch
	Endpoint    string
	ClientID    string
	Symbol      string
	NetPosition float64
}

var errNoDatabase = errors.New("journal has no database")
