// Package journal writes an append-only audit trail of accepted position frames
// to TimescaleDB.
//
// The journal is write-only. Nothing reads it back, and relay state is never
// restored from it. Rows are batched and inserted with ON CONFLICT DO NOTHING,
// so a retried batch cannot duplicate entries.
package journal
