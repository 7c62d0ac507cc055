// Package database provides the TimescaleDB connection pool used by the
// position journal.
package database
