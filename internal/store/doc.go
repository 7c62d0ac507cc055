// Package store holds the broker's in-memory view of every participant's positions.
//
// Entries are keyed by the connection's remote endpoint, not the self-declared
// client id, so one peer cannot overwrite another's snapshot by reusing its id.
// Entries outlive their connection unless the broker evicts them explicitly.
package store
