// Package buffer provides an unbounded FIFO used for per-connection write queues
// and the journal input.
package buffer
