// Package connection implements both ends of a relay connection.
//
// A Session is the broker side of one accepted WebSocket:
//   - Reads the peer's client id as the first frame (handshake)
//   - Decodes every later frame as a position and hands it to a Handler
//   - Drains an unbounded outbound FIFO with exactly one writer goroutine
//
// A Client is the peer side. It sends its id first, sends bare position
// frames, and mirrors qualified broadcasts from every other peer.
package connection
