// Package position defines the position records exchanged between peers and the
// broker, and the binary frame codec used on the wire.
//
// Frame layout:
//   - Handshake frame: raw client id bytes (first frame only, never decoded here)
//   - Position frame: symbol bytes followed by 8 bytes of the IEEE-754 double,
//     in host-native byte order
//
// Conventions:
//   - Bare symbols are 3-8 bytes (MinSymbolLength..MaxSymbolLength)
//   - Broadcast frames carry a qualified symbol "<symbol>.<client_id>" and are unbounded
package position
