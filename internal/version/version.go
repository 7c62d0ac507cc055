// Package version carries build metadata for the relay and peer binaries.
//
// Set at link time, one -X per variable:
//
//	go build -ldflags "-X github.com/rickgao/position-relay/internal/version.Binary=relay \
//	                   -X github.com/rickgao/position-relay/internal/version.Version=$(git describe --tags) \
//	                   -X github.com/rickgao/position-relay/internal/version.Commit=$(git rev-parse --short HEAD)" \
//	         ./cmd/relay
package version

// Product names the project in user agents and logs.
const Product = "position-relay"

var (
	// Binary is the executable name (relay, peer). Empty when not set.
	Binary = ""

	Version = "dev"
	Commit  = "unknown"
)

// String returns "relay dev (unknown)", or "dev (unknown)" without a binary name.
func String() string {
	s := Version + " (" + Commit + ")"
	if Binary != "" {
		s = Binary + " " + s
	}
	return s
}

// UserAgent identifies a peer to the relay, e.g. "position-relay-peer/1.0.0".
func UserAgent() string {
	name := Product
	if Binary != "" {
		name += "-" + Binary
	}
	return name + "/" + Version
}
