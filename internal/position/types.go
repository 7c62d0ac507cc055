package position

import "maps"

// Frame bounds.
const (
	MinSymbolLength = 3
	MaxSymbolLength = 8

	// NetPositionSize is the width of the trailing double in a position frame.
	NetPositionSize = 8

	// QualifierSeparator joins a symbol and the originating client id on broadcast.
	QualifierSeparator = '.'
)

// SymbolPosition is the net position a client holds in one symbol.
type SymbolPosition struct {
	Symbol      string  // Bare ("BTC") or qualified ("BTC.alice")
	NetPosition float64 // Signed net quantity
}

// Qualify returns a copy whose symbol carries the originating client id.
func (p SymbolPosition) Qualify(clientID string) SymbolPosition {
	return SymbolPosition{
		Symbol:      p.Symbol + string(QualifierSeparator) + clientID,
		NetPosition: p.NetPosition,
	}
}

// ClientPosition is the full snapshot of one participant's positions.
type ClientPosition struct {
	ClientID  string
	Positions map[string]SymbolPosition // symbol → last received position
}

// NewClientPosition creates an empty snapshot for clientID.
func NewClientPosition(clientID string) *ClientPosition {
	return &ClientPosition{
		ClientID:  clientID,
		Positions: make(map[string]SymbolPosition),
	}
}

// Set records p, replacing any earlier position for the same symbol.
func (c *ClientPosition) Set(p SymbolPosition) {
	if c.Positions == nil {
		c.Positions = make(map[string]SymbolPosition)
	}
	c.Positions[p.Symbol] = p
}

// Clone returns a deep copy safe to hand to other goroutines.
func (c *ClientPosition) Clone() ClientPosition {
	out := ClientPosition{
		ClientID:  c.ClientID,
		Positions: make(map[string]SymbolPosition, len(c.Positions)),
	}
	maps.Copy(out.Positions, c.Positions)
	return out
}
