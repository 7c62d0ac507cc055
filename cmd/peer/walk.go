package main

import (
	"math/rand/v2"

	"github.com/rickgao/position-relay/internal/position"
)

// randomWalk moves each symbol's net position by a uniform step in [-1, 1).
type randomWalk struct {
	symbols []string
	current map[string]float64
	rng     *rand.Rand
}

func newRandomWalk(symbols []string, rng *rand.Rand) *randomWalk {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &randomWalk{
		symbols: symbols,
		current: make(map[string]float64, len(symbols)),
		rng:     rng,
	}
}

// Step advances every symbol once and returns the new positions in symbol order.
func (w *randomWalk) Step() []position.SymbolPosition {
	out := make([]position.SymbolPosition, 0, len(w.symbols))
	for _, s := range w.symbols {
		w.current[s] += w.rng.Float64()*2 - 1
		out = append(out, position.SymbolPosition{Symbol: s, NetPosition: w.current[s]})
	}
	return out
}
