package position

import (
	"encoding/binary"
	"math"
	"strings"
)

// Encode serializes p as symbol bytes followed by the native-order double.
// The result is len(p.Symbol)+NetPositionSize bytes. Symbol length is not checked
// so that qualified broadcast symbols can be encoded.
func Encode(p SymbolPosition) []byte {
	buf := make([]byte, len(p.Symbol)+NetPositionSize)
	n := copy(buf, p.Symbol)
	binary.NativeEndian.PutUint64(buf[n:], math.Float64bits(p.NetPosition))
	return buf
}

// Decode parses a peer-to-broker position frame carrying a bare symbol.
func Decode(frame []byte) (SymbolPosition, error) {
	if len(frame) < MinSymbolLength+NetPositionSize || len(frame) > MaxSymbolLength+NetPositionSize {
		return SymbolPosition{}, &FrameLengthError{
			Length: len(frame),
			Min:    MinSymbolLength + NetPositionSize,
			Max:    MaxSymbolLength + NetPositionSize,
		}
	}
	return decode(frame), nil
}

// DecodeQualified parses a broker-to-peer broadcast frame. Qualified symbols have
// no upper bound, so only the minimum length is enforced.
func DecodeQualified(frame []byte) (SymbolPosition, error) {
	if len(frame) < MinSymbolLength+NetPositionSize {
		return SymbolPosition{}, &FrameLengthError{
			Length: len(frame),
			Min:    MinSymbolLength + NetPositionSize,
		}
	}
	return decode(frame), nil
}

func decode(frame []byte) SymbolPosition {
	split := len(frame) - NetPositionSize
	return SymbolPosition{
		Symbol:      string(frame[:split]),
		NetPosition: math.Float64frombits(binary.NativeEndian.Uint64(frame[split:])),
	}
}

// Validate checks that symbol is a bare symbol the broker will accept.
func Validate(symbol string) error {
	if len(symbol) < MinSymbolLength || len(symbol) > MaxSymbolLength {
		return &FrameLengthError{
			Length: len(symbol),
			Min:    MinSymbolLength,
			Max:    MaxSymbolLength,
		}
	}
	return nil
}

// SplitQualified separates a broadcast position into its bare symbol and the
// originating client id. The split happens at the first separator.
func SplitQualified(p SymbolPosition) (SymbolPosition, string, error) {
	idx := strings.IndexByte(p.Symbol, QualifierSeparator)
	if idx < 0 {
		return SymbolPosition{}, "", &MalformedQualifierError{Symbol: p.Symbol}
	}
	return SymbolPosition{
		Symbol:      p.Symbol[:idx],
		NetPosition: p.NetPosition,
	}, p.Symbol[idx+1:], nil
}
