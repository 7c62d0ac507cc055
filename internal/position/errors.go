package position

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrFrameLength        = errors.New("frame length out of bounds")
	ErrMalformedQualifier = errors.New("qualified symbol missing separator")
)

// FrameLengthError reports a frame or symbol whose length violates the codec bounds.
// Max is zero when no upper bound applies.
type FrameLengthError struct {
	Length int
	Min    int
	Max    int
}

func (e *FrameLengthError) Error() string {
	if e.Max == 0 {
		return fmt.Sprintf("frame length %d below minimum %d", e.Length, e.Min)
	}
	return fmt.Sprintf("frame length %d outside [%d, %d]", e.Length, e.Min, e.Max)
}

// Is lets errors.Is match ErrFrameLength.
func (e *FrameLengthError) Is(target error) bool {
	return target == ErrFrameLength
}

// MalformedQualifierError reports a broadcast symbol without a client id suffix.
type MalformedQualifierError struct {
	Symbol string
}

func (e *MalformedQualifierError) Error() string {
	return fmt.Sprintf("invalid position format: %q has no %q separator", e.Symbol, QualifierSeparator)
}

// Is lets errors.Is match ErrMalformedQualifier.
func (e *MalformedQualifierError) Is(target error) bool {
	return target == ErrMalformedQualifier
}
