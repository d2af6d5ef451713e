package flux

import (
	"errors"
	"math"
)

// Errors shared by the clock recovery packages.
var (
	// ErrOutOfMemory is returned when a buffer cannot grow any further.
	// Already stored samples are left untouched.
	ErrOutOfMemory = errors.New("flux buffer out of memory")

	// ErrOutOfOrder is returned when a sample is older than the last one appended.
	ErrOutOfOrder = errors.New("flux sample out of order")

	// ErrInvalidConfig is wrapped by every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Flags annotate a flux sample.
type Flags uint8

const (
	FlagIndex     Flags = 1 << iota // Index pulse marker, not a flux transition
	FlagWeak                        // Transition known to be unstable
	FlagSynthetic                   // Transition inserted by software, not observed
)

// Has reports whether all bits of f are set.
func (fl Flags) Has(f Flags) bool {
	return fl&f == f
}

// Sample is one observed flux transition (or index marker).
// Time is NS + Frac nanoseconds, with Frac always in [0,1).
type Sample struct {
	NS    int64   // Integer part of the timestamp in nanoseconds
	Frac  float64 // Sub-nanosecond residue
	Flags Flags
}

// Time returns the combined timestamp in nanoseconds.
func (s Sample) Time() float64 {
	return float64(s.NS) + s.Frac
}

// IsIndex reports whether the sample marks an index pulse.
func (s Sample) IsIndex() bool {
	return s.Flags.Has(FlagIndex)
}

// MaxTimeNs bounds sample times, about 146 years.
const MaxTimeNs = 1 << 62

// splitTime splits a combined time into integer and fractional parts.
// Times beyond MaxTimeNs either way are clamped to it.
func splitTime(t float64) (int64, float64) {
	if t >= MaxTimeNs {
		return MaxTimeNs, 0
	}
	if t <= -MaxTimeNs {
		return -MaxTimeNs, 0
	}
	whole := math.Floor(t)
	frac := t - whole
	if frac >= 1 {
		// Rounding at the float boundary
		whole++
		frac = 0
	}
	return int64(whole), frac
}

// normalize moves any residue outside [0,1) into the integer part.
func normalize(ns int64, frac float64) (int64, float64) {
	if frac >= 0 && frac < 1 {
		return ns, frac
	}
	carry := math.Floor(frac)
	frac -= carry
	if frac >= 1 {
		carry++
		frac = 0
	}
	return ns + int64(carry), frac
}
