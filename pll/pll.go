// Package pll recovers the data clock from flux intervals.
//
// Two algorithms implement the same pull-based Strategy contract: the caller
// adds one flux interval, then asks for bits until NeedMoreData is returned.
package pll

import (
	"fmt"
)

// Outcome is the result of asking a strategy for the next bit.
type Outcome uint8

const (
	NeedMoreData Outcome = iota // Add another flux interval before retrying
	Zero                        // Clocked zero, no transition in the bit window
	One                         // Transition inside the bit window
)

// Bit returns the bit value and false for NeedMoreData.
func (o Outcome) Bit() (uint8, bool) {
	switch o {
	case Zero:
		return 0, true
	case One:
		return 1, true
	default:
		return 0, false
	}
}

// String returns a short name of the outcome.
func (o Outcome) String() string {
	switch o {
	case NeedMoreData:
		return "need-more-data"
	case Zero:
		return "0"
	case One:
		return "1"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Stats are side effects of decoding, collected by both strategies.
type Stats struct {
	TotalBits   int     // Bits emitted
	GoodBits    int     // Bits emitted under good timing
	Transitions int     // Flux intervals consumed
	SyncLosses  int     // Sync loss events raised
	IndexPulses int     // Index markers observed
	ClockNs     float64 // Current clock period
	RMSJitterNs float64 // Root mean square timing error
}

// SuccessRate returns the fraction of bits emitted under good timing.
func (s Stats) SuccessRate() float64 {
	if s.TotalBits == 0 {
		return 0
	}
	return float64(s.GoodBits) / float64(s.TotalBits)
}

// Strategy is a clock recovery algorithm.
// State is owned by one decode and must not be shared.
type Strategy interface {
	// Name returns the algorithm name.
	Name() string

	// AddFlux adds the time from the previous transition to the next one.
	AddFlux(deltaNs float64)

	// NextBit returns the next bit, or NeedMoreData when the caller
	// must add another flux interval first.
	NextBit() Outcome

	// MarkIndex records an index pulse.
	MarkIndex()

	// Index reports and clears a pending index pulse.
	Index() bool

	// SyncLost reports and clears a pending loss of sync.
	SyncLost() bool

	// Locked reports whether the loop is confidently tracking the clock.
	Locked() bool

	// Stats returns the decoding statistics.
	Stats() Stats

	// Reset restores the initial state, dropping statistics.
	Reset()
}

// New creates the strategy selected by cfg.Algorithm.
// The configuration is validated here, so decoding never checks it again.
func New(cfg Config) (Strategy, error) {
	switch cfg.Algorithm {
	case AlgorithmKalman:
		return NewKalman(cfg)
	default:
		return NewClassic(cfg)
	}
}

// Decode adds one flux interval and appends every bit that becomes available.
func Decode(s Strategy, deltaNs float64, dst []uint8) []uint8 {
	s.AddFlux(deltaNs)
	for {
		bit, ok := s.NextBit().Bit()
		if !ok {
			return dst
		}
		dst = append(dst, bit)
	}
}
