// Package track holds classified magnetic cells of one track.
//
// Each cell packs a 4-bit state tag with a 28-bit time in nanoseconds,
// enough for 268 ms, more than one revolution at 300 RPM.
package track

import (
	"errors"
	"fmt"
)

// ErrInvalidCell is returned when a cell cannot be encoded without truncation.
var ErrInvalidCell = errors.New("invalid cell")

// Cell layout
const (
	TimeBits  = 28
	TimeMask  = 1<<TimeBits - 1
	StateMask = 0xF
	MaxTime   = TimeMask
)

// State is the classification of a cell.
type State uint8

const (
	Flux    State = 0x0 // Stable flux transition
	Weak    State = 0x1 // Position varies between revolutions
	Damaged State = 0x2 // Unreadable region
	End     State = 0x3 // End of track marker
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case Flux:
		return "flux"
	case Weak:
		return "weak"
	case Damaged:
		return "damaged"
	case End:
		return "end"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Cell is a packed state and time: state<<28 | time.
type Cell uint32

// NewCell packs a state and a time in nanoseconds.
// Times that need more than 28 bits are rejected, never truncated.
func NewCell(state State, timeNs int64) (Cell, error) {
	if state > End {
		return 0, fmt.Errorf("state %d: %w", state, ErrInvalidCell)
	}
	if timeNs < 0 || timeNs > MaxTime {
		return 0, fmt.Errorf("time %d ns does not fit in %d bits: %w", timeNs, TimeBits, ErrInvalidCell)
	}
	return Cell(uint32(state)<<TimeBits | uint32(timeNs)&TimeMask), nil
}

// State returns the state tag.
func (c Cell) State() State { return State(uint32(c) >> TimeBits & StateMask) }

// Time returns the time in nanoseconds.
func (c Cell) Time() int64 { return int64(uint32(c) & TimeMask) }

// withState returns the cell with its state replaced, keeping the time.
func (c Cell) withState(s State) Cell {
	return Cell(uint32(s)<<TimeBits | uint32(c)&TimeMask)
}

func (c Cell) String() string {
	return fmt.Sprintf("%s@%d", c.State(), c.Time())
}
