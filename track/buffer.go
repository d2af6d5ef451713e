package track

// Buffer is a sequence of cells with per-state counters.
// The counters always equal the number of cells in each state.
type Buffer struct {
	cells   []Cell
	flux    int
	weak    int
	damaged int
	ends    int
}

// NewBuffer creates an empty buffer with room for capacity cells.
func NewBuffer(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{cells: make([]Cell, 0, capacity)}
}

// Append encodes and adds one cell.
func (b *Buffer) Append(state State, timeNs int64) error {
	c, err := NewCell(state, timeNs)
	if err != nil {
		return err
	}
	b.cells = append(b.cells, c)
	b.count(state, 1)
	return nil
}

// Close appends the end of track marker.
func (b *Buffer) Close(timeNs int64) error {
	return b.Append(End, timeNs)
}

func (b *Buffer) count(s State, n int) {
	switch s {
	case Flux:
		b.flux += n
	case Weak:
		b.weak += n
	case Damaged:
		b.damaged += n
	case End:
		b.ends += n
	}
}

// Len returns the number of cells, including end markers.
func (b *Buffer) Len() int { return len(b.cells) }

// At returns the cell at index i.
func (b *Buffer) At(i int) Cell { return b.cells[i] }

// Cells returns the cells. The slice must not be modified.
func (b *Buffer) Cells() []Cell { return b.cells }

// FluxCount returns the number of stable cells.
func (b *Buffer) FluxCount() int { return b.flux }

// WeakCount returns the number of weak cells.
func (b *Buffer) WeakCount() int { return b.weak }

// DamagedCount returns the number of damaged cells.
func (b *Buffer) DamagedCount() int { return b.damaged }

// TrackLength returns the number of data cells, end markers excluded.
func (b *Buffer) TrackLength() int { return b.flux + b.weak + b.damaged }

// CountWeak counts weak cells by scanning the buffer.
func (b *Buffer) CountWeak() int {
	n := 0
	for _, c := range b.cells {
		if c.State() == Weak {
			n++
		}
	}
	return n
}

// MarkWeak marks every flux or damaged cell with a time in [startNs, endNs]
// as weak, keeping its time. It returns the number of cells changed.
func (b *Buffer) MarkWeak(startNs, endNs int64) int {
	changed := 0
	for i, c := range b.cells {
		s := c.State()
		if s == Weak || s == End {
			continue
		}
		if t := c.Time(); t < startNs || t > endNs {
			continue
		}
		b.cells[i] = c.withState(Weak)
		b.count(s, -1)
		b.count(Weak, 1)
		changed++
	}
	return changed
}
