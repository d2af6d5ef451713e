package flux

// Iterator provides flux intervals from the absolute sample times of a buffer.
// Index markers are skipped and counted; they do not split an interval.
type Iterator struct {
	buf      *Buffer
	index    int     // Current position in the buffer
	lastTime float64 // Time of the previous transition
	pulses   int     // Index markers passed so far
}

// Iterator returns a new flux interval iterator starting at time zero.
func (b *Buffer) Iterator() *Iterator {
	return &Iterator{buf: b}
}

// NextFlux returns the next flux interval in nanoseconds (time until next transition).
// The second result is false when no more transitions are available.
func (it *Iterator) NextFlux() (float64, bool) {
	for it.index < len(it.buf.samples) {
		s := it.buf.samples[it.index]
		it.index++
		if s.IsIndex() {
			it.pulses++
			continue
		}
		t := s.Time()
		interval := t - it.lastTime
		it.lastTime = t
		return interval, true
	}
	return 0, false
}

// Time returns the absolute time of the last transition returned by NextFlux.
func (it *Iterator) Time() float64 {
	return it.lastTime
}

// IndexPulses returns the number of index markers passed so far.
func (it *Iterator) IndexPulses() int {
	return it.pulses
}

// IsDone returns true if all samples have been consumed.
func (it *Iterator) IsDone() bool {
	return it.index >= len(it.buf.samples)
}

// SplitRevolutions cuts a multi-revolution capture at its index markers.
// Every revolution starts with an index marker at time zero, and sample times
// are rebased to that marker. Samples before the first and after the last
// index marker are dropped. With fewer than two markers the whole buffer is
// returned as a single revolution.
func SplitRevolutions(b *Buffer) ([]*Buffer, error) {
	positions := b.IndexPositions()
	if len(positions) < 2 {
		return []*Buffer{b.Clone()}, nil
	}

	revs := make([]*Buffer, 0, len(positions)-1)
	for r := 0; r+1 < len(positions); r++ {
		start, end := positions[r], positions[r+1]
		origin := b.samples[start]
		rev := NewBuffer(end-start, b.sampleRate)
		if err := rev.Add(0, 0, FlagIndex); err != nil {
			return nil, err
		}
		for i := start + 1; i < end; i++ {
			s := b.samples[i]
			if s.IsIndex() {
				continue
			}
			if err := rev.Add(s.NS-origin.NS, s.Frac-origin.Frac, s.Flags); err != nil {
				return nil, err
			}
		}
		revs = append(revs, rev)
	}
	return revs, nil
}
