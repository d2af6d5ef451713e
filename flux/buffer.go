package flux

import (
	"fmt"
	"math"
	"sort"
)

const (
	// MaxSamples is the largest number of samples a buffer may hold.
	// A 2 second capture at 1 transition per 500ns needs 4M samples,
	// so this leaves plenty of headroom.
	MaxSamples = 1 << 28

	minCapacity = 16
)

// Buffer holds the ordered flux samples of one capture.
// It is owned by a single decode and is not safe for concurrent use.
type Buffer struct {
	samples    []Sample
	sampleRate float64 // Capture clock in Hz
	indexCount int     // Number of samples flagged with FlagIndex
}

// NewBuffer creates an empty buffer with room for capacity samples.
// The sample rate is the capture clock in Hz, used by AddSamplePosition.
func NewBuffer(capacity int, sampleRate float64) *Buffer {
	if capacity < minCapacity {
		capacity = minCapacity
	}
	if capacity > MaxSamples {
		capacity = MaxSamples
	}
	return &Buffer{
		samples:    make([]Sample, 0, capacity),
		sampleRate: sampleRate,
	}
}

// grow doubles the capacity of the sample slice.
func (b *Buffer) grow() error {
	oldCap := cap(b.samples)
	if oldCap >= MaxSamples {
		return fmt.Errorf("cannot grow beyond %d samples: %w", MaxSamples, ErrOutOfMemory)
	}
	newCap := oldCap * 2
	if newCap < minCapacity {
		newCap = minCapacity
	}
	if newCap > MaxSamples {
		newCap = MaxSamples
	}
	grown := make([]Sample, len(b.samples), newCap)
	copy(grown, b.samples)
	b.samples = grown
	return nil
}

// Add appends a sample at ns + frac nanoseconds.
// Samples must arrive in non-decreasing time order.
func (b *Buffer) Add(ns int64, frac float64, flags Flags) error {
	if math.IsNaN(frac) || math.IsInf(frac, 0) {
		return fmt.Errorf("invalid fractional residue %v", frac)
	}
	ns, frac = normalize(ns, frac)

	if n := len(b.samples); n > 0 {
		last := b.samples[n-1]
		if ns < last.NS || (ns == last.NS && frac < last.Frac) {
			return fmt.Errorf("sample at %d.%03d ns precedes %d.%03d ns: %w",
				ns, int(frac*1000), last.NS, int(last.Frac*1000), ErrOutOfOrder)
		}
	}

	if len(b.samples) == cap(b.samples) {
		if err := b.grow(); err != nil {
			return err
		}
	}
	b.samples = append(b.samples, Sample{NS: ns, Frac: frac, Flags: flags})
	if flags.Has(FlagIndex) {
		b.indexCount++
	}
	return nil
}

// AddTime appends a sample given as combined nanoseconds.
func (b *Buffer) AddTime(t float64, flags Flags) error {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return fmt.Errorf("invalid sample time %v", t)
	}
	ns, frac := splitTime(t)
	return b.Add(ns, frac, flags)
}

// AddSamplePosition appends a sample given as a fractional index of the capture clock.
func (b *Buffer) AddSamplePosition(position float64, flags Flags) error {
	if b.sampleRate <= 0 {
		return fmt.Errorf("sample rate %v: %w", b.sampleRate, ErrInvalidConfig)
	}
	nsPerSample := 1e9 / b.sampleRate
	return b.AddTime(position*nsPerSample, flags)
}

// Clear drops all samples but keeps the allocation.
func (b *Buffer) Clear() {
	b.samples = b.samples[:0]
	b.indexCount = 0
}

// Len returns the number of samples.
func (b *Buffer) Len() int {
	return len(b.samples)
}

// Cap returns the current capacity.
func (b *Buffer) Cap() int {
	return cap(b.samples)
}

// SampleRate returns the capture clock in Hz.
func (b *Buffer) SampleRate() float64 {
	return b.sampleRate
}

// IndexCount returns the number of index markers in the buffer.
func (b *Buffer) IndexCount() int {
	return b.indexCount
}

// At returns the sample at position i, clamped to the valid range.
func (b *Buffer) At(i int) Sample {
	if len(b.samples) == 0 {
		return Sample{}
	}
	return b.samples[b.clampIndex(i)]
}

// IndexPositions returns the positions of all index markers.
func (b *Buffer) IndexPositions() []int {
	positions := make([]int, 0, b.indexCount)
	for i, s := range b.samples {
		if s.IsIndex() {
			positions = append(positions, i)
		}
	}
	return positions
}

// Duration returns the time between the first and the last sample.
func (b *Buffer) Duration() float64 {
	if len(b.samples) < 2 {
		return 0
	}
	return b.Delta(0, len(b.samples)-1)
}

// Clone returns a deep copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	c := &Buffer{
		samples:    make([]Sample, len(b.samples), cap(b.samples)),
		sampleRate: b.sampleRate,
		indexCount: b.indexCount,
	}
	copy(c.samples, b.samples)
	return c
}

func (b *Buffer) clampIndex(i int) int {
	if i < 0 {
		return 0
	}
	if i >= len(b.samples) {
		return len(b.samples) - 1
	}
	return i
}

// Time returns the time at a fractional sample index.
// Between two samples the time is interpolated linearly.
// Indexes past either end clamp to the first or last sample.
func (b *Buffer) Time(index float64) float64 {
	n := len(b.samples)
	if n == 0 || math.IsNaN(index) {
		return 0
	}
	if index <= 0 {
		return b.samples[0].Time()
	}
	if index >= float64(n-1) {
		return b.samples[n-1].Time()
	}

	lo := int(math.Floor(index))
	frac := index - float64(lo)
	t0 := b.samples[lo].Time()
	if frac == 0 {
		return t0
	}
	t1 := b.samples[lo+1].Time()
	return t0 + (t1-t0)*frac
}

// InterpolatePosition returns the fractional sample index at which time t falls.
// Times before the first sample map to 0, times after the last to Len()-1.
func (b *Buffer) InterpolatePosition(t float64) float64 {
	n := len(b.samples)
	if n == 0 {
		return 0
	}
	if t <= b.samples[0].Time() {
		return 0
	}
	if t >= b.samples[n-1].Time() {
		return float64(n - 1)
	}

	// First sample strictly after t; it is at least 1 here.
	hi := sort.Search(n, func(i int) bool {
		return b.samples[i].Time() > t
	})
	lo := hi - 1
	t0 := b.samples[lo].Time()
	t1 := b.samples[hi].Time()
	if t1 == t0 {
		return float64(lo)
	}
	return float64(lo) + (t-t0)/(t1-t0)
}

// Delta returns the signed time from sample a to sample b in nanoseconds,
// including the fractional residues. Indexes are clamped.
func (b *Buffer) Delta(from, to int) float64 {
	if len(b.samples) == 0 {
		return 0
	}
	sa := b.samples[b.clampIndex(from)]
	sb := b.samples[b.clampIndex(to)]
	return float64(sb.NS-sa.NS) + (sb.Frac - sa.Frac)
}
