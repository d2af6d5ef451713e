// Package weakbit finds cells whose timing is unstable between revolutions.
//
// Revolutions of the same track are aligned cell by cell. For every cell
// index the timing samples of all revolutions are summarized, and the cell
// is classified weak when the squared coefficient of variation exceeds the
// jitter threshold. By default the sample of a cell is its flux interval,
// so the ratio does not depend on the position of the cell on the track.
package weakbit

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/sergev/fluxclock/flux"
	"github.com/sergev/fluxclock/track"
)

// ErrTooFewRevolutions is returned when there are not enough revolutions to compare.
var ErrTooFewRevolutions = errors.New("too few revolutions")

// Defaults
const (
	DefaultJitterThreshold = 0.1
	DefaultMinRevolutions  = 2
)

// Timing selects which value of a cell is compared between revolutions.
type Timing int

const (
	Interval Timing = iota // Time since the previous transition
	Absolute               // Time since the start of the revolution
)

// String returns the name of the timing mode.
func (m Timing) String() string {
	switch m {
	case Absolute:
		return "absolute"
	case Interval:
		return "interval"
	default:
		return "unknown"
	}
}

// ParseTiming converts a name into a Timing.
func ParseTiming(name string) (Timing, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "interval", "":
		return Interval, nil
	case "absolute":
		return Absolute, nil
	default:
		return 0, fmt.Errorf("unknown timing mode %q: %w", name, flux.ErrInvalidConfig)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Timing) UnmarshalText(text []byte) error {
	parsed, err := ParseTiming(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (m Timing) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Config holds the weak bit classification parameters.
type Config struct {
	JitterThreshold  float64 // Variance/Mean² above which a cell is weak
	MinRevolutions   int     // Revolutions required for analysis
	DamagedThreshold float64 // Variance/Mean² above which a cell is damaged, 0 disables
	Timing           Timing
}

// DefaultConfig returns the default classification parameters.
func DefaultConfig() Config {
	return Config{
		JitterThreshold: DefaultJitterThreshold,
		MinRevolutions:  DefaultMinRevolutions,
		Timing:          Interval,
	}
}

// Validate checks the parameters. Failures wrap flux.ErrInvalidConfig.
func (c Config) Validate() error {
	if !(c.JitterThreshold > 0) || math.IsInf(c.JitterThreshold, 0) {
		return fmt.Errorf("jitter threshold %v must be positive: %w", c.JitterThreshold, flux.ErrInvalidConfig)
	}
	if c.MinRevolutions < 2 {
		return fmt.Errorf("minimum revolutions %d must be at least 2: %w", c.MinRevolutions, flux.ErrInvalidConfig)
	}
	if c.DamagedThreshold < 0 || (c.DamagedThreshold > 0 && c.DamagedThreshold <= c.JitterThreshold) {
		return fmt.Errorf("damaged threshold %v must be 0 or above the jitter threshold %v: %w",
			c.DamagedThreshold, c.JitterThreshold, flux.ErrInvalidConfig)
	}
	if c.Timing != Interval && c.Timing != Absolute {
		return fmt.Errorf("unknown timing mode %d: %w", int(c.Timing), flux.ErrInvalidConfig)
	}
	return nil
}

// Detector classifies cells of one track from several revolutions.
type Detector struct {
	cfg Config
}

// NewDetector creates a detector from a validated configuration.
func NewDetector(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg}, nil
}

// Config returns the detector parameters.
func (d *Detector) Config() Config { return d.cfg }

// transitions returns the absolute times of all flux transitions of a revolution.
func transitions(b *flux.Buffer) []float64 {
	times := make([]float64, 0, b.Len())
	it := b.Iterator()
	for _, ok := it.NextFlux(); ok; _, ok = it.NextFlux() {
		times = append(times, it.Time())
	}
	return times
}

// value returns the compared value of cell i.
func (d *Detector) value(times []float64, i int) float64 {
	if d.cfg.Timing == Interval {
		if i == 0 {
			return times[0]
		}
		return times[i] - times[i-1]
	}
	return times[i]
}

// Stats returns the timing statistics of cell i over the revolutions
// that have such a cell.
func (d *Detector) Stats(revs []*flux.Buffer, i int) TimingStats {
	var s TimingStats
	for _, r := range revs {
		times := transitions(r)
		if i >= 0 && i < len(times) {
			s.Add(d.value(times, i))
		}
	}
	return s
}

// Classify returns the state of a cell with the given statistics.
func (d *Detector) Classify(s TimingStats) track.State {
	if s.Count < 2 {
		return track.Flux
	}
	ratio := s.Dispersion()
	switch {
	case d.cfg.DamagedThreshold > 0 && ratio > d.cfg.DamagedThreshold:
		return track.Damaged
	case ratio > d.cfg.JitterThreshold:
		return track.Weak
	default:
		return track.Flux
	}
}

// Analyze aligns the revolutions cell by cell and returns the classified track.
// Each cell stores the rounded mean absolute time of its samples.
// The track ends with an end marker at the mean revolution length.
func (d *Detector) Analyze(revs []*flux.Buffer) (*track.Buffer, error) {
	if len(revs) < d.cfg.MinRevolutions {
		return nil, fmt.Errorf("%d revolutions, need %d: %w", len(revs), d.cfg.MinRevolutions, ErrTooFewRevolutions)
	}

	all := make([][]float64, len(revs))
	cells := 0
	duration := 0.0
	for r, b := range revs {
		all[r] = transitions(b)
		if len(all[r]) > cells {
			cells = len(all[r])
		}
		duration += b.Duration()
	}
	duration /= float64(len(revs))

	out := track.NewBuffer(cells + 1)
	last := int64(0)
	for i := 0; i < cells; i++ {
		var stats, position TimingStats
		for _, times := range all {
			if i < len(times) {
				stats.Add(d.value(times, i))
				position.Add(times[i])
			}
		}
		last = int64(math.Round(position.Mean))
		if err := out.Append(d.Classify(stats), last); err != nil {
			return nil, fmt.Errorf("cell %d: %w", i, err)
		}
	}

	end := int64(math.Round(duration))
	if end < last {
		end = last
	}
	if err := out.Close(end); err != nil {
		return nil, fmt.Errorf("end of track: %w", err)
	}
	return out, nil
}

// FindWeakRegions returns at most max runs of weak cells; max <= 0 means no limit.
func FindWeakRegions(t *track.Buffer, max int) []track.Region {
	return t.FindWeakRegions(max)
}
