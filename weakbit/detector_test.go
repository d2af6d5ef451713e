package weakbit

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergev/fluxclock/flux"
	"github.com/sergev/fluxclock/track"
)

// Helper function: revolution builds one revolution starting with an index marker,
// with transitions every 4000 ns. Offsets shift single cells; shifts move
// the cell and everything after it.
func revolution(t *testing.T, cells int, offsets map[int]float64, shifts map[int]float64) *flux.Buffer {
	t.Helper()
	b := flux.NewBuffer(cells+1, 0)
	require.NoError(t, b.AddTime(0, flux.FlagIndex))
	shift := 0.0
	for i := 0; i < cells; i++ {
		shift += shifts[i]
		require.NoError(t, b.AddTime(float64(i+1)*4000+shift+offsets[i], 0))
	}
	return b
}

func TestTimingStats(t *testing.T) {
	s := Compute([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.Equal(t, 8, s.Count)
	assert.InDelta(t, 5.0, s.Mean, 1e-12)
	assert.InDelta(t, 4.0, s.Variance, 1e-12)
	assert.InDelta(t, 2.0, s.StdDev(), 1e-12)
	assert.Equal(t, 2.0, s.Min)
	assert.Equal(t, 9.0, s.Max)
	assert.Equal(t, 7.0, s.Spread())
	assert.InDelta(t, 0.16, s.Dispersion(), 1e-12)

	one := Compute([]float64{1234})
	assert.Equal(t, 1, one.Count)
	assert.Zero(t, one.Variance)
	assert.Zero(t, one.Dispersion())

	assert.True(t, math.IsInf(Compute([]float64{-1, 1}).Dispersion(), 1))
	assert.Zero(t, Compute(nil).Count)
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	testCases := []struct {
		name   string
		modify func(c *Config)
	}{
		{"ZeroThreshold", func(c *Config) { c.JitterThreshold = 0 }},
		{"NaNThreshold", func(c *Config) { c.JitterThreshold = math.NaN() }},
		{"OneRevolution", func(c *Config) { c.MinRevolutions = 1 }},
		{"NegativeDamaged", func(c *Config) { c.DamagedThreshold = -1 }},
		{"DamagedBelowWeak", func(c *Config) { c.DamagedThreshold = 0.05 }},
		{"BadTiming", func(c *Config) { c.Timing = Timing(9) }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(&cfg)
			assert.ErrorIs(t, cfg.Validate(), flux.ErrInvalidConfig)
			_, err := NewDetector(cfg)
			assert.ErrorIs(t, err, flux.ErrInvalidConfig)
		})
	}
}

func TestParseTiming(t *testing.T) {
	m, err := ParseTiming("Absolute")
	require.NoError(t, err)
	assert.Equal(t, Absolute, m)
	m, err = ParseTiming("")
	require.NoError(t, err)
	assert.Equal(t, Interval, m)
	_, err = ParseTiming("relative")
	assert.ErrorIs(t, err, flux.ErrInvalidConfig)
}

// TestAnalyze_ClassificationBoundary: one displaced transition gives the
// intervals on both sides of it a dispersion of 1/6, above the default
// threshold of 0.1, all other cells identical.
func TestAnalyze_ClassificationBoundary(t *testing.T) {
	revs := []*flux.Buffer{
		revolution(t, 50, map[int]float64{0: -2000}, nil),
		revolution(t, 50, nil, nil),
		revolution(t, 50, map[int]float64{0: 2000}, nil),
	}

	d, err := NewDetector(DefaultConfig())
	require.NoError(t, err)

	st := d.Stats(revs, 0)
	assert.Equal(t, 3, st.Count)
	assert.InDelta(t, 1.0/6, st.Dispersion(), 1e-9)
	assert.InDelta(t, 1.0/6, d.Stats(revs, 1).Dispersion(), 1e-9)
	assert.Zero(t, d.Stats(revs, 2).Variance)

	tr, err := d.Analyze(revs)
	require.NoError(t, err)
	assert.Equal(t, 50, tr.TrackLength())
	assert.Equal(t, 51, tr.Len())
	assert.Equal(t, 2, tr.WeakCount())
	assert.Equal(t, 48, tr.FluxCount())
	assert.Equal(t, track.Weak, tr.At(0).State())
	assert.Equal(t, track.Weak, tr.At(1).State())
	assert.Equal(t, int64(4000), tr.At(0).Time(), "cell keeps the mean time")
	assert.Equal(t, track.End, tr.At(50).State())
	assert.Equal(t, int64(200000), tr.At(50).Time())

	want := []track.Region{{StartNs: 4000, EndNs: 8000, Bits: 2}}
	if diff := cmp.Diff(want, FindWeakRegions(tr, 0)); diff != "" {
		t.Errorf("FindWeakRegions() mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyze_DisplacedCell(t *testing.T) {
	// One transition moved by -1900/0/+1900 ns: the intervals before and
	// after it have a dispersion of 0.15 wherever the cell is on the track.
	d, err := NewDetector(DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, Interval, d.Config().Timing)

	for _, cell := range []int{0, 1, 5, 20, 1000, 1998} {
		revs := []*flux.Buffer{
			revolution(t, 2000, map[int]float64{cell: -1900}, nil),
			revolution(t, 2000, nil, nil),
			revolution(t, 2000, map[int]float64{cell: 1900}, nil),
		}
		tr, err := d.Analyze(revs)
		require.NoError(t, err)
		assert.Equal(t, 2, tr.WeakCount(), "cell %d", cell)
		assert.InDelta(t, 0.1504, d.Stats(revs, cell+1).Dispersion(), 1e-4, "cell %d", cell)

		want := []track.Region{{StartNs: int64(cell+1) * 4000, EndNs: int64(cell+2) * 4000, Bits: 2}}
		if diff := cmp.Diff(want, FindWeakRegions(tr, 0)); diff != "" {
			t.Errorf("cell %d: FindWeakRegions() mismatch (-want +got):\n%s", cell, diff)
		}
	}
}

func TestAnalyze_IntervalTiming(t *testing.T) {
	// Interval 20 varies by +/- 2000 ns; later cells move along with it.
	revs := []*flux.Buffer{
		revolution(t, 40, nil, map[int]float64{20: -2000}),
		revolution(t, 40, nil, nil),
		revolution(t, 40, nil, map[int]float64{20: 2000}),
		revolution(t, 40, nil, nil),
	}
	d, err := NewDetector(DefaultConfig())
	require.NoError(t, err)

	tr, err := d.Analyze(revs)
	require.NoError(t, err)
	assert.Equal(t, 1, tr.WeakCount())
	assert.Equal(t, track.Weak, tr.At(20).State())

	regions := FindWeakRegions(tr, 0)
	require.Len(t, regions, 1)
	assert.Equal(t, int64(21*4000), regions[0].StartNs)
	assert.Equal(t, 1, regions[0].Bits)

	// Absolute timing dilutes the same shift by the distance from the index
	cfg := DefaultConfig()
	cfg.Timing = Absolute
	d, err = NewDetector(cfg)
	require.NoError(t, err)
	tr, err = d.Analyze(revs)
	require.NoError(t, err)
	assert.Zero(t, tr.WeakCount())
}

func TestAnalyze_Damaged(t *testing.T) {
	revs := []*flux.Buffer{
		revolution(t, 10, map[int]float64{0: -2000, 5: -1000}, nil),
		revolution(t, 10, nil, nil),
		revolution(t, 10, map[int]float64{0: 2000, 5: 1000}, nil),
	}
	cfg := DefaultConfig()
	cfg.JitterThreshold = 0.001
	cfg.DamagedThreshold = 0.15
	d, err := NewDetector(cfg)
	require.NoError(t, err)

	tr, err := d.Analyze(revs)
	require.NoError(t, err)
	assert.Equal(t, track.Damaged, tr.At(0).State())
	assert.Equal(t, track.Damaged, tr.At(1).State())
	assert.Equal(t, track.Weak, tr.At(5).State())
	assert.Equal(t, track.Weak, tr.At(6).State())
	assert.Equal(t, track.Flux, tr.At(7).State())
	assert.Equal(t, 2, tr.DamagedCount())
	assert.Equal(t, 2, tr.WeakCount())
}

func TestAnalyze_UnevenRevolutions(t *testing.T) {
	revs := []*flux.Buffer{
		revolution(t, 10, nil, nil),
		revolution(t, 11, nil, nil),
	}
	d, err := NewDetector(DefaultConfig())
	require.NoError(t, err)

	tr, err := d.Analyze(revs)
	require.NoError(t, err)
	assert.Equal(t, 11, tr.TrackLength())
	assert.Zero(t, tr.WeakCount(), "a cell seen once is never weak")
	assert.Equal(t, track.Flux, tr.At(10).State())
}

func TestAnalyze_TooFewRevolutions(t *testing.T) {
	d, err := NewDetector(DefaultConfig())
	require.NoError(t, err)

	_, err = d.Analyze([]*flux.Buffer{revolution(t, 5, nil, nil)})
	assert.ErrorIs(t, err, ErrTooFewRevolutions)
}

func TestAnalyze_TimeOverflow(t *testing.T) {
	b1 := flux.NewBuffer(1, 0)
	b2 := flux.NewBuffer(1, 0)
	require.NoError(t, b1.AddTime(float64(track.MaxTime)+10, 0))
	require.NoError(t, b2.AddTime(float64(track.MaxTime)+10, 0))

	d, err := NewDetector(DefaultConfig())
	require.NoError(t, err)
	_, err = d.Analyze([]*flux.Buffer{b1, b2})
	assert.ErrorIs(t, err, track.ErrInvalidCell)
}
