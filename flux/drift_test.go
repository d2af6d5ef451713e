package flux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function: buildRevolutions creates a capture of the given number of
// revolutions, each one with an index marker followed by transitions
// every spacing nanoseconds, all scaled by drift.
func buildRevolutions(t *testing.T, revolutions int, rotationNs, spacing, drift float64) *Buffer {
	t.Helper()
	buf := NewBuffer(0, 0)
	for r := 0; r < revolutions; r++ {
		origin := float64(r) * rotationNs
		require.NoError(t, buf.AddTime(origin*drift, FlagIndex))
		for tm := spacing; tm < rotationNs; tm += spacing {
			require.NoError(t, buf.AddTime((origin+tm)*drift, 0))
		}
	}
	// Closing index marker
	require.NoError(t, buf.AddTime(float64(revolutions)*rotationNs*drift, FlagIndex))
	return buf
}

func TestEstimateDrift(t *testing.T) {
	rotation := RotationNs(RPM300)
	require.Equal(t, 200e6, rotation)

	for _, drift := range []float64{1.0, 1.02, 0.97, 1.1} {
		buf := buildRevolutions(t, 3, rotation, 100_000, drift)
		assert.InDelta(t, drift, EstimateDrift(buf, rotation), 1e-9, "drift %v", drift)
	}
}

func TestEstimateDrift_Neutral(t *testing.T) {
	buf := NewBuffer(0, 0)
	require.NoError(t, buf.AddTime(0, FlagIndex))
	require.NoError(t, buf.AddTime(1000, 0))
	assert.Equal(t, 1.0, EstimateDrift(buf, 200e6), "single index pulse")

	two := buildRevolutions(t, 1, 200e6, 50e6, 1.05)
	assert.Equal(t, 1.0, EstimateDrift(two, 0), "no expected rotation")
	assert.Equal(t, 1.0, EstimateDrift(two, -5))
}

func TestCompensateDrift_RoundTrip(t *testing.T) {
	const rotation = 200e6
	original := buildRevolutions(t, 2, rotation, 4000, 1.0)
	drifted := buildRevolutions(t, 2, rotation, 4000, 1.03)

	rate := EstimateDrift(drifted, rotation)
	CompensateDrift(drifted, rate)

	require.Equal(t, original.Len(), drifted.Len())
	for i := 0; i < original.Len(); i++ {
		require.InDelta(t, original.At(i).Time(), drifted.At(i).Time(), 1e-3, "sample %d", i)
		require.Equal(t, original.At(i).Flags, drifted.At(i).Flags)
	}
}

func TestCompensateDrift_NoOp(t *testing.T) {
	buf := buildRevolutions(t, 1, 1e6, 1000, 1.0)
	before := buf.Clone()

	CompensateDrift(buf, 1.0)
	CompensateDrift(buf, 0)
	CompensateDrift(buf, -2)
	assert.Equal(t, before, buf)
}

func TestCompensateDrift_Saturates(t *testing.T) {
	testCases := []struct {
		name  string
		drift float64
	}{
		{"Tiny", 1e-300},
		{"Subnormal", 5e-324},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			buf := buildRevolutions(t, 2, 1e6, 1000, 1.0)
			assert.NotPanics(t, func() { CompensateDrift(buf, tc.drift) })

			assert.Equal(t, int64(0), buf.At(0).NS)
			for i := 1; i < buf.Len(); i++ {
				s := buf.At(i)
				require.Equal(t, int64(MaxTimeNs), s.NS, "sample %d", i)
				require.Zero(t, s.Frac, "sample %d", i)
			}
		})
	}
}

func TestDetectRates(t *testing.T) {
	testCases := []struct {
		name     string
		rpm      int
		spacing  float64
		wantRPM  int
		wantKbps int
	}{
		{"300rpm_250kbps", 300, 5000, 300, 250},
		{"300rpm_500kbps", 300, 2000, 300, 500},
		{"360rpm_1000kbps", 360, 1000, 360, 1000},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			buf := buildRevolutions(t, 1, RotationNs(tc.rpm), tc.spacing, 1.0)
			rpm, kbps := DetectRates(buf)
			assert.Equal(t, tc.wantRPM, rpm)
			assert.Equal(t, tc.wantKbps, kbps)
		})
	}

	rpm, kbps := DetectRates(NewBuffer(0, 0))
	assert.Equal(t, RPM300, rpm)
	assert.Equal(t, 250, kbps)
}

func TestBitcellNs(t *testing.T) {
	assert.Equal(t, 2000.0, BitcellNs(250))
	assert.Equal(t, 1000.0, BitcellNs(500))
	assert.Equal(t, 0.0, BitcellNs(0))
}
