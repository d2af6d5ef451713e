package bitcell

import (
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellsForDelta(t *testing.T) {
	testCases := []struct {
		name    string
		delta   uint32
		bitcell uint32
		want    uint8
	}{
		{"Exact1", 2000, 2000, 1},
		{"Exact3", 6000, 2000, 3},
		{"RoundDown", 2999, 2000, 1},
		{"RoundHalfUp", 3000, 2000, 2},
		{"ShortClampsToOne", 10, 2000, 1},
		{"ZeroDelta", 0, 2000, 1},
		{"LongClampsToEight", 100000, 2000, 8},
		{"MaxDelta", math.MaxUint32, 1, 8},
		{"ZeroBitcell", 4000, 0, 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CellsForDelta(tc.delta, tc.bitcell))
		})
	}
}

func TestCellsForDeltaRange_Narrow(t *testing.T) {
	assert.Equal(t, uint8(3), CellsForDeltaRange(6000, 2000, 2, 4))
	assert.Equal(t, uint8(2), CellsForDeltaRange(2000, 2000, 2, 4), "below range clamps up")
	assert.Equal(t, uint8(4), CellsForDeltaRange(20000, 2000, 2, 4))
	assert.Equal(t, uint8(1), CellsForDeltaRange(2000, 4000, 1, GCRMaxCells))
	assert.Equal(t, uint8(3), CellsForDeltaRange(16000, 4000, 1, GCRMaxCells))
}

// TestDispatchEquivalence checks that every kernel agrees with the scalar
// reference for randomized intervals.
func TestDispatchEquivalence(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	const pairs = 10000
	deltas := make([]uint32, pairs)
	bitcells := make([]uint32, pairs)
	for i := range deltas {
		switch i % 4 {
		case 0:
			deltas[i] = rng.Uint32()
		default:
			deltas[i] = uint32(rng.Intn(40000))
		}
		bitcells[i] = uint32(rng.Intn(8000)) // includes zero
	}

	// Pairwise check: each pair through the scalar function and through each
	// kernel as a batch of one and as part of a larger batch.
	for _, level := range Levels() {
		t.Run(level.String(), func(t *testing.T) {
			dst := make([]uint8, 1)
			for i := range deltas {
				want := CellsForDelta(deltas[i], bitcells[i])
				CellsWith(level, dst, deltas[i:i+1], bitcells[i], MinCells, MaxCells)
				require.Equal(t, want, dst[0], "pair %d: delta=%d bitcell=%d", i, deltas[i], bitcells[i])
			}
		})
	}

	// Batch check with a shared bitcell and a length that leaves a tail
	// for every lane width.
	batch := deltas[:pairs-3]
	want := make([]uint8, len(batch))
	CellsWith(LevelScalar, want, batch, 2000, MinCells, MaxCells)
	for _, level := range Levels() {
		got := make([]uint8, len(batch))
		n := CellsWith(level, got, batch, 2000, MinCells, MaxCells)
		require.Equal(t, len(batch), n)
		require.Equal(t, want, got, "level %s", level)
	}
}

func TestCells_ShortDestination(t *testing.T) {
	dst := make([]uint8, 3)
	n := Cells(dst, []uint32{2000, 4000, 6000, 8000, 10000}, 2000, 1, 8)
	assert.Equal(t, 3, n)
	assert.Equal(t, []uint8{1, 2, 3}, dst)
}

func TestLevel_UnrollWidth(t *testing.T) {
	testCases := []struct {
		level Level
		name  string
		lanes int
	}{
		{LevelScalar, "scalar", 1},
		{LevelSSE2, "sse2", 4},
		{LevelAVX2, "avx2", 8},
		{LevelAVX512, "avx512", 16},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.name, tc.level.String())
			assert.Equal(t, tc.lanes, tc.level.Lanes())

			// One full step plus a tail that the narrower kernels finish
			deltas := make([]uint32, tc.lanes+3)
			want := make([]uint8, len(deltas))
			for i := range deltas {
				deltas[i] = uint32(1000 + 1700*i)
				want[i] = CellsForDeltaRange(deltas[i], 2000, 1, 8)
			}
			got := make([]uint8, len(deltas))
			assert.Equal(t, len(deltas), CellsWith(tc.level, got, deltas, 2000, 1, 8))
			assert.Equal(t, want, got)
		})
	}
}

func TestCellsWith_UnknownLevelFallsBack(t *testing.T) {
	dst := make([]uint8, 2)
	CellsWith(Level(42), dst, []uint32{4000, 0}, 2000, 1, 8)
	assert.Equal(t, []uint8{2, 1}, dst)
}

func TestDetect_Idempotent(t *testing.T) {
	var wg sync.WaitGroup
	results := make([]Level, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Detect()
		}(i)
	}
	wg.Wait()

	assert.True(t, Detected())
	for _, l := range results {
		assert.Equal(t, results[0], l)
	}
	assert.Equal(t, results[0], Detect())
	assert.NotEqual(t, "unknown", Detect().String())
	assert.GreaterOrEqual(t, Detect().Lanes(), 1)
}

func BenchmarkCells(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	deltas := make([]uint32, 50000)
	for i := range deltas {
		deltas[i] = uint32(2000 + rng.Intn(6000))
	}
	dst := make([]uint8, len(deltas))

	for _, level := range Levels() {
		b.Run(level.String(), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				CellsWith(level, dst, deltas, 2000, MinCells, MaxCells)
			}
		})
	}
}
