// Package bitcell converts flux intervals into bitcell counts.
//
// The conversion is a pure function with one scalar reference and several
// batch kernels of different widths. A kernel is picked once per process
// from the CPU capabilities; every kernel returns exactly the same counts as
// the scalar reference, so the choice only affects throughput.
//
// The kernels are plain Go unrolled to 4, 8 or 16 lanes. Levels are named
// after the SSE2, AVX2 and AVX-512 tiers whose register widths they match;
// there is no assembly, and a level only picks the unroll width.
package bitcell

const (
	// MinCells and MaxCells bound the generic cell count range.
	MinCells = 1
	MaxCells = 8

	// GCRMaxCells bounds GCR encodings, which never record more than
	// two zero bits in a row.
	GCRMaxCells = 3
)

// CellsForDelta rounds a flux interval to the nearest whole number of bitcells,
// clamped to [MinCells, MaxCells].
func CellsForDelta(deltaNs, bitcellNs uint32) uint8 {
	return CellsForDeltaRange(deltaNs, bitcellNs, MinCells, MaxCells)
}

// CellsForDeltaRange rounds a flux interval to the nearest whole number of
// bitcells, clamped to [lo, hi]. A zero bitcell yields lo.
func CellsForDeltaRange(deltaNs, bitcellNs uint32, lo, hi uint8) uint8 {
	if bitcellNs == 0 {
		return lo
	}
	return cells(uint64(deltaNs), uint64(bitcellNs), uint64(bitcellNs/2), lo, hi)
}

// cells is the arithmetic shared by every kernel.
// Inputs are widened to 64 bits so delta+half cannot overflow.
func cells(delta, bitcell, half uint64, lo, hi uint8) uint8 {
	n := (delta + half) / bitcell
	if n < uint64(lo) {
		return lo
	}
	if n > uint64(hi) {
		return hi
	}
	return uint8(n)
}
