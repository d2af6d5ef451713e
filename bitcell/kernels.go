package bitcell

// kernel converts a batch of flux intervals into cell counts.
// Callers guarantee len(dst) >= len(deltas) and bitcell != 0.
type kernel func(dst []uint8, deltas []uint32, bitcell uint32, lo, hi uint8)

// scalarKernel is the reference implementation.
func scalarKernel(dst []uint8, deltas []uint32, bitcell uint32, lo, hi uint8) {
	for i, d := range deltas {
		dst[i] = CellsForDeltaRange(d, bitcell, lo, hi)
	}
}

// lanes4Kernel processes four intervals per step.
func lanes4Kernel(dst []uint8, deltas []uint32, bitcell uint32, lo, hi uint8) {
	b, h := uint64(bitcell), uint64(bitcell/2)
	i := 0
	for ; i+4 <= len(deltas); i += 4 {
		d := (*[4]uint32)(deltas[i:])
		o := (*[4]uint8)(dst[i:])
		o[0] = cells(uint64(d[0]), b, h, lo, hi)
		o[1] = cells(uint64(d[1]), b, h, lo, hi)
		o[2] = cells(uint64(d[2]), b, h, lo, hi)
		o[3] = cells(uint64(d[3]), b, h, lo, hi)
	}
	scalarKernel(dst[i:], deltas[i:], bitcell, lo, hi)
}

// lanes8Kernel processes eight intervals per step.
func lanes8Kernel(dst []uint8, deltas []uint32, bitcell uint32, lo, hi uint8) {
	b, h := uint64(bitcell), uint64(bitcell/2)
	i := 0
	for ; i+8 <= len(deltas); i += 8 {
		d := (*[8]uint32)(deltas[i:])
		o := (*[8]uint8)(dst[i:])
		for j := range d {
			o[j] = cells(uint64(d[j]), b, h, lo, hi)
		}
	}
	lanes4Kernel(dst[i:], deltas[i:], bitcell, lo, hi)
}

// lanes16Kernel processes sixteen intervals per step.
func lanes16Kernel(dst []uint8, deltas []uint32, bitcell uint32, lo, hi uint8) {
	b, h := uint64(bitcell), uint64(bitcell/2)
	i := 0
	for ; i+16 <= len(deltas); i += 16 {
		d := (*[16]uint32)(deltas[i:])
		o := (*[16]uint8)(dst[i:])
		for j := range d {
			o[j] = cells(uint64(d[j]), b, h, lo, hi)
		}
	}
	lanes8Kernel(dst[i:], deltas[i:], bitcell, lo, hi)
}
