package bitcell

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// Level identifies a batch kernel by the CPU feature tier it is tuned for.
// The tier only sets the unroll width of a portable Go kernel, matching the
// register width of that instruction set; no assembly is involved.
type Level int

const (
	LevelScalar Level = iota // Portable reference
	LevelSSE2                // 4 lanes; also used for arm64 ASIMD
	LevelAVX2                // 8 lanes
	LevelAVX512              // 16 lanes
)

// String returns the name of the level.
func (l Level) String() string {
	switch l {
	case LevelScalar:
		return "scalar"
	case LevelSSE2:
		return "sse2"
	case LevelAVX2:
		return "avx2"
	case LevelAVX512:
		return "avx512"
	default:
		return "unknown"
	}
}

// Lanes returns the number of intervals the kernel handles per step.
func (l Level) Lanes() int {
	switch l {
	case LevelSSE2:
		return 4
	case LevelAVX2:
		return 8
	case LevelAVX512:
		return 16
	default:
		return 1
	}
}

var kernels = [...]kernel{
	LevelScalar: scalarKernel,
	LevelSSE2:   lanes4Kernel,
	LevelAVX2:   lanes8Kernel,
	LevelAVX512: lanes16Kernel,
}

// Levels returns every kernel level, slowest first.
func Levels() []Level {
	return []Level{LevelScalar, LevelSSE2, LevelAVX2, LevelAVX512}
}

// Capability cache. Written once under detectOnce, read-only afterwards.
var (
	detectOnce sync.Once
	detected   atomic.Bool
	selected   Level
)

// Detect checks the CPU on first use and returns the selected kernel level.
// Safe for concurrent use; every caller sees the final result.
func Detect() Level {
	detectOnce.Do(func() {
		selected = detectLevel()
		detected.Store(true)
	})
	return selected
}

// Detected reports whether the CPU capabilities have already been checked.
func Detected() bool {
	return detected.Load()
}

// detectLevel walks the fallback chain AVX-512 -> AVX2 -> SSE2 -> scalar.
func detectLevel() Level {
	switch {
	case cpu.X86.HasAVX512F && cpu.X86.HasAVX512BW:
		return LevelAVX512
	case cpu.X86.HasAVX2:
		return LevelAVX2
	case cpu.X86.HasSSE2, cpu.ARM64.HasASIMD:
		return LevelSSE2
	default:
		return LevelScalar
	}
}

// Cells converts a batch of flux intervals into cell counts clamped to [lo, hi],
// using the kernel selected for this CPU. It returns the number of entries written,
// which is the shorter of the two slices.
func Cells(dst []uint8, deltas []uint32, bitcellNs uint32, lo, hi uint8) int {
	return CellsWith(Detect(), dst, deltas, bitcellNs, lo, hi)
}

// CellsWith is like Cells but runs the kernel of the given level.
// Unknown levels fall back to the scalar kernel.
func CellsWith(level Level, dst []uint8, deltas []uint32, bitcellNs uint32, lo, hi uint8) int {
	n := len(deltas)
	if len(dst) < n {
		n = len(dst)
	}
	dst, deltas = dst[:n], deltas[:n]

	if bitcellNs == 0 {
		for i := range dst {
			dst[i] = lo
		}
		return n
	}
	if level < LevelScalar || int(level) >= len(kernels) {
		level = LevelScalar
	}
	kernels[level](dst, deltas, bitcellNs, lo, hi)
	return n
}
