package fluxio

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/sergev/fluxclock/flux"
)

// KryoFlux clocks
const (
	KryoFluxSampleClock = 24027428.57142857
	KryoFluxIndexClock  = 3003428.5714285625
)

// KryoFlux stream block types
const (
	kfFlux2Max = 0x07
	kfNop1     = 0x08
	kfNop2     = 0x09
	kfNop3     = 0x0a
	kfOvl16    = 0x0b
	kfFlux3    = 0x0c
	kfOOB      = 0x0d

	kfOOBIndex = 0x02
	kfOOBEOF   = 0x0d
)

// kfIndex is an Index out-of-band block.
type kfIndex struct {
	streamPosition uint32 // Stream position of the flux during which the index was seen
	sampleCounter  uint32 // Sample clocks from the previous flux to the index
}

// ParseKryoFlux decodes a KryoFlux stream file into a buffer of absolute
// sample times, with index pulses taken from the Index blocks.
//
// Stream positions count only in-band bytes, so out-of-band blocks
// do not advance them. Decoding stops at the EOF block or at the end of data.
func ParseKryoFlux(data []byte) (*flux.Buffer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty flux data")
	}

	var ticks []uint64    // Absolute time of each transition in sample clocks
	var starts []uint32   // Stream position where each transition's cell begins
	var indexes []kfIndex // Index blocks in stream order

	ticksAccumulated := uint64(0) // Time of the last transition
	cell := uint64(0)             // Overflow carried into the current cell
	cellStart := uint32(0)
	inCell := false
	pos := uint32(0)

	emit := func(value uint64, size int) {
		if !inCell {
			cellStart = pos
		}
		ticksAccumulated += cell + value
		ticks = append(ticks, ticksAccumulated)
		starts = append(starts, cellStart)
		cell = 0
		inCell = false
		pos += uint32(size)
	}

	i := 0
loop:
	for i < len(data) {
		val := data[i]
		switch {
		case val <= kfFlux2Max:
			// Flux2 block: 2-byte sequence
			if i+1 >= len(data) {
				return nil, fmt.Errorf("incomplete Flux2 block at offset %d", i)
			}
			emit(uint64(val)<<8|uint64(data[i+1]), 2)
			i += 2
		case val == kfNop1, val == kfNop2, val == kfNop3:
			// NOP blocks: 1 to 3 bytes
			n := int(val-kfNop1) + 1
			pos += uint32(n)
			i += n
		case val == kfOvl16:
			// Ovl16 block: add 0x10000 to next flux value
			if !inCell {
				cellStart = pos
				inCell = true
			}
			cell += 0x10000
			pos++
			i++
		case val == kfFlux3:
			// Flux3 block: 3-byte sequence
			if i+2 >= len(data) {
				return nil, fmt.Errorf("incomplete Flux3 block at offset %d", i)
			}
			emit(uint64(data[i+1])<<8|uint64(data[i+2]), 3)
			i += 3
		case val == kfOOB:
			// OOB block: 4-byte header + optional data
			if i+3 >= len(data) {
				return nil, fmt.Errorf("incomplete OOB header at offset %d", i)
			}
			oobType := data[i+1]
			if oobType == kfOOBEOF {
				break loop
			}
			oobSize := int(data[i+2]) | int(data[i+3])<<8
			if i+4+oobSize > len(data) {
				return nil, fmt.Errorf("incomplete OOB data at offset %d", i)
			}
			if oobType == kfOOBIndex && oobSize >= 12 {
				indexes = append(indexes, kfIndex{
					streamPosition: binary.LittleEndian.Uint32(data[i+4 : i+8]),
					sampleCounter:  binary.LittleEndian.Uint32(data[i+8 : i+12]),
				})
			}
			i += 4 + oobSize
		default:
			// Flux1 block: 1 byte (0x0E-0xFF)
			emit(uint64(val), 1)
			i++
		}
	}

	// Index pulses fall inside the cell that starts at their stream position
	indexTicks := make([]uint64, 0, len(indexes))
	for _, idx := range indexes {
		k := sort.Search(len(starts), func(j int) bool { return starts[j] >= idx.streamPosition })
		t := uint64(idx.sampleCounter)
		if k > 0 {
			t += ticks[k-1]
		}
		if k < len(ticks) && t > ticks[k] {
			t = ticks[k]
		}
		indexTicks = append(indexTicks, t)
	}

	buf := flux.NewBuffer(len(ticks)+len(indexTicks), KryoFluxSampleClock)
	j := 0
	for _, t := range ticks {
		for j < len(indexTicks) && indexTicks[j] <= t {
			if err := buf.AddSamplePosition(float64(indexTicks[j]), flux.FlagIndex); err != nil {
				return nil, fmt.Errorf("index pulse %d: %w", j, err)
			}
			j++
		}
		if err := buf.AddSamplePosition(float64(t), 0); err != nil {
			return nil, err
		}
	}
	for ; j < len(indexTicks); j++ {
		if err := buf.AddSamplePosition(float64(indexTicks[j]), flux.FlagIndex); err != nil {
			return nil, fmt.Errorf("index pulse %d: %w", j, err)
		}
	}
	return buf, nil
}
