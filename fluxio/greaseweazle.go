package fluxio

import (
	"fmt"
	"math"

	"github.com/sergev/fluxclock/flux"
)

// Greaseweazle flux stream opcodes
const (
	FLUXOP_INDEX = 1
	FLUXOP_SPACE = 2
)

// DefaultSampleFreqHz is the sample clock of Greaseweazle F7 devices.
const DefaultSampleFreqHz = 72000000

// readN28 decodes a 28-bit value from Greaseweazle N28 encoding
// Returns the decoded value and the number of bytes consumed
func readN28(data []byte, offset int) (uint32, int, error) {
	if offset+4 > len(data) {
		return 0, 0, fmt.Errorf("insufficient data for N28 encoding at offset %d", offset)
	}

	b0 := data[offset]
	b1 := data[offset+1]
	b2 := data[offset+2]
	b3 := data[offset+3]

	value := ((uint32(b0) & 0xfe) >> 1) |
		((uint32(b1) & 0xfe) << 6) |
		((uint32(b2) & 0xfe) << 13) |
		((uint32(b3) & 0xfe) << 20)

	return value, 4, nil
}

// Encode a 28-bit value into N28 format (4 bytes).
// N28 encoding packs 28 bits across 4 bytes, with bit 0 of each byte set to 1.
func encodeN28(value uint32) []byte {
	result := make([]byte, 4)
	result[0] = byte(1 | ((value & 0x7F) << 1))
	result[1] = byte(1 | (((value >> 7) & 0x7F) << 1))
	result[2] = byte(1 | (((value >> 14) & 0x7F) << 1))
	result[3] = byte(1 | (((value >> 21) & 0x7F) << 1))
	return result
}

// ParseGreaseweazle decodes a raw Greaseweazle flux stream into a buffer
// of absolute sample times. Index pulses become samples flagged FlagIndex.
// Decoding stops at the terminating zero byte or at the end of data.
func ParseGreaseweazle(data []byte, sampleFreqHz uint32) (*flux.Buffer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty flux data")
	}
	if sampleFreqHz == 0 {
		return nil, fmt.Errorf("sample frequency 0 Hz: %w", flux.ErrInvalidConfig)
	}

	buf := flux.NewBuffer(len(data), float64(sampleFreqHz))
	ticksAccumulated := uint64(0)

	i := 0
	for i < len(data) {
		b := data[i]

		switch {
		case b == 0x00:
			// End of stream
			return buf, nil

		case b == 0xFF:
			// Special opcode
			if i+1 >= len(data) {
				return nil, fmt.Errorf("incomplete opcode at offset %d", i)
			}
			opcode := data[i+1]
			i += 2

			switch opcode {
			case FLUXOP_INDEX:
				// Index pulse, some ticks after the last transition.
				// It doesn't advance the cursor.
				n28, consumed, err := readN28(data, i)
				if err != nil {
					return nil, fmt.Errorf("failed to read INDEX N28: %w", err)
				}
				i += consumed
				if err := buf.AddSamplePosition(float64(ticksAccumulated+uint64(n28)), flux.FlagIndex); err != nil {
					return nil, fmt.Errorf("index pulse at offset %d: %w", i, err)
				}

			case FLUXOP_SPACE:
				// Time gap with no transitions
				n28, consumed, err := readN28(data, i)
				if err != nil {
					return nil, fmt.Errorf("failed to read SPACE N28: %w", err)
				}
				i += consumed
				ticksAccumulated += uint64(n28)

			default:
				return nil, fmt.Errorf("unknown opcode 0x%02x at offset %d", opcode, i-1)
			}

		case b < 250:
			// Direct interval: 1-249 ticks
			ticksAccumulated += uint64(b)
			if err := buf.AddSamplePosition(float64(ticksAccumulated), 0); err != nil {
				return nil, fmt.Errorf("transition at offset %d: %w", i, err)
			}
			i++

		default:
			// Extended interval: 250-254
			if i+1 >= len(data) {
				return nil, fmt.Errorf("incomplete extended interval at offset %d", i)
			}
			delta := 250 + uint64(b-250)*255 + uint64(data[i+1]) - 1
			ticksAccumulated += delta
			if err := buf.AddSamplePosition(float64(ticksAccumulated), 0); err != nil {
				return nil, fmt.Errorf("transition at offset %d: %w", i, err)
			}
			i += 2
		}
	}
	return buf, nil
}

// EncodeGreaseweazle converts a buffer into a Greaseweazle flux stream.
// Times are rounded to whole ticks of the sample clock.
func EncodeGreaseweazle(buf *flux.Buffer, sampleFreqHz uint32) ([]byte, error) {
	if sampleFreqHz == 0 {
		return nil, fmt.Errorf("sample frequency 0 Hz: %w", flux.ErrInvalidConfig)
	}
	var result []byte
	tickPeriodNs := 1e9 / float64(sampleFreqHz)
	lastTicks := uint64(0)

	for i := 0; i < buf.Len(); i++ {
		s := buf.At(i)
		ticks := uint64(math.Round(s.Time() / tickPeriodNs))
		if ticks < lastTicks {
			ticks = lastTicks
		}
		interval := ticks - lastTicks
		if interval > 1<<28-1 {
			return nil, fmt.Errorf("interval of %d ticks at sample %d: %w", interval, i, flux.ErrOutOfOrder)
		}

		if s.IsIndex() {
			// Index pulse relative to the previous transition
			result = append(result, 0xFF, FLUXOP_INDEX)
			result = append(result, encodeN28(uint32(interval))...)
			continue
		}

		// Minimum interval is 1 tick
		if interval == 0 {
			interval = 1
		}
		lastTicks += interval

		switch {
		case interval < 250:
			// Direct encoding: single byte (1-249)
			result = append(result, byte(interval))
		case interval < 1525:
			// Extended encoding: base byte + offset byte
			// value = 250 + (base - 250) * 255 + offset - 1
			base := byte(0xFA)
			offset := uint32(interval + 1 - 250)
			for offset >= 255 {
				base++
				offset -= 255
			}
			result = append(result, base, byte(offset))
		default:
			// Use FLUXOP_SPACE for the gap, then a one tick transition
			result = append(result, 0xFF, FLUXOP_SPACE)
			result = append(result, encodeN28(uint32(interval-1))...)
			result = append(result, 1)
		}
	}

	// Terminate stream with null byte
	result = append(result, 0x00)
	return result, nil
}
