package fluxio

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/sergev/fluxclock/flux"
)

// SuperCard Pro flux dumps: the 40-byte READFLUX info block (index time and
// word count of up to five revolutions, big-endian) followed by the flux RAM,
// 16-bit big-endian intervals of 25ns where 0 means add 0x10000.
const (
	SCPSampleFreqHz = 40000000
	SCPMaxRevs      = 5
	scpInfoSize     = SCPMaxRevs * 8
	scpTickNs       = 25
)

// ParseSCP decodes a SuperCard Pro flux dump. Every revolution starts and
// ends with an index pulse, so n revolutions give n+1 index samples.
func ParseSCP(data []byte) (*flux.Buffer, error) {
	if len(data) < scpInfoSize {
		return nil, fmt.Errorf("flux info truncated: %d bytes", len(data))
	}

	buf := flux.NewBuffer((len(data)-scpInfoSize)/2+SCPMaxRevs+1, SCPSampleFreqHz)
	if err := buf.AddSamplePosition(0, flux.FlagIndex); err != nil {
		return nil, err
	}

	pos := scpInfoSize
	ticks := uint64(0)
	revEnd := uint64(0)
	revs := 0
	for r := 0; r < SCPMaxRevs; r++ {
		indexTime := binary.BigEndian.Uint32(data[r*8 : r*8+4])
		words := binary.BigEndian.Uint32(data[r*8+4 : r*8+8])
		if indexTime == 0 {
			break
		}
		revEnd += uint64(indexTime)
		for w := uint32(0); w < words; w++ {
			if pos+2 > len(data) {
				return nil, fmt.Errorf("revolution %d: flux data truncated at word %d", r, w)
			}
			val := binary.BigEndian.Uint16(data[pos : pos+2])
			pos += 2
			if val == 0 {
				// Overflow: add 0x10000 and continue
				ticks += 0x10000
				continue
			}
			ticks += uint64(val)
			if err := buf.AddSamplePosition(float64(ticks), 0); err != nil {
				return nil, err
			}
		}
		if err := buf.AddSamplePosition(float64(revEnd), flux.FlagIndex); err != nil {
			return nil, fmt.Errorf("revolution %d: %w", r, err)
		}
		revs++
	}
	if revs == 0 {
		return nil, fmt.Errorf("no revolutions in flux info")
	}
	return buf, nil
}

// EncodeSCP converts a buffer into a SuperCard Pro flux dump.
// Times are taken from the first index pulse and rounded to 25ns.
// Revolutions end at the following index pulses; without them the whole
// capture is one revolution. At most five revolutions are kept.
func EncodeSCP(buf *flux.Buffer) ([]byte, error) {
	if buf.Len() == 0 {
		return nil, fmt.Errorf("empty flux data")
	}
	toTicks := func(t float64) uint64 { return uint64(math.Round(t / scpTickNs)) }

	origin := 0.0
	var ends []uint64 // End of each revolution, in ticks from origin
	positions := buf.IndexPositions()
	if len(positions) > 0 {
		origin = buf.At(positions[0]).Time()
		for _, p := range positions[1:] {
			ends = append(ends, toTicks(buf.At(p).Time()-origin))
		}
	}
	if len(ends) == 0 {
		ends = append(ends, toTicks(buf.At(buf.Len()-1).Time()-origin))
	}
	if len(ends) > SCPMaxRevs {
		ends = ends[:SCPMaxRevs]
	}

	result := make([]byte, scpInfoSize)
	lastTicks := uint64(0)
	words := uint32(0)
	rev := 0
	closeRev := func() {
		start := uint64(0)
		if rev > 0 {
			start = ends[rev-1]
		}
		binary.BigEndian.PutUint32(result[rev*8:], uint32(ends[rev]-start))
		binary.BigEndian.PutUint32(result[rev*8+4:], words)
		words = 0
		rev++
	}

	for i := 0; i < buf.Len() && rev < len(ends); i++ {
		s := buf.At(i)
		if s.IsIndex() || s.Time() < origin {
			continue
		}
		ticks := toTicks(s.Time() - origin)
		for rev < len(ends) && ticks > ends[rev] {
			closeRev()
		}
		if rev == len(ends) {
			break
		}

		interval := uint64(1)
		if ticks > lastTicks {
			interval = ticks - lastTicks
		}
		lastTicks += interval

		// Handle overflow: emit 0x0000 for every 0x10000 ticks
		for interval >= 0x10000 {
			result = append(result, 0x00, 0x00)
			words++
			interval -= 0x10000
		}
		// Ensure minimum interval of 1 (0 would be interpreted as overflow)
		if interval == 0 {
			interval = 1
			lastTicks++
		}
		result = binary.BigEndian.AppendUint16(result, uint16(interval))
		words++
	}
	for rev < len(ends) {
		closeRev()
	}
	return result, nil
}
