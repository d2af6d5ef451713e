package fluxio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sergev/fluxclock/flux"
)

// ReadText parses a text capture: one sample per line, given as an absolute
// time followed by an optional "I" for index pulses. Blank lines and text
// after '#' are ignored.
//
// With sampleRate 0 the times are nanoseconds; otherwise they are positions
// of the sample clock, which may be fractional.
func ReadText(r io.Reader, sampleRate float64) (*flux.Buffer, error) {
	buf := flux.NewBuffer(0, sampleRate)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) > 2 {
			return nil, fmt.Errorf("line %d: too many fields", lineNo)
		}

		var flags flux.Flags
		if len(fields) == 2 {
			if !strings.EqualFold(fields[1], "I") {
				return nil, fmt.Errorf("line %d: unknown flag %q", lineNo, fields[1])
			}
			flags |= flux.FlagIndex
		}

		value, err := strconv.ParseFloat(fields[0], 64)
		if err != nil || value < 0 {
			return nil, fmt.Errorf("line %d: invalid time %q", lineNo, fields[0])
		}
		if sampleRate > 0 {
			err = buf.AddSamplePosition(value, flags)
		} else {
			err = buf.AddTime(value, flags)
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read text capture: %w", err)
	}
	return buf, nil
}

// WriteText writes a buffer as a text capture with times in nanoseconds.
func WriteText(w io.Writer, buf *flux.Buffer) error {
	bw := bufio.NewWriter(w)
	for i := 0; i < buf.Len(); i++ {
		s := buf.At(i)
		line := strconv.FormatInt(s.NS, 10)
		if s.Frac != 0 {
			frac := strconv.FormatFloat(s.Frac, 'f', -1, 64)
			line += strings.TrimPrefix(frac, "0")
		}
		if s.IsIndex() {
			line += " I"
		}
		if _, err := fmt.Fprintln(bw, line); err != nil {
			return err
		}
	}
	return bw.Flush()
}
