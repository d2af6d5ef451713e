// Package fluxio reads and writes flux captures.
//
// Four formats are supported: a plain text list of sample times, the raw
// flux stream of Greaseweazle devices, KryoFlux stream files and SuperCard
// Pro flux dumps. All of them produce a flux.Buffer; KryoFlux streams are
// read only.
package fluxio

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sergev/fluxclock/flux"
)

// Format of a capture file.
type Format int

const (
	FormatAuto Format = iota
	FormatText
	FormatGreaseweazle
	FormatKryoFlux
	FormatSCP
)

// String returns the name of the format.
func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatGreaseweazle:
		return "gw"
	case FormatKryoFlux:
		return "kf"
	case FormatSCP:
		return "scp"
	default:
		return "auto"
	}
}

// ParseFormat converts a format name.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "", "auto":
		return FormatAuto, nil
	case "text", "txt":
		return FormatText, nil
	case "gw", "greaseweazle", "raw":
		return FormatGreaseweazle, nil
	case "kf", "kryoflux":
		return FormatKryoFlux, nil
	case "scp", "supercardpro":
		return FormatSCP, nil
	default:
		return FormatAuto, fmt.Errorf("unknown capture format %q", name)
	}
}

// Detect guesses the format from the file name, then from the contents:
// streams opening with a KryoFlux out-of-band block are KryoFlux streams,
// captures made only of printable text are text captures.
// SuperCard Pro dumps have no signature and are never guessed from contents.
func Detect(name string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".flux":
		return FormatText
	case ".raw", ".gw":
		return FormatGreaseweazle
	case ".kf":
		return FormatKryoFlux
	case ".scp":
		return FormatSCP
	}
	if len(data) >= 4 && data[0] == kfOOB && data[1] >= 0x01 && data[1] <= 0x04 {
		return FormatKryoFlux
	}
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	for _, b := range head {
		if b != '\n' && b != '\r' && b != '\t' && (b < 0x20 || b > 0x7e) {
			return FormatGreaseweazle
		}
	}
	return FormatText
}

// Load reads a capture file. The sample frequency applies to Greaseweazle streams;
// KryoFlux and SuperCard Pro captures carry fixed clocks.
func Load(path string, format Format, sampleFreqHz uint32) (*flux.Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture: %w", err)
	}
	if format == FormatAuto {
		format = Detect(path, data)
	}

	var buf *flux.Buffer
	switch format {
	case FormatText:
		buf, err = ReadText(bytes.NewReader(data), 0)
	case FormatKryoFlux:
		buf, err = ParseKryoFlux(data)
	case FormatSCP:
		buf, err = ParseSCP(data)
	default:
		buf, err = ParseGreaseweazle(data, sampleFreqHz)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return buf, nil
}
