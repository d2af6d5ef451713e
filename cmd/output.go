package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

var (
	// Color definitions
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

// emit writes a report as YAML, or through the text printer.
func emit(w io.Writer, report any, text func(w io.Writer)) error {
	if outputFormat == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode YAML: %w", err)
		}
		return enc.Close()
	}
	text(w)
	return nil
}

// rate prints a success rate, coloured by how clean the decode was.
func rate(w io.Writer, r float64) {
	c := green
	switch {
	case r < 0.90:
		c = red
	case r < 0.99:
		c = yellow
	}
	c.Fprintf(w, "%.2f%%", r*100)
}

// count prints a number in yellow when it is not zero.
func count(w io.Writer, n int) {
	if n == 0 {
		green.Fprintf(w, "%d", n)
		return
	}
	yellow.Fprintf(w, "%d", n)
}
