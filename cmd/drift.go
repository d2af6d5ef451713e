package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sergev/fluxclock/flux"
)

type driftReport struct {
	File        string    `yaml:"file"`
	RPM         int       `yaml:"rpm"`
	KBps        int       `yaml:"kbps"`
	Drift       float64   `yaml:"drift"`
	Revolutions []float64 `yaml:"revolution_ms,omitempty"`
}

var driftCmd = &cobra.Command{
	Use:   "drift FILE",
	Short: "Measure rotation speed and data rate of a capture",
	Long: "Measure the rotation speed and data rate of a capture from its index pulses, " +
		"and the drift of the drive from the nominal speed.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		buf, err := loadCapture(args[0])
		if err != nil {
			return err
		}
		rpm, kbps := flux.DetectRates(buf)
		report := driftReport{
			File:  args[0],
			RPM:   rpm,
			KBps:  kbps,
			Drift: flux.EstimateDrift(buf, flux.RotationNs(rpm)),
		}
		positions := buf.IndexPositions()
		for i := 1; i < len(positions); i++ {
			report.Revolutions = append(report.Revolutions, buf.Delta(positions[i-1], positions[i])/1e6)
		}

		return emit(cmd.OutOrStdout(), report, func(w io.Writer) {
			fmt.Fprintf(w, "%s: %d RPM, %d kbps\n", report.File, report.RPM, report.KBps)
			if len(report.Revolutions) == 0 {
				yellow.Fprintf(w, "  Fewer than two index pulses, drift unknown\n")
				return
			}
			c := green
			if report.Drift < 0.98 || report.Drift > 1.02 {
				c = yellow
			}
			fmt.Fprintf(w, "  Drift: ")
			c.Fprintf(w, "%+.2f%%\n", (report.Drift-1)*100)
			for i, ms := range report.Revolutions {
				fmt.Fprintf(w, "  Revolution %d: %.3f ms\n", i, ms)
			}
		})
	},
}

func init() {
	rootCmd.AddCommand(driftCmd)
}
