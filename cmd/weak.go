package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sergev/fluxclock/flux"
)

var weakMaxRegions int

type regionReport struct {
	StartNs int64 `yaml:"start_ns"`
	EndNs   int64 `yaml:"end_ns"`
	Cells   int   `yaml:"cells"`
}

type weakReport struct {
	Preset      string         `yaml:"preset"`
	Revolutions int            `yaml:"revolutions"`
	Best        int            `yaml:"best_revolution"`
	BestRate    float64        `yaml:"best_success_rate"`
	Cells       int            `yaml:"cells"`
	WeakCells   int            `yaml:"weak_cells"`
	Damaged     int            `yaml:"damaged_cells"`
	Regions     []regionReport `yaml:"regions,omitempty"`
}

var weakCmd = &cobra.Command{
	Use:   "weak FILE...",
	Short: "Find weak bits across revolutions",
	Long: "Compare the flux timing of several revolutions of one track and report the cells " +
		"that vary between them. A single capture is split at its index pulses; " +
		"several captures are taken as one revolution each.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, cfg, err := selectPreset()
		if err != nil {
			return err
		}
		weakCfg, err := p.WeakBits()
		if err != nil {
			return fmt.Errorf("preset %q: %w", p.Name, err)
		}

		var revs []*flux.Buffer
		for _, path := range args {
			buf, err := loadCapture(path)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				revs, err = flux.SplitRevolutions(buf)
				if err != nil {
					return err
				}
				break
			}
			revs = append(revs, buf)
		}

		d, err := newDecoder(p, cfg, false)
		if err != nil {
			return err
		}
		m, err := d.Revolutions(revs, weakCfg)
		if err != nil {
			return err
		}

		report := weakReport{
			Preset:      p.Name,
			Revolutions: len(revs),
			Best:        m.Best,
			BestRate:    m.BestResult().Stats.SuccessRate(),
			Cells:       m.Track.TrackLength(),
			WeakCells:   m.Track.WeakCount(),
			Damaged:     m.Track.DamagedCount(),
		}
		for i, r := range m.Regions {
			if weakMaxRegions > 0 && i >= weakMaxRegions {
				break
			}
			report.Regions = append(report.Regions, regionReport{StartNs: r.StartNs, EndNs: r.EndNs, Cells: r.Bits})
		}

		return emit(cmd.OutOrStdout(), report, func(w io.Writer) {
			fmt.Fprintf(w, "%d revolutions, %d cells\n", report.Revolutions, report.Cells)
			fmt.Fprintf(w, "  Best revolution: %d (", report.Best)
			rate(w, report.BestRate)
			fmt.Fprintf(w, ")\n")
			fmt.Fprintf(w, "  Weak cells:      ")
			count(w, report.WeakCells)
			fmt.Fprintf(w, "\n  Damaged cells:   ")
			count(w, report.Damaged)
			fmt.Fprintf(w, "\n")
			for _, r := range report.Regions {
				fmt.Fprintf(w, "  Weak region %d..%d ns, %d cells\n", r.StartNs, r.EndNs, r.Cells)
			}
		})
	},
}

func init() {
	weakCmd.Flags().IntVar(&weakMaxRegions, "max-regions", 0, "report at most this many weak regions (0 for all)")
	rootCmd.AddCommand(weakCmd)
}
