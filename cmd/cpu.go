package cmd

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/sergev/fluxclock/bitcell"
)

type cpuReport struct {
	Level  string   `yaml:"level"`
	Lanes  int      `yaml:"lanes"`
	Checks []string `yaml:"kernels_checked"`
}

var cpuCmd = &cobra.Command{
	Use:   "cpu",
	Short: "Show the bit extraction kernel selected for this CPU",
	Long: "Check the CPU capabilities, show the selected bit extraction kernel, " +
		"and check that every kernel agrees with the scalar reference.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		level := bitcell.Detect()

		// Random intervals of 1 to 5 bitcells around 2us
		rng := rand.New(rand.NewSource(42))
		deltas := make([]uint32, 1000)
		for i := range deltas {
			deltas[i] = uint32(1000 + rng.Intn(9000))
		}
		want := make([]uint8, len(deltas))
		bitcell.CellsWith(bitcell.LevelScalar, want, deltas, 2000, 1, 8)

		report := cpuReport{Level: level.String(), Lanes: level.Lanes()}
		got := make([]uint8, len(deltas))
		for _, l := range bitcell.Levels() {
			bitcell.CellsWith(l, got, deltas, 2000, 1, 8)
			for i := range got {
				if got[i] != want[i] {
					return fmt.Errorf("kernel %s disagrees with scalar at interval %d: %d != %d",
						l, i, got[i], want[i])
				}
			}
			report.Checks = append(report.Checks, l.String())
		}

		return emit(cmd.OutOrStdout(), report, func(w io.Writer) {
			fmt.Fprintf(w, "Kernel: ")
			cyan.Fprintf(w, "%s", report.Level)
			fmt.Fprintf(w, " (%d lanes)\n", report.Lanes)
			for _, name := range report.Checks {
				fmt.Fprintf(w, "  %-8s ", name)
				green.Fprintf(w, "ok\n")
			}
		})
	},
}

func init() {
	rootCmd.AddCommand(cpuCmd)
}
