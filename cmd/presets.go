package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sergev/fluxclock/config"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List the disk format presets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		presets := make([]config.Preset, 0, len(appConfig.Presets))
		for _, name := range appConfig.Names() {
			p, err := appConfig.Preset(name)
			if err != nil {
				return err
			}
			presets = append(presets, p)
		}

		report := struct {
			Default string          `yaml:"default"`
			Presets []config.Preset `yaml:"presets"`
		}{appConfig.Default, presets}

		return emit(cmd.OutOrStdout(), report, func(w io.Writer) {
			for _, p := range presets {
				marker := " "
				if p.Name == appConfig.Default {
					marker = "*"
				}
				cyan.Fprintf(w, "%s %-12s", marker, p.Name)
				fmt.Fprintf(w, " %-8s %6.0f ns  %s\n", p.Algorithm, p.BitcellNs, p.Description)
			}
		})
	},
}

func init() {
	rootCmd.AddCommand(presetsCmd)
}
