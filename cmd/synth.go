package cmd

import (
	"bytes"
	"fmt"
	"math"
	"math/rand"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sergev/fluxclock/flux"
	"github.com/sergev/fluxclock/fluxio"
	"github.com/sergev/fluxclock/mfm"
)

var (
	synthBytes       int
	synthRevolutions int
	synthJitterNs    float64
	synthSeed        int64
	synthWeakBytes   int
)

var synthCmd = &cobra.Command{
	Use:   "synth FILE",
	Short: "Write a synthetic MFM flux capture",
	Long: "Write a synthetic capture of one MFM track: a gap, a sync mark and random data, " +
		"filled with gap bytes to a full rotation, repeated for several revolutions with " +
		"random timing jitter. The output format follows the file extension.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, _, err := selectPreset()
		if err != nil {
			return err
		}
		rotationNs := p.RotationNs()
		if rotationNs <= 0 || !(p.BitcellNs > 0) {
			return fmt.Errorf("preset %q has no rotation speed", p.Name)
		}
		if synthRevolutions < 1 || synthBytes < 0 || synthWeakBytes < 0 {
			return fmt.Errorf("revolutions must be positive, byte counts not negative")
		}
		if synthJitterNs < 0 || synthJitterNs >= p.BitcellNs/2 {
			return fmt.Errorf("jitter %v ns must be in [0, %v)", synthJitterNs, p.BitcellNs/2)
		}

		rng := rand.New(rand.NewSource(synthSeed))
		data := make([]byte, synthBytes)
		rng.Read(data)

		cells := int(rotationNs / p.BitcellNs)
		w := mfm.NewWriter(cells)
		w.WriteGap(80)
		w.WriteSync()
		for _, b := range data {
			w.WriteByte(b)
		}
		weakStart := w.Len()
		w.WriteGap(synthWeakBytes)
		weakEnd := w.Len()
		for w.Len() < cells {
			w.WriteGap(1)
		}

		track, err := mfm.Synthesize(w.Bytes(), p.BitcellNs)
		if err != nil {
			return err
		}
		buf, err := repeatTrack(track, rotationNs, p.BitcellNs, weakStart, weakEnd, rng)
		if err != nil {
			return err
		}

		var out bytes.Buffer
		switch fluxio.Detect(args[0], nil) {
		case fluxio.FormatGreaseweazle:
			gwBuf := flux.NewBuffer(buf.Len(), float64(gwFreq))
			for i := 0; i < buf.Len(); i++ {
				s := buf.At(i)
				if err := gwBuf.AddTime(s.Time(), s.Flags); err != nil {
					return err
				}
			}
			raw, err := fluxio.EncodeGreaseweazle(gwBuf, gwFreq)
			if err != nil {
				return err
			}
			out.Write(raw)
		case fluxio.FormatSCP:
			raw, err := fluxio.EncodeSCP(buf)
			if err != nil {
				return err
			}
			out.Write(raw)
		case fluxio.FormatKryoFlux:
			return fmt.Errorf("writing KryoFlux streams is not supported")
		default:
			if err := fluxio.WriteText(&out, buf); err != nil {
				return err
			}
		}
		if err := os.WriteFile(args[0], out.Bytes(), 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}

		logger.WithFields(logrus.Fields{
			"file":        args[0],
			"revolutions": synthRevolutions,
			"samples":     buf.Len(),
		}).Info("Wrote synthetic capture")
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d revolutions of %d bitcells to %s\n", synthRevolutions, w.Len(), args[0])
		return nil
	},
}

// repeatTrack lays out copies of one revolution back to back, each starting
// with an index pulse, and ends with a closing index pulse. Every transition
// moves by up to jitterNs. Transitions of bitcells in [weakStart, weakEnd)
// move by up to a whole bitcell instead, so their intervals differ between
// revolutions by about as much as the intervals themselves.
func repeatTrack(track *flux.Buffer, rotationNs, bitcellNs float64, weakStart, weakEnd int, rng *rand.Rand) (*flux.Buffer, error) {
	out := flux.NewBuffer(track.Len()*synthRevolutions+synthRevolutions+1, 0)
	for r := 0; r < synthRevolutions; r++ {
		origin := float64(r) * rotationNs
		if err := out.AddTime(origin, flux.FlagIndex|flux.FlagSynthetic); err != nil {
			return nil, err
		}
		prev := origin
		for i := 0; i < track.Len(); i++ {
			s := track.At(i)
			if s.IsIndex() {
				continue
			}
			spread := synthJitterNs
			cell := int(math.Round(s.Time()/bitcellNs)) - 1
			if cell >= weakStart && cell < weakEnd {
				spread = bitcellNs
			}
			t := origin + s.Time() + (rng.Float64()*2-1)*spread
			t = math.Min(math.Max(t, prev), origin+rotationNs)
			if err := out.AddTime(t, s.Flags); err != nil {
				return nil, err
			}
			prev = t
		}
	}
	if err := out.AddTime(float64(synthRevolutions)*rotationNs, flux.FlagIndex|flux.FlagSynthetic); err != nil {
		return nil, err
	}
	return out, nil
}

func init() {
	synthCmd.Flags().IntVar(&synthBytes, "bytes", 512, "number of random data bytes")
	synthCmd.Flags().IntVarP(&synthRevolutions, "revolutions", "n", 1, "number of revolutions")
	synthCmd.Flags().Float64Var(&synthJitterNs, "jitter", 0, "maximum timing jitter in ns")
	synthCmd.Flags().Int64Var(&synthSeed, "seed", 42, "random seed")
	synthCmd.Flags().IntVar(&synthWeakBytes, "weak", 0, "number of gap bytes after the data written as weak bits, moved by up to a bitcell")
	rootCmd.AddCommand(synthCmd)
}
