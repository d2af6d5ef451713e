package cmd

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sergev/fluxclock/config"
	"github.com/sergev/fluxclock/decode"
	"github.com/sergev/fluxclock/flux"
	"github.com/sergev/fluxclock/fluxio"
	"github.com/sergev/fluxclock/metrics"
	"github.com/sergev/fluxclock/pll"
)

// Command line options shared by all commands
var (
	configFile    string
	presetName    string
	algorithmName string
	logLevel      string
	outputFormat  string
	inputFormat   string
	gwFreq        uint32
	dumpMetrics   bool
)

var (
	appConfig *config.Config
	logger    = logrus.New()
	registry  *prometheus.Registry
	recorder  *metrics.Recorder
)

var rootCmd = &cobra.Command{
	Use:   "fluxclock",
	Short: "Recover bitcells from floppy flux captures",
	Long: "The fluxclock tool decodes flux transition captures into bitcell streams " +
		"with an adaptive clock recovery loop, and finds weak bits across revolutions.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("failed to parse log level: %w", err)
		}
		logger.SetLevel(level)
		logger.SetOutput(cmd.ErrOrStderr())

		if configFile != "" {
			appConfig, err = config.Load(configFile)
		} else {
			appConfig, err = config.Initialize()
		}
		if err != nil {
			return err
		}
		if _, err := fluxio.ParseFormat(inputFormat); err != nil {
			return err
		}
		switch outputFormat {
		case "text", "yaml":
		default:
			return fmt.Errorf("unknown output format %q, use text or yaml", outputFormat)
		}

		registry = prometheus.NewRegistry()
		recorder, err = metrics.NewRecorder(registry)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if !dumpMetrics || registry == nil {
			return nil
		}
		return metrics.WriteText(cmd.OutOrStdout(), registry)
	},
}

func init() {
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "configuration file (default ~/.fluxclock)")
	flags.StringVarP(&presetName, "preset", "p", "", "disk format preset (default from configuration)")
	flags.StringVarP(&algorithmName, "algorithm", "a", "", "clock recovery algorithm: classic or kalman (default from preset)")
	flags.StringVar(&logLevel, "log-level", "warning", "log level: debug, info, warning, error")
	flags.StringVarP(&outputFormat, "format", "f", "text", "output format: text or yaml")
	flags.StringVar(&inputFormat, "input", "auto", "capture format: auto, text, gw, kf or scp")
	flags.Uint32Var(&gwFreq, "gw-freq", fluxio.DefaultSampleFreqHz, "sample frequency of Greaseweazle streams in Hz")
	flags.BoolVar(&dumpMetrics, "metrics", false, "print decoding metrics in Prometheus text format")
}

// selectPreset returns the chosen preset with its clock recovery parameters.
func selectPreset() (config.Preset, pll.Config, error) {
	p, err := appConfig.Preset(presetName)
	if err != nil {
		return config.Preset{}, pll.Config{}, err
	}
	cfg, err := p.PLL()
	if err != nil {
		return config.Preset{}, pll.Config{}, fmt.Errorf("preset %q: %w", p.Name, err)
	}
	if algorithmName != "" {
		cfg.Algorithm, err = pll.ParseAlgorithm(algorithmName)
		if err != nil {
			return config.Preset{}, pll.Config{}, err
		}
	}
	return p, cfg, nil
}

// newDecoder creates a decoder wired to the logger and the metrics recorder.
// With compensate set, rotation drift is measured against the preset speed.
func newDecoder(p config.Preset, cfg pll.Config, compensate bool) (*decode.Decoder, error) {
	opts := []decode.Option{
		decode.WithLogger(logger),
		decode.WithObserver(recorder),
	}
	if compensate {
		opts = append(opts, decode.WithExpectedRotation(p.RotationNs()))
	}
	return decode.New(cfg, opts...)
}

// loadCapture reads a capture file in the selected format.
func loadCapture(path string) (*flux.Buffer, error) {
	format, err := fluxio.ParseFormat(inputFormat)
	if err != nil {
		return nil, err
	}
	buf, err := fluxio.Load(path, format, gwFreq)
	if err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"file":    path,
		"samples": buf.Len(),
		"index":   buf.IndexCount(),
	}).Info("Loaded capture")
	return buf, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
