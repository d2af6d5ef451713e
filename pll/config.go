package pll

import (
	"fmt"
	"strings"

	"github.com/sergev/fluxclock/flux"
)

// PLL constants
// Defaults of the classic SCP-style algorithm
const (
	// CLOCK_MAX_ADJ is the +/- clock range (90%-110% of ideal)
	CLOCK_MAX_ADJ = 10
	// PERIOD_ADJ_PCT is the period adjustment percentage
	PERIOD_ADJ_PCT = 5
	// PHASE_ADJ_PCT is the phase adjustment percentage
	PHASE_ADJ_PCT = 60
	// SYNC_LOSS_BITS is the number of good bits required before another loss of sync is reported
	SYNC_LOSS_BITS = 256
	// IN_SYNC_ZEROS is the longest run of clocked zeros still considered in sync
	IN_SYNC_ZEROS = 3
)

// Defaults of the adaptive Kalman algorithm
const (
	DefaultProcessNoise  = 0.01
	DefaultMeasureNoise  = 1.0
	DefaultBandwidth     = 0.05
	DefaultAdaptiveMin   = 0.01
	DefaultAdaptiveMax   = 0.30
	DefaultLockThreshold = 8
	DefaultMaxCells      = 8
)

// Algorithm selects the clock recovery variant.
type Algorithm int

const (
	AlgorithmClassic Algorithm = iota // Integer PLL with in/out of sync regimes
	AlgorithmKalman                   // Kalman-filtered PLL with adaptive bandwidth
)

// String returns the name of the algorithm.
func (a Algorithm) String() string {
	switch a {
	case AlgorithmClassic:
		return "classic"
	case AlgorithmKalman:
		return "kalman"
	default:
		return "unknown"
	}
}

// ParseAlgorithm converts a name into an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "classic", "scp", "samdisk", "":
		return AlgorithmClassic, nil
	case "kalman", "adaptive":
		return AlgorithmKalman, nil
	default:
		return 0, fmt.Errorf("unknown PLL algorithm %q: %w", name, flux.ErrInvalidConfig)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Algorithm) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, so the algorithm
// can be given by name in configuration files.
func (a *Algorithm) UnmarshalText(text []byte) error {
	parsed, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Config holds the parameters of both clock recovery variants.
type Config struct {
	Algorithm Algorithm

	BitcellNs    float64 // Nominal bitcell period
	TolerancePct float64 // Allowed clock deviation, +/- percent of BitcellNs

	// Classic variant
	AdjustPct    int // Clock adjustment per transition, percent of phase mismatch
	PhasePct     int // Phase correction per transition, percent of mismatch
	FluxScalePct int // Flux interval scaling, 100 = nominal

	// Kalman variant
	ProcessNoise  float64
	MeasureNoise  float64
	Bandwidth     float64 // Default loop bandwidth
	AdaptiveMin   float64 // Lower bandwidth bound
	AdaptiveMax   float64 // Upper bandwidth bound
	LockThreshold int     // Consecutive good transitions needed for lock
	MaxCells      int     // Longest interval tracked by the filter, in cells
}

// DefaultConfig returns the default parameters for a nominal bitcell period.
func DefaultConfig(bitcellNs float64) Config {
	return Config{
		Algorithm:     AlgorithmClassic,
		BitcellNs:     bitcellNs,
		TolerancePct:  CLOCK_MAX_ADJ,
		AdjustPct:     PERIOD_ADJ_PCT,
		PhasePct:      PHASE_ADJ_PCT,
		FluxScalePct:  100,
		ProcessNoise:  DefaultProcessNoise,
		MeasureNoise:  DefaultMeasureNoise,
		Bandwidth:     DefaultBandwidth,
		AdaptiveMin:   DefaultAdaptiveMin,
		AdaptiveMax:   DefaultAdaptiveMax,
		LockThreshold: DefaultLockThreshold,
		MaxCells:      DefaultMaxCells,
	}
}

// DefaultKalmanConfig returns DefaultConfig with the Kalman algorithm selected.
func DefaultKalmanConfig(bitcellNs float64) Config {
	cfg := DefaultConfig(bitcellNs)
	cfg.Algorithm = AlgorithmKalman
	return cfg
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), flux.ErrInvalidConfig)
}

// Validate checks every parameter once, before decoding starts.
// All failures wrap flux.ErrInvalidConfig.
func (c Config) Validate() error {
	switch c.Algorithm {
	case AlgorithmClassic, AlgorithmKalman:
	default:
		return invalid("unknown algorithm %d", int(c.Algorithm))
	}
	if !(c.BitcellNs > 0) {
		return invalid("bitcell period %v ns must be positive", c.BitcellNs)
	}
	if !(c.TolerancePct > 0 && c.TolerancePct <= 50) {
		return invalid("clock tolerance %v%% must be in (0, 50]", c.TolerancePct)
	}
	if c.AdjustPct < 0 || c.AdjustPct > 50 {
		return invalid("clock adjustment %d%% must be in [0, 50]", c.AdjustPct)
	}
	if c.PhasePct < 0 || c.PhasePct > 90 {
		return invalid("phase adjustment %d%% must be in [0, 90]", c.PhasePct)
	}
	if c.FluxScalePct <= 0 {
		return invalid("flux scale %d%% must be positive", c.FluxScalePct)
	}
	if !(c.ProcessNoise >= 0) || !(c.MeasureNoise >= 0) {
		return invalid("noise parameters must not be negative (process %v, measure %v)",
			c.ProcessNoise, c.MeasureNoise)
	}
	if c.ProcessNoise == 0 && c.MeasureNoise == 0 {
		return invalid("process and measurement noise cannot both be zero")
	}
	if !(c.AdaptiveMin > 0 && c.AdaptiveMin <= 1) || !(c.AdaptiveMax > 0 && c.AdaptiveMax <= 1) {
		return invalid("bandwidth bounds [%v, %v] must be in (0, 1]", c.AdaptiveMin, c.AdaptiveMax)
	}
	if c.AdaptiveMin >= c.AdaptiveMax {
		return invalid("adaptive minimum %v must be below maximum %v", c.AdaptiveMin, c.AdaptiveMax)
	}
	if c.Bandwidth < c.AdaptiveMin || c.Bandwidth > c.AdaptiveMax {
		return invalid("bandwidth %v outside [%v, %v]", c.Bandwidth, c.AdaptiveMin, c.AdaptiveMax)
	}
	if c.LockThreshold < 1 {
		return invalid("lock threshold %d must be at least 1", c.LockThreshold)
	}
	if c.MaxCells < 1 || c.MaxCells > 255 {
		return invalid("max cells %d must be in [1, 255]", c.MaxCells)
	}
	return nil
}
