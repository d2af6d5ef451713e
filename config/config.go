package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/sergev/fluxclock/flux"
	"github.com/sergev/fluxclock/pll"
	"github.com/sergev/fluxclock/weakbit"
)

//go:embed fluxclock.toml
var defaultConfigData []byte

// Config represents the entire TOML configuration structure
type Config struct {
	Default string   `toml:"default"`
	Presets []Preset `toml:"preset"`
}

// Preset represents the decoding parameters of one disk format.
// Zero fields take the built-in defaults.
type Preset struct {
	Name        string        `toml:"name" yaml:"name"`
	Description string        `toml:"description" yaml:"description,omitempty"`
	Algorithm   pll.Algorithm `toml:"algorithm" yaml:"algorithm"`
	BitcellNs   float64       `toml:"bitcell_ns" yaml:"bitcell_ns"`
	RPM         int           `toml:"rpm" yaml:"rpm,omitempty"`

	TolerancePct  float64 `toml:"tolerance_pct" yaml:"tolerance_pct,omitempty"`
	AdjustPct     int     `toml:"adjust_pct" yaml:"adjust_pct,omitempty"`
	PhasePct      int     `toml:"phase_pct" yaml:"phase_pct,omitempty"`
	FluxScalePct  int     `toml:"flux_scale_pct" yaml:"flux_scale_pct,omitempty"`
	Bandwidth     float64 `toml:"bandwidth" yaml:"bandwidth,omitempty"`
	AdaptiveMin   float64 `toml:"adaptive_min" yaml:"adaptive_min,omitempty"`
	AdaptiveMax   float64 `toml:"adaptive_max" yaml:"adaptive_max,omitempty"`
	LockThreshold int     `toml:"lock_threshold" yaml:"lock_threshold,omitempty"`
	MaxCells      int     `toml:"max_cells" yaml:"max_cells,omitempty"`

	JitterThreshold  float64        `toml:"jitter_threshold" yaml:"jitter_threshold,omitempty"`
	DamagedThreshold float64        `toml:"damaged_threshold" yaml:"damaged_threshold,omitempty"`
	MinRevolutions   int            `toml:"min_revolutions" yaml:"min_revolutions,omitempty"`
	Timing           weakbit.Timing `toml:"timing" yaml:"timing,omitempty"`
}

// configPath determines the config file path based on the operating system
func configPath() (string, error) {
	var configDir string
	var err error

	switch runtime.GOOS {
	case "windows":
		// Use AppData directory for Windows
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "fluxclock")
	default:
		// Linux/macOS: use home directory
		configDir, err = os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine user home directory: %w", err)
		}
	}

	return filepath.Join(configDir, ".fluxclock"), nil
}

// Initialize loads the user configuration file.
// If the config file doesn't exist, it creates it from the embedded default.
func Initialize() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Create parent directory if needed (for Windows)
		configDir := filepath.Dir(path)
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create config directory %s: %w", configDir, err)
		}
		if err := os.WriteFile(path, defaultConfigData, 0644); err != nil {
			return nil, fmt.Errorf("failed to create default config file at %s: %w", path, err)
		}
	}
	return Load(path)
}

// Load parses and validates a configuration file.
func Load(path string) (*Config, error) {
	var conf Config
	if _, err := toml.DecodeFile(path, &conf); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config at %s: %w", path, err)
	}
	if err := conf.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &conf, nil
}

// Default returns the embedded configuration.
func Default() *Config {
	var conf Config
	if _, err := toml.Decode(string(defaultConfigData), &conf); err != nil {
		panic(fmt.Sprintf("embedded config: %v", err))
	}
	return &conf
}

// Parse decodes configuration text.
func Parse(data string) (*Config, error) {
	var conf Config
	if _, err := toml.Decode(data, &conf); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (c *Config) validate() error {
	if c.Default == "" {
		return errors.New("`default` key is missing or empty in config")
	}
	seen := make(map[string]bool)
	for _, p := range c.Presets {
		if p.Name == "" {
			return errors.New("preset without a name")
		}
		if seen[p.Name] {
			return fmt.Errorf("preset %q defined twice", p.Name)
		}
		seen[p.Name] = true
		if _, err := p.PLL(); err != nil {
			return fmt.Errorf("preset %q: %w", p.Name, err)
		}
		if _, err := p.WeakBits(); err != nil {
			return fmt.Errorf("preset %q: %w", p.Name, err)
		}
	}
	if !seen[c.Default] {
		return fmt.Errorf("default preset %q not found in preset array", c.Default)
	}
	return nil
}

// Preset returns the preset with the given name.
// An empty name selects the default preset.
func (c *Config) Preset(name string) (Preset, error) {
	if name == "" {
		name = c.Default
	}
	for _, p := range c.Presets {
		if p.Name == name {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("preset %q not found in configuration", name)
}

// Names returns the preset names in sorted order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Presets))
	for _, p := range c.Presets {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// RotationNs returns the expected duration of one revolution, or 0 when
// the preset has no rotation speed.
func (p Preset) RotationNs() float64 {
	return flux.RotationNs(p.RPM)
}

// PLL builds the validated clock recovery parameters of the preset.
func (p Preset) PLL() (pll.Config, error) {
	cfg := pll.DefaultConfig(p.BitcellNs)
	cfg.Algorithm = p.Algorithm
	if p.TolerancePct != 0 {
		cfg.TolerancePct = p.TolerancePct
	}
	if p.AdjustPct != 0 {
		cfg.AdjustPct = p.AdjustPct
	}
	if p.PhasePct != 0 {
		cfg.PhasePct = p.PhasePct
	}
	if p.FluxScalePct != 0 {
		cfg.FluxScalePct = p.FluxScalePct
	}
	if p.Bandwidth != 0 {
		cfg.Bandwidth = p.Bandwidth
	}
	if p.AdaptiveMin != 0 {
		cfg.AdaptiveMin = p.AdaptiveMin
	}
	if p.AdaptiveMax != 0 {
		cfg.AdaptiveMax = p.AdaptiveMax
	}
	if p.LockThreshold != 0 {
		cfg.LockThreshold = p.LockThreshold
	}
	if p.MaxCells != 0 {
		cfg.MaxCells = p.MaxCells
	}
	if err := cfg.Validate(); err != nil {
		return pll.Config{}, err
	}
	return cfg, nil
}

// WeakBits builds the validated weak bit parameters of the preset.
func (p Preset) WeakBits() (weakbit.Config, error) {
	cfg := weakbit.DefaultConfig()
	if p.JitterThreshold != 0 {
		cfg.JitterThreshold = p.JitterThreshold
	}
	if p.MinRevolutions != 0 {
		cfg.MinRevolutions = p.MinRevolutions
	}
	cfg.DamagedThreshold = p.DamagedThreshold
	cfg.Timing = p.Timing
	if err := cfg.Validate(); err != nil {
		return weakbit.Config{}, err
	}
	return cfg, nil
}
