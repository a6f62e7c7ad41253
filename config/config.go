// Package config loads the on-the-fly and global simulation parameters
// (spec.md §6 Model interface), following the teacher's embedded-YAML-with-
// override pattern.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// MotionType selects how a moving facet's velocity field is computed.
type MotionType string

const (
	MotionNone      MotionType = "none"
	MotionTranslate MotionType = "translate"
	MotionRotate    MotionType = "rotate"
)

// Moment is a (center, width) time window; index 0 in a run always means
// steady-state and is not represented here.
type Moment struct {
	Center float64 `yaml:"center"`
	Width  float64 `yaml:"width"`
}

// OnTheFlyParams are the per-run knobs a controller can change between runs
// without rebuilding the model (spec.md §6).
type OnTheFlyParams struct {
	NbProcess       int     `yaml:"nb_process"`
	DesorptionLimit uint64  `yaml:"desorption_limit"`
	TimeLimit       float64 `yaml:"time_limit"`
	LowFluxMode     bool    `yaml:"low_flux_mode"`
	LowFluxCutoff   float64 `yaml:"low_flux_cutoff"`
	EnableLogging   bool    `yaml:"enable_logging"`
	LogFacetID      int     `yaml:"log_facet_id"`
	LogLimit        int     `yaml:"log_limit"`
}

// GlobalParams are model-wide physical parameters (spec.md §6).
type GlobalParams struct {
	GasMass          float64    `yaml:"gas_mass"`
	UseMaxwell       bool       `yaml:"use_maxwell"`
	EnableDecay      bool       `yaml:"enable_decay"`
	Halflife         float64    `yaml:"halflife"`
	MotionType       MotionType `yaml:"motion_type"`
	MotionVector1    [3]float64 `yaml:"motion_vector1"`
	MotionVector2    [3]float64 `yaml:"motion_vector2"`
	CalcConstantFlow bool       `yaml:"calc_constant_flow"`
	LatestMoment     float64    `yaml:"latest_moment"`
	Moments          []Moment   `yaml:"moments"`
}

// Config is the full set of run parameters.
type Config struct {
	OnTheFly OnTheFlyParams `yaml:"on_the_fly"`
	Global   GlobalParams   `yaml:"global"`
}

// ConfigError reports an invalid parameter combination, per spec.md §7.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Default returns the embedded baseline configuration.
func Default() (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(defaultsYAML, &c); err != nil {
		return nil, fmt.Errorf("config: parse embedded defaults: %w", err)
	}
	return &c, nil
}

// Load reads the embedded defaults, then overlays path's contents on top
// (fields present in path win; the rest keep their default value).
func Load(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return c, c.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return c, c.Validate()
}

// Validate checks the invariants spec.md §7 assigns to ConfigError.
func (c *Config) Validate() error {
	if c.OnTheFly.NbProcess <= 0 {
		return &ConfigError{Field: "on_the_fly.nb_process", Reason: "must be positive"}
	}
	if c.OnTheFly.LowFluxMode && (c.OnTheFly.LowFluxCutoff <= 0 || c.OnTheFly.LowFluxCutoff >= 1) {
		return &ConfigError{Field: "on_the_fly.low_flux_cutoff", Reason: "must be in (0, 1) when low_flux_mode is set"}
	}
	if c.Global.EnableDecay && c.Global.Halflife <= 0 {
		return &ConfigError{Field: "global.halflife", Reason: "must be positive when enable_decay is set"}
	}
	if c.Global.GasMass <= 0 {
		return &ConfigError{Field: "global.gas_mass", Reason: "must be positive"}
	}
	for i, m := range c.Global.Moments {
		if m.Width <= 0 {
			return &ConfigError{Field: fmt.Sprintf("global.moments[%d].width", i), Reason: "must be positive"}
		}
	}
	return nil
}
