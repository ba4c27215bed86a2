// Package config provides configuration loading and management for
// voxelraster. It handles loading job configuration from YAML files and
// provides default values, mirroring the teacher's DefaultConfig/LoadConfig
// round trip.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// ShellPolicyKind selects how a nearest-neighbor hit is turned into a pixel
// color (spec.md §4.4).
type ShellPolicyKind string

const (
	ColorBySample ShellPolicyKind = "color-by-sample"
	TwoBandShell  ShellPolicyKind = "two-band"
)

// InteriorFillMode selects when (if ever) the interior flood fill runs
// relative to per-voxel sampling (spec.md §9 Open Question (a)).
type InteriorFillMode string

const (
	FillOff                    InteriorFillMode = "off"
	FillBeforeSampling         InteriorFillMode = "before-sampling"
	FillAfterSamplingIfExceeds InteriorFillMode = "after-sampling-if-filled-exceeds"
)

// Config represents the job configuration loaded from YAML.
type Config struct {
	// Build holds the physical build-volume and resolution parameters.
	Build struct {
		DPI           int     `yaml:"dpi"`
		LayerHeightNm int     `yaml:"layerHeightNm"`
		XIn           float64 `yaml:"xIn"`
		YIn           float64 `yaml:"yIn"`
		ZIn           float64 `yaml:"zIn"`
		PaddingRatio  float64 `yaml:"paddingRatio"`
	} `yaml:"build"`

	// Sampling holds the NN query and shell-policy parameters.
	Sampling struct {
		VoxelRadiusIn float64         `yaml:"voxelRadiusIn"`
		ShellPolicy   ShellPolicyKind `yaml:"shellPolicy"`
		RInnerIn      float64         `yaml:"rInnerIn"`
		RouterIn      float64         `yaml:"routerIn"`

		Anisotropic bool    `yaml:"anisotropic"`
		RxIn        float64 `yaml:"rxIn"`
		RyIn        float64 `yaml:"ryIn"`
		RzIn        float64 `yaml:"rzIn"`

		InteriorFill          InteriorFillMode `yaml:"interiorFill"`
		InteriorFillThreshold int              `yaml:"interiorFillThreshold"`
	} `yaml:"sampling"`

	// Chamfer holds the edge/corner bevel post-pass parameters.
	Chamfer struct {
		RadiusIn float64 `yaml:"radiusIn"`
		Enabled  bool    `yaml:"enabled"`
		Debug    bool    `yaml:"debug"`
	} `yaml:"chamfer"`

	// Processing holds worker/orchestration parameters.
	Processing struct {
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// Output holds logging/reporting parameters.
	Output struct {
		Verbose bool `yaml:"verbose"`
		DumpNN  bool `yaml:"dumpNN"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values matching
// spec.md §6's enumerated defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Build.DPI = 300
	cfg.Build.LayerHeightNm = 27_000

	cfg.Sampling.ShellPolicy = ColorBySample
	cfg.Sampling.InteriorFill = FillOff
	cfg.Sampling.InteriorFillThreshold = 500

	cfg.Chamfer.Enabled = false
	cfg.Chamfer.Debug = false

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file. If the file doesn't
// exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file, creating its parent
// directory if necessary.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the
// specified path.
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
