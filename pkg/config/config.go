// Package config provides configuration loading and management for nmrrecon.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"nmrrecon/internal/models"
	"nmrrecon/pkg/reconstruction"
	"nmrrecon/pkg/tiling"
	"nmrrecon/pkg/wavenet"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Models locates the trained network weights
	Models wavenet.ModelConfig `yaml:"models"`

	// Processing parameters
	Processing struct {
		// Mode selects the network: dec (13C decoupled) or h1
		Mode string `yaml:"mode"`

		// Workers specifies how many tiles are evaluated concurrently
		Workers int `yaml:"workers"`

		// ScalePolicy is mask or fail, for tiles that are entirely zero
		ScalePolicy string `yaml:"scalePolicy"`

		// Rescale3D restores the input intensity scale of 3D output
		Rescale3D bool `yaml:"rescale3d"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// Diagnostics computes spectra of input and reconstruction
		Diagnostics bool `yaml:"diagnostics"`

		// DiagnosticsDir receives PNG renderings when diagnostics are enabled
		DiagnosticsDir string `yaml:"diagnosticsDir"`

		// Overwrite allows replacing existing output files
		Overwrite bool `yaml:"overwrite"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Models.Carbon13Path = filepath.Join("models", "fidnet_13c_methyl.safetensors")
	cfg.Models.Proton1HPath = filepath.Join("models", "fidnet_1h_methyl.safetensors")

	cfg.Processing.Mode = models.ModeDecoupled13C.String()
	cfg.Processing.Workers = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.ScalePolicy = tiling.ScaleMask.String()
	cfg.Processing.Rescale3D = false

	cfg.Output.Verbose = true
	cfg.Output.Diagnostics = false
	cfg.Output.DiagnosticsDir = "diagnostics"
	cfg.Output.Overwrite = true

	return cfg
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	if _, err := models.ParseMode(c.Processing.Mode); err != nil {
		return fmt.Errorf("processing.mode: %w", err)
	}
	if _, err := tiling.ParseScalePolicy(c.Processing.ScalePolicy); err != nil {
		return fmt.Errorf("processing.scalePolicy: %w", err)
	}
	if c.Processing.Workers < 0 {
		return fmt.Errorf("processing.workers must be non-negative, got %d", c.Processing.Workers)
	}
	if c.Output.Diagnostics && c.Output.DiagnosticsDir == "" {
		return fmt.Errorf("output.diagnosticsDir is required when diagnostics are enabled")
	}
	return nil
}

// Params converts the configuration into reconstruction parameters.
// A non-verbose configuration discards progress messages.
func (c *Config) Params() (*reconstruction.Params, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	mode, _ := models.ParseMode(c.Processing.Mode)
	policy, _ := tiling.ParseScalePolicy(c.Processing.ScalePolicy)

	logger := log.New(os.Stderr, "nmrrecon: ", log.LstdFlags)
	if !c.Output.Verbose {
		logger.SetOutput(io.Discard)
	}

	return &reconstruction.Params{
		Mode:           mode,
		Models:         c.Models,
		Workers:        c.Processing.Workers,
		ScalePolicy:    policy,
		Rescale3D:      c.Processing.Rescale3D,
		Diagnostics:    c.Output.Diagnostics,
		DiagnosticsDir: c.Output.DiagnosticsDir,
		Overwrite:      c.Output.Overwrite,
		Logger:         logger,
	}, nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
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

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
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

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
