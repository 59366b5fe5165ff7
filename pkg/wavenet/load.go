package wavenet

import (
	"fmt"

	"nmrrecon/internal/models"
)

// ModelConfig locates the trained weights of both networks. It is passed in
// by the caller rather than read from package state.
type ModelConfig struct {
	// Carbon13Path is the SafeTensors export of the decoupled 13C methyl model.
	Carbon13Path string `yaml:"carbon13"`

	// Proton1HPath is the SafeTensors export of the 1H methyl model.
	Proton1HPath string `yaml:"proton1h"`
}

// PathFor returns the weight file for mode.
func (c ModelConfig) PathFor(m models.Mode) string {
	if m == models.ModeDecoupled13C {
		return c.Carbon13Path
	}
	return c.Proton1HPath
}

// Load builds the network for mode from the configured weight file.
func Load(cfg ModelConfig, m models.Mode, workers int) (*Network, error) {
	path := cfg.PathFor(m)
	if path == "" {
		return nil, fmt.Errorf("%w: no weight file configured for mode %s", models.ErrModelLoad, m)
	}
	arch := ArchitectureFor(m)
	w, err := LoadWeights(path, arch)
	if err != nil {
		return nil, err
	}
	return NewNetwork(arch, w, workers)
}
