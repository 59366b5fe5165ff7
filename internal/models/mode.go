package models

import (
	"fmt"
	"strings"
)

// Mode selects which pretrained reconstruction network is used and how a
// 3D dataset is oriented before planes are cut from it.
type Mode int

const (
	// ModeDecoupled13C reconstructs carbon-13 methyl decoupled data with the
	// large (1024 point) network.
	ModeDecoupled13C Mode = iota

	// ModeProton1H reconstructs proton data with the small (512 point) network.
	ModeProton1H
)

// ParseMode maps a command line mode string to a Mode. Unknown strings are
// rejected rather than falling back to the proton network.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dec", "c13", "13c", "carbon":
		return ModeDecoupled13C, nil
	case "h1", "1h", "proton":
		return ModeProton1H, nil
	default:
		return 0, fmt.Errorf("unknown reconstruction mode %q (want dec or h1)", s)
	}
}

func (m Mode) String() string {
	switch m {
	case ModeDecoupled13C:
		return "dec"
	case ModeProton1H:
		return "h1"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Permutation returns the axis order applied to a 3D dataset before planes
// are taken along axis 0.
func (m Mode) Permutation() [3]int {
	if m == ModeDecoupled13C {
		return [3]int{1, 2, 0}
	}
	return [3]int{0, 2, 1}
}

// InversePermutation undoes Permutation.
func (m Mode) InversePermutation() [3]int {
	p := m.Permutation()
	var inv [3]int
	for i, axis := range p {
		inv[axis] = i
	}
	return inv
}
