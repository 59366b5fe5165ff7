// Package wavenet runs the pretrained FID-Net reconstruction network: a stack
// of gated, dilated 2D convolutions with residual and skip connections that
// maps a batch of normalised four-row tiles to reconstructed tiles.
//
// Two fixed configurations exist. The decoupled carbon-13 methyl network reads
// 1024 point tiles and uses 17 dilation rates per block; the proton network
// reads 512 point tiles and uses the first 13 of those rates. Both repeat
// their schedule in 3 blocks with 64 filters and 8x4 kernels.
package wavenet

import (
	"fmt"

	"nmrrecon/internal/models"
)

// Architecture fixes the shape of one reconstruction network.
type Architecture struct {
	// Width is the number of points along each tile row.
	Width int

	// Dilations is the per-block dilation schedule along the width axis.
	Dilations []int

	// Blocks is how many times the dilation schedule repeats.
	Blocks int

	// Filters is the gated unit width; the residual path carries 2*Filters.
	Filters int

	// KernelH and KernelW are the convolution kernel extent along the width
	// axis and across the four tile rows.
	KernelH int
	KernelW int
}

var largeDilations = []int{1, 2, 4, 6, 8, 10, 12, 14, 16, 20, 24, 28, 32, 40, 48, 56, 64}

// ArchitectureFor returns the network configuration for a mode.
func ArchitectureFor(m models.Mode) Architecture {
	arch := Architecture{
		Blocks:  3,
		Filters: 64,
		KernelH: 8,
		KernelW: 4,
	}
	if m == models.ModeDecoupled13C {
		arch.Width = 1024
		arch.Dilations = append([]int(nil), largeDilations...)
	} else {
		arch.Width = 512
		arch.Dilations = append([]int(nil), largeDilations[:13]...)
	}
	return arch
}

// Schedule returns the dilation of every gated layer in evaluation order.
func (a Architecture) Schedule() []int {
	s := make([]int, 0, len(a.Dilations)*a.Blocks)
	for b := 0; b < a.Blocks; b++ {
		s = append(s, a.Dilations...)
	}
	return s
}

// Layers is the number of gated layers.
func (a Architecture) Layers() int {
	return len(a.Dilations) * a.Blocks
}

// Residual is the channel count of the residual and skip paths.
func (a Architecture) Residual() int {
	return 2 * a.Filters
}

// Validate reports configurations the forward pass cannot evaluate.
func (a Architecture) Validate() error {
	switch {
	case a.Width <= 0 || a.Width%2 != 0:
		return fmt.Errorf("network width must be positive and even, got %d", a.Width)
	case len(a.Dilations) == 0 || a.Blocks <= 0:
		return fmt.Errorf("network needs at least one gated layer")
	case a.Filters <= 0 || a.KernelH <= 0 || a.KernelW <= 0:
		return fmt.Errorf("invalid filter/kernel configuration %d/%dx%d", a.Filters, a.KernelH, a.KernelW)
	}
	for _, d := range a.Dilations {
		if d <= 0 {
			return fmt.Errorf("dilation must be positive, got %d", d)
		}
	}
	return nil
}

// TensorSpec names one weight tensor and its expected shape.
type TensorSpec struct {
	Name  string
	Shape []int
}

func layerPrefix(i int, part string) string {
	return fmt.Sprintf("wave.%d.%s", i, part)
}

// TensorSpecs lists every weight tensor the network needs. Kernels use the
// Keras HWIO layout (KernelH, KernelW, in, out).
func (a Architecture) TensorSpecs() []TensorSpec {
	f, res := a.Filters, a.Residual()
	conv := func(name string, in, out int) []TensorSpec {
		return []TensorSpec{
			{Name: name + ".kernel", Shape: []int{a.KernelH, a.KernelW, in, out}},
			{Name: name + ".bias", Shape: []int{out}},
		}
	}

	var specs []TensorSpec
	for i := 0; i < a.Layers(); i++ {
		in := res
		if i == 0 {
			in = 1
		}
		specs = append(specs, conv(layerPrefix(i, "filter"), in, f)...)
		specs = append(specs, conv(layerPrefix(i, "gate"), in, f)...)
		specs = append(specs, conv(layerPrefix(i, "proj"), f, res)...)
	}
	specs = append(specs, conv("head.hidden", res, f)...)
	specs = append(specs, conv("head.out", f, 1)...)
	return specs
}
