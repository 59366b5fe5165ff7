package wavenet

import (
	"fmt"
	"slices"

	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/loader"
	"github.com/born-ml/born/tensor"

	"nmrrecon/internal/models"
)

// Tensor is a dense float32 weight array.
type Tensor struct {
	Shape []int
	Data  []float32
}

// Weights holds every tensor of a network by name.
type Weights map[string]Tensor

// Check verifies that w has every tensor arch needs, with the right shape.
func (w Weights) Check(arch Architecture) error {
	for _, spec := range arch.TensorSpecs() {
		t, ok := w[spec.Name]
		if !ok {
			return fmt.Errorf("%w: missing tensor %s", models.ErrModelLoad, spec.Name)
		}
		if !slices.Equal(t.Shape, spec.Shape) {
			return fmt.Errorf("%w: tensor %s has shape %v, want %v", models.ErrModelLoad, spec.Name, t.Shape, spec.Shape)
		}
		if n := elements(spec.Shape); len(t.Data) != n {
			return fmt.Errorf("%w: tensor %s holds %d values, want %d", models.ErrModelLoad, spec.Name, len(t.Data), n)
		}
	}
	return nil
}

func elements(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// LoadWeights reads the tensors arch needs from a SafeTensors file exported
// from the trained Keras model.
func LoadWeights(path string, arch Architecture) (Weights, error) {
	model, err := loader.OpenModel(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", models.ErrModelLoad, path, err)
	}
	defer model.Close()

	backend := cpu.New()
	w := make(Weights)
	for _, spec := range arch.TensorSpecs() {
		raw, err := model.LoadTensor(spec.Name, backend)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", models.ErrModelLoad, path, err)
		}
		if raw.DType() != tensor.Float32 {
			return nil, fmt.Errorf("%w: tensor %s is %s, want float32", models.ErrModelLoad, spec.Name, raw.DType())
		}
		data := make([]float32, raw.NumElements())
		copy(data, raw.AsFloat32())
		w[spec.Name] = Tensor{Shape: append([]int(nil), raw.Shape()...), Data: data}
	}

	if err := w.Check(arch); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}
