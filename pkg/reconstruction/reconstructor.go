package reconstruction

import (
	"fmt"
	"log"
	"os"

	"gonum.org/v1/gonum/mat"

	"nmrrecon/internal/models"
	"nmrrecon/pkg/nmrpipe"
	"nmrrecon/pkg/tiling"
	"nmrrecon/pkg/wavenet"
)

// Predictor maps a batch of normalised tiles to a batch of reconstructed
// tiles of the same shape. *wavenet.Network and wavenet.Identity implement it.
type Predictor interface {
	Predict(batch *tiling.Batch) (*tiling.Batch, error)

	// Width is the tile width (number of points) the predictor expects.
	Width() int
}

// Params holds the reconstruction configuration.
type Params struct {
	// Mode selects the network, its width and the 3D axis order.
	Mode models.Mode

	// Models locates the trained weights. Unused when a predictor is
	// injected with NewReconstructorWithPredictor.
	Models wavenet.ModelConfig

	// Workers bounds the number of tiles evaluated concurrently.
	// Values below 1 use every CPU.
	Workers int

	// ScalePolicy decides how all-zero tiles are treated.
	ScalePolicy tiling.ScalePolicy

	// Rescale3D multiplies a reconstructed 3D dataset by the maximum it was
	// normalised with. Off by default, which leaves 3D output normalised.
	Rescale3D bool

	// Diagnostics computes the Fourier transformed original and
	// reconstructed planes after an indirect reconstruction.
	Diagnostics bool

	// DiagnosticsDir, when set together with Diagnostics, receives PNG
	// renderings of both spectra.
	DiagnosticsDir string

	// Overwrite allows replacing an existing output file.
	Overwrite bool

	// Logger receives progress messages. Nil logs to stderr.
	Logger *log.Logger
}

// Reconstructor runs plane, 3D and indirect reconstructions with one model.
type Reconstructor struct {
	params *Params
	model  Predictor
	logger *log.Logger
}

// NewReconstructor loads the network for params.Mode from params.Models.
func NewReconstructor(params *Params) (*Reconstructor, error) {
	net, err := wavenet.Load(params.Models, params.Mode, params.Workers)
	if err != nil {
		return nil, fmt.Errorf("loading %s network: %w", params.Mode, err)
	}
	r := NewReconstructorWithPredictor(params, net)
	arch := net.Architecture()
	r.logger.Printf("loaded %s network from %s: width %d, %d gated layers, %d filters",
		params.Mode, params.Models.PathFor(params.Mode), arch.Width, arch.Layers(), arch.Filters)
	return r, nil
}

// NewReconstructorWithPredictor uses model instead of loading weights.
func NewReconstructorWithPredictor(params *Params, model Predictor) *Reconstructor {
	logger := params.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "nmrrecon: ", log.LstdFlags)
	}
	return &Reconstructor{params: params, model: model, logger: logger}
}

// Width returns the tile width of the model in use.
func (r *Reconstructor) Width() int {
	return r.model.Width()
}

// ReconstructPlane reconstructs a single normalised plane with the
// reconstructor's model and scale policy.
func (r *Reconstructor) ReconstructPlane(plane mat.Matrix) (*mat.Dense, error) {
	return ReconstructPlane(r.model, plane, r.model.Width(), r.params.ScalePolicy)
}

func (r *Reconstructor) readDataset(path string) (*nmrpipe.Dataset, error) {
	ds, err := nmrpipe.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r.logger.Printf("read %s: shape %v", path, ds.Shape)
	if axes, err := nmrpipe.GuessAxes(ds.Header); err == nil {
		for _, a := range axes {
			r.logger.Printf("  %s", a)
		}
	}
	return ds, nil
}
