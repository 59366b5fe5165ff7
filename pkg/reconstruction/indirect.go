package reconstruction

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"nmrrecon/internal/models"
	"nmrrecon/pkg/nmrpipe"
	"nmrrecon/pkg/spectral"
	"nmrrecon/pkg/visualization"
	"nmrrecon/pkg/wavenet"
)

// Diagnostics compares the spectrum of an indirect-dimension input with the
// spectrum of its reconstruction. Both spectra are H x C and normalised by
// their own maximum.
type Diagnostics struct {
	// Original is the Fourier transformed input plane.
	Original *mat.Dense

	// Reconstructed is the Fourier transformed reconstruction.
	Reconstructed *mat.Dense

	// Auxiliary holds, per tile, the frequency-domain view of the raw
	// network output: (width/2) x 4 real spectra, see wavenet.Auxiliary.
	Auxiliary []*mat.Dense

	// RMSE is the root mean square difference between the two spectra.
	RMSE float64

	// Correlation is the Pearson correlation between the two spectra.
	Correlation float64
}

// truncatedHeaderFields are rewritten when the indirect dimension is cut to
// the network width. They count complex points.
var truncatedHeaderFields = []string{"FDSLICECOUNT", "FDF1APOD", "FDF1TDSIZE", "FDSPECNUM"}

// ReconstructIndirect reconstructs the indirect (row) dimension of a 2D
// NMRPipe plane and writes it to out. Rows beyond the network width are
// dropped and the header adjusted to match. The result keeps the input's
// intensity scale.
//
// With Params.Diagnostics set, the spectra of input and reconstruction are
// returned; otherwise the returned Diagnostics is nil. out is written last,
// only when every step succeeded.
func (r *Reconstructor) ReconstructIndirect(in, out string) (*Diagnostics, error) {
	ds, err := r.readDataset(in)
	if err != nil {
		return nil, err
	}
	data, err := ds.Plane()
	if err != nil {
		return nil, fmt.Errorf("indirect reconstruction of %s: %w", in, err)
	}

	cpoints, hpoints := data.Dims()
	tot := r.model.Width()
	r.logger.Printf("mode %s: cpoints %d, hpoints %d, network width %d", r.params.Mode, cpoints, hpoints, tot)

	header := ds.Header.Clone()
	if cpoints > tot {
		r.logger.Printf("truncating indirect dimension from %d to %d points", cpoints, tot)
		data = mat.DenseCopyOf(data.Slice(0, tot, 0, hpoints))
		cpoints = tot
		if err := truncateHeader(header, cpoints); err != nil {
			return nil, err
		}
	}
	if err := checkOutputShape(header, cpoints, hpoints); err != nil {
		return nil, err
	}
	if r.params.Diagnostics && cpoints%2 != 0 {
		return nil, fmt.Errorf("%w: diagnostics need an even number of indirect points, got %d", models.ErrInputShape, cpoints)
	}

	fullMax := models.MaxAbsDense(data)
	if fullMax == 0 {
		return nil, fmt.Errorf("%w: %s is all zero", models.ErrDegenerateScale, in)
	}
	data.Scale(1/fullMax, data)

	// H x C: the indirect dimension becomes the tiled width
	plane := mat.DenseCopyOf(data.T())
	res, pred, err := reconstructPlane(r.model, plane, tot, r.params.ScalePolicy)
	if err != nil {
		return nil, err
	}

	var diag *Diagnostics
	if r.params.Diagnostics {
		diag, err = compareSpectra(plane, res)
		if err != nil {
			return nil, err
		}
		diag.Auxiliary = wavenet.Auxiliary(pred)
		r.logger.Printf("spectra: rmse %.4g, correlation %.4f", diag.RMSE, diag.Correlation)
		if r.params.DiagnosticsDir != "" {
			if err := visualization.SaveDiagnostics(r.params.DiagnosticsDir, diag.Original, diag.Reconstructed); err != nil {
				return nil, err
			}
		}
	}

	final := mat.DenseCopyOf(res.T())
	final.Scale(fullMax, final)
	r.logger.Printf("writing %s: shape %dx%d", out, cpoints, hpoints)
	if err := nmrpipe.WriteFile(out, nmrpipe.NewPlaneDataset(header, final), r.params.Overwrite); err != nil {
		return nil, err
	}
	return diag, nil
}

// truncateHeader records a cut to cpoints stored vectors. The rewritten
// fields count complex points, so the indirect axis is marked complex to
// keep the header's shape consistent with the data.
func truncateHeader(h *nmrpipe.Header, cpoints int) error {
	for _, key := range truncatedHeaderFields {
		if err := h.Set(key, float64(cpoints/2)); err != nil {
			return err
		}
	}
	for _, key := range []string{"FDQUADFLAG", "FDF1QUADFLAG"} {
		if err := h.Set(key, 0); err != nil {
			return err
		}
	}
	return nil
}

func checkOutputShape(h *nmrpipe.Header, rows, cols int) error {
	shape, err := h.Shape()
	if err != nil {
		return err
	}
	if len(shape) != 2 || shape[0] != rows || shape[1] != cols {
		return fmt.Errorf("%w: output header describes %v, data is [%d %d]", models.ErrInputShape, shape, rows, cols)
	}
	return nil
}

// compareSpectra transforms two H x C time-domain planes along C with the
// f1180 convention and compares the max-normalised real spectra.
func compareSpectra(original, reconstructed *mat.Dense) (*Diagnostics, error) {
	opts := spectral.Options{F1180: true}
	orig, err := spectral.FTSecond(original, opts)
	if err != nil {
		return nil, fmt.Errorf("transforming input: %w", err)
	}
	recon, err := spectral.FTSecond(reconstructed, opts)
	if err != nil {
		return nil, fmt.Errorf("transforming reconstruction: %w", err)
	}
	spectral.NormalizeMax(orig)
	spectral.NormalizeMax(recon)

	a, b := orig.RawMatrix().Data, recon.RawMatrix().Data
	return &Diagnostics{
		Original:      orig,
		Reconstructed: recon,
		RMSE:          floats.Distance(a, b, 2) / math.Sqrt(float64(len(a))),
		Correlation:   stat.Correlation(a, b, nil),
	}, nil
}
