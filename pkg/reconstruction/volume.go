package reconstruction

import (
	"fmt"

	"nmrrecon/internal/models"
	"nmrrecon/pkg/nmrpipe"
	"nmrrecon/pkg/visualization"
)

// Reconstruct3D reconstructs every plane of a 3D NMRPipe dataset and writes
// the result to out with the input header. Planes are cut along axis 0
// after reordering the axes for the selected mode, so the tiled width is
// the indirect dimension the network was trained on.
//
// out is written once, after every plane succeeded.
func (r *Reconstructor) Reconstruct3D(in, out string) error {
	ds, err := r.readDataset(in)
	if err != nil {
		return err
	}
	cube, err := ds.Cube()
	if err != nil {
		return fmt.Errorf("3D reconstruction of %s: %w", in, err)
	}

	data := cube.Transpose(r.params.Mode.Permutation())
	r.logger.Printf("mode %s: planes %d, plane shape %dx%d, network width %d",
		r.params.Mode, data.Depth, data.Height, data.Width, r.model.Width())
	if data.Width > r.model.Width() {
		return fmt.Errorf("%w: indirect dimension has %d points, %s network takes %d",
			models.ErrInputShape, data.Width, r.params.Mode, r.model.Width())
	}

	fullMax := data.MaxAbs()
	if fullMax == 0 {
		return fmt.Errorf("%w: %s is all zero", models.ErrDegenerateScale, in)
	}
	data.Scale(1 / fullMax)

	result := models.NewCube(data.Depth, data.Height, data.Width)
	for z := 0; z < data.Depth; z++ {
		r.logger.Printf("plane %d of %d", z+1, data.Depth)
		plane, err := r.ReconstructPlane(data.Plane(z))
		if err != nil {
			return fmt.Errorf("plane %d of %d: %w", z+1, data.Depth, err)
		}
		if err := result.SetPlane(z, plane); err != nil {
			return err
		}
	}

	if r.params.Rescale3D {
		result.Scale(fullMax)
	}

	final := result.Transpose(r.params.Mode.InversePermutation())
	r.logger.Printf("writing %s: shape %v", out, final.Shape())
	if err := nmrpipe.WriteFile(out, nmrpipe.NewCubeDataset(ds.Header, final), r.params.Overwrite); err != nil {
		return err
	}

	if r.params.Diagnostics && r.params.DiagnosticsDir != "" {
		r.logger.Printf("saving plane previews to %s", r.params.DiagnosticsDir)
		return visualization.NewViewer(final).SaveSliceSequence("z", r.params.DiagnosticsDir)
	}
	return nil
}
