package reconstruction

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"nmrrecon/internal/models"
	"nmrrecon/pkg/tiling"
)

// ReconstructPlane tiles plane, runs p over the tiles and averages the
// predictions back into a plane of the input's shape. The plane's rows are
// tiled in groups of four and its columns must fit in tot points.
func ReconstructPlane(p Predictor, plane mat.Matrix, tot int, policy tiling.ScalePolicy) (*mat.Dense, error) {
	res, _, err := reconstructPlane(p, plane, tot, policy)
	return res, err
}

// reconstructPlane also returns the raw, normalised tile predictions.
func reconstructPlane(p Predictor, plane mat.Matrix, tot int, policy tiling.ScalePolicy) (*mat.Dense, *tiling.Batch, error) {
	rows, cols := plane.Dims()

	batch, scale, err := tiling.Tile(plane, tot, policy)
	if err != nil {
		return nil, nil, err
	}

	pred, err := p.Predict(batch)
	if err != nil {
		return nil, nil, fmt.Errorf("predicting %d tiles: %w", batch.N, err)
	}
	if pred.N != batch.N || pred.Width != batch.Width {
		return nil, nil, fmt.Errorf("%w: predictor returned %v for input %v", models.ErrInputShape, pred.Shape(), batch.Shape())
	}
	if err := checkFinite(pred); err != nil {
		return nil, nil, err
	}

	full, err := tiling.Detile(pred, scale, rows)
	if err != nil {
		return nil, nil, err
	}
	return mat.DenseCopyOf(full.Slice(0, rows, 0, cols)), pred, nil
}

func checkFinite(b *tiling.Batch) error {
	size := b.TileSize()
	for i, v := range b.Data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: tile %d", models.ErrNonFinite, i/size)
		}
	}
	return nil
}
