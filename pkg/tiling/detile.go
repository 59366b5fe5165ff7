package tiling

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"nmrrecon/internal/models"
)

// Rescale multiplies every predicted tile by the scale divided out in Tile and
// flattens tile index and in-tile row into one sequence. The result is a
// Width x 4N row-major array; sequence position p = 4*i + r holds row r of
// tile i.
func Rescale(pred *Batch, scale []float64) ([]float64, int, error) {
	if len(scale) != pred.N {
		return nil, 0, fmt.Errorf("%w: %d scale values for %d tiles", models.ErrInputShape, len(scale), pred.N)
	}
	seq := pred.N * TileRows
	flat := make([]float64, pred.Width*seq)
	for i := 0; i < pred.N; i++ {
		s := scale[i]
		for w := 0; w < pred.Width; w++ {
			for r := 0; r < TileRows; r++ {
				flat[w*seq+i*TileRows+r] = float64(pred.At(i, w, r)) * s
			}
		}
	}
	return flat, seq, nil
}

// CoveringPositions returns the four sequence positions that hold row h of
// the original plane: the last row of tile h, the third of tile h+1, the
// second of tile h+2 and the first of tile h+3.
func CoveringPositions(h int) [TileRows]int {
	ind := TileRows*h + PadRows
	return [TileRows]int{ind, ind + 3, ind + 6, ind + 9}
}

// Average rebuilds hpoints rows from a rescaled sequence by averaging the four
// tile contributions that cover each row. The result is hpoints x width.
func Average(flat []float64, width, seq, hpoints int) (*mat.Dense, error) {
	if len(flat) != width*seq {
		return nil, fmt.Errorf("%w: sequence holds %d values, want %d", models.ErrInputShape, len(flat), width*seq)
	}
	if last := CoveringPositions(hpoints - 1); last[TileRows-1] >= seq {
		return nil, fmt.Errorf("%w: %d rows need %d sequence positions, have %d", models.ErrInputShape, hpoints, last[TileRows-1]+1, seq)
	}

	out := mat.NewDense(hpoints, width, nil)
	for h := 0; h < hpoints; h++ {
		pos := CoveringPositions(h)
		row := out.RawRowView(h)
		for w := 0; w < width; w++ {
			line := flat[w*seq : (w+1)*seq]
			row[w] = 0.25 * (line[pos[0]] + line[pos[1]] + line[pos[2]] + line[pos[3]])
		}
	}
	return out, nil
}

// Detile undoes Tile for a batch of predictions: it rescales every tile and
// averages the four overlapping estimates of each of the hpoints rows.
func Detile(pred *Batch, scale []float64, hpoints int) (*mat.Dense, error) {
	if pred.N != hpoints+PadRows {
		return nil, fmt.Errorf("%w: %d tiles cannot cover %d rows", models.ErrInputShape, pred.N, hpoints)
	}
	flat, seq, err := Rescale(pred, scale)
	if err != nil {
		return nil, err
	}
	return Average(flat, pred.Width, seq, hpoints)
}
