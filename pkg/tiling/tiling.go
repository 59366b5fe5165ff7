// Package tiling converts a 2D plane into the overlapping four-row tiles the
// reconstruction network consumes, and averages the network's tile
// predictions back into a plane.
//
// A plane with R rows is padded with three zero rows above and below and
// zero columns on the right up to the network width. Tile i is the four
// padded rows starting at row i, so there are R+3 tiles and every original
// row is covered by exactly four of them, once in each in-tile position.
package tiling

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"nmrrecon/internal/models"
)

const (
	// TileRows is the height of every tile.
	TileRows = 4

	// PadRows is the number of zero rows added above and below a plane.
	PadRows = TileRows - 1
)

// ScalePolicy decides what happens to a tile whose maximum magnitude is zero.
type ScalePolicy int

const (
	// ScaleMask leaves an all-zero tile at zero and records a zero scale,
	// so its prediction is zeroed again during Rescale.
	ScaleMask ScalePolicy = iota

	// ScaleFail rejects an all-zero tile with models.ErrDegenerateScale.
	ScaleFail
)

// ParseScalePolicy maps a configuration string to a ScalePolicy.
func ParseScalePolicy(s string) (ScalePolicy, error) {
	switch s {
	case "", "mask":
		return ScaleMask, nil
	case "fail":
		return ScaleFail, nil
	}
	return 0, fmt.Errorf("unknown scale policy %q (want mask or fail)", s)
}

func (p ScalePolicy) String() string {
	if p == ScaleFail {
		return "fail"
	}
	return "mask"
}

// Batch is a stack of tiles in NHWC order, shape (N, Width, 4, 1).
// Element (i, w, r) lives at i*Width*4 + w*4 + r.
type Batch struct {
	N     int
	Width int
	Data  []float32
}

// NewBatch allocates a zeroed batch of n tiles.
func NewBatch(n, width int) *Batch {
	return &Batch{N: n, Width: width, Data: make([]float32, n*width*TileRows)}
}

// Shape returns the batch shape as the network sees it.
func (b *Batch) Shape() [4]int {
	return [4]int{b.N, b.Width, TileRows, 1}
}

// TileSize is the number of values in one tile.
func (b *Batch) TileSize() int {
	return b.Width * TileRows
}

// Tile returns the backing slice of tile i.
func (b *Batch) Tile(i int) []float32 {
	size := b.TileSize()
	return b.Data[i*size : (i+1)*size]
}

// At returns element (i, w, r).
func (b *Batch) At(i, w, r int) float32 {
	return b.Data[(i*b.Width+w)*TileRows+r]
}

// Set stores element (i, w, r).
func (b *Batch) Set(i, w, r int, v float32) {
	b.Data[(i*b.Width+w)*TileRows+r] = v
}

// Tile pads plane and cuts it into normalised tiles of width tot. It returns
// the batch and the per-tile scale that was divided out.
func Tile(plane mat.Matrix, tot int, policy ScalePolicy) (*Batch, []float64, error) {
	rows, width := plane.Dims()
	if width > tot {
		return nil, nil, fmt.Errorf("%w: plane width %d exceeds network width %d", models.ErrInputShape, width, tot)
	}
	if rows == 0 || width == 0 {
		return nil, nil, fmt.Errorf("%w: empty plane %dx%d", models.ErrInputShape, rows, width)
	}

	padded := mat.NewDense(rows+2*PadRows, tot, nil)
	padded.Slice(PadRows, PadRows+rows, 0, width).(*mat.Dense).Copy(plane)

	n := rows + PadRows
	batch := NewBatch(n, tot)
	scale := make([]float64, n)
	for i := 0; i < n; i++ {
		window := padded.RawMatrix().Data[i*tot : (i+TileRows)*tot]
		s := floats.Norm(window, math.Inf(1))
		if s == 0 {
			if policy == ScaleFail {
				return nil, nil, fmt.Errorf("%w: tile %d is all zero", models.ErrDegenerateScale, i)
			}
			continue
		}
		scale[i] = s
		for r := 0; r < TileRows; r++ {
			row := window[r*tot : (r+1)*tot]
			for w, v := range row {
				batch.Set(i, w, r, float32(v/s))
			}
		}
	}
	return batch, scale, nil
}
