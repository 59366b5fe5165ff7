package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Cube represents a 3D spectral dataset held in memory
type Cube struct {
	// Data is the cube as a 1D array in row-major order: z*Height*Width + y*Width + x
	Data []float64

	// Depth is the number of planes along axis 0
	Depth int

	// Height is the number of rows of each plane (axis 1)
	Height int

	// Width is the number of columns of each plane (axis 2)
	Width int
}

// NewCube allocates a zeroed cube
func NewCube(depth, height, width int) *Cube {
	return &Cube{
		Data:   make([]float64, depth*height*width),
		Depth:  depth,
		Height: height,
		Width:  width,
	}
}

// Shape returns the axis lengths in storage order
func (c *Cube) Shape() [3]int {
	return [3]int{c.Depth, c.Height, c.Width}
}

func (c *Cube) index(z, y, x int) int {
	return z*c.Height*c.Width + y*c.Width + x
}

// At returns the value at (z, y, x)
func (c *Cube) At(z, y, x int) float64 {
	return c.Data[c.index(z, y, x)]
}

// Set stores v at (z, y, x)
func (c *Cube) Set(z, y, x int, v float64) {
	c.Data[c.index(z, y, x)] = v
}

// Plane returns a copy of plane z as a Height x Width matrix
func (c *Cube) Plane(z int) *mat.Dense {
	start := c.index(z, 0, 0)
	data := make([]float64, c.Height*c.Width)
	copy(data, c.Data[start:start+len(data)])
	return mat.NewDense(c.Height, c.Width, data)
}

// SetPlane copies p into plane z. p must be Height x Width.
func (c *Cube) SetPlane(z int, p mat.Matrix) error {
	r, w := p.Dims()
	if r != c.Height || w != c.Width {
		return fmt.Errorf("%w: plane is %dx%d, cube planes are %dx%d", ErrInputShape, r, w, c.Height, c.Width)
	}
	for y := 0; y < r; y++ {
		row := c.Data[c.index(z, y, 0) : c.index(z, y, 0)+w]
		for x := range row {
			row[x] = p.At(y, x)
		}
	}
	return nil
}

// Transpose returns a new cube whose axis i is axis perm[i] of c
func (c *Cube) Transpose(perm [3]int) *Cube {
	src := c.Shape()
	out := NewCube(src[perm[0]], src[perm[1]], src[perm[2]])

	var idx [3]int
	for z := 0; z < out.Depth; z++ {
		idx[perm[0]] = z
		for y := 0; y < out.Height; y++ {
			idx[perm[1]] = y
			for x := 0; x < out.Width; x++ {
				idx[perm[2]] = x
				out.Data[out.index(z, y, x)] = c.Data[c.index(idx[0], idx[1], idx[2])]
			}
		}
	}
	return out
}

// MaxAbs returns the largest absolute value in the cube
func (c *Cube) MaxAbs() float64 {
	if len(c.Data) == 0 {
		return 0
	}
	return floats.Norm(c.Data, math.Inf(1))
}

// Scale multiplies every value by f in place
func (c *Cube) Scale(f float64) {
	floats.Scale(f, c.Data)
}

// MaxAbsDense returns the largest absolute value of a matrix
func MaxAbsDense(m *mat.Dense) float64 {
	r, w := m.Dims()
	best := 0.0
	for i := 0; i < r; i++ {
		if v := floats.Norm(m.RawRowView(i)[:w], math.Inf(1)); v > best {
			best = v
		}
	}
	return best
}
