package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"dec", ModeDecoupled13C},
		{" DEC ", ModeDecoupled13C},
		{"13c", ModeDecoupled13C},
		{"h1", ModeProton1H},
		{"Proton", ModeProton1H},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "n15", "decoupled"} {
		_, err := ParseMode(bad)
		assert.Error(t, err, bad)
	}

	assert.Equal(t, "dec", ModeDecoupled13C.String())
	assert.Equal(t, "h1", ModeProton1H.String())
}

func TestPermutations(t *testing.T) {
	assert.Equal(t, [3]int{1, 2, 0}, ModeDecoupled13C.Permutation())
	assert.Equal(t, [3]int{2, 0, 1}, ModeDecoupled13C.InversePermutation())
	assert.Equal(t, [3]int{0, 2, 1}, ModeProton1H.Permutation())
	assert.Equal(t, [3]int{0, 2, 1}, ModeProton1H.InversePermutation())
}

func countingCube(d, h, w int) *Cube {
	c := NewCube(d, h, w)
	for i := range c.Data {
		c.Data[i] = float64(i)
	}
	return c
}

func TestTranspose(t *testing.T) {
	c := countingCube(2, 3, 4)

	tr := c.Transpose([3]int{1, 2, 0})
	assert.Equal(t, [3]int{3, 4, 2}, tr.Shape())
	for z := 0; z < c.Depth; z++ {
		for y := 0; y < c.Height; y++ {
			for x := 0; x < c.Width; x++ {
				assert.Equal(t, c.At(z, y, x), tr.At(y, x, z))
			}
		}
	}

	for _, m := range []Mode{ModeDecoupled13C, ModeProton1H} {
		back := c.Transpose(m.Permutation()).Transpose(m.InversePermutation())
		assert.Equal(t, c, back, m.String())
	}
}

func TestPlaneAndSetPlane(t *testing.T) {
	c := countingCube(2, 2, 3)

	p := c.Plane(1)
	assert.Equal(t, []float64{6, 7, 8, 9, 10, 11}, p.RawMatrix().Data)

	// Plane returns a copy
	p.Set(0, 0, -1)
	assert.Equal(t, 6.0, c.At(1, 0, 0))

	require.NoError(t, c.SetPlane(0, mat.NewDense(2, 3, []float64{1, 1, 1, 2, 2, 2})))
	assert.Equal(t, 2.0, c.At(0, 1, 2))
	assert.Equal(t, 6.0, c.At(1, 0, 0))

	err := c.SetPlane(0, mat.NewDense(3, 2, nil))
	assert.ErrorIs(t, err, ErrInputShape)
}

func TestMaxAbsAndScale(t *testing.T) {
	c := NewCube(1, 2, 2)
	copy(c.Data, []float64{1, -5, 3, 2})
	assert.Equal(t, 5.0, c.MaxAbs())

	c.Scale(0.5)
	assert.Equal(t, []float64{0.5, -2.5, 1.5, 1}, c.Data)

	assert.Equal(t, 0.0, NewCube(0, 0, 0).MaxAbs())
	assert.Equal(t, 7.0, MaxAbsDense(mat.NewDense(2, 2, []float64{0, -7, 3, 1})))
}
