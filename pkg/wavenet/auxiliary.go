package wavenet

import (
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"

	"nmrrecon/pkg/tiling"
)

// Auxiliary computes the frequency-domain view the network was trained
// against: each tile row is read as interleaved real/imaginary pairs,
// Fourier transformed, and the real part kept. Tile i becomes a
// (Width/2) x 4 matrix. Reconstruction does not need it; it is an opt-in
// diagnostic.
func Auxiliary(out *tiling.Batch) []*mat.Dense {
	points := out.Width / 2
	fft := fourier.NewCmplxFFT(points)
	seq := make([]complex128, points)
	coeff := make([]complex128, points)

	res := make([]*mat.Dense, out.N)
	for i := 0; i < out.N; i++ {
		m := mat.NewDense(points, tiling.TileRows, nil)
		for r := 0; r < tiling.TileRows; r++ {
			for k := range seq {
				seq[k] = complex(float64(out.At(i, 2*k, r)), float64(out.At(i, 2*k+1, r)))
			}
			fft.Coefficients(coeff, seq)
			for k, v := range coeff {
				m.Set(k, r, real(v))
			}
		}
		res[i] = m
	}
	return res
}
