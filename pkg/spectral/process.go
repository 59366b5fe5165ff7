// Package spectral implements the Fourier processing applied to the
// indirect dimension of a reconstructed plane: sine-bell apodisation,
// zero filling, a 1D transform and the phase correction that goes with a
// half-dwell (f1180) acquisition.
package spectral

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"nmrrecon/internal/models"
)

// Processing constants matching the acquisition scheme of the methyl
// experiments. They are not caller configurable.
const (
	ApodOffset = 0.42
	ApodEnd    = 0.98
	ApodPower  = 2.0

	PhaseZero  = 90.0
	PhaseFirst = -180.0
)

// Options controls Transform.
type Options struct {
	// F1180 applies the half-dwell convention: the first point is not halved
	// and a (90, -180) phase correction follows the transform.
	F1180 bool

	// Shift moves the zero frequency to the centre of each spectrum.
	Shift bool
}

// SineBell returns an n point sine-bell window raised to pow, starting at
// off*pi and ending at end*pi.
func SineBell(n int, off, end, pow float64) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = math.Pow(math.Sin(math.Pi*off), pow)
		return w
	}
	for i := range w {
		w[i] = math.Pow(math.Sin(math.Pi*off+math.Pi*(end-off)*float64(i)/float64(n-1)), pow)
	}
	return w
}

// ZeroFill returns x followed by pad zeros.
func ZeroFill(x []complex128, pad int) []complex128 {
	out := make([]complex128, len(x)+pad)
	copy(out, x)
	return out
}

// PhaseCorrect applies zero- and first-order phase correction in degrees, in
// place. Point j is rotated by p0 + p1*j/n.
func PhaseCorrect(x []complex128, p0, p1 float64) {
	n := float64(len(x))
	a0 := p0 * math.Pi / 180
	a1 := p1 * math.Pi / 180
	for j := range x {
		x[j] *= cmplx.Exp(complex(0, a0+a1*float64(j)/n))
	}
}

// Transform processes every row of plane as an interleaved real/imaginary
// time-domain signal and returns the complex spectra. A row of n real values
// yields n complex spectral points (n/2 acquired, n/2 zero filled).
func Transform(plane mat.Matrix, opts Options) ([][]complex128, error) {
	rows, n := plane.Dims()
	if n == 0 || n%2 != 0 {
		return nil, fmt.Errorf("%w: complex packed axis needs an even, non-zero length, got %d", models.ErrInputShape, n)
	}
	half := n / 2
	window := SineBell(half, ApodOffset, ApodEnd, ApodPower)

	spectra := make([][]complex128, rows)
	for i := 0; i < rows; i++ {
		fid := make([]complex128, half)
		for j := range fid {
			fid[j] = complex(plane.At(i, 2*j)*window[j], plane.At(i, 2*j+1)*window[j])
		}
		fid = ZeroFill(fid, half)
		if !opts.F1180 {
			fid[0] *= 0.5
		}
		spectra[i] = fid
	}

	fftRows(spectra, opts.Shift)

	if opts.F1180 {
		for _, s := range spectra {
			PhaseCorrect(s, PhaseZero, PhaseFirst)
		}
	}
	return spectra, nil
}

// FTSecond returns the real part of Transform with the same shape as plane.
func FTSecond(plane mat.Matrix, opts Options) (*mat.Dense, error) {
	spectra, err := Transform(plane, opts)
	if err != nil {
		return nil, err
	}
	rows, n := plane.Dims()
	out := mat.NewDense(rows, n, nil)
	for i, s := range spectra {
		row := out.RawRowView(i)
		for j, v := range s {
			row[j] = real(v)
		}
	}
	return out, nil
}

// NormalizeMax divides m by its largest value in place. A plane whose
// maximum is not positive is left untouched and false is returned.
func NormalizeMax(m *mat.Dense) bool {
	r, _ := m.Dims()
	peak := math.Inf(-1)
	for i := 0; i < r; i++ {
		peak = math.Max(peak, floats.Max(m.RawRowView(i)))
	}
	if !(peak > 0) {
		return false
	}
	m.Scale(1/peak, m)
	return true
}
