package spectral

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// fftRows performs an in-place 1D forward Fourier transform of every row.
// All rows must share one length so a single Gonum plan can be reused.
//
// Parameters:
//   - rows: complex rows, each transformed independently
//   - shift: when true the zero frequency is moved to the centre of each row
func fftRows(rows [][]complex128, shift bool) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}
	n := len(rows[0])

	// Create one FFT object from Gonum for the whole plane
	fft := fourier.NewCmplxFFT(n)
	scratch := make([]complex128, n)

	for _, row := range rows {
		fft.Coefficients(scratch, row)
		if shift {
			fftShift(row, scratch)
		} else {
			copy(row, scratch)
		}
	}
}

// fftShift writes src into dst rotated by half its length so that the zero
// frequency sits at index n/2, matching numpy.fft.fftshift
func fftShift(dst, src []complex128) {
	n := len(src)
	h := n / 2
	copy(dst[h:], src[:n-h])
	copy(dst[:h], src[n-h:])
}
