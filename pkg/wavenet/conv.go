package wavenet

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// convLayer is a 2D convolution with Keras "same" padding, evaluated as
// im2col followed by a single GEMM.
type convLayer struct {
	kh, kw   int
	in, out  int
	dilation int // along the height (tile width) axis only
	kernel   []float32
	bias     []float32
}

func newConvLayer(w Weights, prefix string, dilation int) convLayer {
	k := w[prefix+".kernel"]
	return convLayer{
		kh:       k.Shape[0],
		kw:       k.Shape[1],
		in:       k.Shape[2],
		out:      k.Shape[3],
		dilation: dilation,
		kernel:   k.Data,
		bias:     w[prefix+".bias"].Data,
	}
}

// padding returns the rows/columns added before the input along each axis.
// TensorFlow puts the smaller half of an odd total before the data.
func (c convLayer) padding() (top, left int) {
	effH := (c.kh-1)*c.dilation + 1
	return (effH - 1) / 2, (c.kw - 1) / 2
}

// apply convolves x, laid out (h, w, in), into dst laid out (h, w, out).
// cols is scratch space of at least h*w*kh*kw*in values.
func (c convLayer) apply(dst, x []float32, h, w int, cols []float32) {
	k := c.kh * c.kw * c.in
	positions := h * w
	cols = cols[:positions*k]
	top, left := c.padding()

	for oh := 0; oh < h; oh++ {
		for ow := 0; ow < w; ow++ {
			col := cols[(oh*w+ow)*k : (oh*w+ow+1)*k]
			for i := 0; i < c.kh; i++ {
				ih := oh - top + i*c.dilation
				for j := 0; j < c.kw; j++ {
					seg := col[(i*c.kw+j)*c.in : (i*c.kw+j+1)*c.in]
					iw := ow - left + j
					if ih < 0 || ih >= h || iw < 0 || iw >= w {
						clear(seg)
						continue
					}
					copy(seg, x[(ih*w+iw)*c.in:(ih*w+iw+1)*c.in])
				}
			}
		}
	}

	dst = dst[:positions*c.out]
	for p := 0; p < positions; p++ {
		copy(dst[p*c.out:(p+1)*c.out], c.bias)
	}
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
		blas32.General{Rows: positions, Cols: k, Stride: k, Data: cols},
		blas32.General{Rows: k, Cols: c.out, Stride: c.out, Data: c.kernel},
		1,
		blas32.General{Rows: positions, Cols: c.out, Stride: c.out, Data: dst},
	)
}
