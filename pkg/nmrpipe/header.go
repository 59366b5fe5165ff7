// Package nmrpipe reads and writes NMRPipe spectral files: a 512 word
// float32 header followed by the float32 data of every 1D vector.
package nmrpipe

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"nmrrecon/internal/models"
)

// HeaderWords is the number of float32 words in an NMRPipe header.
const HeaderWords = 512

const (
	// fltOrder is stored in FDFLTORDER so readers can detect byte order.
	fltOrder = 2.345

	// fltFormat marks IEEE float data in FDFLTFORMAT.
	fltFormat = 4008636160.0
)

// fieldIndex maps header keys to word offsets.
var fieldIndex = map[string]int{
	"FDMAGIC":      0,
	"FDFLTFORMAT":  1,
	"FDFLTORDER":   2,
	"FDDIMCOUNT":   9,
	"FDF3OBS":      10,
	"FDF3SW":       11,
	"FDF3ORIG":     12,
	"FDF3FTFLAG":   13,
	"FDPLANELOC":   14,
	"FDF3SIZE":     15,
	"FDDIMORDER1":  24,
	"FDDIMORDER2":  25,
	"FDDIMORDER3":  26,
	"FDDIMORDER4":  27,
	"FDF4OBS":      28,
	"FDF4SW":       29,
	"FDF4ORIG":     30,
	"FDF4FTFLAG":   31,
	"FDF4SIZE":     32,
	"FDF3APOD":     50,
	"FDF3QUADFLAG": 51,
	"FDF4APOD":     53,
	"FDF4QUADFLAG": 54,
	"FDF1QUADFLAG": 55,
	"FDF2QUADFLAG": 56,
	"FDPIPEFLAG":   57,
	"FDF2CAR":      66,
	"FDF1CAR":      67,
	"FDF3CAR":      68,
	"FDF4CAR":      69,
	"FDF2APOD":     95,
	"FDREALSIZE":   97,
	"FDSIZE":       99,
	"FDF2SW":       100,
	"FDF2ORIG":     101,
	"FDQUADFLAG":   106,
	"FDF2OBS":      119,
	"FDF1OBS":      218,
	"FDSPECNUM":    219,
	"FDF2FTFLAG":   220,
	"FDTRANSPOSED": 221,
	"FDF1FTFLAG":   222,
	"FDF1SW":       229,
	"FDMAX":        247,
	"FDMIN":        248,
	"FDF1ORIG":     249,
	"FDSCALEFLAG":  250,
	"FDF2TDSIZE":   386,
	"FDF1TDSIZE":   387,
	"FDF3TDSIZE":   388,
	"FDF4TDSIZE":   389,
	"FDF1APOD":     428,
	"FDFILECOUNT":  442,
	"FDSLICECOUNT": 443,
	"FDCUBEFLAG":   447,
}

// labelIndex maps the per-dimension 8 character labels to their first word.
var labelIndex = map[string]int{
	"FDF2LABEL": 16,
	"FDF1LABEL": 18,
	"FDF3LABEL": 20,
	"FDF4LABEL": 22,
}

// Header is an NMRPipe file header. Words keep their raw bits so text
// fields survive a read/write round trip.
type Header struct {
	words [HeaderWords]uint32
}

// NewHeader returns a header describing a real-valued dataset of the given
// shape (2 or 3 axes, slowest first) with the conventional F2/F1/F3 order.
func NewHeader(shape []int) (*Header, error) {
	if len(shape) < 2 || len(shape) > 3 {
		return nil, fmt.Errorf("%w: only 2D and 3D datasets are supported, got %d axes", models.ErrInputShape, len(shape))
	}
	h := &Header{}
	h.mustSet("FDFLTFORMAT", fltFormat)
	h.mustSet("FDFLTORDER", fltOrder)
	h.mustSet("FDDIMCOUNT", float64(len(shape)))
	h.mustSet("FDDIMORDER1", 2)
	h.mustSet("FDDIMORDER2", 1)
	h.mustSet("FDDIMORDER3", 3)
	h.mustSet("FDDIMORDER4", 4)
	for _, k := range []string{"FDQUADFLAG", "FDF1QUADFLAG", "FDF2QUADFLAG", "FDF3QUADFLAG", "FDF4QUADFLAG"} {
		h.mustSet(k, 1)
	}
	n := len(shape)
	h.mustSet("FDSIZE", float64(shape[n-1]))
	h.mustSet("FDREALSIZE", float64(shape[n-1]))
	h.mustSet("FDSPECNUM", float64(shape[n-2]))
	h.mustSet("FDF3SIZE", 1)
	h.mustSet("FDF4SIZE", 1)
	h.mustSet("FDFILECOUNT", 1)
	if n == 3 {
		h.mustSet("FDF3SIZE", float64(shape[0]))
		h.mustSet("FDPIPEFLAG", 1)
	}
	return h, nil
}

// Clone returns an independent copy of h.
func (h *Header) Clone() *Header {
	c := *h
	return &c
}

// Get returns the value of a numeric header field. Unknown keys return 0
// and false.
func (h *Header) Get(key string) (float64, bool) {
	i, ok := fieldIndex[key]
	if !ok {
		return 0, false
	}
	return float64(math.Float32frombits(h.words[i])), true
}

// Value returns a numeric field, or 0 if the key is unknown.
func (h *Header) Value(key string) float64 {
	v, _ := h.Get(key)
	return v
}

// Int returns a numeric field rounded to the nearest integer.
func (h *Header) Int(key string) int {
	return int(math.Round(h.Value(key)))
}

// Set stores a numeric header field.
func (h *Header) Set(key string, v float64) error {
	i, ok := fieldIndex[key]
	if !ok {
		return fmt.Errorf("unknown NMRPipe header field %q", key)
	}
	h.words[i] = math.Float32bits(float32(v))
	return nil
}

func (h *Header) mustSet(key string, v float64) {
	if err := h.Set(key, v); err != nil {
		panic(err)
	}
}

// Label returns an 8 character axis label such as FDF1LABEL.
func (h *Header) Label(key string) string {
	i, ok := labelIndex[key]
	if !ok {
		return ""
	}
	var b [8]byte
	binary.LittleEndian.PutUint32(b[:4], h.words[i])
	binary.LittleEndian.PutUint32(b[4:], h.words[i+1])
	return strings.TrimRight(string(b[:]), "\x00 ")
}

// SetLabel stores an axis label, truncated to 8 bytes.
func (h *Header) SetLabel(key, label string) error {
	i, ok := labelIndex[key]
	if !ok {
		return fmt.Errorf("unknown NMRPipe label field %q", key)
	}
	var b [8]byte
	copy(b[:], label)
	h.words[i] = binary.LittleEndian.Uint32(b[:4])
	h.words[i+1] = binary.LittleEndian.Uint32(b[4:])
	return nil
}

// Shape derives the data shape, slowest axis first, from the header.
// Data with a complex direct dimension is rejected: reconstruction works on
// real planes only.
func (h *Header) Shape() ([]int, error) {
	ndim := h.Int("FDDIMCOUNT")
	if ndim < 2 || ndim > 3 {
		return nil, fmt.Errorf("%w: %d dimensional data is not supported", models.ErrInputShape, ndim)
	}

	transposed := h.Int("FDTRANSPOSED") == 1
	direct := "FDF2QUADFLAG"
	if transposed {
		direct = "FDF1QUADFLAG"
	}
	if h.Int(direct) != 1 {
		return nil, fmt.Errorf("%w: complex direct dimension is not supported", models.ErrInputShape)
	}

	x := h.Int("FDSIZE")
	y := h.Int("FDSPECNUM")
	// with a real direct dimension and a complex indirect one, FDSPECNUM
	// counts complex points, i.e. half the stored vectors
	if h.Int("FDQUADFLAG") == 0 {
		y *= 2
	}
	shape := []int{y, x}
	if ndim == 3 {
		shape = append([]int{h.Int("FDF3SIZE")}, shape...)
	}
	for _, d := range shape {
		if d <= 0 {
			return nil, fmt.Errorf("%w: header describes shape %v", models.ErrInputShape, shape)
		}
	}
	return shape, nil
}
