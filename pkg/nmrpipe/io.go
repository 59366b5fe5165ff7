package nmrpipe

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/bits"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"nmrrecon/internal/models"
)

// Dataset is a header plus row-major data, slowest axis first.
type Dataset struct {
	Header *Header
	Shape  []int
	Data   []float64
}

// NewPlaneDataset wraps a 2D plane. The header is used as is.
func NewPlaneDataset(h *Header, plane *mat.Dense) *Dataset {
	r, c := plane.Dims()
	data := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		data = append(data, plane.RawRowView(i)...)
	}
	return &Dataset{Header: h, Shape: []int{r, c}, Data: data}
}

// NewCubeDataset wraps a 3D cube. The cube data is shared, not copied.
func NewCubeDataset(h *Header, c *models.Cube) *Dataset {
	return &Dataset{Header: h, Shape: []int{c.Depth, c.Height, c.Width}, Data: c.Data}
}

// Plane returns a copy of 2D data as a matrix.
func (d *Dataset) Plane() (*mat.Dense, error) {
	if len(d.Shape) != 2 {
		return nil, fmt.Errorf("%w: expected 2D data, got shape %v", models.ErrInputShape, d.Shape)
	}
	data := make([]float64, len(d.Data))
	copy(data, d.Data)
	return mat.NewDense(d.Shape[0], d.Shape[1], data), nil
}

// Cube returns 3D data as a cube sharing the dataset's storage.
func (d *Dataset) Cube() (*models.Cube, error) {
	if len(d.Shape) != 3 {
		return nil, fmt.Errorf("%w: expected 3D data, got shape %v", models.ErrInputShape, d.Shape)
	}
	return &models.Cube{Data: d.Data, Depth: d.Shape[0], Height: d.Shape[1], Width: d.Shape[2]}, nil
}

// Read decodes an NMRPipe stream. The byte order is detected from the
// FDFLTORDER word.
func Read(r io.Reader) (*Dataset, error) {
	raw := make([]byte, HeaderWords*4)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", models.ErrIO, err)
	}

	order, err := detectOrder(raw)
	if err != nil {
		return nil, err
	}

	h := &Header{}
	for i := range h.words {
		h.words[i] = order.Uint32(raw[i*4:])
	}
	if order == binary.BigEndian {
		// text fields are byte strings, not numbers
		for _, i := range labelIndex {
			h.words[i] = bits.ReverseBytes32(h.words[i])
			h.words[i+1] = bits.ReverseBytes32(h.words[i+1])
		}
	}

	shape, err := h.Shape()
	if err != nil {
		return nil, err
	}
	n := 1
	for _, d := range shape {
		n *= d
	}

	buf := make([]byte, n*4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("%w: reading %d data points for shape %v: %v", models.ErrIO, n, shape, err)
	}
	data := make([]float64, n)
	for i := range data {
		data[i] = float64(math.Float32frombits(order.Uint32(buf[i*4:])))
	}

	return &Dataset{Header: h, Shape: shape, Data: data}, nil
}

func detectOrder(raw []byte) (binary.ByteOrder, error) {
	const tol = 1e-4
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		v := math.Float32frombits(order.Uint32(raw[2*4:]))
		if math.Abs(float64(v)-fltOrder) < tol {
			return order, nil
		}
	}
	return nil, fmt.Errorf("%w: not an NMRPipe file (FDFLTORDER does not match)", models.ErrIO)
}

// ReadFile reads an NMRPipe file from disk.
func ReadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrIO, err)
	}
	defer f.Close()

	ds, err := Read(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ds, nil
}

// Write encodes d in little-endian order. The header must describe the
// dataset's shape.
func Write(w io.Writer, d *Dataset) error {
	if d.Header == nil {
		return fmt.Errorf("%w: dataset has no header", models.ErrInputShape)
	}
	shape, err := d.Header.Shape()
	if err != nil {
		return err
	}
	if !equalShape(shape, d.Shape) {
		return fmt.Errorf("%w: header describes %v but data is %v", models.ErrInputShape, shape, d.Shape)
	}
	n := 1
	for _, s := range d.Shape {
		n *= s
	}
	if len(d.Data) != n {
		return fmt.Errorf("%w: %d values for shape %v", models.ErrInputShape, len(d.Data), d.Shape)
	}

	h := d.Header.Clone()
	h.mustSet("FDFLTFORMAT", fltFormat)
	h.mustSet("FDFLTORDER", fltOrder)

	buf := make([]byte, (HeaderWords+n)*4)
	for i, word := range h.words {
		binary.LittleEndian.PutUint32(buf[i*4:], word)
	}
	off := HeaderWords * 4
	for i, v := range d.Data {
		binary.LittleEndian.PutUint32(buf[off+i*4:], math.Float32bits(float32(v)))
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("%w: %v", models.ErrIO, err)
	}
	return nil
}

// WriteFile writes d to path through a temporary file in the same
// directory, so path only ever holds a complete dataset. An existing file
// is replaced only when overwrite is set.
func WriteFile(path string, d *Dataset, overwrite bool) (err error) {
	if !overwrite {
		if _, statErr := os.Stat(path); statErr == nil {
			return fmt.Errorf("%w: %s exists and overwrite is disabled", models.ErrIO, path)
		} else if !errors.Is(statErr, os.ErrNotExist) {
			return fmt.Errorf("%w: %v", models.ErrIO, statErr)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrIO, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = Write(bw, d); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrIO, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrIO, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrIO, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: %v", models.ErrIO, err)
	}
	return nil
}

func equalShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
