// Package visualization renders spectra and reconstructed datasets as
// grayscale PNG images for quick inspection.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"nmrrecon/internal/models"
)

// Viewer renders slices of a 3D dataset.
type Viewer struct {
	// cube holds the dataset, slowest axis first
	cube *models.Cube

	// peak is the largest magnitude in the cube, mapped to white
	peak float64
}

// NewViewer creates a viewer over cube. The cube is not copied.
func NewViewer(cube *models.Cube) *Viewer {
	return &Viewer{cube: cube, peak: cube.MaxAbs()}
}

// ExtractSlice renders the 2D slice at position along axis "x", "y" or "z".
// Axis z is the slowest (first) cube axis. Values are mapped from
// [-peak, peak] to black..white over the whole cube.
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	c := v.cube

	var plane *mat.Dense
	switch axis {
	case "x", "X":
		if position >= c.Width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, c.Width)
		}
		plane = mat.NewDense(c.Height, c.Depth, nil)
		for y := 0; y < c.Height; y++ {
			for z := 0; z < c.Depth; z++ {
				plane.Set(y, z, c.At(z, y, position))
			}
		}
	case "y", "Y":
		if position >= c.Height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, c.Height)
		}
		plane = mat.NewDense(c.Depth, c.Width, nil)
		for z := 0; z < c.Depth; z++ {
			for x := 0; x < c.Width; x++ {
				plane.Set(z, x, c.At(z, position, x))
			}
		}
	case "z", "Z":
		if position >= c.Depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, c.Depth)
		}
		plane = c.Plane(position)
	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}
	return render(plane, v.peak), nil
}

// SaveSliceSequence saves every slice along axis as slice_<axis>_NNN.png.
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.cube.Width
	case "y", "Y":
		maxPos = v.cube.Height
	case "z", "Z":
		maxPos = v.cube.Depth
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", axis, pos))
		if err := saveImage(img, filename); err != nil {
			return err
		}
	}
	return nil
}

// SavePlane renders plane scaled by its own largest magnitude and writes it
// to filename as a 16 bit grayscale PNG. Rows run down the image.
func SavePlane(plane *mat.Dense, filename string) error {
	return saveImage(render(plane, models.MaxAbsDense(plane)), filename)
}

// SaveDiagnostics writes the original and reconstructed spectra of an
// indirect reconstruction to dir as original.png and reconstructed.png.
func SaveDiagnostics(dir string, original, reconstructed *mat.Dense) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create diagnostics directory: %w", err)
	}
	if err := SavePlane(original, filepath.Join(dir, "original.png")); err != nil {
		return err
	}
	return SavePlane(reconstructed, filepath.Join(dir, "reconstructed.png"))
}

// render maps [-peak, peak] onto the 16 bit gray range. A zero peak gives a
// mid-gray image.
func render(plane *mat.Dense, peak float64) *image.Gray16 {
	rows, cols := plane.Dims()
	img := image.NewGray16(image.Rect(0, 0, cols, rows))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			norm := 0.0
			if peak > 0 {
				norm = plane.At(y, x) / peak
			}
			value := uint16(math.Max(0, math.Min(65535, (norm+1)/2*65535)))
			img.SetGray16(x, y, color.Gray16{Y: value})
		}
	}
	return img
}

func saveImage(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
