package wavenet

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nmrrecon/internal/models"
	"nmrrecon/pkg/tiling"
)

// tinyArchitecture keeps forward passes cheap while exercising dilation,
// the single-channel first layer and the head
func tinyArchitecture() Architecture {
	return Architecture{
		Width:     16,
		Dilations: []int{1, 2},
		Blocks:    2,
		Filters:   2,
		KernelH:   8,
		KernelW:   4,
	}
}

func randomWeights(arch Architecture, seed uint64) Weights {
	rng := rand.New(rand.NewPCG(seed, 7))
	w := make(Weights)
	for _, spec := range arch.TensorSpecs() {
		data := make([]float32, elements(spec.Shape))
		for i := range data {
			data[i] = float32(rng.NormFloat64() * 0.2)
		}
		w[spec.Name] = Tensor{Shape: spec.Shape, Data: data}
	}
	return w
}

func zeroWeights(arch Architecture) Weights {
	w := make(Weights)
	for _, spec := range arch.TensorSpecs() {
		w[spec.Name] = Tensor{Shape: spec.Shape, Data: make([]float32, elements(spec.Shape))}
	}
	return w
}

func randomBatch(n, width int, seed uint64) *tiling.Batch {
	rng := rand.New(rand.NewPCG(seed, 11))
	b := tiling.NewBatch(n, width)
	for i := range b.Data {
		b.Data[i] = float32(rng.Float64()*2 - 1)
	}
	return b
}

func TestArchitectureFor(t *testing.T) {
	dec := ArchitectureFor(models.ModeDecoupled13C)
	assert.Equal(t, 1024, dec.Width)
	assert.Equal(t, []int{1, 2, 4, 6, 8, 10, 12, 14, 16, 20, 24, 28, 32, 40, 48, 56, 64}, dec.Dilations)
	assert.Equal(t, 51, dec.Layers())
	assert.Equal(t, 128, dec.Residual())

	h1 := ArchitectureFor(models.ModeProton1H)
	assert.Equal(t, 512, h1.Width)
	assert.Equal(t, []int{1, 2, 4, 6, 8, 10, 12, 14, 16, 20, 24, 28, 32}, h1.Dilations)
	assert.Equal(t, 39, h1.Layers())

	for _, a := range []Architecture{dec, h1} {
		assert.Equal(t, 3, a.Blocks)
		assert.Equal(t, 64, a.Filters)
		assert.Equal(t, 8, a.KernelH)
		assert.Equal(t, 4, a.KernelW)
		assert.NoError(t, a.Validate())
	}

	// the schedules must not share backing storage
	dec.Dilations[0] = 99
	assert.Equal(t, 1, ArchitectureFor(models.ModeDecoupled13C).Dilations[0])
}

func TestModelConfigPathFor(t *testing.T) {
	cfg := ModelConfig{Carbon13Path: "c13.safetensors", Proton1HPath: "h1.safetensors"}
	assert.Equal(t, "c13.safetensors", cfg.PathFor(models.ModeDecoupled13C))
	assert.Equal(t, "h1.safetensors", cfg.PathFor(models.ModeProton1H))

	_, err := Load(ModelConfig{}, models.ModeProton1H, 1)
	assert.True(t, errors.Is(err, models.ErrModelLoad))
}

func TestTensorSpecs(t *testing.T) {
	arch := tinyArchitecture()
	specs := arch.TensorSpecs()
	require.Len(t, specs, arch.Layers()*6+4)

	byName := map[string][]int{}
	for _, s := range specs {
		byName[s.Name] = s.Shape
	}
	assert.Equal(t, []int{8, 4, 1, 2}, byName["wave.0.filter.kernel"])
	assert.Equal(t, []int{8, 4, 4, 2}, byName["wave.1.gate.kernel"])
	assert.Equal(t, []int{8, 4, 2, 4}, byName["wave.3.proj.kernel"])
	assert.Equal(t, []int{4}, byName["wave.3.proj.bias"])
	assert.Equal(t, []int{8, 4, 4, 2}, byName["head.hidden.kernel"])
	assert.Equal(t, []int{8, 4, 2, 1}, byName["head.out.kernel"])
}

// TestConvSamePadding checks Keras "same" alignment: a single tap at the
// padding offset reproduces the input, and with dilation 2 the nearest tap
// reads one row ahead
func TestConvSamePadding(t *testing.T) {
	const h, w = 10, 4
	x := make([]float32, h*w)
	for i := range x {
		x[i] = float32(i + 1)
	}
	cols := make([]float32, h*w*8*4)
	dst := make([]float32, h*w)

	conv := convLayer{kh: 8, kw: 4, in: 1, out: 1, dilation: 1, kernel: make([]float32, 32), bias: []float32{0}}
	top, left := conv.padding()
	require.Equal(t, 3, top)
	require.Equal(t, 1, left)
	conv.kernel[top*4+left] = 1
	conv.apply(dst, x, h, w, cols)
	assert.Equal(t, x, dst)

	conv.dilation = 2
	top, _ = conv.padding()
	require.Equal(t, 7, top)
	clear(conv.kernel)
	conv.kernel[4*4+left] = 1 // row offset 4*2-7 = +1
	conv.apply(dst, x, h, w, cols)
	for oh := 0; oh < h; oh++ {
		for ow := 0; ow < w; ow++ {
			want := float32(0)
			if oh+1 < h {
				want = x[(oh+1)*w+ow]
			}
			assert.Equal(t, want, dst[oh*w+ow], "row %d col %d", oh, ow)
		}
	}
}

func TestConvBiasAndChannels(t *testing.T) {
	const h, w = 3, 4
	x := make([]float32, h*w*2)
	for p := 0; p < h*w; p++ {
		x[p*2] = 1
		x[p*2+1] = 2
	}
	// 1x1 kernel mixing two channels into three
	conv := convLayer{
		kh: 1, kw: 1, in: 2, out: 3, dilation: 1,
		kernel: []float32{1, 0, 1, 0, 1, 1},
		bias:   []float32{0.5, 0, -1},
	}
	dst := make([]float32, h*w*3)
	conv.apply(dst, x, h, w, make([]float32, h*w*2))
	for p := 0; p < h*w; p++ {
		assert.Equal(t, []float32{1.5, 2, 2}, dst[p*3:(p+1)*3])
	}
}

func TestNetworkZeroWeights(t *testing.T) {
	arch := tinyArchitecture()
	w := zeroWeights(arch)
	w["head.out.bias"].Data[0] = 0.5

	net, err := NewNetwork(arch, w, 2)
	require.NoError(t, err)

	out, err := net.Predict(randomBatch(3, arch.Width, 1))
	require.NoError(t, err)
	for _, v := range out.Data {
		assert.InDelta(t, math.Tanh(0.5), float64(v), 1e-6)
	}
}

func TestNetworkDeterministicAcrossWorkers(t *testing.T) {
	arch := tinyArchitecture()
	weights := randomWeights(arch, 3)
	batch := randomBatch(5, arch.Width, 4)
	// tile 4 repeats tile 1, so it must produce the same prediction
	copy(batch.Tile(4), batch.Tile(1))

	serial, err := NewNetwork(arch, weights, 1)
	require.NoError(t, err)
	parallel, err := NewNetwork(arch, weights, 4)
	require.NoError(t, err)

	a, err := serial.Predict(batch)
	require.NoError(t, err)
	b, err := parallel.Predict(batch)
	require.NoError(t, err)

	assert.Equal(t, [4]int{5, arch.Width, 4, 1}, a.Shape())
	assert.Equal(t, a.Data, b.Data)
	assert.Equal(t, a.Tile(1), a.Tile(4))
	for _, v := range a.Data {
		assert.False(t, math.IsNaN(float64(v)))
		assert.LessOrEqual(t, math.Abs(float64(v)), 1.0)
	}
}

func TestNetworkRejectsWidth(t *testing.T) {
	arch := tinyArchitecture()
	net, err := NewNetwork(arch, zeroWeights(arch), 1)
	require.NoError(t, err)
	_, err = net.Predict(tiling.NewBatch(2, 32))
	assert.True(t, errors.Is(err, models.ErrInputShape))
}

func TestNewNetworkChecksWeights(t *testing.T) {
	arch := tinyArchitecture()
	w := zeroWeights(arch)
	delete(w, "wave.2.gate.bias")
	_, err := NewNetwork(arch, w, 1)
	assert.True(t, errors.Is(err, models.ErrModelLoad))

	w = zeroWeights(arch)
	w["head.out.kernel"] = Tensor{Shape: []int{8, 4, 1, 2}, Data: make([]float32, 64)}
	_, err = NewNetwork(arch, w, 1)
	assert.True(t, errors.Is(err, models.ErrModelLoad))
}

// writeSafeTensors stores w in the SafeTensors layout: a little-endian
// header length, a JSON index, then the raw float32 data
func writeSafeTensors(t *testing.T, path string, w Weights) {
	t.Helper()
	type entry struct {
		DType       string   `json:"dtype"`
		Shape       []int    `json:"shape"`
		DataOffsets [2]int64 `json:"data_offsets"`
	}
	header := map[string]any{"__metadata__": map[string]string{"format": "pt"}}
	var data []byte
	for name, tensor := range w {
		start := int64(len(data))
		for _, v := range tensor.Data {
			data = binary.LittleEndian.AppendUint32(data, math.Float32bits(v))
		}
		header[name] = entry{DType: "F32", Shape: tensor.Shape, DataOffsets: [2]int64{start, int64(len(data))}}
	}
	js, err := json.Marshal(header)
	require.NoError(t, err)

	buf := binary.LittleEndian.AppendUint64(nil, uint64(len(js)))
	buf = append(buf, js...)
	buf = append(buf, data...)
	require.NoError(t, os.WriteFile(path, buf, 0644))
}

func TestLoadWeights(t *testing.T) {
	arch := tinyArchitecture()
	want := randomWeights(arch, 9)
	path := filepath.Join(t.TempDir(), "tiny.safetensors")
	writeSafeTensors(t, path, want)

	got, err := LoadWeights(path, arch)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for name, tensor := range want {
		assert.Equal(t, tensor.Shape, got[name].Shape, name)
		assert.Equal(t, tensor.Data, got[name].Data, name)
	}

	net, err := NewNetwork(arch, got, 1)
	require.NoError(t, err)
	assert.Equal(t, arch.Width, net.Width())
}

func TestLoadWeightsErrors(t *testing.T) {
	arch := tinyArchitecture()

	_, err := LoadWeights(filepath.Join(t.TempDir(), "absent.safetensors"), arch)
	assert.True(t, errors.Is(err, models.ErrModelLoad))

	w := randomWeights(arch, 2)
	delete(w, "head.hidden.bias")
	path := filepath.Join(t.TempDir(), "partial.safetensors")
	writeSafeTensors(t, path, w)
	_, err = LoadWeights(path, arch)
	assert.True(t, errors.Is(err, models.ErrModelLoad))
}

func TestAuxiliary(t *testing.T) {
	b := tiling.NewBatch(2, 8)
	// a real spike at the first complex point of every row of tile 1
	for r := 0; r < tiling.TileRows; r++ {
		b.Set(1, 0, r, 1)
	}
	aux := Auxiliary(b)
	require.Len(t, aux, 2)

	rows, cols := aux[1].Dims()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 4, cols)
	for k := 0; k < rows; k++ {
		for r := 0; r < cols; r++ {
			assert.InDelta(t, 1.0, aux[1].At(k, r), 1e-12)
			assert.InDelta(t, 0.0, aux[0].At(k, r), 1e-12)
		}
	}
}

func TestIdentity(t *testing.T) {
	in := randomBatch(3, 8, 5)
	out, err := Identity{TileWidth: 8}.Predict(in)
	require.NoError(t, err)
	assert.Equal(t, in.Data, out.Data)
	out.Data[0] = 42
	assert.NotEqual(t, float32(42), in.Data[0])
}

// refConv is a direct float64 "same" convolution over an (h, w, in) map with
// an HWIO kernel, dilated along h.
func refConv(x []float64, h, w int, k, b Tensor, dil int) []float64 {
	kh, kw, in, out := k.Shape[0], k.Shape[1], k.Shape[2], k.Shape[3]
	top := (kh - 1) * dil / 2
	left := (kw - 1) / 2
	y := make([]float64, h*w*out)
	for oh := 0; oh < h; oh++ {
		for ow := 0; ow < w; ow++ {
			for co := 0; co < out; co++ {
				sum := float64(b.Data[co])
				for i := 0; i < kh; i++ {
					ih := oh - top + i*dil
					if ih < 0 || ih >= h {
						continue
					}
					for j := 0; j < kw; j++ {
						iw := ow - left + j
						if iw < 0 || iw >= w {
							continue
						}
						for ci := 0; ci < in; ci++ {
							sum += x[(ih*w+iw)*in+ci] * float64(k.Data[((i*kw+j)*in+ci)*out+co])
						}
					}
				}
				y[(oh*w+ow)*out+co] = sum
			}
		}
	}
	return y
}

// refForward evaluates the gated residual stack layer by layer the way the
// Keras graph is written: two dilated convs, tanh*sigmoid, 1x projection,
// residual add (broadcast from one channel on the first layer), skip sum,
// then relu -> conv -> relu -> conv -> tanh.
func refForward(arch Architecture, wts Weights, tile []float32) []float64 {
	h, w := arch.Width, tiling.TileRows
	res := arch.Residual()
	conv := func(x []float64, name string, dil int) []float64 {
		return refConv(x, h, w, wts[name+".kernel"], wts[name+".bias"], dil)
	}

	x := make([]float64, len(tile))
	for i, v := range tile {
		x[i] = float64(v)
	}
	channels := 1
	skip := make([]float64, h*w*res)

	for i, dil := range arch.Schedule() {
		f := conv(x, layerPrefix(i, "filter"), dil)
		g := conv(x, layerPrefix(i, "gate"), dil)
		for j := range f {
			f[j] = math.Tanh(f[j]) / (1 + math.Exp(-g[j]))
		}
		z := conv(f, layerPrefix(i, "proj"), 1)

		next := make([]float64, h*w*res)
		for p := 0; p < h*w; p++ {
			for c := 0; c < res; c++ {
				src := x[p*channels]
				if channels > 1 {
					src = x[p*channels+c]
				}
				next[p*res+c] = z[p*res+c] + src
				skip[p*res+c] += z[p*res+c]
			}
		}
		x, channels = next, res
	}

	for i := range skip {
		skip[i] = math.Max(skip[i], 0)
	}
	hidden := conv(skip, "head.hidden", 1)
	for i := range hidden {
		hidden[i] = math.Max(hidden[i], 0)
	}
	out := conv(hidden, "head.out", 1)
	for i := range out {
		out[i] = math.Tanh(out[i])
	}
	return out
}

func TestNetworkMatchesReference(t *testing.T) {
	arch := tinyArchitecture()
	weights := randomWeights(arch, 21)
	batch := randomBatch(3, arch.Width, 22)

	net, err := NewNetwork(arch, weights, 2)
	require.NoError(t, err)
	assert.Equal(t, arch, net.Architecture())

	got, err := net.Predict(batch)
	require.NoError(t, err)

	for i := 0; i < batch.N; i++ {
		want := refForward(arch, weights, batch.Tile(i))
		tile := got.Tile(i)
		require.Len(t, tile, len(want))
		for j := range want {
			assert.InDelta(t, want[j], float64(tile[j]), 1e-5, "tile %d element %d", i, j)
		}
	}
}
