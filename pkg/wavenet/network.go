package wavenet

import (
	"fmt"
	"math"
	"runtime"

	"nmrrecon/internal/models"
	"nmrrecon/pkg/tiling"
)

// gatedLayer is one residual unit: tanh(filter(x)) * sigmoid(gate(x)),
// projected back to the residual width.
type gatedLayer struct {
	filter convLayer
	gate   convLayer
	proj   convLayer
}

// Network evaluates a loaded FID-Net model on tile batches. It is read-only
// after construction and safe for concurrent use.
type Network struct {
	arch    Architecture
	layers  []gatedLayer
	hidden  convLayer
	out     convLayer
	workers int
}

// NewNetwork builds a network from weights that match arch. workers bounds
// how many tiles are evaluated at once; values below 1 use every CPU.
func NewNetwork(arch Architecture, w Weights, workers int) (*Network, error) {
	if err := arch.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrModelLoad, err)
	}
	if err := w.Check(arch); err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	n := &Network{arch: arch, workers: workers}
	for i, dil := range arch.Schedule() {
		n.layers = append(n.layers, gatedLayer{
			filter: newConvLayer(w, layerPrefix(i, "filter"), dil),
			gate:   newConvLayer(w, layerPrefix(i, "gate"), dil),
			proj:   newConvLayer(w, layerPrefix(i, "proj"), 1),
		})
	}
	n.hidden = newConvLayer(w, "head.hidden", 1)
	n.out = newConvLayer(w, "head.out", 1)
	return n, nil
}

// Architecture returns the configuration the network was built with.
func (n *Network) Architecture() Architecture {
	return n.arch
}

// Width is the tile width the network accepts.
func (n *Network) Width() int {
	return n.arch.Width
}

// scratch holds the per-worker buffers of one forward pass.
type scratch struct {
	cols    []float32
	x, next []float32
	a, g, z []float32
	skip    []float32
	hidden  []float32
}

func (n *Network) newScratch() *scratch {
	positions := n.arch.Width * tiling.TileRows
	res := n.arch.Residual()
	k := n.arch.KernelH * n.arch.KernelW * res
	return &scratch{
		cols:   make([]float32, positions*k),
		x:      make([]float32, positions*res),
		next:   make([]float32, positions*res),
		a:      make([]float32, positions*n.arch.Filters),
		g:      make([]float32, positions*n.arch.Filters),
		z:      make([]float32, positions*res),
		skip:   make([]float32, positions*res),
		hidden: make([]float32, positions*n.arch.Filters),
	}
}

// Predict returns the network's reconstruction of every tile in batch. Only
// the spatial output is produced; see Auxiliary for the Fourier branch.
func (n *Network) Predict(batch *tiling.Batch) (*tiling.Batch, error) {
	if batch.Width != n.arch.Width {
		return nil, fmt.Errorf("%w: batch width %d, network expects %d", models.ErrInputShape, batch.Width, n.arch.Width)
	}
	out := tiling.NewBatch(batch.N, batch.Width)
	if batch.N == 0 {
		return out, nil
	}

	workers := min(n.workers, batch.N)
	jobs := make(chan int)
	done := make(chan struct{})

	// Every tile writes a disjoint slice of out, so no locking is needed
	for w := 0; w < workers; w++ {
		go func() {
			s := n.newScratch()
			for i := range jobs {
				n.forward(out.Tile(i), batch.Tile(i), s)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < batch.N; i++ {
		jobs <- i
	}
	close(jobs)
	for w := 0; w < workers; w++ {
		<-done
	}
	return out, nil
}

// forward evaluates one tile. dst and tile are laid out (width, 4).
func (n *Network) forward(dst, tile []float32, s *scratch) {
	h, w := n.arch.Width, tiling.TileRows
	positions := h * w
	res := n.arch.Residual()

	// the input has one channel until the first residual add widens it
	x := s.x[:positions]
	copy(x, tile)
	channels := 1
	skip := s.skip[:positions*res]
	clear(skip)

	for _, layer := range n.layers {
		layer.filter.apply(s.a, x, h, w, s.cols)
		layer.gate.apply(s.g, x, h, w, s.cols)
		a := s.a[:positions*n.arch.Filters]
		for i, v := range a {
			a[i] = tanh32(v) * sigmoid32(s.g[i])
		}
		layer.proj.apply(s.z, a, h, w, s.cols)
		z := s.z[:positions*res]

		next := s.next[:positions*res]
		if channels == 1 {
			for p := 0; p < positions; p++ {
				for c := 0; c < res; c++ {
					next[p*res+c] = z[p*res+c] + x[p]
				}
			}
		} else {
			for i := range next {
				next[i] = z[i] + x[i]
			}
		}
		s.x, s.next = s.next, s.x
		x = s.x[:positions*res]
		channels = res

		for i, v := range z {
			skip[i] += v
		}
	}

	for i, v := range skip {
		skip[i] = relu32(v)
	}
	n.hidden.apply(s.hidden, skip, h, w, s.cols)
	hidden := s.hidden[:positions*n.arch.Filters]
	for i, v := range hidden {
		hidden[i] = relu32(v)
	}
	n.out.apply(dst, hidden, h, w, s.cols)
	for i, v := range dst {
		dst[i] = tanh32(v)
	}
}

func tanh32(v float32) float32 {
	return float32(math.Tanh(float64(v)))
}

func sigmoid32(v float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(v))))
}

func relu32(v float32) float32 {
	if v < 0 {
		return 0
	}
	return v
}
