package wavenet

import "nmrrecon/pkg/tiling"

// Identity returns every tile unchanged. It stands in for a trained model
// in dry runs and in tests of the tiling arithmetic.
type Identity struct {
	// TileWidth is reported by Width.
	TileWidth int
}

// Predict copies batch.
func (id Identity) Predict(batch *tiling.Batch) (*tiling.Batch, error) {
	out := tiling.NewBatch(batch.N, batch.Width)
	copy(out.Data, batch.Data)
	return out, nil
}

// Width returns the configured tile width.
func (id Identity) Width() int {
	return id.TileWidth
}
