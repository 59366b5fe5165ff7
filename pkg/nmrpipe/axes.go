package nmrpipe

import "fmt"

// Axis summarises one data axis as described by the header.
type Axis struct {
	Dim        string // F1..F4
	Label      string
	Size       int
	SW         float64 // Hz
	Obs        float64 // MHz
	Car        float64 // ppm
	Complex    bool
	TimeDomain bool
}

func (a Axis) String() string {
	domain := "freq"
	if a.TimeDomain {
		domain = "time"
	}
	kind := "real"
	if a.Complex {
		kind = "complex"
	}
	return fmt.Sprintf("%s %q size=%d sw=%.1f obs=%.3f car=%.3f %s %s",
		a.Dim, a.Label, a.Size, a.SW, a.Obs, a.Car, kind, domain)
}

type dimKeys struct {
	label, sw, obs, car, quad, ft string
}

var dims = map[int]dimKeys{
	1: {"FDF1LABEL", "FDF1SW", "FDF1OBS", "FDF1CAR", "FDF1QUADFLAG", "FDF1FTFLAG"},
	2: {"FDF2LABEL", "FDF2SW", "FDF2OBS", "FDF2CAR", "FDF2QUADFLAG", "FDF2FTFLAG"},
	3: {"FDF3LABEL", "FDF3SW", "FDF3OBS", "FDF3CAR", "FDF3QUADFLAG", "FDF3FTFLAG"},
	4: {"FDF4LABEL", "FDF4SW", "FDF4OBS", "FDF4CAR", "FDF4QUADFLAG", "FDF4FTFLAG"},
}

// GuessAxes describes each data axis, slowest first, using the FDDIMORDER
// fields to map storage axes onto F dimensions.
func GuessAxes(h *Header) ([]Axis, error) {
	shape, err := h.Shape()
	if err != nil {
		return nil, err
	}
	order := []string{"FDDIMORDER1", "FDDIMORDER2", "FDDIMORDER3"}
	n := len(shape)
	axes := make([]Axis, n)
	for i := 0; i < n; i++ {
		// FDDIMORDER1 is the fastest (last) axis
		dim := h.Int(order[i])
		keys, ok := dims[dim]
		if !ok {
			return nil, fmt.Errorf("invalid %s value %d", order[i], dim)
		}
		axes[n-1-i] = Axis{
			Dim:        fmt.Sprintf("F%d", dim),
			Label:      h.Label(keys.label),
			Size:       shape[n-1-i],
			SW:         h.Value(keys.sw),
			Obs:        h.Value(keys.obs),
			Car:        h.Value(keys.car),
			Complex:    h.Int(keys.quad) == 0,
			TimeDomain: h.Int(keys.ft) == 0,
		}
	}
	return axes, nil
}
