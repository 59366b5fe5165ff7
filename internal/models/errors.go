package models

import "errors"

// Error categories shared by every stage of a reconstruction. A run aborts on
// the first one; callers classify with errors.Is.
var (
	// ErrInputShape reports axis sizes that do not fit the selected mode or
	// model width.
	ErrInputShape = errors.New("input shape error")

	// ErrModelLoad reports a missing, unreadable or mismatched weight file.
	ErrModelLoad = errors.New("model load error")

	// ErrDegenerateScale reports a tile or plane whose maximum magnitude is
	// zero, so it cannot be normalised.
	ErrDegenerateScale = errors.New("degenerate scale")

	// ErrNonFinite reports NaN or infinite values coming out of the network.
	ErrNonFinite = errors.New("non-finite model output")

	// ErrIO reports a failure reading or writing a spectral file.
	ErrIO = errors.New("spectral file i/o error")
)
