package surface

import "errors"

var (
	// ErrNotActive is returned by operations that need an active surface.
	ErrNotActive = errors.New("surface: not active")

	// ErrInvalidDimensions is returned for zero width or height.
	ErrInvalidDimensions = errors.New("surface: invalid dimensions")
)
