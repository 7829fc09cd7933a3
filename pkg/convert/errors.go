package convert

import (
	"errors"
	"fmt"
)

// MinDims is the smallest dimensionality a converter accepts.
const MinDims = 3

// ErrNotVolume is returned for descriptors with fewer than three displayed axes.
var ErrNotVolume = errors.New("volume needs three displayed axes")

// NotEnoughDimsError reports an image that cannot be viewed in 3D. Callers
// usually treat it as "nothing to display" rather than a failure.
type NotEnoughDimsError struct {
	Dims int
}

func (e *NotEnoughDimsError) Error() string {
	return fmt.Sprintf("not enough dimensions: image has %d, need at least %d", e.Dims, MinDims)
}

// IsNotEnoughDims reports whether err carries a NotEnoughDimsError.
func IsNotEnoughDims(err error) bool {
	var nd *NotEnoughDimsError
	return errors.As(err, &nd)
}
