package axis

import "errors"

// Configuration errors returned by this package. They are wrapped with context,
// so compare with errors.Is.
var (
	ErrBadExtent      = errors.New("axis extent must be at least 1")
	ErrBadIndex       = errors.New("axis index must be non-negative and unique")
	ErrEmptySubset    = errors.New("at least one index must be displayed")
	ErrOutOfRange     = errors.New("index outside the axis extent")
	ErrNotInSubset    = errors.New("value is not one of the displayed indices")
	ErrTooFewAxes     = errors.New("not enough axes for the requested number of displayed axes")
	ErrUnknownAxis    = errors.New("axis is not part of this set")
	ErrNotHidden      = errors.New("axis is not currently hidden")
	ErrNotDisplayed   = errors.New("axis is not currently displayed")
	ErrTooManyVolumes = errors.New("too many volumes in enumeration")
)
