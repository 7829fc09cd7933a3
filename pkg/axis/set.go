package axis

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	// MinDisplayed is the smallest number of displayed axes a Set accepts.
	MinDisplayed = 1

	// DefaultDisplayed is the number of spatial axes of a rendered volume.
	DefaultDisplayed = 3

	// DefaultMaxVolumes bounds EnumerateVolumes.
	DefaultMaxVolumes = 4096
)

// errStop ends a Walk early without reporting an error.
var errStop = errors.New("stop walk")

// Set owns the axes of one image and partitions them into displayed and hidden
// axes. It is not safe for concurrent mutation; descriptors it hands out are.
type Set struct {
	axes         []*Axis
	displayed    []*Axis
	hidden       []*Axis
	numDisplayed int
	maxVolumes   int
	depthLen     int
}

// NewSet creates a set over axes. numDisplayed is raised to MinDisplayed if
// smaller. The first numDisplayed axes are displayed, the rest hidden.
func NewSet(numDisplayed int, axes []*Axis) (*Set, error) {
	if numDisplayed < MinDisplayed {
		numDisplayed = MinDisplayed
	}
	if len(axes) < numDisplayed {
		return nil, fmt.Errorf("only %d axes were passed of required %d: %w",
			len(axes), numDisplayed, ErrTooFewAxes)
	}

	seen := make(map[int]bool, len(axes))
	depthLen := 0
	for _, a := range axes {
		if a == nil {
			return nil, fmt.Errorf("nil axis: %w", ErrUnknownAxis)
		}
		if seen[a.index] {
			return nil, fmt.Errorf("axis %q reuses index %d: %w", a.label, a.index, ErrBadIndex)
		}
		seen[a.index] = true
		if a.index+1 > depthLen {
			depthLen = a.index + 1
		}
	}

	s := &Set{
		axes:         append([]*Axis(nil), axes...),
		numDisplayed: numDisplayed,
		maxVolumes:   DefaultMaxVolumes,
		depthLen:     depthLen,
	}
	s.displayed = append([]*Axis(nil), s.axes[:numDisplayed]...)
	s.hidden = append([]*Axis(nil), s.axes[numDisplayed:]...)
	return s, nil
}

// NewOrderedSet orders axes by label (x, y, z, channel, time, case-insensitive)
// before building the set. Axes with other labels are dropped.
//
// Deprecated: use NewSet with axes in source order.
func NewOrderedSet(numDisplayed int, axes []*Axis) (*Set, error) {
	var ordered []*Axis
	for _, label := range []string{"x", "y", "z", "channel", "time"} {
		for _, a := range axes {
			if strings.ToLower(a.label) == label {
				ordered = append(ordered, a)
			}
		}
	}
	return NewSet(numDisplayed, ordered)
}

// SetMaxVolumes changes the bound applied by EnumerateVolumes. n <= 0 removes it.
func (s *Set) SetMaxVolumes(n int) { s.maxVolumes = n }

// MaxVolumes returns the enumeration bound, 0 meaning unbounded.
func (s *Set) MaxVolumes() int {
	if s.maxVolumes < 0 {
		return 0
	}
	return s.maxVolumes
}

// Swap displays the hidden axis display and hides the displayed axis hide.
// display is appended to the displayed axes, hide to the hidden axes.
// On error neither axis moves.
func (s *Set) Swap(display, hide *Axis) error {
	if display == nil || hide == nil {
		return fmt.Errorf("nil axis: %w", ErrUnknownAxis)
	}
	if !contains(s.axes, display) || !contains(s.axes, hide) {
		return fmt.Errorf("either %s or %s: %w", display.label, hide.label, ErrUnknownAxis)
	}
	if !contains(s.displayed, hide) {
		return fmt.Errorf("axis %s: %w", hide.label, ErrNotDisplayed)
	}
	if !contains(s.hidden, display) {
		return fmt.Errorf("axis %s: %w", display.label, ErrNotHidden)
	}

	s.displayed = append(remove(s.displayed, hide), display)
	s.hidden = append(remove(s.hidden, display), hide)
	return nil
}

// SwapLabels is Swap addressed by label.
func (s *Set) SwapLabels(display, hide string) error {
	d, ok := s.Lookup(display)
	if !ok {
		return fmt.Errorf("axis %s: %w", display, ErrUnknownAxis)
	}
	h, ok := s.Lookup(hide)
	if !ok {
		return fmt.Errorf("axis %s: %w", hide, ErrUnknownAxis)
	}
	return s.Swap(d, h)
}

// ManipulatedVolume returns the single volume selected by the manipulated
// index of every hidden axis.
func (s *Set) ManipulatedVolume() *Descriptor {
	depths := make([]int, s.depthLen)
	for _, a := range s.hidden {
		depths[a.index] = a.manipulated
	}
	return newDescriptor(s.displayed, s.hidden, depths)
}

// NumVolumes returns the number of descriptors EnumerateVolumes would produce:
// the product of the displayed subset sizes of all hidden axes. The result
// saturates at math.MaxInt.
func (s *Set) NumVolumes() int {
	n := 1
	for _, a := range s.hidden {
		k := len(a.displayed)
		if n > math.MaxInt/k {
			return math.MaxInt
		}
		n *= k
	}
	return n
}

// EnumerateVolumes returns one descriptor per combination of hidden-axis depths,
// each depth ranging over that axis's displayed subset. The last hidden axis
// varies fastest. With no hidden axes exactly one descriptor is returned.
func (s *Set) EnumerateVolumes() ([]*Descriptor, error) {
	n := s.NumVolumes()
	if limit := s.MaxVolumes(); limit > 0 && n > limit {
		return nil, fmt.Errorf("%d volumes exceed the limit of %d: %w", n, limit, ErrTooManyVolumes)
	}
	out := make([]*Descriptor, 0, n)
	err := s.Walk(func(d *Descriptor) error {
		out = append(out, d)
		return nil
	})
	return out, err
}

// Walk streams the descriptors of EnumerateVolumes to fn in the same order
// without materializing them and without the volume bound. An error from fn
// stops the walk and is returned.
func (s *Set) Walk(fn func(*Descriptor) error) error {
	depths := make([]int, s.depthLen)
	var err error
	if len(s.hidden) == 0 {
		err = fn(newDescriptor(s.displayed, s.hidden, depths))
	} else {
		err = s.walk(0, depths, fn)
	}
	if errors.Is(err, errStop) {
		return nil
	}
	return err
}

func (s *Set) walk(i int, depths []int, fn func(*Descriptor) error) error {
	a := s.hidden[i]
	for _, v := range a.displayed {
		depths[a.index] = v
		var err error
		if i < len(s.hidden)-1 {
			err = s.walk(i+1, depths, fn)
		} else {
			err = fn(newDescriptor(s.displayed, s.hidden, depths))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// First returns at most n descriptors from the start of the enumeration.
func (s *Set) First(n int) []*Descriptor {
	var out []*Descriptor
	if n <= 0 {
		return out
	}
	_ = s.Walk(func(d *Descriptor) error {
		out = append(out, d)
		if len(out) == n {
			return errStop
		}
		return nil
	})
	return out
}

// CacheKeys returns the cache key of every enumerated descriptor.
func (s *Set) CacheKeys() ([]string, error) {
	vols, err := s.EnumerateVolumes()
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(vols))
	for i, v := range vols {
		keys[i] = v.CacheKey()
	}
	return keys, nil
}

// Lookup finds an axis by label.
func (s *Set) Lookup(label string) (*Axis, bool) {
	for _, a := range s.axes {
		if a.label == label {
			return a, true
		}
	}
	return nil, false
}

// IsDisplayed reports whether a is currently displayed.
func (s *Set) IsDisplayed(a *Axis) bool { return contains(s.displayed, a) }

// IsHidden reports whether a is currently hidden.
func (s *Set) IsHidden(a *Axis) bool { return contains(s.hidden, a) }

// NumDisplayed returns the number of displayed axes.
func (s *Set) NumDisplayed() int { return s.numDisplayed }

// Len returns the number of axes.
func (s *Set) Len() int { return len(s.axes) }

// Axes returns the axes in source order. The slice is a copy; the axes are live.
func (s *Set) Axes() []*Axis { return append([]*Axis(nil), s.axes...) }

// Displayed returns the displayed axes in volume order.
func (s *Set) Displayed() []*Axis { return append([]*Axis(nil), s.displayed...) }

// Hidden returns the hidden axes.
func (s *Set) Hidden() []*Axis { return append([]*Axis(nil), s.hidden...) }

// Snapshot returns a deep copy of the set that shares nothing with s.
// Use it to enumerate from another goroutine while s keeps changing.
func (s *Set) Snapshot() *Set {
	c := &Set{
		numDisplayed: s.numDisplayed,
		maxVolumes:   s.maxVolumes,
		depthLen:     s.depthLen,
	}
	copies := make(map[*Axis]*Axis, len(s.axes))
	for _, a := range s.axes {
		cp := a.Clone()
		copies[a] = cp
		c.axes = append(c.axes, cp)
	}
	for _, a := range s.displayed {
		c.displayed = append(c.displayed, copies[a])
	}
	for _, a := range s.hidden {
		c.hidden = append(c.hidden, copies[a])
	}
	return c
}

func contains(axes []*Axis, a *Axis) bool {
	for _, x := range axes {
		if x == a {
			return true
		}
	}
	return false
}

func remove(axes []*Axis, a *Axis) []*Axis {
	out := make([]*Axis, 0, len(axes))
	for _, x := range axes {
		if x != a {
			out = append(out, x)
		}
	}
	return out
}
