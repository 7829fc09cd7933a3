// Package axis models the dimensions of an N-dimensional image and the
// bookkeeping that decides which three of them form the rendered volume.
//
// An Axis describes one source dimension. A Set partitions the axes of one image
// into displayed axes (the spatial axes of the volume) and hidden axes (each fixed
// at a depth). A Descriptor is an immutable snapshot naming one concrete volume;
// its CacheKey identifies the volume across repeated visits.
package axis

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// Axis describes one dimension of the source image.
//
// Label, index and extent never change. The displayed indices form a sorted,
// non-empty subset of [0, extent) and the manipulated index is always one of them.
type Axis struct {
	label  string
	index  int
	extent int

	displayed   []int
	manipulated int
}

// New creates an axis with the given label, extent and position in the source
// image's dimension order. Initially only index 0 is displayed and manipulated.
func New(label string, extent, index int) (*Axis, error) {
	if extent < 1 {
		return nil, fmt.Errorf("axis %q has extent %d: %w", label, extent, ErrBadExtent)
	}
	if index < 0 {
		return nil, fmt.Errorf("axis %q has index %d: %w", label, index, ErrBadIndex)
	}
	return &Axis{
		label:     label,
		index:     index,
		extent:    extent,
		displayed: []int{0},
	}, nil
}

// MustNew is like New but panics on error. Intended for tests and fixed layouts.
func MustNew(label string, extent, index int) *Axis {
	a, err := New(label, extent, index)
	if err != nil {
		panic(err)
	}
	return a
}

// Clone returns a deep copy. The displayed indices are duplicated.
func (a *Axis) Clone() *Axis {
	c := *a
	c.displayed = append([]int(nil), a.displayed...)
	return &c
}

// Label returns the semantic name of the axis, e.g. "X" or "Time".
func (a *Axis) Label() string { return a.label }

// Index returns the position of the axis in the source image.
func (a *Axis) Index() int { return a.index }

// Extent returns the number of valid coordinates along the axis.
func (a *Axis) Extent() int { return a.extent }

// Manipulated returns the currently active displayed index.
func (a *Axis) Manipulated() int { return a.manipulated }

// Displayed returns a copy of the displayed indices in ascending order.
func (a *Axis) Displayed() []int {
	return append([]int(nil), a.displayed...)
}

// First returns the smallest displayed index.
func (a *Axis) First() int { return a.displayed[0] }

// NumDisplayed returns the size of the displayed subset.
func (a *Axis) NumDisplayed() int { return len(a.displayed) }

// DisplayedStrings returns the displayed indices formatted for list widgets.
func (a *Axis) DisplayedStrings() []string {
	out := make([]string, len(a.displayed))
	for i, v := range a.displayed {
		out[i] = strconv.Itoa(v)
	}
	return out
}

// SetDisplayed replaces the displayed subset. Duplicates are dropped and the
// values are sorted. If the manipulated index is no longer displayed it resets
// to the smallest displayed value. On error the axis is left unchanged.
func (a *Axis) SetDisplayed(vals []int) error {
	if len(vals) == 0 {
		return fmt.Errorf("axis %q: %w", a.label, ErrEmptySubset)
	}
	set := mapset.NewThreadUnsafeSet[int]()
	for _, v := range vals {
		if v < 0 || v >= a.extent {
			return fmt.Errorf("axis %q: value %d not in [0, %d): %w", a.label, v, a.extent, ErrOutOfRange)
		}
		set.Add(v)
	}
	displayed := set.ToSlice()
	sort.Ints(displayed)

	a.displayed = displayed
	if !set.Contains(a.manipulated) {
		a.manipulated = displayed[0]
	}
	return nil
}

// SetDisplayedRange displays the contiguous indices [from, to].
func (a *Axis) SetDisplayedRange(from, to int) error {
	if to < from {
		return fmt.Errorf("axis %q: range [%d, %d]: %w", a.label, from, to, ErrEmptySubset)
	}
	vals := make([]int, 0, to-from+1)
	for v := from; v <= to; v++ {
		vals = append(vals, v)
	}
	return a.SetDisplayed(vals)
}

// SetManipulated makes v the active index. v must already be displayed.
func (a *Axis) SetManipulated(v int) error {
	for _, d := range a.displayed {
		if d == v {
			a.manipulated = v
			return nil
		}
	}
	return fmt.Errorf("axis %q: %d not in [%s]: %w", a.label, v,
		strings.Join(a.DisplayedStrings(), ", "), ErrNotInSubset)
}

// IsDisplayedIndex reports whether v is in the displayed subset.
func (a *Axis) IsDisplayedIndex(v int) bool {
	i := sort.SearchInts(a.displayed, v)
	return i < len(a.displayed) && a.displayed[i] == v
}

func (a *Axis) String() string {
	return fmt.Sprintf("%s[%d](extent=%d displayed=%v manipulated=%d)",
		a.label, a.index, a.extent, a.displayed, a.manipulated)
}

// ByIndex orders axes by their position in the source image.
type ByIndex []*Axis

func (s ByIndex) Len() int           { return len(s) }
func (s ByIndex) Less(i, j int) bool { return s[i].index < s[j].index }
func (s ByIndex) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
