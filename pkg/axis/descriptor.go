package axis

import (
	"sort"
	"strconv"
	"strings"
)

// Descriptor identifies one concrete volume of an N-dimensional image: the
// displayed axes in order plus a fixed depth for every hidden axis.
//
// A Descriptor holds deep copies of its axes, so later changes to the live Set
// never show through. It is safe to share between goroutines.
type Descriptor struct {
	displayed []*Axis
	hidden    []*Axis
	depth     map[int]int // axis index -> depth
	key       string
}

// newDescriptor snapshots displayed and hidden. depths is indexed by axis index
// and only consulted for hidden axes; displayed axes take their first displayed
// index.
func newDescriptor(displayed, hidden []*Axis, depths []int) *Descriptor {
	d := &Descriptor{
		displayed: cloneAll(displayed),
		hidden:    cloneAll(hidden),
		depth:     make(map[int]int, len(displayed)+len(hidden)),
	}
	for _, a := range d.displayed {
		d.depth[a.index] = a.First()
	}
	for _, a := range d.hidden {
		d.depth[a.index] = depths[a.index]
	}
	d.key = d.buildKey()
	return d
}

func cloneAll(axes []*Axis) []*Axis {
	out := make([]*Axis, len(axes))
	for i, a := range axes {
		out[i] = a.Clone()
	}
	return out
}

// Clone returns a deep copy of the descriptor.
func (d *Descriptor) Clone() *Descriptor {
	c := &Descriptor{
		displayed: cloneAll(d.displayed),
		hidden:    cloneAll(d.hidden),
		depth:     make(map[int]int, len(d.depth)),
		key:       d.key,
	}
	for k, v := range d.depth {
		c.depth[k] = v
	}
	return c
}

// Displayed returns copies of the displayed axes in volume order (x, y, z).
func (d *Descriptor) Displayed() []*Axis { return cloneAll(d.displayed) }

// Hidden returns copies of the hidden axes.
func (d *Descriptor) Hidden() []*Axis { return cloneAll(d.hidden) }

// Labels returns the labels of the displayed axes in order.
func (d *Descriptor) Labels() []string {
	out := make([]string, len(d.displayed))
	for i, a := range d.displayed {
		out[i] = a.label
	}
	return out
}

// Depth returns the fixed coordinate of the axis with the given label.
func (d *Descriptor) Depth(label string) (int, bool) {
	for _, a := range d.displayed {
		if a.label == label {
			return d.depth[a.index], true
		}
	}
	for _, a := range d.hidden {
		if a.label == label {
			return d.depth[a.index], true
		}
	}
	return 0, false
}

// Depths returns the full position vector indexed by source axis index.
// Displayed axes hold their first displayed index.
func (d *Descriptor) Depths() []int {
	n := 0
	for idx := range d.depth {
		if idx+1 > n {
			n = idx + 1
		}
	}
	out := make([]int, n)
	for idx, v := range d.depth {
		out[idx] = v
	}
	return out
}

// CacheKey returns the canonical identity of the volume: the displayed labels in
// order followed by label and depth of each hidden axis. Hidden axes are taken
// in source order so the key does not depend on how the set was mutated.
func (d *Descriptor) CacheKey() string { return d.key }

func (d *Descriptor) String() string { return d.key }

func (d *Descriptor) buildKey() string {
	var sb strings.Builder
	for _, a := range d.displayed {
		sb.WriteString(a.label)
	}
	hidden := append([]*Axis(nil), d.hidden...)
	sort.Stable(ByIndex(hidden))
	for _, a := range hidden {
		sb.WriteString(a.label)
		sb.WriteString(strconv.Itoa(d.depth[a.index]))
	}
	return sb.String()
}
