package models

import (
	"fmt"
	"math"
)

// Grid is a dense 3D scalar volume ready for rendering
type Grid struct {
	// Data holds the samples with x varying fastest, then y, then z
	Data []int16

	// Dims is the extent along x, y and z in voxels
	Dims [3]int

	// Spacing is the physical size of one voxel along x, y and z
	Spacing [3]float64

	// Origin is the physical position of voxel (0, 0, 0)
	Origin [3]float64
}

// NewGrid allocates a zeroed grid. Non-positive spacings are replaced with 1.
func NewGrid(dims [3]int, spacing [3]float64) (*Grid, error) {
	n := 1
	for i, d := range dims {
		if d < 1 {
			return nil, fmt.Errorf("grid dimension %d has extent %d", i, d)
		}
		n *= d
	}
	for i, s := range spacing {
		if math.IsNaN(s) || s <= 0 {
			spacing[i] = 1
		}
	}
	return &Grid{
		Data:    make([]int16, n),
		Dims:    dims,
		Spacing: spacing,
	}, nil
}

// Len returns the number of voxels
func (g *Grid) Len() int {
	return g.Dims[0] * g.Dims[1] * g.Dims[2]
}

// Index returns the flat position of voxel (x, y, z)
func (g *Grid) Index(x, y, z int) int {
	return (z*g.Dims[1]+y)*g.Dims[0] + x
}

// At returns the sample at (x, y, z)
func (g *Grid) At(x, y, z int) int16 {
	return g.Data[g.Index(x, y, z)]
}

// Set stores v at (x, y, z)
func (g *Grid) Set(x, y, z int, v int16) {
	g.Data[g.Index(x, y, z)] = v
}

// Range returns the smallest and largest sample
func (g *Grid) Range() (lo, hi int16) {
	if len(g.Data) == 0 {
		return 0, 0
	}
	lo, hi = g.Data[0], g.Data[0]
	for _, v := range g.Data[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// Bounds returns the physical size of the grid along each axis
func (g *Grid) Bounds() [3]float64 {
	var b [3]float64
	for i := range b {
		b[i] = float64(g.Dims[i]) * g.Spacing[i]
	}
	return b
}

// Clone returns a deep copy
func (g *Grid) Clone() *Grid {
	c := *g
	c.Data = append([]int16(nil), g.Data...)
	return &c
}

// Bytes returns the sample memory in bytes
func (g *Grid) Bytes() int {
	return 2 * len(g.Data)
}
