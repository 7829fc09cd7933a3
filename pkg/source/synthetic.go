package source

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SyntheticPrefix marks an input name as a generated phantom.
const SyntheticPrefix = "synthetic:"

// ParseSynthetic generates a phantom image from a description such as
// "X=64,Y=64,Z=32,Time=4". An extent may carry a scale: "Z=32:2.5".
//
// The first three dimensions hold a sphere whose intensity falls off from
// the centre. Every further dimension scales the intensity by (1 + coordinate),
// so each hidden position produces a distinct volume.
func ParseSynthetic(desc string) (*ArrayImage, error) {
	desc = strings.TrimPrefix(desc, SyntheticPrefix)
	var dims []Dim
	for _, part := range strings.Split(desc, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid dimension %q, want LABEL=EXTENT", part)
		}
		d := Dim{Label: strings.TrimSpace(kv[0]), Scale: 1}
		val := kv[1]
		if i := strings.IndexByte(val, ':'); i >= 0 {
			s, err := strconv.ParseFloat(val[i+1:], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid scale in %q: %w", part, err)
			}
			d.Scale = s
			val = val[:i]
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return nil, fmt.Errorf("invalid extent in %q: %w", part, err)
		}
		d.Extent = n
		dims = append(dims, d)
	}
	if len(dims) == 0 {
		return nil, fmt.Errorf("empty synthetic description: %w", ErrShape)
	}
	return Phantom(dims)
}

// Phantom fills an image of the given dimensions with the sphere phantom.
func Phantom(dims []Dim) (*ArrayImage, error) {
	n := 1
	for _, d := range dims {
		if d.Extent < 1 {
			return nil, fmt.Errorf("dimension %s has extent %d: %w", d.Label, d.Extent, ErrShape)
		}
		n *= d.Extent
	}
	data := make([]float64, n)
	pos := make([]int, len(dims))
	for i := range data {
		data[i] = phantomValue(dims, pos)
		for d := range pos {
			pos[d]++
			if pos[d] < dims[d].Extent {
				break
			}
			pos[d] = 0
		}
	}
	return NewArrayImage(data, dims)
}

func phantomValue(dims []Dim, pos []int) float64 {
	spatial := len(dims)
	if spatial > 3 {
		spatial = 3
	}
	var r2, radius float64
	radius = math.MaxFloat64
	for d := 0; d < spatial; d++ {
		c := float64(dims[d].Extent-1) / 2
		dx := float64(pos[d]) - c
		r2 += dx * dx
		if half := float64(dims[d].Extent) / 2; half < radius {
			radius = half
		}
	}
	v := 1000 * (1 - math.Sqrt(r2)/radius)
	if v < 0 {
		v = 0
	}
	scale := 1.0
	for d := spatial; d < len(dims); d++ {
		scale += float64(pos[d])
	}
	return v * scale
}
