// Package source provides the N-dimensional images the viewer reads voxels from.
//
// Images store their samples with dimension 0 varying fastest. Loaders for
// row-major formats reverse the file's shape so that convention holds.
package source

import (
	"fmt"
	"strings"

	"volviewer3d/pkg/axis"
)

// DefaultLabels names dimensions when a file carries no labels.
var DefaultLabels = []string{"X", "Y", "Z", "Channel", "Time"}

// Dim describes one dimension of an image.
type Dim struct {
	Label  string
	Extent int
	// Scale is the calibrated physical size of one step. NaN or <= 0 means unknown.
	Scale float64
}

// Image is a read-only N-dimensional scalar image.
type Image interface {
	NumDims() int
	Dim(d int) Dim
	// At returns the sample at the N-dimensional position pos.
	At(pos []int) float64
	// ValueRange returns the declared sample range used for rescaling.
	ValueRange() (lo, hi float64)
}

// FlatImage is an Image backed by one linear buffer.
type FlatImage interface {
	Image
	// IsFlat reports whether scanning the given dimensions over their full
	// extent, first dimension fastest, visits consecutive storage positions.
	IsFlat(dims []int) bool
	// ReadRun copies len(dst) consecutive stored samples starting at pos.
	ReadRun(pos []int, dst []float64)
}

// Axes creates one axis per image dimension, in image order.
func Axes(img Image) ([]*axis.Axis, error) {
	out := make([]*axis.Axis, img.NumDims())
	for d := range out {
		info := img.Dim(d)
		a, err := axis.New(info.Label, info.Extent, d)
		if err != nil {
			return nil, err
		}
		out[d] = a
	}
	return out, nil
}

// labelsFor returns n labels, taking names first and then DefaultLabels,
// then dimN.
func labelsFor(n int, names []string) []string {
	out := make([]string, n)
	used := make(map[string]bool, n)
	for i := range out {
		var l string
		switch {
		case i < len(names) && strings.TrimSpace(names[i]) != "":
			l = strings.TrimSpace(names[i])
		case i < len(DefaultLabels):
			l = DefaultLabels[i]
		default:
			l = fmt.Sprintf("dim%d", i)
		}
		if used[l] {
			l = fmt.Sprintf("%s%d", l, i)
		}
		used[l] = true
		out[i] = l
	}
	return out
}

// Describe formats the dimensions of img for logs and reports.
func Describe(img Image) string {
	parts := make([]string, img.NumDims())
	for d := range parts {
		info := img.Dim(d)
		parts[d] = fmt.Sprintf("%s=%d", info.Label, info.Extent)
	}
	return strings.Join(parts, ",")
}
