package source

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// ErrShape is returned when data does not match the declared dimensions.
var ErrShape = errors.New("data length does not match dimensions")

// ArrayImage is an in-memory image with dimension 0 varying fastest.
type ArrayImage struct {
	data    []float64
	dims    []Dim
	strides []int
	lo, hi  float64
}

// NewArrayImage wraps data. The value range defaults to the data's min and max.
func NewArrayImage(data []float64, dims []Dim) (*ArrayImage, error) {
	if len(dims) == 0 {
		return nil, fmt.Errorf("no dimensions: %w", ErrShape)
	}
	strides := make([]int, len(dims))
	n := 1
	for i, d := range dims {
		if d.Extent < 1 {
			return nil, fmt.Errorf("dimension %s has extent %d: %w", d.Label, d.Extent, ErrShape)
		}
		strides[i] = n
		n *= d.Extent
	}
	if len(data) != n {
		return nil, fmt.Errorf("%d samples for %d voxels: %w", len(data), n, ErrShape)
	}
	img := &ArrayImage{
		data:    data,
		dims:    append([]Dim(nil), dims...),
		strides: strides,
	}
	img.lo, img.hi = floats.Min(data), floats.Max(data)
	return img, nil
}

// SetValueRange overrides the declared sample range.
func (a *ArrayImage) SetValueRange(lo, hi float64) { a.lo, a.hi = lo, hi }

func (a *ArrayImage) NumDims() int  { return len(a.dims) }
func (a *ArrayImage) Dim(d int) Dim { return a.dims[d] }

func (a *ArrayImage) ValueRange() (lo, hi float64) { return a.lo, a.hi }

// Data returns the backing buffer.
func (a *ArrayImage) Data() []float64 { return a.data }

// Dims returns a copy of the dimensions.
func (a *ArrayImage) Dims() []Dim { return append([]Dim(nil), a.dims...) }

func (a *ArrayImage) offset(pos []int) int {
	off := 0
	for i, p := range pos {
		off += p * a.strides[i]
	}
	return off
}

func (a *ArrayImage) At(pos []int) float64 { return a.data[a.offset(pos)] }

func (a *ArrayImage) IsFlat(dims []int) bool {
	want := 1
	for _, d := range dims {
		if d < 0 || d >= len(a.dims) || a.strides[d] != want {
			return false
		}
		want *= a.dims[d].Extent
	}
	return true
}

func (a *ArrayImage) ReadRun(pos []int, dst []float64) {
	off := a.offset(pos)
	copy(dst, a.data[off:off+len(dst)])
}
