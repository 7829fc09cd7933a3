// Package volume holds a rendered volume: the converted grid together with
// the display state built from it.
package volume

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"

	"volviewer3d/internal/models"
	"volviewer3d/pkg/axis"
	"volviewer3d/pkg/render"
	"volviewer3d/pkg/transfer"
)

// ResourceKind is the resource table kind of a volume.
const ResourceKind = "volume"

var (
	// ErrBadRange is returned by SetMappingRange when min >= max.
	ErrBadRange = errors.New("min must be smaller than max")

	// ErrReleased is returned by operations on a released volume.
	ErrReleased = errors.New("volume released")
)

// Mode selects the gray or the colour bundle.
type Mode int

const (
	Gray Mode = iota
	RGB
)

func (m Mode) String() string {
	if m == Gray {
		return "gray"
	}
	return "rgb"
}

// Volume is one renderable volume. It is safe for concurrent use.
type Volume struct {
	mu sync.Mutex

	grid *models.Grid
	desc *axis.Descriptor
	hist *Histogram

	gray, rgb           *transfer.Bundle
	grayTable, rgbTable []transfer.Entry
	mode                Mode
	mapper              render.Mapper
	rangeSel            [2]float64

	planes [3]*mat.Dense

	res      *render.ResourceTable
	handle   render.Handle
	released bool
}

// New builds a volume from grid. desc is copied. Nil bundles select the
// defaults; others are deep-copied. If res is not nil the volume acquires a
// resource in it and returns it on Release.
func New(grid *models.Grid, desc *axis.Descriptor, gray, rgb *transfer.Bundle, res *render.ResourceTable) (*Volume, error) {
	if gray == nil {
		gray = transfer.NewGABundle()
	}
	if rgb == nil {
		rgb = transfer.NewRGBABundle()
	}
	if gray.Kind() != transfer.GA || rgb.Kind() != transfer.RGBA {
		return nil, fmt.Errorf("bundle kinds %s/%s, want ga/rgba", gray.Kind(), rgb.Kind())
	}
	v := &Volume{
		grid:     grid,
		desc:     desc.Clone(),
		hist:     newHistogram(grid),
		gray:     gray.Clone(),
		rgb:      rgb.Clone(),
		rangeSel: [2]float64{math.MinInt16, math.MaxInt16},
		res:      res,
	}
	v.grayTable = transfer.Table(v.gray)
	v.rgbTable = transfer.Table(v.rgb)

	var centre [3]float64
	for i := range centre {
		centre[i] = grid.Origin[i] + grid.Spacing[i]*0.5*float64(grid.Dims[i]-1)
	}
	v.planes = resliceAxes(centre)

	if res != nil {
		h, err := res.Acquire(ResourceKind)
		if err != nil {
			return nil, err
		}
		v.handle = h
	}
	return v, nil
}

// Grid returns the sample grid. It must not be modified.
func (v *Volume) Grid() *models.Grid { return v.grid }

// Descriptor returns a copy of the descriptor the volume was built from.
func (v *Volume) Descriptor() *axis.Descriptor { return v.desc.Clone() }

// Key returns the cache key of the volume.
func (v *Volume) Key() string { return v.desc.CacheKey() }

// Axes returns the labels of the displayed axes.
func (v *Volume) Axes() []string { return v.desc.Labels() }

// Histogram returns the sample histogram.
func (v *Volume) Histogram() *Histogram { return v.hist }

// Extent returns the index bounds {0, nx-1, 0, ny-1, 0, nz-1}.
func (v *Volume) Extent() [6]int {
	d := v.grid.Dims
	return [6]int{0, d[0] - 1, 0, d[1] - 1, 0, d[2] - 1}
}

// Mapper returns the current mapper.
func (v *Volume) Mapper() render.Mapper {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mapper
}

// SetMapper selects the rendering algorithm and tells the renderer.
func (v *Volume) SetMapper(m render.Mapper) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.released {
		return ErrReleased
	}
	v.mapper = m
	if v.res != nil {
		return v.res.Select(v.handle, m)
	}
	return nil
}

// Mode returns the display mode.
func (v *Volume) Mode() Mode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mode
}

// SetGrayMode renders with the gray bundle.
func (v *Volume) SetGrayMode() {
	v.mu.Lock()
	v.mode = Gray
	v.mu.Unlock()
}

// SetRGBMode renders with the colour bundle.
func (v *Volume) SetRGBMode() {
	v.mu.Lock()
	v.mode = RGB
	v.mu.Unlock()
}

// BundleGray returns a copy of the gray bundle.
func (v *Volume) BundleGray() *transfer.Bundle {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.gray.Clone()
}

// BundleRGB returns a copy of the colour bundle.
func (v *Volume) BundleRGB() *transfer.Bundle {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rgb.Clone()
}

// SetBundleGray replaces the gray bundle with a copy of b.
func (v *Volume) SetBundleGray(b *transfer.Bundle) error {
	if b.Kind() != transfer.GA {
		return fmt.Errorf("gray bundle of kind %s", b.Kind())
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.gray = b.Clone()
	v.grayTable = transfer.Table(v.gray)
	return nil
}

// SetBundleRGB replaces the colour bundle with a copy of b.
func (v *Volume) SetBundleRGB(b *transfer.Bundle) error {
	if b.Kind() != transfer.RGBA {
		return fmt.Errorf("rgb bundle of kind %s", b.Kind())
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rgb = b.Clone()
	v.rgbTable = transfer.Table(v.rgb)
	return nil
}

func (v *Volume) active() *transfer.Bundle {
	if v.mode == Gray {
		return v.gray
	}
	return v.rgb
}

// LookupTable returns the slice lookup table of the current mode.
func (v *Volume) LookupTable() []transfer.Entry {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.mode == Gray {
		return append([]transfer.Entry(nil), v.grayTable...)
	}
	return append([]transfer.Entry(nil), v.rgbTable...)
}

// OpacityFunction returns the opacity control points of the current mode over
// the mapping range.
func (v *Volume) OpacityFunction() []transfer.ControlPoint {
	v.mu.Lock()
	defer v.mu.Unlock()
	return transfer.OpacityPoints(v.active(), v.rangeSel[0], v.rangeSel[1])
}

// ColorFunction returns the colour control points of the current mode over
// the mapping range.
func (v *Volume) ColorFunction() []transfer.ColorPoint {
	v.mu.Lock()
	defer v.mu.Unlock()
	return transfer.ColorFunction(v.active(), v.rangeSel[0], v.rangeSel[1])
}

// MappingRange returns the sample range the transfer functions span.
func (v *Volume) MappingRange() (min, max float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rangeSel[0], v.rangeSel[1]
}

// SetMappingRange maps the transfer functions onto [min, max].
func (v *Volume) SetMappingRange(min, max float64) error {
	if !(min < max) {
		return fmt.Errorf("range [%g, %g]: %w", min, max, ErrBadRange)
	}
	v.mu.Lock()
	v.rangeSel = [2]float64{min, max}
	v.mu.Unlock()
	return nil
}

// Normalize maps the transfer functions onto the data range.
func (v *Volume) Normalize() error {
	lo, hi := v.grid.Range()
	return v.SetMappingRange(float64(lo), float64(hi))
}

// UseFullRange maps the transfer functions onto the int16 range.
func (v *Volume) UseFullRange() {
	_ = v.SetMappingRange(math.MinInt16, math.MaxInt16)
}

// ResliceAxes returns a copy of the reslice matrix of plane p.
func (v *Volume) ResliceAxes(p Plane) *mat.Dense {
	v.mu.Lock()
	defer v.mu.Unlock()
	return mat.DenseCopyOf(v.planes[p])
}

// MoveSlice moves plane p by n slices, clamped to the grid.
func (v *Volume) MoveSlice(p Plane, n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var lower, upper [3]float64
	for i := range upper {
		lower[i] = v.grid.Origin[i]
		upper[i] = lower[i] + float64(v.grid.Dims[i]-1)*v.grid.Spacing[i]
	}
	moveSlice(v.planes[p], v.grid.Spacing[p], n, lower, upper)
}

// CurrentSlice returns the slice index of plane p.
func (v *Volume) CurrentSlice(p Plane) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return int((v.planes[p].At(int(p), 3) - v.grid.Origin[p]) / v.grid.Spacing[p])
}

// CurrentSlices returns the sagittal, coronal and axial slice indices.
func (v *Volume) CurrentSlices() [3]int {
	return [3]int{v.CurrentSlice(Sagittal), v.CurrentSlice(Coronal), v.CurrentSlice(Axial)}
}

// Release frees the volume's renderer resource. It is safe to call more
// than once.
func (v *Volume) Release() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.released {
		return
	}
	v.released = true
	if v.res != nil {
		v.res.Release(v.handle)
	}
}

// Released reports whether Release was called.
func (v *Volume) Released() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.released
}
