// Package convert turns one volume of an N-dimensional source image into a
// dense 3D grid of int16 samples ready for rendering.
package convert

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"volviewer3d/internal/logger"
	"volviewer3d/internal/models"
	"volviewer3d/pkg/axis"
	"volviewer3d/pkg/source"
)

// Options configures a Converter.
type Options struct {
	// Caching enables the converter's own grid cache.
	Caching bool
	// CacheMB sizes the grid cache. Zero selects DefaultCacheMB.
	CacheMB int
	// Compress stores cached grids snappy-compressed.
	Compress bool
	// Sink receives progress of every conversion, in addition to any sink
	// attached to the conversion context.
	Sink   ProgressSink
	Logger *logger.Logger
}

// Converter extracts volumes from one source image. It is safe for
// concurrent use.
type Converter struct {
	img  source.Image
	sink ProgressSink
	log  *logger.Logger

	mu      sync.RWMutex
	caching bool
	cache   *gridCache

	forceSlow bool
}

// NewConverter prepares a converter for img. Images with fewer than three
// dimensions fail with a *NotEnoughDimsError.
func NewConverter(img source.Image, opts Options) (*Converter, error) {
	if img.NumDims() < MinDims {
		return nil, &NotEnoughDimsError{Dims: img.NumDims()}
	}
	return &Converter{
		img:     img,
		sink:    opts.Sink,
		log:     opts.Logger,
		caching: opts.Caching,
		cache:   newGridCache(opts.CacheMB, opts.Compress),
	}, nil
}

// Image returns the source image.
func (c *Converter) Image() source.Image { return c.img }

// SetCaching turns the grid cache on or off. Existing entries are kept.
func (c *Converter) SetCaching(on bool) {
	c.mu.Lock()
	c.caching = on
	c.mu.Unlock()
}

// Caching reports whether new grids are cached.
func (c *Converter) Caching() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.caching
}

// Cached returns the number of cached grids.
func (c *Converter) Cached() int64 { return c.cache.len() }

// Purge drops every cached grid.
func (c *Converter) Purge() {
	c.cache.clear()
	c.log.Debug("convert", "grid cache purged", nil)
}

// Spacing returns the voxel spacing of the volume d. Unknown, non-positive
// or NaN scales read as 1.
func (c *Converter) Spacing(d *axis.Descriptor) ([3]float64, error) {
	idx, err := c.volumeAxes(d)
	if err != nil {
		return [3]float64{}, err
	}
	var sp [3]float64
	for i, dim := range idx {
		sp[i] = spacing(c.img.Dim(dim).Scale)
	}
	return sp, nil
}

func spacing(scale float64) float64 {
	if math.IsNaN(scale) || scale <= 0 {
		return 1
	}
	return scale
}

func (c *Converter) volumeAxes(d *axis.Descriptor) ([3]int, error) {
	var idx [3]int
	displayed := d.Displayed()
	if len(displayed) < 3 {
		return idx, fmt.Errorf("volume %s displays %d axes: %w", d.CacheKey(), len(displayed), ErrNotVolume)
	}
	for i := range idx {
		a := displayed[i]
		if a.Index() >= c.img.NumDims() || c.img.Dim(a.Index()).Extent != a.Extent() {
			return idx, fmt.Errorf("axis %s does not match the image: %w", a.Label(), axis.ErrUnknownAxis)
		}
		idx[i] = a.Index()
	}
	return idx, nil
}

// Convert builds the grid of the volume d. The first three displayed axes
// become x, y and z; every other axis is fixed at its depth in d.
//
// Progress goes to the converter's sink and to any sink attached to ctx with
// WithProgress. ctx is checked between rows; a cancelled conversion returns
// ctx.Err() and caches nothing.
func (c *Converter) Convert(ctx context.Context, d *axis.Descriptor) (*models.Grid, error) {
	key := d.CacheKey()
	caching := c.Caching()
	if caching {
		if g, ok := c.cache.get(key); ok {
			c.log.Debug("convert", "grid cache hit", map[string]interface{}{"key": key})
			return g, nil
		}
	}

	idx, err := c.volumeAxes(d)
	if err != nil {
		return nil, err
	}
	var dims [3]int
	var sp [3]float64
	for i, dim := range idx {
		info := c.img.Dim(dim)
		dims[i] = info.Extent
		sp[i] = spacing(info.Scale)
	}
	g, err := models.NewGrid(dims, sp)
	if err != nil {
		return nil, err
	}

	pos := d.Depths()
	if n := c.img.NumDims(); len(pos) < n {
		pos = append(pos, make([]int, n-len(pos))...)
	}
	for _, dim := range idx {
		pos[dim] = 0
	}

	start := time.Now()
	rep := newReporter(g.Len(), c.sink, ProgressFrom(ctx))
	flat, ok := c.img.(source.FlatImage)
	fast := ok && !c.forceSlow && flat.IsFlat(idx[:])
	if fast {
		err = c.scanFlat(ctx, flat, g, idx, pos, rep)
	} else {
		err = c.scanRandom(ctx, g, idx, pos, rep)
	}
	if err != nil {
		return nil, err
	}
	if err := rep.update(g.Len()); err != nil {
		return nil, err
	}

	c.log.Info("convert", "volume converted", map[string]interface{}{
		"key":      key,
		"dims":     dims,
		"size":     humanize.Bytes(uint64(g.Bytes())),
		"fastPath": fast,
		"elapsed":  time.Since(start).String(),
	})

	if caching {
		if err := c.cache.put(key, g); err != nil {
			c.log.Debug("convert", "grid not cached", map[string]interface{}{"key": key, "reason": err.Error()})
		}
	}
	return g, nil
}

// scanFlat reads each x row as one run of consecutive samples.
func (c *Converter) scanFlat(ctx context.Context, img source.FlatImage, g *models.Grid, idx [3]int, pos []int, rep *reporter) error {
	r := newRescaler(c.img)
	nx, ny, nz := g.Dims[0], g.Dims[1], g.Dims[2]
	row := make([]float64, nx)
	count := 0
	for z := 0; z < nz; z++ {
		pos[idx[2]] = z
		for y := 0; y < ny; y++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			pos[idx[1]] = y
			img.ReadRun(pos, row)
			out := g.Data[count : count+nx]
			for x, v := range row {
				out[x] = r.apply(v)
			}
			count += nx
			if err := rep.update(count); err != nil {
				return err
			}
		}
	}
	return nil
}

// scanRandom reads every sample by position.
func (c *Converter) scanRandom(ctx context.Context, g *models.Grid, idx [3]int, pos []int, rep *reporter) error {
	r := newRescaler(c.img)
	nx, ny, nz := g.Dims[0], g.Dims[1], g.Dims[2]
	count := 0
	for z := 0; z < nz; z++ {
		pos[idx[2]] = z
		for y := 0; y < ny; y++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			pos[idx[1]] = y
			for x := 0; x < nx; x++ {
				pos[idx[0]] = x
				g.Data[count] = r.apply(c.img.At(pos))
				count++
			}
			if err := rep.update(count); err != nil {
				return err
			}
		}
	}
	return nil
}

// rescaler maps the image's value range linearly onto the int16 range.
type rescaler struct {
	lo, scale float64
	flat      bool
}

func newRescaler(img source.Image) rescaler {
	lo, hi := img.ValueRange()
	if !(hi > lo) || math.IsInf(hi-lo, 0) {
		return rescaler{flat: true}
	}
	return rescaler{lo: lo, scale: (math.MaxInt16 - math.MinInt16) / (hi - lo)}
}

func (r rescaler) apply(v float64) int16 {
	if r.flat || math.IsNaN(v) {
		return 0
	}
	s := math.Round(math.MinInt16 + (v-r.lo)*r.scale)
	switch {
	case s < math.MinInt16:
		return math.MinInt16
	case s > math.MaxInt16:
		return math.MaxInt16
	}
	return int16(s)
}
