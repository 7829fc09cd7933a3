// Package admin manages the volumes of one N-dimensional image: it builds
// them on demand through a converter, caches them by cache key and carries
// the session-wide render settings.
package admin

import (
	"context"
	"errors"
	"sync"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"volviewer3d/internal/logger"
	"volviewer3d/internal/models"
	"volviewer3d/pkg/axis"
	"volviewer3d/pkg/render"
	"volviewer3d/pkg/volume"
)

// ErrDeleted is returned by every operation on a deleted ImageAdmin.
var ErrDeleted = errors.New("image admin deleted")

// Converter builds the grid of one volume.
type Converter interface {
	Convert(ctx context.Context, d *axis.Descriptor) (*models.Grid, error)
}

// Options configures an ImageAdmin.
type Options struct {
	// Caching enables the volume cache.
	Caching bool
	// MaxCached bounds the volume cache; 0 means unbounded.
	MaxCached int
	// Workers is the number of volumes GetAllDisplayedVolumes builds at once.
	Workers   int
	Mapper    render.Mapper
	Resources *render.ResourceTable
	Logger    *logger.Logger
}

// ImageAdmin owns the axis set, the volume cache and the current volume of
// one image. The axis set must only be mutated from the goroutine that
// requests volumes.
type ImageAdmin struct {
	axes *axis.Set
	conv Converter
	res  *render.ResourceTable
	log  *logger.Logger

	mu      sync.Mutex
	cache   *VolumeCache
	current *volume.Volume
	mapper  render.Mapper
	caching bool
	workers int
	deleted bool

	builds singleflight.Group

	// afterMiss runs between a cache miss and the build; tests use it.
	afterMiss func(key string)
}

// New creates an admin for the image behind conv.
func New(axes *axis.Set, conv Converter, opts Options) *ImageAdmin {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	return &ImageAdmin{
		axes:    axes,
		conv:    conv,
		res:     opts.Resources,
		log:     opts.Logger,
		cache:   NewVolumeCache(opts.MaxCached, opts.Logger),
		mapper:  opts.Mapper,
		caching: opts.Caching,
		workers: workers,
	}
}

// Axes returns the live axis set.
func (a *ImageAdmin) Axes() *axis.Set { return a.axes }

// Cache returns the volume cache.
func (a *ImageAdmin) Cache() *VolumeCache { return a.cache }

// Current returns the volume built or fetched most recently.
func (a *ImageAdmin) Current() (*volume.Volume, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.deleted {
		return nil, ErrDeleted
	}
	return a.current, nil
}

// Mapper returns the session mapper.
func (a *ImageAdmin) Mapper() render.Mapper {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mapper
}

// SetMapper changes the session mapper. It is applied to the current volume
// now and to every other volume when it is next returned.
func (a *ImageAdmin) SetMapper(m render.Mapper) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.deleted {
		return ErrDeleted
	}
	a.mapper = m
	if a.current != nil && !a.current.Released() {
		return a.current.SetMapper(m)
	}
	return nil
}

// Caching reports whether built volumes are cached.
func (a *ImageAdmin) Caching() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.caching
}

// SetCaching turns the volume cache on or off. Cached volumes are kept.
func (a *ImageAdmin) SetCaching(on bool) {
	a.mu.Lock()
	a.caching = on
	a.mu.Unlock()
}

// ManipulatedVolume returns the volume selected by the manipulated index of
// every hidden axis.
func (a *ImageAdmin) ManipulatedVolume(ctx context.Context) (*volume.Volume, error) {
	return a.GetOrBuild(ctx, a.axes.ManipulatedVolume())
}

// GetOrBuild returns the volume of d. A cached volume is returned as is,
// with the session mapper applied. Otherwise the grid is converted and the
// new volume inherits the transfer functions of the current volume.
// Concurrent requests for the same key share one build.
//
// The volume becomes current. The admin keeps its current volume alive;
// cached volumes live until they are evicted. With caching off the volume
// is released once another volume becomes current, or by the caller.
func (a *ImageAdmin) GetOrBuild(ctx context.Context, d *axis.Descriptor) (*volume.Volume, error) {
	return a.getOrBuild(ctx, d, false)
}

// getOrBuild is GetOrBuild; with pin the volume is returned pinned in the
// cache.
func (a *ImageAdmin) getOrBuild(ctx context.Context, d *axis.Descriptor, pin bool) (*volume.Volume, error) {
	key := d.CacheKey()
	for {
		a.mu.Lock()
		if a.deleted {
			a.mu.Unlock()
			return nil, ErrDeleted
		}
		v, ok, err := a.cachedLocked(key, pin)
		a.mu.Unlock()
		if ok {
			a.log.Debug("admin", "volume cache hit", map[string]interface{}{"key": key})
			return v, err
		}
		if a.afterMiss != nil {
			a.afterMiss(key)
		}

		leader := false
		res, err, shared := a.builds.Do(key, func() (interface{}, error) {
			leader = true
			a.mu.Lock()
			v, ok, err := a.cachedLocked(key, pin)
			a.mu.Unlock()
			if ok {
				return v, err
			}
			return a.build(ctx, d, pin)
		})
		if err != nil {
			return nil, err
		}
		v = res.(*volume.Volume)
		if shared {
			a.log.Debug("admin", "joined running build", map[string]interface{}{"key": key})
		}
		if leader || !pin || a.cache.Pin(v) {
			return v, nil
		}
		// released before it could be pinned
	}
}

// cachedLocked returns the cached volume of key, makes it current and
// applies the session mapper. a.mu must be held.
func (a *ImageAdmin) cachedLocked(key string, pin bool) (*volume.Volume, bool, error) {
	if !a.caching {
		return nil, false, nil
	}
	v, ok := a.cache.Get(key)
	if !ok || (pin && !a.cache.Pin(v)) {
		return nil, false, nil
	}
	a.setCurrent(v)
	return v, true, v.SetMapper(a.mapper)
}

// setCurrent pins v as the current volume and unpins the previous one.
// a.mu must be held.
func (a *ImageAdmin) setCurrent(v *volume.Volume) {
	if a.current == v {
		return
	}
	old := a.current
	a.current = v
	if v != nil {
		a.cache.Pin(v)
	}
	if old != nil {
		a.cache.Unpin(old)
	}
}

func (a *ImageAdmin) build(ctx context.Context, d *axis.Descriptor, pin bool) (*volume.Volume, error) {
	key := d.CacheKey()
	grid, err := a.conv.Convert(ctx, d)
	if err != nil {
		a.log.Error("admin", err, map[string]interface{}{"key": key})
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.deleted {
		return nil, ErrDeleted
	}

	var v *volume.Volume
	if a.current != nil {
		v, err = volume.New(grid, d, a.current.BundleGray(), a.current.BundleRGB(), a.res)
	} else {
		v, err = volume.New(grid, d, nil, nil, a.res)
	}
	if err != nil {
		return nil, err
	}
	if err := v.SetMapper(a.mapper); err != nil {
		v.Release()
		return nil, err
	}
	if pin {
		a.cache.Pin(v)
	}
	if a.caching {
		a.cache.Add(key, v)
	}
	a.setCurrent(v)

	a.log.Info("admin", "volume built", map[string]interface{}{
		"key":    key,
		"cached": a.caching,
		"size":   humanize.Bytes(uint64(grid.Bytes())),
	})
	return v, nil
}

// GetAllDisplayedVolumes returns the volume of every descriptor the axis set
// enumerates, in enumeration order. Up to Workers volumes are built at once.
//
// The volumes are returned pinned, so none of them is released while the
// batch is larger than the cache. Hand them back with Done.
func (a *ImageAdmin) GetAllDisplayedVolumes(ctx context.Context) ([]*volume.Volume, error) {
	descs, err := a.axes.EnumerateVolumes()
	if err != nil {
		return nil, err
	}
	out := make([]*volume.Volume, len(descs))

	a.mu.Lock()
	workers := a.workers
	a.mu.Unlock()

	if workers == 1 {
		for i, d := range descs {
			if out[i], err = a.getOrBuild(ctx, d, true); err != nil {
				a.Done(out...)
				return nil, err
			}
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, d := range descs {
		g.Go(func() error {
			v, err := a.getOrBuild(gctx, d, true)
			out[i] = v
			return err
		})
	}
	if err := g.Wait(); err != nil {
		a.Done(out...)
		return nil, err
	}
	if len(out) > 0 {
		a.mu.Lock()
		if !a.deleted {
			a.setCurrent(out[len(out)-1])
		}
		a.mu.Unlock()
	}
	return out, nil
}

// Done hands back volumes returned by GetAllDisplayedVolumes. Those that
// are neither cached nor current are released.
func (a *ImageAdmin) Done(vols ...*volume.Volume) {
	for _, v := range vols {
		if v != nil {
			a.cache.Unpin(v)
		}
	}
}

// Delete releases every cached volume and the current one. Later calls
// fail with ErrDeleted.
func (a *ImageAdmin) Delete() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.deleted {
		return ErrDeleted
	}
	a.deleted = true
	n := a.cache.Len()
	if a.current != nil {
		a.current.Release()
		a.current = nil
	}
	a.cache.Clear()
	a.log.Info("admin", "image admin deleted", map[string]interface{}{"released": n})
	return nil
}
