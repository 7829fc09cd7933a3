package admin

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volviewer3d/internal/models"
	"volviewer3d/pkg/axis"
	"volviewer3d/pkg/convert"
	"volviewer3d/pkg/render"
	"volviewer3d/pkg/transfer"
	"volviewer3d/pkg/volume"
)

// countingConverter builds constant grids and counts calls per key.
type countingConverter struct {
	mu    sync.Mutex
	calls map[string]int
	total int32
	gate  chan struct{}
	err   error
}

func newCounting() *countingConverter {
	return &countingConverter{calls: make(map[string]int)}
}

func (c *countingConverter) Convert(ctx context.Context, d *axis.Descriptor) (*models.Grid, error) {
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if sink := convert.ProgressFrom(ctx); sink != nil {
		p, _ := convert.NewProgress(100)
		sink.Progress(p)
	}
	atomic.AddInt32(&c.total, 1)
	c.mu.Lock()
	c.calls[d.CacheKey()]++
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return models.NewGrid([3]int{4, 4, 4}, [3]float64{1, 1, 1})
}

func (c *countingConverter) count() int { return int(atomic.LoadInt32(&c.total)) }

func testSet(t *testing.T) (*axis.Set, *axis.Axis) {
	t.Helper()
	tm := axis.MustNew("Time", 3, 3)
	s, err := axis.NewSet(3, []*axis.Axis{
		axis.MustNew("X", 4, 0), axis.MustNew("Y", 4, 1), axis.MustNew("Z", 4, 2), tm,
	})
	require.NoError(t, err)
	return s, tm
}

func readyResources(t *testing.T) *render.ResourceTable {
	t.Helper()
	boot := render.NewBootstrap(nil)
	require.NoError(t, boot.Init())
	return render.NewResourceTable(boot, nil)
}

func TestCacheHitDoesNotConvert(t *testing.T) {
	set, tm := testSet(t)
	conv := newCounting()
	a := New(set, conv, Options{Caching: true})
	ctx := context.Background()

	v1, err := a.ManipulatedVolume(ctx)
	require.NoError(t, err)
	v2, err := a.ManipulatedVolume(ctx)
	require.NoError(t, err)
	assert.Same(t, v1, v2)
	assert.Equal(t, 1, conv.count())

	require.NoError(t, tm.SetDisplayed([]int{1}))
	_, err = a.ManipulatedVolume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, conv.count())
	assert.Equal(t, []string{"XYZTime0", "XYZTime1"}, a.Cache().Keys())
}

func TestCachingDisabledAlwaysConverts(t *testing.T) {
	set, _ := testSet(t)
	conv := newCounting()
	a := New(set, conv, Options{})
	ctx := context.Background()

	_, err := a.ManipulatedVolume(ctx)
	require.NoError(t, err)
	_, err = a.ManipulatedVolume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, conv.count())
	assert.Zero(t, a.Cache().Len())
}

func TestMapperReappliedOnHit(t *testing.T) {
	set, tm := testSet(t)
	a := New(set, newCounting(), Options{Caching: true, Mapper: render.Texture3D})
	ctx := context.Background()

	v0, err := a.ManipulatedVolume(ctx)
	require.NoError(t, err)
	assert.Equal(t, render.Texture3D, v0.Mapper())

	require.NoError(t, tm.SetDisplayed([]int{2}))
	_, err = a.ManipulatedVolume(ctx)
	require.NoError(t, err)

	require.NoError(t, a.SetMapper(render.GPU))
	assert.Equal(t, render.Texture3D, v0.Mapper())

	require.NoError(t, tm.SetDisplayed([]int{0}))
	again, err := a.ManipulatedVolume(ctx)
	require.NoError(t, err)
	assert.Same(t, v0, again)
	assert.Equal(t, render.GPU, again.Mapper())
}

func TestNewVolumeInheritsBundles(t *testing.T) {
	set, tm := testSet(t)
	a := New(set, newCounting(), Options{Caching: true})
	ctx := context.Background()

	first, err := a.ManipulatedVolume(ctx)
	require.NoError(t, err)
	custom := transfer.NewGABundle()
	require.NoError(t, custom.Set(transfer.Alpha, transfer.Ramp(0.5, 0.5)))
	require.NoError(t, first.SetBundleGray(custom))

	require.NoError(t, tm.SetDisplayed([]int{1}))
	second, err := a.ManipulatedVolume(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, second.BundleGray().Get(transfer.Alpha).ValueAt(0), 1e-12)

	cur, err := a.Current()
	require.NoError(t, err)
	assert.Same(t, second, cur)
}

func TestGetAllDisplayedVolumesOrder(t *testing.T) {
	for _, workers := range []int{1, 3} {
		set, tm := testSet(t)
		require.NoError(t, tm.SetDisplayed([]int{0, 1, 2}))
		conv := newCounting()
		a := New(set, conv, Options{Caching: true, Workers: workers})

		vols, err := a.GetAllDisplayedVolumes(context.Background())
		require.NoError(t, err)
		require.Len(t, vols, 3)
		for i, v := range vols {
			d, ok := v.Descriptor().Depth("Time")
			require.True(t, ok)
			assert.Equal(t, i, d, "workers=%d", workers)
		}
		assert.Equal(t, 3, conv.count())

		cur, err := a.Current()
		require.NoError(t, err)
		assert.Same(t, vols[2], cur)
	}
}

func TestGetAllDisplayedVolumesCap(t *testing.T) {
	set, tm := testSet(t)
	require.NoError(t, tm.SetDisplayed([]int{0, 1, 2}))
	set.SetMaxVolumes(2)
	a := New(set, newCounting(), Options{})
	_, err := a.GetAllDisplayedVolumes(context.Background())
	assert.ErrorIs(t, err, axis.ErrTooManyVolumes)
}

func TestConcurrentBuildsShareOneConversion(t *testing.T) {
	set, _ := testSet(t)
	conv := newCounting()
	conv.gate = make(chan struct{})
	a := New(set, conv, Options{Caching: true})
	d := set.ManipulatedVolume()

	var wg sync.WaitGroup
	vols := make([]*volume.Volume, 4)
	for i := range vols {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := a.GetOrBuild(context.Background(), d)
			assert.NoError(t, err)
			vols[i] = v
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(conv.gate)
	wg.Wait()

	assert.Equal(t, 1, conv.count())
	for _, v := range vols[1:] {
		assert.Same(t, vols[0], v)
	}
}

func TestConvertErrorPropagates(t *testing.T) {
	set, _ := testSet(t)
	conv := newCounting()
	conv.err = errors.New("read failed")
	a := New(set, conv, Options{Caching: true})
	_, err := a.ManipulatedVolume(context.Background())
	assert.ErrorIs(t, err, conv.err)
	assert.Zero(t, a.Cache().Len())
}

func TestDeleteReleasesEverything(t *testing.T) {
	set, tm := testSet(t)
	res := readyResources(t)
	a := New(set, newCounting(), Options{Caching: true, Resources: res})
	ctx := context.Background()

	require.NoError(t, tm.SetDisplayed([]int{0, 1, 2}))
	vols, err := a.GetAllDisplayedVolumes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Live())

	require.NoError(t, a.Delete())
	assert.Equal(t, 0, res.Live())
	for _, v := range vols {
		assert.True(t, v.Released())
	}

	_, err = a.ManipulatedVolume(ctx)
	assert.ErrorIs(t, err, ErrDeleted)
	_, err = a.Current()
	assert.ErrorIs(t, err, ErrDeleted)
	assert.ErrorIs(t, a.SetMapper(render.GPU), ErrDeleted)
	assert.ErrorIs(t, a.Delete(), ErrDeleted)
}

func TestVolumeCacheEviction(t *testing.T) {
	set, tm := testSet(t)
	res := readyResources(t)
	a := New(set, newCounting(), Options{Caching: true, MaxCached: 2, Resources: res})

	require.NoError(t, tm.SetDisplayed([]int{0, 1, 2}))
	vols, err := a.GetAllDisplayedVolumes(context.Background())
	require.NoError(t, err)
	a.Done(vols...)

	assert.Equal(t, 2, a.Cache().Len())
	assert.Equal(t, []string{"XYZTime1", "XYZTime2"}, a.Cache().Keys())
	assert.True(t, vols[0].Released())
	assert.Equal(t, 2, res.Live())
	assert.Greater(t, a.Cache().Bytes(), 2*64*2)

	a.Cache().Remove("XYZTime1")
	assert.True(t, vols[1].Released())
	assert.Equal(t, []string{"XYZTime2"}, a.Cache().Keys())

	// the current volume survives its eviction
	a.Cache().Remove("XYZTime2")
	assert.False(t, vols[2].Released())
	cur, err := a.Current()
	require.NoError(t, err)
	assert.Same(t, vols[2], cur)
}

func TestBatchLargerThanCacheStaysAlive(t *testing.T) {
	for _, workers := range []int{1, 3} {
		set, tm := testSet(t)
		res := readyResources(t)
		a := New(set, newCounting(), Options{Caching: true, MaxCached: 2, Workers: workers, Resources: res})
		require.NoError(t, tm.SetDisplayed([]int{0, 1, 2}))
		require.Greater(t, set.NumVolumes(), 2)

		vols, err := a.GetAllDisplayedVolumes(context.Background())
		require.NoError(t, err)
		for i, v := range vols {
			assert.False(t, v.Released(), "workers=%d volume %d", workers, i)
			assert.NoError(t, v.SetMapper(render.GPU), "workers=%d volume %d", workers, i)
		}
		assert.Equal(t, 3, res.Live())
		assert.Equal(t, 2, a.Cache().Len())

		a.Done(vols...)
		cur, err := a.Current()
		require.NoError(t, err)
		assert.Same(t, vols[2], cur)
		live := 0
		for _, v := range vols {
			cached, _ := a.Cache().Get(v.Key())
			kept := cached == v || cur == v
			if kept {
				live++
			}
			assert.Equal(t, !kept, v.Released(), "workers=%d %s", workers, v.Key())
		}
		assert.Equal(t, live, res.Live(), "workers=%d", workers)

		require.NoError(t, a.Delete())
		assert.Equal(t, 0, res.Live())
	}
}

func TestUncachedBatchIsReleasedByDone(t *testing.T) {
	set, tm := testSet(t)
	res := readyResources(t)
	a := New(set, newCounting(), Options{Resources: res})
	require.NoError(t, tm.SetDisplayed([]int{0, 1, 2}))

	vols, err := a.GetAllDisplayedVolumes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Live())

	a.Done(vols...)
	assert.True(t, vols[0].Released())
	assert.True(t, vols[1].Released())
	assert.False(t, vols[2].Released())
	assert.Equal(t, 1, res.Live())
}

func TestMissRacingFinishedBuildReusesVolume(t *testing.T) {
	set, _ := testSet(t)
	conv := newCounting()
	a := New(set, conv, Options{Caching: true})
	d := set.ManipulatedVolume()

	missed := make(chan struct{})
	resume := make(chan struct{})
	var first int32
	a.afterMiss = func(string) {
		if atomic.CompareAndSwapInt32(&first, 0, 1) {
			close(missed)
			<-resume
		}
	}

	late := make(chan *volume.Volume)
	go func() {
		v, err := a.GetOrBuild(context.Background(), d)
		assert.NoError(t, err)
		late <- v
	}()
	<-missed

	built, err := a.GetOrBuild(context.Background(), d)
	require.NoError(t, err)
	close(resume)
	reused := <-late

	assert.Same(t, built, reused)
	assert.False(t, built.Released())
	assert.Equal(t, 1, conv.count())
}
