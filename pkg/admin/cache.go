package admin

import (
	"sync"

	"github.com/DmitriyVTitov/size"
	"github.com/golang/groupcache/lru"

	"volviewer3d/internal/logger"
	"volviewer3d/pkg/volume"
)

// VolumeCache keeps built volumes by cache key. When it holds more than
// its limit the least recently used volume is evicted and released, unless
// it is pinned: a pinned volume leaves the cache but stays alive until its
// last Unpin.
type VolumeCache struct {
	mu    sync.Mutex
	lru   *lru.Cache
	order []string
	vols  map[string]*volume.Volume
	pins  map[*volume.Volume]int
	log   *logger.Logger
}

// NewVolumeCache creates a cache holding at most max volumes; 0 means no limit.
func NewVolumeCache(max int, log *logger.Logger) *VolumeCache {
	c := &VolumeCache{
		lru:  lru.New(max),
		vols: make(map[string]*volume.Volume),
		pins: make(map[*volume.Volume]int),
		log:  log,
	}
	c.lru.OnEvicted = c.evicted
	return c
}

func (c *VolumeCache) evicted(key lru.Key, value interface{}) {
	k := key.(string)
	v := value.(*volume.Volume)
	delete(c.vols, k)
	for i, o := range c.order {
		if o == k {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	if c.pins[v] > 0 {
		c.log.Debug("cache", "pinned volume evicted", map[string]interface{}{"key": k})
		return
	}
	v.Release()
	c.log.Debug("cache", "volume evicted", map[string]interface{}{"key": k})
}

// Pin keeps v alive after eviction until a matching Unpin. It returns false
// if v was already released. Volumes that were never cached may be pinned.
func (c *VolumeCache) Pin(v *volume.Volume) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v.Released() {
		return false
	}
	c.pins[v]++
	return true
}

// Unpin drops one pin of v. The last Unpin of a volume the cache no longer
// holds releases it.
func (c *VolumeCache) Unpin(v *volume.Volume) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.pins[v]
	if !ok {
		return
	}
	if n > 1 {
		c.pins[v] = n - 1
		return
	}
	delete(c.pins, v)
	if c.vols[v.Key()] != v {
		v.Release()
	}
}

// Pinned reports whether v holds at least one pin.
func (c *VolumeCache) Pinned(v *volume.Volume) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pins[v] > 0
}

// Get returns the volume stored under key.
func (c *VolumeCache) Get(key string) (*volume.Volume, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*volume.Volume), true
}

// Add stores v under key. A different volume already stored under key is
// released once unpinned.
func (c *VolumeCache) Add(key string, v *volume.Volume) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.lru.Get(key); ok {
		if o := old.(*volume.Volume); o != v && c.pins[o] == 0 {
			o.Release()
		}
		c.vols[key] = v
		c.lru.Add(key, v)
		return
	}
	c.order = append(c.order, key)
	c.vols[key] = v
	c.lru.Add(key, v)
}

// Remove drops the volume stored under key and releases it unless pinned.
func (c *VolumeCache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

// Len returns the number of cached volumes.
func (c *VolumeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Keys returns the cached keys in insertion order.
func (c *VolumeCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.order...)
}

// Bytes estimates the memory held by the cached grids.
func (c *VolumeCache) Bytes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, v := range c.vols {
		total += size.Of(v.Grid())
	}
	return total
}

// Clear empties the cache and releases every cached or pinned volume.
func (c *VolumeCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Clear()
	for v := range c.pins {
		v.Release()
	}
	c.pins = make(map[*volume.Volume]int)
	c.order = nil
	c.vols = make(map[string]*volume.Volume)
}
