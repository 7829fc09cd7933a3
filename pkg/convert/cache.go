package convert

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/coocood/freecache"
	"github.com/dustin/go-humanize"
	"github.com/golang/snappy"

	"volviewer3d/internal/models"
)

// DefaultCacheMB is the default size of the converter grid cache.
const DefaultCacheMB = 256

const headerSize = 3*4 + 6*8

var (
	errCorrupt  = errors.New("corrupt cached grid")
	errTooLarge = errors.New("grid larger than a quarter of the cache")
)

// gridCache keeps encoded grids in a freecache arena keyed by cache key.
// freecache refuses entries above 1/1024 of its size, so a grid is split
// into chunks stored under their own keys plus an index entry naming the
// chunk count. A grid missing any chunk is a miss.
type gridCache struct {
	store    *freecache.Cache
	size     int
	compress bool

	mu   sync.Mutex
	keys map[string]int // cache key -> chunks
}

func newGridCache(megabytes int, compress bool) *gridCache {
	if megabytes <= 0 {
		megabytes = DefaultCacheMB
	}
	size := megabytes * 1024 * 1024
	return &gridCache{
		store:    freecache.NewCache(size),
		size:     size,
		compress: compress,
		keys:     make(map[string]int),
	}
}

func indexKey(key string) []byte { return append([]byte("i\x00"), key...) }

func chunkKey(key string, i int) []byte {
	k := append([]byte("c\x00"), key...)
	return binary.LittleEndian.AppendUint32(append(k, 0), uint32(i))
}

// chunkSize keeps every chunk at a quarter of the freecache entry limit.
func (c *gridCache) chunkSize(key string) int {
	return (c.size/1024-24)/4 - len(chunkKey(key, 0))
}

func (c *gridCache) get(key string) (*models.Grid, bool) {
	idx, err := c.store.Get(indexKey(key))
	if err != nil || len(idx) != 8 {
		c.drop(key)
		return nil, false
	}
	n := int(binary.LittleEndian.Uint32(idx))
	total := int(binary.LittleEndian.Uint32(idx[4:]))
	buf := make([]byte, 0, total)
	for i := 0; i < n; i++ {
		part, err := c.store.Get(chunkKey(key, i))
		if err != nil {
			c.drop(key)
			return nil, false
		}
		buf = append(buf, part...)
	}
	if len(buf) != total {
		c.drop(key)
		return nil, false
	}
	g, err := c.decode(buf)
	if err != nil {
		c.drop(key)
		return nil, false
	}
	return g, true
}

func (c *gridCache) put(key string, g *models.Grid) error {
	buf := c.encode(g)
	if len(buf) > c.size/4 {
		return fmt.Errorf("%s: %w", humanize.Bytes(uint64(len(buf))), errTooLarge)
	}
	chunk := c.chunkSize(key)
	if chunk <= 0 {
		return fmt.Errorf("cache key of %d bytes: %w", len(key), freecache.ErrLargeKey)
	}
	n := (len(buf) + chunk - 1) / chunk
	for i := 0; i < n; i++ {
		end := min((i+1)*chunk, len(buf))
		if err := c.store.Set(chunkKey(key, i), buf[i*chunk:end], 0); err != nil {
			c.remove(key, i)
			return err
		}
	}
	idx := binary.LittleEndian.AppendUint32(nil, uint32(n))
	idx = binary.LittleEndian.AppendUint32(idx, uint32(len(buf)))
	if err := c.store.Set(indexKey(key), idx, 0); err != nil {
		c.remove(key, n)
		return err
	}
	c.mu.Lock()
	c.keys[key] = n
	c.mu.Unlock()
	return nil
}

// drop forgets key and deletes whatever is left of it.
func (c *gridCache) drop(key string) {
	c.mu.Lock()
	n, ok := c.keys[key]
	delete(c.keys, key)
	c.mu.Unlock()
	if ok {
		c.store.Del(indexKey(key))
		c.remove(key, n)
	}
}

func (c *gridCache) remove(key string, n int) {
	for i := 0; i < n; i++ {
		c.store.Del(chunkKey(key, i))
	}
}

// complete reports whether the index and all n chunks of key are present.
func (c *gridCache) complete(key string, n int) bool {
	if _, err := c.store.TTL(indexKey(key)); err != nil {
		return false
	}
	for i := 0; i < n; i++ {
		if _, err := c.store.TTL(chunkKey(key, i)); err != nil {
			return false
		}
	}
	return true
}

// len returns the number of complete grids.
func (c *gridCache) len() int64 {
	c.mu.Lock()
	keys := make(map[string]int, len(c.keys))
	for k, n := range c.keys {
		keys[k] = n
	}
	c.mu.Unlock()

	var count int64
	for k, n := range keys {
		if c.complete(k, n) {
			count++
		} else {
			c.drop(k)
		}
	}
	return count
}

func (c *gridCache) clear() {
	c.mu.Lock()
	c.keys = make(map[string]int)
	c.mu.Unlock()
	c.store.Clear()
}

func (c *gridCache) encode(g *models.Grid) []byte {
	buf := make([]byte, headerSize+2*len(g.Data))
	off := 0
	for _, d := range g.Dims {
		binary.LittleEndian.PutUint32(buf[off:], uint32(d))
		off += 4
	}
	for _, f := range append(g.Spacing[:], g.Origin[:]...) {
		binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(f))
		off += 8
	}
	for _, v := range g.Data {
		binary.LittleEndian.PutUint16(buf[off:], uint16(v))
		off += 2
	}
	if c.compress {
		return snappy.Encode(nil, buf)
	}
	return buf
}

func (c *gridCache) decode(buf []byte) (*models.Grid, error) {
	if c.compress {
		var err error
		if buf, err = snappy.Decode(nil, buf); err != nil {
			return nil, fmt.Errorf("%v: %w", err, errCorrupt)
		}
	}
	if len(buf) < headerSize {
		return nil, errCorrupt
	}
	g := &models.Grid{}
	off := 0
	n := 1
	for i := range g.Dims {
		g.Dims[i] = int(binary.LittleEndian.Uint32(buf[off:]))
		n *= g.Dims[i]
		off += 4
	}
	for i := range g.Spacing {
		g.Spacing[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[off:]))
		off += 8
	}
	for i := range g.Origin {
		g.Origin[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[off:]))
		off += 8
	}
	if len(buf)-off != 2*n {
		return nil, errCorrupt
	}
	g.Data = make([]int16, n)
	for i := range g.Data {
		g.Data[i] = int16(binary.LittleEndian.Uint16(buf[off:]))
		off += 2
	}
	return g, nil
}
