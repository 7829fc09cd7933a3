package render

import (
	"errors"
	"fmt"
	"sync"

	"volviewer3d/internal/logger"
)

// ErrUnknownHandle is returned for handles that were never acquired or were
// already released.
var ErrUnknownHandle = errors.New("unknown resource handle")

// Handle identifies one native resource in a ResourceTable.
type Handle uint64

type resource struct {
	kind   string
	mapper Mapper
}

// ResourceTable owns the native resources of rendered volumes. Each
// resource has exactly one owner, which releases it through its handle.
type ResourceTable struct {
	mu   sync.Mutex
	boot *Bootstrap
	next Handle
	live map[Handle]resource
	log  *logger.Logger
}

// NewResourceTable creates a table that hands out resources once boot is
// ready. A nil boot needs no initialization.
func NewResourceTable(boot *Bootstrap, log *logger.Logger) *ResourceTable {
	return &ResourceTable{
		boot: boot,
		live: make(map[Handle]resource),
		log:  log,
	}
}

// Acquire allocates a resource of the given kind.
func (t *ResourceTable) Acquire(kind string) (Handle, error) {
	if t.boot != nil && !t.boot.IsReady() {
		return 0, ErrNotReady
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.live[t.next] = resource{kind: kind}
	return t.next, nil
}

// Select binds mapper m to the resource h.
func (t *ResourceTable) Select(h Handle, m Mapper) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.live[h]
	if !ok {
		return fmt.Errorf("handle %d: %w", h, ErrUnknownHandle)
	}
	r.mapper = m
	t.live[h] = r
	return nil
}

// Mapper returns the mapper bound to h.
func (t *ResourceTable) Mapper(h Handle) (Mapper, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.live[h]
	return r.mapper, ok
}

// Release frees h. It reports false if h was not live.
func (t *ResourceTable) Release(h Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.live[h]; !ok {
		return false
	}
	delete(t.live, h)
	return true
}

// Live returns the number of resources not yet released.
func (t *ResourceTable) Live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}

// Close releases every live resource and returns how many there were.
func (t *ResourceTable) Close() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.live)
	t.live = make(map[Handle]resource)
	if n > 0 {
		t.log.Warning("render", "released leaked resources", map[string]interface{}{"count": n})
	}
	return n
}
