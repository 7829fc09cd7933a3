package admin

import (
	"context"
	"sync"

	"github.com/twinj/uuid"

	"volviewer3d/internal/logger"
	"volviewer3d/pkg/axis"
	"volviewer3d/pkg/convert"
	"volviewer3d/pkg/volume"
)

// Result is the outcome of one background load.
type Result struct {
	ID     string
	Key    string
	Volume *volume.Volume
	Err    error
}

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	// QueueLatest remembers the latest request that arrives while a load
	// is running and loads it afterwards. Without it such requests are dropped.
	QueueLatest bool
	// Sink receives the progress of running loads.
	Sink convert.ProgressSink
	// Done receives every completed load while the loader is open.
	Done   func(Result)
	Logger *logger.Logger
}

// Loader runs volume loads for one ImageAdmin in the background, at most
// one at a time.
type Loader struct {
	admin *ImageAdmin
	opts  LoaderOptions
	log   *logger.Logger

	mu       sync.Mutex
	inFlight bool
	pending  *axis.Descriptor
	closed   bool
	wg       sync.WaitGroup
}

// NewLoader creates a loader for admin.
func NewLoader(admin *ImageAdmin, opts LoaderOptions) *Loader {
	return &Loader{admin: admin, opts: opts, log: opts.Logger}
}

// Request loads the manipulated volume of the admin's axis set. The
// descriptor is captured now, so the caller may keep changing the axes.
// It returns the id of the started load, or false if no load was started
// because one is in flight or the loader is closed.
func (l *Loader) Request(ctx context.Context) (string, bool) {
	return l.RequestVolume(ctx, l.admin.Axes().ManipulatedVolume())
}

// RequestVolume is Request for an explicit descriptor.
func (l *Loader) RequestVolume(ctx context.Context, d *axis.Descriptor) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return "", false
	}
	if l.inFlight {
		if l.opts.QueueLatest {
			l.pending = d
			l.log.Debug("loader", "load queued", map[string]interface{}{"key": d.CacheKey()})
		} else {
			l.log.Debug("loader", "load dropped", map[string]interface{}{"key": d.CacheKey()})
		}
		return "", false
	}
	l.inFlight = true
	id := uuid.NewV4().String()
	l.wg.Add(1)
	go l.run(ctx, id, d)
	return id, true
}

func (l *Loader) run(ctx context.Context, id string, d *axis.Descriptor) {
	defer l.wg.Done()
	for {
		l.log.Debug("loader", "load started", map[string]interface{}{"id": id, "key": d.CacheKey()})
		v, err := l.admin.GetOrBuild(convert.WithProgress(ctx, convert.ProgressFunc(l.progress)), d)
		l.deliver(Result{ID: id, Key: d.CacheKey(), Volume: v, Err: err})

		l.mu.Lock()
		if l.pending == nil || l.closed {
			l.pending = nil
			l.inFlight = false
			l.mu.Unlock()
			return
		}
		d, l.pending = l.pending, nil
		id = uuid.NewV4().String()
		l.mu.Unlock()
	}
}

func (l *Loader) progress(p convert.Progress) {
	if l.opts.Sink == nil || !l.Live() {
		return
	}
	l.opts.Sink.Progress(p)
}

func (l *Loader) deliver(r Result) {
	if !l.Live() {
		l.log.Debug("loader", "result dropped after close", map[string]interface{}{"id": r.ID})
		return
	}
	if r.Err != nil {
		l.log.Error("loader", r.Err, map[string]interface{}{"id": r.ID, "key": r.Key})
	}
	if l.opts.Done != nil {
		l.opts.Done(r)
	}
}

// Busy reports whether a load is running.
func (l *Loader) Busy() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight
}

// Live reports whether results are still delivered.
func (l *Loader) Live() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.closed
}

// Close stops delivering results and progress. A running load is not
// interrupted; its result is discarded.
func (l *Loader) Close() {
	l.mu.Lock()
	l.closed = true
	l.pending = nil
	l.mu.Unlock()
}

// Wait blocks until no load is running.
func (l *Loader) Wait() { l.wg.Wait() }
