package render

import (
	"errors"
	"fmt"
	"sync"

	"volviewer3d/internal/logger"
)

// ErrNotReady is returned when resources are requested before the renderer
// was initialized.
var ErrNotReady = errors.New("renderer not initialized")

// Step is one named initialization action, e.g. loading a native library.
type Step struct {
	Name string
	Run  func() error
}

// Bootstrap runs the renderer's one-time initialization steps in order.
type Bootstrap struct {
	mu    sync.Mutex
	steps []Step
	done  bool
	ready bool
	err   error
	log   *logger.Logger
}

// NewBootstrap creates a bootstrap that will run steps on Init.
func NewBootstrap(log *logger.Logger, steps ...Step) *Bootstrap {
	return &Bootstrap{steps: steps, log: log}
}

// Default is the process-wide bootstrap.
var Default = NewBootstrap(nil)

// Init runs the steps once. Later calls return the first result. A failing
// step stops initialization and leaves the bootstrap not ready.
func (b *Bootstrap) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return b.err
	}
	b.done = true
	for _, s := range b.steps {
		if err := s.Run(); err != nil {
			b.err = fmt.Errorf("renderer init step %s: %w", s.Name, err)
			b.log.Error("render", b.err, nil)
			return b.err
		}
		b.log.Debug("render", "init step done", map[string]interface{}{"step": s.Name})
	}
	b.ready = true
	return nil
}

// IsReady reports whether Init completed successfully.
func (b *Bootstrap) IsReady() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}
