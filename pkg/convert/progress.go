package convert

import (
	"context"
	"errors"
	"fmt"
)

// ErrIllegalProgress is returned for progress values outside [0, 100].
var ErrIllegalProgress = errors.New("illegal progress value")

// Progress is a validated load progress in percent.
type Progress struct {
	value int
}

// NewProgress validates v.
func NewProgress(v int) (Progress, error) {
	if v < 0 || v > 100 {
		return Progress{}, fmt.Errorf("%d: %w", v, ErrIllegalProgress)
	}
	return Progress{value: v}, nil
}

// Value returns the percentage.
func (p Progress) Value() int { return p.value }

// ProgressSink receives progress events.
type ProgressSink interface {
	Progress(p Progress)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(p Progress)

func (f ProgressFunc) Progress(p Progress) { f(p) }

type progressKey struct{}

// WithProgress returns a context that routes conversion progress to sink.
func WithProgress(ctx context.Context, sink ProgressSink) context.Context {
	return context.WithValue(ctx, progressKey{}, sink)
}

// ProgressFrom returns the sink attached to ctx, if any.
func ProgressFrom(ctx context.Context) ProgressSink {
	sink, _ := ctx.Value(progressKey{}).(ProgressSink)
	return sink
}

// reporter emits a progress event each time another percent is done.
type reporter struct {
	sinks []ProgressSink
	total int
	last  int
}

func newReporter(total int, sinks ...ProgressSink) *reporter {
	r := &reporter{total: total, last: -1}
	for _, s := range sinks {
		if s != nil {
			r.sinks = append(r.sinks, s)
		}
	}
	return r
}

func (r *reporter) update(done int) error {
	if len(r.sinks) == 0 || r.total <= 0 {
		return nil
	}
	pct := done * 100 / r.total
	if pct <= r.last {
		return nil
	}
	p, err := NewProgress(pct)
	if err != nil {
		return err
	}
	r.last = pct
	for _, s := range r.sinks {
		s.Progress(p)
	}
	return nil
}
