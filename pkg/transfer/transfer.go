// Package transfer holds the transfer functions that map normalized sample
// values onto colour and opacity.
package transfer

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/interp"
)

// Color names one channel of a bundle.
type Color int

const (
	Grey Color = iota
	Red
	Green
	Blue
	Alpha
)

func (c Color) String() string {
	switch c {
	case Grey:
		return "grey"
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	case Alpha:
		return "alpha"
	}
	return fmt.Sprintf("color(%d)", int(c))
}

// ErrTooFewPoints is returned for polylines with less than two points.
var ErrTooFewPoints = errors.New("polyline needs at least two points")

// Point is one vertex of a polyline over [0, 1] x [0, 1].
type Point struct {
	X, Y float64
}

// Polyline is a piecewise linear transfer function.
type Polyline struct {
	points []Point
	fit    interp.PiecewiseLinear
}

// NewPolyline builds a polyline through pts. Coordinates are clamped to
// [0, 1] and points are ordered by X; for equal X the later point wins.
func NewPolyline(pts ...Point) (*Polyline, error) {
	byX := make(map[float64]float64, len(pts))
	for _, p := range pts {
		byX[clamp(p.X)] = clamp(p.Y)
	}
	if len(byX) < 2 {
		return nil, ErrTooFewPoints
	}
	p := &Polyline{points: make([]Point, 0, len(byX))}
	for x, y := range byX {
		p.points = append(p.points, Point{X: x, Y: y})
	}
	sort.Slice(p.points, func(i, j int) bool { return p.points[i].X < p.points[j].X })

	xs := make([]float64, len(p.points))
	ys := make([]float64, len(p.points))
	for i, pt := range p.points {
		xs[i], ys[i] = pt.X, pt.Y
	}
	if err := p.fit.Fit(xs, ys); err != nil {
		return nil, fmt.Errorf("error fitting polyline: %w", err)
	}
	return p, nil
}

// MustPolyline is NewPolyline for fixed point sets.
func MustPolyline(pts ...Point) *Polyline {
	p, err := NewPolyline(pts...)
	if err != nil {
		panic(err)
	}
	return p
}

// Ramp is the line from (0, from) to (1, to).
func Ramp(from, to float64) *Polyline {
	return MustPolyline(Point{0, from}, Point{1, to})
}

// ValueAt evaluates the polyline. Outside the first and last point the
// nearest end value is returned.
func (p *Polyline) ValueAt(x float64) float64 {
	first, last := p.points[0], p.points[len(p.points)-1]
	switch {
	case x <= first.X:
		return first.Y
	case x >= last.X:
		return last.Y
	}
	return p.fit.Predict(x)
}

// Points returns a copy of the vertices.
func (p *Polyline) Points() []Point {
	return append([]Point(nil), p.points...)
}

// Clone returns a deep copy.
func (p *Polyline) Clone() *Polyline {
	return MustPolyline(p.points...)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
