package transfer

import "fmt"

// Kind tells gray/alpha bundles from RGBA bundles.
type Kind int

const (
	GA Kind = iota
	RGBA
)

func (k Kind) String() string {
	if k == GA {
		return "ga"
	}
	return "rgba"
}

// Channels returns the colors a bundle of kind k carries.
func (k Kind) Channels() []Color {
	if k == GA {
		return []Color{Grey, Alpha}
	}
	return []Color{Red, Green, Blue, Alpha}
}

// Bundle is a set of transfer functions, one per channel.
type Bundle struct {
	kind  Kind
	funcs map[Color]*Polyline
}

// NewGABundle returns the default gray bundle: a linear gray ramp with a low
// opacity ramp.
func NewGABundle() *Bundle {
	return &Bundle{kind: GA, funcs: map[Color]*Polyline{
		Grey:  Ramp(0, 1),
		Alpha: Ramp(0, 0.1),
	}}
}

// NewRGBABundle returns the default colour bundle.
func NewRGBABundle() *Bundle {
	return &Bundle{kind: RGBA, funcs: map[Color]*Polyline{
		Red:   Ramp(0, 1),
		Green: MustPolyline(Point{0, 0}, Point{0.5, 1}, Point{1, 0.5}),
		Blue:  Ramp(1, 0),
		Alpha: Ramp(0, 0.1),
	}}
}

// Kind returns the bundle kind.
func (b *Bundle) Kind() Kind { return b.kind }

// Get returns the function of channel c, or nil if the bundle has none.
func (b *Bundle) Get(c Color) *Polyline { return b.funcs[c] }

// Set replaces the function of channel c with a copy of p.
func (b *Bundle) Set(c Color, p *Polyline) error {
	if _, ok := b.funcs[c]; !ok {
		return fmt.Errorf("%s bundle has no %s channel", b.kind, c)
	}
	b.funcs[c] = p.Clone()
	return nil
}

// Clone returns a deep copy.
func (b *Bundle) Clone() *Bundle {
	c := &Bundle{kind: b.kind, funcs: make(map[Color]*Polyline, len(b.funcs))}
	for k, f := range b.funcs {
		c.funcs[k] = f.Clone()
	}
	return c
}
