package transfer

const (
	// TableSize is the number of entries of a lookup table.
	TableSize = 256

	// ColorPoints is the number of intervals sampled for colour functions.
	ColorPoints = 50

	// OpacityMult scales alpha in lookup tables, which are used for slices.
	OpacityMult = 10.0
)

// Entry is one RGBA lookup table value, each channel in [0, 1].
type Entry struct {
	R, G, B, A float64
}

// ControlPoint places a value at a position in the data range.
type ControlPoint struct {
	Pos   float64
	Value float64
}

// ColorPoint places an RGB colour at a position in the data range.
type ColorPoint struct {
	Pos     float64
	R, G, B float64
}

// Table builds the slice lookup table of b. Gray is inverted so that a
// rising gray function darkens, and alpha is multiplied by OpacityMult and
// capped at 1.
func Table(b *Bundle) []Entry {
	out := make([]Entry, TableSize)
	last := float64(TableSize - 1)
	for i := range out {
		frac := float64(i) / last
		a := b.Get(Alpha).ValueAt(frac) * OpacityMult
		if a > 1 {
			a = 1
		}
		if b.kind == GA {
			g := 1 - b.Get(Grey).ValueAt(frac)
			out[i] = Entry{g, g, g, a}
			continue
		}
		out[i] = Entry{
			R: b.Get(Red).ValueAt(frac),
			G: b.Get(Green).ValueAt(frac),
			B: b.Get(Blue).ValueAt(frac),
			A: a,
		}
	}
	return out
}

// OpacityPoints maps the alpha polyline of b onto the data range [min, max].
func OpacityPoints(b *Bundle, min, max float64) []ControlPoint {
	span := max - min
	pts := b.Get(Alpha).Points()
	out := make([]ControlPoint, len(pts))
	for i, p := range pts {
		out[i] = ControlPoint{Pos: p.X*span + min, Value: p.Y}
	}
	return out
}

// ColorFunction maps the colour functions of b onto the data range. Gray
// bundles use their polyline vertices, inverted; RGBA bundles are sampled at
// ColorPoints+1 evenly spaced positions.
func ColorFunction(b *Bundle, min, max float64) []ColorPoint {
	span := max - min
	if b.kind == GA {
		pts := b.Get(Grey).Points()
		out := make([]ColorPoint, len(pts))
		for i, p := range pts {
			g := 1 - p.Y
			out[i] = ColorPoint{Pos: p.X*span + min, R: g, G: g, B: g}
		}
		return out
	}
	out := make([]ColorPoint, ColorPoints+1)
	for i := range out {
		frac := float64(i) / ColorPoints
		out[i] = ColorPoint{
			Pos: span*frac + min,
			R:   b.Get(Red).ValueAt(frac),
			G:   b.Get(Green).ValueAt(frac),
			B:   b.Get(Blue).ValueAt(frac),
		}
	}
	return out
}
