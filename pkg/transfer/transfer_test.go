package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolylineValueAt(t *testing.T) {
	p, err := NewPolyline(Point{1, 0}, Point{0, 0}, Point{0.5, 1})
	require.NoError(t, err)
	assert.Equal(t, []Point{{0, 0}, {0.5, 1}, {1, 0}}, p.Points())
	assert.InDelta(t, 0.5, p.ValueAt(0.25), 1e-12)
	assert.InDelta(t, 1, p.ValueAt(0.5), 1e-12)
	assert.InDelta(t, 0.5, p.ValueAt(0.75), 1e-12)
	assert.Equal(t, 0.0, p.ValueAt(-1))
	assert.Equal(t, 0.0, p.ValueAt(2))
}

func TestPolylineClampsAndValidates(t *testing.T) {
	_, err := NewPolyline(Point{0.3, 0.3})
	assert.ErrorIs(t, err, ErrTooFewPoints)
	_, err = NewPolyline(Point{-1, 0}, Point{0, 1})
	assert.ErrorIs(t, err, ErrTooFewPoints)

	p, err := NewPolyline(Point{-1, -2}, Point{3, 4})
	require.NoError(t, err)
	assert.Equal(t, []Point{{0, 0}, {1, 1}}, p.Points())
}

func TestBundleCloneIsDeep(t *testing.T) {
	b := NewGABundle()
	c := b.Clone()
	require.NoError(t, c.Set(Alpha, Ramp(1, 1)))
	assert.InDelta(t, 0.1, b.Get(Alpha).ValueAt(1), 1e-12)
	assert.InDelta(t, 1, c.Get(Alpha).ValueAt(0), 1e-12)

	assert.Error(t, b.Set(Red, Ramp(0, 1)))
	assert.Nil(t, b.Get(Red))
	assert.Equal(t, []Color{Red, Green, Blue, Alpha}, NewRGBABundle().Kind().Channels())
}

func TestTableGray(t *testing.T) {
	tab := Table(NewGABundle())
	require.Len(t, tab, TableSize)
	assert.Equal(t, Entry{1, 1, 1, 0}, tab[0])
	last := tab[TableSize-1]
	assert.InDelta(t, 0, last.R, 1e-12)
	// alpha 0.1 * 10 saturates at 1
	assert.InDelta(t, 1, last.A, 1e-12)
	for _, e := range tab {
		assert.LessOrEqual(t, e.A, 1.0)
	}
}

func TestTableRGBA(t *testing.T) {
	tab := Table(NewRGBABundle())
	assert.InDelta(t, 1, tab[0].B, 1e-12)
	assert.InDelta(t, 1, tab[TableSize-1].R, 1e-12)
}

func TestOpacityAndColorPoints(t *testing.T) {
	op := OpacityPoints(NewGABundle(), -100, 100)
	assert.Equal(t, []ControlPoint{{-100, 0}, {100, 0.1}}, op)

	gray := ColorFunction(NewGABundle(), 0, 10)
	require.Len(t, gray, 2)
	assert.Equal(t, ColorPoint{Pos: 10, R: 0, G: 0, B: 0}, gray[1])

	rgb := ColorFunction(NewRGBABundle(), 0, 50)
	require.Len(t, rgb, ColorPoints+1)
	assert.InDelta(t, 25, rgb[25].Pos, 1e-12)
	assert.InDelta(t, 1, rgb[25].G, 1e-12)
}
