package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGridSpacingFallback(t *testing.T) {
	g, err := NewGrid([3]int{2, 3, 4}, [3]float64{0, -1, 2.5})
	require.NoError(t, err)
	assert.Equal(t, [3]float64{1, 1, 2.5}, g.Spacing)
	assert.Equal(t, 24, g.Len())
	assert.Len(t, g.Data, 24)
	assert.Equal(t, 48, g.Bytes())
}

func TestNewGridRejectsEmptyDims(t *testing.T) {
	_, err := NewGrid([3]int{2, 0, 4}, [3]float64{1, 1, 1})
	assert.Error(t, err)
}

func TestGridIndexing(t *testing.T) {
	g, err := NewGrid([3]int{3, 2, 2}, [3]float64{1, 1, 1})
	require.NoError(t, err)
	g.Set(2, 1, 1, 42)
	assert.Equal(t, int16(42), g.Data[len(g.Data)-1])

	// x varies fastest, then y, then z
	assert.Equal(t, 1, g.Index(1, 0, 0))
	assert.Equal(t, 3, g.Index(0, 1, 0))
	assert.Equal(t, 6, g.Index(0, 0, 1))

	g.Set(0, 0, 0, -7)
	lo, hi := g.Range()
	assert.Equal(t, int16(-7), lo)
	assert.Equal(t, int16(42), hi)

	c := g.Clone()
	c.Set(0, 0, 0, 1)
	assert.Equal(t, int16(-7), g.At(0, 0, 0), "clone shares data")
}
