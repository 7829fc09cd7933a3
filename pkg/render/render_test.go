package render

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMapper(t *testing.T) {
	for _, m := range Mappers() {
		got, err := ParseMapper(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	m, err := ParseMapper(" GPU ")
	require.NoError(t, err)
	assert.Equal(t, GPU, m)

	m, err = ParseMapper("")
	require.NoError(t, err)
	assert.Equal(t, Smart, m)

	_, err = ParseMapper("raytrace")
	assert.ErrorIs(t, err, ErrUnknownMapper)
}

func TestBootstrapRunsOnce(t *testing.T) {
	var order []string
	b := NewBootstrap(nil,
		Step{"core", func() error { order = append(order, "core"); return nil }},
		Step{"gl", func() error { order = append(order, "gl"); return nil }},
	)
	assert.False(t, b.IsReady())
	require.NoError(t, b.Init())
	require.NoError(t, b.Init())
	assert.True(t, b.IsReady())
	assert.Equal(t, []string{"core", "gl"}, order)
}

func TestBootstrapFailure(t *testing.T) {
	boom := errors.New("missing library")
	calls := 0
	b := NewBootstrap(nil,
		Step{"core", func() error { calls++; return boom }},
		Step{"gl", func() error { t.Fatal("step after failure ran"); return nil }},
	)
	assert.ErrorIs(t, b.Init(), boom)
	assert.ErrorIs(t, b.Init(), boom)
	assert.Equal(t, 1, calls)
	assert.False(t, b.IsReady())

	tab := NewResourceTable(b, nil)
	_, err := tab.Acquire("volume")
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestResourceTable(t *testing.T) {
	b := NewBootstrap(nil)
	tab := NewResourceTable(b, nil)
	_, err := tab.Acquire("volume")
	assert.ErrorIs(t, err, ErrNotReady)

	require.NoError(t, b.Init())
	h1, err := tab.Acquire("volume")
	require.NoError(t, err)
	h2, err := tab.Acquire("volume")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
	assert.Equal(t, 2, tab.Live())

	require.NoError(t, tab.Select(h1, GPU))
	m, ok := tab.Mapper(h1)
	assert.True(t, ok)
	assert.Equal(t, GPU, m)

	assert.True(t, tab.Release(h1))
	assert.False(t, tab.Release(h1))
	assert.ErrorIs(t, tab.Select(h1, Smart), ErrUnknownHandle)
	assert.Equal(t, 1, tab.Live())

	assert.Equal(t, 1, tab.Close())
	assert.Equal(t, 0, tab.Live())
}
