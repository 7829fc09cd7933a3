package axis

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadExtentAndIndex(t *testing.T) {
	_, err := New("X", 0, 0)
	assert.ErrorIs(t, err, ErrBadExtent)

	_, err = New("X", 4, -1)
	assert.ErrorIs(t, err, ErrBadIndex)

	a, err := New("X", 4, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, a.Displayed())
	assert.Equal(t, 0, a.Manipulated())
	assert.Equal(t, 2, a.Index())
}

func TestSetDisplayedSortsAndDeduplicates(t *testing.T) {
	a := MustNew("Time", 10, 3)
	require.NoError(t, a.SetDisplayed([]int{7, 2, 7, 5}))
	assert.Equal(t, []int{2, 5, 7}, a.Displayed())
	assert.Equal(t, []string{"2", "5", "7"}, a.DisplayedStrings())
	assert.Equal(t, 2, a.Manipulated())
	assert.True(t, a.IsDisplayedIndex(5))
	assert.False(t, a.IsDisplayedIndex(4))
}

func TestSetDisplayedRejectsWithoutChange(t *testing.T) {
	a := MustNew("Time", 5, 3)
	require.NoError(t, a.SetDisplayed([]int{1, 3}))
	require.NoError(t, a.SetManipulated(3))

	assert.ErrorIs(t, a.SetDisplayed(nil), ErrEmptySubset)
	assert.ErrorIs(t, a.SetDisplayed([]int{0, 5}), ErrOutOfRange)
	assert.ErrorIs(t, a.SetDisplayed([]int{-1}), ErrOutOfRange)

	assert.Equal(t, []int{1, 3}, a.Displayed())
	assert.Equal(t, 3, a.Manipulated())
}

func TestSetManipulated(t *testing.T) {
	a := MustNew("Z", 6, 2)
	require.NoError(t, a.SetDisplayedRange(2, 4))

	require.NoError(t, a.SetManipulated(4))
	assert.Equal(t, 4, a.Manipulated())

	err := a.SetManipulated(5)
	assert.True(t, errors.Is(err, ErrNotInSubset))
	assert.Equal(t, 4, a.Manipulated())
}

func TestManipulatedStaysDisplayed(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a := MustNew("Time", 20, 0)
	for i := 0; i < 500; i++ {
		n := 1 + rng.Intn(6)
		vals := make([]int, n)
		for j := range vals {
			vals[j] = rng.Intn(20)
		}
		require.NoError(t, a.SetDisplayed(vals))
		if !a.IsDisplayedIndex(a.Manipulated()) {
			t.Fatalf("iteration %d: manipulated %d not in %v", i, a.Manipulated(), a.Displayed())
		}
		d := a.Displayed()
		_ = a.SetManipulated(d[rng.Intn(len(d))])
	}
}

func TestCloneIsDeep(t *testing.T) {
	a := MustNew("C", 4, 1)
	require.NoError(t, a.SetDisplayed([]int{0, 1}))
	c := a.Clone()
	require.NoError(t, a.SetDisplayed([]int{3}))
	assert.Equal(t, []int{0, 1}, c.Displayed())
	assert.Equal(t, 0, c.Manipulated())
}

func TestDisplayedReturnsCopy(t *testing.T) {
	a := MustNew("C", 4, 1)
	d := a.Displayed()
	d[0] = 3
	assert.Equal(t, 0, a.First())
}
