package source

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/kshedden/gonpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(t *testing.T, dims ...Dim) *ArrayImage {
	t.Helper()
	n := 1
	for _, d := range dims {
		n *= d.Extent
	}
	data := make([]float64, n)
	for i := range data {
		data[i] = float64(i)
	}
	img, err := NewArrayImage(data, dims)
	require.NoError(t, err)
	return img
}

func TestArrayImageLayout(t *testing.T) {
	img := ramp(t, Dim{"X", 3, 1}, Dim{"Y", 2, 1}, Dim{"T", 2, 1})
	assert.Equal(t, 0.0, img.At([]int{0, 0, 0}))
	assert.Equal(t, 1.0, img.At([]int{1, 0, 0}))
	assert.Equal(t, 3.0, img.At([]int{0, 1, 0}))
	assert.Equal(t, 6.0, img.At([]int{0, 0, 1}))

	lo, hi := img.ValueRange()
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 11.0, hi)

	dst := make([]float64, 3)
	img.ReadRun([]int{0, 1, 1}, dst)
	assert.Equal(t, []float64{9, 10, 11}, dst)
}

func TestArrayImageIsFlat(t *testing.T) {
	img := ramp(t, Dim{"X", 3, 1}, Dim{"Y", 2, 1}, Dim{"Z", 2, 1}, Dim{"T", 2, 1})
	assert.True(t, img.IsFlat([]int{0, 1, 2}))
	assert.True(t, img.IsFlat([]int{0, 1}))
	assert.False(t, img.IsFlat([]int{1, 0, 2}))
	assert.False(t, img.IsFlat([]int{0, 1, 3}))
	assert.False(t, img.IsFlat([]int{0, 1, 7}))
}

func TestNewArrayImageShapeMismatch(t *testing.T) {
	_, err := NewArrayImage(make([]float64, 5), []Dim{{"X", 2, 1}, {"Y", 2, 1}})
	assert.ErrorIs(t, err, ErrShape)
	_, err = NewArrayImage(nil, nil)
	assert.ErrorIs(t, err, ErrShape)
}

func TestAxes(t *testing.T) {
	img := ramp(t, Dim{"X", 3, 1}, Dim{"Y", 2, 1}, Dim{"Time", 4, 1})
	axes, err := Axes(img)
	require.NoError(t, err)
	require.Len(t, axes, 3)
	assert.Equal(t, "Time", axes[2].Label())
	assert.Equal(t, 4, axes[2].Extent())
	assert.Equal(t, 2, axes[2].Index())
	assert.Equal(t, "X=3,Y=2,Time=4", Describe(img))
}

func TestLabelsFor(t *testing.T) {
	assert.Equal(t, []string{"X", "Y", "Z", "Channel", "Time", "dim5"}, labelsFor(6, nil))
	assert.Equal(t, []string{"A", "Y", "Z"}, labelsFor(3, []string{"A", " "}))
	assert.Equal(t, []string{"A", "A1"}, labelsFor(2, []string{"A", "A"}))
}

func TestParseSynthetic(t *testing.T) {
	img, err := ParseSynthetic("synthetic:X=8,Y=8,Z=4:2.5,Time=3")
	require.NoError(t, err)
	require.Equal(t, 4, img.NumDims())
	assert.Equal(t, Dim{"Z", 4, 2.5}, img.Dim(2))
	assert.Equal(t, Dim{"Time", 3, 1}, img.Dim(3))

	centre := img.At([]int{4, 4, 2, 0})
	assert.Greater(t, centre, 0.0)
	assert.InDelta(t, 3*centre, img.At([]int{4, 4, 2, 2}), 1e-9)
	assert.Equal(t, 0.0, img.At([]int{0, 0, 0, 0}))

	_, err = ParseSynthetic("X")
	assert.Error(t, err)
	_, err = ParseSynthetic("X=a")
	assert.Error(t, err)
	_, err = ParseSynthetic("")
	assert.ErrorIs(t, err, ErrShape)
}

func TestNPYRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping file I/O in short mode")
	}
	img := ramp(t, Dim{"X", 4, 1}, Dim{"Y", 3, 1}, Dim{"Z", 2, 1})
	path := filepath.Join(t.TempDir(), "ramp.npy")
	require.NoError(t, SaveNPY(path, img))

	got, err := Open(path, []string{"X", "Y", "Z"})
	require.NoError(t, err)
	require.Equal(t, 3, got.NumDims())
	for d := 0; d < 3; d++ {
		assert.Equal(t, img.Dim(d).Extent, got.Dim(d).Extent)
		assert.True(t, math.IsNaN(got.Dim(d).Scale))
	}
	assert.Equal(t, img.Data(), got.Data())
	assert.Equal(t, img.At([]int{3, 2, 1}), got.At([]int{3, 2, 1}))
}

func TestNPYIntegerDtypes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping file I/O in short mode")
	}
	dir := t.TempDir()

	u2 := make([]uint16, 2*3*4)
	for i := range u2 {
		u2[i] = uint16(1000 * i)
	}
	path := filepath.Join(dir, "u2.npy")
	w, err := gonpy.NewFileWriter(path)
	require.NoError(t, err)
	w.Shape = []int{2, 3, 4}
	require.NoError(t, w.WriteUint16(u2))

	got, err := LoadNPY(path, nil)
	require.NoError(t, err)
	require.Equal(t, 3, got.NumDims())
	assert.Equal(t, []int{4, 3, 2}, []int{got.Dim(0).Extent, got.Dim(1).Extent, got.Dim(2).Extent})
	// row-major [a][b][c] is stored at position (c, b, a)
	assert.Equal(t, float64(u2[1*12+2*4+3]), got.At([]int{3, 2, 1}))
	lo, hi := got.ValueRange()
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 65535.0, hi)

	i2 := []int16{-300, -2, 0, 7, 300, 32767, -32768, 1}
	path = filepath.Join(dir, "i2.npy")
	w, err = gonpy.NewFileWriter(path)
	require.NoError(t, err)
	w.Shape = []int{2, 2, 2}
	require.NoError(t, w.WriteInt16(i2))

	got, err = LoadNPY(path, nil)
	require.NoError(t, err)
	assert.Equal(t, -32768.0, got.Data()[6])
	lo, hi = got.ValueRange()
	assert.Equal(t, float64(math.MinInt16), lo)
	assert.Equal(t, float64(math.MaxInt16), hi)
}

func TestHDF5RoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping file I/O in short mode")
	}
	img := ramp(t, Dim{"X", 4, 0.5}, Dim{"Y", 3, 0.5}, Dim{"Z", 2, 2}, Dim{"Time", 2, 1})
	path := filepath.Join(t.TempDir(), "ramp.h5")
	require.NoError(t, SaveHDF5(path, "volume", img))

	got, err := Open(path+"#/volume", nil)
	require.NoError(t, err)
	require.Equal(t, 4, got.NumDims())
	assert.Equal(t, img.Dims(), got.Dims())
	assert.Equal(t, img.Data(), got.Data())
}

func TestOpenUnsupported(t *testing.T) {
	_, err := Open("scan.tiff", nil)
	assert.Error(t, err)
}
