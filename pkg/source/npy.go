package source

import (
	"fmt"
	"math"

	"github.com/kshedden/gonpy"
)

// integerRanges maps npy integer dtypes onto their natural value range.
var integerRanges = map[string][2]float64{
	"i1": {math.MinInt8, math.MaxInt8},
	"u1": {0, math.MaxUint8},
	"i2": {math.MinInt16, math.MaxInt16},
	"u2": {0, math.MaxUint16},
}

// LoadNPY reads a NumPy array file. Row-major arrays have their shape
// reversed so that dimension 0 is the fastest varying one; labels name the
// resulting dimensions in that order. Scales are unknown and read as NaN.
func LoadNPY(path string, labels []string) (*ArrayImage, error) {
	r, err := gonpy.NewFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("error opening npy file: %w", err)
	}
	data, err := readNPY(r)
	if err != nil {
		return nil, fmt.Errorf("error reading npy data: %w", err)
	}

	shape := append([]int(nil), r.Shape...)
	if !r.ColumnMajor {
		for i, j := 0, len(shape)-1; i < j; i, j = i+1, j-1 {
			shape[i], shape[j] = shape[j], shape[i]
		}
	}

	names := labelsFor(len(shape), labels)
	dims := make([]Dim, len(shape))
	for i, n := range shape {
		dims[i] = Dim{Label: names[i], Extent: n, Scale: math.NaN()}
	}
	img, err := NewArrayImage(data, dims)
	if err != nil {
		return nil, err
	}
	if rng, ok := integerRanges[r.Dtype]; ok {
		img.SetValueRange(rng[0], rng[1])
	}
	return img, nil
}

type number interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

func widen[T number](v []T, err error) ([]float64, error) {
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out, nil
}

// readNPY reads the samples of any real dtype as float64.
func readNPY(r *gonpy.NpyReader) ([]float64, error) {
	switch r.Dtype {
	case "f8":
		return r.GetFloat64()
	case "f4":
		return widen(r.GetFloat32())
	case "i1":
		return widen(r.GetInt8())
	case "u1":
		return widen(r.GetUint8())
	case "i2":
		return widen(r.GetInt16())
	case "u2":
		return widen(r.GetUint16())
	case "i4":
		return widen(r.GetInt32())
	case "u4":
		return widen(r.GetUint32())
	case "i8":
		return widen(r.GetInt64())
	case "u8":
		return widen(r.GetUint64())
	}
	return nil, fmt.Errorf("unsupported dtype %q", r.Dtype)
}

// SaveNPY writes img as a column-major float64 array.
func SaveNPY(path string, img *ArrayImage) error {
	w, err := gonpy.NewFileWriter(path)
	if err != nil {
		return fmt.Errorf("error creating npy file: %w", err)
	}
	shape := make([]int, img.NumDims())
	for i := range shape {
		shape[i] = img.Dim(i).Extent
	}
	w.Shape = shape
	w.ColumnMajor = true
	if err := w.WriteFloat64(img.Data()); err != nil {
		return fmt.Errorf("error writing npy data: %w", err)
	}
	return nil
}
