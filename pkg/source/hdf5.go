package source

import (
	"fmt"
	"math"
	"strings"

	"github.com/scigolib/hdf5"
)

// Attribute names used on HDF5 image datasets. Extents, scales and axes are
// stored in image order, dimension 0 fastest.
const (
	AttrExtents = "extents"
	AttrScales  = "scales"
	AttrAxes    = "axes"
)

// LoadHDF5 reads the dataset named name from an HDF5 file. An empty name
// selects the first dataset. Dimensions come from the dataset's extents
// attribute, or from its chunked layout reversed to image order.
func LoadHDF5(path, name string) (*ArrayImage, error) {
	f, err := hdf5.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening hdf5 file: %w", err)
	}
	defer f.Close()

	var ds *hdf5.Dataset
	f.Walk(func(p string, obj hdf5.Object) {
		if ds != nil {
			return
		}
		d, ok := obj.(*hdf5.Dataset)
		if !ok {
			return
		}
		if name == "" || p == name || strings.HasSuffix(strings.TrimSuffix(p, "/"), "/"+strings.TrimPrefix(name, "/")) {
			ds = d
		}
	})
	if ds == nil {
		return nil, fmt.Errorf("dataset %q not found in %s", name, path)
	}

	data, err := ds.Read()
	if err != nil {
		return nil, fmt.Errorf("error reading dataset %s: %w", ds.Name(), err)
	}

	extents, err := datasetExtents(ds, len(data))
	if err != nil {
		return nil, err
	}

	var labels []string
	if v, err := ds.ReadAttribute(AttrAxes); err == nil {
		if s, ok := v.(string); ok {
			labels = strings.Split(s, ",")
		}
	}
	names := labelsFor(len(extents), labels)

	scales := make([]float64, len(extents))
	for i := range scales {
		scales[i] = math.NaN()
	}
	if v, err := ds.ReadAttribute(AttrScales); err == nil {
		for i, s := range toFloats(v) {
			if i < len(scales) {
				scales[i] = s
			}
		}
	}

	dims := make([]Dim, len(extents))
	for i, n := range extents {
		dims[i] = Dim{Label: names[i], Extent: n, Scale: scales[i]}
	}
	return NewArrayImage(data, dims)
}

func datasetExtents(ds *hdf5.Dataset, n int) ([]int, error) {
	if v, err := ds.ReadAttribute(AttrExtents); err == nil {
		if ext := toInts(v); len(ext) > 0 {
			return ext, nil
		}
	}
	if it, err := ds.ChunkIterator(); err == nil {
		dd := it.DatasetDims()
		ext := make([]int, len(dd))
		for i, d := range dd {
			ext[len(dd)-1-i] = int(d)
		}
		return ext, nil
	}
	// contiguous dataset without metadata: a 1D signal
	return []int{n}, nil
}

func toInts(v interface{}) []int {
	switch x := v.(type) {
	case int32:
		return []int{int(x)}
	case int64:
		return []int{int(x)}
	case []int32:
		out := make([]int, len(x))
		for i, e := range x {
			out[i] = int(e)
		}
		return out
	case []int64:
		out := make([]int, len(x))
		for i, e := range x {
			out[i] = int(e)
		}
		return out
	}
	return nil
}

func toFloats(v interface{}) []float64 {
	switch x := v.(type) {
	case float32:
		return []float64{float64(x)}
	case float64:
		return []float64{x}
	case []float32:
		out := make([]float64, len(x))
		for i, e := range x {
			out[i] = float64(e)
		}
		return out
	case []float64:
		return x
	}
	return nil
}

// SaveHDF5 writes img as the dataset name together with its extents, scales
// and axes attributes. The dataset shape is row-major, slowest dimension first.
func SaveHDF5(path, name string, img *ArrayImage) error {
	fw, err := hdf5.CreateForWrite(path, hdf5.CreateTruncate)
	if err != nil {
		return fmt.Errorf("error creating hdf5 file: %w", err)
	}

	n := img.NumDims()
	shape := make([]uint64, n)
	extents := make([]int64, n)
	scales := make([]float64, n)
	labels := make([]string, n)
	for i := 0; i < n; i++ {
		d := img.Dim(i)
		shape[n-1-i] = uint64(d.Extent)
		extents[i] = int64(d.Extent)
		scales[i] = d.Scale
		labels[i] = d.Label
	}

	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	dw, err := fw.CreateDataset(name, hdf5.Float64, shape)
	if err != nil {
		fw.Close()
		return fmt.Errorf("error creating dataset: %w", err)
	}
	if err := dw.Write(img.Data()); err != nil {
		fw.Close()
		return fmt.Errorf("error writing dataset: %w", err)
	}
	for _, attr := range []struct {
		name  string
		value interface{}
	}{
		{AttrExtents, extents},
		{AttrScales, scales},
		{AttrAxes, strings.Join(labels, ",")},
	} {
		if err := dw.WriteAttribute(attr.name, attr.value); err != nil {
			fw.Close()
			return fmt.Errorf("error writing attribute %s: %w", attr.name, err)
		}
	}
	return fw.Close()
}
