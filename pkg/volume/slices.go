package volume

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Plane names one of the orthogonal slice planes. The value is the grid axis
// the plane moves along.
type Plane int

const (
	Sagittal Plane = iota
	Coronal
	Axial
)

func (p Plane) String() string {
	switch p {
	case Sagittal:
		return "sagittal"
	case Coronal:
		return "coronal"
	case Axial:
		return "axial"
	}
	return fmt.Sprintf("plane(%d)", int(p))
}

// resliceAxes returns the 4x4 reslice matrices of the three planes, centred
// on centre.
func resliceAxes(centre [3]float64) [3]*mat.Dense {
	cx, cy, cz := centre[0], centre[1], centre[2]
	var out [3]*mat.Dense
	out[Axial] = mat.NewDense(4, 4, []float64{
		1, 0, 0, cx,
		0, 1, 0, cy,
		0, 0, 1, cz,
		0, 0, 0, 1,
	})
	out[Coronal] = mat.NewDense(4, 4, []float64{
		1, 0, 0, cx,
		0, 0, 1, cy,
		0, -1, 0, cz,
		0, 0, 0, 1,
	})
	out[Sagittal] = mat.NewDense(4, 4, []float64{
		0, 0, -1, cx,
		1, 0, 0, cy,
		0, -1, 0, cz,
		0, 0, 0, 1,
	})
	return out
}

// moveSlice shifts the reslice axes by n slices along their normal and clamps
// the new centre to the grid bounds.
func moveSlice(axes *mat.Dense, step float64, n int, lower, upper [3]float64) {
	point := mat.NewVecDense(4, []float64{0, 0, step * float64(n), 1})
	var centre mat.VecDense
	centre.MulVec(axes, point)
	for i := 0; i < 3; i++ {
		c := math.Max(lower[i], math.Min(upper[i], centre.AtVec(i)))
		axes.Set(i, 3, c)
	}
}
