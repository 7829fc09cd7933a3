package volume

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"volviewer3d/internal/models"
)

// NumBins is the number of histogram bins over the sample type range.
const NumBins = 250

// Histogram counts samples in equal bins between Min and Max.
type Histogram struct {
	Counts   []float64
	Dividers []float64
	Min, Max float64
	Mean     float64
	StdDev   float64
}

// Peak returns the index and count of the fullest bin.
func (h *Histogram) Peak() (int, float64) {
	i := floats.MaxIdx(h.Counts)
	return i, h.Counts[i]
}

// Normalized returns the counts scaled so the peak is 1.
func (h *Histogram) Normalized() []float64 {
	out := append([]float64(nil), h.Counts...)
	if _, peak := h.Peak(); peak > 0 {
		floats.Scale(1/peak, out)
	}
	return out
}

// newHistogram bins the grid samples over the full int16 range. Samples are
// tallied per value first, which hands the histogram its x values in order.
func newHistogram(g *models.Grid) *Histogram {
	tally := make([]float64, 1<<16)
	for _, v := range g.Data {
		tally[int(v)-math.MinInt16]++
	}
	var xs, ws []float64
	for i, n := range tally {
		if n > 0 {
			xs = append(xs, float64(i+math.MinInt16))
			ws = append(ws, n)
		}
	}

	lo, hi := float64(math.MinInt16), float64(math.MaxInt16)+1
	h := &Histogram{
		Dividers: floats.Span(make([]float64, NumBins+1), lo, hi),
		Min:      lo,
		Max:      hi,
	}
	if len(xs) == 0 {
		h.Counts = make([]float64, NumBins)
		return h
	}
	h.Counts = stat.Histogram(nil, h.Dividers, xs, ws)
	h.Mean, h.StdDev = stat.MeanStdDev(xs, ws)
	return h
}
