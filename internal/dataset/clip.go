package dataset

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ClipStats summarises the pixels that survived sigma clipping.
type ClipStats struct {
	Mean       float64
	Median     float64
	Std        float64
	Sigma      float64
	Kept       int
	Iterations int
}

// Threshold is the floor applied by the one-sided background clip.
func (s ClipStats) Threshold() float64 {
	return s.Median + s.Sigma*s.Std
}

// SigmaClip iteratively discards values further than sigma standard
// deviations from the median and recomputes median and population standard
// deviation over the survivors. It stops once an iteration removes nothing or
// after maxIters iterations; maxIters <= 0 runs until stable. values is not
// modified. NaN values must be removed by the caller.
func SigmaClip(values []float64, sigma float64, maxIters int) ClipStats {
	stats := ClipStats{Sigma: sigma}
	if len(values) == 0 {
		return stats
	}

	kept := make([]float64, len(values))
	copy(kept, values)
	sort.Float64s(kept)

	for {
		median := sortedMedian(kept)
		_, std := stat.PopMeanStdDev(kept, nil)
		lo, hi := median-sigma*std, median+sigma*std

		// kept is sorted, so survivors are a contiguous window.
		start := sort.SearchFloat64s(kept, lo)
		end := sort.Search(len(kept), func(i int) bool { return kept[i] > hi })
		if end-start == len(kept) || end <= start {
			break
		}
		kept = kept[start:end]
		stats.Iterations++
		if maxIters > 0 && stats.Iterations >= maxIters {
			break
		}
	}

	stats.Kept = len(kept)
	stats.Median = sortedMedian(kept)
	stats.Mean, stats.Std = stat.PopMeanStdDev(kept, nil)
	return stats
}

// ClipBackground replaces NaN and infinities with 0, sigma clips the result,
// and floors every pixel below median + sigma*std to that threshold. pix is
// modified in place.
func ClipBackground(pix []float64, sigma float64, maxIters int) ClipStats {
	for i, v := range pix {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			pix[i] = 0
		}
	}
	stats := SigmaClip(pix, sigma, maxIters)
	threshold := stats.Threshold()
	for i, v := range pix {
		if v < threshold {
			pix[i] = threshold
		}
	}
	return stats
}

func sortedMedian(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return floats.Sum(sorted[n/2-1:n/2+1]) / 2
}
