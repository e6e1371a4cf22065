package gpz

import (
	"fmt"
	"math"
)

// normalizedBinWidth is the histogram bin width backing the
// "normalized" weighting scheme.
const normalizedBinWidth = 0.1

// Omega computes cost-sensitive sample weights from the target
// redshifts. Methods:
//
//	normal      unit weight per row
//	balanced    inverse histogram-bin frequency with the given bin
//	            width, rescaled to mean 1
//	normalized  balanced weights at a fixed 0.1 bin width, rescaled so
//	            the largest weight is 1
func Omega(targets []float64, method string, binWidth float64) ([]float64, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("gpz: omega on empty targets")
	}
	switch method {
	case "normal":
		return ones(len(targets)), nil
	case "balanced":
		if binWidth <= 0 {
			return nil, fmt.Errorf("gpz: omega balanced needs a positive bin width, got %v", binWidth)
		}
		w := inverseBinFrequency(targets, binWidth)
		rescale(w, meanOf(w))
		return w, nil
	case "normalized":
		w := inverseBinFrequency(targets, normalizedBinWidth)
		rescale(w, maxOf(w))
		return w, nil
	default:
		return nil, fmt.Errorf("gpz: unknown omega method %q", method)
	}
}

// inverseBinFrequency weights each target by the reciprocal of its
// histogram bin count. NaN targets get unit weight.
func inverseBinFrequency(targets []float64, binWidth float64) []float64 {
	counts := make(map[int]int, len(targets))
	bins := make([]int, len(targets))
	for i, z := range targets {
		if math.IsNaN(z) {
			bins[i] = math.MinInt
			continue
		}
		b := int(math.Floor(z / binWidth))
		bins[i] = b
		counts[b]++
	}
	w := make([]float64, len(targets))
	for i, b := range bins {
		if b == math.MinInt {
			w[i] = 1
			continue
		}
		w[i] = 1 / float64(counts[b])
	}
	return w
}

func rescale(w []float64, denom float64) {
	if denom == 0 {
		return
	}
	for i := range w {
		w[i] /= denom
	}
}

func meanOf(w []float64) float64 {
	var sum float64
	for _, v := range w {
		sum += v
	}
	return sum / float64(len(w))
}

func maxOf(w []float64) float64 {
	max := w[0]
	for _, v := range w[1:] {
		if v > max {
			max = v
		}
	}
	return max
}
