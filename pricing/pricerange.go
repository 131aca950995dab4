package pricing

import "math"

// Range is a display price band derived from a business's item prices.
// It is computed on read and never stored.
type Range struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Rounding steps and dispersion thresholds below are product-tuned.
// Cheap menus snap to 10s, pricier ones to 25s; the band widens one step
// when the coefficient of variation crosses the scale's threshold.
const (
	lowMeanCutoff = 70.0

	lowStep     = 10.0
	lowCVLimit  = 0.35
	highStep    = 25.0
	highCVLimit = 0.30
)

// RangeFor estimates a display price range from observed item prices.
// The second return value is false when there is no data to estimate from.
func RangeFor(prices []float64) (Range, bool) {
	if len(prices) == 0 {
		return Range{}, false
	}

	mean, std := meanStdDev(prices)

	step, cvLimit := lowStep, lowCVLimit
	if mean >= lowMeanCutoff {
		step, cvLimit = highStep, highCVLimit
	}

	min := math.Floor(mean/step) * step
	max := min + step
	if mean > 0 && std/mean > cvLimit {
		max += step
	}

	// Tightness floor: a band whose floor is under half its ceiling looks
	// implausibly wide for a near-uniform menu. Pull min up to the nearest
	// small step at or above max/2, keeping min strictly below max.
	if min < max/2 {
		small := 5.0
		if max >= 100 {
			small = 10.0
		}
		raised := math.Ceil(max/2/small) * small
		if raised < max {
			min = raised
		}
	}

	return Range{Min: int(min), Max: int(max)}, true
}

// Overlaps reports whether the range intersects [lo, hi].
func (r Range) Overlaps(lo, hi float64) bool {
	return float64(r.Min) <= hi && float64(r.Max) >= lo
}

func meanStdDev(xs []float64) (mean, std float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	std = math.Sqrt(sq / float64(len(xs)))

	return mean, std
}
