package app

import (
	"slices"

	"gonum.org/v1/gonum/stat"
)

const (
	defaultMinPower = -100.0 // dB
	defaultMaxPower = 0.0    // dB

	lowerQuantile = 0.05
	upperQuantile = 0.95

	// the 5th and 95th percentiles are meaningless below this
	minimumSampleCount = 20

	minimumRange = 30.0 // dB
)

// PowerBounds is the power range mapped onto the color scale
type PowerBounds struct {
	Min  float64 // 5th percentile, minus margin
	Max  float64 // 95th percentile, plus margin
	Mean float64
}

func defaultPowerBounds() PowerBounds {
	return PowerBounds{
		Min:  defaultMinPower,
		Max:  defaultMaxPower,
		Mean: (defaultMinPower + defaultMaxPower) / 2,
	}
}

// NewPowerBounds derives the color scale range from the empirical 5th and
// 95th percentiles of powers, widened to at least 30 dB plus a 10% margin
func NewPowerBounds(powers []float64) PowerBounds {
	if len(powers) < minimumSampleCount {
		return defaultPowerBounds()
	}

	sorted := slices.Clone(powers)
	slices.Sort(sorted)

	lo := stat.Quantile(lowerQuantile, stat.Empirical, sorted, nil)
	hi := stat.Quantile(upperQuantile, stat.Empirical, sorted, nil)

	if hi-lo < minimumRange {
		center := (hi + lo) / 2
		lo = center - minimumRange/2
		hi = center + minimumRange/2
	}

	margin := (hi - lo) / 10

	return PowerBounds{
		Min:  lo - margin,
		Max:  hi + margin,
		Mean: stat.Mean(sorted, nil),
	}
}

// Override replaces the computed limits with the manual ones that are set
func (b PowerBounds) Override(minPower, maxPower *float64) PowerBounds {
	if minPower != nil {
		b.Min = *minPower
	}
	if maxPower != nil {
		b.Max = *maxPower
	}
	return b
}
