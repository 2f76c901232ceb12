package app

import (
	"math"
	"testing"
)

func TestNewPowerBounds(t *testing.T) {
	ramp := make([]float64, 100)
	for i := range ramp {
		ramp[i] = float64(i)
	}
	flat := make([]float64, 50)
	for i := range flat {
		flat[i] = -40
	}

	testCases := []struct {
		name     string
		powers   []float64
		min, max float64
		mean     float64
	}{
		{"ramp", ramp, -5, 103, 49.5},
		{"flat widened to 30 dB", flat, -58, -22, -40},
		{"too few samples", []float64{1, 2, 3}, defaultMinPower, defaultMaxPower, (defaultMinPower + defaultMaxPower) / 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewPowerBounds(tc.powers)
			if math.Abs(b.Min-tc.min) > 1.5 || math.Abs(b.Max-tc.max) > 1.5 {
				t.Errorf("bounds = %.2f - %.2f, want %.2f - %.2f", b.Min, b.Max, tc.min, tc.max)
			}
			if math.Abs(b.Mean-tc.mean) > 1e-9 {
				t.Errorf("mean = %.2f, want %.2f", b.Mean, tc.mean)
			}
		})
	}
}

func TestNewPowerBoundsKeepsInput(t *testing.T) {
	powers := make([]float64, 30)
	for i := range powers {
		powers[i] = float64(len(powers) - i)
	}

	NewPowerBounds(powers)

	if powers[0] != 30 {
		t.Error("input should not be sorted in place")
	}
}

func TestPowerBoundsOverride(t *testing.T) {
	lo, hi := -90.0, -10.0
	b := PowerBounds{Min: -50, Max: 0}

	if got := b.Override(&lo, nil); got.Min != -90 || got.Max != 0 {
		t.Errorf("unexpected bounds: %+v", got)
	}
	if got := b.Override(nil, &hi); got.Min != -50 || got.Max != -10 {
		t.Errorf("unexpected bounds: %+v", got)
	}
}
