package spectrum

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

const (
	// DefaultMaxSignals caps the number of signals reported per frame
	DefaultMaxSignals = 10

	// DefaultMergeGap is the gap, in bins, bridged by the gap-tolerant policy
	DefaultMergeGap = 3
)

// Adjacency decides whether an above-threshold bin joins the current region.
// MaxGap is the largest index distance from the previous member that still
// extends the region, so MaxGap 1 means strict contiguity.
type Adjacency struct {
	MaxGap int
}

// Strict closes a region on the first bin that is not above threshold
var Strict = Adjacency{MaxGap: 1}

// GapTolerant folds bins within gap indices of the previous member into the same region
func GapTolerant(gap int) Adjacency {
	return Adjacency{MaxGap: max(gap, 1)}
}

// ParseAdjacency builds an Adjacency from its configuration name
func ParseAdjacency(name string, gap int) (Adjacency, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "strict":
		return Strict, nil
	case "gap-tolerant", "gap_tolerant", "gaptolerant":
		if gap <= 0 {
			gap = DefaultMergeGap
		}
		return GapTolerant(gap), nil
	default:
		return Adjacency{}, fmt.Errorf("spectrum.Adjacency: unknown policy: %s", name)
	}
}

func (a Adjacency) joins(last, idx int) bool {
	return idx-last <= max(a.MaxGap, 1)
}

func (a Adjacency) String() string {
	if a.MaxGap <= 1 {
		return "strict"
	}
	return "gap-tolerant(" + strconv.Itoa(a.MaxGap) + ")"
}

// Extractor finds contiguous above-threshold regions in a Frame.
// The zero value of Adjacency behaves as Strict, and a non-positive
// MaxSignals falls back to DefaultMaxSignals.
type Extractor struct {
	ThresholdDB float64   // Detection threshold above the frame noise floor, in dB
	Adjacency   Adjacency // Region merging policy
	MaxSignals  int       // Upper bound on reported signals
}

type region struct {
	first, last, peak int
}

// Extract returns the signals found in frame, ordered by frequency.
// It never fails; a frame without detections yields an empty slice.
// When more regions than MaxSignals are found the strongest ones are kept.
func (e Extractor) Extract(frame *Frame) []Signal {
	if frame == nil || frame.Len() == 0 {
		return []Signal{}
	}

	limit := frame.NoiseFloorDB + e.ThresholdDB

	var regions []region
	current := region{first: -1}

	for i, p := range frame.PowerDB {
		if !(p > limit) {
			continue
		}

		if current.first >= 0 && e.Adjacency.joins(current.last, i) {
			current.last = i
			if p > frame.PowerDB[current.peak] {
				current.peak = i // strict comparison keeps the first occurrence on ties
			}
			continue
		}

		if current.first >= 0 {
			regions = append(regions, current)
		}
		current = region{first: i, last: i, peak: i}
	}
	if current.first >= 0 {
		regions = append(regions, current)
	}

	maxSignals := e.MaxSignals
	if maxSignals <= 0 {
		maxSignals = DefaultMaxSignals
	}

	if len(regions) > maxSignals {
		slices.SortStableFunc(regions, func(a, b region) int {
			return cmp.Compare(frame.PowerDB[b.peak], frame.PowerDB[a.peak])
		})
		regions = regions[:maxSignals]
		slices.SortFunc(regions, func(a, b region) int {
			return cmp.Compare(a.first, b.first)
		})
	}

	binWidth := frame.BinWidth()
	signals := make([]Signal, 0, len(regions))
	for _, r := range regions {
		signals = append(signals, Signal{
			Frequency:   frame.Frequencies[r.peak],
			PowerDB:     frame.PowerDB[r.peak],
			Bandwidth:   float64(r.last-r.first+1) * binWidth,
			RegionStart: frame.Frequencies[r.first],
			RegionEnd:   frame.Frequencies[r.last],
		})
	}

	return signals
}
