package app

import (
	"errors"
	"math"
	"time"

	"github.com/roman-kulish/rf-sweep/internal/storage"
)

// ErrNoSpectra is returned when none of the sweeps of a run kept its frames
var ErrNoSpectra = errors.New("no stored spectra")

// Marker is a detected signal, in waterfall columns
type Marker struct {
	Start, End int // region
	Peak       int // strongest bin
}

// Row is one sweep of the run
type Row struct {
	Generation int
	StartedAt  time.Time
	Powers     []*float64 // one value per column, nil where no frame covered it
	Markers    []Marker
}

// Waterfall holds a run resampled onto a fixed frequency grid: one row per
// sweep, one column per frequency slot. Overlapping steps and bins sharing
// a column keep the strongest value.
type Waterfall struct {
	RunID                      string
	FrequencyMin, FrequencyMax float64
	Width                      int
	Rows                       []Row
}

// NewWaterfall creates an empty waterfall spanning [fmin, fmax) in width columns
func NewWaterfall(runID string, fmin, fmax float64, width int) *Waterfall {
	return &Waterfall{
		RunID:        runID,
		FrequencyMin: fmin,
		FrequencyMax: fmax,
		Width:        max(width, 1),
	}
}

// Height returns the number of rows
func (w *Waterfall) Height() int {
	return len(w.Rows)
}

// ColumnWidth returns the frequency span of one column
func (w *Waterfall) ColumnWidth() float64 {
	return (w.FrequencyMax - w.FrequencyMin) / float64(w.Width)
}

// Column maps a frequency to its column, -1 when outside the waterfall
func (w *Waterfall) Column(freq float64) int {
	if freq < w.FrequencyMin || freq > w.FrequencyMax || w.FrequencyMax <= w.FrequencyMin {
		return -1
	}
	return min(int((freq-w.FrequencyMin)/w.ColumnWidth()), w.Width-1)
}

// AddSweep appends the row of one stored sweep
func (w *Waterfall) AddSweep(rec *storage.SweepRecord, steps []*storage.StepRecord, signals []*storage.SignalRecord) {
	row := Row{
		Generation: rec.Generation,
		StartedAt:  rec.StartedAt,
		Powers:     make([]*float64, w.Width),
	}

	for _, step := range steps {
		if step.Frame == nil {
			continue
		}
		for k, freq := range step.Frame.Frequencies {
			col := w.Column(freq)
			if col < 0 {
				continue
			}
			p := step.Frame.PowerDB[k]
			if row.Powers[col] == nil {
				row.Powers[col] = &p
			} else if p > *row.Powers[col] {
				*row.Powers[col] = p
			}
		}
	}

	for _, s := range signals {
		peak := w.Column(s.Frequency)
		if peak < 0 {
			continue
		}
		start, end := w.Column(s.RegionStart), w.Column(s.RegionEnd)
		if start < 0 {
			start = peak
		}
		if end < 0 {
			end = peak
		}
		row.Markers = append(row.Markers, Marker{Start: start, End: end, Peak: peak})
	}

	w.Rows = append(w.Rows, row)
}

// Powers returns every column value of every row
func (w *Waterfall) Powers() []float64 {
	var powers []float64
	for _, row := range w.Rows {
		for _, p := range row.Powers {
			if p != nil {
				powers = append(powers, *p)
			}
		}
	}
	return powers
}

// TimeRange returns the start of the first and of the last sweep
func (w *Waterfall) TimeRange() (first, last time.Time) {
	for _, row := range w.Rows {
		if first.IsZero() || row.StartedAt.Before(first) {
			first = row.StartedAt
		}
		if last.IsZero() || row.StartedAt.After(last) {
			last = row.StartedAt
		}
	}
	return first, last
}

// Extent returns the frequency span covered by the captures of sweeps and the
// finest bin width among them
func Extent(sweeps []*storage.SweepRecord) (fmin, fmax, binWidth float64) {
	fmin, fmax, binWidth = math.MaxFloat64, 0, math.MaxFloat64
	for _, rec := range sweeps {
		half := rec.SampleRate / 2
		fmin = min(fmin, rec.StartFrequency-half)
		fmax = max(fmax, rec.EndFrequency+half)
		if rec.FFTSize > 0 {
			binWidth = min(binWidth, rec.SampleRate/float64(rec.FFTSize))
		}
	}
	return max(fmin, 0), fmax, binWidth
}
