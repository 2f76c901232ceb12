package storage

import (
	"time"

	"github.com/roman-kulish/rf-sweep/internal/spectrum"
)

// SweepRecord is one stored sweep: a single pass over a frequency range.
// Monitor runs store one record per generation under a shared RunID.
type SweepRecord struct {
	ID         int64
	RunID      string
	Generation int
	Device     string
	DeviceID   string

	StartFrequency float64
	EndFrequency   float64
	Step           float64
	SampleRate     float64
	FFTSize        int
	Gain           int
	ThresholdDB    float64

	StartedAt  time.Time
	FinishedAt *time.Time // nil while the sweep is running or when it was never finished

	Attempted int
	Succeeded int
	Failed    int
	Signals   int
}

// StepRecord is one stored sweep step. Frame is nil for failed steps
// and for stores that do not keep frames.
type StepRecord struct {
	ID              int64
	SweepID         int64
	Step            int
	CenterFrequency float64
	Timestamp       time.Time
	NoiseFloorDB    *float64
	Error           *string
	Frame           *spectrum.Frame
}

// SignalRecord is one stored detection
type SignalRecord struct {
	ID              int64
	SweepID         int64
	Step            int
	CenterFrequency float64
	Timestamp       time.Time

	spectrum.Signal

	Band        string
	Decoder     string
	Description string
	Type        string
}
