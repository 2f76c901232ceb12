package sweep

import (
	"errors"
	"time"

	"github.com/roman-kulish/rf-sweep/internal/band"
	"github.com/roman-kulish/rf-sweep/internal/sdr"
	"github.com/roman-kulish/rf-sweep/internal/spectrum"
)

// Detection is a Signal annotated with its route and type label
type Detection struct {
	spectrum.Signal

	Step            int       // index of the step that produced the signal
	CenterFrequency float64   // capture center of that step
	Timestamp       time.Time // capture completion time
	Band            string
	Decoder         string
	Description     string
	Type            string // advisory label, never used for routing
}

// Result is the outcome of one sweep step. Frame is nil and Err is set
// when the step failed; a Result is not modified once returned.
type Result struct {
	Step            int
	CenterFrequency float64
	Timestamp       time.Time
	Frame           *spectrum.Frame
	Detections      []Detection
	Err             error
}

// Failed reports whether the step yielded no frame
func (r *Result) Failed() bool {
	return r.Err != nil
}

// Summary tallies a completed sweep
type Summary struct {
	Attempted    int // steps started
	Succeeded    int // steps that yielded a frame
	Failed       int
	Timeouts     int
	Unavailable  int
	Insufficient int
	Signals      int
	Elapsed      time.Duration
}

// Summarize counts results by outcome
func Summarize(results []Result, elapsed time.Duration) Summary {
	s := Summary{Attempted: len(results), Elapsed: elapsed}

	for i := range results {
		r := &results[i]
		if !r.Failed() {
			s.Succeeded++
			s.Signals += len(r.Detections)
			continue
		}

		s.Failed++
		switch {
		case errors.Is(r.Err, sdr.ErrCaptureTimeout):
			s.Timeouts++
		case errors.Is(r.Err, sdr.ErrCaptureUnavailable):
			s.Unavailable++
		case errors.Is(r.Err, spectrum.ErrInsufficientSamples):
			s.Insufficient++
		}
	}

	return s
}

// Detections flattens the detections of every step in step order
func Detections(results []Result) []Detection {
	var all []Detection
	for i := range results {
		all = append(all, results[i].Detections...)
	}
	return all
}

func annotate(step int, center float64, ts time.Time, signals []spectrum.Signal, router Router) []Detection {
	detections := make([]Detection, len(signals))
	for i, s := range signals {
		route := router.Route(s.Frequency)
		detections[i] = Detection{
			Signal:          s,
			Step:            step,
			CenterFrequency: center,
			Timestamp:       ts,
			Band:            route.Band,
			Decoder:         route.Decoder,
			Description:     route.Description,
			Type:            band.EstimateSignalType(s.Frequency, s.Bandwidth),
		}
	}
	return detections
}
