package sweep

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/roman-kulish/rf-sweep/internal/spectrum"
)

const (
	DefaultSampleRate      = 2e6
	DefaultGain            = 40
	DefaultThresholdDB     = 10
	DefaultCaptureDuration = 100 * time.Millisecond

	// DefaultStepFraction sets the default step to 80% of the sample rate,
	// so adjacent captures overlap by 20%
	DefaultStepFraction = 0.8

	// DefaultAbortAfterUnavailable is the number of consecutive unavailable
	// captures, with no successful step yet, that aborts a sweep
	DefaultAbortAfterUnavailable = 3

	// MaxSteps bounds the number of center frequencies a single range may visit
	MaxSteps = 100_000
)

// ErrFatalConfiguration is returned before any capture when the sweep cannot run
var ErrFatalConfiguration = errors.New("fatal sweep configuration")

// Config holds the per-controller acquisition and detection parameters
type Config struct {
	SampleRate      float64            // Hz
	FFTSize         int                // bins per frame
	Gain            int                // dB
	ThresholdDB     float64            // detection margin above the noise floor
	CaptureDuration time.Duration      // acquisition time per step
	Adjacency       spectrum.Adjacency // region merging policy
	MaxSignals      int                // per-frame detection cap

	// AbortAfterUnavailable aborts a sweep after this many consecutive
	// ErrCaptureUnavailable steps, as long as no step has succeeded.
	// Zero disables the check.
	AbortAfterUnavailable int
}

// DefaultConfig returns the configuration used by the scanning tools:
// 2 MHz sample rate, 2048-bin FFT, 40 dB gain, 10 dB threshold and 100 ms captures
func DefaultConfig() Config {
	return Config{
		SampleRate:            DefaultSampleRate,
		FFTSize:               spectrum.DefaultFFTSize,
		Gain:                  DefaultGain,
		ThresholdDB:           DefaultThresholdDB,
		CaptureDuration:       DefaultCaptureDuration,
		Adjacency:             spectrum.Strict,
		MaxSignals:            spectrum.DefaultMaxSignals,
		AbortAfterUnavailable: DefaultAbortAfterUnavailable,
	}
}

// NumSamples returns the number of complex samples acquired per step
func (c Config) NumSamples() int {
	return int(c.SampleRate * c.CaptureDuration.Seconds())
}

// Validate checks the configuration can produce at least one frame per capture
func (c Config) Validate() error {
	if c.SampleRate <= 0 || math.IsNaN(c.SampleRate) || math.IsInf(c.SampleRate, 0) {
		return fmt.Errorf("%w: sample rate must be positive: %g", ErrFatalConfiguration, c.SampleRate)
	}
	if c.FFTSize <= 0 {
		return fmt.Errorf("%w: FFT size must be positive: %d", ErrFatalConfiguration, c.FFTSize)
	}
	if c.CaptureDuration <= 0 {
		return fmt.Errorf("%w: capture duration must be positive: %s", ErrFatalConfiguration, c.CaptureDuration)
	}
	if n := c.NumSamples(); n < c.FFTSize {
		return fmt.Errorf("%w: %s at %g Hz yields %d samples, fewer than the FFT size %d",
			ErrFatalConfiguration, c.CaptureDuration, c.SampleRate, n, c.FFTSize)
	}
	if c.MaxSignals < 0 {
		return fmt.Errorf("%w: max signals must not be negative: %d", ErrFatalConfiguration, c.MaxSignals)
	}
	if c.AbortAfterUnavailable < 0 {
		return fmt.Errorf("%w: abort threshold must not be negative: %d", ErrFatalConfiguration, c.AbortAfterUnavailable)
	}
	return nil
}

// DefaultStep returns the step used when a Range leaves it unset
func (c Config) DefaultStep() float64 {
	return c.SampleRate * DefaultStepFraction
}

// Range is an inclusive span of center frequencies, in Hz.
// A zero Step is replaced by Config.DefaultStep.
type Range struct {
	Start float64
	End   float64
	Step  float64
}

// Validate checks the range before any capture is attempted
func (r Range) Validate() error {
	if !isFinite(r.Start) || !isFinite(r.End) || !isFinite(r.Step) {
		return fmt.Errorf("%w: range must be finite: %g to %g step %g", ErrFatalConfiguration, r.Start, r.End, r.Step)
	}
	if r.Start <= 0 {
		return fmt.Errorf("%w: start frequency must be positive: %g", ErrFatalConfiguration, r.Start)
	}
	if r.End <= r.Start {
		return fmt.Errorf("%w: end frequency must be greater than start: %g <= %g", ErrFatalConfiguration, r.End, r.Start)
	}
	if r.Step < 0 {
		return fmt.Errorf("%w: step must be positive: %g", ErrFatalConfiguration, r.Step)
	}
	if r.Step > 0 && (r.End-r.Start)/r.Step > MaxSteps {
		return fmt.Errorf("%w: range needs more than %d steps: %g to %g step %g",
			ErrFatalConfiguration, MaxSteps, r.Start, r.End, r.Step)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// EstimatedSteps returns floor((End-Start)/Step). It is used for progress
// reporting only: the inclusive loop visits one more frequency whenever
// Start + EstimatedSteps*Step is still within the range, which is always.
func (r Range) EstimatedSteps() int {
	if r.Step <= 0 {
		return 0
	}
	n := (r.End - r.Start) / r.Step
	if !isFinite(n) || n < 0 || n > MaxSteps {
		return 0
	}
	return int(n)
}

// Frequencies returns every center frequency the sweep visits, in order.
// Each value is computed from its index so no rounding error accumulates.
func (r Range) Frequencies() []float64 {
	if r.Step <= 0 || r.End < r.Start {
		return nil
	}
	if n := (r.End - r.Start) / r.Step; !isFinite(n) || n > MaxSteps {
		return nil
	}

	freqs := make([]float64, 0, r.EstimatedSteps()+1)
	for i := 0; ; i++ {
		f := r.Start + float64(i)*r.Step
		if f > r.End {
			break
		}
		freqs = append(freqs, f)
	}
	return freqs
}
