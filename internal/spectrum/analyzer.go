package spectrum

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// DefaultFFTSize is the number of bins per frame unless configured otherwise
	DefaultFFTSize = 2048

	// powerFloor keeps exact-zero bins away from -Inf after the log conversion
	powerFloor = 1e-10
)

// ErrInsufficientSamples is returned when a buffer holds fewer samples than one FFT frame
var ErrInsufficientSamples = errors.New("insufficient samples")

// Analyzer converts sample buffers into centered power spectra.
// An Analyzer reuses internal buffers and must not be shared between goroutines.
type Analyzer struct {
	fftSize int
	fft     *fourier.CmplxFFT
	seq     []complex128
	coeff   []complex128
}

// NewAnalyzer creates an Analyzer producing frames of fftSize bins
func NewAnalyzer(fftSize int) (*Analyzer, error) {
	if fftSize <= 0 {
		return nil, fmt.Errorf("spectrum.Analyzer: fft size must be positive: %d given", fftSize)
	}

	return &Analyzer{
		fftSize: fftSize,
		fft:     fourier.NewCmplxFFT(fftSize),
		seq:     make([]complex128, fftSize),
		coeff:   make([]complex128, fftSize),
	}, nil
}

// FFTSize returns the number of bins in every produced frame
func (a *Analyzer) FFTSize() int {
	return a.fftSize
}

// Analyze computes the power spectrum of the first FFTSize samples of buf.
// Samples past the first FFTSize are discarded, not averaged.
func (a *Analyzer) Analyze(buf *SampleBuffer) (*Frame, error) {
	if buf == nil || buf.Len() < a.fftSize {
		var n int
		if buf != nil {
			n = buf.Len()
		}
		return nil, fmt.Errorf("%w: got %d, need %d", ErrInsufficientSamples, n, a.fftSize)
	}
	if buf.SampleRate <= 0 {
		return nil, fmt.Errorf("spectrum.Analyzer: sample rate must be positive: %g given", buf.SampleRate)
	}

	for i, s := range buf.Samples[:a.fftSize] {
		a.seq[i] = complex128(s)
	}
	a.fft.Coefficients(a.coeff, a.seq)

	n := a.fftSize
	half := n / 2
	binWidth := buf.SampleRate / float64(n)

	frame := Frame{
		Frequencies:     make([]float64, n),
		PowerDB:         make([]float64, n),
		CenterFrequency: buf.CenterFrequency,
		SampleRate:      buf.SampleRate,
	}

	// shifted index k holds coefficient (k + n - n/2) mod n, zero frequency lands at n/2
	for k := 0; k < n; k++ {
		c := a.coeff[(k+n-half)%n]
		p := real(c)*real(c) + imag(c)*imag(c)

		frame.PowerDB[k] = 10 * math.Log10(p+powerFloor)
		frame.Frequencies[k] = buf.CenterFrequency + float64(k-half)*binWidth
	}

	frame.NoiseFloorDB = Median(frame.PowerDB)

	return &frame, nil
}

// Median returns the 50th percentile of values. For an even count it is the
// mean of the two middle values. The input slice is left untouched.
func Median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
