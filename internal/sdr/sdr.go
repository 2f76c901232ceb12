package sdr

import (
	"errors"
	"fmt"
	"time"
)

const (
	FormatCF32 SampleFormat = "cf32" // 32-bit float I then Q, little-endian
	FormatCU8  SampleFormat = "cu8"  // unsigned 8-bit I then Q, offset binary
	FormatCS8  SampleFormat = "cs8"  // signed 8-bit I then Q
)

var (
	// ErrCaptureTimeout is returned when the capture tool exceeds its time bound
	ErrCaptureTimeout = errors.New("capture timed out")

	// ErrCaptureUnavailable is returned when the capture tool cannot be started or the device is busy
	ErrCaptureUnavailable = errors.New("capture unavailable")

	// ErrMalformedOutput is returned for an unparsable line of a text report
	// or a capture file holding non-finite samples
	ErrMalformedOutput = errors.New("malformed external output")
)

// SampleFormat is the raw on-disk sample encoding produced by a capture tool
type SampleFormat string

// BytesPerSample returns the size of one complex sample
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case FormatCF32:
		return 8
	case FormatCU8, FormatCS8:
		return 2
	default:
		return 0
	}
}

func (f SampleFormat) String() string {
	return string(f)
}

// CaptureRequest describes a single bounded acquisition
type CaptureRequest struct {
	CenterFrequency float64       // Hz
	SampleRate      float64       // Hz
	Gain            int           // dB
	NumSamples      int           // Complex samples to acquire
	Duration        time.Duration // Expected acquisition time, used to bound the wait
}

// Validate checks the request before any process is started
func (r CaptureRequest) Validate() error {
	if r.CenterFrequency <= 0 {
		return fmt.Errorf("sdr.CaptureRequest: center frequency must be positive: %g", r.CenterFrequency)
	}
	if r.SampleRate <= 0 {
		return fmt.Errorf("sdr.CaptureRequest: sample rate must be positive: %g", r.SampleRate)
	}
	if r.NumSamples <= 0 {
		return fmt.Errorf("sdr.CaptureRequest: number of samples must be positive: %d", r.NumSamples)
	}
	if r.Duration < 0 {
		return fmt.Errorf("sdr.CaptureRequest: duration must not be negative: %s", r.Duration)
	}
	return nil
}

// Handler builds capture tool invocations for one kind of radio
type Handler interface {
	// Command returns the binary and arguments writing req to outputPath
	Command(req CaptureRequest, outputPath string) (string, []string, error)

	// Format returns the encoding of the file written by the tool
	Format() SampleFormat

	// Device returns the device type, e.g. "USRP"
	Device() string
}
