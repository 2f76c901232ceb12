package sdr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"

	"github.com/roman-kulish/rf-sweep/internal/spectrum"
)

// DecodeSamples converts raw interleaved I/Q bytes into complex samples.
// A trailing partial sample is dropped. A NaN or infinite cf32 sample fails
// the whole buffer with ErrMalformedOutput.
func DecodeSamples(format SampleFormat, data []byte) ([]complex64, error) {
	size := format.BytesPerSample()
	if size == 0 {
		return nil, fmt.Errorf("unsupported sample format: %s", format)
	}

	n := len(data) / size
	samples := make([]complex64, n)

	switch format {
	case FormatCF32:
		for i := range samples {
			off := i * size
			re := math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
			im := math.Float32frombits(binary.LittleEndian.Uint32(data[off+4:]))
			if !finite32(re) || !finite32(im) {
				return nil, fmt.Errorf("%w: non-finite sample %d: %v", ErrMalformedOutput, i, complex(re, im))
			}
			samples[i] = complex(re, im)
		}

	case FormatCU8:
		for i := range samples {
			off := i * size
			re := (float32(data[off]) - 127.5) / 127.5
			im := (float32(data[off+1]) - 127.5) / 127.5
			samples[i] = complex(re, im)
		}

	case FormatCS8:
		for i := range samples {
			off := i * size
			re := float32(int8(data[off])) / 128
			im := float32(int8(data[off+1])) / 128
			samples[i] = complex(re, im)
		}
	}

	return samples, nil
}

func finite32(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ReadSamples loads a capture file. A missing or empty file is reported as
// spectrum.ErrInsufficientSamples, the same as a file too short for analysis.
func ReadSamples(path string, format SampleFormat) ([]complex64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: capture file %s is missing", spectrum.ErrInsufficientSamples, path)
		}
		return nil, fmt.Errorf("reading capture file: %w", err)
	}
	if len(data) < format.BytesPerSample() {
		return nil, fmt.Errorf("%w: capture file %s is empty", spectrum.ErrInsufficientSamples, path)
	}

	return DecodeSamples(format, data)
}
