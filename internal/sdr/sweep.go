package sdr

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// PowerReading represents a single frequency power reading,
// allowing for explicit invalid/missing data representation
type PowerReading struct {
	Frequency float64 // Center frequency in Hz
	Power     float64 // Power level (dBm for rtl_sdr, dB for hackrf)
	IsValid   bool    // Whether the sample is valid
}

// PowerSweep is one line of a power report: a single hop of bins
type PowerSweep struct {
	Timestamp      time.Time      // Timestamp information
	StartFrequency float64        // StartFrequency specifies the starting frequency in Hz of the hop
	EndFrequency   float64        // EndFrequency specifies the ending frequency in Hz of the hop
	BinWidth       float64        // Hz step/bin width
	NumSamples     int            // Number of samples used for this measurement
	Readings       []PowerReading // Readings contains a collection of power readings for the hop
	Device         string         // Device type (e.g., "RTL-SDR", "HackRF")
}

// ValidPowers returns the power of every valid reading
func (s *PowerSweep) ValidPowers() []float64 {
	powers := make([]float64, 0, len(s.Readings))
	for _, r := range s.Readings {
		if r.IsValid {
			powers = append(powers, r.Power)
		}
	}
	return powers
}

// ParsePowerLine parses one CSV line shared by rtl_power and hackrf_sweep:
//
//	date, time, Hz low, Hz high, Hz step, samples, dB, dB, ...
//
// Errors wrap ErrMalformedOutput.
func ParsePowerLine(line, device string, timeLayouts ...string) (*PowerSweep, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 7 {
		return nil, fmt.Errorf("%w: not enough fields: %d", ErrMalformedOutput, len(fields))
	}

	result := PowerSweep{Device: device}

	dateTime := strings.TrimSpace(fields[0]) + " " + strings.TrimSpace(fields[1])

	var err error
	for _, layout := range timeLayouts {
		if result.Timestamp, err = time.Parse(layout, dateTime); err == nil {
			break
		}
	}
	if err != nil || len(timeLayouts) == 0 {
		return nil, fmt.Errorf("%w: invalid timestamp: %q", ErrMalformedOutput, dateTime)
	}

	if result.StartFrequency, err = strconv.ParseFloat(strings.TrimSpace(fields[2]), 64); err != nil {
		return nil, fmt.Errorf("%w: invalid start frequency: %w", ErrMalformedOutput, err)
	}

	if result.EndFrequency, err = strconv.ParseFloat(strings.TrimSpace(fields[3]), 64); err != nil {
		return nil, fmt.Errorf("%w: invalid end frequency: %w", ErrMalformedOutput, err)
	}

	if result.BinWidth, err = strconv.ParseFloat(strings.TrimSpace(fields[4]), 64); err != nil || result.BinWidth <= 0 {
		return nil, fmt.Errorf("%w: invalid bin width: %q", ErrMalformedOutput, fields[4])
	}

	if result.NumSamples, err = strconv.Atoi(strings.TrimSpace(fields[5])); err != nil {
		return nil, fmt.Errorf("%w: invalid number of samples: %w", ErrMalformedOutput, err)
	}

	// Parse average power values
	result.Readings = make([]PowerReading, 0, len(fields)-6)
	for i, field := range fields[6:] {
		reading := PowerReading{
			Frequency: result.StartFrequency + (float64(i) * result.BinWidth) + (result.BinWidth / 2),
		}

		if power, err := strconv.ParseFloat(strings.TrimSpace(field), 64); err == nil && !math.IsNaN(power) && !math.IsInf(power, 0) {
			reading.Power = power
			reading.IsValid = true
		}

		result.Readings = append(result.Readings, reading)
	}

	return &result, nil
}
