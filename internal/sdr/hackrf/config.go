package hackrf

import (
	"fmt"
	"strconv"
)

const (
	SampleRateMin = 2_000_000
	SampleRateMax = 20_000_000
)

// Config is the `hackrf_transfer` receive configuration.
// See https://manpages.debian.org/bookworm/hackrf/hackrf_transfer.1.en.html
//
//	hackrf_transfer -r capture.cs8 -f 2440000000 -s 10000000 -n 200000 -l 32 -g 20
//
// The request gain is used as the VGA gain unless VGAGain is set.
type Config struct {
	SerialNumber string `yaml:"serialNumber" json:"serialNumber"` // -d serial_number
	LNAGain      *int   `yaml:"lnaGain" json:"lnaGain"`           // -l gain_db LNA (IF) gain, 0-40dB, 8dB steps
	VGAGain      *int   `yaml:"vgaGain" json:"vgaGain"`           // -g gain_db VGA (baseband) gain, 0-62dB, 2dB steps
	EnableAmp    bool   `yaml:"enableAmp" json:"enableAmp"`       // -a 1 RX RF amplifier
	AntennaPower bool   `yaml:"antennaPower" json:"antennaPower"` // -p 1 antenna port power
}

func (c *Config) Validate() error {
	if err := validateGains(c.LNAGain, c.VGAGain); err != nil {
		return fmt.Errorf("hackrf.Config: %w", err)
	}
	return nil
}

// Args returns the command line arguments for `hackrf_transfer`
func (c *Config) Args(frequency, sampleRate int64, gain, numSamples int, outputPath string) ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if sampleRate < SampleRateMin || sampleRate > SampleRateMax {
		return nil, fmt.Errorf("hackrf.Config: sample rate must be between %d and %d Hz: %d given", SampleRateMin, SampleRateMax, sampleRate)
	}

	args := []string{
		"-r", outputPath,
		"-f", strconv.FormatInt(frequency, 10),
		"-s", strconv.FormatInt(sampleRate, 10),
		"-n", strconv.Itoa(numSamples),
	}

	if c.SerialNumber != "" {
		args = append(args, "-d", c.SerialNumber)
	}

	if c.LNAGain != nil {
		args = append(args, "-l", strconv.Itoa(*c.LNAGain))
	}

	vga := gain
	if c.VGAGain != nil {
		vga = *c.VGAGain
	}
	// round down to the nearest valid step
	vga = min(max(vga, 0), MaxVGAGain) &^ 1
	args = append(args, "-g", strconv.Itoa(vga))

	if c.EnableAmp {
		args = append(args, "-a", "1")
	}

	if c.AntennaPower {
		args = append(args, "-p", "1")
	}

	return args, nil
}
