package rtl

import (
	"fmt"
	"strconv"
)

const (
	SampleRateMin = 225_001
	SampleRateMax = 3_200_000
)

// Config is the `rtl_sdr` capture configuration. Frequency, sample rate, gain
// and sample count come with each capture request.
// See https://manpages.debian.org/bookworm/rtl-sdr/rtl_sdr.1.en.html
//
//	rtl_sdr -f 100000000 -s 2000000 -g 40 -n 200000 -d 0 capture.cu8
type Config struct {
	DeviceIndex int  `yaml:"deviceIndex" json:"deviceIndex"` // -d device_index (default: 0)
	PPMError    int  `yaml:"ppmError" json:"ppmError"`       // -p ppm_error (default: 0)
	AutoGain    bool `yaml:"autoGain" json:"autoGain"`       // omit -g and let the tuner pick gain
	SyncMode    bool `yaml:"syncMode" json:"syncMode"`       // -S force sync output (default: async)
}

func (c *Config) Validate() error {
	if c.DeviceIndex < 0 {
		return fmt.Errorf("rtl.Config: device index must not be negative: %d", c.DeviceIndex)
	}
	return nil
}

// Args returns the command line arguments for `rtl_sdr`
func (c *Config) Args(frequency, sampleRate int64, gain, numSamples int, outputPath string) ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if sampleRate < SampleRateMin || sampleRate > SampleRateMax {
		return nil, fmt.Errorf("rtl.Config: sample rate must be between %d and %d Hz: %d given", SampleRateMin, SampleRateMax, sampleRate)
	}

	args := []string{
		"-f", strconv.FormatInt(frequency, 10),
		"-s", strconv.FormatInt(sampleRate, 10),
		"-n", strconv.Itoa(numSamples),
		"-d", strconv.Itoa(c.DeviceIndex),
	}

	if !c.AutoGain {
		args = append(args, "-g", strconv.Itoa(gain))
	}

	if c.PPMError != 0 {
		args = append(args, "-p", strconv.Itoa(c.PPMError))
	}

	if c.SyncMode {
		args = append(args, "-S")
	}

	args = append(args, outputPath)

	return args, nil
}
