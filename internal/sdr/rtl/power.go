package rtl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roman-kulish/rf-sweep/internal/sdr/driver"
)

const (
	BinWidthMin = 1
	BinWidthMax = 2_800_000

	// WindowFunctionRectangle is the default window function
	WindowFunctionRectangle      WindowFunction = "rectangle"
	WindowFunctionHamming        WindowFunction = "hamming"
	WindowFunctionBlackman       WindowFunction = "blackman"
	WindowFunctionBlackmanHarris WindowFunction = "blackman-harris"
	WindowFunctionHannPoisson    WindowFunction = "hann-poisson"
	WindowFunctionBartlett       WindowFunction = "bartlett"
	WindowFunctionYoussef        WindowFunction = "youssef"
	WindowFunctionKaiser         WindowFunction = "kaiser"

	// SmoothingAvg is the default smoothing method
	SmoothingAvg SmoothingMethod = "avg"
	SmoothingIIR SmoothingMethod = "iir"
)

var (
	validWindowFunctions = map[WindowFunction]struct{}{
		WindowFunctionRectangle:      {},
		WindowFunctionHamming:        {},
		WindowFunctionBlackman:       {},
		WindowFunctionBlackmanHarris: {},
		WindowFunctionHannPoisson:    {},
		WindowFunctionYoussef:        {},
		WindowFunctionKaiser:         {},
		WindowFunctionBartlett:       {},
	}

	validSmoothingMethods = map[SmoothingMethod]struct{}{
		SmoothingAvg: {},
		SmoothingIIR: {},
	}
)

type WindowFunction string

func (w WindowFunction) String() string {
	return string(w)
}

type SmoothingMethod string

func (s SmoothingMethod) String() string {
	return string(s)
}

// See https://manpages.debian.org/bookworm/rtl-sdr/rtl_power.1.en.html
//
// A single-shot band survey as run by the quick scan:
//
//	cfg := rtl.PowerConfig{
//		FrequencyStart: 433_050_000,
//		FrequencyEnd:   434_790_000,
//		BinWidth:       17_400,
//		Interval:       driver.NewTimeDuration(time.Second),
//		SingleShot:     true,
//	}
//	// rtl_power -f 433050000:434790000:17400 -i 1s -d 0 -1 -

// PowerConfig is the `rtl_power` tool configuration
type PowerConfig struct {
	// Required
	FrequencyStart int64 `yaml:"frequencyStart" json:"frequencyStart"` // -f lower Frequency range start (Hz)
	FrequencyEnd   int64 `yaml:"frequencyEnd" json:"frequencyEnd"`     // -f upper Frequency range end (Hz)
	BinWidth       int64 `yaml:"binWidth" json:"binWidth"`             // -f bin_size Bin size in Hz (valid range 1Hz - 2.8MHz)

	// Common Optional Parameters
	Interval driver.TimeDuration `yaml:"interval" json:"interval"` // -i integration_interval (default: 10 seconds)
	// Time units: 's' seconds, 'm' minutes, 'h' hours
	// Default unit is seconds
	// Examples: "30s", "15m", "2h"

	DeviceIndex int `yaml:"deviceIndex" json:"deviceIndex"` // -d device_index (default: 0)

	Gain     int `yaml:"gain" json:"gain"`         // -g tuner_gain (default: automatic)
	PPMError int `yaml:"ppmError" json:"ppmError"` // -p ppm_error (default: 0)

	// Time Control
	ExitTimer  driver.TimeDuration `yaml:"exitTimer" json:"exitTimer"`   // -e exit_timer (default: off/0)
	SingleShot bool                `yaml:"singleShot" json:"singleShot"` // -1 single shot mode
	// Time units: 's' seconds, 'm' minutes, 'h' hours
	// Default unit is seconds
	// Examples: "30s", "15m", "2h"

	// Processing Options
	Smoothing  SmoothingMethod `yaml:"smoothing" json:"smoothing"`   // -s [avg|iir] Smoothing (default: avg)
	FFTThreads int             `yaml:"fftThreads" json:"fftThreads"` // -t threads Number of FFT threads

	// Advanced/Experimental Options
	WindowFunction WindowFunction `yaml:"windowFunction" json:"windowFunction"` // -w window (default: rectangle)
	Crop           float32        `yaml:"crop" json:"crop"`                     // -c crop_percent (default: 0%, recommended: 20%-50%)
	FIRSize        *int           `yaml:"firSize" json:"firSize"`               // -F fir_size (default: disabled, can be 0 or 9)

	// Hardware Options
	PeakHold       bool `yaml:"peakHold" json:"peakHold"`             // -P enables peak hold (default: off)
	DirectSampling bool `yaml:"directSampling" json:"directSampling"` // -D enable direct sampling (default: off)
	OffsetTuning   bool `yaml:"offsetTuning" json:"offsetTuning"`     // -O enable offset tuning (default: off)
	BiasTee        bool `yaml:"biasTee" json:"biasTee"`               // -T enable bias-tee (default: off)
}

func (c *PowerConfig) Validate() error {
	// Validate required fields
	if c.FrequencyStart <= 0 {
		return fmt.Errorf("rtl.PowerConfig: frequency start must be positive: %d", c.FrequencyStart)
	}
	if c.FrequencyEnd <= 0 {
		return fmt.Errorf("rtl.PowerConfig: frequency end must be positive: %d", c.FrequencyEnd)
	}
	if c.FrequencyEnd <= c.FrequencyStart {
		return fmt.Errorf("rtl.PowerConfig: frequency end must be greater than start: %d <= %d", c.FrequencyEnd, c.FrequencyStart)
	}

	// Validate bin width
	if c.BinWidth < BinWidthMin || c.BinWidth > BinWidthMax {
		return fmt.Errorf("rtl.PowerConfig: invalid bin width: %d, must be between %d and %d Hz", c.BinWidth, BinWidthMin, BinWidthMax)
	}

	// Validate time specifications
	if c.Interval > 0 {
		if err := c.Interval.Validate(); err != nil {
			return fmt.Errorf("rtl.PowerConfig: invalid interval: %w", err)
		}
	}
	if c.ExitTimer > 0 {
		if err := c.ExitTimer.Validate(); err != nil {
			return fmt.Errorf("rtl.PowerConfig: invalid exit timer: %w", err)
		}
	}

	// Validate window function
	if c.WindowFunction != "" {
		if _, ok := validWindowFunctions[c.WindowFunction]; !ok {
			return fmt.Errorf("rtl.PowerConfig: invalid window function: %s", c.WindowFunction)
		}
	}

	// Validate smoothing method
	if c.Smoothing != "" {
		if _, ok := validSmoothingMethods[c.Smoothing]; !ok {
			return fmt.Errorf("rtl.PowerConfig: invalid smoothing method: %s", c.Smoothing)
		}
	}

	// Validate crop percent
	if c.Crop < 0 || c.Crop > 1 {
		return fmt.Errorf("rtl.PowerConfig: crop percent must be between 0 and 1: %0.2f given", c.Crop)
	}

	// Validate FIR size
	if c.FIRSize != nil && *c.FIRSize != 0 && *c.FIRSize != 9 {
		return fmt.Errorf("rtl.PowerConfig: FIR size must be 0 or 9: %d given", *c.FIRSize)
	}

	return nil
}

// Args returns the command line arguments for `rtl_power`
// See `man rtl_power` for more information:
// https://manpages.debian.org/bookworm/rtl-sdr/rtl_power.1.en.html
func (c *PowerConfig) Args() ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	args := []string{
		"-f", fmt.Sprintf("%d:%d:%d",
			c.FrequencyStart,
			c.FrequencyEnd,
			c.BinWidth),
	}

	// Common parameters
	if c.Interval > 0 {
		args = append(args, "-i", c.Interval.String())
	}

	args = append(args, "-d", strconv.Itoa(c.DeviceIndex)) // 0 is the default device index

	if c.Gain > 0 {
		args = append(args, "-g", strconv.Itoa(c.Gain))
	}

	if c.PPMError != 0 {
		args = append(args, "-p", strconv.Itoa(c.PPMError))
	}

	if c.ExitTimer > 0 {
		args = append(args, "-e", c.ExitTimer.String())
	}

	if c.SingleShot {
		args = append(args, "-1")
	}

	// Processing options
	if c.Smoothing != "" {
		args = append(args, "-s", c.Smoothing.String())
	}

	if c.FFTThreads > 0 {
		args = append(args, "-t", strconv.Itoa(c.FFTThreads))
	}

	// Window and filter options
	if c.WindowFunction != "" {
		args = append(args, "-w", c.WindowFunction.String())
	}

	if c.Crop > 0 {
		args = append(args, "-c", strconv.FormatFloat(float64(c.Crop), 'f', 2, 32))
	}

	if c.FIRSize != nil {
		args = append(args, "-F", strconv.Itoa(*c.FIRSize))
	}

	// Hardware options
	if c.PeakHold {
		args = append(args, "-P")
	}

	if c.DirectSampling {
		args = append(args, "-D")
	}

	if c.OffsetTuning {
		args = append(args, "-O")
	}

	if c.BiasTee {
		args = append(args, "-T")
	}

	args = append(args, "-") // Always dump to stdout

	return args, nil
}

func (c *PowerConfig) String() string {
	args, err := c.Args()
	if err != nil {
		return fmt.Sprintf("rtl.PowerConfig: failed to build args: %s", err)
	}
	return fmt.Sprintf("%s %s", PowerRuntime, strings.Join(args, " "))
}
