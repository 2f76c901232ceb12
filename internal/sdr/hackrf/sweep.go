package hackrf

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	MinNumSamples = 8192
	MaxLNAGain    = 40
	MaxVGAGain    = 62
	LNAGainStep   = 8
	VGAGainStep   = 2
)

// https://manpages.debian.org/bookworm/hackrf/hackrf_sweep.1.en.html
//
//	cfg := hackrf.SweepConfig{
//		FrequencyStart: 2_400_000_000,
//		FrequencyEnd:   2_500_000_000,
//		BinWidth:       100_000,
//		OneShot:        true,
//	}
//	// hackrf_sweep -f 2400:2500 -w 100000 -1

// SweepConfig is the `hackrf_sweep` tool configuration
type SweepConfig struct {
	// Required
	FrequencyStart int64 `yaml:"frequencyStart" json:"frequencyStart"` // -f freq_min Frequency range start in Hz, passed in MHz
	FrequencyEnd   int64 `yaml:"frequencyEnd" json:"frequencyEnd"`     // -f freq_max Frequency range end in Hz, passed in MHz

	LNAGain    *int  `yaml:"lnaGain" json:"lnaGain"`       // -l gain_db LNA (IF) gain, 0-40dB, 8dB steps
	VGAGain    *int  `yaml:"vgaGain" json:"vgaGain"`       // -g gain_db VGA (baseband) gain, 0-62dB, 2dB steps
	BinWidth   int64 `yaml:"binWidth" json:"binWidth"`     // -w bin_width FFT bin width (frequency resolution) in Hz
	NumSamples int64 `yaml:"numSamples" json:"numSamples"` // -n num_samples Number of samples per frequency, 8192-4294967296

	SerialNumber string `yaml:"serialNumber" json:"serialNumber"` // -d serial_number Serial number of desired HackRF

	EnableAmp    bool `yaml:"enableAmp" json:"enableAmp"`       // -a amp_enable RX RF amplifier 1=Enable, 0=Disable
	AntennaPower bool `yaml:"antennaPower" json:"antennaPower"` // -p antenna_enable Antenna port power, 1=Enable, 0=Disable

	OneShot   bool `yaml:"oneShot" json:"oneShot"`     // -1 One shot mode
	NumSweeps int  `yaml:"numSweeps" json:"numSweeps"` // -N num_sweeps Number of sweeps to perform

	// Binary output (-B, -I), output files (-r) and FFTW wisdom (-W, -P) are
	// not supported: the report is always CSV on stdout, the same as `rtl_power`
}

func (c *SweepConfig) Validate() error {
	if c.FrequencyStart >= c.FrequencyEnd {
		return errors.New("hackrf.SweepConfig: frequency end must be greater than frequency start")
	}

	if err := validateGains(c.LNAGain, c.VGAGain); err != nil {
		return fmt.Errorf("hackrf.SweepConfig: %w", err)
	}

	if c.NumSamples > 0 && c.NumSamples < MinNumSamples {
		return fmt.Errorf("hackrf.SweepConfig: number of samples must be at least 8192: %d given", c.NumSamples)
	}

	if c.NumSweeps < 0 {
		return fmt.Errorf("hackrf.SweepConfig: number of sweeps cannot be negative: %d given", c.NumSweeps)
	}

	return nil
}

// Args builds the command line arguments for `hackrf_sweep`
// See `man hackrf_sweep` for more information:
// https://manpages.debian.org/bookworm/hackrf/hackrf_sweep.1.en.html
func (c *SweepConfig) Args() ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	args := []string{
		"-f", fmt.Sprintf("%d:%d",
			c.FrequencyStart/1e6,
			c.FrequencyEnd/1e6),
	}

	if c.SerialNumber != "" {
		args = append(args, "-d", c.SerialNumber)
	}

	if c.BinWidth > 0 {
		args = append(args, "-w", strconv.FormatInt(c.BinWidth, 10))
	}

	if c.LNAGain != nil {
		args = append(args, "-l", strconv.Itoa(*c.LNAGain))
	}

	if c.VGAGain != nil {
		args = append(args, "-g", strconv.Itoa(*c.VGAGain))
	}

	if c.NumSamples >= MinNumSamples {
		args = append(args, "-n", strconv.FormatInt(c.NumSamples, 10))
	}

	if c.EnableAmp {
		args = append(args, "-a", "1")
	}

	if c.AntennaPower {
		args = append(args, "-p", "1")
	}

	if c.OneShot {
		args = append(args, "-1")
	}

	if c.NumSweeps > 0 {
		args = append(args, "-N", strconv.Itoa(c.NumSweeps))
	}

	return args, nil
}

func (c *SweepConfig) String() string {
	args, err := c.Args()
	if err != nil {
		return fmt.Sprintf("hackrf.SweepConfig: failed to build args: %s", err)
	}
	return fmt.Sprintf("%s %s", SweepRuntime, strings.Join(args, " "))
}

func validateGains(lna, vga *int) error {
	// LNA gain: 0-40dB in 8dB steps
	if lna != nil {
		if *lna < 0 || *lna > MaxLNAGain {
			return fmt.Errorf("LNA gain must be between 0 and 40 dB: %d given", *lna)
		}
		if *lna%LNAGainStep != 0 {
			return errors.New("LNA gain must be a multiple of 8 dB")
		}
	}

	// VGA gain: 0-62dB in 2dB steps
	if vga != nil {
		if *vga < 0 || *vga > MaxVGAGain {
			return fmt.Errorf("VGA gain must be between 0 and 62 dB: %d given", *vga)
		}
		if *vga%VGAGainStep != 0 {
			return errors.New("VGA gain must be a multiple of 2 dB")
		}
	}

	return nil
}
