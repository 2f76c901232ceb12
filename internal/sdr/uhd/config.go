package uhd

import (
	"fmt"
	"strconv"
	"strings"
)

// Usage example:
// https://files.ettus.com/manual/page_toolkit.html
//
//	uhd_rx_cfile -f 100000000 -r 2000000 -g 40 -N 200000 capture.cf32
//
// Samples are written as interleaved 32-bit floats, I then Q, with no header.

// Config is the `uhd_rx_cfile` tool configuration. Frequency, rate, gain and
// sample count come with every capture request; the fields below are fixed per device.
type Config struct {
	DeviceArgs string `yaml:"args" json:"args"`             // --args device address, e.g. "type=b200"
	Antenna    string `yaml:"antenna" json:"antenna"`       // --ant antenna port, e.g. "RX2"
	Subdev     string `yaml:"subdev" json:"subdev"`         // --spec subdevice specification
	Bandwidth  int64  `yaml:"bandwidth" json:"bandwidth"`   // --bw analog frontend filter bandwidth in Hz
	LOOffset   int64  `yaml:"loOffset" json:"loOffset"`     // --lo-offset in Hz
	MaxGain    int    `yaml:"maxGain" json:"maxGain"`       // upper bound enforced on requested gain (0: no check)
	WireFormat string `yaml:"wireFormat" json:"wireFormat"` // --wire-format over-the-wire sample format, sc16 or sc8
}

func (c *Config) Validate() error {
	if c.Bandwidth < 0 {
		return fmt.Errorf("uhd.Config: bandwidth must not be negative: %d", c.Bandwidth)
	}
	if c.MaxGain < 0 {
		return fmt.Errorf("uhd.Config: max gain must not be negative: %d", c.MaxGain)
	}
	if c.WireFormat != "" && c.WireFormat != "sc16" && c.WireFormat != "sc8" {
		return fmt.Errorf("uhd.Config: invalid wire format: %s", c.WireFormat)
	}
	return nil
}

// Args returns the command line arguments for `uhd_rx_cfile`
func (c *Config) Args(frequency, sampleRate int64, gain, numSamples int, outputPath string) ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.MaxGain > 0 && gain > c.MaxGain {
		return nil, fmt.Errorf("uhd.Config: gain exceeds device maximum: %d > %d", gain, c.MaxGain)
	}

	args := []string{
		"-f", strconv.FormatInt(frequency, 10),
		"-r", strconv.FormatInt(sampleRate, 10),
		"-g", strconv.Itoa(gain),
		"-N", strconv.Itoa(numSamples),
	}

	if c.DeviceArgs != "" {
		args = append(args, "--args", c.DeviceArgs)
	}

	if c.Antenna != "" {
		args = append(args, "--ant", c.Antenna)
	}

	if c.Subdev != "" {
		args = append(args, "--spec", c.Subdev)
	}

	if c.Bandwidth > 0 {
		args = append(args, "--bw", strconv.FormatInt(c.Bandwidth, 10))
	}

	if c.LOOffset != 0 {
		args = append(args, "--lo-offset", strconv.FormatInt(c.LOOffset, 10))
	}

	if c.WireFormat != "" {
		args = append(args, "--wire-format", c.WireFormat)
	}

	args = append(args, outputPath)

	return args, nil
}

func (c *Config) String() string {
	args, err := c.Args(100_000_000, 2_000_000, 0, 1, "<file>")
	if err != nil {
		return fmt.Sprintf("uhd.Config: failed to build args: %s", err)
	}
	return fmt.Sprintf("%s %s", Runtime, strings.Join(args, " "))
}
