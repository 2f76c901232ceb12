package rtl

import (
	"context"
	"fmt"
	"math"
	"os/exec"

	"github.com/roman-kulish/rf-sweep/internal/sdr"
	"github.com/roman-kulish/rf-sweep/internal/sdr/driver"
)

const (
	Runtime      = "rtl_sdr"
	PowerRuntime = "rtl_power"
	Device       = "RTL-SDR"

	timeLayout = "2006-01-02 15:04:05"
)

// handler struct represents an RTL-SDR capture handler
type handler struct {
	binPath string
	config  Config
}

// New creates a new RTL-SDR capture handler
func New(config *Config) (sdr.Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, driver.NewConfigError(err.Error())
	}

	binPath, err := driver.FindRuntime(Runtime)
	if err != nil {
		return nil, fmt.Errorf("%w: rtl: %w", sdr.ErrCaptureUnavailable, err)
	}

	return &handler{binPath: binPath, config: *config}, nil
}

// Command returns the `rtl_sdr` invocation for req
func (h *handler) Command(req sdr.CaptureRequest, outputPath string) (string, []string, error) {
	args, err := h.config.Args(
		int64(math.Round(req.CenterFrequency)),
		int64(math.Round(req.SampleRate)),
		req.Gain,
		req.NumSamples,
		outputPath)
	if err != nil {
		return "", nil, err
	}
	return h.binPath, args, nil
}

// Format returns the sample encoding written by `rtl_sdr`
func (h *handler) Format() sdr.SampleFormat {
	return sdr.FormatCU8
}

func (h *handler) Device() string {
	return Device
}

// powerHandler struct represents an `rtl_power` report handler
type powerHandler struct {
	binPath string
	args    []string
}

// NewPower creates a new `rtl_power` report handler
func NewPower(config *PowerConfig) (sdr.StreamHandler, error) {
	args, err := config.Args()
	if err != nil {
		return nil, driver.NewConfigError(err.Error())
	}

	binPath, err := driver.FindRuntime(PowerRuntime)
	if err != nil {
		return nil, fmt.Errorf("%w: rtl: %w", sdr.ErrCaptureUnavailable, err)
	}

	return &powerHandler{binPath, args}, nil
}

// Cmd returns an exec.Cmd for the `rtl_power` handler
func (h *powerHandler) Cmd(ctx context.Context) *exec.Cmd {
	return exec.CommandContext(ctx, h.binPath, h.args...)
}

// Parse parses a line of `rtl_power` output
func (h *powerHandler) Parse(line string) (*sdr.PowerSweep, error) {
	return ParsePowerLine(line)
}

func (h *powerHandler) Device() string {
	return Device
}

// ParsePowerLine parses a line of `rtl_power` CSV output
func ParsePowerLine(line string) (*sdr.PowerSweep, error) {
	return sdr.ParsePowerLine(line, Device, timeLayout)
}
