package hackrf

import (
	"context"
	"fmt"
	"math"
	"os/exec"

	"github.com/roman-kulish/rf-sweep/internal/sdr"
	"github.com/roman-kulish/rf-sweep/internal/sdr/driver"
)

const (
	Runtime      = "hackrf_transfer"
	SweepRuntime = "hackrf_sweep"
	Device       = "HackRF"
)

// hackrf_sweep has printed both layouts across releases
var timeLayouts = []string{
	"2006-01-02 15:04:05.000000",
	"2006-01-02 15:04:05",
}

// handler struct represents a HackRF capture handler
type handler struct {
	binPath string
	config  Config
}

// New creates a new HackRF capture handler
func New(config *Config) (sdr.Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, driver.NewConfigError(err.Error())
	}

	binPath, err := driver.FindRuntime(Runtime)
	if err != nil {
		return nil, fmt.Errorf("%w: hackrf: %w", sdr.ErrCaptureUnavailable, err)
	}

	return &handler{binPath: binPath, config: *config}, nil
}

// Command returns the `hackrf_transfer` invocation for req
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

// Format returns the sample encoding written by `hackrf_transfer`
func (h *handler) Format() sdr.SampleFormat {
	return sdr.FormatCS8
}

// Device returns the device type
func (h *handler) Device() string {
	return Device
}

// sweepHandler struct represents a `hackrf_sweep` report handler
type sweepHandler struct {
	binPath string
	args    []string
}

// NewSweep creates a new `hackrf_sweep` report handler
func NewSweep(config *SweepConfig) (sdr.StreamHandler, error) {
	args, err := config.Args()
	if err != nil {
		return nil, driver.NewConfigError(err.Error())
	}

	binPath, err := driver.FindRuntime(SweepRuntime)
	if err != nil {
		return nil, fmt.Errorf("%w: hackrf: %w", sdr.ErrCaptureUnavailable, err)
	}

	return &sweepHandler{binPath, args}, nil
}

// Cmd returns an exec.Cmd for the `hackrf_sweep` handler
func (h *sweepHandler) Cmd(ctx context.Context) *exec.Cmd {
	return exec.CommandContext(ctx, h.binPath, h.args...)
}

// Parse parses a line of `hackrf_sweep` output
func (h *sweepHandler) Parse(line string) (*sdr.PowerSweep, error) {
	return ParseSweepLine(line)
}

func (h *sweepHandler) Device() string {
	return Device
}

// ParseSweepLine parses a line of `hackrf_sweep` CSV output
func ParseSweepLine(line string) (*sdr.PowerSweep, error) {
	return sdr.ParsePowerLine(line, Device, timeLayouts...)
}
