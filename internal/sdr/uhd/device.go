package uhd

import (
	"fmt"
	"math"

	"github.com/roman-kulish/rf-sweep/internal/sdr"
	"github.com/roman-kulish/rf-sweep/internal/sdr/driver"
)

const (
	Runtime = "uhd_rx_cfile"
	Device  = "USRP"
)

// handler struct represents a USRP capture handler
type handler struct {
	binPath string
	config  Config
}

// New creates a new USRP handler
func New(config *Config) (sdr.Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, driver.NewConfigError(err.Error())
	}

	binPath, err := driver.FindRuntime(Runtime)
	if err != nil {
		return nil, fmt.Errorf("%w: uhd: %w", sdr.ErrCaptureUnavailable, err)
	}

	return &handler{binPath: binPath, config: *config}, nil
}

// Command returns the `uhd_rx_cfile` invocation for req
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

// Format returns the sample encoding written by `uhd_rx_cfile`
func (h *handler) Format() sdr.SampleFormat {
	return sdr.FormatCF32
}

// Device returns the device type
func (h *handler) Device() string {
	return Device
}
