package sdr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-cmd/cmd"

	"github.com/roman-kulish/rf-sweep/internal/spectrum"
)

const (
	// DefaultTimeoutSlack is added to the capture duration to bound the wait for the tool
	DefaultTimeoutSlack = 10 * time.Second

	// DefaultStopGrace bounds the wait for a stopped process to report its final status
	DefaultStopGrace = 5 * time.Second

	stderrTailLines = 3
)

// WithLogger sets the logger for the device
func WithLogger(logger *slog.Logger) func(d *Device) {
	return func(d *Device) {
		d.logger = logger.With(
			slog.String("device", d.handler.Device()),
			slog.String("deviceID", d.deviceID),
		)
	}
}

// WithTimeoutSlack sets the time added on top of the capture duration before the tool is stopped
func WithTimeoutSlack(slack time.Duration) func(d *Device) {
	return func(d *Device) {
		d.slack = slack
	}
}

// WithStopGrace sets how long to wait for a stopped tool to exit
func WithStopGrace(grace time.Duration) func(d *Device) {
	return func(d *Device) {
		d.stopGrace = grace
	}
}

// WithTempDir sets the directory for temporary capture files
func WithTempDir(dir string) func(d *Device) {
	return func(d *Device) {
		d.tempDir = dir
	}
}

// Device runs an external capture tool for one radio. Captures are serialised:
// a single front end cannot service two acquisitions at once.
type Device struct {
	deviceID string
	handler  Handler

	mu sync.Mutex

	slack     time.Duration
	stopGrace time.Duration
	tempDir   string
	logger    *slog.Logger
}

// NewDevice creates a new Device instance with a discard logger
func NewDevice(deviceID string, h Handler, options ...func(d *Device)) *Device {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	d := Device{
		deviceID:  deviceID,
		handler:   h,
		logger:    logger,
		slack:     DefaultTimeoutSlack,
		stopGrace: DefaultStopGrace,
	}

	for _, option := range options {
		option(&d)
	}

	return &d
}

// Device returns the device type
func (d *Device) Device() string {
	return d.handler.Device()
}

// DeviceID returns the configured device identifier
func (d *Device) DeviceID() string {
	return d.deviceID
}

// Capture acquires req.NumSamples samples at req.CenterFrequency. The tool is
// given req.Duration plus the configured slack; past that it is stopped, killed
// if it outlives the stop grace, and ErrCaptureTimeout is returned. Cancelling
// ctx stops the tool the same way.
func (d *Device) Capture(ctx context.Context, req CaptureRequest) (*spectrum.SampleBuffer, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	f, err := os.CreateTemp(d.tempDir, fmt.Sprintf("capture-*.%s", d.handler.Format()))
	if err != nil {
		return nil, fmt.Errorf("creating capture file: %w", err)
	}
	path := f.Name()
	_ = f.Close()
	_ = os.Remove(path) // the tool creates the file, absence then means no data
	defer os.Remove(path)

	name, args, err := d.handler.Command(req, path)
	if err != nil {
		return nil, fmt.Errorf("building capture command: %w", err)
	}

	logger := d.logger.With(slog.Float64("frequency", req.CenterFrequency))
	logger.Debug("starting capture", slog.String("cmd", name), slog.Any("args", args))

	ctx, cancel := context.WithTimeout(ctx, req.Duration+d.slack)
	defer cancel()

	c := cmd.NewCmd(name, args...)
	statusChan := c.Start()

	var status cmd.Status
	select {
	case status = <-statusChan:

	case <-ctx.Done():
		d.stop(c, statusChan, logger)

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: no result after %s", ErrCaptureTimeout, req.Duration+d.slack)
		}
		return nil, ctx.Err()
	}

	if status.Error != nil && !status.Complete {
		return nil, fmt.Errorf("%w: %s: %w", ErrCaptureUnavailable, name, status.Error)
	}
	if status.Exit != 0 {
		return nil, fmt.Errorf("%w: %s exited with code %d: %s", ErrCaptureUnavailable, name, status.Exit, stderrTail(status.Stderr))
	}

	samples, err := ReadSamples(path, d.handler.Format())
	if err != nil {
		return nil, err
	}

	logger.Debug("capture finished",
		slog.Int("samples", len(samples)),
		slog.Float64("runtime", status.Runtime))

	return &spectrum.SampleBuffer{
		Samples:         samples,
		SampleRate:      req.SampleRate,
		CenterFrequency: req.CenterFrequency,
	}, nil
}

// stop terminates the tool and waits for it to exit. A tool still running
// after the grace period has its process group killed.
func (d *Device) stop(c *cmd.Cmd, statusChan <-chan cmd.Status, logger *slog.Logger) {
	if err := c.Stop(); err != nil {
		logger.Warn(fmt.Sprintf("error stopping capture: %s", err.Error()))
	}

	select {
	case <-statusChan:
		return
	case <-time.After(d.stopGrace):
	}

	pid := c.Status().PID
	if pid <= 0 {
		logger.Error("capture process did not exit after stop, pid unknown")
		return
	}

	logger.Warn("capture process ignored stop, killing", slog.Int("pid", pid))
	if err := killProcessGroup(pid); err != nil {
		logger.Error(fmt.Sprintf("error killing capture: %s", err.Error()), slog.Int("pid", pid))
	}

	select {
	case <-statusChan:
	case <-time.After(d.stopGrace):
		logger.Error("capture process did not exit after kill", slog.Int("pid", pid))
	}
}

func stderrTail(lines []string) string {
	if len(lines) > stderrTailLines {
		lines = lines[len(lines)-stderrTailLines:]
	}
	return strings.Join(lines, "; ")
}
