package quickscan

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/roman-kulish/rf-sweep/internal/sdr"
	"github.com/roman-kulish/rf-sweep/internal/sdr/driver"
	"github.com/roman-kulish/rf-sweep/internal/sdr/hackrf"
	"github.com/roman-kulish/rf-sweep/internal/sdr/rtl"
)

const (
	// RTLMaxFrequency is the upper tuning limit of the R820T front end
	RTLMaxFrequency = 1.7e9

	// HackRFMaxFrequency is the upper tuning limit of the HackRF One
	HackRFMaxFrequency = 6e9

	// DefaultIntegration is the integration time of a single-shot power report
	DefaultIntegration = time.Second

	// timeoutSlack is added to the integration time before the tool is killed
	timeoutSlack = 10 * time.Second
)

// Source produces a single power report over [start, end]
type Source interface {
	Sweep(ctx context.Context, start, end, binWidth float64) ([]*sdr.PowerSweep, error)
	MaxFrequency() float64
	Device() string
}

// RTLPower runs `rtl_power` in single-shot mode
type RTLPower struct {
	DeviceIndex int
	Gain        int
	PPMError    int
	Integration time.Duration
	Logger      *slog.Logger
}

func (s *RTLPower) Sweep(ctx context.Context, start, end, binWidth float64) ([]*sdr.PowerSweep, error) {
	integration := cmp.Or(s.Integration, DefaultIntegration)

	h, err := rtl.NewPower(&rtl.PowerConfig{
		FrequencyStart: int64(start),
		FrequencyEnd:   int64(end),
		BinWidth:       int64(math.Max(binWidth, rtl.BinWidthMin)),
		Interval:       driver.NewTimeDuration(integration.Round(time.Second)),
		DeviceIndex:    s.DeviceIndex,
		Gain:           s.Gain,
		PPMError:       s.PPMError,
		SingleShot:     true,
	})
	if err != nil {
		return nil, err
	}

	return collect(ctx, h, integration+timeoutSlack, s.Logger)
}

func (s *RTLPower) MaxFrequency() float64 {
	return RTLMaxFrequency
}

func (s *RTLPower) Device() string {
	return rtl.Device
}

// HackRFSweep runs `hackrf_sweep` in one-shot mode
type HackRFSweep struct {
	SerialNumber string
	LNAGain      *int
	VGAGain      *int
	Timeout      time.Duration
	Logger       *slog.Logger
}

func (s *HackRFSweep) Sweep(ctx context.Context, start, end, binWidth float64) ([]*sdr.PowerSweep, error) {
	// hackrf_sweep tunes in whole MHz
	h, err := hackrf.NewSweep(&hackrf.SweepConfig{
		FrequencyStart: int64(math.Floor(start/1e6) * 1e6),
		FrequencyEnd:   int64(math.Ceil(end/1e6) * 1e6),
		BinWidth:       int64(binWidth),
		SerialNumber:   s.SerialNumber,
		LNAGain:        s.LNAGain,
		VGAGain:        s.VGAGain,
		OneShot:        true,
	})
	if err != nil {
		return nil, err
	}

	return collect(ctx, h, cmp.Or(s.Timeout, DefaultIntegration)+timeoutSlack, s.Logger)
}

func (s *HackRFSweep) MaxFrequency() float64 {
	return HackRFMaxFrequency
}

func (s *HackRFSweep) Device() string {
	return hackrf.Device
}

func collect(ctx context.Context, h sdr.StreamHandler, timeout time.Duration, logger *slog.Logger) ([]*sdr.PowerSweep, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sweeps, err := sdr.NewStreamer(h, sdr.WithStreamLogger(logger)).Collect(ctx)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return sweeps, fmt.Errorf("%w: no complete report after %s", sdr.ErrCaptureTimeout, timeout)
	}
	if err != nil {
		return sweeps, err
	}
	return sweeps, ctx.Err()
}
