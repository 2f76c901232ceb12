package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/rf-sweep/internal/band"
	"github.com/roman-kulish/rf-sweep/internal/sdr"
	"github.com/roman-kulish/rf-sweep/internal/spectrum"
)

// Capturer acquires one bounded sample buffer. *sdr.Device implements it.
type Capturer interface {
	Capture(ctx context.Context, req sdr.CaptureRequest) (*spectrum.SampleBuffer, error)
}

// Router maps a frequency to a decoder profile. *band.Table implements it.
type Router interface {
	Route(freq float64) band.Route
}

// WithLogger sets the logger for the controller
func WithLogger(logger *slog.Logger) func(c *Controller) {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithRouter replaces the built-in band table
func WithRouter(router Router) func(c *Controller) {
	return func(c *Controller) {
		c.router = router
	}
}

// WithObserver registers a callback for state transitions
func WithObserver(observer Observer) func(c *Controller) {
	return func(c *Controller) {
		c.observer = observer
	}
}

// WithClock overrides time.Now for result timestamps
func WithClock(now func() time.Time) func(c *Controller) {
	return func(c *Controller) {
		c.now = now
	}
}

// Controller runs sweeps one step at a time: capture, analysis, extraction
// and routing never overlap, and only one sweep runs at any time.
type Controller struct {
	config    Config
	capturer  Capturer
	analyzer  *spectrum.Analyzer
	extractor spectrum.Extractor
	router    Router
	observer  Observer
	now       func() time.Time

	state   atomic.Int32
	running atomic.Bool

	logger *slog.Logger
}

// NewController validates config and creates a Controller with a discard logger
func NewController(config Config, capturer Capturer, options ...func(c *Controller)) (*Controller, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	analyzer, err := spectrum.NewAnalyzer(config.FFTSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFatalConfiguration, err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	c := Controller{
		config:   config,
		capturer: capturer,
		analyzer: analyzer,
		extractor: spectrum.Extractor{
			ThresholdDB: config.ThresholdDB,
			Adjacency:   config.Adjacency,
			MaxSignals:  config.MaxSignals,
		},
		router: band.DefaultTable(),
		now:    time.Now,
		logger: logger,
	}

	for _, option := range options {
		option(&c)
	}

	return &c, nil
}

// Config returns the controller configuration
func (c *Controller) Config() Config {
	return c.config
}

// State returns the current state of the controller
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Sweep visits every frequency of rng and returns one Result per visited step.
//
// A failed step is recorded in its Result and the sweep moves on. The sweep
// is aborted early, with an error wrapping sdr.ErrCaptureUnavailable, when
// the capture tool is unavailable for Config.AbortAfterUnavailable
// consecutive steps before any step has succeeded.
//
// ctx is checked before every step. A capture already running when ctx is
// cancelled is allowed to finish or time out, then the results gathered so
// far are returned together with ctx.Err().
func (c *Controller) Sweep(ctx context.Context, rng Range) ([]Result, error) {
	if rng.Step == 0 {
		rng.Step = c.config.DefaultStep()
	}
	if err := rng.Validate(); err != nil {
		return nil, err
	}

	if !c.running.CompareAndSwap(false, true) {
		return nil, errors.New("sweep is already running")
	}
	defer c.running.Store(false)

	freqs := rng.Frequencies()

	logger := c.logger.With(slog.String("sweepRange", fmt.Sprintf("%s-%s",
		humanize.SIWithDigits(rng.Start, 3, "Hz"),
		humanize.SIWithDigits(rng.End, 3, "Hz"))))

	logger.Info("sweep started",
		slog.String("step", humanize.SIWithDigits(rng.Step, 3, "Hz")),
		slog.Int("estimatedSteps", rng.EstimatedSteps()),
		slog.String("adjacency", c.config.Adjacency.String()),
		slog.Float64("thresholdDB", c.config.ThresholdDB))

	c.transition(StateIdle, -1, 0)
	defer c.transition(StateDone, -1, 0)

	results := make([]Result, 0, len(freqs))

	var (
		unavailable int
		succeeded   bool
	)

	for i, freq := range freqs {
		if err := ctx.Err(); err != nil {
			logger.Warn("sweep interrupted", slog.Int("completed", len(results)), slog.Int("total", len(freqs)))
			return results, err
		}

		result := c.step(ctx, i, freq)
		results = append(results, result)
		c.transition(StateAccumulated, i, freq)

		stepLogger := logger.With(
			slog.String("progress", fmt.Sprintf("%d/%d", i+1, len(freqs))),
			slog.String("frequency", humanize.SIWithDigits(freq, 3, "Hz")))

		switch {
		case result.Err == nil:
			succeeded = true
			unavailable = 0
			stepLogger.Info("step completed",
				slog.Int("signals", len(result.Detections)),
				slog.Float64("noiseFloorDB", result.Frame.NoiseFloorDB))

		case errors.Is(result.Err, sdr.ErrCaptureUnavailable):
			unavailable++
			stepLogger.Warn(fmt.Sprintf("step skipped: %s", result.Err.Error()))

			limit := c.config.AbortAfterUnavailable
			if !succeeded && limit > 0 && unavailable >= limit {
				logger.Error("capture tool unavailable, aborting sweep", slog.Int("consecutive", unavailable))
				return results, fmt.Errorf("%w: aborted after %d consecutive steps: %w",
					sdr.ErrCaptureUnavailable, unavailable, result.Err)
			}

		default:
			unavailable = 0
			stepLogger.Warn(fmt.Sprintf("step skipped: %s", result.Err.Error()))
		}
	}

	return results, nil
}

func (c *Controller) step(ctx context.Context, i int, freq float64) Result {
	result := Result{
		Step:            i,
		CenterFrequency: freq,
	}

	c.transition(StateCapturing, i, freq)

	// the capture holds the radio, it is never abandoned half-way
	buf, err := c.capturer.Capture(context.WithoutCancel(ctx), sdr.CaptureRequest{
		CenterFrequency: freq,
		SampleRate:      c.config.SampleRate,
		Gain:            c.config.Gain,
		NumSamples:      c.config.NumSamples(),
		Duration:        c.config.CaptureDuration,
	})
	result.Timestamp = c.now().UTC()
	if err != nil {
		result.Err = err
		return result
	}

	c.transition(StateAnalyzing, i, freq)

	frame, err := c.analyzer.Analyze(buf)
	if err != nil {
		result.Err = err
		return result
	}

	c.transition(StateExtracting, i, freq)

	signals := c.extractor.Extract(frame)

	result.Frame = frame
	result.Detections = annotate(i, freq, result.Timestamp, signals, c.router)

	return result
}

func (c *Controller) transition(s State, step int, freq float64) {
	c.state.Store(int32(s))
	if c.observer != nil {
		c.observer(s, step, freq)
	}
}
