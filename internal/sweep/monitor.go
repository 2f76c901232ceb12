package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/dustin/go-humanize"
)

// DefaultInterval is the pause between monitor generations
const DefaultInterval = 30 * time.Second

// Key identifies a detection across generations: the frequency rounded
// to 100 kHz, and the band it routes to
type Key struct {
	Frequency float64
	Band      string
}

// KeyOf returns the diff key of d
func KeyOf(d Detection) Key {
	return Key{
		Frequency: math.Round(d.Frequency/100e3) * 100e3,
		Band:      d.Band,
	}
}

// Generation is one complete sweep in monitor mode
type Generation struct {
	Index     int
	StartedAt time.Time
	Results   []Result
	Summary   Summary
	New       []Detection // detections whose key was absent from the previous generation
}

// GenerationHandler receives every completed generation, including an
// interrupted one. Returning an error stops the monitor.
type GenerationHandler func(ctx context.Context, g *Generation) error

// WithMonitorLogger sets the logger for the monitor
func WithMonitorLogger(logger *slog.Logger) func(m *Monitor) {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithInterval sets the pause between generations
func WithInterval(interval time.Duration) func(m *Monitor) {
	return func(m *Monitor) {
		m.interval = interval
	}
}

// WithGenerationHandler sets the callback receiving each generation
func WithGenerationHandler(h GenerationHandler) func(m *Monitor) {
	return func(m *Monitor) {
		m.handler = h
	}
}

// WithMaxGenerations stops the monitor after n generations. Zero runs until ctx is done.
func WithMaxGenerations(n int) func(m *Monitor) {
	return func(m *Monitor) {
		m.maxGenerations = n
	}
}

// Monitor repeats a sweep on a fixed interval and reports signals that were
// not present in the previous generation. A generation starts only after
// the previous Sweep returned, so the capture device is always released.
type Monitor struct {
	controller *Controller
	rng        Range

	interval       time.Duration
	maxGenerations int
	handler        GenerationHandler

	logger *slog.Logger
}

// NewMonitor creates a new Monitor with a discard logger
func NewMonitor(controller *Controller, rng Range, options ...func(m *Monitor)) *Monitor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	m := Monitor{
		controller: controller,
		rng:        rng,
		interval:   DefaultInterval,
		logger:     logger,
	}

	for _, option := range options {
		option(&m)
	}

	return &m
}

// Run sweeps until ctx is done, a fatal sweep error occurs, the handler
// fails or the generation limit is reached. Cancellation is not an error.
func (m *Monitor) Run(ctx context.Context) error {
	var previous map[Key]struct{}

	for i := 0; m.maxGenerations == 0 || i < m.maxGenerations; i++ {
		g := Generation{Index: i, StartedAt: time.Now().UTC()}

		results, err := m.controller.Sweep(ctx, m.rng)
		interrupted := err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err())
		if err != nil && !interrupted {
			return fmt.Errorf("generation %d: %w", i, err)
		}

		g.Results = results
		g.Summary = Summarize(results, time.Since(g.StartedAt))

		var current map[Key]struct{}
		g.New, current = diff(previous, Detections(results))

		if !interrupted {
			previous = current
		}

		m.logger.Info("generation completed",
			slog.Int("generation", i),
			slog.Int("signals", g.Summary.Signals),
			slog.Int("new", len(g.New)),
			slog.String("elapsed", g.Summary.Elapsed.Round(time.Millisecond).String()))

		for _, d := range g.New {
			m.logger.Warn("new signal detected",
				slog.String("frequency", humanize.SIWithDigits(d.Frequency, 3, "Hz")),
				slog.String("band", d.Band),
				slog.Float64("powerDB", d.PowerDB),
				slog.String("decoder", d.Decoder))
		}

		if m.handler != nil {
			if err = m.handler(context.WithoutCancel(ctx), &g); err != nil {
				return fmt.Errorf("generation %d: %w", i, err)
			}
		}

		if interrupted {
			return nil
		}

		if m.maxGenerations > 0 && i+1 >= m.maxGenerations {
			break
		}

		m.logger.Debug(fmt.Sprintf("waiting %s before next generation", m.interval))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(m.interval):
		}
	}

	return nil
}

// diff returns the detections whose key is not in previous, one per key,
// together with the key set of current. Every detection is new when
// previous is nil.
func diff(previous map[Key]struct{}, current []Detection) ([]Detection, map[Key]struct{}) {
	keys := make(map[Key]struct{}, len(current))
	var fresh []Detection

	for _, d := range current {
		k := KeyOf(d)
		if _, seen := keys[k]; seen {
			continue
		}
		keys[k] = struct{}{}

		if _, ok := previous[k]; !ok {
			fresh = append(fresh, d)
		}
	}

	return fresh, keys
}
