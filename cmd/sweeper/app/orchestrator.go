package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/roman-kulish/rf-sweep/internal/decoder"
	"github.com/roman-kulish/rf-sweep/internal/storage"
	"github.com/roman-kulish/rf-sweep/internal/sweep"
)

// WithStore sets the session history store
func WithStore(store storage.Store) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.store = store
	}
}

// WithPublisher sets the publisher receiving every detection
func WithPublisher(p decoder.Publisher) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.publisher = p
	}
}

// WithReports writes a JSON report and an investigation list per sweep into dir
func WithReports(dir string, includeFrames bool) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.reportDir = dir
		o.includeFrames = includeFrames
	}
}

// WithRunID overrides the generated run identifier
func WithRunID(runID string) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.runID = runID
	}
}

// Orchestrator drives sweeps on one device and hands every completed,
// or interrupted, sweep to the configured sinks: session history,
// JSON reports and detection publishing. A sink failure is logged and
// does not stop the run.
type Orchestrator struct {
	controller *sweep.Controller
	device     string
	deviceID   string

	runID         string
	store         storage.Store
	publisher     decoder.Publisher
	reportDir     string
	includeFrames bool

	logger *slog.Logger
}

// NewOrchestrator creates a new Orchestrator for the sweeps of controller
func NewOrchestrator(controller *sweep.Controller, device, deviceID string, logger *slog.Logger, options ...func(*Orchestrator)) *Orchestrator {
	o := Orchestrator{
		controller: controller,
		device:     device,
		deviceID:   deviceID,
		runID:      uuid.NewString(),
		logger:     logger,
	}

	for _, option := range options {
		option(&o)
	}

	o.logger = o.logger.With(slog.String("runID", o.runID))

	return &o
}

// RunID returns the identifier shared by every sweep of this orchestrator
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Sweep runs a single sweep. Cancellation keeps the partial results and is
// not an error; fatal configuration and an unavailable device are.
func (o *Orchestrator) Sweep(ctx context.Context, rng sweep.Range) (*sweep.Generation, error) {
	if rng.Step == 0 {
		rng.Step = o.controller.Config().DefaultStep()
	}

	g := sweep.Generation{StartedAt: time.Now().UTC()}

	results, err := o.controller.Sweep(ctx, rng)
	interrupted := err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err())
	if err != nil && !interrupted && len(results) == 0 {
		return nil, err
	}

	g.Results = results
	g.Summary = sweep.Summarize(results, time.Since(g.StartedAt))
	g.New = sweep.Detections(results)

	// persist what was gathered, even for an aborted sweep
	if hErr := o.handle(context.WithoutCancel(ctx), &g, rng); hErr != nil {
		o.logger.Error(hErr.Error())
	}

	if err != nil && !interrupted {
		return &g, err
	}
	return &g, nil
}

// Monitor repeats the sweep until ctx is done
func (o *Orchestrator) Monitor(ctx context.Context, rng sweep.Range, interval time.Duration, maxGenerations int) error {
	if rng.Step == 0 {
		rng.Step = o.controller.Config().DefaultStep()
	}

	m := sweep.NewMonitor(o.controller, rng,
		sweep.WithMonitorLogger(o.logger),
		sweep.WithInterval(interval),
		sweep.WithMaxGenerations(maxGenerations),
		sweep.WithGenerationHandler(func(ctx context.Context, g *sweep.Generation) error {
			if err := o.handle(ctx, g, rng); err != nil {
				o.logger.Error(err.Error(), slog.Int("generation", g.Index))
			}
			return nil
		}))

	return m.Run(ctx)
}

func (o *Orchestrator) handle(ctx context.Context, g *sweep.Generation, rng sweep.Range) error {
	o.logSummary(g)

	var errs []error
	if o.store != nil {
		if err := o.storeGeneration(ctx, g, rng); err != nil {
			errs = append(errs, fmt.Errorf("storing sweep: %w", err))
		}
	}
	if o.reportDir != "" {
		if err := o.writeReport(g, rng); err != nil {
			errs = append(errs, fmt.Errorf("writing report: %w", err))
		}
	}
	if o.publisher != nil && len(g.New) > 0 {
		if err := decoder.Dispatch(ctx, o.publisher, o.targets(g)); err != nil {
			errs = append(errs, fmt.Errorf("dispatching detections: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) storeGeneration(ctx context.Context, g *sweep.Generation, rng sweep.Range) error {
	cfg := o.controller.Config()

	sweepID, err := o.store.CreateSweep(ctx, &storage.SweepRecord{
		RunID:          o.runID,
		Generation:     g.Index,
		Device:         o.device,
		DeviceID:       o.deviceID,
		StartFrequency: rng.Start,
		EndFrequency:   rng.End,
		Step:           rng.Step,
		SampleRate:     cfg.SampleRate,
		FFTSize:        cfg.FFTSize,
		Gain:           cfg.Gain,
		ThresholdDB:    cfg.ThresholdDB,
		StartedAt:      g.StartedAt,
	})
	if err != nil {
		return err
	}

	if err = o.store.StoreResults(ctx, sweepID, g.Results); err != nil {
		return err
	}

	return o.store.FinishSweep(ctx, sweepID, g.Summary, g.StartedAt.Add(g.Summary.Elapsed))
}

func (o *Orchestrator) writeReport(g *sweep.Generation, rng sweep.Range) error {
	report := storage.NewReport(o.controller.Config(), rng, g.Results, o.includeFrames, g.StartedAt)
	report.RunID = o.runID

	reportPath, listPath, err := storage.SaveReport(o.reportDir, report, sweep.Detections(g.Results))
	if err != nil {
		return err
	}

	o.logger.Info("report saved", slog.String("report", reportPath), slog.String("investigationList", listPath))
	return nil
}

func (o *Orchestrator) targets(g *sweep.Generation) []decoder.Target {
	targets := make([]decoder.Target, len(g.New))
	for i, d := range g.New {
		targets[i] = decoder.Target{
			Frequency:   d.Frequency,
			PowerDB:     d.PowerDB,
			Bandwidth:   d.Bandwidth,
			Band:        d.Band,
			Decoder:     d.Decoder,
			Description: d.Description,
			Type:        d.Type,
			Timestamp:   d.Timestamp,
			RunID:       o.runID,
			Generation:  g.Index,
		}
	}
	return targets
}

func (o *Orchestrator) logSummary(g *sweep.Generation) {
	s := g.Summary

	o.logger.Info("sweep summary",
		slog.Int("generation", g.Index),
		slog.Int("attempted", s.Attempted),
		slog.Int("succeeded", s.Succeeded),
		slog.Int("failed", s.Failed),
		slog.Int("timeouts", s.Timeouts),
		slog.Int("unavailable", s.Unavailable),
		slog.Int("signals", s.Signals),
		slog.String("elapsed", s.Elapsed.Round(time.Millisecond).String()))

	for i, d := range storage.Rank(sweep.Detections(g.Results)) {
		if i == 10 {
			break
		}
		o.logger.Info("signal",
			slog.Int("rank", i+1),
			slog.String("frequency", humanize.SIWithDigits(d.Frequency, 6, "Hz")),
			slog.String("powerDB", fmt.Sprintf("%.1f", d.PowerDB)),
			slog.String("bandwidth", humanize.SIWithDigits(d.Bandwidth, 1, "Hz")),
			slog.String("band", d.Band),
			slog.String("decoder", d.Decoder),
			slog.String("type", d.Type))
	}
}
