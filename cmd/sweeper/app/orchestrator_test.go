package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/roman-kulish/rf-sweep/internal/decoder"
	"github.com/roman-kulish/rf-sweep/internal/sdr"
	"github.com/roman-kulish/rf-sweep/internal/spectrum"
	"github.com/roman-kulish/rf-sweep/internal/storage"
	"github.com/roman-kulish/rf-sweep/internal/sweep"
)

// toneCapturer returns a tone 300 bins above the capture center over low-level noise
type toneCapturer struct {
	mu   sync.Mutex
	rng  *rand.Rand
	fail map[float64]error
}

func (c *toneCapturer) Capture(_ context.Context, req sdr.CaptureRequest) (*spectrum.SampleBuffer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err, ok := c.fail[req.CenterFrequency]; ok {
		return nil, err
	}

	n := spectrum.DefaultFFTSize
	offset := 300 * req.SampleRate / float64(n)

	samples := make([]complex64, n)
	for i := range samples {
		phase := 2 * math.Pi * offset * float64(i) / req.SampleRate
		re := math.Cos(phase) + 0.01*c.rng.NormFloat64()
		im := math.Sin(phase) + 0.01*c.rng.NormFloat64()
		samples[i] = complex(float32(re), float32(im))
	}

	return &spectrum.SampleBuffer{
		Samples:         samples,
		SampleRate:      req.SampleRate,
		CenterFrequency: req.CenterFrequency,
	}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	targets  []decoder.Target
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.subjects = append(p.subjects, subject)
	if t, ok := v.(decoder.Target); ok {
		p.targets = append(p.targets, t)
	}
	return nil
}

func (p *recordingPublisher) Close() error {
	return nil
}

type testOrchestrator struct {
	*Orchestrator
	store     *storage.SQLStore
	publisher *recordingPublisher
	reportDir string
}

func newTestOrchestrator(t *testing.T, capturer *toneCapturer) *testOrchestrator {
	t.Helper()

	cfg := sweep.DefaultConfig()
	cfg.ThresholdDB = 20

	controller, err := sweep.NewController(cfg, capturer)
	if err != nil {
		t.Fatalf("Failed to create controller: %v", err)
	}

	dir := t.TempDir()
	store := storage.NewSqliteStore(filepath.Join(dir, "sweeps.sqlite"), storage.WithFrames(true))
	t.Cleanup(func() { store.Close() })

	publisher := &recordingPublisher{}
	reportDir := filepath.Join(dir, "reports")

	o := NewOrchestrator(controller, string(DeviceRTLSDR), "0", discardLogger(),
		WithStore(store),
		WithPublisher(publisher),
		WithReports(reportDir, false),
		WithRunID("run-1"))

	return &testOrchestrator{Orchestrator: o, store: store, publisher: publisher, reportDir: reportDir}
}

func newToneCapturer() *toneCapturer {
	return &toneCapturer{rng: rand.New(rand.NewPCG(1, 2)), fail: make(map[float64]error)}
}

func TestOrchestratorSweep(t *testing.T) {
	capturer := newToneCapturer()
	capturer.fail[101.6e6] = sdr.ErrCaptureTimeout

	o := newTestOrchestrator(t, capturer)
	ctx := context.Background()

	g, err := o.Sweep(ctx, sweep.Range{Start: 100e6, End: 103.2e6, Step: 1.6e6})
	if err != nil {
		t.Fatalf("Failed to sweep: %v", err)
	}

	if g.Summary.Attempted != 3 || g.Summary.Succeeded != 2 || g.Summary.Timeouts != 1 {
		t.Errorf("unexpected summary: %+v", g.Summary)
	}
	if len(g.New) != 2 {
		t.Fatalf("expected 2 detections, got %d", len(g.New))
	}

	sweeps, err := o.store.Sweeps(ctx, "run-1")
	if err != nil {
		t.Fatalf("Failed to read sweeps: %v", err)
	}
	if len(sweeps) != 1 {
		t.Fatalf("expected 1 stored sweep, got %d", len(sweeps))
	}

	rec := sweeps[0]
	if rec.Device != "rtlsdr" || rec.Attempted != 3 || rec.Succeeded != 2 || rec.Failed != 1 || rec.Signals != 2 {
		t.Errorf("unexpected sweep record: %+v", rec)
	}
	if rec.FinishedAt == nil {
		t.Error("sweep should be finished")
	}

	steps, err := o.store.Steps(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Failed to read steps: %v", err)
	}
	if len(steps) != 3 || steps[1].Error == nil || steps[0].Frame == nil {
		t.Errorf("unexpected steps: %d stored", len(steps))
	}

	signals, err := o.store.Signals(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Failed to read signals: %v", err)
	}
	for _, s := range signals {
		if s.Band != "FM Broadcast" || s.Decoder != decoder.RTLFM {
			t.Errorf("unexpected route for %.0f Hz: %s/%s", s.Frequency, s.Band, s.Decoder)
		}
	}

	reports, _ := filepath.Glob(filepath.Join(o.reportDir, "scan_*.json"))
	lists, _ := filepath.Glob(filepath.Join(o.reportDir, "top_signals_*.txt"))
	if len(reports) != 1 || len(lists) != 1 {
		t.Fatalf("expected one report and one list, got %v %v", reports, lists)
	}

	content, err := os.ReadFile(reports[0])
	if err != nil {
		t.Fatalf("Failed to read report: %v", err)
	}
	if !strings.Contains(string(content), `"run_id": "run-1"`) {
		t.Errorf("report does not carry the run id:\n%s", content)
	}

	if len(o.publisher.targets) != 2 {
		t.Fatalf("expected 2 published detections, got %d", len(o.publisher.targets))
	}
	for i, subject := range o.publisher.subjects {
		if subject != decoder.DetectionSubject(decoder.RTLFM) {
			t.Errorf("unexpected subject %q", subject)
		}
		if o.publisher.targets[i].RunID != "run-1" {
			t.Errorf("unexpected run id %q", o.publisher.targets[i].RunID)
		}
	}
}

func TestOrchestratorSweepCancelled(t *testing.T) {
	o := newTestOrchestrator(t, newToneCapturer())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g, err := o.Sweep(ctx, sweep.Range{Start: 100e6, End: 103.2e6})
	if err != nil {
		t.Fatalf("cancelled sweep should not fail: %v", err)
	}
	if g.Summary.Attempted != 0 {
		t.Errorf("expected no steps, got %d", g.Summary.Attempted)
	}

	sweeps, err := o.store.Sweeps(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Failed to read sweeps: %v", err)
	}
	if len(sweeps) != 1 || sweeps[0].Attempted != 0 {
		t.Errorf("the interrupted sweep should be stored: %+v", sweeps)
	}

	if lists, _ := filepath.Glob(filepath.Join(o.reportDir, "top_signals_*.txt")); len(lists) != 0 {
		t.Errorf("no investigation list expected without detections: %v", lists)
	}
}

func TestOrchestratorSweepFatal(t *testing.T) {
	o := newTestOrchestrator(t, newToneCapturer())

	_, err := o.Sweep(context.Background(), sweep.Range{Start: 103.2e6, End: 100e6})
	if !errors.Is(err, sweep.ErrFatalConfiguration) {
		t.Fatalf("expected ErrFatalConfiguration, got %v", err)
	}

	if _, err = o.store.Sweeps(context.Background(), "run-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("nothing should be stored, got %v", err)
	}
}

func TestOrchestratorSweepUnavailable(t *testing.T) {
	capturer := newToneCapturer()
	for _, f := range []float64{100e6, 101.6e6, 103.2e6, 104.8e6} {
		capturer.fail[f] = sdr.ErrCaptureUnavailable
	}

	o := newTestOrchestrator(t, capturer)

	g, err := o.Sweep(context.Background(), sweep.Range{Start: 100e6, End: 104.8e6, Step: 1.6e6})
	if !errors.Is(err, sdr.ErrCaptureUnavailable) {
		t.Fatalf("expected ErrCaptureUnavailable, got %v", err)
	}
	if g == nil || g.Summary.Unavailable != sweep.DefaultAbortAfterUnavailable {
		t.Fatalf("expected the aborted sweep to be returned, got %+v", g)
	}

	sweeps, err := o.store.Sweeps(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Failed to read sweeps: %v", err)
	}
	if len(sweeps) != 1 || sweeps[0].Failed != sweep.DefaultAbortAfterUnavailable {
		t.Errorf("the aborted sweep should be stored: %+v", sweeps)
	}
}

func TestOrchestratorMonitor(t *testing.T) {
	o := newTestOrchestrator(t, newToneCapturer())
	o.Orchestrator.reportDir = ""

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := o.Monitor(ctx, sweep.Range{Start: 100e6, End: 101.6e6, Step: 1.6e6}, time.Millisecond, 2); err != nil {
		t.Fatalf("Failed to monitor: %v", err)
	}

	sweeps, err := o.store.Sweeps(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Failed to read sweeps: %v", err)
	}
	if len(sweeps) != 2 || sweeps[0].Generation != 0 || sweeps[1].Generation != 1 {
		t.Fatalf("expected generations 0 and 1, got %d sweeps", len(sweeps))
	}

	// the second generation sees the same tones, nothing new to dispatch
	if len(o.publisher.targets) != 2 {
		t.Errorf("expected 2 published detections, got %d", len(o.publisher.targets))
	}
	for _, target := range o.publisher.targets {
		if target.Generation != 0 {
			t.Errorf("unexpected generation %d", target.Generation)
		}
	}
}
