package app

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/roman-kulish/rf-sweep/internal/spectrum"
	"github.com/roman-kulish/rf-sweep/internal/storage"
	"github.com/roman-kulish/rf-sweep/internal/sweep"
)

type fakeReader struct {
	runs    []string
	sweeps  map[string][]*storage.SweepRecord
	steps   map[int64][]*storage.StepRecord
	signals map[int64][]*storage.SignalRecord
}

func (r *fakeReader) Runs(context.Context) ([]string, error) {
	return r.runs, nil
}

func (r *fakeReader) Sweeps(_ context.Context, runID string) ([]*storage.SweepRecord, error) {
	sweeps, ok := r.sweeps[runID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return sweeps, nil
}

func (r *fakeReader) Steps(_ context.Context, sweepID int64) ([]*storage.StepRecord, error) {
	return r.steps[sweepID], nil
}

func (r *fakeReader) Signals(_ context.Context, sweepID int64) ([]*storage.SignalRecord, error) {
	return r.signals[sweepID], nil
}

func newFakeReader(withFrames bool) *fakeReader {
	frame := testFrame(100e6, -40, -40, -40, 10, -40, -40, -40, -40)
	if !withFrames {
		frame = nil
	}

	return &fakeReader{
		runs:   []string{"run-0", "run-1"},
		sweeps: map[string][]*storage.SweepRecord{"run-1": {testSweep(1, 0), testSweep(2, 1)}},
		steps: map[int64][]*storage.StepRecord{
			1: {{SweepID: 1, CenterFrequency: 100e6, Frame: frame}},
			2: {{SweepID: 2, CenterFrequency: 100e6, Frame: frame}},
		},
		signals: map[int64][]*storage.SignalRecord{
			1: {{SweepID: 1, Signal: spectrum.Signal{Frequency: 99.875e6, RegionStart: 99.875e6, RegionEnd: 99.875e6}}},
		},
	}
}

func TestLoadWaterfall(t *testing.T) {
	w, err := LoadWaterfall(context.Background(), newFakeReader(true), "run-1", 0)
	if err != nil {
		t.Fatalf("Failed to load waterfall: %v", err)
	}

	if w.Width != 16 || w.Height() != 2 {
		t.Errorf("waterfall is %dx%d, want 16x2", w.Width, w.Height())
	}
	if len(w.Rows[0].Markers) != 1 || len(w.Rows[1].Markers) != 0 {
		t.Errorf("unexpected markers: %+v %+v", w.Rows[0].Markers, w.Rows[1].Markers)
	}

	w, err = LoadWaterfall(context.Background(), newFakeReader(true), "run-1", 8)
	if err != nil {
		t.Fatalf("Failed to load waterfall: %v", err)
	}
	if w.Width != 8 {
		t.Errorf("width = %d, want 8", w.Width)
	}
}

func TestLoadWaterfallErrors(t *testing.T) {
	ctx := context.Background()

	if _, err := LoadWaterfall(ctx, newFakeReader(false), "run-1", 0); !errors.Is(err, ErrNoSpectra) {
		t.Errorf("expected ErrNoSpectra, got %v", err)
	}
	if _, err := LoadWaterfall(ctx, newFakeReader(true), "run-2", 0); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLatestRun(t *testing.T) {
	runID, err := latestRun(context.Background(), newFakeReader(true))
	if err != nil {
		t.Fatalf("Failed to find latest run: %v", err)
	}
	if runID != "run-1" {
		t.Errorf("latest run = %s, want run-1", runID)
	}

	if _, err = latestRun(context.Background(), &fakeReader{}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// seedStore writes a two generation run the way the sweeper does
func seedStore(t *testing.T, path string) {
	t.Helper()

	ctx := context.Background()
	store := storage.NewSqliteStore(path, storage.WithFrames(true))
	defer store.Close()

	for g := range 2 {
		rec := testSweep(0, g)
		sweepID, err := store.CreateSweep(ctx, rec)
		if err != nil {
			t.Fatalf("Failed to create sweep: %v", err)
		}

		frame := testFrame(100e6, -40, -40, -40, 10, -40, -40, -40, -40)
		results := []sweep.Result{
			{
				Step:            0,
				CenterFrequency: 100e6,
				Timestamp:       rec.StartedAt,
				Frame:           frame,
				Detections: []sweep.Detection{{
					Signal:          spectrum.Signal{Frequency: frame.Frequencies[3], PowerDB: 10, RegionStart: frame.Frequencies[3], RegionEnd: frame.Frequencies[3]},
					CenterFrequency: 100e6,
					Timestamp:       rec.StartedAt,
				}},
			},
			{
				Step:            1,
				CenterFrequency: 101e6,
				Timestamp:       rec.StartedAt.Add(time.Second),
				Frame:           testFrame(101e6, -40, -40, -40, -40, -40, -40, -40, -40),
			},
		}

		if err = store.StoreResults(ctx, sweepID, results); err != nil {
			t.Fatalf("Failed to store results: %v", err)
		}
		summary := sweep.Summarize(results, time.Second)
		if err = store.FinishSweep(ctx, sweepID, summary, rec.StartedAt.Add(time.Second)); err != nil {
			t.Fatalf("Failed to finish sweep: %v", err)
		}
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sweeps.sqlite")
	seedStore(t, dbPath)

	config := NewConfig()
	config.Storage.Path = dbPath
	config.OutputFile = filepath.Join(dir, "waterfall")
	if err := config.Validate(); err != nil {
		t.Fatalf("Failed to validate config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := Run(context.Background(), config, logger); err != nil {
		t.Fatalf("Failed to run: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "waterfall.png"))
	if err != nil {
		t.Fatalf("Failed to open image: %v", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("Failed to decode image: %v", err)
	}
	if format != "png" {
		t.Errorf("format = %s, want png", format)
	}
	if cfg.Width != 16+defaultLeftBorder+defaultRightBorder || cfg.Height != 2*defaultRowHeight+defaultTopBorder+defaultBottomBorder {
		t.Errorf("image is %dx%d", cfg.Width, cfg.Height)
	}

	var out bytes.Buffer
	if err = ListRuns(context.Background(), config, &out); err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if !strings.Contains(out.String(), "run-1") || !strings.Contains(out.String(), "SWEEPS") {
		t.Errorf("unexpected run list:\n%s", out.String())
	}
}
