package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/roman-kulish/rf-sweep/internal/sdr"
	"github.com/roman-kulish/rf-sweep/internal/spectrum"
	"github.com/roman-kulish/rf-sweep/internal/sweep"
)

var testTime = time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

func testFrame(center float64, powers ...float64) *spectrum.Frame {
	n := len(powers)
	rate := 2e6
	f := spectrum.Frame{
		Frequencies:     make([]float64, n),
		PowerDB:         powers,
		NoiseFloorDB:    spectrum.Median(powers),
		CenterFrequency: center,
		SampleRate:      rate,
	}
	binWidth := rate / float64(n)
	for k := range f.Frequencies {
		f.Frequencies[k] = center + float64(k-n/2)*binWidth
	}
	return &f
}

func testResults() []sweep.Result {
	frame := testFrame(100e6, -40, -40.5, -39.75, 12.25, -41, -40, -40.25, -39.5)

	return []sweep.Result{
		{
			Step:            0,
			CenterFrequency: 100e6,
			Timestamp:       testTime,
			Frame:           frame,
			Detections: []sweep.Detection{{
				Signal: spectrum.Signal{
					Frequency:   frame.Frequencies[3],
					PowerDB:     12.25,
					Bandwidth:   250e3,
					RegionStart: frame.Frequencies[3],
					RegionEnd:   frame.Frequencies[3],
				},
				Step:            0,
				CenterFrequency: 100e6,
				Timestamp:       testTime,
				Band:            "FM Broadcast",
				Decoder:         "rtl_fm",
				Description:     "FM radio stations",
				Type:            "FM Radio",
			}},
		},
		{
			Step:            1,
			CenterFrequency: 101.6e6,
			Timestamp:       testTime.Add(time.Second),
			Err:             fmt.Errorf("%w: no result after 10.1s", sdr.ErrCaptureTimeout),
		},
	}
}

func newTestStore(t *testing.T, options ...func(s *SQLStore)) *SQLStore {
	t.Helper()

	s := NewSqliteStore(filepath.Join(t.TempDir(), "sweeps.db"), options...)
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Failed to close store: %v", err)
		}
	})
	return s
}

func createTestSweep(t *testing.T, s Store, runID string, generation int) int64 {
	t.Helper()

	id, err := s.CreateSweep(context.Background(), &SweepRecord{
		RunID:          runID,
		Generation:     generation,
		Device:         "UHD",
		DeviceID:       "0",
		StartFrequency: 100e6,
		EndFrequency:   101.6e6,
		Step:           1.6e6,
		SampleRate:     2e6,
		FFTSize:        8,
		Gain:           40,
		ThresholdDB:    10,
		StartedAt:      testTime,
	})
	if err != nil {
		t.Fatalf("Failed to create sweep: %v", err)
	}
	return id
}

func TestSqliteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, WithFrames(true))

	results := testResults()
	id := createTestSweep(t, s, "run-1", 0)

	if err := s.StoreResults(ctx, id, results); err != nil {
		t.Fatalf("Failed to store results: %v", err)
	}
	summary := sweep.Summarize(results, 2*time.Second)
	if err := s.FinishSweep(ctx, id, summary, testTime.Add(2*time.Second)); err != nil {
		t.Fatalf("Failed to finish sweep: %v", err)
	}

	sweeps, err := s.Sweeps(ctx, "run-1")
	if err != nil {
		t.Fatalf("Failed to read sweeps: %v", err)
	}
	if len(sweeps) != 1 {
		t.Fatalf("expected 1 sweep, got %d", len(sweeps))
	}

	rec := sweeps[0]
	if rec.ID != id || rec.Device != "UHD" || rec.FFTSize != 8 || rec.Step != 1.6e6 {
		t.Errorf("unexpected sweep record: %+v", rec)
	}
	if !rec.StartedAt.Equal(testTime) {
		t.Errorf("started at %s, want %s", rec.StartedAt, testTime)
	}
	if rec.FinishedAt == nil || !rec.FinishedAt.Equal(testTime.Add(2*time.Second)) {
		t.Errorf("unexpected finished at: %v", rec.FinishedAt)
	}
	if rec.Attempted != 2 || rec.Succeeded != 1 || rec.Failed != 1 || rec.Signals != 1 {
		t.Errorf("unexpected tallies: %+v", rec)
	}

	steps, err := s.Steps(ctx, id)
	if err != nil {
		t.Fatalf("Failed to read steps: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}

	ok, failed := steps[0], steps[1]
	if ok.Error != nil || ok.Frame == nil {
		t.Fatalf("expected a stored frame for step 0, got %+v", ok)
	}
	want := results[0].Frame
	if ok.Frame.Len() != want.Len() {
		t.Fatalf("frame has %d bins, want %d", ok.Frame.Len(), want.Len())
	}
	for k := range want.PowerDB {
		if ok.Frame.PowerDB[k] != want.PowerDB[k] {
			t.Errorf("bin %d power = %g, want %g", k, ok.Frame.PowerDB[k], want.PowerDB[k])
		}
		if ok.Frame.Frequencies[k] != want.Frequencies[k] {
			t.Errorf("bin %d frequency = %g, want %g", k, ok.Frame.Frequencies[k], want.Frequencies[k])
		}
	}
	if ok.NoiseFloorDB == nil || *ok.NoiseFloorDB != want.NoiseFloorDB {
		t.Errorf("unexpected noise floor: %v", ok.NoiseFloorDB)
	}

	if failed.Frame != nil || failed.NoiseFloorDB != nil {
		t.Errorf("failed step should carry no frame: %+v", failed)
	}
	if failed.Error == nil || !strings.HasPrefix(*failed.Error, sdr.ErrCaptureTimeout.Error()) {
		t.Errorf("unexpected step error: %v", failed.Error)
	}
	if !failed.Timestamp.Equal(testTime.Add(time.Second)) {
		t.Errorf("unexpected step timestamp: %s", failed.Timestamp)
	}

	signals, err := s.Signals(ctx, id)
	if err != nil {
		t.Fatalf("Failed to read signals: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(signals))
	}
	sig := signals[0]
	d := results[0].Detections[0]
	if sig.Signal != d.Signal || sig.Band != d.Band || sig.Decoder != d.Decoder || sig.Type != d.Type || sig.Description != d.Description {
		t.Errorf("signal = %+v, want %+v", sig, d)
	}
}

func TestSqliteStoreWithoutFrames(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	id := createTestSweep(t, s, "run-1", 0)
	if err := s.StoreResults(ctx, id, testResults()); err != nil {
		t.Fatalf("Failed to store results: %v", err)
	}

	steps, err := s.Steps(ctx, id)
	if err != nil {
		t.Fatalf("Failed to read steps: %v", err)
	}
	if steps[0].Frame != nil {
		t.Error("frame stored although frames are disabled")
	}
	if steps[0].NoiseFloorDB == nil {
		t.Error("noise floor should be stored without frames")
	}
}

func TestSqliteStoreBatches(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// more rows than a single INSERT carries
	n := 3*batchRows + 5
	results := make([]sweep.Result, n)
	for i := range results {
		results[i] = sweep.Result{
			Step:            i,
			CenterFrequency: 100e6 + float64(i)*1e6,
			Timestamp:       testTime,
			Frame:           testFrame(100e6+float64(i)*1e6, -40, 0, -40, -40),
			Detections: []sweep.Detection{{
				Signal:          spectrum.Signal{Frequency: 100e6 + float64(i)*1e6, PowerDB: float64(i)},
				Step:            i,
				CenterFrequency: 100e6 + float64(i)*1e6,
				Timestamp:       testTime,
			}},
		}
	}

	id := createTestSweep(t, s, "run-1", 0)
	if err := s.StoreResults(ctx, id, results); err != nil {
		t.Fatalf("Failed to store results: %v", err)
	}

	steps, err := s.Steps(ctx, id)
	if err != nil {
		t.Fatalf("Failed to read steps: %v", err)
	}
	if len(steps) != n {
		t.Errorf("expected %d steps, got %d", n, len(steps))
	}
	for i, st := range steps {
		if st.Step != i {
			t.Fatalf("steps out of order: index %d holds step %d", i, st.Step)
		}
	}

	signals, err := s.Signals(ctx, id)
	if err != nil {
		t.Fatalf("Failed to read signals: %v", err)
	}
	if len(signals) != n {
		t.Errorf("expected %d signals, got %d", n, len(signals))
	}
}

func TestSqliteStoreRuns(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first := createTestSweep(t, s, "run-a", 0)
	second := createTestSweep(t, s, "run-a", 1)
	createTestSweep(t, s, "run-b", 0)

	runs, err := s.Runs(ctx)
	if err != nil {
		t.Fatalf("Failed to read runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %v", runs)
	}

	sweeps, err := s.Sweeps(ctx, "run-a")
	if err != nil {
		t.Fatalf("Failed to read sweeps: %v", err)
	}
	if len(sweeps) != 2 || sweeps[0].ID != first || sweeps[1].ID != second {
		t.Errorf("unexpected generations: %+v", sweeps)
	}
	if sweeps[0].FinishedAt != nil {
		t.Error("unfinished sweep reports a finish time")
	}
}

func TestSqliteStoreNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	createTestSweep(t, s, "run-1", 0)

	if _, err := s.Sweeps(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for an unknown run, got %v", err)
	}
	if err := s.FinishSweep(ctx, 42, sweep.Summary{}, testTime); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for an unknown sweep, got %v", err)
	}
}

func TestStoreResultsEmpty(t *testing.T) {
	s := NewSqliteStore(filepath.Join(t.TempDir(), "unused.db"))
	if err := s.StoreResults(context.Background(), 1, nil); err != nil {
		t.Errorf("storing no results should be a no-op, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Failed to close unused store: %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s := NewSqliteStore(filepath.Join(t.TempDir(), "sweeps.db"))
	createTestSweep(t, s, "run-1", 0)

	for i := 0; i < 2; i++ {
		if err := s.Close(); err != nil {
			t.Fatalf("Close #%d failed: %v", i+1, err)
		}
	}
}

func TestFrameCodec(t *testing.T) {
	frame := testFrame(433.92e6, -120, -3.5, 0, 7.75)

	got, err := decodeFrame(encodeFrame(frame), frame.CenterFrequency, frame.SampleRate, frame.NoiseFloorDB)
	if err != nil {
		t.Fatalf("Failed to decode frame: %v", err)
	}
	for k := range frame.PowerDB {
		if got.PowerDB[k] != frame.PowerDB[k] || math.Abs(got.Frequencies[k]-frame.Frequencies[k]) > 1e-6 {
			t.Errorf("bin %d = (%g, %g), want (%g, %g)", k, got.Frequencies[k], got.PowerDB[k], frame.Frequencies[k], frame.PowerDB[k])
		}
	}

	if _, err = decodeFrame([]byte{1, 2, 3}, 0, 1, 0); err == nil {
		t.Error("expected error for a truncated blob")
	}
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"sqlite default driver", Config{Path: "sweeps.db"}, false},
		{"sqlite explicit", Config{Driver: DriverSqlite, Path: "sweeps.db"}, false},
		{"sqlite without path", Config{Driver: DriverSqlite}, true},
		{"mysql", Config{Driver: DriverMySQL, MySQL: &MySQLConfig{Addr: "127.0.0.1:3306", DBName: "rfsweep"}}, false},
		{"mysql without settings", Config{Driver: DriverMySQL}, true},
		{"unknown driver", Config{Driver: "postgres"}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.config.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestMySQLConfigDSN(t *testing.T) {
	passwordFile := filepath.Join(t.TempDir(), "password")
	if err := os.WriteFile(passwordFile, []byte("secret\n"), 0o600); err != nil {
		t.Fatalf("Failed to write password file: %v", err)
	}

	cfg := MySQLConfig{Addr: "127.0.0.1:3306", User: "rf", PasswordFile: passwordFile, DBName: "rfsweep"}

	dsn, err := cfg.DSN()
	if err != nil {
		t.Fatalf("Failed to build DSN: %v", err)
	}
	if !strings.HasPrefix(dsn, "rf:secret@tcp(127.0.0.1:3306)/rfsweep") {
		t.Errorf("unexpected DSN: %s", dsn)
	}

	cfg.PasswordFile = filepath.Join(t.TempDir(), "missing")
	if _, err = cfg.DSN(); err == nil {
		t.Error("expected error for a missing password file")
	}

	if _, err = (&MySQLConfig{DBName: "x"}).DSN(); err == nil {
		t.Error("expected error without server address")
	}
}

func TestOpen(t *testing.T) {
	s, err := Open(&Config{Path: filepath.Join(t.TempDir(), "sweeps.db")})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	if s.driver != DriverSqlite {
		t.Errorf("expected sqlite3 driver, got %s", s.driver)
	}

	if _, err = Open(&Config{Driver: "oracle"}); err == nil {
		t.Error("expected error for unsupported driver")
	}
}
