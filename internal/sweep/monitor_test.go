package sweep

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/roman-kulish/rf-sweep/internal/spectrum"
)

func TestMonitorReportsNewSignals(t *testing.T) {
	capturer := newFakeCapturer()
	capturer.toneBins = func(call int) int {
		if call < 2 {
			return 300
		}
		return -400 // moves by ~683 kHz on the third generation
	}

	c := newTestController(t, capturer)

	var newCounts []int
	var indices []int

	m := NewMonitor(c, Range{Start: 100e6, End: 100.5e6, Step: 1.6e6},
		WithInterval(time.Millisecond),
		WithMaxGenerations(3),
		WithGenerationHandler(func(_ context.Context, g *Generation) error {
			newCounts = append(newCounts, len(g.New))
			indices = append(indices, g.Index)
			return nil
		}))

	if err := m.Run(context.Background()); err != nil {
		t.Fatalf("Monitor failed: %v", err)
	}

	if !slices.Equal(newCounts, []int{1, 0, 1}) {
		t.Errorf("new signals per generation = %v, want [1 0 1]", newCounts)
	}
	if !slices.Equal(indices, []int{0, 1, 2}) {
		t.Errorf("generation indices = %v", indices)
	}
	if capturer.calls != 3 {
		t.Errorf("captured %d times, want 3", capturer.calls)
	}
}

func TestMonitorStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := newTestController(t, newFakeCapturer())

	generations := 0
	m := NewMonitor(c, Range{Start: 100e6, End: 100.5e6, Step: 1.6e6},
		WithInterval(time.Hour),
		WithGenerationHandler(func(context.Context, *Generation) error {
			generations++
			cancel()
			return nil
		}))

	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop after cancellation")
	}

	if generations != 1 {
		t.Errorf("ran %d generations, want 1", generations)
	}
}

func TestDiff(t *testing.T) {
	detection := func(freq float64, band string) Detection {
		return Detection{Signal: spectrum.Signal{Frequency: freq}, Band: band}
	}

	current := []Detection{
		detection(100.01e6, "FM Broadcast"),
		detection(100.04e6, "FM Broadcast"), // same 100 kHz key
		detection(100.30e6, "FM Broadcast"),
	}

	fresh, keys := diff(nil, current)
	if len(fresh) != 2 || len(keys) != 2 {
		t.Fatalf("first generation: %d new, %d keys, want 2 and 2", len(fresh), len(keys))
	}

	next := []Detection{
		detection(100.02e6, "FM Broadcast"),
		detection(100.30e6, "Unknown"), // same frequency, different band
	}

	fresh, _ = diff(keys, next)
	if len(fresh) != 1 || fresh[0].Band != "Unknown" {
		t.Errorf("second generation: unexpected new detections %+v", fresh)
	}
}
