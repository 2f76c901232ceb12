package quickscan

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/roman-kulish/rf-sweep/internal/band"
	"github.com/roman-kulish/rf-sweep/internal/sdr"
	"github.com/roman-kulish/rf-sweep/internal/sdr/rtl"
)

// fakeSource answers with canned rtl_power lines per band start frequency
type fakeSource struct {
	lines  map[float64][]string
	errs   map[float64]error
	max    float64
	visits []float64
	bins   []float64
}

func (f *fakeSource) Sweep(_ context.Context, start, _, binWidth float64) ([]*sdr.PowerSweep, error) {
	f.visits = append(f.visits, start)
	f.bins = append(f.bins, binWidth)

	var sweeps []*sdr.PowerSweep
	for _, line := range f.lines[start] {
		sweep, err := rtl.ParsePowerLine(line)
		if err != nil {
			continue
		}
		sweeps = append(sweeps, sweep)
	}
	return sweeps, f.errs[start]
}

func (f *fakeSource) MaxFrequency() float64 {
	return f.max
}

func (f *fakeSource) Device() string {
	return "Fake"
}

func testTable(t *testing.T) *band.Table {
	t.Helper()

	table, err := band.NewTable([]band.Definition{
		{Start: 433.05e6, End: 434.79e6, Name: "433 MHz ISM", Decoder: "rtl_433"},
		{Start: 1090e6, End: 1090.5e6, Name: "ADS-B", Decoder: "dump1090"},
		{Start: 2400e6, End: 2483.5e6, Name: "2.4 GHz ISM", Decoder: "catsniffer"},
	})
	if err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}
	return table
}

func TestNoiseFloor(t *testing.T) {
	testCases := []struct {
		name   string
		powers []float64
		want   float64
		ok     bool
	}{
		{"empty", nil, 0, false},
		{"short line uses minimum", []float64{-40, -50, -45}, -50, true},
		{"lowest tenth", []float64{-10, -20, -30, -40, -50, -60, -70, -80, -90, -100, -10, -10, -10, -10, -10, -10, -10, -10, -10, -95}, -97.5, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NoiseFloor(tc.powers)
			if ok != tc.ok || math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("NoiseFloor() = %g, %v, want %g, %v", got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestBinWidth(t *testing.T) {
	testCases := []struct {
		def  band.Definition
		want float64
	}{
		{band.Definition{Start: 88e6, End: 108e6}, 100e3},
		{band.Definition{Start: 1090e6, End: 1090.5e6}, 5e3},
		{band.Definition{Start: 433.05e6, End: 434.79e6}, 17.4e3},
	}

	for _, tc := range testCases {
		if got := BinWidth(tc.def); math.Abs(got-tc.want) > 1e-6 {
			t.Errorf("BinWidth(%g-%g) = %g, want %g", tc.def.Start, tc.def.End, got, tc.want)
		}
	}
}

func TestScanBandLimit(t *testing.T) {
	source := &fakeSource{max: RTLMaxFrequency}
	s := NewScanner(source, testTable(t))

	bands := s.Bands()
	if len(bands) != 2 || bands[1].Name != "ADS-B" {
		t.Fatalf("unexpected bands: %+v", bands)
	}

	if _, err := s.Scan(context.Background()); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(source.visits) != 2 {
		t.Errorf("visited %d bands, want 2", len(source.visits))
	}
}

func TestScanDetections(t *testing.T) {
	source := &fakeSource{
		max: HackRFMaxFrequency,
		lines: map[float64][]string{
			433.05e6: {
				// noise floor -60, one reading 25 dB above, one 5 dB above
				"2024-01-15, 10:30:00, 433050000, 433250000, 20000.00, 10, -60, -60, -35, -60, -55, -60, -60, -60, -60, -60",
				"malformed line",
				"2024-01-15, 10:30:01, 433250000, 433450000, 20000.00, 10, -60, -48, -60, -60, -60, -60, -30, -60, -60, -40",
			},
			1090e6: {
				"2024-01-15, 10:30:00, 1090000000, 1090500000, 5000.00, 10, -70, -70, -70, nan, -70",
			},
		},
	}

	s := NewScanner(source, testTable(t))

	reports, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("got %d reports, want 3", len(reports))
	}

	ism := reports[0]
	if ism.Found != 4 {
		t.Errorf("found %d detections, want 4", ism.Found)
	}
	if len(ism.Detections) != DefaultTopN {
		t.Fatalf("kept %d detections, want %d", len(ism.Detections), DefaultTopN)
	}

	wantStrength := []float64{30, 25, 20}
	for i, d := range ism.Detections {
		if d.StrengthDB != wantStrength[i] {
			t.Errorf("detection %d strength = %g, want %g", i, d.StrengthDB, wantStrength[i])
		}
		if d.Decoder != "rtl_433" || d.Band != "433 MHz ISM" {
			t.Errorf("detection %d routed to %s / %s", i, d.Band, d.Decoder)
		}
	}

	// third bin of the first line, reported at its center
	if got := ism.Detections[1].Frequency; got != 433_100_000 {
		t.Errorf("frequency = %g, want 433100000", got)
	}

	adsb := reports[1]
	if adsb.Found != 0 || adsb.Skipped != 1 {
		t.Errorf("unexpected ADS-B report: %+v", adsb)
	}

	if reports[2].Err != nil || reports[2].Found != 0 {
		t.Errorf("unexpected 2.4 GHz report: %+v", reports[2])
	}
}

func TestScanBandFailures(t *testing.T) {
	source := &fakeSource{
		max: HackRFMaxFrequency,
		errs: map[float64]error{
			433.05e6: sdr.ErrCaptureUnavailable,
		},
	}

	reports, err := NewScanner(source, testTable(t)).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if !errors.Is(reports[0].Err, sdr.ErrCaptureUnavailable) {
		t.Errorf("expected band failure to be recorded, got %v", reports[0].Err)
	}
	if len(reports) != 3 {
		t.Errorf("scan stopped after failure: %d reports", len(reports))
	}

	source.errs[1090e6] = sdr.ErrCaptureUnavailable
	source.errs[2400e6] = sdr.ErrCaptureUnavailable

	if _, err = NewScanner(source, testTable(t)).Scan(context.Background()); !errors.Is(err, sdr.ErrCaptureUnavailable) {
		t.Errorf("expected error when every band fails, got %v", err)
	}
}

func TestScanKeepsPartialReportOnTimeout(t *testing.T) {
	source := &fakeSource{
		max: RTLMaxFrequency,
		lines: map[float64][]string{
			1090e6: {"2024-01-15, 10:30:00, 1090000000, 1090050000, 5000.00, 10, -70, -70, -70, -70, -70, -70, -70, -70, -70, -40"},
		},
		errs: map[float64]error{
			1090e6: sdr.ErrCaptureTimeout,
		},
	}

	reports, err := NewScanner(source, testTable(t)).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if reports[1].Err != nil || reports[1].Found != 1 {
		t.Errorf("expected partial report to be used, got %+v", reports[1])
	}
}
