package band

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultTableRoute(t *testing.T) {
	table := DefaultTable()

	testCases := []struct {
		name string
		freq float64
		want Route
	}{
		{"fm broadcast", 100.1e6, Route{"rtl_fm", "FM Broadcast", "FM radio stations"}},
		{"433 ism", 433.92e6, Route{"rtl_433", "433 MHz ISM", "Weather, IoT, smart home"}},
		{"adsb", 1090e6, Route{"dump1090", "ADS-B", "Aircraft transponders"}},
		{"2.4 ghz", 2.44e9, Route{"catsniffer", "2.4 GHz ISM", "WiFi, BLE, Zigbee, Thread"}},
		{"inclusive upper bound", 108e6, Route{"rtl_fm", "FM Broadcast", "FM radio stations"}},
		{"shared boundary first wins", 137e6, Route{"rtl_fm", "Aviation", "Air traffic control"}},
		{"below every entry", 1, Route{DefaultDecoder, UnknownBand, "Generic FM demod"}},
		{"above every entry", 100e9, Route{DefaultDecoder, UnknownBand, "Generic FM demod"}},
		{"gap between entries", 600e6, Route{DefaultDecoder, UnknownBand, "Generic FM demod"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := table.Route(tc.freq); got != tc.want {
				t.Errorf("Route(%g) = %+v, want %+v", tc.freq, got, tc.want)
			}
		})
	}

	if n := len(table.Definitions()); n != 10 {
		t.Errorf("default table has %d entries, want 10", n)
	}
}

func TestRouteFirstMatchWins(t *testing.T) {
	table, err := NewTable([]Definition{
		{Start: 400e6, End: 500e6, Name: "Wide", Decoder: "first"},
		{Start: 430e6, End: 440e6, Name: "Narrow", Decoder: "second"},
	})
	if err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}

	if got := table.Route(433e6); got.Decoder != "first" || got.Band != "Wide" {
		t.Errorf("expected the earlier entry to win, got %+v", got)
	}
}

func TestNewTableValidation(t *testing.T) {
	testCases := []struct {
		name string
		defs []Definition
	}{
		{"inverted interval", []Definition{{Start: 2, End: 1, Decoder: "x"}}},
		{"missing decoder", []Definition{{Start: 1, End: 2}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewTable(tc.defs); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestDefinitionsIsCopy(t *testing.T) {
	table := DefaultTable()

	defs := table.Definitions()
	defs[0].Decoder = "tampered"

	if table.Route(30e6).Decoder != "rtl_fm" {
		t.Error("modifying Definitions() result changed the table")
	}
}

func TestLoadTable(t *testing.T) {
	content := `
default:
  decoder: rtl_433
  description: Fallback
bands:
  - start: 100
    end: 200
    name: Test
    decoder: custom
    description: Test band
`
	path := filepath.Join(t.TempDir(), "bands.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write table: %v", err)
	}

	table, err := LoadTable(path)
	if err != nil {
		t.Fatalf("LoadTable failed: %v", err)
	}

	if got := table.Route(150); got.Decoder != "custom" {
		t.Errorf("unexpected route: %+v", got)
	}

	want := Route{Decoder: "rtl_433", Band: UnknownBand, Description: "Fallback"}
	if got := table.Route(1); got != want {
		t.Errorf("fallback = %+v, want %+v", got, want)
	}
}

func TestParseTableErrors(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"no bands", "default:\n  decoder: x\n"},
		{"malformed", "bands: [\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseTable(strings.NewReader(tc.input)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestEstimateSignalType(t *testing.T) {
	testCases := []struct {
		freq      float64
		bandwidth float64
		want      string
	}{
		{98.5e6, 200e3, "FM Radio"},
		{121.5e6, 8e3, "Airband Voice"},
		{137.5e6, 40e3, "NOAA Satellite"},
		{145e6, 12e3, "2m Ham Radio"},
		{156.8e6, 12e3, "Marine VHF"},
		{446e6, 12.5e3, "PMR/Business"},
		{433.92e6, 100e3, "ISM / IoT"},
		{800e6, 5e6, "LTE / 4G"},
		{800e6, 1e6, "Pager/Utility"},
		{1090e6, 2e6, "ADS-B Aircraft"},
		{1575.42e6, 2e6, "GPS L1"},
		{1850e6, 200e3, "LTE / GSM"},
		{2437e6, 20e6, "WiFi 2.4 GHz"},
		{2402e6, 2e6, "Bluetooth/ZigBee"},
		{2650e6, 10e6, "LTE Band 7"},
		{50e9, 1e3, "Unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.want, func(t *testing.T) {
			if got := EstimateSignalType(tc.freq, tc.bandwidth); got != tc.want {
				t.Errorf("EstimateSignalType(%g, %g) = %s, want %s", tc.freq, tc.bandwidth, got, tc.want)
			}
		})
	}
}

func TestEstimateIndependentOfRouting(t *testing.T) {
	// 137 MHz routes to Aviation but is labelled as Airband Voice, 146 MHz has a label but no route
	table := DefaultTable()

	if got := table.Route(146e6); got.Band != UnknownBand {
		t.Errorf("unexpected route for 146 MHz: %+v", got)
	}
	if got := EstimateSignalType(146e6, 12e3); got != "2m Ham Radio" {
		t.Errorf("unexpected label for 146 MHz: %s", got)
	}
}
