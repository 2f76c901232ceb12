package quickscan

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/floats"

	"github.com/roman-kulish/rf-sweep/internal/band"
	"github.com/roman-kulish/rf-sweep/internal/sdr"
)

const (
	DefaultThresholdDB = 10
	DefaultTopN        = 3

	// DefaultMaxBinWidth caps the report resolution; narrow bands use at least 100 bins
	DefaultMaxBinWidth = 100e3
	minBins            = 100

	// noiseFraction is the share of the lowest readings averaged into the noise floor
	noiseFraction = 10
)

// Detection is one report bin standing out from its line's noise floor
type Detection struct {
	Frequency    float64   `json:"frequency"`
	PowerDB      float64   `json:"power_db"`
	StrengthDB   float64   `json:"strength_db"` // PowerDB above NoiseFloorDB
	NoiseFloorDB float64   `json:"noise_floor_db"`
	Band         string    `json:"band"`
	Decoder      string    `json:"decoder"`
	Description  string    `json:"description"`
	Type         string    `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
}

// BandReport is the outcome of scanning one band
type BandReport struct {
	Band       band.Definition `json:"band"`
	BinWidth   float64         `json:"bin_width"`
	Found      int             `json:"found"`      // detections before truncation to the top N
	Detections []Detection     `json:"detections"` // strongest first
	Skipped    int             `json:"skipped"`    // readings that were not valid numbers
	Err        error           `json:"-"`
}

// WithLogger sets the logger for the scanner
func WithLogger(logger *slog.Logger) func(s *Scanner) {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// WithThreshold sets the detection margin above the noise floor, in dB
func WithThreshold(db float64) func(s *Scanner) {
	return func(s *Scanner) {
		s.thresholdDB = db
	}
}

// WithTopN sets how many detections are kept per band
func WithTopN(n int) func(s *Scanner) {
	return func(s *Scanner) {
		s.topN = n
	}
}

// WithRouter replaces the band table used to route detections
func WithRouter(table *band.Table) func(s *Scanner) {
	return func(s *Scanner) {
		s.router = table
	}
}

// Scanner surveys every band of a routing table with a wideband power report
type Scanner struct {
	source Source
	bands  []band.Definition
	router *band.Table

	thresholdDB float64
	topN        int

	logger *slog.Logger
}

// NewScanner creates a Scanner for the bands of table reachable by source
func NewScanner(source Source, table *band.Table, options ...func(s *Scanner)) *Scanner {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	s := Scanner{
		source:      source,
		router:      table,
		thresholdDB: DefaultThresholdDB,
		topN:        DefaultTopN,
		logger:      logger,
	}

	for _, option := range options {
		option(&s)
	}

	for _, def := range table.Definitions() {
		if def.End <= source.MaxFrequency() && def.End > def.Start {
			s.bands = append(s.bands, def)
		}
	}

	return &s
}

// Bands returns the bands the scanner visits, in table order
func (s *Scanner) Bands() []band.Definition {
	return slices.Clone(s.bands)
}

// BinWidth returns the report resolution for def: 100 kHz, or a hundredth
// of the band for narrow bands
func BinWidth(def band.Definition) float64 {
	return min(DefaultMaxBinWidth, (def.End-def.Start)/minBins)
}

// Scan reports every band in turn. A band that fails is recorded with its
// error and the scan moves on; an error is returned only when ctx is done
// or when every band failed.
func (s *Scanner) Scan(ctx context.Context) ([]BandReport, error) {
	reports := make([]BandReport, 0, len(s.bands))
	var failed int

	for _, def := range s.bands {
		if err := ctx.Err(); err != nil {
			return reports, err
		}

		report := s.scanBand(ctx, def)
		reports = append(reports, report)

		logger := s.logger.With(
			slog.String("band", def.Name),
			slog.String("range", fmt.Sprintf("%s-%s",
				humanize.SIWithDigits(def.Start, 1, "Hz"),
				humanize.SIWithDigits(def.End, 1, "Hz"))))

		if report.Err != nil {
			failed++
			logger.Warn(fmt.Sprintf("band skipped: %s", report.Err.Error()))
			continue
		}

		logger.Info("band scanned", slog.Int("found", report.Found), slog.Int("kept", len(report.Detections)))
		for _, d := range report.Detections {
			logger.Debug("signal",
				slog.String("frequency", humanize.SIWithDigits(d.Frequency, 3, "Hz")),
				slog.Float64("strengthDB", d.StrengthDB),
				slog.String("decoder", d.Decoder))
		}
	}

	if len(reports) > 0 && failed == len(reports) {
		return reports, fmt.Errorf("all %d bands failed: %w", failed, reports[0].Err)
	}

	return reports, nil
}

func (s *Scanner) scanBand(ctx context.Context, def band.Definition) BandReport {
	report := BandReport{
		Band:     def,
		BinWidth: BinWidth(def),
	}

	sweeps, err := s.source.Sweep(ctx, def.Start, def.End, report.BinWidth)
	if err != nil && (len(sweeps) == 0 || !errors.Is(err, sdr.ErrCaptureTimeout)) {
		report.Err = err
		return report
	}

	var found []Detection
	for _, sweep := range sweeps {
		detections, skipped := s.detect(sweep)
		found = append(found, detections...)
		report.Skipped += skipped
	}

	slices.SortStableFunc(found, func(a, b Detection) int {
		return cmp.Compare(b.StrengthDB, a.StrengthDB)
	})

	report.Found = len(found)
	report.Detections = found[:min(len(found), s.topN)]

	return report
}

// detect finds the readings of one report line standing out from its noise floor
func (s *Scanner) detect(sweep *sdr.PowerSweep) ([]Detection, int) {
	powers := sweep.ValidPowers()
	skipped := len(sweep.Readings) - len(powers)

	noise, ok := NoiseFloor(powers)
	if !ok {
		return nil, skipped
	}

	var detections []Detection
	for _, r := range sweep.Readings {
		if !r.IsValid || r.Power-noise <= s.thresholdDB {
			continue
		}

		route := s.router.Route(r.Frequency)
		detections = append(detections, Detection{
			Frequency:    r.Frequency,
			PowerDB:      r.Power,
			StrengthDB:   r.Power - noise,
			NoiseFloorDB: noise,
			Band:         route.Band,
			Decoder:      route.Decoder,
			Description:  route.Description,
			Type:         band.EstimateSignalType(r.Frequency, sweep.BinWidth),
			Timestamp:    sweep.Timestamp,
		})
	}

	return detections, skipped
}

// NoiseFloor returns the mean of the lowest tenth of powers. At least one
// reading is averaged, so short lines use their minimum.
func NoiseFloor(powers []float64) (float64, bool) {
	if len(powers) == 0 {
		return 0, false
	}

	sorted := slices.Clone(powers)
	slices.Sort(sorted)

	n := max(len(sorted)/noiseFraction, 1)

	return floats.Sum(sorted[:n]) / float64(n), true
}
