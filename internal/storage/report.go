package storage

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/roman-kulish/rf-sweep/internal/sweep"
)

const (
	// ReportTopSignals is the number of ranked signals embedded in a report
	ReportTopSignals = 50

	// InvestigationListSize is the number of signals in the investigation list
	InvestigationListSize = 20

	// InvestigationCapture is the suggested capture length per listed signal
	InvestigationCapture = 5 * time.Second

	fileTimeLayout = "20060102_150405"
)

type ScanParameters struct {
	SampleRate float64   `json:"sample_rate"`
	FFTSize    int       `json:"fft_size"`
	Gain       int       `json:"gain"`
	Timestamp  time.Time `json:"timestamp"`
}

// ReportSignal is a detection as written to the JSON report
type ReportSignal struct {
	Frequency       float64   `json:"frequency"`
	PowerDB         float64   `json:"power_db"`
	Bandwidth       float64   `json:"bandwidth"`
	RegionStart     float64   `json:"region_start_freq"`
	RegionEnd       float64   `json:"region_end_freq"`
	CenterFrequency float64   `json:"center_freq"`
	Band            string    `json:"band"`
	Decoder         string    `json:"decoder"`
	Type            string    `json:"type"`
	Timestamp       time.Time `json:"timestamp"`
}

// ReportStep carries one step spectrum, present only when frames are included
type ReportStep struct {
	Step            int       `json:"step"`
	CenterFrequency float64   `json:"center_freq"`
	Frequencies     []float64 `json:"frequencies,omitempty"`
	PowerDB         []float64 `json:"power_db,omitempty"`
	NoiseFloorDB    *float64  `json:"noise_floor_db,omitempty"`
	Error           string    `json:"error,omitempty"`
}

// Report is the persisted outcome of a single sweep
type Report struct {
	RunID          string         `json:"run_id,omitempty"`
	ScanParameters ScanParameters `json:"scan_parameters"`
	StartFrequency float64        `json:"start_freq"`
	EndFrequency   float64        `json:"end_freq"`
	Step           float64        `json:"step"`
	Signals        []ReportSignal `json:"signals"`
	NumSteps       int            `json:"num_steps"`
	NumSignals     int            `json:"num_signals"`
	TopSignals     []ReportSignal `json:"top_signals"`
	Steps          []ReportStep   `json:"steps,omitempty"`
}

// NewReport builds the report of a sweep. Steps are included only with includeFrames.
func NewReport(cfg sweep.Config, rng sweep.Range, results []sweep.Result, includeFrames bool, now time.Time) *Report {
	detections := sweep.Detections(results)

	r := Report{
		ScanParameters: ScanParameters{
			SampleRate: cfg.SampleRate,
			FFTSize:    cfg.FFTSize,
			Gain:       cfg.Gain,
			Timestamp:  now,
		},
		StartFrequency: rng.Start,
		EndFrequency:   rng.End,
		Step:           rng.Step,
		Signals:        make([]ReportSignal, len(detections)),
		NumSteps:       len(results),
		NumSignals:     len(detections),
	}

	for i, d := range detections {
		r.Signals[i] = toReportSignal(d)
	}

	ranked := Rank(detections)
	if len(ranked) > ReportTopSignals {
		ranked = ranked[:ReportTopSignals]
	}
	r.TopSignals = make([]ReportSignal, len(ranked))
	for i, d := range ranked {
		r.TopSignals[i] = toReportSignal(d)
	}

	if includeFrames {
		r.Steps = make([]ReportStep, len(results))
		for i := range results {
			res := &results[i]
			step := ReportStep{Step: res.Step, CenterFrequency: res.CenterFrequency}
			if res.Err != nil {
				step.Error = res.Err.Error()
			}
			if res.Frame != nil {
				nf := res.Frame.NoiseFloorDB
				step.Frequencies = res.Frame.Frequencies
				step.PowerDB = res.Frame.PowerDB
				step.NoiseFloorDB = &nf
			}
			r.Steps[i] = step
		}
	}

	return &r
}

func toReportSignal(d sweep.Detection) ReportSignal {
	return ReportSignal{
		Frequency:       d.Frequency,
		PowerDB:         d.PowerDB,
		Bandwidth:       d.Bandwidth,
		RegionStart:     d.RegionStart,
		RegionEnd:       d.RegionEnd,
		CenterFrequency: d.CenterFrequency,
		Band:            d.Band,
		Decoder:         d.Decoder,
		Type:            d.Type,
		Timestamp:       d.Timestamp,
	}
}

// Rank returns a copy of detections sorted by power, strongest first.
// Equal powers keep their sweep order.
func Rank(detections []sweep.Detection) []sweep.Detection {
	ranked := slices.Clone(detections)
	slices.SortStableFunc(ranked, func(a, b sweep.Detection) int {
		return cmp.Compare(b.PowerDB, a.PowerDB)
	})
	return ranked
}

// Write encodes the report as indented JSON
func (r *Report) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

// WriteInvestigationList writes the n strongest detections with a suggested
// uhd_rx_cfile command capturing InvestigationCapture at sampleRate
func WriteInvestigationList(w io.Writer, detections []sweep.Detection, n int, sampleRate float64, gain int) error {
	ranked := Rank(detections)
	if len(ranked) > n {
		ranked = ranked[:n]
	}

	numSamples := int64(sampleRate * InvestigationCapture.Seconds())

	var sb strings.Builder
	sb.WriteString("TOP DETECTED SIGNALS - INVESTIGATION LIST\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	for i, d := range ranked {
		fmt.Fprintf(&sb, "%d. %.6f MHz\n", i+1, d.Frequency/1e6)
		fmt.Fprintf(&sb, "   Power: %.1f dB\n", d.PowerDB)
		fmt.Fprintf(&sb, "   Bandwidth: %.1f kHz\n", d.Bandwidth/1e3)
		fmt.Fprintf(&sb, "   Type: %s\n", d.Type)
		fmt.Fprintf(&sb, "   Band: %s (%s)\n", d.Band, d.Decoder)
		fmt.Fprintf(&sb, "   Capture command: uhd_rx_cfile -f %d -r %d -N %d -g %d signal_%d.cfile\n",
			int64(d.Frequency), int64(sampleRate), numSamples, gain, i+1)
		sb.WriteString("\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// SaveReport writes the JSON report and, when signals were found, the
// investigation list into dir. File names carry the report timestamp.
func SaveReport(dir string, r *Report, detections []sweep.Detection) (reportPath, listPath string, err error) {
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("creating report directory: %w", err)
	}

	stamp := r.ScanParameters.Timestamp.Format(fileTimeLayout)

	reportPath = filepath.Join(dir, fmt.Sprintf("scan_%s.json", stamp))
	if err = writeFile(reportPath, r.Write); err != nil {
		return "", "", err
	}

	if len(detections) == 0 {
		return reportPath, "", nil
	}

	listPath = filepath.Join(dir, fmt.Sprintf("top_signals_%s.txt", stamp))
	err = writeFile(listPath, func(w io.Writer) error {
		return WriteInvestigationList(w, detections, InvestigationListSize, r.ScanParameters.SampleRate, r.ScanParameters.Gain)
	})
	if err != nil {
		return reportPath, "", err
	}

	return reportPath, listPath, nil
}

func writeFile(path string, write func(w io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer closeWithError(f, &err)

	if err = write(f); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
