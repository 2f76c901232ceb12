package app

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/rf-sweep/internal/decoder"
	"github.com/roman-kulish/rf-sweep/internal/sdr/driver"
	"github.com/roman-kulish/rf-sweep/internal/sdr/hackrf"
	"github.com/roman-kulish/rf-sweep/internal/sdr/rtl"
	"github.com/roman-kulish/rf-sweep/internal/sdr/uhd"
	"github.com/roman-kulish/rf-sweep/internal/spectrum"
	"github.com/roman-kulish/rf-sweep/internal/storage"
	"github.com/roman-kulish/rf-sweep/internal/sweep"
)

const (
	DeviceUHD    DeviceType = "uhd"
	DeviceRTLSDR DeviceType = "rtlsdr"
	DeviceHackRF DeviceType = "hackrf"

	SourceRTLPower    = "rtl_power"
	SourceHackRFSweep = "hackrf_sweep"

	// plain numbers below this are read as MHz
	mhzCutoff = 100_000

	defaultDataDirectory = "scans"
	defaultMonitorGap    = 3
)

// DeviceType is the kind of capture device
type DeviceType string

// Frequency is a frequency in Hz read from YAML or the command line.
// It accepts SI suffixes, see ParseFrequency.
type Frequency float64

func (f *Frequency) UnmarshalYAML(value *yaml.Node) error {
	v, err := ParseFrequency(value.Value)
	if err != nil {
		return err
	}
	*f = Frequency(v)
	return nil
}

func (f Frequency) Hz() float64 {
	return float64(f)
}

func (f Frequency) String() string {
	return humanize.SIWithDigits(float64(f), 6, "Hz")
}

// ParseFrequency parses "433.92M", "433.92 MHz", "2.4G" or "88000000".
// A plain number below 100000 is taken as MHz, so "100.1" is 100.1 MHz.
func ParseFrequency(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty frequency")
	}

	if v, err := strconv.ParseFloat(s, 64); err == nil {
		if v < mhzCutoff {
			v *= 1e6
		}
		return checkFrequency(s, v)
	}

	v, unit, err := humanize.ParseSI(s)
	if err != nil {
		return 0, fmt.Errorf("invalid frequency %q: %w", s, err)
	}
	if unit != "" && !strings.EqualFold(unit, "Hz") {
		return 0, fmt.Errorf("invalid frequency %q: unexpected unit %q", s, unit)
	}
	return checkFrequency(s, v)
}

func checkFrequency(s string, v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid frequency %q: not a finite number", s)
	}
	if v < 0 {
		return 0, fmt.Errorf("invalid frequency %q: negative", s)
	}
	return v, nil
}

// Config represents the main application configuration
type Config struct {
	Settings  Settings        `yaml:"settings"`
	Sweep     SweepConfig     `yaml:"sweep"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Device    DeviceConfig    `yaml:"device"`
	Bands     string          `yaml:"bands"` // routing table path, built-in table when empty
	Storage   StorageConfig   `yaml:"storage"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Decoders  decoder.Config  `yaml:"decoders"`
	QuickScan QuickScanConfig `yaml:"quickscan"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel slog.Level `yaml:"logLevel"`
}

// SweepConfig holds the acquisition and detection parameters of a sweep
type SweepConfig struct {
	Profile    string    `yaml:"profile"`
	Start      Frequency `yaml:"start"`
	End        Frequency `yaml:"end"`
	Step       Frequency `yaml:"step"` // 0 uses 80% of the sample rate
	SampleRate Frequency `yaml:"sampleRate"`
	FFTSize    int       `yaml:"fftSize"`
	Gain       int       `yaml:"gain"`

	ThresholdDB float64             `yaml:"thresholdDB"`
	Duration    driver.TimeDuration `yaml:"duration"` // capture time per step
	Adjacency   string              `yaml:"adjacency"`
	MergeGap    int                 `yaml:"mergeGap"`
	MaxSignals  int                 `yaml:"maxSignals"`

	AbortAfterUnavailable int `yaml:"abortAfterUnavailable"`
}

// MonitorConfig holds the repeated sweep settings
type MonitorConfig struct {
	Interval       driver.TimeDuration `yaml:"interval"`
	Adjacency      string              `yaml:"adjacency"` // overrides sweep.adjacency, gap-tolerant when empty
	MergeGap       int                 `yaml:"mergeGap"`
	MaxGenerations int                 `yaml:"maxGenerations"`
}

// DeviceConfig represents the capture device. Config holds the type specific
// settings: *uhd.Config, *rtl.Config or *hackrf.Config.
type DeviceConfig struct {
	Type   DeviceType `yaml:"type"`
	ID     string     `yaml:"id"`
	Config any        `yaml:"config"`
}

func (d *DeviceConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Type   DeviceType `yaml:"type"`
		ID     string     `yaml:"id"`
		Config yaml.Node  `yaml:"config"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	var config any
	switch raw.Type {
	case DeviceUHD:
		config = &uhd.Config{}
	case DeviceRTLSDR:
		config = &rtl.Config{}
	case DeviceHackRF:
		config = &hackrf.Config{}
	default:
		return fmt.Errorf("unknown device type %q, pick one of: %s, %s, %s", raw.Type, DeviceUHD, DeviceRTLSDR, DeviceHackRF)
	}

	if !raw.Config.IsZero() {
		if err := raw.Config.Decode(config); err != nil {
			return fmt.Errorf("decoding %s device config: %w", raw.Type, err)
		}
	}

	d.Type = raw.Type
	d.ID = raw.ID
	d.Config = config
	return nil
}

// StorageConfig represents report and session history settings
type StorageConfig struct {
	DataDirectory string          `yaml:"dataDirectory"` // JSON reports and investigation lists
	IncludeFrames bool            `yaml:"includeFrames"` // add per-step spectra to JSON reports
	Database      *storage.Config `yaml:"database"`      // session history, disabled when nil
}

// DispatchConfig configures detection publishing
type DispatchConfig struct {
	NATS struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`
}

// QuickScanConfig configures the wideband power survey
type QuickScanConfig struct {
	Source      string              `yaml:"source"` // rtl_power or hackrf_sweep
	Integration driver.TimeDuration `yaml:"integration"`
	ThresholdDB float64             `yaml:"thresholdDB"`
	TopN        int                 `yaml:"topN"`
	Gain        int                 `yaml:"gain"`
	LNAGain     *int                `yaml:"lnaGain"`
	VGAGain     *int                `yaml:"vgaGain"`
}

// DefaultConfig returns the configuration used when no file is given:
// a UHD device with the default sweep parameters
func DefaultConfig() *Config {
	defaults := sweep.DefaultConfig()

	return &Config{
		Settings: Settings{LogLevel: slog.LevelInfo},
		Sweep: SweepConfig{
			SampleRate:            Frequency(defaults.SampleRate),
			FFTSize:               defaults.FFTSize,
			Gain:                  defaults.Gain,
			ThresholdDB:           defaults.ThresholdDB,
			Duration:              driver.NewTimeDuration(defaults.CaptureDuration),
			Adjacency:             "strict",
			MaxSignals:            defaults.MaxSignals,
			AbortAfterUnavailable: defaults.AbortAfterUnavailable,
		},
		Monitor: MonitorConfig{
			Interval:  driver.NewTimeDuration(sweep.DefaultInterval),
			Adjacency: "gap-tolerant",
			MergeGap:  defaultMonitorGap,
		},
		Device: DeviceConfig{
			Type:   DeviceUHD,
			ID:     "0",
			Config: &uhd.Config{},
		},
		Storage: StorageConfig{
			DataDirectory: defaultDataDirectory,
		},
		QuickScan: QuickScanConfig{
			Source:      SourceRTLPower,
			Integration: driver.NewTimeDuration(time.Second),
			ThresholdDB: 10,
			TopN:        3,
			Gain:        defaults.Gain,
		},
	}
}

// LoadConfig reads the YAML configuration at path on top of DefaultConfig
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()

	config := DefaultConfig()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err = dec.Decode(config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err = config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the sections every command depends on
func (c *Config) Validate() error {
	if _, err := c.Sweep.Controller(); err != nil {
		return err
	}
	if _, err := c.Monitor.MergePolicy(); err != nil {
		return err
	}
	if c.Device.Config == nil {
		return fmt.Errorf("device config is required")
	}
	if c.Storage.Database != nil {
		if err := c.Storage.Database.Validate(); err != nil {
			return err
		}
	}
	switch c.QuickScan.Source {
	case "", SourceRTLPower, SourceHackRFSweep:
	default:
		return fmt.Errorf("unknown quickscan source %q, pick one of: %s, %s", c.QuickScan.Source, SourceRTLPower, SourceHackRFSweep)
	}
	return nil
}

// Controller converts the section into the sweep controller configuration
func (c SweepConfig) Controller() (sweep.Config, error) {
	adjacency, err := spectrum.ParseAdjacency(c.Adjacency, c.MergeGap)
	if err != nil {
		return sweep.Config{}, fmt.Errorf("%w: %w", sweep.ErrFatalConfiguration, err)
	}

	cfg := sweep.Config{
		SampleRate:            c.SampleRate.Hz(),
		FFTSize:               c.FFTSize,
		Gain:                  c.Gain,
		ThresholdDB:           c.ThresholdDB,
		CaptureDuration:       c.Duration.Duration(),
		Adjacency:             adjacency,
		MaxSignals:            c.MaxSignals,
		AbortAfterUnavailable: c.AbortAfterUnavailable,
	}
	if err = cfg.Validate(); err != nil {
		return sweep.Config{}, err
	}
	return cfg, nil
}

// Range returns the configured sweep range: the profile when one is set,
// otherwise start, end and step
func (c SweepConfig) Range() (sweep.Range, error) {
	if c.Profile != "" {
		p, err := sweep.LookupProfile(c.Profile)
		if err != nil {
			return sweep.Range{}, fmt.Errorf("%w: %w", sweep.ErrFatalConfiguration, err)
		}
		return p.Range, nil
	}

	rng := sweep.Range{Start: c.Start.Hz(), End: c.End.Hz(), Step: c.Step.Hz()}
	if err := rng.Validate(); err != nil {
		return sweep.Range{}, err
	}
	return rng, nil
}

// MergePolicy returns the monitor merging policy, gap-tolerant unless configured
func (c MonitorConfig) MergePolicy() (spectrum.Adjacency, error) {
	name, gap := c.Adjacency, c.MergeGap
	if name == "" {
		name, gap = "gap-tolerant", defaultMonitorGap
	}

	adjacency, err := spectrum.ParseAdjacency(name, gap)
	if err != nil {
		return spectrum.Adjacency{}, fmt.Errorf("%w: monitor: %w", sweep.ErrFatalConfiguration, err)
	}
	return adjacency, nil
}
