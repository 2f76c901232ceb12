package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/rf-sweep/internal/band"
	"github.com/roman-kulish/rf-sweep/internal/decoder"
	"github.com/roman-kulish/rf-sweep/internal/quickscan"
	"github.com/roman-kulish/rf-sweep/internal/sdr"
	"github.com/roman-kulish/rf-sweep/internal/sdr/hackrf"
	"github.com/roman-kulish/rf-sweep/internal/sdr/rtl"
	"github.com/roman-kulish/rf-sweep/internal/sdr/uhd"
	"github.com/roman-kulish/rf-sweep/internal/storage"
	"github.com/roman-kulish/rf-sweep/internal/sweep"
)

const sqliteFile = "sweeps.sqlite"

// App wires the configured device, routing table and sinks into the
// sweeper commands
type App struct {
	config *Config
	table  *band.Table
	logger *slog.Logger
}

// New loads the routing table and returns an App for config
func New(config *Config, logger *slog.Logger) (*App, error) {
	table := band.DefaultTable()
	if config.Bands != "" {
		var err error
		if table, err = band.LoadTable(config.Bands); err != nil {
			return nil, fmt.Errorf("%w: %w", sweep.ErrFatalConfiguration, err)
		}
	}

	return &App{config: config, table: table, logger: logger}, nil
}

// Sweep runs one sweep over rng
func (a *App) Sweep(ctx context.Context, rng sweep.Range) error {
	cfg, err := a.config.Sweep.Controller()
	if err != nil {
		return err
	}

	o, cleanup, err := a.orchestrator(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err = o.Sweep(ctx, rng); err != nil {
		return err
	}
	return nil
}

// Monitor repeats the sweep over rng on the configured interval
func (a *App) Monitor(ctx context.Context, rng sweep.Range) error {
	cfg, err := a.config.Sweep.Controller()
	if err != nil {
		return err
	}
	if cfg.Adjacency, err = a.config.Monitor.MergePolicy(); err != nil {
		return err
	}

	o, cleanup, err := a.orchestrator(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	return o.Monitor(ctx, rng, a.config.Monitor.Interval.Duration(), a.config.Monitor.MaxGenerations)
}

// QuickScan surveys every reachable band of the routing table and prints
// the strongest detections of each
func (a *App) QuickScan(ctx context.Context, w io.Writer) error {
	source, err := a.quickScanSource()
	if err != nil {
		return err
	}

	qs := a.config.QuickScan
	scanner := quickscan.NewScanner(source, a.table,
		quickscan.WithLogger(a.logger),
		quickscan.WithThreshold(qs.ThresholdDB),
		quickscan.WithTopN(qs.TopN))

	reports, err := scanner.Scan(ctx)
	printQuickScan(w, reports)

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Route prints the decoder profile and signal type label of freq
func (a *App) Route(w io.Writer, freq, bandwidth float64) {
	route := a.table.Route(freq)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Frequency:\t%s\n", humanize.SIWithDigits(freq, 6, "Hz"))
	fmt.Fprintf(tw, "Band:\t%s\n", route.Band)
	fmt.Fprintf(tw, "Decoder:\t%s\n", route.Decoder)
	fmt.Fprintf(tw, "Description:\t%s\n", route.Description)
	fmt.Fprintf(tw, "Type:\t%s\n", band.EstimateSignalType(freq, bandwidth))
	_ = tw.Flush()
}

// Decode runs a decoder on freq for duration. An empty decoder name uses
// the routed decoder of freq.
func (a *App) Decode(ctx context.Context, name string, freq float64, duration time.Duration, w io.Writer) error {
	if name == "" {
		name = a.table.Route(freq).Decoder
	}

	cfg := a.config.Decoders
	if cfg.OutputDirectory == "" {
		cfg.OutputDirectory = a.config.Storage.DataDirectory
	}
	if err := os.MkdirAll(cfg.OutputDirectory, 0o755); err != nil {
		return fmt.Errorf("creating decoder output directory: %w", err)
	}

	inv, err := cfg.Command(name, freq)
	if err != nil {
		return err
	}

	options := []func(r *decoder.Runner){decoder.WithRunnerLogger(a.logger)}

	publisher, err := a.publisher()
	if err != nil {
		return err
	}
	if publisher != nil {
		defer publisher.Close()
		options = append(options, decoder.WithMessagePublisher(publisher))
	}

	report, err := decoder.NewRunner(options...).Run(ctx, inv, duration)
	if report != nil {
		printDecodeReport(w, report)
	}
	return err
}

func (a *App) orchestrator(cfg sweep.Config) (*Orchestrator, func(), error) {
	device, err := createDevice(a.config.Device, a.logger)
	if err != nil {
		return nil, nil, err
	}

	controller, err := sweep.NewController(cfg, device,
		sweep.WithLogger(a.logger),
		sweep.WithRouter(a.table))
	if err != nil {
		return nil, nil, err
	}

	options := []func(*Orchestrator){
		WithReports(a.config.Storage.DataDirectory, a.config.Storage.IncludeFrames),
	}

	var closers []io.Closer

	store, err := createStore(&a.config.Storage)
	if err != nil {
		return nil, nil, err
	}
	if store != nil {
		closers = append(closers, store)
		options = append(options, WithStore(store))
	}

	publisher, err := a.publisher()
	if err != nil {
		closeAll(closers, a.logger)
		return nil, nil, err
	}
	if publisher != nil {
		closers = append(closers, publisher)
		options = append(options, WithPublisher(publisher))
	}

	o := NewOrchestrator(controller, device.Device(), device.DeviceID(), a.logger, options...)

	return o, func() { closeAll(closers, a.logger) }, nil
}

func (a *App) publisher() (decoder.Publisher, error) {
	url := a.config.Dispatch.NATS.URL
	if url == "" {
		return nil, nil
	}

	p, err := decoder.NewNATSPublisher(url, a.logger)
	if err != nil {
		return nil, fmt.Errorf("creating NATS publisher: %w", err)
	}
	return p, nil
}

func (a *App) quickScanSource() (quickscan.Source, error) {
	qs := a.config.QuickScan

	switch qs.Source {
	case "", SourceRTLPower:
		src := rtlPowerSource(a.config.Device)
		src.Gain = qs.Gain
		src.Integration = qs.Integration.Duration()
		src.Logger = a.logger
		return src, nil

	case SourceHackRFSweep:
		src := &quickscan.HackRFSweep{
			LNAGain: qs.LNAGain,
			VGAGain: qs.VGAGain,
			Timeout: qs.Integration.Duration(),
			Logger:  a.logger,
		}
		if c, ok := a.config.Device.Config.(*hackrf.Config); ok {
			src.SerialNumber = c.SerialNumber
		}
		return src, nil

	default:
		return nil, fmt.Errorf("%w: unknown quickscan source %q", sweep.ErrFatalConfiguration, qs.Source)
	}
}

func rtlPowerSource(device DeviceConfig) *quickscan.RTLPower {
	src := quickscan.RTLPower{}
	if c, ok := device.Config.(*rtl.Config); ok {
		src.DeviceIndex = c.DeviceIndex
		src.PPMError = c.PPMError
	}
	return &src
}

func createDevice(config DeviceConfig, logger *slog.Logger) (*sdr.Device, error) {
	var handler sdr.Handler
	var err error

	switch config.Type {
	case DeviceUHD:
		c, ok := config.Config.(*uhd.Config)
		if !ok || c == nil {
			c = &uhd.Config{}
		}
		if handler, err = uhd.New(c); err != nil {
			return nil, fmt.Errorf("creating UHD device: %w", err)
		}

	case DeviceRTLSDR:
		c, ok := config.Config.(*rtl.Config)
		if !ok || c == nil {
			c = &rtl.Config{}
		}
		if handler, err = rtl.New(c); err != nil {
			return nil, fmt.Errorf("creating RTL-SDR device: %w", err)
		}

	case DeviceHackRF:
		c, ok := config.Config.(*hackrf.Config)
		if !ok || c == nil {
			c = &hackrf.Config{}
		}
		if handler, err = hackrf.New(c); err != nil {
			return nil, fmt.Errorf("creating HackRF device: %w", err)
		}

	default:
		return nil, fmt.Errorf("%w: unknown device type '%s'", sweep.ErrFatalConfiguration, config.Type)
	}

	return sdr.NewDevice(config.ID, handler, sdr.WithLogger(logger)), nil
}

func createStore(config *StorageConfig) (storage.Store, error) {
	if config.Database == nil {
		return nil, nil
	}

	dbConfig := *config.Database
	if dbConfig.Driver != storage.DriverMySQL {
		if dbConfig.Path == "" {
			dbConfig.Path = filepath.Join(config.DataDirectory, sqliteFile)
		}
		if err := os.MkdirAll(filepath.Dir(dbConfig.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating storage directory: %w", err)
		}
	}

	store, err := storage.Open(&dbConfig)
	if err != nil {
		return nil, fmt.Errorf("creating storage: %w", err)
	}
	return store, nil
}

func closeAll(closers []io.Closer, logger *slog.Logger) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Error(fmt.Sprintf("closing: %s", err.Error()))
		}
	}
}

func printQuickScan(w io.Writer, reports []quickscan.BandReport) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BAND\tFREQUENCY\tPOWER\tABOVE FLOOR\tDECODER\tTYPE")

	for _, r := range reports {
		if r.Err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\terror: %s\n", r.Band.Name, r.Err)
			continue
		}
		if len(r.Detections) == 0 {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\tno signals\n", r.Band.Name)
			continue
		}
		for _, d := range r.Detections {
			fmt.Fprintf(tw, "%s\t%s\t%.1f dB\t%.1f dB\t%s\t%s\n",
				r.Band.Name,
				humanize.SIWithDigits(d.Frequency, 6, "Hz"),
				d.PowerDB,
				d.StrengthDB,
				d.Decoder,
				d.Type)
		}
	}
	_ = tw.Flush()
}

func printDecodeReport(w io.Writer, r *decoder.Report) {
	fmt.Fprintf(w, "%s on %s: %s lines, %d decoded messages, exit %d after %s\n",
		r.Invocation.Name,
		humanize.SIWithDigits(r.Invocation.Frequency, 6, "Hz"),
		humanize.Comma(int64(r.Lines)),
		len(r.Messages),
		r.Exit,
		r.Runtime.Round(time.Millisecond))

	for _, m := range r.Messages {
		fmt.Fprintf(w, "  %s  %s id=%s\n", m.Time.Format(time.RFC3339), m.Model, m.ID)
	}
}
