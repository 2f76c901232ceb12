package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"math"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/rf-sweep/internal/storage"
)

// Reader is the part of the session history the heatmap reads
type Reader interface {
	Runs(ctx context.Context) ([]string, error)
	Sweeps(ctx context.Context, runID string) ([]*storage.SweepRecord, error)
	Steps(ctx context.Context, sweepID int64) ([]*storage.StepRecord, error)
	Signals(ctx context.Context, sweepID int64) ([]*storage.SignalRecord, error)
}

func Run(ctx context.Context, config *Config, logger *slog.Logger) (err error) {
	store, err := storage.Open(&config.Storage)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, store.Close())
	}()

	runID := config.RunID
	if runID == "" {
		if runID, err = latestRun(ctx, store); err != nil {
			return err
		}
	}

	logger = logger.With(slog.String("runID", runID))
	logger.Info("reading sweeps")

	w, err := LoadWaterfall(ctx, store, runID, config.Width)
	if err != nil {
		return err
	}

	bounds := NewPowerBounds(w.Powers()).Override(config.MinPower, config.MaxPower)
	first, last := w.TimeRange()

	logger.Info("finished reading sweeps",
		slog.Group("stats",
			slog.Int("sweeps", w.Height()),
			slog.String("firstSweep", first.In(config.TimeZone).Format(time.DateTime)),
			slog.String("lastSweep", last.In(config.TimeZone).Format(time.DateTime)),
			slog.String("minFreq", formatFrequency(w.FrequencyMin)),
			slog.String("maxFreq", formatFrequency(w.FrequencyMax)),
			slog.String("minPower", fmt.Sprintf("%0.2fdB", bounds.Min)),
			slog.String("maxPower", fmt.Sprintf("%0.2fdB", bounds.Max)),
		))

	renderer := NewWaterfallRenderer(RenderConfig{
		Location:      config.TimeZone,
		ColorTheme:    config.Theme,
		RowHeight:     config.RowHeight,
		NoAnnotations: config.NoAnnotations,
		NoMarkers:     config.NoMarkers,
	})

	img, err := renderer.Render(w, bounds)
	if err != nil {
		return fmt.Errorf("rendering waterfall: %w", err)
	}

	logger.Info("saving waterfall",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.String("theme", string(config.Theme)),
			slog.Int("width", img.Bounds().Dx()),
			slog.Int("height", img.Bounds().Dy()),
		))

	return saveImage(config.OutputFile, config.Format, img)
}

// ListRuns prints every stored run with its sweeps
func ListRuns(ctx context.Context, config *Config, w io.Writer) (err error) {
	store, err := storage.Open(&config.Storage)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, store.Close())
	}()

	runs, err := store.Runs(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSWEEPS\tRANGE\tSIGNALS\tSTARTED")
	for _, runID := range runs {
		sweeps, err := store.Sweeps(ctx, runID)
		if err != nil {
			return err
		}

		var signals int
		for _, s := range sweeps {
			signals += s.Signals
		}
		first := sweeps[0]
		fmt.Fprintf(tw, "%s\t%d\t%s - %s\t%d\t%s\n",
			runID, len(sweeps),
			formatFrequency(first.StartFrequency), formatFrequency(first.EndFrequency),
			signals, humanize.Time(first.StartedAt))
	}
	return tw.Flush()
}

// LoadWaterfall reads every sweep of runID into a Waterfall of width
// columns, or the native bin resolution capped at 4096 when width is 0
func LoadWaterfall(ctx context.Context, r Reader, runID string, width int) (*Waterfall, error) {
	sweeps, err := r.Sweeps(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("reading sweeps of run %s: %w", runID, err)
	}

	fmin, fmax, binWidth := Extent(sweeps)
	if fmax <= fmin {
		return nil, fmt.Errorf("run %s has an empty frequency range", runID)
	}
	if width == 0 {
		width = maxAutoWidth
		if binWidth > 0 && binWidth != math.MaxFloat64 {
			width = min(int(math.Ceil((fmax-fmin)/binWidth)), maxAutoWidth)
		}
	}

	w := NewWaterfall(runID, fmin, fmax, width)
	for _, rec := range sweeps {
		steps, err := r.Steps(ctx, rec.ID)
		if err != nil {
			return nil, fmt.Errorf("reading steps of sweep %d: %w", rec.ID, err)
		}
		signals, err := r.Signals(ctx, rec.ID)
		if err != nil {
			return nil, fmt.Errorf("reading signals of sweep %d: %w", rec.ID, err)
		}
		w.AddSweep(rec, steps, signals)
	}

	if len(w.Powers()) == 0 {
		return nil, fmt.Errorf("run %s: %w, enable storeFrames in the database settings", runID, ErrNoSpectra)
	}
	return w, nil
}

func latestRun(ctx context.Context, r Reader) (string, error) {
	runs, err := r.Runs(ctx)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", fmt.Errorf("no runs stored: %w", storage.ErrNotFound)
	}
	return runs[len(runs)-1], nil
}

func saveImage(path string, format ImageFormat, img image.Image) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, out.Close())
	}()

	switch format {
	case ImageJPEG:
		return jpeg.Encode(out, img, &jpeg.Options{Quality: 98})
	default:
		return png.Encode(out, img)
	}
}
