package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roman-kulish/rf-sweep/cmd/sweeper/app"
	"github.com/roman-kulish/rf-sweep/internal/decoder"
	"github.com/roman-kulish/rf-sweep/internal/sdr/driver"
	"github.com/roman-kulish/rf-sweep/internal/sweep"
)

var (
	logLevel slog.LevelVar
	logger   = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	configPath string
	config     *app.Config
)

// rangeFlags are shared by sweep and monitor
type rangeFlags struct {
	start, end, step string
	profile          string
	duration         time.Duration
	threshold        float64
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.start, "start", "", "start frequency, e.g. 88M or 88 (MHz)")
	cmd.Flags().StringVar(&f.end, "end", "", "end frequency, e.g. 108M")
	cmd.Flags().StringVar(&f.step, "step", "", "step between captures (default 80% of the sample rate)")
	cmd.Flags().StringVarP(&f.profile, "profile", "p", "", "preset range, see the profiles command")
	cmd.Flags().DurationVar(&f.duration, "duration", 0, "capture time per step (default from config)")
	cmd.Flags().Float64Var(&f.threshold, "threshold", 0, "detection threshold above the noise floor in dB (default from config)")
}

// apply overrides the configured sweep section with the flags that were set
func (f *rangeFlags) apply(cmd *cobra.Command, c *app.SweepConfig) error {
	for _, ff := range []struct {
		name string
		dst  *app.Frequency
		src  string
	}{
		{"start", &c.Start, f.start},
		{"end", &c.End, f.end},
		{"step", &c.Step, f.step},
	} {
		if !cmd.Flags().Changed(ff.name) {
			continue
		}
		v, err := app.ParseFrequency(ff.src)
		if err != nil {
			return fmt.Errorf("--%s: %w", ff.name, err)
		}
		*ff.dst = app.Frequency(v)
	}

	if cmd.Flags().Changed("start") || cmd.Flags().Changed("end") {
		c.Profile = ""
	}
	if cmd.Flags().Changed("profile") {
		c.Profile = f.profile
	}
	if cmd.Flags().Changed("duration") {
		c.Duration = driver.NewTimeDuration(f.duration)
	}
	if cmd.Flags().Changed("threshold") {
		c.ThresholdDB = f.threshold
	}
	return nil
}

func newApp() (*app.App, error) {
	return app.New(config, logger)
}

func sweepCommand() *cobra.Command {
	var flags rangeFlags

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Sweep a frequency range once and report detected signals",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.apply(cmd, &config.Sweep); err != nil {
				return err
			}
			rng, err := config.Sweep.Range()
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			return a.Sweep(cmd.Context(), rng)
		},
	}
	flags.register(cmd)

	return cmd
}

func monitorCommand() *cobra.Command {
	var (
		flags       rangeFlags
		interval    time.Duration
		generations int
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Repeat a sweep and report signals that were not seen in the previous one",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.apply(cmd, &config.Sweep); err != nil {
				return err
			}
			if cmd.Flags().Changed("interval") {
				config.Monitor.Interval = driver.NewTimeDuration(interval)
			}
			if cmd.Flags().Changed("generations") {
				config.Monitor.MaxGenerations = generations
			}

			rng, err := config.Sweep.Range()
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			return a.Monitor(cmd.Context(), rng)
		},
	}
	flags.register(cmd)
	cmd.Flags().DurationVar(&interval, "interval", sweep.DefaultInterval, "pause between sweeps")
	cmd.Flags().IntVar(&generations, "generations", 0, "stop after this many sweeps (0: run until interrupted)")

	return cmd
}

func quickScanCommand() *cobra.Command {
	var (
		source    string
		threshold float64
		top       int
	)

	cmd := &cobra.Command{
		Use:   "quickscan",
		Short: "Survey every routing table band with a wideband power report",
		RunE: func(cmd *cobra.Command, args []string) error {
			qs := &config.QuickScan
			if cmd.Flags().Changed("source") {
				qs.Source = source
			}
			if cmd.Flags().Changed("threshold") {
				qs.ThresholdDB = threshold
			}
			if cmd.Flags().Changed("top") {
				qs.TopN = top
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			return a.QuickScan(cmd.Context(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&source, "source", app.SourceRTLPower, "power report tool: rtl_power or hackrf_sweep")
	cmd.Flags().Float64Var(&threshold, "threshold", 10, "detection threshold above the noise floor in dB")
	cmd.Flags().IntVar(&top, "top", 3, "detections reported per band")

	return cmd
}

func routeCommand() *cobra.Command {
	var bandwidth string

	cmd := &cobra.Command{
		Use:   "route <frequency>",
		Short: "Show the decoder profile and signal type of a frequency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			freq, err := app.ParseFrequency(args[0])
			if err != nil {
				return err
			}
			bw, err := app.ParseFrequency(bandwidth)
			if err != nil {
				return fmt.Errorf("--bandwidth: %w", err)
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			a.Route(cmd.OutOrStdout(), freq, bw)
			return nil
		},
	}
	cmd.Flags().StringVar(&bandwidth, "bandwidth", "12.5kHz", "signal bandwidth used for the type label")

	return cmd
}

func decodeCommand() *cobra.Command {
	var (
		freq     string
		name     string
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Run a decoder on a frequency for a bounded time",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := app.ParseFrequency(freq)
			if err != nil {
				return fmt.Errorf("--freq: %w", err)
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			return a.Decode(cmd.Context(), name, f, duration, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&freq, "freq", "", "frequency to decode")
	cmd.Flags().StringVar(&name, "decoder", "", fmt.Sprintf("decoder to run %v (default: routed decoder)", decoder.Decoders()))
	cmd.Flags().DurationVar(&duration, "duration", decoder.DefaultDuration, "how long the decoder runs")
	_ = cmd.MarkFlagRequired("freq")

	return cmd
}

func profilesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List the preset sweep ranges",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tNAME\tRANGE\tSTEPS")
			for _, p := range sweep.Profiles() {
				fmt.Fprintf(tw, "%s\t%s\t%s - %s\t%d\n",
					p.Key,
					p.Name,
					humanize.SIWithDigits(p.Range.Start, 3, "Hz"),
					humanize.SIWithDigits(p.Range.End, 3, "Hz"),
					len(p.Range.Frequencies()))
			}
			_ = tw.Flush()
		},
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "sweeper",
		Short:         "Wideband spectrum sweeper and signal detector",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				config = app.DefaultConfig()
			} else {
				var err error
				if config, err = app.LoadConfig(configPath); err != nil {
					return fmt.Errorf("failed to load configuration file %s: %w", configPath, err)
				}
			}

			logLevel.Set(config.Settings.LogLevel)
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file")

	root.AddCommand(
		sweepCommand(),
		monitorCommand(),
		quickScanCommand(),
		routeCommand(),
		decodeCommand(),
		profilesCommand(),
	)

	return root
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
