package sdr

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"sync/atomic"
)

var (
	// ErrTooManyParseErrors is returned when the number of consecutive parse errors exceeds the threshold
	ErrTooManyParseErrors = errors.New("too many consecutive parse errors")

	// ErrBrokenPipe is returned when there's an error reading from stdout or stderr
	ErrBrokenPipe = errors.New("broken pipe")
)

// StreamHandler defines the methods required for a line-oriented power report tool
type StreamHandler interface {
	Cmd(ctx context.Context) *exec.Cmd
	Parse(line string) (*PowerSweep, error)
	Device() string
}

// WithStreamLogger sets the logger for the streamer
func WithStreamLogger(logger *slog.Logger) func(s *Streamer) {
	return func(s *Streamer) {
		s.logger = logger.With(slog.String("device", s.handler.Device()))
	}
}

// WithParseErrorsThreshold aborts the stream after threshold consecutive
// unparsable lines. Zero, the default, skips malformed lines indefinitely.
func WithParseErrorsThreshold(threshold uint8) func(s *Streamer) {
	return func(s *Streamer) {
		s.parseErrorsThreshold = threshold
	}
}

// Streamer runs a power report tool and emits one PowerSweep per parsed line
type Streamer struct {
	handler StreamHandler

	isRunning atomic.Bool
	skipped   atomic.Int64

	parseErrorsThreshold uint8
	logger               *slog.Logger
}

// NewStreamer creates a new Streamer instance with a discard logger
func NewStreamer(h StreamHandler, options ...func(s *Streamer)) *Streamer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	s := Streamer{
		handler: h,
		logger:  logger,
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Skipped returns the number of malformed lines skipped by the last run
func (s *Streamer) Skipped() int64 {
	return s.skipped.Load()
}

// Run starts the tool and blocks until it exits or ctx is done.
// Parsed sweeps are sent to sweeps, which is not closed by Run.
func (s *Streamer) Run(ctx context.Context, sweeps chan<- *PowerSweep) error {
	if !s.isRunning.CompareAndSwap(false, true) {
		return fmt.Errorf("streamer is already running")
	}
	defer s.isRunning.Store(false)

	s.skipped.Store(0)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := s.handler.Cmd(ctx)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("error creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("error creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		return fmt.Errorf("%w: error starting command: %w", ErrCaptureUnavailable, err)
	}

	s.logger.Debug("power report started")

	done := make(chan error, 2) // expects two results from two readers

	go s.handleStdout(ctx, stdout, sweeps, done)
	go s.handleStderr(stderr, done)

	var errs []error
	for i := 0; i < cap(done); i++ {
		if err := <-done; err != nil {
			cancel() // cancel context on error
			s.logger.Error(err.Error())

			errs = append(errs, err)
		}
	}

	// Wait must follow the pipe readers, it closes the pipes
	if err := cmd.Wait(); err != nil && ctx.Err() == nil {
		errs = append(errs, fmt.Errorf("command exited with error: %w", err))
	}

	s.logger.Debug("power report stopped", slog.Int64("skipped", s.skipped.Load()))

	return errors.Join(errs...)
}

// Collect runs the tool to completion and returns every parsed sweep
func (s *Streamer) Collect(ctx context.Context) ([]*PowerSweep, error) {
	sweeps := make(chan *PowerSweep)
	collected := make(chan []*PowerSweep)

	go func() {
		var all []*PowerSweep
		for sweep := range sweeps {
			all = append(all, sweep)
		}
		collected <- all
	}()

	err := s.Run(ctx, sweeps)
	close(sweeps)

	return <-collected, err
}

// handleStdout reads from stdout, parses and sends sweeps to the channel.
func (s *Streamer) handleStdout(ctx context.Context, stdout io.Reader, sweeps chan<- *PowerSweep, done chan<- error) {
	var parseErrors uint8

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		sweep, err := s.handler.Parse(line)
		if err != nil {
			s.skipped.Add(1)
			s.logger.Warn(fmt.Sprintf("skipping line: %s", err.Error()), slog.String("line", line))

			if parseErrors < 255 {
				parseErrors++
			}
			if s.parseErrorsThreshold > 0 && parseErrors >= s.parseErrorsThreshold {
				done <- ErrTooManyParseErrors
				return
			}

			continue
		}

		parseErrors = 0 // reset counter

		select {
		case sweeps <- sweep:
		case <-ctx.Done():
			done <- nil
			return
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		done <- fmt.Errorf("%w: error reading stdout: %w", ErrBrokenPipe, err)
		return
	}

	done <- nil
}

// handleStderr reads from stderr and logs it.
func (s *Streamer) handleStderr(stderr io.Reader, done chan<- error) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		s.logger.Debug(fmt.Sprintf("%s >> %s", s.handler.Device(), line))
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		done <- fmt.Errorf("%w: error reading stderr: %w", ErrBrokenPipe, err)
		return
	}

	done <- nil
}
