package decoder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-cmd/cmd"
)

const (
	// DefaultDuration bounds a decoder run
	DefaultDuration = 30 * time.Second

	// stopGrace bounds the wait for a stopped decoder to exit
	stopGrace = 5 * time.Second
)

// Report summarises one decoder run
type Report struct {
	Invocation *Invocation
	Lines      int
	Messages   []Message
	Exit       int
	Runtime    time.Duration
	Stopped    bool // the run was ended by the duration bound or ctx
}

// WithRunnerLogger sets the logger for the runner
func WithRunnerLogger(logger *slog.Logger) func(r *Runner) {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithMessagePublisher publishes every decoded rtl_433 message
func WithMessagePublisher(p Publisher) func(r *Runner) {
	return func(r *Runner) {
		r.publisher = p
	}
}

// Runner executes decoder invocations for a bounded time and streams their output to the log
type Runner struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewRunner creates a new Runner with a discard logger
func NewRunner(options ...func(r *Runner)) *Runner {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	r := Runner{logger: logger}

	for _, option := range options {
		option(&r)
	}

	return &r
}

// Run starts inv and stops it after duration or when ctx is done, whichever
// comes first. Reaching the bound is the normal way for a decoder to end
// and is not an error.
func (r *Runner) Run(ctx context.Context, inv *Invocation, duration time.Duration) (*Report, error) {
	if duration <= 0 {
		duration = DefaultDuration
	}

	logger := r.logger.With(
		slog.String("decoder", inv.Decoder),
		slog.Float64("frequency", inv.Frequency))

	logger.Info("starting decoder",
		slog.String("cmd", inv.Name+" "+strings.Join(inv.Args, " ")),
		slog.String("duration", duration.String()))

	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	c := cmd.NewCmdOptions(cmd.Options{Buffered: false, Streaming: true}, inv.Name, inv.Args...)

	report := Report{Invocation: inv}

	streamed := make(chan struct{})
	go func() {
		defer close(streamed)
		r.stream(ctx, c, inv, &report, logger)
	}()

	statusChan := c.Start()

	var status cmd.Status
	select {
	case status = <-statusChan:

	case <-ctx.Done():
		report.Stopped = true
		if err := c.Stop(); err != nil {
			logger.Warn(fmt.Sprintf("error stopping decoder: %s", err.Error()))
		}

		select {
		case status = <-statusChan:
		case <-time.After(stopGrace):
			logger.Error("decoder did not exit after stop", slog.Int("pid", c.Status().PID))
			status = c.Status()
		}
	}

	<-streamed

	report.Exit = status.Exit
	report.Runtime = time.Duration(status.Runtime * float64(time.Second))

	if status.Error != nil && !status.Complete && !report.Stopped {
		return &report, fmt.Errorf("running %s: %w", inv.Name, status.Error)
	}
	if status.Exit != 0 && !report.Stopped {
		return &report, fmt.Errorf("%s exited with code %d", inv.Name, status.Exit)
	}

	logger.Info("decoder finished",
		slog.Int("lines", report.Lines),
		slog.Int("messages", len(report.Messages)),
		slog.String("runtime", report.Runtime.Round(time.Millisecond).String()))

	return &report, nil
}

func (r *Runner) stream(ctx context.Context, c *cmd.Cmd, inv *Invocation, report *Report, logger *slog.Logger) {
	handleStdout := func(line string) {
		report.Lines++
		logger.Info(line)

		if inv.Decoder != RTL433 {
			return
		}
		if m, ok := ParseMessage(line); ok {
			report.Messages = append(report.Messages, *m)
			r.publish(ctx, inv, m, logger)
		}
	}

	handleStderr := func(line string) {
		logger.Debug(fmt.Sprintf("%s >> %s", inv.Name, line))
	}

	stdout, stderr := c.Stdout, c.Stderr
	done := c.Done()

	for stdout != nil || stderr != nil {
		select {
		case line, open := <-stdout:
			if !open {
				stdout = nil
				continue
			}
			handleStdout(line)

		case line, open := <-stderr:
			if !open {
				stderr = nil
				continue
			}
			handleStderr(line)

		case <-done:
			// output is fully buffered once the process is reaped
			drain(stdout, handleStdout)
			drain(stderr, handleStderr)
			return
		}
	}
}

func drain(lines <-chan string, handle func(string)) {
	for {
		select {
		case line, open := <-lines:
			if !open {
				return
			}
			handle(line)
		default:
			return
		}
	}
}

func (r *Runner) publish(ctx context.Context, inv *Invocation, m *Message, logger *slog.Logger) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(context.WithoutCancel(ctx), DecodedSubject(inv.Decoder), m); err != nil {
		logger.Warn(fmt.Sprintf("publishing message: %s", err.Error()))
	}
}
