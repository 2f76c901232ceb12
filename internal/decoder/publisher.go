package decoder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// DefaultSubjectPrefix is the root of every published subject
	DefaultSubjectPrefix = "rfsweep"

	connectionName = "rf-sweep"
)

// Publisher sends JSON payloads to a subject
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
	Close() error
}

// Target is a detection handed to a decoder, locally or through a publisher
type Target struct {
	Frequency   float64   `json:"frequency"`
	PowerDB     float64   `json:"power_db"`
	Bandwidth   float64   `json:"bandwidth"`
	Band        string    `json:"band"`
	Decoder     string    `json:"decoder"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	RunID       string    `json:"run_id,omitempty"`
	Generation  int       `json:"generation"`
}

// DetectionSubject returns the subject detections routed to decoder are published on
func DetectionSubject(decoder string) string {
	return subject("detections", decoder)
}

// DecodedSubject returns the subject decoded messages of decoder are published on
func DecodedSubject(decoder string) string {
	return subject("decoded", decoder)
}

func subject(kind, decoder string) string {
	// NATS tokens may not contain dots or whitespace
	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', ' ', '\t', '*', '>':
			return '_'
		}
		return r
	}, decoder)
	return DefaultSubjectPrefix + "." + kind + "." + token
}

// Dispatch publishes every target on the detection subject of its decoder.
// All targets are attempted; the first error is returned.
func Dispatch(ctx context.Context, p Publisher, targets []Target) error {
	var firstErr error
	for _, t := range targets {
		if err := p.Publish(ctx, DetectionSubject(t.Decoder), t); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NATSPublisher publishes to a NATS server and reconnects indefinitely
type NATSPublisher struct {
	conn   *nats.Conn
	mu     sync.Mutex
	logger *slog.Logger
}

// NewNATSPublisher connects to url. A nil logger discards connection events.
func NewNATSPublisher(url string, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger
	}
	logger = logger.With(slog.String("component", "nats"))

	opts := []nats.Option{
		nats.Name(connectionName),
		nats.Timeout(5 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn(fmt.Sprintf("disconnected: %s", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logger.Debug("connection closed")
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}

	logger.Info("connected", slog.String("url", conn.ConnectedUrl()))

	return &NATSPublisher{conn: conn, logger: logger}, nil
}

// Publish marshals v to JSON and publishes it on subject
func (p *NATSPublisher) Publish(_ context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshalling payload: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nats.ErrConnectionClosed
	}

	if err = p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection
func (p *NATSPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil
	}

	err := p.conn.FlushTimeout(2 * time.Second)
	p.conn.Close()
	p.conn = nil

	if err != nil {
		return fmt.Errorf("flushing NATS connection: %w", err)
	}
	return nil
}
