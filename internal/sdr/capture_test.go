package sdr

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/roman-kulish/rf-sweep/internal/spectrum"
)

// scriptHandler runs a shell script in place of a capture tool.
// The script receives the output path as $1.
type scriptHandler struct {
	script string
}

func (h scriptHandler) Command(_ CaptureRequest, outputPath string) (string, []string, error) {
	return "sh", []string{"-c", h.script, "capture", outputPath}, nil
}

func (h scriptHandler) Format() SampleFormat {
	return FormatCU8
}

func (h scriptHandler) Device() string {
	return "Script"
}

type missingHandler struct {
	scriptHandler
}

func (h missingHandler) Command(CaptureRequest, string) (string, []string, error) {
	return "/nonexistent/capture-tool", nil, nil
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh is not available")
	}
}

func testRequest() CaptureRequest {
	return CaptureRequest{
		CenterFrequency: 100e6,
		SampleRate:      2e6,
		Gain:            40,
		NumSamples:      8192,
		Duration:        0,
	}
}

func TestCapture(t *testing.T) {
	requireShell(t)

	dev := NewDevice("0", scriptHandler{`head -c 16384 /dev/zero > "$1"`}, WithTempDir(t.TempDir()))

	buf, err := dev.Capture(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Failed to capture: %v", err)
	}

	if buf.Len() != 8192 {
		t.Errorf("got %d samples, want 8192", buf.Len())
	}
	if buf.CenterFrequency != 100e6 || buf.SampleRate != 2e6 {
		t.Errorf("unexpected buffer metadata: %g, %g", buf.CenterFrequency, buf.SampleRate)
	}
}

func TestCaptureErrors(t *testing.T) {
	requireShell(t)

	testCases := []struct {
		name    string
		handler Handler
		want    error
	}{
		{"timeout", scriptHandler{"sleep 5"}, ErrCaptureTimeout},
		{"non-zero exit", scriptHandler{"echo device busy >&2; exit 1"}, ErrCaptureUnavailable},
		{"missing binary", missingHandler{}, ErrCaptureUnavailable},
		{"no output", scriptHandler{"true"}, spectrum.ErrInsufficientSamples},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dev := NewDevice("0", tc.handler,
				WithTempDir(t.TempDir()),
				WithTimeoutSlack(300*time.Millisecond),
				WithStopGrace(2*time.Second))

			start := time.Now()
			_, err := dev.Capture(context.Background(), testRequest())
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if elapsed := time.Since(start); elapsed > 4*time.Second {
				t.Errorf("capture took %s", elapsed)
			}
		})
	}
}

func TestCaptureStderrTail(t *testing.T) {
	requireShell(t)

	dev := NewDevice("0", scriptHandler{"echo usb claim failed >&2; exit 3"}, WithTempDir(t.TempDir()))

	_, err := dev.Capture(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "usb claim failed") || !strings.Contains(err.Error(), "code 3") {
		t.Errorf("error does not carry the tool diagnostics: %v", err)
	}
}

func TestCaptureInvalidRequest(t *testing.T) {
	dev := NewDevice("0", scriptHandler{"true"})

	req := testRequest()
	req.NumSamples = 0

	if _, err := dev.Capture(context.Background(), req); err == nil {
		t.Error("expected validation error")
	}
}

func TestStderrTail(t *testing.T) {
	got := stderrTail([]string{"a", "b", "c", "d"})
	if got != "b; c; d" {
		t.Errorf("stderrTail = %q", got)
	}
}
