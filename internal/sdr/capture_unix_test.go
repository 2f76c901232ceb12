//go:build !windows

package sdr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"
)

func TestCaptureKillsToolIgnoringStop(t *testing.T) {
	requireShell(t)

	dir := t.TempDir()
	pidFile := filepath.Join(dir, "tool.pid")

	script := fmt.Sprintf(`trap '' TERM; echo $$ > %q; while true; do sleep 0.1; done`, pidFile)
	dev := NewDevice("0", scriptHandler{script},
		WithTempDir(dir),
		WithTimeoutSlack(300*time.Millisecond),
		WithStopGrace(500*time.Millisecond))

	start := time.Now()
	_, err := dev.Capture(context.Background(), testRequest())
	if !errors.Is(err, ErrCaptureTimeout) {
		t.Fatalf("expected %v, got %v", ErrCaptureTimeout, err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("capture took %s", elapsed)
	}

	data, err := os.ReadFile(pidFile)
	if err != nil {
		t.Fatalf("Failed to read pid file: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("Failed to parse pid: %v", err)
	}

	if err = syscall.Kill(pid, 0); !errors.Is(err, syscall.ESRCH) {
		_ = syscall.Kill(-pid, syscall.SIGKILL)
		t.Errorf("tool process %d still exists after capture returned: %v", pid, err)
	}
}
