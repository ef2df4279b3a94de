package ocr

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// maxLoggedStderr caps how much tool stderr ends up in a log record.
const maxLoggedStderr = 8 << 10

// Runner executes an external tool; tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct {
	logger *slog.Logger
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	log := r.logger.With(
		"tool", filepath.Base(name),
		"args", strings.Join(args, " "),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if err != nil {
		log.Error("ocr.exec.failed", "error", err, "stderr", truncate(stderr.String(), maxLoggedStderr))
	} else {
		log.Debug("ocr.exec.ok", "stdout_bytes", stdout.Len(), "stderr_bytes", stderr.Len())
	}
	return stdout.Bytes(), stderr.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
