// Package media probes, thumbnails and transcodes uploaded videos with ffmpeg.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrToolUnavailable indicates the ffmpeg/ffprobe binary could not be started.
var ErrToolUnavailable = errors.New("media tool unavailable")

// CommandRunner executes external commands and returns stdout bytes.
type CommandRunner func(ctx context.Context, binary string, args ...string) ([]byte, error)

// ExecRunner runs binary with os/exec and folds stderr into returned errors.
func ExecRunner(ctx context.Context, binary string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrToolUnavailable, binary)
		}
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 512 {
			msg = msg[len(msg)-512:]
		}
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", binary, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", binary, err)
	}
	return out, nil
}

type tool struct {
	Binary  string
	Run     CommandRunner
	Timeout time.Duration
}

func newTool(binary, fallback string, timeout time.Duration) tool {
	if strings.TrimSpace(binary) == "" {
		binary = fallback
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return tool{Binary: binary, Run: ExecRunner, Timeout: timeout}
}

func (t tool) exec(ctx context.Context, args ...string) ([]byte, error) {
	run := t.Run
	if run == nil {
		run = ExecRunner
	}
	execCtx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()
	return run(execCtx, t.Binary, args...)
}
