package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
)

// Runner executes an external command with stdin and returns its stdout.
type Runner interface {
	Run(ctx context.Context, binary string, args []string, stdin []byte) ([]byte, error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct{}

// ErrNotStarted marks a command whose process never ran (missing binary,
// permission denied). Runner implementations wrap start failures with it so
// callers can tell a broken tool apart from a tool that rejected its input.
var ErrNotStarted = errors.New("command not started")

// Run implements Runner. Non-zero exits include the trimmed stderr tail.
func (ExecRunner) Run(ctx context.Context, binary string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", binary, ErrNotStarted, err)
	}
	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", binary, err, tail(stderr.String(), 512))
	}
	return stdout.Bytes(), nil
}

// toolFailed reports whether err means the external tool itself could not
// run, as opposed to exiting non-zero on bad input.
func toolFailed(err error) bool {
	return errors.Is(err, ErrNotStarted) ||
		errors.Is(err, exec.ErrNotFound) ||
		errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, fs.ErrNotExist)
}

func tail(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return "..." + s[len(s)-limit:]
}
