package util

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// HasCommand checks if a command is available in the system PATH.
func HasCommand(name string) bool {
	if name == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}

// RunCommand executes a command and returns its trimmed combined output
// (stdout+stderr). The command is killed when ctx is done.
func RunCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	out := strings.TrimSpace(buf.String())

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return out, fmt.Errorf("%s timed out: %w", name, ctx.Err())
	}
	if err != nil {
		return out, fmt.Errorf("%s failed: %w (output: %q)", name, err, out)
	}
	return out, nil
}
