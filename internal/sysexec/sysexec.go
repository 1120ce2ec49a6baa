package sysexec

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/cjeanneret/photobooth/internal/debug"
)

// Runner executes an external program and returns its stdout.
// Backends depend on this interface so tests can script command output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// SafeCommand wraps exec.Cmd with a buffer catching stderr, so a failing
// gphoto2 or lp call reports what the tool printed.
type SafeCommand struct {
	*exec.Cmd
	Stderr *bytes.Buffer
}

// NewSafeCommand prepares a command with stderr captured. It is not started.
func NewSafeCommand(ctx context.Context, name string, args ...string) *SafeCommand {
	cmd := exec.CommandContext(ctx, name, args...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	return &SafeCommand{Cmd: cmd, Stderr: stderr}
}

// ExecRunner runs real processes.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	debug.Command(name, args)

	sc := NewSafeCommand(ctx, name, args...)
	var stdout bytes.Buffer
	sc.Stdout = &stdout

	if err := sc.Cmd.Run(); err != nil {
		msg := strings.TrimSpace(sc.Stderr.String())
		if msg != "" {
			return stdout.Bytes(), fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return stdout.Bytes(), fmt.Errorf("%s: %w", name, err)
	}
	if debug.IsEnabled(debug.LevelTrace) && sc.Stderr.Len() > 0 {
		debug.Trace("%s stderr: %s", name, strings.TrimSpace(sc.Stderr.String()))
	}
	return stdout.Bytes(), nil
}
