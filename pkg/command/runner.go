package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Command describes a single external process invocation.
type Command struct {
	Dir   string
	Name  string
	Args  []string
	Env   []string  // KEY=VALUE pairs added to the parent environment
	Stdin io.Reader // optional
	// MergeStderr returns stderr together with stdout.
	MergeStderr bool
	// Secret values masked when the command is logged.
	Secrets []string
}

// String renders the command line with secrets masked.
func (c Command) String() string {
	line := strings.Join(append([]string{c.Name}, c.Args...), " ")
	for _, s := range c.Secrets {
		if s != "" {
			line = strings.ReplaceAll(line, s, "***")
		}
	}
	return line
}

// Runner executes external commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// ExecRunner runs commands with os/exec. Stdout is returned; stderr is
// included in the error when the command fails.
type ExecRunner struct {
	// Stream copies stdout and stderr to the process output while running.
	Stream bool
}

// NewExecRunner creates a Runner backed by os/exec.
func NewExecRunner(stream bool) *ExecRunner {
	return &ExecRunner{Stream: stream}
}

func (r *ExecRunner) Run(ctx context.Context, c Command) ([]byte, error) {
	if c.Name == "" {
		return nil, errors.New("command executable can not be empty")
	}
	if _, err := exec.LookPath(c.Name); err != nil {
		return nil, fmt.Errorf("%s binary not found: %w", c.Name, err)
	}

	slog.Debug("running command", "dir", c.Dir, "command", c.String())

	// #nosec G204 -- executables come from the pipeline file
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stdin = c.Stdin

	var stdout, stderr bytes.Buffer
	var errSink io.Writer = &stderr
	if c.MergeStderr {
		errSink = io.MultiWriter(&stdout, &stderr)
	}
	if r.Stream {
		cmd.Stdout = io.MultiWriter(&stdout, os.Stdout)
		cmd.Stderr = io.MultiWriter(errSink, os.Stderr)
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = errSink
	}

	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), fmt.Errorf("%s failed: %w\nstderr: %s", c.Name, err, mask(stderr.String(), c.Secrets))
	}
	return stdout.Bytes(), nil
}

func mask(s string, secrets []string) string {
	for _, secret := range secrets {
		if secret != "" {
			s = strings.ReplaceAll(s, secret, "***")
		}
	}
	return s
}
