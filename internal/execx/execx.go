package execx

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// Result captures everything a caller needs to interpret an external tool
// invocation. A timeout is reported via TimedOut, not as an error, because
// every collaborator here treats it as one more classifiable outcome.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

// Runner abstracts command execution so packages can be unit-tested without
// touching the real doublezero/solana/ping binaries.
type Runner interface {
	// Run executes name with args, bounded by timeout when timeout > 0.
	// A non-zero exit is not an error; the caller decides what it means.
	// An error is returned only when the process could not be started.
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error)

	// Look reports whether name resolves to an executable on PATH.
	Look(name string) (string, bool)
}

// OSRunner executes commands on the host via os/exec.
type OSRunner struct{}

func (OSRunner) Look(name string) (string, bool) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", false
	}
	return path, true
}

func (OSRunner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
		return res, nil
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, err
	}
	return res, nil
}
