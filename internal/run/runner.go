// Package run executes external system commands for the bringup CLI.
//
// Every script-like operation in this toolkit reduces to invoking host
// tools (pacman, nmcli, mbimcli, rfkill, fprintd-enroll) and inspecting
// their output. This package centralizes that: per-attempt timeouts via
// context, stdout/stderr capture, dry-run support, and a Runner
// interface so higher layers can be tested against a scripted Fake
// without touching the host.
//
// Design decisions:
//   - We shell out rather than binding C libraries (libmbim, libnm)
//     because the CLI tools are the stable, documented interface on the
//     distributions this toolkit targets, and the original workflow is
//     defined in terms of them.
//   - Timeouts are plain context deadlines. A command that outlives its
//     deadline is killed and reported as a timeout error; callers that
//     pass a zero timeout run without one (graceful degradation for
//     commands with no sensible bound, e.g. package installation).
package run

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/mmr-tortoise/bringup/internal/model"
)

// Result holds the captured output of a completed command.
type Result struct {
	// Stdout is the complete standard output, untrimmed.
	Stdout string

	// Stderr is the complete standard error, untrimmed.
	Stderr string
}

// Runner abstracts external command execution. The production
// implementation is Exec; tests use Fake.
type Runner interface {
	// Run executes name with args, honoring the context deadline.
	// A non-zero exit or a timeout is returned as an error; the Result
	// still carries whatever output was produced.
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// Exec runs commands on the host via os/exec.
type Exec struct {
	// DryRun causes Run to print the command instead of executing it.
	// Dry runs report success with empty output, which means chains
	// that branch on command output will follow their "nothing there
	// yet" path — acceptable for previewing side effects.
	DryRun bool

	// Verbose, when non-nil, receives a trace line per executed command.
	Verbose func(format string, args ...interface{})
}

// Run executes the command, capturing stdout and stderr separately.
// On failure the returned error includes the trimmed stderr, which is
// what the underlying tools use for diagnostics.
func (e *Exec) Run(ctx context.Context, name string, args ...string) (Result, error) {
	display := commandString(name, args)
	if e.Verbose != nil {
		e.Verbose("exec: %s", display)
	}
	if e.DryRun {
		fmt.Printf("[dry-run] %s\n", display)
		return Result{}, nil
	}

	// #nosec G204 — command names and arguments are constructed
	// internally from flags and config, not from untrusted input.
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		// Distinguish timeouts from ordinary failures: the chain logic
		// treats both as non-fatal, but the message should say which
		// happened.
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
			return res, fmt.Errorf("%s timed out: %w", display, ctxErr)
		}
		stderrStr := strings.TrimSpace(res.Stderr)
		if stderrStr != "" {
			return res, fmt.Errorf("%s failed: %s: %w", display, stderrStr, err)
		}
		return res, fmt.Errorf("%s failed: %w", display, err)
	}
	return res, nil
}

// WithTimeout derives a context for a single command attempt. A zero or
// negative timeout returns the parent unchanged with a no-op cancel, so
// call sites can apply it unconditionally.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// LookPath verifies that a required tool is installed, returning a
// CLIError suitable for immediate abort when it is not. Missing tools
// are fatal preconditions, not operational failures to fall through.
func LookPath(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return model.WrapCLIError(model.ExitFailure,
			fmt.Sprintf("required tool %q not found in PATH", name), err)
	}
	return nil
}

// commandString renders a command line for logs and error messages.
func commandString(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}
