// Package subprocess runs external commands with a merged environment,
// captured output and a hard timeout. Everything that shells out (git
// operations, coding-agent adapters) goes through Run so that timeout,
// kill and output decoding behave the same everywhere.
package subprocess

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrTimeout is wrapped into the error returned when a command exceeds
// its timeout. Callers match it with errors.Is.
var ErrTimeout = errors.New("timed out")

// Options control how a command is executed.
type Options struct {
	// Dir is the working directory. Empty means the parent's cwd.
	Dir string
	// Env entries override or extend the parent environment.
	Env map[string]string
	// Timeout bounds the total run time. Zero means no limit.
	Timeout time.Duration
}

// Result is the outcome of a finished (or killed) command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	TimedOut bool
}

// Ok reports whether the command exited normally with status zero.
func (r *Result) Ok() bool {
	return r != nil && r.ExitCode == 0 && !r.TimedOut
}

// Run executes name with args and waits for it to finish.
//
// The child inherits os.Environ() with opts.Env merged on top, runs in
// opts.Dir and has stdout/stderr piped into the Result, decoded as
// UTF-8 with invalid bytes replaced. When opts.Timeout elapses the
// process is killed and reaped, and Run returns the partial Result with
// ExitCode -1 alongside an ErrTimeout-wrapped error.
//
// A non-zero exit status is not an error: it is reported through
// Result.ExitCode. The returned error is non-nil only for timeouts,
// context cancellation and commands that could not be started at all.
func Run(ctx context.Context, name string, args []string, opts Options) (*Result, error) {
	runCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Dir = opts.Dir
	cmd.Env = mergeEnv(opts.Env)
	// A grandchild holding the pipes open must not stall Wait after the
	// kill; give the copiers a grace window, then abandon the pipes.
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := &Result{
		Stdout:   decodeOutput(stdout.Bytes()),
		Stderr:   decodeOutput(stderr.Bytes()),
		Duration: time.Since(start),
	}

	if err != nil {
		if opts.Timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			res.ExitCode = -1
			res.TimedOut = true
			return res, fmt.Errorf("%w after %.0fs", ErrTimeout, opts.Timeout.Seconds())
		}
		if ctx.Err() != nil {
			res.ExitCode = -1
			return res, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		// The binary could not be started at all.
		return nil, err
	}

	res.ExitCode = cmd.ProcessState.ExitCode()
	return res, nil
}

// mergeEnv layers overrides on top of the parent environment and
// returns the KEY=VALUE slice exec.Cmd expects.
func mergeEnv(overrides map[string]string) []string {
	if len(overrides) == 0 {
		return os.Environ()
	}
	base := make(map[string]string, len(os.Environ())+len(overrides))
	for _, entry := range os.Environ() {
		if eq := strings.IndexByte(entry, '='); eq >= 0 {
			base[entry[:eq]] = entry[eq+1:]
		}
	}
	for k, v := range overrides {
		base[k] = v
	}
	merged := make([]string, 0, len(base))
	for k, v := range base {
		merged = append(merged, k+"="+v)
	}
	return merged
}

// decodeOutput treats raw process output as UTF-8, replacing invalid
// byte sequences so the result is always safe to store and log.
func decodeOutput(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}
