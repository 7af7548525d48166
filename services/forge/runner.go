// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package forge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Run is the result of one forge invocation.
type Run struct {
	// Output is stdout, followed by stderr when CaptureStderr is set.
	Output string

	// ExitCode is the process exit code, -1 if it never exited normally.
	ExitCode int

	Duration  time.Duration
	TimedOut  bool
	Truncated bool
}

// Runner executes forge for a contract.
//
// # Thread Safety
//
// Safe for concurrent use. Callers must serialize runs that share a scratch
// file (see ContractLocks).
type Runner struct {
	binary        string
	args          []string
	dir           string
	timeout       time.Duration
	maxOutput     int
	captureStderr bool
	logger        *slog.Logger
}

// NewRunner creates a Runner from a validated Config.
func NewRunner(cfg Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		binary:        cfg.Binary,
		args:          cfg.Args,
		dir:           cfg.ProjectDir,
		timeout:       cfg.Timeout,
		maxOutput:     cfg.MaxOutputBytes,
		captureStderr: cfg.CaptureStderr,
		logger:        logger,
	}
}

// Run executes forge scoped to contract.
//
// # Description
//
// Runs the configured command in the project directory with the runner's
// timeout. A non-zero exit code is a normal outcome (failed compile or
// failed test) and is not an error.
//
// # Inputs
//
//   - ctx: Cancellation. The runner's timeout is applied on top.
//   - contract: Contract name substituted for {contract}.
//
// # Outputs
//
//   - *Run: Always non-nil, even with an error.
//   - error: ErrTimeout, ErrBinaryNotFound, ErrExecFailed, or ctx.Err().
func (r *Runner) Run(ctx context.Context, contract string) (*Run, error) {
	if ctx == nil {
		return &Run{ExitCode: -1}, ErrNilContext
	}
	args := substituteArgs(r.args, contract)
	start := time.Now()
	run, err := r.execute(ctx, args)
	run.Duration = time.Since(start)

	r.logger.Debug("forge finished",
		slog.String("contract", contract),
		slog.Int("exit_code", run.ExitCode),
		slog.Duration("duration", run.Duration),
		slog.Int("output_bytes", len(run.Output)),
		slog.Bool("truncated", run.Truncated),
	)
	return run, err
}

func (r *Runner) execute(ctx context.Context, args []string) (*Run, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Dir = r.dir
	// forge spawns solc; do not wait forever on pipes a killed child's
	// descendants still hold open.
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	stdoutLimited := &limitedWriter{w: &stdout, limit: r.maxOutput}
	stderrLimited := &limitedWriter{w: &stderr, limit: r.maxOutput}
	cmd.Stdout = stdoutLimited
	cmd.Stderr = stderrLimited

	r.logger.Debug("Executing command",
		slog.String("command", r.binary),
		slog.Any("args", args),
		slog.String("dir", r.dir),
		slog.Duration("timeout", r.timeout),
	)

	err := cmd.Run()

	output := stdout.String()
	if r.captureStderr && stderr.Len() > 0 {
		if output != "" && !strings.HasSuffix(output, "\n") {
			output += "\n"
		}
		output += stderr.String()
	}
	run := &Run{
		Output:    output,
		Truncated: stdoutLimited.truncated || stderrLimited.truncated,
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		run.TimedOut = true
		run.ExitCode = -1
		r.logger.Warn("forge timed out", slog.Duration("timeout", r.timeout))
		return run, ErrTimeout
	}

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr) && exitErr.ExitCode() >= 0:
			run.ExitCode = exitErr.ExitCode()
		case errors.Is(err, exec.ErrNotFound):
			run.ExitCode = -1
			return run, fmt.Errorf("%w: %s", ErrBinaryNotFound, r.binary)
		case ctx.Err() != nil:
			run.ExitCode = -1
			return run, ctx.Err()
		default:
			run.ExitCode = -1
			return run, fmt.Errorf("%w: %v", ErrExecFailed, err)
		}
	}
	return run, nil
}

func substituteArgs(args []string, contract string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		out[i] = strings.ReplaceAll(arg, "{contract}", contract)
	}
	return out
}

// limitedWriter caps the bytes written to w and records truncation.
type limitedWriter struct {
	w         io.Writer
	limit     int
	written   int
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if lw.written >= lw.limit {
		lw.truncated = true
		return len(p), nil
	}
	n := len(p)
	if remaining := lw.limit - lw.written; n > remaining {
		p = p[:remaining]
		lw.truncated = true
	}
	written, err := lw.w.Write(p)
	lw.written += written
	return n, err
}
