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
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/unitgen/services/solidity"
)

// Verifier compiles and runs candidate tests against a Foundry project.
//
// # Thread Safety
//
// Safe for concurrent use. Verifications of the same contract are
// serialized; different contracts run in parallel.
type Verifier struct {
	cfg     Config
	runner  *Runner
	scratch *ScratchFiles
	locks   *ContractLocks
	logger  *slog.Logger
}

// NewVerifier validates cfg and builds a Verifier.
func NewVerifier(cfg Config, logger *slog.Logger) (*Verifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "forge"))
	return &Verifier{
		cfg:     cfg,
		runner:  NewRunner(cfg, logger),
		scratch: NewScratchFiles(logger),
		locks:   NewContractLocks(cfg, logger),
		logger:  logger,
	}, nil
}

// ProjectDir returns the Foundry project root.
func (v *Verifier) ProjectDir() string {
	return v.cfg.ProjectDir
}

// Verify runs one candidate test function against contract.
//
// # Description
//
// Renders the candidate as the only member of {contract}Test, writes it to
// the scratch path, runs forge and removes the scratch file. The caller
// decides from the returned output whether the candidate passed.
//
// # Inputs
//
//   - ctx: Cancellation, including while waiting for the contract lock.
//   - contract: Subject contract name.
//   - candidate: Test function source.
//
// # Outputs
//
//   - string: Raw forge output. Partial output is returned with ErrTimeout.
//   - error: Lock, write, exec or restore failures. A failing compile is
//     NOT an error.
func (v *Verifier) Verify(ctx context.Context, contract, candidate string) (string, error) {
	content, err := solidity.RenderTestFile(contract, []string{candidate})
	if err != nil {
		return "", err
	}
	run, err := v.VerifySuite(ctx, contract, content)
	if run == nil {
		return "", err
	}
	return run.Output, err
}

// VerifySuite runs a complete test file for contract from the scratch path.
func (v *Verifier) VerifySuite(ctx context.Context, contract, content string) (*Run, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if err := solidity.ValidateContractName(contract); err != nil {
		return nil, err
	}

	waitStart := time.Now()
	release, err := v.locks.Acquire(ctx, contract)
	if err != nil {
		return nil, fmt.Errorf("acquire lock for %s: %w", contract, err)
	}
	defer release()
	if waited := time.Since(waitStart); waited > time.Second {
		v.logger.Debug("Acquired contract lock",
			slog.String("contract", contract),
			slog.Duration("waited", waited),
		)
	}

	path := solidity.TestPath(v.cfg.ProjectDir, contract)
	if err := v.scratch.Write(path, content); err != nil {
		return nil, err
	}

	run, runErr := v.runner.Run(ctx, contract)

	if err := v.scratch.Remove(path); err != nil {
		if runErr == nil {
			runErr = err
		} else {
			v.logger.Error("Scratch cleanup failed after forge error",
				slog.String("contract", contract),
				slog.String("error", err.Error()),
			)
		}
	}
	return run, runErr
}

// Close removes any scratch file left behind by a cancelled verification.
func (v *Verifier) Close() error {
	return v.scratch.RemoveAll()
}
