// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/unitgen/services/solidity"
	"github.com/AleutianAI/unitgen/services/testgen"
)

// errVerificationFailed makes the process exit non-zero when the file does
// not compile.
var errVerificationFailed = errors.New("verification failed")

var verifyCmd = &cobra.Command{
	Use:   "verify <Contract> <file.t.sol>",
	Short: "Compile a test file against a contract and classify the result",
	Args:  cobra.ExactArgs(2),
	RunE:  runVerify,
}

func runVerify(cmd *cobra.Command, args []string) error {
	contract, file := args[0], args[1]
	if err := solidity.ValidateContractName(contract); err != nil {
		return err
	}
	content, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read test file: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	verifier, err := a.verifier()
	if err != nil {
		return err
	}
	run, err := verifier.VerifySuite(ctx, contract, string(content))
	if err != nil {
		if run != nil && run.Output != "" {
			a.out.Code(run.Output)
		}
		return err
	}

	outcome := testgen.ClassifierFromConfig(a.cfg.Generation).Outcome(run.Output)
	if verbose || !outcome.Passed {
		a.out.Code(outcome.RawOutput)
	}
	if !outcome.Passed {
		a.out.Error(fmt.Sprintf("%s does not compile against %s (exit %d)", file, contract, run.ExitCode))
		return errVerificationFailed
	}
	a.out.Success(fmt.Sprintf("%s compiles against %s in %s", file, contract, run.Duration.Round(time.Millisecond)))
	return nil
}
