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
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/AleutianAI/unitgen/pkg/logging"
	"github.com/AleutianAI/unitgen/pkg/ux"
	"github.com/AleutianAI/unitgen/services/solidity"
	"github.com/AleutianAI/unitgen/services/testgen"
)

var (
	generateOut       string
	generateFunctions []string
	generateRetries   int
	generateExamples  int
	generateSubtests  int
	generateNoRAG     bool
	generateNoWrite   bool

	generateCmd = &cobra.Command{
		Use:   "generate <Contract>",
		Short: "Generate a compiling test suite for a contract",
		Long: `Reads src/<Contract>.sol from the project, generates tests for every
public and external function and writes the accepted ones to
test/<Contract>.t.sol.`,
		Args: cobra.ExactArgs(1),
		RunE: runGenerate,
	}
)

func init() {
	f := generateCmd.Flags()
	f.StringVarP(&generateOut, "out", "o", "", "Output directory (default <project>/test)")
	f.StringSliceVar(&generateFunctions, "functions", nil, "Only these functions (comma separated)")
	f.IntVar(&generateRetries, "retries", 0, "Repair attempts per candidate")
	f.IntVar(&generateExamples, "examples", 0, "Reference examples retrieved per function")
	f.IntVar(&generateSubtests, "subtests", 0, "Reference tests used per example")
	f.BoolVar(&generateNoRAG, "no-rag", false, "Skip retrieval and generate zero-shot")
	f.BoolVar(&generateNoWrite, "no-write", false, "Print the suite instead of writing it")
}

// applyGenerateFlags overlays explicitly set flags on the configured
// generation settings.
func applyGenerateFlags(flags *pflag.FlagSet, cfg testgen.Config) testgen.Config {
	if flags.Changed("retries") {
		cfg.RetryBudget = generateRetries
	}
	if flags.Changed("examples") {
		cfg.ExampleCount = generateExamples
	}
	if flags.Changed("subtests") {
		cfg.SubtestsPerExample = generateSubtests
	}
	if generateNoRAG {
		cfg.UseReferenceGuidance = false
	}
	if verbose {
		cfg.Verbose = true
	}
	return cfg
}

func runGenerate(cmd *cobra.Command, args []string) error {
	contract := args[0]
	if err := solidity.ValidateContractName(contract); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interactive := !jsonOutput && !ux.Stdout().Machine()
	var opts []appOption
	if interactive {
		opts = append(opts, withConsoleFloor(logging.LevelWarn))
	}
	a, err := newApp(ctx, opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := applyGenerateFlags(cmd.Flags(), a.cfg.Generation)
	if err := cfg.Validate(); err != nil {
		return err
	}

	gen, err := a.generator()
	if err != nil {
		return err
	}
	verifier, err := a.verifier()
	if err != nil {
		return err
	}
	var retriever testgen.ExampleRetriever
	if cfg.UseReferenceGuidance {
		retriever = a.retriever(ctx)
	}
	session, err := newSession(gen, verifier, retriever, cfg, a.logger)
	if err != nil {
		return err
	}

	outDir := generateOut
	if outDir == "" {
		outDir = solidity.TestDir(a.project)
	}
	if generateNoWrite {
		outDir = ""
	}

	req := testgen.SessionRequest{
		ProjectDir:   a.project,
		ContractName: contract,
		Functions:    generateFunctions,
		OutputDir:    outDir,
	}
	title := fmt.Sprintf("Generating tests for %s", contract)
	var progress *ux.Progress
	if !interactive {
		a.out.Title(title)
	} else {
		progress = ux.StartProgress(os.Stderr, title, stop)
		req.Observer = progressObserver{progress}
	}

	res, runErr := session.Run(ctx, req)
	if progress != nil {
		progress.Stop()
	}
	if res != nil {
		if err := printSession(a.out, res, progress == nil, generateNoWrite); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	a.logger.Debug("Model calls", slog.Int("count", gen.CallCount()))
	return nil
}

// progressObserver forwards session progress to the terminal display.
type progressObserver struct{ p *ux.Progress }

func (o progressObserver) FunctionStarted(name string) { o.p.FunctionStarted(name) }

func (o progressObserver) FunctionFinished(r testgen.FunctionReport) {
	o.p.Done(r.Name, r.Accepted, r.Rejected, r.Skipped)
}

// printSession renders the per-function outcome, the totals and where the
// suite went. Function lines are skipped when a progress display already
// showed them.
func printSession(out *ux.Printer, res *testgen.SessionResult, functions, printSuite bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if functions {
		for _, f := range res.Functions {
			out.FunctionResult(f.Name, f.Accepted, f.Rejected, f.Skipped)
		}
	}
	accepted, rejected, skipped := res.Totals()
	out.Summary(accepted, rejected, skipped)

	switch {
	case printSuite:
		suite, err := solidity.RenderTestFile(res.Contract, res.Tests)
		if err != nil {
			return err
		}
		out.Code(suite)
	case res.OutputPath != "":
		out.Success(fmt.Sprintf("Wrote %d tests to %s", len(res.Tests), res.OutputPath))
	}
	if accepted == 0 {
		out.Warning("No candidate compiled. Try a larger --retries or a different model.")
	}
	return nil
}
