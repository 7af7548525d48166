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
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/unitgen/cmd/unitgen/config"
	"github.com/AleutianAI/unitgen/pkg/logging"
	"github.com/AleutianAI/unitgen/pkg/ux"
	"github.com/AleutianAI/unitgen/services/llm"
	"github.com/AleutianAI/unitgen/services/retrieval"
	"github.com/AleutianAI/unitgen/services/testgen"
)

type staticLLM struct{ out string }

func (s staticLLM) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	return s.out, nil
}

type passVerifier struct{}

func (passVerifier) Verify(ctx context.Context, contract, candidate string) (string, error) {
	return "Compiler run successful!", nil
}

type oneDocRetriever struct{}

func (oneDocRetriever) Retrieve(ctx context.Context, description string, k int) ([]retrieval.Document, error) {
	return []retrieval.Document{{Function: "function f() public {}", Tests: []string{"function test_f() public {}"}}}, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestApplyGenerateFlags(t *testing.T) {
	saved := []any{generateRetries, generateExamples, generateSubtests, generateNoRAG, verbose}
	t.Cleanup(func() {
		generateRetries = saved[0].(int)
		generateExamples = saved[1].(int)
		generateSubtests = saved[2].(int)
		generateNoRAG = saved[3].(bool)
		verbose = saved[4].(bool)
	})

	fs := pflag.NewFlagSet("generate", pflag.ContinueOnError)
	fs.IntVar(&generateRetries, "retries", 0, "")
	fs.IntVar(&generateExamples, "examples", 0, "")
	fs.IntVar(&generateSubtests, "subtests", 0, "")
	fs.BoolVar(&generateNoRAG, "no-rag", false, "")
	require.NoError(t, fs.Parse([]string{"--retries=0", "--no-rag"}))

	base := testgen.DefaultConfig()
	cfg := applyGenerateFlags(fs, base)

	assert.Equal(t, 0, cfg.RetryBudget, "explicit zero is honored")
	assert.Equal(t, base.ExampleCount, cfg.ExampleCount, "unset flags keep the config value")
	assert.Equal(t, base.SubtestsPerExample, cfg.SubtestsPerExample)
	assert.False(t, cfg.UseReferenceGuidance)
	assert.True(t, base.UseReferenceGuidance, "base is not mutated")
}

func TestNewSession_ReferenceGuidanceNeedsRetriever(t *testing.T) {
	gen, err := testgen.NewGenerator(testgen.Models{Test: staticLLM{out: "function test_x() public {}"}}, discard())
	require.NoError(t, err)

	zeroShot, err := newSession(gen, passVerifier{}, nil, testgen.DefaultConfig(), discard())
	require.NoError(t, err)
	assert.False(t, zeroShot.ReferenceGuided())

	guided, err := newSession(gen, passVerifier{}, oneDocRetriever{}, testgen.DefaultConfig(), discard())
	require.NoError(t, err)
	assert.True(t, guided.ReferenceGuided())

	bad := testgen.DefaultConfig()
	bad.SuccessMarkers = nil
	_, err = newSession(gen, passVerifier{}, nil, bad, discard())
	assert.Error(t, err)
}

func TestNewSession_EndToEndWithFakes(t *testing.T) {
	gen, err := testgen.NewGenerator(testgen.Models{
		Test: staticLLM{out: "```solidity\nfunction test_deposit() public {\n    assertTrue(true);\n}\n```"},
	}, discard())
	require.NoError(t, err)
	session, err := newSession(gen, passVerifier{}, nil, testgen.DefaultConfig(), discard())
	require.NoError(t, err)

	out := t.TempDir()
	res, err := session.Run(context.Background(), testgen.SessionRequest{
		ContractName:   "Vault",
		ContractSource: "contract Vault {\n    function deposit() public payable {\n        x = 1;\n    }\n}\n",
		OutputDir:      out,
	})
	require.NoError(t, err)
	assert.Len(t, res.Tests, 1)

	data, err := os.ReadFile(filepath.Join(out, "Vault.t.sol"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "contract VaultTest is Test")
	assert.Contains(t, string(data), "function test_deposit()")
}

func TestPrintSession_Machine(t *testing.T) {
	var buf bytes.Buffer
	res := &testgen.SessionResult{
		Contract: "Vault",
		Functions: []testgen.FunctionReport{
			{Name: "deposit", Lineages: 2, Accepted: 2},
			{Name: "withdraw", Lineages: 2, Rejected: 1, Skipped: 1},
		},
		Tests:      []string{"function test_a() public {}", "function test_b() public {}"},
		OutputPath: "/work/test/Vault.t.sol",
	}

	require.NoError(t, printSession(ux.NewPrinter(&buf, true), res, true, false))

	out := buf.String()
	assert.Contains(t, out, "FUNCTION\tdeposit\taccepted=2\trejected=0\tskipped=0")
	assert.Contains(t, out, "FUNCTION\twithdraw\taccepted=0\trejected=1\tskipped=1")
	assert.Contains(t, out, "SUMMARY: accepted=2 rejected=1 skipped=1")
	assert.Contains(t, out, "/work/test/Vault.t.sol")
}

func TestPrintSession_PrintsSuite(t *testing.T) {
	var buf bytes.Buffer
	res := &testgen.SessionResult{
		Contract: "Vault",
		Tests:    []string{"function test_a() public {}"},
	}

	require.NoError(t, printSession(ux.NewPrinter(&buf, true), res, false, true))

	assert.Contains(t, buf.String(), "contract VaultTest is Test {")
	assert.Contains(t, buf.String(), "No candidate compiled")
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	assert.Equal(t, filepath.Join(home, ".unitgen/corpus"), expandHome("~/.unitgen/corpus"))
	assert.Equal(t, "/abs/path", expandHome("/abs/path"))
	assert.Equal(t, "rel/~", expandHome("rel/~"))
}

func TestReadContract_Missing(t *testing.T) {
	_, err := readContract(t.TempDir(), "Nope")
	assert.ErrorIs(t, err, testgen.ErrContractUnreadable)
}

func TestWithPrometheus(t *testing.T) {
	cfg := config.Default()
	cfg.Telemetry.MetricExporter = "none"
	withPrometheus()(&appSettings{cfg: &cfg})
	assert.Equal(t, "prometheus", cfg.Telemetry.MetricExporter)

	cfg.Telemetry.MetricExporter = "stdout"
	withPrometheus()(&appSettings{cfg: &cfg})
	assert.Equal(t, "stdout", cfg.Telemetry.MetricExporter)
}

func TestLoggingConfig_ConsoleFloor(t *testing.T) {
	cfg := config.Default()
	s := &appSettings{cfg: &cfg}
	withConsoleFloor(logging.LevelWarn)(s)

	assert.Equal(t, logging.LevelWarn, loggingConfig(s, false).Level)
	assert.Equal(t, logging.LevelDebug, loggingConfig(s, true).Level)

	cfg.Logging.Level = "error"
	assert.Equal(t, logging.LevelError, loggingConfig(s, false).Level)
}

func TestLoggingConfig_RecentLogs(t *testing.T) {
	cfg := config.Default()
	s := &appSettings{cfg: &cfg}
	assert.Nil(t, loggingConfig(s, false).Exporter)

	withRecentLogs()(s)
	exp, ok := loggingConfig(s, false).Exporter.(*logging.BufferedExporter)
	require.True(t, ok)
	assert.NotNil(t, exp)

	cfg.Logging.Recent = 0
	assert.Nil(t, loggingConfig(s, false).Exporter)
}

func TestRecentLogs_NilWhenDisabled(t *testing.T) {
	assert.Nil(t, recentLogs(&app{}))
	assert.NotNil(t, recentLogs(&app{recent: logging.NewBufferedExporter(1)}))
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	t.Cleanup(func() { versionCmd.SetOut(nil) })

	versionCmd.Run(versionCmd, nil)

	assert.True(t, strings.HasPrefix(buf.String(), "unitgen "+Version))
}
