// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package testgen

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/AleutianAI/unitgen/services/retrieval"
)

// =============================================================================
// MOCKS
// =============================================================================

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockGenerator returns numbered candidates unless the hooks override them.
type mockGenerator struct {
	mu sync.Mutex

	generateFn func(ctx context.Context, ref *Reference, target Target) (CandidateTest, error)
	repairFn   func(ctx context.Context, rc RepairContext, n int) (CandidateTest, error)

	generateCalls int
	repairCalls   int
	refs          []Reference
	repairCtxs    []RepairContext
}

func (m *mockGenerator) Generate(ctx context.Context, ref Reference, target Target) (CandidateTest, error) {
	m.mu.Lock()
	m.generateCalls++
	m.refs = append(m.refs, ref)
	m.mu.Unlock()
	if m.generateFn != nil {
		return m.generateFn(ctx, &ref, target)
	}
	return candidateN(0), nil
}

func (m *mockGenerator) GenerateWithoutReference(ctx context.Context, target Target) (CandidateTest, error) {
	m.mu.Lock()
	m.generateCalls++
	m.mu.Unlock()
	if m.generateFn != nil {
		return m.generateFn(ctx, nil, target)
	}
	return candidateN(0), nil
}

func (m *mockGenerator) Repair(ctx context.Context, rc RepairContext) (CandidateTest, error) {
	m.mu.Lock()
	m.repairCalls++
	n := m.repairCalls
	m.repairCtxs = append(m.repairCtxs, rc)
	m.mu.Unlock()
	if m.repairFn != nil {
		return m.repairFn(ctx, rc, n)
	}
	return candidateN(n), nil
}

// candidateN is the n-th generation of a well-formed test function.
func candidateN(n int) CandidateTest {
	return CandidateTest(fmt.Sprintf("function test_gen%d() public {\n    assertTrue(true);\n}", n))
}

// mockVerifier answers from outputs in call order, repeating the last one.
type mockVerifier struct {
	mu sync.Mutex

	outputs []string
	fn      func(ctx context.Context, contract, candidate string, n int) (string, error)

	calls      int
	candidates []string
	contracts  []string
}

func (m *mockVerifier) Verify(ctx context.Context, contract, candidate string) (string, error) {
	m.mu.Lock()
	m.calls++
	n := m.calls
	m.candidates = append(m.candidates, candidate)
	m.contracts = append(m.contracts, contract)
	m.mu.Unlock()

	if m.fn != nil {
		return m.fn(ctx, contract, candidate, n)
	}
	if len(m.outputs) == 0 {
		return "", nil
	}
	if n > len(m.outputs) {
		return m.outputs[len(m.outputs)-1], nil
	}
	return m.outputs[n-1], nil
}

func (m *mockVerifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

const (
	passOutput    = "[⠊] Compiling...\nCompiler run successful!\nRan 1 test for test/Vault.t.sol:VaultTest"
	skippedOutput = "No files changed, compilation skipped\nRan 1 test"
	failOutput    = "Error (7576): Undeclared identifier.\n --> test/Vault.t.sol:9:9:"
)

type mockDescriber struct {
	err   error
	calls int
}

func (m *mockDescriber) Describe(ctx context.Context, functionSource string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return "describes " + functionSource, nil
}

type mockRetriever struct {
	docs  []retrieval.Document
	err   error
	lastK int
}

func (m *mockRetriever) Retrieve(ctx context.Context, description string, k int) ([]retrieval.Document, error) {
	m.lastK = k
	if m.err != nil {
		return nil, m.err
	}
	return m.docs, nil
}
