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
	"sync"
	"time"

	"github.com/AleutianAI/unitgen/services/retrieval"
)

// =============================================================================
// INTERFACES
// =============================================================================

// CandidateGenerator produces and repairs candidate tests.
type CandidateGenerator interface {
	// Generate writes a test for target modelled on ref.
	Generate(ctx context.Context, ref Reference, target Target) (CandidateTest, error)

	// GenerateWithoutReference writes a test for target from scratch.
	GenerateWithoutReference(ctx context.Context, target Target) (CandidateTest, error)

	// Repair rewrites rc.CurrentCandidate to address rc.VerifierOutput.
	Repair(ctx context.Context, rc RepairContext) (CandidateTest, error)
}

// Describer summarizes a function in plain text for example retrieval.
type Describer interface {
	Describe(ctx context.Context, functionSource string) (string, error)
}

// Verifier compiles and runs one candidate scoped to a contract and returns
// the raw tool output. A failing compile is not an error.
type Verifier interface {
	Verify(ctx context.Context, contract, candidate string) (string, error)
}

// ExampleRetriever finds reference documents for a function description.
type ExampleRetriever interface {
	Retrieve(ctx context.Context, description string, k int) ([]retrieval.Document, error)
}

// =============================================================================
// DATA MODEL
// =============================================================================

// CandidateTest is the source text of one generated test function. Every
// repair produces a new value.
type CandidateTest string

// String returns the source text.
func (c CandidateTest) String() string { return string(c) }

// VerificationOutcome is the classified result of one verifier run.
type VerificationOutcome struct {
	Passed    bool   `json:"passed"`
	RawOutput string `json:"raw_output"`
}

// RepairContext is everything the repair step sees.
type RepairContext struct {
	FunctionUnderTest string
	ContractUnderTest string
	CurrentCandidate  CandidateTest
	VerifierOutput    string
}

// Target identifies the function a lineage tests.
type Target struct {
	// ContractName is the contract namespace the verifier runs under.
	ContractName string

	// ContractSource is the full source of the subject contract file.
	ContractSource string

	// FunctionName is used for logging and reports.
	FunctionName string

	// FunctionSource is the function's declaration and body.
	FunctionSource string
}

// Reference is one reference test with the function it was written for.
type Reference struct {
	Function string
	Test     string
}

// =============================================================================
// LOOP STATE
// =============================================================================

// State is a repair loop state.
type State string

const (
	StateGenerated State = "generated"
	StateVerifying State = "verifying"
	StateRepairing State = "repairing"
	StateAccepted  State = "accepted"
	StateExhausted State = "exhausted"

	// StateFailed ends a lineage on a generation or verifier error.
	StateFailed State = "failed"
)

// String returns the state name.
func (s State) String() string { return string(s) }

// IsTerminal reports whether the loop has stopped in this state.
func (s State) IsTerminal() bool {
	return s == StateAccepted || s == StateExhausted || s == StateFailed
}

// Attempt records one verification of one candidate.
type Attempt struct {
	Candidate CandidateTest       `json:"candidate"`
	Outcome   VerificationOutcome `json:"outcome"`

	// Malformed is set when the candidate failed the shape check and the
	// verifier was not invoked.
	Malformed bool          `json:"malformed,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// LoopResult is the final state of one lineage.
type LoopResult struct {
	// Final is the accepted candidate, or the last one attempted.
	Final    CandidateTest `json:"final"`
	Accepted bool          `json:"accepted"`
	State    State         `json:"state"`

	History       []Attempt `json:"history"`
	VerifierCalls int       `json:"verifier_calls"`
	RepairCalls   int       `json:"repair_calls"`
}

// LastOutcome returns the most recent outcome, if any.
func (r *LoopResult) LastOutcome() (VerificationOutcome, bool) {
	if len(r.History) == 0 {
		return VerificationOutcome{}, false
	}
	return r.History[len(r.History)-1].Outcome, true
}

// =============================================================================
// TEST COLLECTION
// =============================================================================

// TestCollection is the ordered, append-only set of accepted tests of one
// session.
//
// Thread Safety: Safe for concurrent use.
type TestCollection struct {
	mu    sync.Mutex
	tests []CandidateTest
}

// Append adds an accepted candidate.
func (c *TestCollection) Append(t CandidateTest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tests = append(c.tests, t)
}

// Tests returns a copy of the collected tests in append order.
func (c *TestCollection) Tests() []CandidateTest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CandidateTest, len(c.tests))
	copy(out, c.tests)
	return out
}

// Strings returns the collected tests as plain strings.
func (c *TestCollection) Strings() []string {
	tests := c.Tests()
	out := make([]string, len(tests))
	for i, t := range tests {
		out[i] = string(t)
	}
	return out
}

// Len returns the number of collected tests.
func (c *TestCollection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tests)
}
