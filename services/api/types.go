// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api exposes test generation and single-candidate verification
// over HTTP.
package api

import (
	"github.com/AleutianAI/unitgen/pkg/logging"
	"github.com/AleutianAI/unitgen/services/testgen"
)

// =============================================================================
// Request Types
// =============================================================================

// GenerateRequest is the request body for POST /v1/generate.
type GenerateRequest struct {
	// Contract is the contract name; the source is read from
	// {project}/src/{Contract}.sol unless Source is set.
	Contract string `json:"contract" binding:"required"`

	// Source overrides reading the contract from the project (optional).
	Source string `json:"source,omitempty"`

	// Functions restricts generation to these names (optional).
	Functions []string `json:"functions,omitempty"`

	// RetryBudget overrides the configured repair budget (optional).
	RetryBudget *int `json:"retry_budget,omitempty" binding:"omitempty,min=0,max=20"`

	// UseRAG overrides reference-guided generation (optional).
	UseRAG *bool `json:"use_rag,omitempty"`

	// Write stores the suite under the project's test directory.
	Write bool `json:"write,omitempty"`
}

// VerifyRequest is the request body for POST /v1/verify.
type VerifyRequest struct {
	Contract string `json:"contract" binding:"required"`

	// Test is a single test function.
	Test string `json:"test" binding:"required"`
}

// =============================================================================
// Response Types
// =============================================================================

// GenerateResponse is the response for POST /v1/generate.
type GenerateResponse struct {
	SessionID  string                   `json:"session_id"`
	Contract   string                   `json:"contract"`
	Functions  []testgen.FunctionReport `json:"functions"`
	Tests      []string                 `json:"tests"`
	Accepted   int                      `json:"accepted"`
	Rejected   int                      `json:"rejected"`
	Skipped    int                      `json:"skipped"`
	OutputPath string                   `json:"output_path,omitempty"`
	DurationMs int64                    `json:"duration_ms"`
}

// VerifyResponse is the response for POST /v1/verify.
type VerifyResponse struct {
	Passed    bool   `json:"passed"`
	RawOutput string `json:"raw_output"`
}

// HealthResponse is the response for GET /v1/health.
type HealthResponse struct {
	Status          string `json:"status"`
	Version         string `json:"version,omitempty"`
	ReferenceGuided bool   `json:"reference_guided"`
	RetryBudget     int    `json:"retry_budget"`
}

// LogsResponse is the response for GET /v1/logs.
type LogsResponse struct {
	Entries []logging.LogEntry `json:"entries"`
}

// ErrorResponse is returned for all error cases.
type ErrorResponse struct {
	Error string `json:"error"`

	// Code is a stable machine-readable error code.
	Code string `json:"code,omitempty"`

	Details string `json:"details,omitempty"`
}

func newGenerateResponse(res *testgen.SessionResult) GenerateResponse {
	accepted, rejected, skipped := res.Totals()
	tests := res.Tests
	if tests == nil {
		tests = []string{}
	}
	functions := res.Functions
	if functions == nil {
		functions = []testgen.FunctionReport{}
	}
	return GenerateResponse{
		SessionID:  res.SessionID,
		Contract:   res.Contract,
		Functions:  functions,
		Tests:      tests,
		Accepted:   accepted,
		Rejected:   rejected,
		Skipped:    skipped,
		OutputPath: res.OutputPath,
		DurationMs: res.Duration.Milliseconds(),
	}
}
