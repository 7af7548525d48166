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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/unitgen/services/forge"
	"github.com/AleutianAI/unitgen/services/retrieval"
	"github.com/AleutianAI/unitgen/services/solidity"
)

// SessionRequest describes one generation run over a contract.
type SessionRequest struct {
	// ProjectDir is the Foundry project root. The contract is read from
	// {ProjectDir}/src/{ContractName}.sol unless ContractSource is set.
	ProjectDir string

	ContractName string

	// ContractSource overrides reading the contract from disk.
	ContractSource string

	// Functions restricts generation to these function names.
	Functions []string

	// OutputDir receives {ContractName}.t.sol when set and at least one
	// test was accepted.
	OutputDir string

	// Observer is notified as each function starts and finishes (optional).
	Observer Observer
}

// Observer receives per-function progress from Session.Run. Calls are made
// from the goroutine running the session.
type Observer interface {
	FunctionStarted(name string)
	FunctionFinished(report FunctionReport)
}

// FunctionReport counts lineage outcomes for one function.
type FunctionReport struct {
	Name     string `json:"name"`
	Lineages int    `json:"lineages"`
	Accepted int    `json:"accepted"`

	// Rejected lineages exhausted their budget.
	Rejected int `json:"rejected"`

	// Skipped lineages ended on a generation, retrieval or verifier error.
	Skipped int `json:"skipped"`
}

// SessionResult is the outcome of Session.Run.
type SessionResult struct {
	SessionID  string           `json:"session_id"`
	Contract   string           `json:"contract"`
	Functions  []FunctionReport `json:"functions"`
	Tests      []string         `json:"tests"`
	OutputPath string           `json:"output_path,omitempty"`
	Duration   time.Duration    `json:"duration"`

	// Collection holds the accepted candidates in processing order.
	Collection *TestCollection `json:"-"`
}

// Totals sums the per-function reports.
func (r *SessionResult) Totals() (accepted, rejected, skipped int) {
	for _, f := range r.Functions {
		accepted += f.Accepted
		rejected += f.Rejected
		skipped += f.Skipped
	}
	return accepted, rejected, skipped
}

// Session composes extraction, retrieval and the repair loop.
//
// Thread Safety: Safe for concurrent use; each Run owns its collection.
type Session struct {
	loop      *RepairLoop
	describer Describer
	retriever ExampleRetriever
	cfg       Config
	logger    *slog.Logger
}

// NewSession creates a session runner. describer and retriever may be nil,
// in which case every function is generated zero-shot.
func NewSession(loop *RepairLoop, describer Describer, retriever ExampleRetriever, logger *slog.Logger) (*Session, error) {
	if loop == nil {
		return nil, fmt.Errorf("%w: repair loop is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		loop:      loop,
		describer: describer,
		retriever: retriever,
		cfg:       loop.Config(),
		logger:    logger,
	}, nil
}

// ReferenceGuided reports whether Run fans out over retrieved examples.
func (s *Session) ReferenceGuided() bool {
	return s.cfg.UseReferenceGuidance && s.describer != nil && s.retriever != nil
}

// Run generates tests for every externally callable function of the
// contract.
//
// # Description
//
// Lineages run one after another. Accepted candidates are appended to the
// collection in processing order. Lineages that end on a generation or
// verifier error are counted as skipped; the session continues. Only an
// unreadable contract or a cancelled ctx aborts the run; on cancellation the
// partial result is returned with the error.
//
// # Outputs
//
//   - *SessionResult: Reports and collected tests.
//   - error: Wraps ErrContractUnreadable, a write failure, or ctx.Err().
func (s *Session) Run(ctx context.Context, req SessionRequest) (*SessionResult, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if err := solidity.ValidateContractName(req.ContractName); err != nil {
		return nil, err
	}

	start := time.Now()
	sessionID := uuid.New().String()[:8]
	ctx, span := tracer.Start(ctx, "Session.Run", trace.WithAttributes(
		attribute.String("testgen.session_id", sessionID),
		attribute.String("testgen.contract", req.ContractName),
	))
	defer span.End()

	log := s.logger.With(slog.String("session_id", sessionID), slog.String("contract", req.ContractName))

	source := req.ContractSource
	if source == "" {
		data, err := os.ReadFile(solidity.ContractPath(req.ProjectDir, req.ContractName))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "contract unreadable")
			return nil, fmt.Errorf("%w: %v", ErrContractUnreadable, err)
		}
		source = string(data)
	}

	functions := filterFunctions(solidity.PublicFunctions(source), req.Functions)
	s.loop.trace(log, "Generating tests",
		slog.Int("functions", len(functions)),
		slog.Bool("reference_guided", s.ReferenceGuided()),
		slog.Int("retry_budget", s.cfg.RetryBudget))

	result := &SessionResult{
		SessionID:  sessionID,
		Contract:   req.ContractName,
		Collection: &TestCollection{},
	}

	var runErr error
	for _, fn := range functions {
		target := Target{
			ContractName:   req.ContractName,
			ContractSource: source,
			FunctionName:   fn.Name,
			FunctionSource: fn.Source,
		}
		if req.Observer != nil {
			req.Observer.FunctionStarted(fn.Name)
		}
		report, err := s.runFunction(ctx, target, result.Collection, log)
		result.Functions = append(result.Functions, report)
		if req.Observer != nil {
			req.Observer.FunctionFinished(report)
		}
		if err != nil {
			runErr = err
			break
		}
		s.loop.trace(log, "Function finished",
			slog.String("function", fn.Name),
			slog.Int("accepted", report.Accepted),
			slog.Int("rejected", report.Rejected),
			slog.Int("skipped", report.Skipped))
	}

	result.Tests = result.Collection.Strings()
	if runErr == nil && req.OutputDir != "" && len(result.Tests) > 0 {
		path, err := WriteSuite(req.OutputDir, req.ContractName, result.Tests)
		if err != nil {
			runErr = err
		} else {
			result.OutputPath = path
			s.loop.trace(log, "Test file written", slog.String("path", path), slog.Int("tests", len(result.Tests)))
		}
	}

	result.Duration = time.Since(start)
	accepted, rejected, skipped := result.Totals()
	span.SetAttributes(
		attribute.Int("testgen.accepted", accepted),
		attribute.Int("testgen.rejected", rejected),
		attribute.Int("testgen.skipped", skipped),
	)
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	}
	return result, runErr
}

// runFunction runs every lineage for one function. It returns an error only
// when the session must stop.
func (s *Session) runFunction(ctx context.Context, target Target, collection *TestCollection, log *slog.Logger) (FunctionReport, error) {
	report := FunctionReport{Name: target.FunctionName}

	refs, err := s.references(ctx, target, log)
	if err != nil {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		log.Warn("Reference retrieval failed, skipping function",
			slog.String("function", target.FunctionName),
			slog.String("error", err.Error()))
		report.Skipped++
		return report, nil
	}

	lineages := []*Reference{nil}
	if len(refs) > 0 {
		lineages = lineages[:0]
		for i := range refs {
			lineages = append(lineages, &refs[i])
		}
	}

	for _, ref := range lineages {
		report.Lineages++
		res, err := s.loop.Run(ctx, LoopRequest{Target: target, Reference: ref})
		switch {
		case err == nil && res.Accepted:
			collection.Append(res.Final)
			report.Accepted++
		case errors.Is(err, ErrBudgetExhausted):
			report.Rejected++
		case IsSkippable(err):
			report.Skipped++
			log.Warn("Lineage skipped",
				slog.String("function", target.FunctionName),
				slog.String("kind", KindOf(err).String()),
				slog.String("error", err.Error()))
		default:
			return report, err
		}
	}
	return report, nil
}

// references expands the retrieved examples into (function, test) pairs:
// at most ExampleCount examples, deduplicated by function, and at most
// SubtestsPerExample tests from each. An empty result means zero-shot.
func (s *Session) references(ctx context.Context, target Target, log *slog.Logger) ([]Reference, error) {
	if !s.ReferenceGuided() {
		return nil, nil
	}

	dctx, cancel := context.WithTimeout(ctx, s.cfg.GenerationTimeout)
	description, err := s.describer.Describe(dctx, target.FunctionSource)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", target.FunctionName, err)
	}
	s.loop.trace(log, "Function described",
		slog.String("function", target.FunctionName),
		slog.String("description", description))

	docs, err := s.retriever.Retrieve(ctx, description, s.cfg.ExampleCount)
	if err != nil {
		return nil, fmt.Errorf("retrieve examples for %s: %w", target.FunctionName, err)
	}
	docs = retrieval.DedupByFunction(docs)
	if len(docs) > s.cfg.ExampleCount {
		docs = docs[:s.cfg.ExampleCount]
	}

	var refs []Reference
	for _, doc := range docs {
		tests := doc.Tests
		if len(tests) > s.cfg.SubtestsPerExample {
			tests = tests[:s.cfg.SubtestsPerExample]
		}
		for _, t := range tests {
			refs = append(refs, Reference{Function: doc.Function, Test: t})
		}
	}
	if len(refs) == 0 {
		s.loop.trace(log, "No reference examples found, generating zero-shot",
			slog.String("function", target.FunctionName))
	}
	return refs, nil
}

// WriteSuite renders tests into {dir}/{contract}.t.sol and returns the path.
func WriteSuite(dir, contract string, tests []string) (string, error) {
	content, err := solidity.RenderTestFile(contract, tests)
	if err != nil {
		return "", err
	}
	path := solidity.TestFilePath(dir, contract)
	if err := forge.WriteFile(path, content); err != nil {
		return "", err
	}
	return path, nil
}

func filterFunctions(fns []solidity.Function, names []string) []solidity.Function {
	if len(names) == 0 {
		return fns
	}
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[n] = struct{}{}
	}
	out := fns[:0:0]
	for _, f := range fns {
		if _, ok := want[f.Name]; ok {
			out = append(out, f)
		}
	}
	return out
}
