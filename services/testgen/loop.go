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
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/unitgen/services/forge"
	"github.com/AleutianAI/unitgen/services/solidity"
)

// LoopRequest starts one lineage.
type LoopRequest struct {
	Target Target

	// Reference guides the first generation. Nil means zero-shot.
	Reference *Reference

	// Initial skips the first generation and starts from this candidate.
	Initial CandidateTest
}

// RepairLoop runs the verify/repair cycle for one lineage at a time.
//
// Thread Safety: Safe for concurrent use if the generator and verifier are.
type RepairLoop struct {
	gen        CandidateGenerator
	verifier   Verifier
	classifier *Classifier
	cfg        Config
	logger     *slog.Logger
}

// NewRepairLoop creates a loop.
//
// Inputs:
//
//	gen - Generates and repairs candidates
//	verifier - Runs candidates against the compiler
//	cfg - Budget, timeouts, markers
//	logger - Logger for structured logging
//
// Outputs:
//
//	*RepairLoop - Configured loop
//	error - Non-nil if cfg is invalid or a collaborator is nil
func NewRepairLoop(gen CandidateGenerator, verifier Verifier, cfg Config, logger *slog.Logger) (*RepairLoop, error) {
	if gen == nil || verifier == nil {
		return nil, fmt.Errorf("%w: generator and verifier are required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RepairLoop{
		gen:        gen,
		verifier:   verifier,
		classifier: ClassifierFromConfig(cfg),
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// Classifier returns the loop's outcome classifier.
func (l *RepairLoop) Classifier() *Classifier { return l.classifier }

// Config returns the loop configuration.
func (l *RepairLoop) Config() Config { return l.cfg }

// Run executes one lineage.
//
// # Description
//
// Generates the first candidate (unless req.Initial is set), then verifies.
// A passing candidate is accepted. A failing one is repaired while budget
// remains, and the repaired candidate is verified again. With a budget of N
// the verifier is called at most N+1 times. When RejectMalformed is set a
// candidate that is not a single function is failed without a verifier call;
// it still consumes one repair cycle.
//
// # Outputs
//
//   - *LoopResult: Always non-nil. Final holds the accepted candidate or the
//     last one attempted.
//   - error: nil when accepted. Otherwise a *LoopError: BudgetExhausted,
//     GenerationFailure, GenerationTimeout, VerifierTimeout or
//     VerifierUnavailable. A cancelled ctx is returned as ctx.Err().
func (l *RepairLoop) Run(ctx context.Context, req LoopRequest) (*LoopResult, error) {
	res := &LoopResult{State: StateGenerated}
	if ctx == nil {
		res.State = StateFailed
		return res, ErrNilContext
	}

	ctx, span := startLoopSpan(ctx, req.Target, req.Reference != nil)
	defer span.End()

	log := l.logger.With(
		slog.String("contract", req.Target.ContractName),
		slog.String("function", req.Target.FunctionName),
	)

	finish := func(err error) (*LoopResult, error) {
		span.SetAttributes(
			attribute.String("testgen.state", res.State.String()),
			attribute.Int("testgen.verifier_calls", res.VerifierCalls),
			attribute.Int("testgen.repair_calls", res.RepairCalls),
		)
		if err != nil && res.State != StateExhausted {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		recordOutcome(ctx, res.State.String())
		return res, err
	}

	candidate := req.Initial
	if candidate == "" {
		var err error
		candidate, err = l.generate(ctx, req)
		if err != nil {
			res.State = StateFailed
			if ctx.Err() != nil {
				return finish(ctx.Err())
			}
			log.Warn("Initial generation failed", slog.String("error", err.Error()))
			return finish(&LoopError{Kind: generationKind(err), Attempt: 0, Err: err})
		}
	}
	l.trace(log, "Candidate generated", slog.String("candidate", string(candidate)))

	budget := l.cfg.RetryBudget
	for attempt := 0; ; attempt++ {
		res.State = StateVerifying
		res.Final = candidate

		outcome, err := l.check(ctx, req.Target, candidate, res)
		if err != nil {
			res.State = StateFailed
			if ctx.Err() != nil {
				return finish(ctx.Err())
			}
			log.Warn("Verification failed to run",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			return finish(&LoopError{Kind: verifierKind(err), Attempt: attempt, Err: err})
		}
		l.trace(log, "Candidate verified",
			slog.Int("attempt", attempt),
			slog.Bool("passed", outcome.Passed),
			slog.String("raw_output", outcome.RawOutput))

		if outcome.Passed {
			res.State = StateAccepted
			res.Accepted = true
			l.trace(log, "Candidate accepted",
				slog.Int("attempt", attempt),
				slog.Int("verifier_calls", res.VerifierCalls))
			return finish(nil)
		}

		if budget == 0 {
			res.State = StateExhausted
			l.trace(log, "Retry budget exhausted, discarding candidate",
				slog.Int("attempts", attempt+1),
				slog.Int("verifier_calls", res.VerifierCalls))
			return finish(&LoopError{Kind: BudgetExhausted, Attempt: attempt, Err: ErrBudgetExhausted})
		}

		res.State = StateRepairing
		budget--
		res.RepairCalls++
		recordRepair(ctx)
		l.trace(log, "Repairing candidate", slog.Int("attempt", attempt), slog.Int("budget_left", budget))

		next, err := l.repair(ctx, RepairContext{
			FunctionUnderTest: req.Target.FunctionSource,
			ContractUnderTest: req.Target.ContractSource,
			CurrentCandidate:  candidate,
			VerifierOutput:    outcome.RawOutput,
		})
		if err != nil {
			res.State = StateFailed
			if ctx.Err() != nil {
				return finish(ctx.Err())
			}
			log.Warn("Repair generation failed",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			return finish(&LoopError{Kind: generationKind(err), Attempt: attempt, Err: err})
		}
		candidate = next
		l.trace(log, "Candidate repaired", slog.String("candidate", string(candidate)))
	}
}

// check produces the outcome for candidate and appends it to res.History.
func (l *RepairLoop) check(ctx context.Context, target Target, candidate CandidateTest, res *LoopResult) (VerificationOutcome, error) {
	start := time.Now()
	if l.cfg.RejectMalformed {
		if err := solidity.CheckSingleFunction(string(candidate)); err != nil {
			outcome := VerificationOutcome{RawOutput: malformedOutput(err)}
			res.History = append(res.History, Attempt{
				Candidate: candidate,
				Outcome:   outcome,
				Malformed: true,
				Duration:  time.Since(start),
			})
			l.logger.Debug("Candidate rejected before verification",
				slog.String("function", target.FunctionName),
				slog.String("reason", err.Error()))
			return outcome, nil
		}
	}

	vctx, cancel := context.WithTimeout(ctx, l.cfg.VerifierTimeout)
	defer cancel()

	res.VerifierCalls++
	raw, err := l.verifier.Verify(vctx, target.ContractName, string(candidate))
	d := time.Since(start)
	if err != nil {
		if ctx.Err() == nil && (errors.Is(err, forge.ErrTimeout) || errors.Is(vctx.Err(), context.DeadlineExceeded)) {
			err = fmt.Errorf("%w after %s: %w", ErrVerifierTimeout, d.Round(time.Millisecond), err)
		}
		recordVerifierCall(ctx, d, false)
		return VerificationOutcome{RawOutput: raw}, err
	}

	outcome := l.classifier.Outcome(raw)
	recordVerifierCall(ctx, d, outcome.Passed)
	res.History = append(res.History, Attempt{Candidate: candidate, Outcome: outcome, Duration: d})
	return outcome, nil
}

func (l *RepairLoop) generate(ctx context.Context, req LoopRequest) (CandidateTest, error) {
	gctx, cancel := context.WithTimeout(ctx, l.cfg.GenerationTimeout)
	defer cancel()

	var (
		c   CandidateTest
		err error
	)
	if req.Reference != nil {
		c, err = l.gen.Generate(gctx, *req.Reference, req.Target)
	} else {
		c, err = l.gen.GenerateWithoutReference(gctx, req.Target)
	}
	return c, l.generationError(ctx, gctx, err)
}

func (l *RepairLoop) repair(ctx context.Context, rc RepairContext) (CandidateTest, error) {
	gctx, cancel := context.WithTimeout(ctx, l.cfg.GenerationTimeout)
	defer cancel()
	c, err := l.gen.Repair(gctx, rc)
	return c, l.generationError(ctx, gctx, err)
}

// generationError tags err as a timeout when the per-call deadline (and not
// the caller's) expired.
func (l *RepairLoop) generationError(ctx, gctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && errors.Is(gctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", ErrGenerationTimeout, l.cfg.GenerationTimeout, err)
	}
	return err
}

// trace logs loop transitions at Info in verbose mode, Debug otherwise.
func (l *RepairLoop) trace(log *slog.Logger, msg string, attrs ...any) {
	if l.cfg.Verbose {
		log.Info(msg, attrs...)
		return
	}
	log.Debug(msg, attrs...)
}

func generationKind(err error) ErrorKind {
	if errors.Is(err, ErrGenerationTimeout) {
		return GenerationTimeout
	}
	return GenerationFailure
}

func verifierKind(err error) ErrorKind {
	if errors.Is(err, ErrVerifierTimeout) {
		return VerifierTimeout
	}
	return VerifierUnavailable
}

// malformedOutput is the feedback handed to the repair step for a candidate
// that never reached the compiler.
func malformedOutput(err error) string {
	return fmt.Sprintf("Error: the test was rejected before compilation: %v. "+
		"The output must be exactly one Solidity test function with a body, "+
		"with no contract declaration and no surrounding text.", err)
}
