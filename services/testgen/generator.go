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
	"strings"
	"sync/atomic"
	"time"

	"github.com/tmc/langchaingo/prompts"

	"github.com/AleutianAI/unitgen/services/llm"
	"github.com/AleutianAI/unitgen/services/solidity"
)

// Models holds one client per generation role.
type Models struct {
	// Test writes new candidates. Required.
	Test llm.LLMClient

	// Compilation repairs candidates. Defaults to Test.
	Compilation llm.LLMClient

	// Description summarizes functions for retrieval. Defaults to Test.
	Description llm.LLMClient

	// Params is passed to every call.
	Params llm.GenerationParams
}

// Generator is the LLM-backed CandidateGenerator and Describer.
//
// Thread Safety: Safe for concurrent use if the clients are.
type Generator struct {
	models    Models
	logger    *slog.Logger
	callCount atomic.Int64
}

// NewGenerator creates a generator.
//
// Inputs:
//
//	models - Clients per role. Test is required.
//	logger - Logger for structured logging
//
// Outputs:
//
//	*Generator - Configured generator
//	error - Non-nil when models.Test is nil
func NewGenerator(models Models, logger *slog.Logger) (*Generator, error) {
	if models.Test == nil {
		return nil, fmt.Errorf("%w: test model is required", ErrInvalidConfig)
	}
	if models.Compilation == nil {
		models.Compilation = models.Test
	}
	if models.Description == nil {
		models.Description = models.Test
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{models: models, logger: logger}, nil
}

// CallCount returns the number of model calls made.
//
// Thread Safety: Safe for concurrent use.
func (g *Generator) CallCount() int {
	return int(g.callCount.Load())
}

// Generate implements CandidateGenerator.
func (g *Generator) Generate(ctx context.Context, ref Reference, target Target) (CandidateTest, error) {
	out, err := g.invoke(ctx, "generate", g.models.Test, referencePrompt, map[string]any{
		"reference_function_test_code":    ref.Test,
		"reference_function_code_example": ref.Function,
		"contract_code":                   target.ContractSource,
		"function_code":                   target.FunctionSource,
	})
	return toCandidate(out, err)
}

// GenerateWithoutReference implements CandidateGenerator.
func (g *Generator) GenerateWithoutReference(ctx context.Context, target Target) (CandidateTest, error) {
	out, err := g.invoke(ctx, "generate_zero_shot", g.models.Test, zeroShotPrompt, map[string]any{
		"contract_code": target.ContractSource,
		"function_code": target.FunctionSource,
	})
	return toCandidate(out, err)
}

// Repair implements CandidateGenerator.
func (g *Generator) Repair(ctx context.Context, rc RepairContext) (CandidateTest, error) {
	out, err := g.invoke(ctx, "repair", g.models.Compilation, repairPrompt, map[string]any{
		"test_function": string(rc.CurrentCandidate),
		"error_info":    rc.VerifierOutput,
		"function_code": rc.FunctionUnderTest,
		"contract_code": rc.ContractUnderTest,
	})
	return toCandidate(out, err)
}

// Describe implements Describer.
func (g *Generator) Describe(ctx context.Context, functionSource string) (string, error) {
	return g.invoke(ctx, "describe", g.models.Description, descriptionPrompt, map[string]any{
		"function_code": functionSource,
	})
}

// invoke renders tmpl and calls client. The result is trimmed; blank output
// is ErrEmptyGeneration. All failures wrap ErrGeneration.
func (g *Generator) invoke(ctx context.Context, step string, client llm.LLMClient, tmpl prompts.PromptTemplate, vars map[string]any) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	prompt, err := tmpl.Format(vars)
	if err != nil {
		return "", fmt.Errorf("%w: render %s prompt: %v", ErrGeneration, step, err)
	}

	start := time.Now()
	g.callCount.Add(1)
	out, err := client.Generate(ctx, prompt, g.models.Params)
	if err != nil {
		g.logger.Warn("LLM generation failed",
			slog.String("step", step),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, llm.ErrEmptyResponse) {
			return "", fmt.Errorf("%w: %w", ErrGeneration, ErrEmptyGeneration)
		}
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%w: %w", ErrGeneration, ErrEmptyGeneration)
	}

	g.logger.Debug("LLM generation complete",
		slog.String("step", step),
		slog.Int("prompt_chars", len(prompt)),
		slog.Int("response_chars", len(out)),
		slog.Duration("duration", time.Since(start)),
	)
	return out, nil
}

func toCandidate(out string, err error) (CandidateTest, error) {
	if err != nil {
		return "", err
	}
	c := solidity.StripCodeFences(out)
	if c == "" {
		return "", fmt.Errorf("%w: %w", ErrGeneration, ErrEmptyGeneration)
	}
	return CandidateTest(c), nil
}
