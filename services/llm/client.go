// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

var (
	// ErrUnavailable means the backend could not be reached or could not
	// serve the request: transport failures, 5xx, 429, missing models.
	ErrUnavailable = errors.New("llm backend unavailable")

	// ErrEmptyResponse means the backend answered with blank text.
	ErrEmptyResponse = errors.New("llm returned an empty response")

	// ErrRequestFailed means the backend rejected the request (4xx) or sent
	// a response that could not be decoded.
	ErrRequestFailed = errors.New("llm request failed")

	// ErrUnknownProvider is returned by New for an unsupported provider.
	ErrUnknownProvider = errors.New("unknown llm provider")
)

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any LLM backend
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// Provider names accepted by New.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// ModelConfig selects and configures one model.
type ModelConfig struct {
	Provider string `yaml:"provider" validate:"omitempty,oneof=ollama openai"`
	Model    string `yaml:"model" validate:"required"`

	// BaseURL overrides the provider endpoint. For Ollama it falls back to
	// OLLAMA_BASE_URL, then http://localhost:11434.
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`

	// APIKey is used by OpenAI. Falls back to OPENAI_API_KEY.
	APIKey string `yaml:"-"`

	Temperature *float32 `yaml:"temperature" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   *int     `yaml:"max_tokens" validate:"omitempty,gt=0"`

	// RequestsPerMinute throttles calls when > 0.
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"gte=0"`

	// Timeout is the HTTP client timeout. Default: 5 minutes.
	Timeout time.Duration `yaml:"timeout"`
}

// Params returns the generation parameters carried by the config.
func (c ModelConfig) Params() GenerationParams {
	return GenerationParams{Temperature: c.Temperature, MaxTokens: c.MaxTokens}
}

// New builds the client for cfg.Provider (default ollama), wrapped in a
// RateLimitedClient when RequestsPerMinute is set.
func New(cfg ModelConfig, logger *slog.Logger) (LLMClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		client LLMClient
		err    error
	)
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOllama:
		client, err = NewOllamaClient(cfg, logger)
	case ProviderOpenAI:
		client, err = NewOpenAIClient(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if cfg.RequestsPerMinute > 0 {
		client = NewRateLimitedClient(client, cfg.RequestsPerMinute)
	}
	return client, nil
}
