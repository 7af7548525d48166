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
	"fmt"
	"net/http"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// Embedder turns text into vectors for similarity search.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// DefaultEmbeddingModel is the Ollama embedding model used when none is
// configured.
const DefaultEmbeddingModel = "mxbai-embed-large"

// NewOllamaEmbedder creates an Embedder backed by an Ollama embedding model.
func NewOllamaEmbedder(cfg ModelConfig) (Embedder, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}
	opts := []ollama.Option{
		ollama.WithModel(model),
		ollama.WithServerURL(OllamaBaseURL(cfg.BaseURL)),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, ollama.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	client, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: create ollama embedding client: %v", ErrUnavailable, err)
	}
	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return embedder, nil
}
