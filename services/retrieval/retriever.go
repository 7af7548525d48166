// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/unitgen/services/llm"
)

// VectorRetriever finds reference documents similar to a description.
type VectorRetriever struct {
	embedder llm.Embedder
	store    Store
	logger   *slog.Logger
}

func NewVectorRetriever(embedder llm.Embedder, store Store, logger *slog.Logger) *VectorRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &VectorRetriever{embedder: embedder, store: store, logger: logger}
}

// Retrieve embeds description, asks the store for the k nearest documents
// and drops repeats of an already-returned function. The result may hold
// fewer than k documents.
func (r *VectorRetriever) Retrieve(ctx context.Context, description string, k int) ([]Document, error) {
	if k <= 0 {
		return nil, nil
	}
	vector, err := r.embedder.EmbedQuery(ctx, description)
	if err != nil {
		return nil, fmt.Errorf("embed description: %w", err)
	}
	matches, err := r.store.Search(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("search references: %w", err)
	}

	docs := make([]Document, len(matches))
	for i, m := range matches {
		docs[i] = m.Document
	}
	unique := DedupByFunction(docs)
	r.logger.Debug("Retrieved reference examples",
		slog.Int("requested", k),
		slog.Int("matched", len(matches)),
		slog.Int("unique", len(unique)))
	return unique, nil
}
