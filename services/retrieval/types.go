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
	"errors"
)

var (
	// ErrInvalidCorpus is returned when a corpus file cannot be parsed or
	// contains an invalid document.
	ErrInvalidCorpus = errors.New("invalid corpus")

	// ErrVectorMismatch is returned when the number of vectors does not
	// match the number of documents.
	ErrVectorMismatch = errors.New("vector count does not match document count")

	// ErrStoreUnavailable is returned when the backing store cannot be
	// reached.
	ErrStoreUnavailable = errors.New("vector store unavailable")
)

// Document is one reference example: a function and tests written for it.
type Document struct {
	ID          string   `json:"id,omitempty" yaml:"id,omitempty"`
	Function    string   `json:"function" yaml:"function" validate:"required"`
	Tests       []string `json:"tests" yaml:"tests" validate:"required,min=1,dive,required"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// EmbeddingText is the text indexed for the document: its description, or
// the function source when no description was written.
func (d Document) EmbeddingText() string {
	if d.Description != "" {
		return d.Description
	}
	return d.Function
}

// Match is a search hit with its cosine similarity (or Weaviate certainty).
type Match struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// Store persists documents with their vectors and answers nearest-neighbour
// queries.
type Store interface {
	// Upsert writes docs[i] with vectors[i], replacing documents with the
	// same ID.
	Upsert(ctx context.Context, docs []Document, vectors [][]float32) error

	// Search returns at most k matches, best first.
	Search(ctx context.Context, vector []float32, k int) ([]Match, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	Close() error
}
