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
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/unitgen/services/llm"
)

// IndexerConfig bounds the embedding work.
type IndexerConfig struct {
	// BatchSize is the number of documents embedded per request. Default: 16.
	BatchSize int `yaml:"batch_size" validate:"gte=0"`

	// Concurrency is the number of batches in flight. Default: 4.
	Concurrency int `yaml:"concurrency" validate:"gte=0"`
}

// Indexer embeds documents and writes them to a Store.
type Indexer struct {
	embedder llm.Embedder
	store    Store
	cfg      IndexerConfig
	logger   *slog.Logger
}

// NewIndexer creates an Indexer. Zero config values take the defaults.
func NewIndexer(embedder llm.Embedder, store Store, cfg IndexerConfig, logger *slog.Logger) *Indexer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 16
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{embedder: embedder, store: store, cfg: cfg, logger: logger}
}

// Index embeds and upserts docs.
//
// Description:
//
//	Splits docs into batches, embeds each batch's EmbeddingText and upserts
//	it. Batches run concurrently up to Concurrency; the first failure cancels
//	the rest.
//
// Outputs:
//
//	int - Number of documents written before any failure.
//	error - First embedding or store error.
func (ix *Indexer) Index(ctx context.Context, docs []Document) (int, error) {
	start := time.Now()
	var written atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.cfg.Concurrency)

	for lo := 0; lo < len(docs); lo += ix.cfg.BatchSize {
		batch := docs[lo:min(lo+ix.cfg.BatchSize, len(docs))]
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, d := range batch {
				texts[i] = d.EmbeddingText()
			}
			vectors, err := ix.embedder.EmbedDocuments(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed batch: %w", err)
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("%w: %d documents, %d vectors", ErrVectorMismatch, len(batch), len(vectors))
			}
			if err := ix.store.Upsert(gctx, batch, vectors); err != nil {
				return fmt.Errorf("upsert batch: %w", err)
			}
			written.Add(int64(len(batch)))
			return nil
		})
	}

	err := g.Wait()
	ix.logger.Info("Indexed reference corpus",
		slog.Int("documents", int(written.Load())),
		slog.Int("total", len(docs)),
		slog.Duration("elapsed", time.Since(start)))
	return int(written.Load()), err
}
