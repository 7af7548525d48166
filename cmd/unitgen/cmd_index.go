// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/unitgen/services/retrieval"
)

var indexCmd = &cobra.Command{
	Use:   "index [corpus.yaml]",
	Short: "Embed reference tests into the corpus store",
	Long: `Loads a YAML or JSON list of {function, tests, description} documents,
embeds them and upserts them into the configured store. Without an argument
retrieval.corpus_path is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	path := a.cfg.Retrieval.CorpusPath
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return errors.New("no corpus given and retrieval.corpus_path is not set")
	}

	docs, err := retrieval.LoadCorpus(expandHome(path))
	if err != nil {
		return err
	}
	indexer, err := a.indexer(ctx)
	if err != nil {
		return err
	}

	a.out.Title(fmt.Sprintf("Indexing %d reference documents", len(docs)))
	n, err := indexer.Index(ctx, docs)
	if err != nil {
		return err
	}
	a.out.Success(fmt.Sprintf("Indexed %d documents from %s", n, path))
	return nil
}
