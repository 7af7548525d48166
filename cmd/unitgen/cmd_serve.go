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
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/unitgen/pkg/telemetry"
	"github.com/AleutianAI/unitgen/services/api"
	"github.com/AleutianAI/unitgen/services/retrieval"
	"github.com/AleutianAI/unitgen/services/testgen"
)

var (
	servePort  int
	serveWatch bool

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve generation and verification over HTTP",
		Long: `Starts the HTTP API:

  POST /v1/generate  generate a suite for a contract in the project
  POST /v1/verify    compile one candidate test
  GET  /v1/health    health check
  GET  /v1/logs      recent log records (logging.recent)
  GET  /metrics      Prometheus metrics

With --watch the corpus file is re-indexed whenever it changes.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
)

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default server.port)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Re-index retrieval.corpus_path on change")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, withPrometheus(), withRecentLogs())
	if err != nil {
		return err
	}
	defer a.Close()

	gen, err := a.generator()
	if err != nil {
		return err
	}
	verifier, err := a.verifier()
	if err != nil {
		return err
	}

	var retriever testgen.ExampleRetriever
	store, storeErr := a.store(ctx)
	emb, embErr := a.embedder()
	switch {
	case storeErr != nil:
		a.logger.Warn("Reference corpus unavailable, serving zero-shot", slog.String("error", storeErr.Error()))
	case embErr != nil:
		a.logger.Warn("Embedder unavailable, serving zero-shot", slog.String("error", embErr.Error()))
	default:
		retriever = retrieval.NewVectorRetriever(emb, store, a.logger)
		if serveWatch {
			startCorpusWatch(ctx, a, retrieval.NewIndexer(emb, store, a.cfg.Retrieval.Indexer, a.logger))
		}
	}

	handlers, err := api.NewHandlers(api.HandlersConfig{
		Build: func(cfg testgen.Config) (api.SessionRunner, error) {
			session, err := newSession(gen, verifier, retriever, cfg, a.logger)
			if err != nil {
				return nil, err
			}
			return session, nil
		},
		Base:       a.cfg.Generation,
		Verifier:   verifier,
		ProjectDir: a.project,
		Version:    Version,
		Logs:       recentLogs(a),
		Logger:     a.logger,
	})
	if err != nil {
		return err
	}

	port := a.cfg.Server.Port
	if servePort > 0 {
		port = servePort
	}
	router := api.NewRouter(handlers, api.RouterConfig{
		Debug:   a.cfg.Server.Debug,
		Metrics: telemetry.MetricsHandler(),
	})
	a.out.Info("Project: " + a.project)
	return api.Serve(ctx, router, port, a.cfg.Server.ShutdownTimeout, a.logger)
}

// recentLogs returns the in-memory log buffer, or nil when it is disabled.
// A nil *BufferedExporter must not become a non-nil LogSource.
func recentLogs(a *app) api.LogSource {
	if a.recent == nil {
		return nil
	}
	return a.recent
}

// startCorpusWatch indexes the corpus once and again on every change.
func startCorpusWatch(ctx context.Context, a *app, indexer *retrieval.Indexer) {
	path := expandHome(a.cfg.Retrieval.CorpusPath)
	if path == "" {
		a.logger.Warn("--watch ignored: retrieval.corpus_path is not set")
		return
	}
	reload := func(ctx context.Context, docs []retrieval.Document) error {
		n, err := indexer.Index(ctx, docs)
		if err != nil {
			return err
		}
		a.logger.Info("Corpus re-indexed", slog.String("path", path), slog.Int("documents", n))
		return nil
	}

	if docs, err := retrieval.LoadCorpus(path); err != nil {
		a.logger.Warn("Initial corpus load failed", slog.String("path", path), slog.String("error", err.Error()))
	} else if err := reload(ctx, docs); err != nil {
		a.logger.Warn("Initial corpus index failed", slog.String("error", err.Error()))
	}

	go func() {
		if err := retrieval.WatchCorpus(ctx, path, a.cfg.Retrieval.WatchDebounce, reload, a.logger); err != nil {
			a.logger.Error("Corpus watch stopped", slog.String("error", err.Error()))
		}
	}()
}
