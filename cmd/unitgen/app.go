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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/unitgen/cmd/unitgen/config"
	"github.com/AleutianAI/unitgen/pkg/logging"
	"github.com/AleutianAI/unitgen/pkg/telemetry"
	"github.com/AleutianAI/unitgen/pkg/ux"
	"github.com/AleutianAI/unitgen/services/forge"
	"github.com/AleutianAI/unitgen/services/llm"
	"github.com/AleutianAI/unitgen/services/retrieval"
	"github.com/AleutianAI/unitgen/services/solidity"
	"github.com/AleutianAI/unitgen/services/testgen"
)

// =============================================================================
// Runtime wiring shared by the commands
// =============================================================================

// app holds the process-wide dependencies of one command invocation.
type app struct {
	cfg     *config.Config
	log     *logging.Logger
	logger  *slog.Logger
	recent  *logging.BufferedExporter
	out     *ux.Printer
	project string

	corpus  retrieval.Store
	closers []func() error
}

// appSettings is what an appOption may adjust before anything is built.
type appSettings struct {
	cfg *config.Config

	// recentLogs keeps the last cfg.Logging.Recent records in memory.
	recentLogs bool

	// consoleFloor raises the log level unless --verbose is set.
	consoleFloor logging.Level
}

type appOption func(*appSettings)

// withPrometheus selects the Prometheus metric exporter unless another
// exporter is configured.
func withPrometheus() appOption {
	return func(s *appSettings) {
		c := s.cfg
		if c.Telemetry.MetricExporter == "" || c.Telemetry.MetricExporter == "none" {
			c.Telemetry.MetricExporter = "prometheus"
		}
	}
}

// withRecentLogs buffers recent records for GET /v1/logs.
func withRecentLogs() appOption {
	return func(s *appSettings) { s.recentLogs = true }
}

// withConsoleFloor raises the log level to at least level, so a live
// progress display on stderr is not interleaved with log lines.
func withConsoleFloor(level logging.Level) appOption {
	return func(s *appSettings) { s.consoleFloor = level }
}

// newApp loads configuration, builds the logger and starts telemetry.
func newApp(ctx context.Context, opts ...appOption) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	settings := &appSettings{cfg: cfg}
	for _, opt := range opts {
		opt(settings)
	}
	if projectDir != "" {
		cfg.ProjectDir = projectDir
	}

	lcfg := loggingConfig(settings, verbose)
	log := logging.New(lcfg)

	out := ux.Stdout()
	if jsonOutput {
		out = ux.NewPrinter(os.Stdout, true)
	}

	project, err := filepath.Abs(expandHome(cfg.ProjectDir))
	if err != nil {
		return nil, fmt.Errorf("resolve project dir: %w", err)
	}

	a := &app{cfg: cfg, log: log, logger: log.Slog(), out: out, project: project}
	if recent, ok := lcfg.Exporter.(*logging.BufferedExporter); ok {
		a.recent = recent
	}
	a.closers = append(a.closers, log.Close)

	tcfg := cfg.Telemetry
	tcfg.ServiceVersion = Version
	shutdown, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		a.logger.Warn("Telemetry disabled", slog.String("error", err.Error()))
	} else {
		a.onClose(func() error { return shutdown(context.Background()) })
	}
	return a, nil
}

// loggingConfig derives the logger setup from the settings. verbose wins
// over both the configured level and the console floor.
func loggingConfig(s *appSettings, verbose bool) logging.Config {
	level, ok := logging.ParseLevel(s.cfg.Logging.Level)
	if !ok {
		level = logging.LevelInfo
	}
	if level < s.consoleFloor {
		level = s.consoleFloor
	}
	if verbose {
		level = logging.LevelDebug
	}
	lcfg := logging.Config{
		Level:   level,
		LogDir:  s.cfg.Logging.Dir,
		Service: "unitgen",
		JSON:    s.cfg.Logging.JSON,
	}
	if s.recentLogs && s.cfg.Logging.Recent > 0 {
		lcfg.Exporter = logging.NewBufferedExporter(s.cfg.Logging.Recent)
	}
	return lcfg
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// generator builds the LLM-backed generator from the models config.
func (a *app) generator() (*testgen.Generator, error) {
	m := a.cfg.Models
	test, err := llm.New(m.Test, a.logger)
	if err != nil {
		return nil, fmt.Errorf("test model: %w", err)
	}
	compilation, err := llm.New(m.CompilationModel(), a.logger)
	if err != nil {
		return nil, fmt.Errorf("compilation model: %w", err)
	}
	description, err := llm.New(m.DescriptionModel(), a.logger)
	if err != nil {
		return nil, fmt.Errorf("description model: %w", err)
	}
	return testgen.NewGenerator(testgen.Models{
		Test:        test,
		Compilation: compilation,
		Description: description,
		Params:      m.Test.Params(),
	}, a.logger)
}

// verifier builds the forge verifier for the project.
func (a *app) verifier() (*forge.Verifier, error) {
	v, err := forge.NewVerifier(a.cfg.ForgeFor(a.project), a.logger)
	if err != nil {
		return nil, err
	}
	a.onClose(v.Close)
	return v, nil
}

// store opens the configured corpus store once.
func (a *app) store(ctx context.Context) (retrieval.Store, error) {
	if a.corpus != nil {
		return a.corpus, nil
	}
	s, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.corpus = s
	return s, nil
}

func (a *app) openStore(ctx context.Context) (retrieval.Store, error) {
	rc := a.cfg.Retrieval
	switch rc.Backend {
	case config.BackendWeaviate:
		s, err := retrieval.NewWeaviateStore(rc.Weaviate.URL, rc.Weaviate.Class, a.logger)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		a.onClose(s.Close)
		return s, nil
	default:
		bc := rc.Badger
		bc.Path = expandHome(bc.Path)
		bc.Logger = a.logger
		s, err := retrieval.OpenBadgerStore(bc)
		if err != nil {
			return nil, err
		}
		a.onClose(s.Close)
		return s, nil
	}
}

// embedder builds the embedding client.
func (a *app) embedder() (llm.Embedder, error) {
	return llm.NewOllamaEmbedder(a.cfg.Models.Embedding)
}

// indexer builds an Indexer over the configured store.
func (a *app) indexer(ctx context.Context) (*retrieval.Indexer, error) {
	store, err := a.store(ctx)
	if err != nil {
		return nil, err
	}
	emb, err := a.embedder()
	if err != nil {
		return nil, err
	}
	return retrieval.NewIndexer(emb, store, a.cfg.Retrieval.Indexer, a.logger), nil
}

// retriever returns a vector retriever, or nil when the corpus is empty or
// unreachable so that generation proceeds zero-shot.
func (a *app) retriever(ctx context.Context) testgen.ExampleRetriever {
	store, err := a.store(ctx)
	if err != nil {
		a.logger.Warn("Reference corpus unavailable, generating zero-shot", slog.String("error", err.Error()))
		return nil
	}
	n, err := store.Count(ctx)
	if err != nil || n == 0 {
		a.logger.Warn("Reference corpus is empty, generating zero-shot",
			slog.Int("documents", n))
		return nil
	}
	emb, err := a.embedder()
	if err != nil {
		a.logger.Warn("Embedder unavailable, generating zero-shot", slog.String("error", err.Error()))
		return nil
	}
	a.logger.Debug("Reference corpus ready", slog.Int("documents", n))
	return retrieval.NewVectorRetriever(emb, store, a.logger)
}

// newSession assembles the loop and session for cfg.
func newSession(gen *testgen.Generator, verifier testgen.Verifier, retriever testgen.ExampleRetriever, cfg testgen.Config, logger *slog.Logger) (*testgen.Session, error) {
	loop, err := testgen.NewRepairLoop(gen, verifier, cfg, logger)
	if err != nil {
		return nil, err
	}
	var describer testgen.Describer
	if retriever != nil {
		describer = gen
	}
	return testgen.NewSession(loop, describer, retriever, logger)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func readContract(project, name string) (string, error) {
	data, err := os.ReadFile(solidity.ContractPath(project, name))
	if err != nil {
		return "", fmt.Errorf("%w: %v", testgen.ErrContractUnreadable, err)
	}
	return string(data), nil
}
