// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the unitgen CLI configuration.
package config

import (
	"time"

	"github.com/AleutianAI/unitgen/pkg/telemetry"
	"github.com/AleutianAI/unitgen/services/forge"
	"github.com/AleutianAI/unitgen/services/llm"
	"github.com/AleutianAI/unitgen/services/retrieval"
	"github.com/AleutianAI/unitgen/services/testgen"
)

// Storage backends for the reference corpus.
const (
	BackendBadger   = "badger"
	BackendWeaviate = "weaviate"
)

// Config is the root of ~/.unitgen/config.yaml.
type Config struct {
	// ProjectDir is the default Foundry project root.
	ProjectDir string `yaml:"project_dir"`

	Models     ModelsConfig     `yaml:"models"`
	Forge      ForgeConfig      `yaml:"forge"`
	Generation testgen.Config   `yaml:"generation"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Logging    LoggingConfig    `yaml:"logging"`
	Telemetry  telemetry.Config `yaml:"telemetry"`
	Server     ServerConfig     `yaml:"server"`
}

// ModelsConfig selects one model per role.
type ModelsConfig struct {
	// Test writes new candidate tests.
	Test llm.ModelConfig `yaml:"test"`

	// Compilation repairs failing candidates. Defaults to Test.
	Compilation *llm.ModelConfig `yaml:"compilation,omitempty" validate:"omitempty"`

	// Description summarizes functions for retrieval. Defaults to Test.
	Description *llm.ModelConfig `yaml:"description,omitempty" validate:"omitempty"`

	Embedding llm.ModelConfig `yaml:"embedding"`
}

// ForgeConfig is the file form of forge.Config.
type ForgeConfig struct {
	Binary           string        `yaml:"binary"`
	Args             []string      `yaml:"args"`
	Timeout          time.Duration `yaml:"timeout"`
	MaxOutputBytes   int           `yaml:"max_output_bytes" validate:"gte=0"`
	CaptureStderr    bool          `yaml:"capture_stderr"`
	LockDir          string        `yaml:"lock_dir"`
	CrossProcessLock bool          `yaml:"cross_process_lock"`
}

// RetrievalConfig selects the corpus store.
type RetrievalConfig struct {
	Backend string `yaml:"backend" validate:"oneof=badger weaviate"`

	// CorpusPath is indexed by "unitgen index" without arguments and
	// watched by "unitgen serve --watch".
	CorpusPath string `yaml:"corpus_path"`

	Badger   retrieval.BadgerConfig  `yaml:"badger"`
	Weaviate WeaviateConfig          `yaml:"weaviate"`
	Indexer  retrieval.IndexerConfig `yaml:"indexer"`

	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// WeaviateConfig locates the remote vector store.
type WeaviateConfig struct {
	URL   string `yaml:"url" validate:"omitempty,url"`
	Class string `yaml:"class"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`

	// Dir enables daily JSON log files.
	Dir  string `yaml:"dir"`
	JSON bool   `yaml:"json"`

	// Recent is how many records serve mode keeps in memory for
	// GET /v1/logs. 0 disables the endpoint.
	Recent int `yaml:"recent" validate:"gte=0"`
}

// ServerConfig configures serve mode.
type ServerConfig struct {
	Port            int           `yaml:"port" validate:"gte=0,lte=65535"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Debug           bool          `yaml:"debug"`
}

// Default returns the configuration written on first run.
func Default() Config {
	fc := forge.DefaultConfig("")
	return Config{
		ProjectDir: ".",
		Models: ModelsConfig{
			Test: llm.ModelConfig{
				Provider: llm.ProviderOllama,
				Model:    "qwen2.5-coder:14b",
				Timeout:  5 * time.Minute,
			},
			Embedding: llm.ModelConfig{
				Provider: llm.ProviderOllama,
				Model:    llm.DefaultEmbeddingModel,
				Timeout:  time.Minute,
			},
		},
		Forge: ForgeConfig{
			Binary:           fc.Binary,
			Args:             fc.Args,
			Timeout:          fc.Timeout,
			MaxOutputBytes:   fc.MaxOutputBytes,
			CaptureStderr:    fc.CaptureStderr,
			LockDir:          fc.LockDir,
			CrossProcessLock: fc.CrossProcessLock,
		},
		Generation: testgen.DefaultConfig(),
		Retrieval: RetrievalConfig{
			Backend: BackendBadger,
			Badger: retrieval.BadgerConfig{
				Path: "~/.unitgen/corpus",
			},
			Weaviate: WeaviateConfig{
				Class: retrieval.DefaultWeaviateClass,
			},
			Indexer:       retrieval.IndexerConfig{BatchSize: 16, Concurrency: 4},
			WatchDebounce: retrieval.DefaultWatchDebounce,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Recent: 500,
		},
		Telemetry: telemetry.DefaultConfig(),
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// ForgeFor returns the verifier config for projectDir.
func (c *Config) ForgeFor(projectDir string) forge.Config {
	fc := forge.DefaultConfig(projectDir)
	if c.Forge.Binary != "" {
		fc.Binary = c.Forge.Binary
	}
	if len(c.Forge.Args) > 0 {
		fc.Args = append([]string(nil), c.Forge.Args...)
	}
	if c.Forge.Timeout > 0 {
		fc.Timeout = c.Forge.Timeout
	}
	if c.Forge.MaxOutputBytes > 0 {
		fc.MaxOutputBytes = c.Forge.MaxOutputBytes
	}
	if c.Forge.LockDir != "" {
		fc.LockDir = c.Forge.LockDir
	}
	fc.CaptureStderr = c.Forge.CaptureStderr
	fc.CrossProcessLock = c.Forge.CrossProcessLock
	return fc
}

// CompilationModel returns the repair model, falling back to Test.
func (m ModelsConfig) CompilationModel() llm.ModelConfig {
	if m.Compilation != nil {
		return *m.Compilation
	}
	return m.Test
}

// DescriptionModel returns the description model, falling back to Test.
func (m ModelsConfig) DescriptionModel() llm.ModelConfig {
	if m.Description != nil {
		return *m.Description
	}
	return m.Test
}
