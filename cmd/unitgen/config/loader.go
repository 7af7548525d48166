// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/unitgen/services/llm"
)

// ErrInvalid is returned when the configuration fails validation.
var ErrInvalid = errors.New("invalid configuration")

var validate = validator.New()

// DefaultPath returns ~/.unitgen/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".unitgen", "config.yaml"), nil
}

// Load reads the configuration at path, creating it with defaults when it
// does not exist. An empty path means DefaultPath. Environment overrides are
// applied before validation.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := createDefault(path); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read the config file %s: %w", path, err)
	}
	return parse(data, os.Getenv)
}

// Parse decodes YAML over the defaults, applies environment overrides and
// validates the result.
func Parse(data []byte) (*Config, error) {
	return parse(data, os.Getenv)
}

func parse(data []byte, getenv func(string) string) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse the config: %w", err)
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags and the nested service configs.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := c.Generation.Validate(); err != nil {
		return fmt.Errorf("%w: generation: %v", ErrInvalid, err)
	}
	if c.Retrieval.Backend == BackendWeaviate && c.Retrieval.Weaviate.URL == "" {
		return fmt.Errorf("%w: retrieval.weaviate.url is required for the weaviate backend", ErrInvalid)
	}
	return nil
}

// applyEnv overrides file values from the environment.
//
//	UNITGEN_PROJECT       project_dir
//	UNITGEN_PROVIDER      models.test.provider
//	UNITGEN_TEST_MODEL    models.test.model
//	UNITGEN_RETRY_BUDGET  generation.retry_budget
//	UNITGEN_LOG_LEVEL     logging.level
//	UNITGEN_BACKEND       retrieval.backend
//	UNITGEN_WEAVIATE_URL  retrieval.weaviate.url
//	OLLAMA_BASE_URL       base_url of ollama models without one
//	OPENAI_API_KEY        api key of openai models
func applyEnv(c *Config, getenv func(string) string) error {
	if v := getenv("UNITGEN_PROJECT"); v != "" {
		c.ProjectDir = v
	}
	if v := getenv("UNITGEN_PROVIDER"); v != "" {
		c.Models.Test.Provider = strings.ToLower(v)
	}
	if v := getenv("UNITGEN_TEST_MODEL"); v != "" {
		c.Models.Test.Model = v
	}
	if v := getenv("UNITGEN_RETRY_BUDGET"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: UNITGEN_RETRY_BUDGET=%q is not an integer", ErrInvalid, v)
		}
		c.Generation.RetryBudget = n
	}
	if v := getenv("UNITGEN_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := getenv("UNITGEN_BACKEND"); v != "" {
		c.Retrieval.Backend = strings.ToLower(v)
	}
	if v := getenv("UNITGEN_WEAVIATE_URL"); v != "" {
		c.Retrieval.Weaviate.URL = v
	}

	ollamaURL := getenv("OLLAMA_BASE_URL")
	apiKey := getenv("OPENAI_API_KEY")
	for _, m := range c.models() {
		switch strings.ToLower(m.Provider) {
		case "", llm.ProviderOllama:
			if m.BaseURL == "" && ollamaURL != "" {
				m.BaseURL = ollamaURL
			}
		case llm.ProviderOpenAI:
			if apiKey != "" {
				m.APIKey = apiKey
			}
		}
	}
	return nil
}

func (c *Config) models() []*llm.ModelConfig {
	out := []*llm.ModelConfig{&c.Models.Test, &c.Models.Embedding}
	if c.Models.Compilation != nil {
		out = append(out, c.Models.Compilation)
	}
	if c.Models.Description != nil {
		out = append(out, c.Models.Description)
	}
	return out
}

func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
