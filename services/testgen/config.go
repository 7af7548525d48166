// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package testgen

import (
	"fmt"
	"time"
)

// Config controls generation and repair.
type Config struct {
	// RetryBudget is the number of repair attempts per lineage. A lineage
	// makes at most RetryBudget+1 verifier calls. Default: 2.
	RetryBudget int `yaml:"retry_budget"`

	// ExampleCount is the number of reference examples retrieved per
	// function (k). Default: 2.
	ExampleCount int `yaml:"example_count"`

	// SubtestsPerExample is the number of reference tests used per
	// retrieved example. Default: 2.
	SubtestsPerExample int `yaml:"subtests_per_example"`

	// UseReferenceGuidance fans out one lineage per retrieved reference
	// test. When false every function gets one zero-shot lineage.
	// Default: true.
	UseReferenceGuidance bool `yaml:"use_reference_guidance"`

	// Verbose logs every loop transition and raw verifier output at Info.
	Verbose bool `yaml:"verbose"`

	// GenerationTimeout bounds each model call. Default: 5m.
	GenerationTimeout time.Duration `yaml:"generation_timeout"`

	// VerifierTimeout bounds each verifier call, including the wait for the
	// contract lock. Default: 3m.
	VerifierTimeout time.Duration `yaml:"verifier_timeout"`

	// RejectMalformed fails candidates that are not a single function
	// without spending a verifier call. Default: true.
	RejectMalformed bool `yaml:"reject_malformed"`

	// SuccessMarkers are matched case-sensitively against raw verifier
	// output.
	SuccessMarkers []string `yaml:"success_markers"`

	// TreatSkippedAsSuccess accepts "compilation skipped" output. Default:
	// true.
	TreatSkippedAsSuccess bool `yaml:"treat_skipped_as_success"`
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{
		RetryBudget:           2,
		ExampleCount:          2,
		SubtestsPerExample:    2,
		UseReferenceGuidance:  true,
		GenerationTimeout:     5 * time.Minute,
		VerifierTimeout:       3 * time.Minute,
		RejectMalformed:       true,
		SuccessMarkers:        DefaultSuccessMarkers(),
		TreatSkippedAsSuccess: true,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.RetryBudget < 0 {
		return fmt.Errorf("%w: retry_budget must be >= 0, got %d", ErrInvalidConfig, c.RetryBudget)
	}
	if c.ExampleCount < 1 {
		return fmt.Errorf("%w: example_count must be >= 1, got %d", ErrInvalidConfig, c.ExampleCount)
	}
	if c.SubtestsPerExample < 1 {
		return fmt.Errorf("%w: subtests_per_example must be >= 1, got %d", ErrInvalidConfig, c.SubtestsPerExample)
	}
	if c.GenerationTimeout <= 0 {
		return fmt.Errorf("%w: generation_timeout must be positive", ErrInvalidConfig)
	}
	if c.VerifierTimeout <= 0 {
		return fmt.Errorf("%w: verifier_timeout must be positive", ErrInvalidConfig)
	}
	if len(c.SuccessMarkers) == 0 {
		return fmt.Errorf("%w: at least one success marker is required", ErrInvalidConfig)
	}
	for _, m := range c.SuccessMarkers {
		if m == "" {
			return fmt.Errorf("%w: success markers must not be empty", ErrInvalidConfig)
		}
	}
	return nil
}

// Option modifies a Config.
type Option func(*Config)

// NewConfig applies opts to DefaultConfig.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func WithRetryBudget(n int) Option {
	return func(c *Config) { c.RetryBudget = n }
}

func WithExampleCount(k int) Option {
	return func(c *Config) { c.ExampleCount = k }
}

func WithSubtestsPerExample(n int) Option {
	return func(c *Config) { c.SubtestsPerExample = n }
}

func WithReferenceGuidance(enabled bool) Option {
	return func(c *Config) { c.UseReferenceGuidance = enabled }
}

func WithVerbose(verbose bool) Option {
	return func(c *Config) { c.Verbose = verbose }
}

func WithGenerationTimeout(d time.Duration) Option {
	return func(c *Config) { c.GenerationTimeout = d }
}

func WithVerifierTimeout(d time.Duration) Option {
	return func(c *Config) { c.VerifierTimeout = d }
}

func WithRejectMalformed(enabled bool) Option {
	return func(c *Config) { c.RejectMalformed = enabled }
}

// WithSuccessMarkers replaces the marker set.
func WithSuccessMarkers(markers ...string) Option {
	return func(c *Config) { c.SuccessMarkers = append([]string(nil), markers...) }
}

func WithTreatSkippedAsSuccess(enabled bool) Option {
	return func(c *Config) { c.TreatSkippedAsSuccess = enabled }
}
