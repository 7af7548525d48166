// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package forge

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Config configures the verifier.
type Config struct {
	// ProjectDir is the Foundry project root (contains src/ and test/).
	ProjectDir string

	// Binary is the forge executable. Default: "forge".
	Binary string

	// Args are passed to Binary. "{contract}" is replaced with the contract
	// name. Default: test --match-contract {contract}.
	Args []string

	// Timeout bounds one forge invocation. Default: 2 minutes.
	Timeout time.Duration

	// MaxOutputBytes caps captured output per stream. Default: 1 MiB.
	MaxOutputBytes int

	// CaptureStderr appends stderr to the captured output. Default: true.
	CaptureStderr bool

	// LockDir holds cross-process lock files, relative to ProjectDir unless
	// absolute. Default: ".unitgen/locks".
	LockDir string

	// CrossProcessLock enables the advisory lock file. Default: true.
	CrossProcessLock bool

	// LockPollInterval is how often a held lock file is retried.
	// Default: 200ms.
	LockPollInterval time.Duration
}

// DefaultConfig returns defaults for a project directory.
func DefaultConfig(projectDir string) Config {
	return Config{
		ProjectDir:       projectDir,
		Binary:           "forge",
		Args:             []string{"test", "--match-contract", "{contract}"},
		Timeout:          2 * time.Minute,
		MaxOutputBytes:   1 << 20,
		CaptureStderr:    true,
		LockDir:          filepath.Join(".unitgen", "locks"),
		CrossProcessLock: true,
		LockPollInterval: 200 * time.Millisecond,
	}
}

// Validate checks required fields and fills zero values with defaults.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ProjectDir) == "" {
		return fmt.Errorf("%w: project dir is required", ErrInvalidConfig)
	}
	def := DefaultConfig(c.ProjectDir)
	if c.Binary == "" {
		c.Binary = def.Binary
	}
	if len(c.Args) == 0 {
		c.Args = def.Args
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.MaxOutputBytes <= 0 {
		c.MaxOutputBytes = def.MaxOutputBytes
	}
	if c.LockDir == "" {
		c.LockDir = def.LockDir
	}
	if c.LockPollInterval <= 0 {
		c.LockPollInterval = def.LockPollInterval
	}
	return nil
}

func (c *Config) lockDir() string {
	if filepath.IsAbs(c.LockDir) {
		return c.LockDir
	}
	return filepath.Join(c.ProjectDir, c.LockDir)
}
