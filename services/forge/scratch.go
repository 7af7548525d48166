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
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

const tempSuffix = ".unitgen.tmp"

// ScratchFiles writes and removes scratch test files.
//
// # Description
//
// Write replaces the file atomically (temp file + rename). If a file already
// existed at the path, its content is kept in memory and Remove puts it back;
// otherwise Remove deletes the scratch file. Each path is backed up at most
// once between Write and Remove, so repeated writes never back up a scratch.
//
// # Thread Safety
//
// Safe for concurrent use on different paths.
type ScratchFiles struct {
	backups map[string][]byte
	written map[string]struct{}
	mu      sync.Mutex
	logger  *slog.Logger
}

// NewScratchFiles creates an empty scratch file manager.
func NewScratchFiles(logger *slog.Logger) *ScratchFiles {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScratchFiles{
		backups: make(map[string][]byte),
		written: make(map[string]struct{}),
		logger:  logger,
	}
}

// Write writes content to path, backing up any pre-existing file.
func (s *ScratchFiles) Write(path, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, tracked := s.written[path]; !tracked {
		existing, err := os.ReadFile(path)
		switch {
		case err == nil:
			s.backups[path] = existing
			s.logger.Debug("Backed up existing test file",
				slog.String("path", path),
				slog.Int("size", len(existing)),
			)
		case !errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("%w: read existing: %v", ErrScratchWrite, err)
		}
	}

	if err := writeAtomic(path, content); err != nil {
		return fmt.Errorf("%w: %v", ErrScratchWrite, err)
	}
	s.written[path] = struct{}{}
	return nil
}

// Remove restores the backed-up file at path, or deletes the scratch file
// when there was none. Removing an untracked path is a no-op.
func (s *ScratchFiles) Remove(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, tracked := s.written[path]; !tracked {
		return nil
	}
	delete(s.written, path)

	if backup, ok := s.backups[path]; ok {
		delete(s.backups, path)
		if err := writeAtomic(path, string(backup)); err != nil {
			s.logger.Error("Failed to restore test file",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("%w: %s: %v", ErrScratchRestore, path, err)
		}
		return nil
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s: %v", ErrScratchRestore, path, err)
	}
	return nil
}

// RemoveAll restores or deletes every tracked scratch file. Returns the
// last error encountered.
func (s *ScratchFiles) RemoveAll() error {
	s.mu.Lock()
	paths := make([]string, 0, len(s.written))
	for p := range s.written {
		paths = append(paths, p)
	}
	s.mu.Unlock()

	var lastErr error
	for _, p := range paths {
		if err := s.Remove(p); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Pending returns the number of scratch files not yet removed.
func (s *ScratchFiles) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.written)
}

// WriteFile atomically writes a final (non-scratch) file, creating parent
// directories. It is not tracked for removal.
func WriteFile(path, content string) error {
	if err := writeAtomic(path, content); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func writeAtomic(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp := path + tempSuffix
	if err := os.WriteFile(tmp, []byte(content), 0644); err != nil {
		return fmt.Errorf("write temp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
