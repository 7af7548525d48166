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
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce coalesces bursts of editor writes.
const DefaultWatchDebounce = 500 * time.Millisecond

// ReloadFunc receives a freshly loaded corpus.
type ReloadFunc func(ctx context.Context, docs []Document) error

// WatchCorpus calls fn with the reloaded corpus each time the file at path
// changes, until ctx is cancelled.
//
// Description:
//
//	Watches the parent directory rather than the file so that editors that
//	replace the file by rename are still seen. Events are debounced; a corpus
//	that fails to load or a failing fn is logged and the watch continues.
//
// Outputs:
//
//	error - Non-nil only if the watcher cannot be started or fails.
func WatchCorpus(ctx context.Context, path string, debounce time.Duration, fn ReloadFunc, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve corpus path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	logger.Info("Watching reference corpus", slog.String("path", abs))

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer.Reset(debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch corpus: %w", err)

		case <-timer.C:
			docs, err := LoadCorpus(abs)
			if err != nil {
				logger.Warn("Corpus reload failed", slog.String("error", err.Error()))
				continue
			}
			if err := fn(ctx, docs); err != nil {
				logger.Warn("Corpus reload callback failed", slog.String("error", err.Error()))
				continue
			}
			logger.Info("Reference corpus reloaded", slog.Int("documents", len(docs)))
		}
	}
}
