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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// fileLocker abstracts platform advisory locking. Lock is non-blocking and
// returns ErrLocked when another process holds the lock.
type fileLocker interface {
	Lock(f *os.File) error
	Unlock(f *os.File) error
}

// ContractLocks provides one-at-a-time access to a contract's scratch path.
//
// # Description
//
// Each contract name maps to a one-slot semaphore inside the process. When
// cross-process locking is enabled, the holder also takes an advisory lock
// on {LockDir}/{contract}.lock, retried every poll interval until the
// context ends. Lock files are left in place on release; deleting them
// would let two processes lock different inodes.
//
// # Thread Safety
//
// Safe for concurrent use.
type ContractLocks struct {
	dir          string
	crossProcess bool
	poll         time.Duration
	locker       fileLocker
	slots        map[string]chan struct{}
	mu           sync.Mutex
	logger       *slog.Logger
}

// NewContractLocks creates the lock set for a validated Config.
func NewContractLocks(cfg Config, logger *slog.Logger) *ContractLocks {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContractLocks{
		dir:          cfg.lockDir(),
		crossProcess: cfg.CrossProcessLock,
		poll:         cfg.LockPollInterval,
		locker:       newPlatformLocker(),
		slots:        make(map[string]chan struct{}),
		logger:       logger,
	}
}

func (l *ContractLocks) slot(contract string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[contract]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[contract] = ch
	}
	return ch
}

// Acquire blocks until the caller holds contract's lock or ctx ends.
//
// # Outputs
//
//   - release: Idempotent. Must be called when done.
//   - error: ctx.Err() on cancellation, or a lock file setup failure.
func (l *ContractLocks) Acquire(ctx context.Context, contract string) (release func(), err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	ch := l.slot(contract)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var f *os.File
	if l.crossProcess {
		f, err = l.lockFile(ctx, contract)
		if err != nil {
			<-ch
			return nil, err
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if f != nil {
				if err := l.locker.Unlock(f); err != nil {
					l.logger.Warn("Failed to unlock contract lock file",
						slog.String("contract", contract),
						slog.String("error", err.Error()),
					)
				}
				_ = f.Close()
			}
			<-ch
		})
	}, nil
}

func (l *ContractLocks) lockFile(ctx context.Context, contract string) (*os.File, error) {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	path := filepath.Join(l.dir, contract+".lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()
	waiting := false
	for {
		err := l.locker.Lock(f)
		if err == nil {
			_ = f.Truncate(0)
			_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
			return f, nil
		}
		if !errors.Is(err, ErrLocked) {
			_ = f.Close()
			return nil, fmt.Errorf("lock %s: %w", path, err)
		}
		if !waiting {
			waiting = true
			l.logger.Info("Waiting for another process to finish verifying contract",
				slog.String("contract", contract),
				slog.String("lock_file", path),
			)
		}
		select {
		case <-ctx.Done():
			_ = f.Close()
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
