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

import "errors"

var (
	// ErrNilContext is returned when a nil context is passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrTimeout is returned when forge exceeds its timeout. The partial
	// output is still returned alongside it.
	ErrTimeout = errors.New("forge execution timed out")

	// ErrBinaryNotFound is returned when the forge binary is not on PATH.
	ErrBinaryNotFound = errors.New("forge binary not found")

	// ErrExecFailed is returned when forge could not be started or was
	// killed by something other than the timeout.
	ErrExecFailed = errors.New("forge execution failed")

	// ErrScratchWrite is returned when the scratch test file cannot be written.
	ErrScratchWrite = errors.New("failed to write scratch test file")

	// ErrScratchRestore is returned when cleanup of a scratch file fails.
	ErrScratchRestore = errors.New("failed to restore scratch test file")

	// ErrLocked is returned by platform lockers when another process holds
	// the lock file.
	ErrLocked = errors.New("lock file held by another process")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("invalid forge config")
)
