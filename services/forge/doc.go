// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package forge verifies generated Solidity tests with Foundry.
//
// # Description
//
// A verification writes one candidate, rendered into a complete test file,
// to the scratch path {project}/test/{Contract}.t.sol, runs
//
//	forge test --match-contract {Contract}
//
// in the project directory, captures the output and removes the scratch
// file again. A test file that already existed at the scratch path is
// backed up first and restored afterwards.
//
// The scratch path is a single slot per contract, so ContractLocks
// serializes verifications per contract name, both inside the process and,
// through an advisory lock file, across processes sharing the project.
//
// # Components
//
//   - Runner: executes forge with a timeout and bounded output capture
//   - ScratchFiles: atomic scratch writes with backup and restore
//   - ContractLocks: per-contract mutual exclusion
//   - Verifier: composes the three
//
// Classifying the output as pass or fail is not this package's job. The
// caller receives the raw output.
package forge
