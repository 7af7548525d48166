// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package testgen generates Foundry unit tests for Solidity functions and
// repairs them against compiler feedback.
//
// The core is RepairLoop: a candidate test is verified with forge; if the
// output carries no success marker the candidate, the failing output, the
// target function and its contract are handed to a repair prompt and the new
// candidate is verified again, at most RetryBudget times. Session drives the
// loop for every public function of a contract, optionally once per
// retrieved reference test, and collects the accepted candidates into one
// test file.
//
// # Thread Safety
//
// RepairLoop and Session are safe for concurrent use when their
// collaborators are. Verifications of the same contract are serialized by
// the verifier.
package testgen
