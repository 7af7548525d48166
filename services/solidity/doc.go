// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package solidity provides the lightweight Solidity source handling that
// test generation needs: a tokenizer, function extraction, a single-function
// shape check for generated candidates, and Foundry test-file rendering.
//
// It is deliberately not a parser. Extraction only needs declaration
// headers and brace-balanced body spans, and the tokenizer is enough to keep
// braces inside strings and comments from confusing it.
//
// # Project Layout
//
// A Foundry project is expected to look like:
//
//	{project}/src/{Contract}.sol     subject under test
//	{project}/test/{Contract}.t.sol  generated or scratch test file
//
// ContractPath and TestPath build those paths.
package solidity
