// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retrieval stores reference Foundry tests and finds the ones whose
// function is most similar to a target function.
//
// A reference Document pairs a Solidity function with tests written for it
// and a plain-text description of its behavior. Descriptions are embedded and
// kept in a Store (local Badger or remote Weaviate); VectorRetriever embeds
// the description of a target function and returns the closest documents,
// deduplicated by function.
package retrieval
