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
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// documentNamespace seeds the name-based document IDs.
var documentNamespace = uuid.MustParse("6f1c2a8e-4d5b-5e3f-9a7c-1b2d3e4f5a6b")

var validate = validator.New()

// corpusFile is the wrapped form of a corpus: `documents: [...]`.
type corpusFile struct {
	Documents []Document `yaml:"documents"`
}

// LoadCorpus reads a YAML or JSON corpus file.
//
// Description:
//
//	The file holds either a bare list of documents or an object with a
//	`documents` list. JSON is accepted because it is valid YAML. Every
//	document is validated, and documents without an explicit ID get a
//	deterministic one derived from the function text, so re-indexing the same
//	corpus overwrites instead of duplicating.
//
// Inputs:
//
//	path - Corpus file path.
//
// Outputs:
//
//	[]Document - Documents in file order.
//	error - Wraps ErrInvalidCorpus on parse or validation failure.
func LoadCorpus(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	return ParseCorpus(data)
}

// ParseCorpus parses corpus bytes. See LoadCorpus.
func ParseCorpus(data []byte) ([]Document, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty corpus", ErrInvalidCorpus)
	}

	var docs []Document
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "-") {
		if err := yaml.Unmarshal(data, &docs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCorpus, err)
		}
	} else {
		var file corpusFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCorpus, err)
		}
		docs = file.Documents
	}

	for i := range docs {
		if err := validate.Struct(docs[i]); err != nil {
			return nil, fmt.Errorf("%w: document %d: %v", ErrInvalidCorpus, i, err)
		}
		if docs[i].ID == "" {
			docs[i].ID = DocumentID(docs[i].Function)
		} else if _, err := uuid.Parse(docs[i].ID); err != nil {
			return nil, fmt.Errorf("%w: document %d: id %q is not a UUID", ErrInvalidCorpus, i, docs[i].ID)
		}
	}
	return docs, nil
}

// DocumentID returns the deterministic ID for a function's source text.
func DocumentID(function string) string {
	return uuid.NewSHA1(documentNamespace, []byte(strings.TrimSpace(function))).String()
}

// DedupByFunction keeps the first document for each distinct function,
// preserving order.
func DedupByFunction(docs []Document) []Document {
	seen := make(map[string]struct{}, len(docs))
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if _, ok := seen[d.Function]; ok {
			continue
		}
		seen[d.Function] = struct{}{}
		out = append(out, d)
	}
	return out
}
