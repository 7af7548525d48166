// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package solidity

import (
	"errors"
	"fmt"
	"strings"
)

// Shape errors returned by CheckSingleFunction.
var (
	ErrEmptyCandidate      = errors.New("candidate is empty")
	ErrNotAFunction        = errors.New("candidate is not a function declaration")
	ErrMultipleFunctions   = errors.New("candidate contains more than one function")
	ErrUnbalancedBraces    = errors.New("candidate has unbalanced braces")
	ErrContractDeclaration = errors.New("candidate declares a contract instead of a function")
	ErrTrailingContent     = errors.New("candidate has content after the function body")
)

// CheckSingleFunction verifies that text is exactly one function
// declaration with a body, optionally preceded by comments.
//
// It does not check that the function compiles. It only rejects output that
// cannot possibly be placed as one member of a test contract.
func CheckSingleFunction(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyCandidate
	}
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return ErrEmptyCandidate
	}

	for i := 0; i+1 < len(tokens); i++ {
		if tokens[i].Kind == TokenIdent && isContainerKeyword(tokens[i].Text) && tokens[i+1].Kind == TokenIdent {
			return ErrContractDeclaration
		}
	}

	if !tokens[0].Is("function") || len(tokens) < 2 || tokens[1].Kind != TokenIdent {
		return fmt.Errorf("%w: starts with %q", ErrNotAFunction, tokens[0].Text)
	}

	open := -1
	depth := 0
	for i, t := range tokens {
		if t.Is("(") {
			depth++
		} else if t.Is(")") {
			depth--
		} else if depth == 0 && t.Is(";") && open < 0 {
			return fmt.Errorf("%w: declaration has no body", ErrNotAFunction)
		} else if depth == 0 && t.Is("{") {
			open = i
			break
		}
	}
	if open < 0 {
		return fmt.Errorf("%w: declaration has no body", ErrNotAFunction)
	}

	end := matchBrace(tokens, open)
	if end < 0 {
		return ErrUnbalancedBraces
	}
	if end == len(tokens)-1 {
		return nil
	}

	rest := tokens[end+1:]
	for _, t := range rest {
		if t.Is("function") {
			return ErrMultipleFunctions
		}
	}
	if rest[0].Is("}") {
		return ErrUnbalancedBraces
	}
	return fmt.Errorf("%w: %q", ErrTrailingContent, rest[0].Text)
}

// StripCodeFences returns the content of the first fenced code block in
// text, or text itself trimmed when there is no complete fence.
func StripCodeFences(text string) string {
	start := strings.Index(text, "```")
	if start == -1 {
		return strings.TrimSpace(text)
	}
	body := text[start+3:]
	// Drop the info string ("solidity", "sol", ...) on the fence line.
	if nl := strings.IndexByte(body, '\n'); nl != -1 {
		body = body[nl+1:]
	} else {
		return strings.TrimSpace(text)
	}
	end := strings.Index(body, "```")
	if end == -1 {
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(body[:end])
}
