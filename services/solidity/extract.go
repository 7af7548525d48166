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

import "strings"

// FunctionKind is the declaration keyword of an extracted function.
type FunctionKind string

const (
	KindFunction    FunctionKind = "function"
	KindReceive     FunctionKind = "receive"
	KindFallback    FunctionKind = "fallback"
	KindConstructor FunctionKind = "constructor"
)

// Visibility of a function declaration. VisibilityUnspecified means the
// header had no visibility keyword.
type Visibility string

const (
	VisibilityUnspecified Visibility = ""
	VisibilityPublic      Visibility = "public"
	VisibilityExternal    Visibility = "external"
	VisibilityInternal    Visibility = "internal"
	VisibilityPrivate     Visibility = "private"
)

// Function is one function declaration with a body.
type Function struct {
	// Name is the declared name, or the keyword for receive, fallback and
	// constructor.
	Name string

	Kind       FunctionKind
	Visibility Visibility

	// Contract is the enclosing contract, library or interface name.
	// Empty for file-level free functions.
	Contract string

	// Source is the declaration text from the start of its first line (so
	// indentation is kept) through the closing brace.
	Source string

	StartLine int
	EndLine   int
}

// IsExternallyCallable reports whether a test contract can call the
// function directly: public or external functions, receive and fallback.
// Functions without a visibility keyword inside a contract are treated as
// public, matching pre-0.5 compiler defaults.
func (f Function) IsExternallyCallable() bool {
	if f.Contract == "" {
		return false
	}
	switch f.Kind {
	case KindReceive, KindFallback:
		return true
	case KindConstructor:
		return false
	}
	switch f.Visibility {
	case VisibilityPublic, VisibilityExternal, VisibilityUnspecified:
		return true
	default:
		return false
	}
}

type scope struct {
	contract string // empty for non-contract blocks
	isType   bool
}

// ExtractFunctions returns every function declaration with a body, in
// source order.
//
// Description:
//
//	Walks the token stream tracking brace scopes. Declarations are only
//	recognized at file scope or directly inside a contract, library or
//	interface body, so calls like x.receive() and function-typed variables
//	inside bodies are ignored. Bodiless declarations (interfaces, abstract
//	functions) are skipped.
//
// Inputs:
//
//	src - Solidity source text.
//
// Outputs:
//
//	[]Function - Extracted functions. Empty if none.
func ExtractFunctions(src string) []Function {
	tokens := Tokenize(src)
	var (
		out     []Function
		scopes  []scope
		pending string
	)

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]

		switch {
		case tok.Kind == TokenIdent && isContainerKeyword(tok.Text) && (i == 0 || !tokens[i-1].Is(".")):
			if i+1 < len(tokens) && tokens[i+1].Kind == TokenIdent {
				pending = tokens[i+1].Text
				i++
			}
			continue

		case tok.Is("{"):
			if pending != "" {
				scopes = append(scopes, scope{contract: pending, isType: true})
				pending = ""
			} else {
				scopes = append(scopes, scope{})
			}
			continue

		case tok.Is("}"):
			if len(scopes) > 0 {
				scopes = scopes[:len(scopes)-1]
			}
			continue
		}

		if tok.Kind != TokenIdent || !isFunctionKeyword(tok.Text) {
			continue
		}
		if i > 0 && tokens[i-1].Is(".") {
			continue
		}
		atFile := len(scopes) == 0
		atContract := !atFile && scopes[len(scopes)-1].isType
		if !atFile && !atContract {
			continue
		}

		fn, end, ok := parseDeclaration(src, tokens, i)
		if !ok {
			continue
		}
		if atContract {
			fn.Contract = scopes[len(scopes)-1].contract
		}
		out = append(out, fn)
		i = end
	}
	return out
}

// PublicFunctions returns the externally callable functions of src.
func PublicFunctions(src string) []Function {
	var out []Function
	for _, fn := range ExtractFunctions(src) {
		if fn.IsExternallyCallable() {
			out = append(out, fn)
		}
	}
	return out
}

// ContractNames returns the names of contracts, libraries and interfaces
// declared in src, in order.
func ContractNames(src string) []string {
	tokens := Tokenize(src)
	var names []string
	for i := 0; i+1 < len(tokens); i++ {
		if tokens[i].Kind == TokenIdent && isContainerKeyword(tokens[i].Text) &&
			tokens[i+1].Kind == TokenIdent && (i == 0 || !tokens[i-1].Is(".")) {
			names = append(names, tokens[i+1].Text)
			i++
		}
	}
	return names
}

// parseDeclaration parses the declaration starting at tokens[start]. It
// returns the function, the index of its closing brace, and false when the
// tokens are not a declaration with a body.
func parseDeclaration(src string, tokens []Token, start int) (Function, int, bool) {
	kw := tokens[start]
	fn := Function{Kind: FunctionKind(kw.Text), StartLine: kw.Line}

	i := start + 1
	if fn.Kind == KindFunction {
		// "function (" is a function type, not a declaration.
		if i >= len(tokens) || tokens[i].Kind != TokenIdent {
			return Function{}, start, false
		}
		fn.Name = tokens[i].Text
		i++
	} else {
		fn.Name = kw.Text
	}

	// Header: scan to the body's "{" or a terminating ";" outside parens.
	depth := 0
	bodyStart := -1
	for ; i < len(tokens); i++ {
		t := tokens[i]
		switch {
		case t.Is("("):
			depth++
		case t.Is(")"):
			depth--
		case depth == 0 && t.Is(";"):
			return Function{}, i, false
		case depth == 0 && t.Is("{"):
			bodyStart = i
		case depth == 0 && t.Kind == TokenIdent && fn.Visibility == VisibilityUnspecified:
			switch Visibility(t.Text) {
			case VisibilityPublic, VisibilityExternal, VisibilityInternal, VisibilityPrivate:
				fn.Visibility = Visibility(t.Text)
			}
		}
		if bodyStart >= 0 {
			break
		}
	}
	if bodyStart < 0 {
		return Function{}, len(tokens) - 1, false
	}

	end := matchBrace(tokens, bodyStart)
	if end < 0 {
		return Function{}, len(tokens) - 1, false
	}

	from := lineStartIfIndentOnly(src, kw.Offset)
	fn.Source = src[from:tokens[end].End]
	fn.EndLine = tokens[end].Line
	return fn, end, true
}

// matchBrace returns the index of the "}" closing tokens[open], or -1.
func matchBrace(tokens []Token, open int) int {
	depth := 0
	for i := open; i < len(tokens); i++ {
		switch {
		case tokens[i].Is("{"):
			depth++
		case tokens[i].Is("}"):
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func lineStartIfIndentOnly(src string, offset int) int {
	lineStart := strings.LastIndexByte(src[:offset], '\n') + 1
	if strings.TrimLeft(src[lineStart:offset], " \t") == "" {
		return lineStart
	}
	return offset
}

func isContainerKeyword(s string) bool {
	return s == "contract" || s == "library" || s == "interface"
}

func isFunctionKeyword(s string) bool {
	switch FunctionKind(s) {
	case KindFunction, KindReceive, KindFallback, KindConstructor:
		return true
	}
	return false
}
