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

// TokenKind classifies a token.
type TokenKind int

const (
	TokenIdent TokenKind = iota
	TokenNumber
	TokenString
	TokenPunct
)

// String returns the kind name.
func (k TokenKind) String() string {
	switch k {
	case TokenIdent:
		return "ident"
	case TokenNumber:
		return "number"
	case TokenString:
		return "string"
	case TokenPunct:
		return "punct"
	default:
		return "unknown"
	}
}

// Token is one lexical unit. Comments and whitespace are not tokens.
type Token struct {
	Kind   TokenKind
	Text   string
	Offset int // byte offset of the first character
	End    int // byte offset one past the last character
	Line   int // 1-based
}

// Is reports whether t is the given punctuation or identifier text.
func (t Token) Is(text string) bool {
	return (t.Kind == TokenPunct || t.Kind == TokenIdent) && t.Text == text
}

// Tokenize splits Solidity source into tokens.
//
// Description:
//
//	Recognizes identifiers (including $ and _), numbers (decimal, hex,
//	scientific, underscores), single and double quoted strings with
//	backslash escapes, and single-character punctuation. Line and block
//	comments are skipped. Unterminated strings and comments run to the end
//	of the input instead of failing, because callers feed it model output.
//
// Inputs:
//
//	src - Source text.
//
// Outputs:
//
//	[]Token - Tokens in source order.
func Tokenize(src string) []Token {
	var tokens []Token
	line := 1
	i := 0
	n := len(src)

	for i < n {
		c := src[i]
		switch {
		case c == '\n':
			line++
			i++

		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			i++

		case c == '/' && i+1 < n && src[i+1] == '/':
			for i < n && src[i] != '\n' {
				i++
			}

		case c == '/' && i+1 < n && src[i+1] == '*':
			i += 2
			for i < n && !(src[i] == '*' && i+1 < n && src[i+1] == '/') {
				if src[i] == '\n' {
					line++
				}
				i++
			}
			i += 2
			if i > n {
				i = n
			}

		case c == '"' || c == '\'':
			start, startLine := i, line
			i++
			for i < n && src[i] != c {
				if src[i] == '\\' && i+1 < n {
					i++
				}
				if src[i] == '\n' {
					line++
				}
				i++
			}
			if i < n {
				i++
			}
			tokens = append(tokens, Token{Kind: TokenString, Text: src[start:i], Offset: start, End: i, Line: startLine})

		case isIdentStart(c):
			start := i
			for i < n && isIdentPart(src[i]) {
				i++
			}
			tokens = append(tokens, Token{Kind: TokenIdent, Text: src[start:i], Offset: start, End: i, Line: line})

		case isDigit(c):
			start := i
			for i < n && (isIdentPart(src[i]) || src[i] == '.') {
				i++
			}
			tokens = append(tokens, Token{Kind: TokenNumber, Text: src[start:i], Offset: start, End: i, Line: line})

		default:
			tokens = append(tokens, Token{Kind: TokenPunct, Text: src[i : i+1], Offset: i, End: i + 1, Line: line})
			i++
		}
	}
	return tokens
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
