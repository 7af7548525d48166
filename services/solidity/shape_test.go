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
	"testing"
)

func TestCheckSingleFunction(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"valid", "function test_deposit() public {\n    vault.deposit{value: 1}();\n}", nil},
		{"valid with doc comment", "/// checks deposit\nfunction test_a() public { assertTrue(true); }", nil},
		{"empty", "  \n\t", ErrEmptyCandidate},
		{"comment only", "// nothing", ErrEmptyCandidate},
		{"prose", "Here is your test: function test_a() public {}", ErrNotAFunction},
		{"no body", "function test_a() public;", ErrNotAFunction},
		{"unbalanced", "function test_a() public { if (x) { }", ErrUnbalancedBraces},
		{"extra closing", "function test_a() public { } }", ErrUnbalancedBraces},
		{"two functions", "function a() public {}\nfunction b() public {}", ErrMultipleFunctions},
		{"trailing text", "function a() public {}\nThis test checks deposits.", ErrTrailingContent},
		{"whole contract", "contract VaultTest is Test { function a() public {} }", ErrContractDeclaration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckSingleFunction(tt.input)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("CheckSingleFunction() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CheckSingleFunction() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"no fence", "  function a() public {}\n", "function a() public {}"},
		{"solidity fence", "Sure:\n```solidity\nfunction a() public {}\n```\nDone.", "function a() public {}"},
		{"bare fence", "```\nfunction a() public {}\n```", "function a() public {}"},
		{"unclosed fence", "```solidity\nfunction a() public {}", "function a() public {}"},
		{"fence without newline", "```", "```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFences(tt.input); got != tt.want {
				t.Errorf("StripCodeFences() = %q, want %q", got, tt.want)
			}
		})
	}
}
