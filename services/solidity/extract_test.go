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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vaultSource = `// SPDX-License-Identifier: MIT
pragma solidity ^0.8.0;

interface IERC20 {
    function transfer(address to, uint256 amount) external returns (bool);
}

library Math {
    function max(uint256 a, uint256 b) internal pure returns (uint256) {
        return a >= b ? a : b;
    }
}

contract Vault {
    mapping(address => uint256) public balances;
    function(uint256) external callback;

    constructor() {
        balances[msg.sender] = 0;
    }

    /// @notice deposit "}" braces in strings must not end the body
    function deposit() public payable {
        string memory s = "}{";
        balances[msg.sender] += msg.value; // }
    }

    function withdraw(uint256 amount)
        external
        returns (bool)
    {
        require(balances[msg.sender] >= amount, "insufficient {balance}");
        balances[msg.sender] -= amount;
        payable(msg.sender).transfer(amount);
        return true;
    }

    function _audit() internal view returns (uint256) {
        return address(this).balance;
    }

    function secret() private {}

    receive() external payable {
        /* } */
        IERC20(address(0)).transfer(msg.sender, 0);
    }

    fallback() external {}
}
`

func TestExtractFunctions_Vault(t *testing.T) {
	fns := ExtractFunctions(vaultSource)

	var names []string
	for _, fn := range fns {
		names = append(names, fn.Contract+"."+fn.Name)
	}
	assert.Equal(t, []string{
		"Math.max",
		"Vault.constructor",
		"Vault.deposit",
		"Vault.withdraw",
		"Vault._audit",
		"Vault.secret",
		"Vault.receive",
		"Vault.fallback",
	}, names)
}

func TestExtractFunctions_SourceSpan(t *testing.T) {
	fns := ExtractFunctions(vaultSource)
	byName := map[string]Function{}
	for _, fn := range fns {
		byName[fn.Name] = fn
	}

	deposit := byName["deposit"]
	assert.True(t, strings.HasPrefix(deposit.Source, "    function deposit() public payable {"))
	assert.True(t, strings.HasSuffix(deposit.Source, "// }\n    }"))
	assert.Equal(t, KindFunction, deposit.Kind)
	assert.Equal(t, VisibilityPublic, deposit.Visibility)

	withdraw := byName["withdraw"]
	assert.Equal(t, VisibilityExternal, withdraw.Visibility)
	assert.Contains(t, withdraw.Source, `"insufficient {balance}"`)
	assert.True(t, strings.HasSuffix(withdraw.Source, "return true;\n    }"))
	assert.Equal(t, withdraw.StartLine+8, withdraw.EndLine)

	receive := byName["receive"]
	assert.Equal(t, KindReceive, receive.Kind)
	assert.Contains(t, receive.Source, "transfer(msg.sender, 0)")
}

func TestPublicFunctions(t *testing.T) {
	var names []string
	for _, fn := range PublicFunctions(vaultSource) {
		names = append(names, fn.Name)
	}
	assert.Equal(t, []string{"deposit", "withdraw", "receive", "fallback"}, names)
}

func TestIsExternallyCallable(t *testing.T) {
	tests := []struct {
		name string
		fn   Function
		want bool
	}{
		{"public", Function{Kind: KindFunction, Visibility: VisibilityPublic, Contract: "C"}, true},
		{"external", Function{Kind: KindFunction, Visibility: VisibilityExternal, Contract: "C"}, true},
		{"unspecified", Function{Kind: KindFunction, Contract: "C"}, true},
		{"internal", Function{Kind: KindFunction, Visibility: VisibilityInternal, Contract: "C"}, false},
		{"private", Function{Kind: KindFunction, Visibility: VisibilityPrivate, Contract: "C"}, false},
		{"constructor", Function{Kind: KindConstructor, Visibility: VisibilityPublic, Contract: "C"}, false},
		{"receive", Function{Kind: KindReceive, Contract: "C"}, true},
		{"free function", Function{Kind: KindFunction}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fn.IsExternallyCallable())
		})
	}
}

func TestExtractFunctions_FreeFunctionAndCalls(t *testing.T) {
	src := `function helper(uint x) pure returns (uint) { return x; }
contract C {
    function f() public { this.receive(); }
}`
	fns := ExtractFunctions(src)
	require.Len(t, fns, 2)
	assert.Equal(t, "helper", fns[0].Name)
	assert.Equal(t, "", fns[0].Contract)
	assert.Equal(t, "f", fns[1].Name)
	assert.Equal(t, "C", fns[1].Contract)
}

func TestExtractFunctions_InlineDeclarationKeepsOffset(t *testing.T) {
	src := "contract C { function f() public {} }"
	fns := ExtractFunctions(src)
	require.Len(t, fns, 1)
	assert.Equal(t, "function f() public {}", fns[0].Source)
}

func TestExtractFunctions_Unterminated(t *testing.T) {
	fns := ExtractFunctions("contract C {\n    function f() public {\n        x = 1;\n")
	assert.Empty(t, fns)
}

func TestContractNames(t *testing.T) {
	assert.Equal(t, []string{"IERC20", "Math", "Vault"}, ContractNames(vaultSource))
}

func TestTokenize(t *testing.T) {
	tokens := Tokenize("uint x = 0x1F; // c\n/* b\n*/ s = 'a\\'b';")

	var texts []string
	for _, tok := range tokens {
		texts = append(texts, tok.Text)
	}
	assert.Equal(t, []string{"uint", "x", "=", "0x1F", ";", "s", "=", `'a\'b'`, ";"}, texts)
	assert.Equal(t, TokenNumber, tokens[3].Kind)
	assert.Equal(t, TokenString, tokens[7].Kind)
	assert.Equal(t, 3, tokens[5].Line)
}

func TestTokenize_UnterminatedComment(t *testing.T) {
	tokens := Tokenize("a /* never closed")
	require.Len(t, tokens, 1)
	assert.Equal(t, "a", tokens[0].Text)
}
