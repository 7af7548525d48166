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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTestFile(t *testing.T) {
	out, err := RenderTestFile("Vault", []string{
		"function test_a() public {\n    assertTrue(true);\n}",
		"        function test_b() public {\n            assertEq(1, 1);\n        }",
	})
	require.NoError(t, err)

	want := `// SPDX-License-Identifier: MIT
pragma solidity ^0.8.0;

import {Test} from "forge-std/Test.sol";
import "src/Vault.sol";

contract VaultTest is Test {

    function test_a() public {
        assertTrue(true);
    }

    function test_b() public {
        assertEq(1, 1);
    }
}
`
	assert.Equal(t, want, out)
}

func TestRenderTestFile_Empty(t *testing.T) {
	out, err := RenderTestFile("Token", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "contract TokenTest is Test {\n}\n")
	assert.Contains(t, out, `import "src/Token.sol";`)
}

func TestRenderTestFile_InvalidName(t *testing.T) {
	for _, name := range []string{"", "1Vault", "../Vault", "Va ult"} {
		_, err := RenderTestFile(name, nil)
		if !errors.Is(err, ErrInvalidContractName) {
			t.Errorf("RenderTestFile(%q) error = %v, want %v", name, err, ErrInvalidContractName)
		}
	}
}

func TestPaths(t *testing.T) {
	assert.Equal(t, filepath.Join("proj", "src", "Vault.sol"), ContractPath("proj", "Vault"))
	assert.Equal(t, filepath.Join("proj", "test", "Vault.t.sol"), TestPath("proj", "Vault"))
}
