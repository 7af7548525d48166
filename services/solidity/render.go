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
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/prompts"
)

// ErrInvalidContractName is returned for names that are not Solidity
// identifiers. The name ends up in a file path and a contract declaration.
var ErrInvalidContractName = errors.New("invalid contract name")

const testFileTemplate = `// SPDX-License-Identifier: MIT
pragma solidity ^0.8.0;

import {Test} from "forge-std/Test.sol";
import "src/{{ .contract_name }}.sol";

contract {{ .contract_name }}Test is Test {
{{- range .tests }}

{{ . }}
{{- end }}
}
`

// RenderTestFile renders the Foundry test file for contractName with each
// test emitted, in order, as a member of "{contractName}Test".
//
// Description:
//
//	Each test is re-indented by four spaces. Tests are not validated here;
//	an empty slice renders an empty test contract.
//
// Inputs:
//
//	contractName - Subject contract, must be a Solidity identifier.
//	tests - Test function sources.
//
// Outputs:
//
//	string - File content ending in a newline.
//	error - ErrInvalidContractName or a template failure.
func RenderTestFile(contractName string, tests []string) (string, error) {
	if err := ValidateContractName(contractName); err != nil {
		return "", err
	}
	indented := make([]string, 0, len(tests))
	for _, t := range tests {
		indented = append(indented, indent(strings.TrimSpace(dedent(t)), "    "))
	}
	out, err := prompts.RenderTemplate(testFileTemplate, prompts.TemplateFormatGoTemplate, map[string]any{
		"contract_name": contractName,
		"tests":         indented,
	})
	if err != nil {
		return "", fmt.Errorf("render test file: %w", err)
	}
	return out, nil
}

// ValidateContractName checks that name is a plain Solidity identifier.
func ValidateContractName(name string) error {
	if name == "" || !isIdentStart(name[0]) {
		return fmt.Errorf("%w: %q", ErrInvalidContractName, name)
	}
	for i := 1; i < len(name); i++ {
		if !isIdentPart(name[i]) {
			return fmt.Errorf("%w: %q", ErrInvalidContractName, name)
		}
	}
	return nil
}

// ContractPath returns {project}/src/{name}.sol.
func ContractPath(project, name string) string {
	return filepath.Join(project, "src", name+".sol")
}

// TestDir returns {project}/test.
func TestDir(project string) string {
	return filepath.Join(project, "test")
}

// TestPath returns {project}/test/{name}.t.sol.
func TestPath(project, name string) string {
	return TestFilePath(TestDir(project), name)
}

// TestFilePath returns {dir}/{name}.t.sol.
func TestFilePath(dir, name string) string {
	return filepath.Join(dir, name+".t.sol")
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			lines[i] = prefix + l
		} else {
			lines[i] = ""
		}
	}
	return strings.Join(lines, "\n")
}

// dedent removes the common leading whitespace of non-blank lines.
func dedent(s string) string {
	lines := strings.Split(s, "\n")
	common := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if common < 0 || n < common {
			common = n
		}
	}
	if common <= 0 {
		return s
	}
	for i, l := range lines {
		if len(l) >= common {
			lines[i] = l[common:]
		} else {
			lines[i] = strings.TrimLeft(l, " \t")
		}
	}
	return strings.Join(lines, "\n")
}
