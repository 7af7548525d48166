// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

//go:build unix

package forge

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeForge mimics forge: it fails to "compile" when the scratch file
// contains FAIL_ME and echoes the file it was asked to test.
const fakeForge = `#!/bin/sh
file="test/$3.t.sol"
if [ ! -f "$file" ]; then
  echo "No tests match the provided pattern"
  exit 1
fi
if grep -q FAIL_ME "$file"; then
  echo "Compiler run failed:"
  echo "Error (7576): Undeclared identifier." >&2
  exit 1
fi
if grep -q SLEEP_ME "$file"; then
  exec sleep 5
fi
echo "Compiler run successful!"
echo "[PASS] matched $2 $3"
`

func setupProject(t *testing.T) (string, Config) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "Vault.sol"), []byte("contract Vault {}"), 0644))

	bin := filepath.Join(t.TempDir(), "forge")
	require.NoError(t, os.WriteFile(bin, []byte(fakeForge), 0755))

	cfg := DefaultConfig(dir)
	cfg.Binary = bin
	cfg.Timeout = 5 * time.Second
	return dir, cfg
}

func TestVerifier_PassingCandidate(t *testing.T) {
	dir, cfg := setupProject(t)
	v, err := NewVerifier(cfg, nil)
	require.NoError(t, err)

	out, err := v.Verify(context.Background(), "Vault", "function test_ok() public {}")
	require.NoError(t, err)

	assert.Contains(t, out, "Compiler run successful!")
	assert.Contains(t, out, "matched --match-contract Vault")
	_, statErr := os.Stat(filepath.Join(dir, "test", "Vault.t.sol"))
	assert.True(t, os.IsNotExist(statErr), "scratch file should be deleted")
}

func TestVerifier_FailingCandidateIsNotAnError(t *testing.T) {
	_, cfg := setupProject(t)
	v, err := NewVerifier(cfg, nil)
	require.NoError(t, err)

	out, err := v.Verify(context.Background(), "Vault", "function test_bad() public { FAIL_ME; }")
	require.NoError(t, err)

	assert.Contains(t, out, "Compiler run failed:")
	assert.Contains(t, out, "Undeclared identifier", "stderr should be captured")
}

func TestVerifier_StdoutOnly(t *testing.T) {
	_, cfg := setupProject(t)
	cfg.CaptureStderr = false
	v, err := NewVerifier(cfg, nil)
	require.NoError(t, err)

	out, err := v.Verify(context.Background(), "Vault", "function test_bad() public { FAIL_ME; }")
	require.NoError(t, err)
	assert.NotContains(t, out, "Undeclared identifier")
}

func TestVerifier_RestoresExistingTestFile(t *testing.T) {
	dir, cfg := setupProject(t)
	existing := filepath.Join(dir, "test", "Vault.t.sol")
	require.NoError(t, os.MkdirAll(filepath.Dir(existing), 0755))
	require.NoError(t, os.WriteFile(existing, []byte("// hand written"), 0644))

	v, err := NewVerifier(cfg, nil)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), "Vault", "function test_ok() public {}")
	require.NoError(t, err)

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "// hand written", string(data))
}

func TestVerifier_Timeout(t *testing.T) {
	dir, cfg := setupProject(t)
	cfg.Timeout = 200 * time.Millisecond
	v, err := NewVerifier(cfg, nil)
	require.NoError(t, err)

	start := time.Now()
	_, err = v.Verify(context.Background(), "Vault", "function test_slow() public { SLEEP_ME; }")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 4*time.Second)

	_, statErr := os.Stat(filepath.Join(dir, "test", "Vault.t.sol"))
	assert.True(t, os.IsNotExist(statErr), "scratch file should be deleted after timeout")
}

func TestVerifier_BinaryNotFound(t *testing.T) {
	_, cfg := setupProject(t)
	cfg.Binary = "unitgen-no-such-forge-binary"
	v, err := NewVerifier(cfg, nil)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), "Vault", "function test_ok() public {}")
	assert.ErrorIs(t, err, ErrBinaryNotFound)
}

func TestVerifier_InvalidContractName(t *testing.T) {
	_, cfg := setupProject(t)
	v, err := NewVerifier(cfg, nil)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), "../etc/passwd", "function test_ok() public {}")
	assert.Error(t, err)
}

func TestVerifier_SerializesSameContract(t *testing.T) {
	_, cfg := setupProject(t)
	v, err := NewVerifier(cfg, nil)
	require.NoError(t, err)

	release, err := v.locks.Acquire(context.Background(), "Vault")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = v.Verify(ctx, "Vault", "function test_ok() public {}")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	_, err = v.Verify(context.Background(), "Vault", "function test_ok() public {}")
	assert.NoError(t, err)
}

func TestNewVerifier_RequiresProjectDir(t *testing.T) {
	_, err := NewVerifier(Config{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
