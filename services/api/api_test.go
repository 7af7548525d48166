// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/unitgen/pkg/logging"
	"github.com/AleutianAI/unitgen/services/forge"
	"github.com/AleutianAI/unitgen/services/testgen"
)

// =============================================================================
// Test Helpers
// =============================================================================

type fakeRunner struct {
	result *testgen.SessionResult
	err    error
	got    testgen.SessionRequest
}

func (f *fakeRunner) Run(ctx context.Context, req testgen.SessionRequest) (*testgen.SessionResult, error) {
	f.got = req
	if req.Observer != nil && f.result != nil {
		for _, r := range f.result.Functions {
			req.Observer.FunctionStarted(r.Name)
			req.Observer.FunctionFinished(r)
		}
	}
	return f.result, f.err
}

type fakeVerifier struct {
	mu     sync.Mutex
	output string
	err    error
	calls  int
}

func (f *fakeVerifier) Verify(ctx context.Context, contract, candidate string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.output, f.err
}

type harness struct {
	router   http.Handler
	runner   *fakeRunner
	verifier *fakeVerifier

	mu    sync.Mutex
	built []testgen.Config
}

func (h *harness) builtConfigs() []testgen.Config {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]testgen.Config(nil), h.built...)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		runner: &fakeRunner{result: &testgen.SessionResult{
			SessionID: "abcd1234",
			Contract:  "Vault",
			Functions: []testgen.FunctionReport{{Name: "deposit", Lineages: 2, Accepted: 1, Rejected: 1}},
			Tests:     []string{"function test_deposit() public {}"},
			Duration:  1500 * time.Millisecond,
		}},
		verifier: &fakeVerifier{output: "Compiler run successful!"},
	}
	handlers, err := NewHandlers(HandlersConfig{
		Build: func(cfg testgen.Config) (SessionRunner, error) {
			h.mu.Lock()
			h.built = append(h.built, cfg)
			h.mu.Unlock()
			return h.runner, nil
		},
		Base:       testgen.DefaultConfig(),
		Verifier:   h.verifier,
		ProjectDir: "/work/project",
		Version:    "test",
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	h.router = NewRouter(handlers, RouterConfig{
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics\n"))
		}),
	})
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func intPtr(n int) *int    { return &n }
func boolPtr(b bool) *bool { return &b }

// =============================================================================
// Constructor Tests
// =============================================================================

func TestNewHandlers_RequiresDependencies(t *testing.T) {
	_, err := NewHandlers(HandlersConfig{Base: testgen.DefaultConfig(), Verifier: &fakeVerifier{}})
	assert.Error(t, err)

	_, err = NewHandlers(HandlersConfig{
		Base:  testgen.DefaultConfig(),
		Build: func(testgen.Config) (SessionRunner, error) { return nil, nil },
	})
	assert.Error(t, err)

	bad := testgen.DefaultConfig()
	bad.RetryBudget = -1
	_, err = NewHandlers(HandlersConfig{
		Base:     bad,
		Verifier: &fakeVerifier{},
		Build:    func(testgen.Config) (SessionRunner, error) { return nil, nil },
	})
	assert.ErrorIs(t, err, testgen.ErrInvalidConfig)
}

// =============================================================================
// Generate Tests
// =============================================================================

func TestHandleGenerate_Success(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/v1/generate", GenerateRequest{
		Contract:  "Vault",
		Functions: []string{"deposit"},
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "abcd1234", resp.SessionID)
	assert.Equal(t, 1, resp.Accepted)
	assert.Equal(t, 1, resp.Rejected)
	assert.Equal(t, 0, resp.Skipped)
	assert.Equal(t, int64(1500), resp.DurationMs)
	assert.Len(t, resp.Tests, 1)

	assert.Equal(t, "Vault", h.runner.got.ContractName)
	assert.Equal(t, "/work/project", h.runner.got.ProjectDir)
	assert.Equal(t, []string{"deposit"}, h.runner.got.Functions)
	assert.Empty(t, h.runner.got.OutputDir)

	require.Len(t, h.builtConfigs(), 1)
	assert.Equal(t, testgen.DefaultConfig().RetryBudget, h.builtConfigs()[0].RetryBudget)
	assert.True(t, h.builtConfigs()[0].UseReferenceGuidance)
}

func TestHandleGenerate_Overrides(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/v1/generate", GenerateRequest{
		Contract:    "Vault",
		RetryBudget: intPtr(0),
		UseRAG:      boolPtr(false),
		Write:       true,
	})

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, h.builtConfigs(), 1)
	assert.Equal(t, 0, h.builtConfigs()[0].RetryBudget)
	assert.False(t, h.builtConfigs()[0].UseReferenceGuidance)
	assert.Equal(t, filepath.Join("/work/project", "test"), h.runner.got.OutputDir)
}

func TestHandleGenerate_EmptyResultEncodesArrays(t *testing.T) {
	h := newHarness(t)
	h.runner.result = &testgen.SessionResult{SessionID: "x", Contract: "Empty"}

	w := h.do(t, http.MethodPost, "/v1/generate", GenerateRequest{Contract: "Empty"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"tests":[]`)
	assert.Contains(t, w.Body.String(), `"functions":[]`)
}

func TestHandleGenerate_InvalidBody(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"missing contract", map[string]any{"functions": []string{"f"}}},
		{"negative budget", map[string]any{"contract": "Vault", "retry_budget": -1}},
		{"budget too large", map[string]any{"contract": "Vault", "retry_budget": 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			w := h.do(t, http.MethodPost, "/v1/generate", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "INVALID_REQUEST", decodeError(t, w).Code)
			assert.Empty(t, h.builtConfigs())
		})
	}
}

func TestHandleGenerate_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unreadable", fmt.Errorf("%w: no such file", testgen.ErrContractUnreadable), http.StatusNotFound, "CONTRACT_NOT_FOUND"},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "TIMEOUT"},
		{"other", fmt.Errorf("disk full"), http.StatusInternalServerError, "GENERATION_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.runner.err = tt.err

			w := h.do(t, http.MethodPost, "/v1/generate", GenerateRequest{Contract: "Vault"})

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, w).Code)
		})
	}
}

// =============================================================================
// Verify Tests
// =============================================================================

func TestHandleVerify_Passed(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/v1/verify", VerifyRequest{
		Contract: "Vault",
		Test:     "```solidity\nfunction test_ok() public {\n    assertTrue(true);\n}\n```",
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp VerifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Passed)
	assert.Equal(t, "Compiler run successful!", resp.RawOutput)
	assert.Equal(t, 1, h.verifier.calls)
}

func TestHandleVerify_CompileFailureIsNotAnError(t *testing.T) {
	h := newHarness(t)
	h.verifier.output = "Error (7576): Undeclared identifier."

	w := h.do(t, http.MethodPost, "/v1/verify", VerifyRequest{
		Contract: "Vault",
		Test:     "function test_bad() public { x = 1; }",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp VerifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Passed)
	assert.Contains(t, resp.RawOutput, "Undeclared identifier")
}

func TestHandleVerify_Malformed(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/v1/verify", VerifyRequest{
		Contract: "Vault",
		Test:     "function a() public {}\nfunction b() public {}",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "MALFORMED_CANDIDATE", decodeError(t, w).Code)
	assert.Zero(t, h.verifier.calls)
}

func TestHandleVerify_InvalidContractName(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/v1/verify", VerifyRequest{
		Contract: "../etc/passwd",
		Test:     "function test_ok() public {}",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_CONTRACT", decodeError(t, w).Code)
	assert.Zero(t, h.verifier.calls)
}

func TestHandleVerify_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"no forge", fmt.Errorf("%w: forge", forge.ErrBinaryNotFound), http.StatusServiceUnavailable, "VERIFIER_UNAVAILABLE"},
		{"timeout", forge.ErrTimeout, http.StatusGatewayTimeout, "VERIFIER_TIMEOUT"},
		{"exec", forge.ErrExecFailed, http.StatusInternalServerError, "VERIFY_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.verifier.err = tt.err

			w := h.do(t, http.MethodPost, "/v1/verify", VerifyRequest{
				Contract: "Vault",
				Test:     "function test_ok() public {}",
			})

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, w).Code)
		})
	}
}

func TestHandleVerify_MissingFields(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/v1/verify", map[string]string{"contract": "Vault"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeError(t, w).Code)
}

// =============================================================================
// Misc Route Tests
// =============================================================================

func TestHandleHealth(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/v1/health", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "test", resp.Version)
	assert.Equal(t, 2, resp.RetryBudget)
}

func TestRequestIDEchoed(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/generate", bytes.NewReader([]byte(`{"contract":"Vault"}`)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))

	w = h.do(t, http.MethodGet, "/v1/health", nil)
	assert.Empty(t, w.Header().Get("X-Request-ID"))
}

func TestMetricsRoute(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "# metrics")
}

func TestServe_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, http.NotFoundHandler(), 0, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

// =============================================================================
// Logs Tests
// =============================================================================

func TestHandleLogs_Disabled(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/v1/logs", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "LOGS_DISABLED", decodeError(t, w).Code)
}

func TestHandleLogs_ReturnsRecentRecords(t *testing.T) {
	recent := logging.NewBufferedExporter(10)
	logger := logging.New(logging.Config{Quiet: true, Service: "unitgen", Exporter: recent})
	handlers, err := NewHandlers(HandlersConfig{
		Build: func(cfg testgen.Config) (SessionRunner, error) {
			return &fakeRunner{result: &testgen.SessionResult{Contract: "Vault"}}, nil
		},
		Base:     testgen.DefaultConfig(),
		Verifier: &fakeVerifier{output: "Compiler run successful!"},
		Logs:     recent,
		Logger:   logger.Slog(),
	})
	require.NoError(t, err)
	router := NewRouter(handlers, RouterConfig{})

	body, err := json.Marshal(GenerateRequest{Contract: "Vault"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/generate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(httptest.NewRecorder(), req)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/logs?limit=1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Entries []struct {
			Level   string         `json:"level"`
			Message string         `json:"message"`
			Attrs   map[string]any `json:"attrs"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "INFO", resp.Entries[0].Level)
	assert.Equal(t, "Generation complete", resp.Entries[0].Message)
	assert.Equal(t, "HandleGenerate", resp.Entries[0].Attrs["handler"])
}

func TestHandleLogs_InvalidLimit(t *testing.T) {
	handlers, err := NewHandlers(HandlersConfig{
		Build: func(cfg testgen.Config) (SessionRunner, error) {
			return &fakeRunner{}, nil
		},
		Base:     testgen.DefaultConfig(),
		Verifier: &fakeVerifier{},
		Logs:     logging.NewBufferedExporter(0),
	})
	require.NoError(t, err)
	router := NewRouter(handlers, RouterConfig{})

	for _, limit := range []string{"0", "-3", "ten"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/logs?limit="+limit, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, limit)
	}
}
