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
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/unitgen/pkg/logging"
	"github.com/AleutianAI/unitgen/services/forge"
	"github.com/AleutianAI/unitgen/services/solidity"
	"github.com/AleutianAI/unitgen/services/testgen"
)

// SessionRunner runs one generation session.
type SessionRunner interface {
	Run(ctx context.Context, req testgen.SessionRequest) (*testgen.SessionResult, error)
}

// LogSource returns recently logged records, oldest first.
type LogSource interface {
	Entries() []logging.LogEntry
}

// SessionBuilder returns a runner for the effective per-request config.
type SessionBuilder func(cfg testgen.Config) (SessionRunner, error)

// Handlers contains the HTTP handlers for the generation service.
//
// Thread Safety: Safe for concurrent use. Verifications of the same
// contract are serialized by the verifier.
type Handlers struct {
	build      SessionBuilder
	base       testgen.Config
	verifier   testgen.Verifier
	classifier *testgen.Classifier
	projectDir string
	version    string
	logs       LogSource
	logger     *slog.Logger
}

// HandlersConfig carries the dependencies of NewHandlers.
type HandlersConfig struct {
	Build      SessionBuilder
	Base       testgen.Config
	Verifier   testgen.Verifier
	ProjectDir string
	Version    string

	// Logs backs GET /v1/logs. Optional.
	Logs   LogSource
	Logger *slog.Logger
}

// NewHandlers creates handlers from cfg.
func NewHandlers(cfg HandlersConfig) (*Handlers, error) {
	if cfg.Build == nil {
		return nil, errors.New("api: session builder is required")
	}
	if cfg.Verifier == nil {
		return nil, errors.New("api: verifier is required")
	}
	if err := cfg.Base.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		build:      cfg.Build,
		base:       cfg.Base,
		verifier:   cfg.Verifier,
		classifier: testgen.ClassifierFromConfig(cfg.Base),
		projectDir: cfg.ProjectDir,
		version:    cfg.Version,
		logs:       cfg.Logs,
		logger:     logger,
	}, nil
}

// HandleGenerate handles POST /v1/generate.
//
// Description:
//
//	Runs a generation session over the contract's externally callable
//	functions and returns the accepted tests. Per-request retry_budget and
//	use_rag override the service defaults.
//
// Response:
//
//	200 OK: GenerateResponse
//	400 Bad Request: Invalid request or contract name
//	404 Not Found: Contract source not found in the project
//	504 Gateway Timeout: Request deadline hit mid-session
//	500 Internal Server Error: Session failure
func (h *Handlers) HandleGenerate(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With(slog.String("request_id", requestID), slog.String("handler", "HandleGenerate"))

	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return
	}

	sreq, runner, err := h.prepare(req)
	if err != nil {
		logger.Error("Failed to build session", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "SESSION_FAILED",
		})
		return
	}

	logger.Info("Generating tests", slog.String("contract", req.Contract))

	start := time.Now()
	res, err := runner.Run(c.Request.Context(), sreq)
	if err != nil {
		status, code := generateErrorStatus(err)
		logger.Error("Generation failed",
			slog.String("error", err.Error()),
			slog.Int("status", status),
			slog.Duration("elapsed", time.Since(start)))
		c.JSON(status, ErrorResponse{
			Error: err.Error(),
			Code:  code,
		})
		return
	}

	resp := newGenerateResponse(res)
	logger.Info("Generation complete",
		slog.String("session_id", resp.SessionID),
		slog.Int("accepted", resp.Accepted),
		slog.Int("rejected", resp.Rejected),
		slog.Int("skipped", resp.Skipped))
	c.JSON(http.StatusOK, resp)
}

// prepare applies the request overrides and builds the session.
func (h *Handlers) prepare(req GenerateRequest) (testgen.SessionRequest, SessionRunner, error) {
	cfg := h.base
	if req.RetryBudget != nil {
		cfg.RetryBudget = *req.RetryBudget
	}
	if req.UseRAG != nil {
		cfg.UseReferenceGuidance = *req.UseRAG
	}
	runner, err := h.build(cfg)
	if err != nil {
		return testgen.SessionRequest{}, nil, err
	}

	sreq := testgen.SessionRequest{
		ProjectDir:     h.projectDir,
		ContractName:   req.Contract,
		ContractSource: req.Source,
		Functions:      req.Functions,
	}
	if req.Write {
		sreq.OutputDir = solidity.TestDir(h.projectDir)
	}
	return sreq, runner, nil
}

// HandleVerify handles POST /v1/verify.
//
// Description:
//
//	Compiles a single test function against the contract and classifies
//	the output. A failing compile is a 200 with passed=false; malformed
//	candidates are rejected without running forge.
//
// Response:
//
//	200 OK: VerifyResponse
//	400 Bad Request: Invalid request or contract name
//	422 Unprocessable Entity: Test is not exactly one function
//	503 Service Unavailable: forge is not installed
//	504 Gateway Timeout: forge timed out
func (h *Handlers) HandleVerify(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With(slog.String("request_id", requestID), slog.String("handler", "HandleVerify"))

	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request body",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return
	}
	if err := solidity.ValidateContractName(req.Contract); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_CONTRACT",
		})
		return
	}

	candidate := solidity.StripCodeFences(req.Test)
	if err := solidity.CheckSingleFunction(candidate); err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: err.Error(),
			Code:  "MALFORMED_CANDIDATE",
		})
		return
	}

	raw, err := h.verifier.Verify(c.Request.Context(), req.Contract, candidate)
	if err != nil {
		status, code := verifyErrorStatus(err)
		logger.Error("Verification failed",
			slog.String("contract", req.Contract),
			slog.String("error", err.Error()))
		c.JSON(status, ErrorResponse{
			Error:   err.Error(),
			Code:    code,
			Details: raw,
		})
		return
	}

	outcome := h.classifier.Outcome(raw)
	logger.Info("Verification complete",
		slog.String("contract", req.Contract),
		slog.Bool("passed", outcome.Passed))
	c.JSON(http.StatusOK, VerifyResponse{
		Passed:    outcome.Passed,
		RawOutput: outcome.RawOutput,
	})
}

// HandleHealth handles GET /v1/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:          "healthy",
		Version:         h.version,
		ReferenceGuided: h.base.UseReferenceGuidance,
		RetryBudget:     h.base.RetryBudget,
	})
}

// HandleLogs handles GET /v1/logs.
//
// Description:
//
//	Returns the most recent log records kept in memory by the server,
//	oldest first. ?limit=N keeps only the last N.
//
// Response:
//
//	200 OK: LogsResponse
//	400 Bad Request: limit is not a positive integer
//	404 Not Found: the server keeps no recent logs
func (h *Handlers) HandleLogs(c *gin.Context) {
	if h.logs == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "recent logs are not kept by this server",
			Code:  "LOGS_DISABLED",
		})
		return
	}

	entries := h.logs.Entries()
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "limit must be a positive integer",
				Code:    "INVALID_REQUEST",
				Details: raw,
			})
			return
		}
		if len(entries) > limit {
			entries = entries[len(entries)-limit:]
		}
	}
	if entries == nil {
		entries = []logging.LogEntry{}
	}
	c.JSON(http.StatusOK, LogsResponse{Entries: entries})
}

// =============================================================================
// Helpers
// =============================================================================

func generateErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, solidity.ErrInvalidContractName):
		return http.StatusBadRequest, "INVALID_CONTRACT"
	case errors.Is(err, testgen.ErrContractUnreadable):
		return http.StatusNotFound, "CONTRACT_NOT_FOUND"
	case errors.Is(err, testgen.ErrInvalidConfig):
		return http.StatusBadRequest, "INVALID_CONFIG"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	case errors.Is(err, context.Canceled):
		return 499, "CANCELED"
	default:
		return http.StatusInternalServerError, "GENERATION_FAILED"
	}
}

func verifyErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, forge.ErrBinaryNotFound):
		return http.StatusServiceUnavailable, "VERIFIER_UNAVAILABLE"
	case errors.Is(err, forge.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "VERIFIER_TIMEOUT"
	case errors.Is(err, context.Canceled):
		return 499, "CANCELED"
	default:
		return http.StatusInternalServerError, "VERIFY_FAILED"
	}
}

// getOrCreateRequestID echoes X-Request-ID or mints one.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
