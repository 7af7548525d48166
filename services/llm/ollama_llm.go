// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("unitgen.llm")

// DefaultOllamaURL is used when neither the config nor OLLAMA_BASE_URL set one.
const DefaultOllamaURL = "http://localhost:11434"

type OllamaClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
	logger     *slog.Logger
}

// Ollama API request structure
type ollamaGenerateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
}

// NewOllamaClient creates a client for cfg.Model.
func NewOllamaClient(cfg ModelConfig, logger *slog.Logger) (*OllamaClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama model is required")
	}
	baseURL := OllamaBaseURL(cfg.BaseURL)
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	logger.Debug("Initializing Ollama client", "base_url", baseURL, "model", cfg.Model)
	return &OllamaClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		model:      cfg.Model,
		logger:     logger,
	}, nil
}

// OllamaBaseURL resolves the Ollama endpoint: explicit value, then
// OLLAMA_BASE_URL, then DefaultOllamaURL.
func OllamaBaseURL(explicit string) string {
	baseURL := explicit
	if baseURL == "" {
		baseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	return strings.TrimSuffix(baseURL, "/")
}

// Model returns the model name.
func (o *OllamaClient) Model() string { return o.model }

// Generate implements the LLMClient interface
func (o *OllamaClient) Generate(ctx context.Context, prompt string,
	params GenerationParams) (string, error) {

	ctx, span := tracer.Start(ctx, "OllamaClient.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.model))

	fail := func(err error) (string, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	payload := ollamaGenerateRequest{
		Model:   o.model,
		Prompt:  prompt,
		Stream:  false,
		Options: ollamaOptions(params),
	}
	reqBodyBytes, err := json.Marshal(payload)
	if err != nil {
		return fail(fmt.Errorf("%w: marshal request: %v", ErrRequestFailed, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(reqBodyBytes))
	if err != nil {
		return fail(fmt.Errorf("%w: create request: %v", ErrRequestFailed, err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		o.logger.Error("Ollama API call failed", "error", err)
		if ctx.Err() != nil {
			return fail(ctx.Err())
		}
		return fail(fmt.Errorf("%w: %v", ErrUnavailable, err))
	}
	defer resp.Body.Close()

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fail(fmt.Errorf("%w: read response: %v", ErrUnavailable, err))
	}

	if resp.StatusCode != http.StatusOK {
		return fail(o.statusError(resp.StatusCode, respBodyBytes))
	}

	var ollamaResp ollamaGenerateResponse
	if err := json.Unmarshal(respBodyBytes, &ollamaResp); err != nil {
		o.logger.Error("Failed to parse JSON response from Ollama", "error", err)
		return fail(fmt.Errorf("%w: parse response: %v", ErrRequestFailed, err))
	}
	if strings.TrimSpace(ollamaResp.Response) == "" {
		return fail(ErrEmptyResponse)
	}

	span.SetAttributes(attribute.Int("llm.response_chars", len(ollamaResp.Response)))
	return ollamaResp.Response, nil
}

func (o *OllamaClient) statusError(status int, body []byte) error {
	if status == http.StatusNotFound {
		var errResp struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &errResp); err == nil &&
			strings.Contains(errResp.Error, "model") && strings.Contains(errResp.Error, "not found") {
			o.logger.Warn("Ollama model not found", "model", o.model)
			return fmt.Errorf("%w: model '%s' not found. Please run: 'ollama pull %s'", ErrUnavailable, o.model, o.model)
		}
	}
	o.logger.Error("Ollama returned an error", "status_code", status, "response", string(body))
	if status >= 500 || status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: ollama status %d: %s", ErrUnavailable, status, string(body))
	}
	return fmt.Errorf("%w: ollama status %d: %s", ErrRequestFailed, status, string(body))
}

func ollamaOptions(params GenerationParams) map[string]interface{} {
	options := map[string]interface{}{
		"temperature": float32(0.2),
		"top_k":       20,
		"top_p":       float32(0.9),
		"num_predict": 4096,
	}
	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	}
	if params.TopK != nil {
		options["top_k"] = *params.TopK
	}
	if params.TopP != nil {
		options["top_p"] = *params.TopP
	}
	if params.MaxTokens != nil {
		options["num_predict"] = *params.MaxTokens
	}
	if len(params.Stop) > 0 {
		options["stop"] = params.Stop
	}
	return options
}
