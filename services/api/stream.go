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
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/unitgen/services/testgen"
)

// Stream event types sent by HandleGenerateStream.
const (
	EventFunctionStarted  = "function_started"
	EventFunctionFinished = "function_finished"
	EventResult           = "result"
	EventError            = "error"
)

// StreamEvent is one websocket message.
type StreamEvent struct {
	Type     string                  `json:"type"`
	Function string                  `json:"function,omitempty"`
	Report   *testgen.FunctionReport `json:"report,omitempty"`
	Result   *GenerateResponse       `json:"result,omitempty"`
	Error    *ErrorResponse          `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1 << 20,
	WriteBufferSize: 64 << 10,
}

// wsObserver forwards session progress to the socket.
type wsObserver struct {
	mu     sync.Mutex
	ws     *websocket.Conn
	logger *slog.Logger
}

func (o *wsObserver) send(ev StreamEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.ws.WriteJSON(ev); err != nil {
		o.logger.Warn("Failed to write WebSocket JSON", slog.String("error", err.Error()))
		return err
	}
	return nil
}

func (o *wsObserver) FunctionStarted(name string) {
	_ = o.send(StreamEvent{Type: EventFunctionStarted, Function: name})
}

func (o *wsObserver) FunctionFinished(r testgen.FunctionReport) {
	_ = o.send(StreamEvent{Type: EventFunctionFinished, Function: r.Name, Report: &r})
}

// HandleGenerateStream handles GET /v1/generate/stream.
//
// Description:
//
//	Upgrades to a websocket, reads one GenerateRequest and streams
//	function_started / function_finished events while the session runs,
//	then a final result or error event. The session is cancelled when the
//	client disconnects.
func (h *Handlers) HandleGenerateStream(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With(slog.String("request_id", requestID), slog.String("handler", "HandleGenerateStream"))

	ws, err := upgrader.Upgrade(c.Writer, c.Request, http.Header{"X-Request-ID": {requestID}})
	if err != nil {
		logger.Error("failed to upgrade the websocket", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	obs := &wsObserver{ws: ws, logger: logger}

	var req GenerateRequest
	_, data, err := ws.ReadMessage()
	if err == nil {
		err = json.Unmarshal(data, &req)
	}
	if err == nil {
		err = validateGenerateRequest(&req)
	}
	if err != nil {
		_ = obs.send(StreamEvent{Type: EventError, Error: &ErrorResponse{
			Error:   "Invalid request body",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		}})
		return
	}

	sreq, runner, err := h.prepare(req)
	if err != nil {
		_ = obs.send(StreamEvent{Type: EventError, Error: &ErrorResponse{Error: err.Error(), Code: "SESSION_FAILED"}})
		return
	}
	sreq.Observer = obs

	// Hijacked connections do not cancel the request context; a failed read
	// means the client went away.
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	res, err := runner.Run(ctx, sreq)
	if err != nil {
		_, code := generateErrorStatus(err)
		logger.Error("Generation failed", slog.String("error", err.Error()))
		_ = obs.send(StreamEvent{Type: EventError, Error: &ErrorResponse{Error: err.Error(), Code: code}})
		return
	}
	resp := newGenerateResponse(res)
	_ = obs.send(StreamEvent{Type: EventResult, Result: &resp})
}

func validateGenerateRequest(req *GenerateRequest) error {
	return binding.Validator.ValidateStruct(req)
}
