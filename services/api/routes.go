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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the generation endpoints under rg.
//
// Routes:
//
//	POST /generate        - Generate a test suite for a contract
//	GET  /generate/stream - Same over a websocket, with progress events
//	POST /verify          - Compile one candidate test against a contract
//	GET  /health          - Health check
//	GET  /logs            - Recent server log records
//
// Example:
//
//	v1 := router.Group("/v1")
//	api.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	rg.POST("/generate", handlers.HandleGenerate)
	rg.GET("/generate/stream", handlers.HandleGenerateStream)
	rg.POST("/verify", handlers.HandleVerify)
	rg.GET("/health", handlers.HandleHealth)
	rg.GET("/logs", handlers.HandleLogs)
}
