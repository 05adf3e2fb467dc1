// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package query

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all query routes with the router group.
//
// Description:
//
//	Registers the /v1 query endpoints. The group should already carry any
//	required middleware (tracing, recovery).
//
// Endpoints:
//
//	POST /v1/ask    - Answer a natural-language question
//	GET  /v1/health - Service and repository health
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	rg.POST("/ask", handlers.HandleAsk)
	rg.GET("/health", handlers.HandleHealth)
}
