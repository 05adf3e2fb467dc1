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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/askvec/services/query/datatypes"
	"github.com/AleutianAI/askvec/services/query/nlp"
)

// ErrorResponse is the JSON error envelope for all query endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the GET /v1/health response body.
type HealthResponse struct {
	Status     string `json:"status"`
	Repository string `json:"repository"`
}

// Handlers holds the HTTP handlers for the query service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates Handlers over the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// getOrCreateRequestID returns the inbound X-Request-ID or mints one.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

// HandleAsk answers POST /v1/ask.
//
// Description:
//
//	Binds the natural-language request, runs the pipeline, and returns the
//	answer with the advanced conversation context. Retrieval problems do
//	not produce error statuses — the response degrades to an apologetic
//	answer instead. Only malformed requests (400) and fatal NLP failures
//	(422) are errors.
func (h *Handlers) HandleAsk(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAsk")
	c.Header("X-Request-ID", requestID)

	var req datatypes.NaturalQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "question is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	resp, err := h.svc.Ask(c.Request.Context(), req)
	if err != nil {
		if nlp.IsProcessingError(err) {
			logger.Warn("query processing failed", "error", err)
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
				Error: err.Error(),
				Code:  "QUERY_PROCESSING_FAILED",
			})
			return
		}
		logger.Error("ask pipeline failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal error",
			Code:  "INTERNAL",
		})
		return
	}

	logger.Info("question answered",
		"intent", resp.QueryType,
		"hits", len(resp.Data),
		"duration_ms", resp.ExecutionTimeMs)
	c.JSON(http.StatusOK, resp)
}

// HandleHealth answers GET /v1/health.
//
// The service itself is always "ok" once it is serving; the repository
// field reports whether the vector store answers its readiness check.
func (h *Handlers) HandleHealth(c *gin.Context) {
	repoStatus := "unreachable"
	if h.svc.Healthy(c.Request.Context()) {
		repoStatus = "ok"
	}
	c.JSON(http.StatusOK, HealthResponse{
		Status:     "ok",
		Repository: repoStatus,
	})
}
