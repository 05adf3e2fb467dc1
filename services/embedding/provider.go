// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package embedding turns query text into vectors via an external embedding
// service, with optional BadgerDB-backed caching of computed vectors.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	embedRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "askvec",
		Subsystem: "embedding",
		Name:      "requests_total",
		Help:      "Embedding service calls by outcome: success, error, rate_limited",
	}, []string{"outcome"})

	embedLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "askvec",
		Subsystem: "embedding",
		Name:      "latency_seconds",
		Help:      "Latency of embedding service calls",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 3.0},
	})
)

// defaultEmbedTimeout bounds a single embedding call. Embedding sits on the
// query hot path; 3 seconds is ample for a local Ollama instance.
const defaultEmbedTimeout = 3 * time.Second

// Provider converts text into an embedding vector.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Provider interface {
	// GenerateEmbedding embeds text. The returned vector is unit-normalized.
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)

	// Model returns the provider's model identifier, used for cache keying.
	Model() string
}

// ollamaEmbedReq is the Ollama /api/embed request body.
type ollamaEmbedReq struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// ollamaEmbedResp is the Ollama /api/embed response body.
type ollamaEmbedResp struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// OllamaProvider embeds text through Ollama's /api/embed endpoint.
//
// Description:
//
//	Calls are rate limited (token bucket) so a burst of concurrent queries
//	cannot saturate a shared Ollama instance. Vectors are unit-normalized
//	before being returned, making downstream cosine scoring a plain dot
//	product.
//
// Thread Safety: Safe for concurrent use.
type OllamaProvider struct {
	url     string
	model   string
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewOllamaProvider creates an OllamaProvider from the environment.
//
// Description:
//
//	Reads EMBEDDING_SERVICE_URL and EMBEDDING_MODEL with local defaults.
//	An explicit model overrides the environment (used when the request
//	carries a model field).
//
// Inputs:
//
//	model - Embedding model name. Empty uses EMBEDDING_MODEL or the default.
//	logger - Logger instance. Nil uses slog.Default().
//
// Outputs:
//
//	*OllamaProvider - Ready provider. Never nil.
func NewOllamaProvider(model string, logger *slog.Logger) *OllamaProvider {
	if logger == nil {
		logger = slog.Default()
	}

	url := os.Getenv("EMBEDDING_SERVICE_URL")
	if url == "" {
		url = "http://localhost:11434/api/embed"
	}
	if model == "" {
		model = os.Getenv("EMBEDDING_MODEL")
	}
	if model == "" {
		model = "nomic-embed-text-v2-moe"
	}

	return &OllamaProvider{
		url:   url,
		model: model,
		client: &http.Client{
			Timeout: defaultEmbedTimeout,
		},
		// 20 embeds/second with a burst of 10 keeps a shared Ollama
		// responsive under concurrent conversations.
		limiter: rate.NewLimiter(rate.Limit(20), 10),
		logger:  logger,
	}
}

// Model returns the embedding model name.
func (p *OllamaProvider) Model() string {
	return p.model
}

// GenerateEmbedding embeds text via /api/embed.
//
// Outputs:
//
//	[]float32 - Unit-normalized embedding vector.
//	error - Non-nil on rate-limit cancellation, transport failure, non-200
//	        status, or an empty embedding in the response.
func (p *OllamaProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		embedRequestsTotal.WithLabelValues("rate_limited").Inc()
		return nil, fmt.Errorf("embedding rate limiter: %w", err)
	}

	body, err := json.Marshal(ollamaEmbedReq{Model: p.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.client.Do(req)
	embedLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		embedRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("embedding service call: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			p.logger.Warn("failed to close embed response body", slog.String("error", closeErr.Error()))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		embedRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, string(raw))
	}

	var parsed ollamaEmbedResp
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		embedRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(parsed.Embeddings) == 0 || len(parsed.Embeddings[0]) == 0 {
		embedRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("embedding service returned no vector for model %s", p.model)
	}

	embedRequestsTotal.WithLabelValues("success").Inc()
	return normalize(parsed.Embeddings[0]), nil
}

// normalize scales v to unit length. Zero vectors are returned unchanged.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
