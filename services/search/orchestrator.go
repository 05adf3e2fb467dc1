// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package search runs the retrieval stage of the query pipeline: embedding
// the resolved question and executing the repository search, with graceful
// degradation when either dependency is down.
package search

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/askvec/services/embedding"
	"github.com/AleutianAI/askvec/services/query/datatypes"
	"github.com/AleutianAI/askvec/services/vectorstore"
)

var (
	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "askvec",
		Subsystem: "search",
		Name:      "requests_total",
		Help:      "Retrieval stage executions by outcome (ok, degraded, rejected).",
	}, []string{"outcome"})

	searchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "askvec",
		Subsystem: "search",
		Name:      "duration_seconds",
		Help:      "Wall time of the retrieval stage, embedding included.",
		Buckets:   prometheus.DefBuckets,
	})

	countCapHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "askvec",
		Subsystem: "search",
		Name:      "count_cap_total",
		Help:      "Count queries that filled the scan cap and were hedged.",
	})
)

// defaultSearchTimeout bounds a single repository search call.
const defaultSearchTimeout = 10 * time.Second

// Orchestrator executes resolved search queries against the vector store.
//
// Description:
//
//	Embeds the query text (unless a vector is already attached), then runs
//	the repository search. Infrastructure failures — repository down,
//	collection missing, embedding service unreachable — DEGRADE: the
//	orchestrator logs, counts, and returns (nil, nil) so the caller can
//	still answer conversationally. Only caller mistakes (invalid query
//	shape) surface as errors.
//
// Thread Safety: Safe for concurrent use.
type Orchestrator struct {
	repo          vectorstore.Repository
	embedder      embedding.Provider
	logger        *slog.Logger
	tracer        oteltrace.Tracer
	searchTimeout time.Duration
}

// NewOrchestrator creates an Orchestrator.
//
// Inputs:
//
//	repo     - Vector repository. Must be non-nil.
//	embedder - Embedding provider. Must be non-nil.
//	logger   - Structured logger; nil falls back to slog.Default().
//
// The repository call runs under a bounded timeout, ASKVEC_SEARCH_TIMEOUT
// (Go duration string) or 10s.
func NewOrchestrator(repo vectorstore.Repository, embedder embedding.Provider, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := defaultSearchTimeout
	if raw := os.Getenv("ASKVEC_SEARCH_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			timeout = d
		} else {
			logger.Warn("invalid ASKVEC_SEARCH_TIMEOUT, using default",
				"value", raw,
				"default", defaultSearchTimeout)
		}
	}
	return &Orchestrator{
		repo:          repo,
		embedder:      embedder,
		logger:        logger,
		tracer:        otel.Tracer("askvec.search"),
		searchTimeout: timeout,
	}
}

// Execute runs one resolved search query.
//
// Inputs:
//
//	ctx   - Request context; cancellation aborts both stages.
//	query - The resolved query. Collection and Limit must be set; Text is
//	    embedded when Vector is empty.
//
// Outputs:
//
//	*datatypes.SearchResult - Hits, or nil when retrieval degraded.
//	error                   - *vectorstore.StoreError with code VALIDATION
//	    for malformed queries; nil otherwise. Infrastructure failures are
//	    swallowed after logging.
func (o *Orchestrator) Execute(ctx context.Context, query datatypes.SearchQuery) (*datatypes.SearchResult, error) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "askvec.search.execute")
	defer span.End()
	defer func() { searchDuration.Observe(time.Since(start).Seconds()) }()

	span.SetAttributes(
		attribute.String("search.collection", query.Collection),
		attribute.Int("search.limit", query.Limit),
	)

	if query.Collection == "" {
		searchesTotal.WithLabelValues("rejected").Inc()
		return nil, vectorstore.NewValidationError("collection is required")
	}
	if query.Limit <= 0 {
		searchesTotal.WithLabelValues("rejected").Inc()
		return nil, vectorstore.NewValidationError("limit must be positive")
	}
	if len(query.Vector) == 0 && query.Text == "" {
		searchesTotal.WithLabelValues("rejected").Inc()
		return nil, vectorstore.NewValidationError("query needs text or a vector")
	}

	if len(query.Vector) == 0 {
		vector, err := o.embedder.GenerateEmbedding(ctx, query.Text)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			o.degrade(span, "embedding failed", query.Collection, err)
			return nil, nil
		}
		query.Vector = vector
	}

	// A slow repository must not stall the conversation: the call is bounded
	// and a blown deadline degrades like any other repository failure.
	searchCtx, cancel := context.WithTimeout(ctx, o.searchTimeout)
	defer cancel()

	result, err := o.repo.Search(searchCtx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if vectorstore.IsValidation(err) {
			searchesTotal.WithLabelValues("rejected").Inc()
			return nil, err
		}
		o.degrade(span, "repository search failed", query.Collection, err)
		return nil, nil
	}

	if query.Limit >= datatypes.CountScanLimit && len(result.Hits) >= datatypes.CountScanLimit {
		countCapHits.Inc()
	}

	searchesTotal.WithLabelValues("ok").Inc()
	span.SetAttributes(attribute.Int("search.hits", len(result.Hits)))
	return result, nil
}

// degrade records a swallowed infrastructure failure.
func (o *Orchestrator) degrade(span oteltrace.Span, msg, collection string, err error) {
	o.logger.Warn("retrieval degraded",
		"reason", msg,
		"collection", collection,
		"error", err)
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	searchesTotal.WithLabelValues("degraded").Inc()
}

// Healthy reports whether the repository answers its readiness check.
func (o *Orchestrator) Healthy(ctx context.Context) bool {
	return o.repo.TestConnection(ctx)
}
