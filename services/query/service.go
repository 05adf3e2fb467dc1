// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package query is the conversational query engine: it wires the NLP stage,
// the retrieval stage, and answer synthesis into the single pipeline behind
// POST /v1/ask.
package query

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/askvec/services/query/datatypes"
	"github.com/AleutianAI/askvec/services/query/nlp"
	"github.com/AleutianAI/askvec/services/query/synthesis"
	"github.com/AleutianAI/askvec/services/search"
	"github.com/AleutianAI/askvec/services/vectorstore"
)

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "askvec",
		Subsystem: "query",
		Name:      "queries_total",
		Help:      "Natural-language queries by intent and outcome.",
	}, []string{"intent", "outcome"})

	queryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "askvec",
		Subsystem: "query",
		Name:      "duration_seconds",
		Help:      "End-to-end query pipeline latency.",
		Buckets:   prometheus.DefBuckets,
	})
)

// Service runs the full ask pipeline.
//
// Description:
//
//	NLP → retrieval → synthesis. The service holds no per-conversation
//	state: context travels in the request and comes back in the response,
//	so any replica can serve any turn.
//
// Thread Safety: Safe for concurrent use.
type Service struct {
	processor    *nlp.Processor
	orchestrator *search.Orchestrator
	synthesizer  *synthesis.Synthesizer
	logger       *slog.Logger
	tracer       oteltrace.Tracer
}

// NewService creates a Service.
//
// Inputs:
//
//	processor    - NLP stage. Must be non-nil.
//	orchestrator - Retrieval stage. Must be non-nil.
//	logger       - Structured logger; nil falls back to slog.Default().
func NewService(processor *nlp.Processor, orchestrator *search.Orchestrator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		processor:    processor,
		orchestrator: orchestrator,
		synthesizer:  synthesis.NewSynthesizer(),
		logger:       logger,
		tracer:       otel.Tracer("askvec.query"),
	}
}

// Ask answers one natural-language question.
//
// Description:
//
//	Runs the pipeline end to end. Retrieval failures never surface: the
//	response always carries answer text and the advanced conversation
//	context. The only error return is a fatal NLP failure
//	(*nlp.QueryProcessingError).
//
// Inputs:
//
//	ctx - Request context.
//	req - The question, optional collection/provider/model, and the
//	    caller-held conversation context.
//
// Outputs:
//
//	*datatypes.NaturalQueryResponse - Answer, intent, hits, and the new
//	    context. Never nil on success.
//	error - *nlp.QueryProcessingError only.
func (s *Service) Ask(ctx context.Context, req datatypes.NaturalQueryRequest) (*datatypes.NaturalQueryResponse, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "askvec.query.ask")
	defer span.End()
	defer func() { queryDuration.Observe(time.Since(start).Seconds()) }()

	processed, err := s.processor.ProcessQuery(ctx, req.Collection, req.Question, req.Context)
	if err != nil {
		queriesTotal.WithLabelValues("unknown", "error").Inc()
		return nil, err
	}

	intent := processed.Intent
	span.SetAttributes(attribute.String("query.intent", intent.Type.String()))

	var result *datatypes.SearchResult
	outcome := "ok"
	answer := ""

	if intent.Type.NeedsSearch() {
		result, err = s.orchestrator.Execute(ctx, processed.Query)
		switch {
		case err != nil && processed.Query.Collection == "" && vectorstore.IsValidation(err):
			// No collection anywhere: not an infrastructure problem, just an
			// underspecified question. Answer conversationally.
			answer = "Which collection should I search? Name one in your question, like \"in gallery\"."
			outcome = "clarify"
		case err != nil && vectorstore.IsValidation(err):
			s.logger.Warn("search query rejected", "error", err)
			outcome = "degraded"
		case err != nil:
			// Context cancellation is the only other error the orchestrator
			// lets through.
			queriesTotal.WithLabelValues(intent.Type.String(), "cancelled").Inc()
			return nil, &nlp.QueryProcessingError{Stage: "search", Message: "request cancelled", Err: err}
		case result == nil:
			outcome = "degraded"
		}
	}

	if answer == "" {
		answer = s.synthesizer.Synthesize(intent, result, processed.Query)
	}

	next := processed.Context.WithAnswer(answer)

	var hits []datatypes.Hit
	if result != nil {
		hits = result.Hits
	}

	queriesTotal.WithLabelValues(intent.Type.String(), outcome).Inc()

	return &datatypes.NaturalQueryResponse{
		Answer:          answer,
		QueryType:       intent.Type.String(),
		Data:            hits,
		ExecutionTimeMs: time.Since(start).Milliseconds(),
		Context:         next,
	}, nil
}

// Healthy reports whether the retrieval stage can reach its repository.
func (s *Service) Healthy(ctx context.Context) bool {
	return s.orchestrator.Healthy(ctx)
}
