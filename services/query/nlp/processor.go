// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package nlp

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/askvec/services/query/config"
	"github.com/AleutianAI/askvec/services/query/datatypes"
)

// maxQuestionLen bounds raw question length. Longer inputs are almost
// certainly pasted documents, not questions.
const maxQuestionLen = 4096

var (
	classificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "askvec",
		Subsystem: "nlp",
		Name:      "classifications_total",
		Help:      "Intent classifications by resulting intent type.",
	}, []string{"intent"})

	reformulationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "askvec",
		Subsystem: "nlp",
		Name:      "reformulations_total",
		Help:      "Questions rewritten by pronoun or collection resolution.",
	})

	processingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "askvec",
		Subsystem: "nlp",
		Name:      "processing_duration_seconds",
		Help:      "Wall time of the full NLP stage.",
		Buckets:   prometheus.DefBuckets,
	})
)

// ProcessResult is the NLP stage's complete verdict for one question.
type ProcessResult struct {
	// Intent is the classified intent with extracted filters.
	Intent datatypes.QueryIntent

	// Query is the fully resolved search query. Query.Collection may be
	// empty when no collection could be resolved; the caller decides whether
	// that is fatal for the intent at hand.
	Query datatypes.SearchQuery

	// Context is the updated conversation context, with this question
	// appended as a new turn. The answer on that turn is filled in by the
	// caller after synthesis.
	Context datatypes.ConversationContext
}

// Processor composes reformulation, classification, and extraction into the
// single NLP entry point the query controller calls.
//
// Thread Safety: Safe for concurrent use.
type Processor struct {
	rules        *config.RulesStore
	classifier   *Classifier
	reformulator *Reformulator
	tracer       oteltrace.Tracer
}

// NewProcessor creates a Processor with all sub-stages wired to the same
// rule store.
func NewProcessor(rules *config.RulesStore) *Processor {
	return &Processor{
		rules:        rules,
		classifier:   NewClassifier(rules),
		reformulator: NewReformulator(rules),
		tracer:       otel.Tracer("askvec.nlp"),
	}
}

// ProcessQuery runs the full NLP stage for one question.
//
// Description:
//
//	Reformulates the question against conversation context, classifies the
//	result, resolves the target collection, and builds the parameterized
//	search query. The returned context has this question appended as a new
//	turn and its resolution state (entity, collection, intent, target)
//	advanced.
//
// Inputs:
//
//	ctx        - Request context.
//	collection - Explicitly requested collection; may be "".
//	question   - Raw question text.
//	conv       - Prior conversation context; nil starts a fresh session.
//
// Outputs:
//
//	*ProcessResult - The verdict. Never nil on success.
//	error          - *QueryProcessingError on fatal input problems.
func (p *Processor) ProcessQuery(ctx context.Context, collection, question string, conv *datatypes.ConversationContext) (*ProcessResult, error) {
	start := time.Now()
	_, span := p.tracer.Start(ctx, "askvec.nlp.process")
	defer span.End()
	defer func() { processingDuration.Observe(time.Since(start).Seconds()) }()

	if len(question) > maxQuestionLen {
		return nil, &QueryProcessingError{
			Stage:   "validate",
			Message: "question exceeds maximum length",
		}
	}

	resolved := p.reformulator.Reformulate(question, conv)
	if resolved != question {
		reformulationsTotal.Inc()
	}

	intent := p.classifier.Classify(resolved)
	targetCollection := p.reformulator.ResolveCollection(resolved, collection, conv)

	classificationsTotal.WithLabelValues(intent.Type.String()).Inc()
	span.SetAttributes(
		attribute.String("nlp.intent", intent.Type.String()),
		attribute.Float64("nlp.confidence", intent.Confidence),
		attribute.Bool("nlp.reformulated", resolved != question),
		attribute.String("nlp.collection", targetCollection),
	)

	limit := datatypes.DefaultSearchLimit
	if intent.Type == datatypes.IntentCount {
		limit = datatypes.CountScanLimit
	}

	query := datatypes.SearchQuery{
		Collection: targetCollection,
		Text:       resolved,
		Limit:      limit,
		Filters:    intent.ExtractedFilters,
	}

	next := p.advanceContext(conv, intent, resolved, targetCollection)
	next = next.WithTurn(datatypes.ConversationTurn{
		Question:  question,
		Timestamp: time.Now().UTC(),
	})

	return &ProcessResult{
		Intent:  intent,
		Query:   query,
		Context: next,
	}, nil
}

// advanceContext folds this turn's resolution state into the context.
// Fields only move forward: a turn with no entity keeps the previous one.
func (p *Processor) advanceContext(conv *datatypes.ConversationContext, intent datatypes.QueryIntent, resolved, collection string) datatypes.ConversationContext {
	var next datatypes.ConversationContext
	if conv != nil {
		next = *conv
	}

	if entity := intent.Entity(); entity != "" {
		next.LastEntity = entity
	}
	if collection != "" {
		next.LastCollection = collection
	}
	next.LastQueryType = intent.Type.String()

	rules := p.rules.Current()
	if target := rules.FirstTargetNoun(resolved); target != "" {
		next.LastTarget = target
	}
	next.CurrentTopic = deriveTopic(resolved, next.LastEntity)

	return next
}

// deriveTopic produces a coarse topic marker: the entity when one is on
// record, otherwise the first few content words of the question.
func deriveTopic(resolved, entity string) string {
	if entity != "" {
		return strings.ToLower(entity)
	}
	words := strings.Fields(strings.ToLower(resolved))
	if len(words) > 4 {
		words = words[:4]
	}
	return strings.Trim(strings.Join(words, " "), `.,!?;:'"`)
}
