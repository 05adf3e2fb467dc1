// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the shared data model for the AskVec query
// pipeline: conversation context, query intents, search queries, search
// results, and the wire-level request/response types for /v1/ask.
//
// All types here are plain values with JSON tags. ConversationContext is
// copy-on-write: every helper returns a new value with a fresh history
// slice, so concurrent requests never share mutable state.
package datatypes

import "time"

// MaxHistoryTurns is the conversation history cap. Turns beyond the cap are
// evicted oldest-first.
const MaxHistoryTurns = 20

// DefaultSearchLimit is the hit limit for search and filter intents.
const DefaultSearchLimit = 10

// CountScanLimit is the elevated hit limit used for count intents. Counts
// are approximated by enumeration rather than a dedicated count primitive;
// when a result comes back with exactly this many hits, the true count may
// be larger and the answer must be hedged.
const CountScanLimit = 1000

// =============================================================================
// Intent
// =============================================================================

// IntentType classifies the purpose of a natural-language question.
type IntentType string

const (
	// IntentSearch is a free-form retrieval question ("find cats").
	IntentSearch IntentType = "search"

	// IntentFilter is an entity-scoped retrieval question ("show me Chris
	// Dyer's work").
	IntentFilter IntentType = "filter"

	// IntentCount is a quantity question ("how many artists are there?").
	IntentCount IntentType = "count"

	// IntentAggregate is a computed-summary question ("what's the average
	// score?"). Acknowledged but intentionally not computed.
	IntentAggregate IntentType = "aggregate"

	// IntentUnknown means no classification rule matched.
	IntentUnknown IntentType = "unknown"
)

// String returns the intent type as a string.
func (t IntentType) String() string {
	return string(t)
}

// IsValid reports whether t is one of the defined intent types.
func (t IntentType) IsValid() bool {
	switch t {
	case IntentSearch, IntentFilter, IntentCount, IntentAggregate, IntentUnknown:
		return true
	default:
		return false
	}
}

// NeedsSearch reports whether this intent requires a repository search.
// Aggregate and unknown intents are answered without touching the store.
func (t IntentType) NeedsSearch() bool {
	switch t {
	case IntentSearch, IntentFilter, IntentCount:
		return true
	default:
		return false
	}
}

// QueryIntent is the classifier's verdict for one question.
//
// Description:
//
//	Confidence is a fixed constant per matching rule tier, never learned,
//	so identical questions always produce identical intents. This is what
//	makes the classifier property-testable.
type QueryIntent struct {
	// Type is the classified intent.
	Type IntentType `json:"type"`

	// Confidence is the fixed confidence of the matching rule tier, in [0,1].
	Confidence float64 `json:"confidence"`

	// ExtractedFilters maps payload field names to values pulled out of the
	// question text (e.g. {"name": "Chris Dyer"}). Empty when nothing matched.
	ExtractedFilters map[string]string `json:"extracted_filters,omitempty"`
}

// Entity returns the extracted name filter, or "" when none was found.
func (qi QueryIntent) Entity() string {
	return qi.ExtractedFilters["name"]
}

// =============================================================================
// Conversation Context
// =============================================================================

// ConversationTurn is one question+answer exchange within a session.
type ConversationTurn struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationContext carries cross-turn state for pronoun and collection
// resolution.
//
// Description:
//
//	The context is owned by the caller: the server never stores it. Each
//	request returns a NEW context value; nothing here is mutated in place.
//	That property is what lets concurrent requests run without locking.
//
// Thread Safety: Safe for concurrent read. Helpers return copies.
type ConversationContext struct {
	// LastEntity is the most recently referenced entity ("Chris Dyer").
	// Pronouns in later turns resolve to it.
	LastEntity string `json:"last_entity,omitempty"`

	// LastCollection is the most recently queried collection. Questions that
	// omit a collection inherit it.
	LastCollection string `json:"last_collection,omitempty"`

	// LastQueryType is the intent type of the previous turn.
	LastQueryType string `json:"last_query_type,omitempty"`

	// LastTarget is the target noun of the previous turn ("work", "images").
	LastTarget string `json:"last_target,omitempty"`

	// CurrentTopic is a coarse topic marker derived from the latest question.
	CurrentTopic string `json:"current_topic,omitempty"`

	// ConversationHistory is the bounded, append-only turn log. Oldest turns
	// are dropped past MaxHistoryTurns. History informs disambiguation only;
	// it is never used to inject unrequested results into an answer.
	ConversationHistory []ConversationTurn `json:"conversation_history"`
}

// WithTurn returns a copy of the context with one turn appended, evicting
// the oldest turn when the history exceeds MaxHistoryTurns.
func (c ConversationContext) WithTurn(turn ConversationTurn) ConversationContext {
	out := c
	history := make([]ConversationTurn, 0, len(c.ConversationHistory)+1)
	history = append(history, c.ConversationHistory...)
	history = append(history, turn)
	if len(history) > MaxHistoryTurns {
		history = history[len(history)-MaxHistoryTurns:]
	}
	out.ConversationHistory = history
	return out
}

// WithAnswer returns a copy of the context with the answer recorded on the
// most recent turn. No-op when the history is empty.
func (c ConversationContext) WithAnswer(answer string) ConversationContext {
	if len(c.ConversationHistory) == 0 {
		return c
	}
	out := c
	history := make([]ConversationTurn, len(c.ConversationHistory))
	copy(history, c.ConversationHistory)
	history[len(history)-1].Answer = answer
	out.ConversationHistory = history
	return out
}

// =============================================================================
// Search
// =============================================================================

// SearchQuery is a fully resolved, parameterized search request for the
// vector repository.
type SearchQuery struct {
	// Collection is the target collection. Must be non-empty by the time the
	// query reaches the repository.
	Collection string `json:"collection"`

	// Text is the resolved query text (pronouns already substituted). The
	// orchestrator embeds it before calling the repository.
	Text string `json:"text,omitempty"`

	// Vector is an optional pre-computed embedding. When set, Text is not
	// re-embedded.
	Vector []float32 `json:"vector,omitempty"`

	// Limit is the maximum number of hits to request. Must be > 0.
	Limit int `json:"limit"`

	// Filters are exact-match payload field constraints.
	Filters map[string]string `json:"filters,omitempty"`

	// ScoreThreshold drops hits scoring below it. Zero disables the cut.
	ScoreThreshold float64 `json:"score_threshold,omitempty"`
}

// Hit is one scored result from the repository.
type Hit struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload,omitempty"`
}

// SearchResult is the repository's answer to one SearchQuery.
type SearchResult struct {
	// Hits are the scored results, best first.
	Hits []Hit `json:"hits"`

	// ExecutionTimeMs is the repository-side latency.
	ExecutionTimeMs int64 `json:"execution_time_ms"`

	// TotalCount is the number of hits returned. The repository has no exact
	// count primitive, so this is bounded by the query limit.
	TotalCount int `json:"total_count"`
}

// =============================================================================
// Request / Response
// =============================================================================

// NaturalQueryRequest is the POST /v1/ask request body.
type NaturalQueryRequest struct {
	// Question is the free-form natural-language question. Required.
	Question string `json:"question" binding:"required"`

	// Collection optionally names the target collection. When empty, the
	// collection is resolved from the question text or inherited from the
	// conversation context.
	Collection string `json:"collection,omitempty"`

	// Provider optionally selects the embedding provider.
	Provider string `json:"provider,omitempty"`

	// Model optionally selects the embedding model.
	Model string `json:"model,omitempty"`

	// Context is the caller-held conversation context from the previous
	// turn. Nil starts a fresh session.
	Context *ConversationContext `json:"context,omitempty"`
}

// NaturalQueryResponse is the POST /v1/ask response body.
//
// Description:
//
//	Data is nil when the search stage was skipped (aggregate/unknown
//	intents) or degraded (repository unreachable). The answer text is
//	always present — a broken retrieval layer never breaks the
//	conversation.
type NaturalQueryResponse struct {
	Answer          string              `json:"answer"`
	QueryType       string              `json:"query_type"`
	Data            []Hit               `json:"data,omitempty"`
	ExecutionTimeMs int64               `json:"execution_time_ms"`
	Context         ConversationContext `json:"context"`
}
