// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package synthesis

import (
	"strings"
	"testing"

	"github.com/AleutianAI/askvec/services/query/datatypes"
)

func makeHits(n int) []datatypes.Hit {
	hits := make([]datatypes.Hit, n)
	for i := range hits {
		hits[i] = datatypes.Hit{
			ID:      "id",
			Score:   0.9,
			Payload: map[string]any{"name": "Piece"},
		}
	}
	return hits
}

// =============================================================================
// Count Answers
// =============================================================================

func TestSynthesize_CountExact(t *testing.T) {
	s := NewSynthesizer()
	intent := datatypes.QueryIntent{Type: datatypes.IntentCount}
	result := &datatypes.SearchResult{Hits: makeHits(7)}
	query := datatypes.SearchQuery{Collection: "gallery", Limit: datatypes.CountScanLimit}

	answer := s.Synthesize(intent, result, query)

	if !strings.Contains(answer, "7") {
		t.Errorf("expected count in answer, got %q", answer)
	}
	if strings.Contains(answer, "at least") {
		t.Errorf("expected no hedge below the cap, got %q", answer)
	}
}

func TestSynthesize_CountAtCapHedged(t *testing.T) {
	s := NewSynthesizer()
	intent := datatypes.QueryIntent{Type: datatypes.IntentCount}
	result := &datatypes.SearchResult{Hits: makeHits(datatypes.CountScanLimit)}
	query := datatypes.SearchQuery{Collection: "gallery", Limit: datatypes.CountScanLimit}

	answer := s.Synthesize(intent, result, query)

	if !strings.Contains(answer, "at least") {
		t.Errorf("expected 'at least' hedge at the scan cap, got %q", answer)
	}
}

func TestSynthesize_CountZeroHedged(t *testing.T) {
	s := NewSynthesizer()
	intent := datatypes.QueryIntent{Type: datatypes.IntentCount}
	result := &datatypes.SearchResult{}
	query := datatypes.SearchQuery{Collection: "gallery", Limit: datatypes.CountScanLimit}

	answer := s.Synthesize(intent, result, query)

	// Zero hits is ambiguous (empty vs. phrased differently); the answer
	// must not claim a definite zero.
	if !strings.Contains(answer, "no ") {
		t.Errorf("expected a zero answer, got %q", answer)
	}
	if !strings.Contains(answer, "may") {
		t.Errorf("expected hedged phrasing for zero hits, got %q", answer)
	}
}

func TestSynthesize_CountEntitySubject(t *testing.T) {
	s := NewSynthesizer()
	intent := datatypes.QueryIntent{
		Type:             datatypes.IntentCount,
		ExtractedFilters: map[string]string{"name": "Chris Dyer"},
	}
	result := &datatypes.SearchResult{Hits: makeHits(3)}
	query := datatypes.SearchQuery{Collection: "gallery", Limit: datatypes.CountScanLimit}

	answer := s.Synthesize(intent, result, query)

	if !strings.Contains(answer, "Chris Dyer") {
		t.Errorf("expected entity in answer, got %q", answer)
	}
}

// =============================================================================
// Search / Filter Answers
// =============================================================================

func TestSynthesize_SearchNamesHits(t *testing.T) {
	s := NewSynthesizer()
	intent := datatypes.QueryIntent{Type: datatypes.IntentSearch}
	result := &datatypes.SearchResult{
		Hits: []datatypes.Hit{
			{ID: "1", Payload: map[string]any{"name": "Ocean Sunrise"}},
			{ID: "2", Payload: map[string]any{"title": "Blue Heron"}},
		},
	}
	query := datatypes.SearchQuery{Collection: "gallery", Limit: datatypes.DefaultSearchLimit}

	answer := s.Synthesize(intent, result, query)

	if !strings.Contains(answer, "Ocean Sunrise") || !strings.Contains(answer, "Blue Heron") {
		t.Errorf("expected hit names in answer, got %q", answer)
	}
	if !strings.Contains(answer, "2 results") {
		t.Errorf("expected result count in answer, got %q", answer)
	}
}

func TestSynthesize_DegradedSearchApologizes(t *testing.T) {
	s := NewSynthesizer()
	intent := datatypes.QueryIntent{Type: datatypes.IntentSearch}
	query := datatypes.SearchQuery{Collection: "gallery", Limit: datatypes.DefaultSearchLimit}

	answer := s.Synthesize(intent, nil, query)

	if answer == "" {
		t.Fatal("expected non-empty answer for degraded retrieval")
	}
	if !strings.Contains(answer, "try again") {
		t.Errorf("expected retry suggestion, got %q", answer)
	}
}

func TestSynthesize_SearchZeroHitsNamesQuestion(t *testing.T) {
	s := NewSynthesizer()
	intent := datatypes.QueryIntent{Type: datatypes.IntentSearch}
	result := &datatypes.SearchResult{}
	query := datatypes.SearchQuery{
		Collection: "gallery",
		Text:       "find glass sculptures",
		Limit:      datatypes.DefaultSearchLimit,
	}

	answer := s.Synthesize(intent, result, query)

	if !strings.Contains(answer, "find glass sculptures") {
		t.Errorf("expected original question in zero-hit answer, got %q", answer)
	}
	if !strings.Contains(answer, "may") {
		t.Errorf("expected hedged zero-hit phrasing, got %q", answer)
	}
}

func TestSynthesize_FilterZeroHits(t *testing.T) {
	s := NewSynthesizer()
	intent := datatypes.QueryIntent{
		Type:             datatypes.IntentFilter,
		ExtractedFilters: map[string]string{"name": "Chris Dyer"},
	}
	result := &datatypes.SearchResult{}
	query := datatypes.SearchQuery{Collection: "gallery", Limit: datatypes.DefaultSearchLimit}

	answer := s.Synthesize(intent, result, query)

	if !strings.Contains(answer, "Chris Dyer") {
		t.Errorf("expected entity in answer, got %q", answer)
	}
	if !strings.Contains(answer, "may") {
		t.Errorf("expected hedged zero-hit phrasing, got %q", answer)
	}
}

// =============================================================================
// Non-Search Intents
// =============================================================================

func TestSynthesize_AggregateAcknowledged(t *testing.T) {
	s := NewSynthesizer()
	intent := datatypes.QueryIntent{Type: datatypes.IntentAggregate}

	answer := s.Synthesize(intent, nil, datatypes.SearchQuery{})

	if answer == "" {
		t.Fatal("expected non-empty answer")
	}
	if !strings.Contains(answer, "can't") {
		t.Errorf("expected capability disclaimer, got %q", answer)
	}
}

func TestSynthesize_UnknownAsksForClarification(t *testing.T) {
	s := NewSynthesizer()
	intent := datatypes.QueryIntent{Type: datatypes.IntentUnknown}

	answer := s.Synthesize(intent, nil, datatypes.SearchQuery{})

	if !strings.Contains(answer, "not sure") {
		t.Errorf("expected clarification request, got %q", answer)
	}
}

func TestSynthesize_UnknownEchoesQuestion(t *testing.T) {
	s := NewSynthesizer()
	intent := datatypes.QueryIntent{Type: datatypes.IntentUnknown}
	query := datatypes.SearchQuery{Text: "blorp the flibber"}

	answer := s.Synthesize(intent, nil, query)

	if !strings.Contains(answer, "blorp the flibber") {
		t.Errorf("expected question echoed in answer, got %q", answer)
	}
}

// =============================================================================
// Determinism
// =============================================================================

func TestSynthesize_Deterministic(t *testing.T) {
	s := NewSynthesizer()
	intent := datatypes.QueryIntent{Type: datatypes.IntentSearch}
	result := &datatypes.SearchResult{Hits: makeHits(4)}
	query := datatypes.SearchQuery{Collection: "gallery", Limit: datatypes.DefaultSearchLimit}

	first := s.Synthesize(intent, result, query)
	for i := 0; i < 10; i++ {
		if got := s.Synthesize(intent, result, query); got != first {
			t.Fatalf("answer drifted on run %d: %q vs %q", i, got, first)
		}
	}
}
