// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package search

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/AleutianAI/askvec/services/query/datatypes"
	"github.com/AleutianAI/askvec/services/vectorstore"
)

// stubRepo is a scripted Repository.
type stubRepo struct {
	result    *datatypes.SearchResult
	err       error
	delay     time.Duration
	reachable bool
	lastQuery datatypes.SearchQuery
}

func (s *stubRepo) Search(ctx context.Context, query datatypes.SearchQuery) (*datatypes.SearchResult, error) {
	s.lastQuery = query
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubRepo) TestConnection(ctx context.Context) bool {
	return s.reachable
}

// stubEmbedder returns a fixed vector or a scripted error.
type stubEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (s *stubEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vector, nil
}

func (s *stubEmbedder) Model() string { return "stub" }

func newTestOrchestrator(repo *stubRepo, embedder *stubEmbedder) *Orchestrator {
	return NewOrchestrator(repo, embedder, slog.Default())
}

func validQuery() datatypes.SearchQuery {
	return datatypes.SearchQuery{
		Collection: "gallery",
		Text:       "find cats",
		Limit:      datatypes.DefaultSearchLimit,
	}
}

// =============================================================================
// Happy Path
// =============================================================================

func TestExecute_EmbedsAndSearches(t *testing.T) {
	repo := &stubRepo{result: &datatypes.SearchResult{
		Hits:       []datatypes.Hit{{ID: "1", Score: 0.9}},
		TotalCount: 1,
	}}
	embedder := &stubEmbedder{vector: []float32{0.1, 0.2}}
	o := newTestOrchestrator(repo, embedder)

	result, err := o.Execute(context.Background(), validQuery())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || len(result.Hits) != 1 {
		t.Fatalf("expected one hit, got %+v", result)
	}
	if embedder.calls != 1 {
		t.Errorf("expected one embedding call, got %d", embedder.calls)
	}
	if len(repo.lastQuery.Vector) != 2 {
		t.Errorf("expected embedded vector forwarded to repository, got %v", repo.lastQuery.Vector)
	}
}

func TestExecute_PrecomputedVectorSkipsEmbedding(t *testing.T) {
	repo := &stubRepo{result: &datatypes.SearchResult{}}
	embedder := &stubEmbedder{vector: []float32{0.1}}
	o := newTestOrchestrator(repo, embedder)

	query := validQuery()
	query.Vector = []float32{0.5, 0.6}

	if _, err := o.Execute(context.Background(), query); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if embedder.calls != 0 {
		t.Errorf("expected no embedding calls, got %d", embedder.calls)
	}
}

// =============================================================================
// Validation
// =============================================================================

func TestExecute_MissingCollectionRejected(t *testing.T) {
	o := newTestOrchestrator(&stubRepo{}, &stubEmbedder{vector: []float32{0.1}})

	query := validQuery()
	query.Collection = ""

	_, err := o.Execute(context.Background(), query)
	if !vectorstore.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestExecute_ZeroLimitRejected(t *testing.T) {
	o := newTestOrchestrator(&stubRepo{}, &stubEmbedder{vector: []float32{0.1}})

	query := validQuery()
	query.Limit = 0

	_, err := o.Execute(context.Background(), query)
	if !vectorstore.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestExecute_RepoValidationPropagates(t *testing.T) {
	repo := &stubRepo{err: vectorstore.NewValidationError("bad vector width")}
	o := newTestOrchestrator(repo, &stubEmbedder{vector: []float32{0.1}})

	_, err := o.Execute(context.Background(), validQuery())
	if !vectorstore.IsValidation(err) {
		t.Errorf("expected validation error to propagate, got %v", err)
	}
}

// =============================================================================
// Degradation
// =============================================================================

func TestExecute_RepoDownDegrades(t *testing.T) {
	repo := &stubRepo{err: vectorstore.NewConnectionError("dial tcp: refused", errors.New("refused"))}
	o := newTestOrchestrator(repo, &stubEmbedder{vector: []float32{0.1}})

	result, err := o.Execute(context.Background(), validQuery())
	if err != nil {
		t.Fatalf("expected degradation to swallow the error, got %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result on degradation, got %+v", result)
	}
}

func TestExecute_CollectionNotFoundDegrades(t *testing.T) {
	repo := &stubRepo{err: vectorstore.NewCollectionNotFoundError("gallery", nil)}
	o := newTestOrchestrator(repo, &stubEmbedder{vector: []float32{0.1}})

	result, err := o.Execute(context.Background(), validQuery())
	if err != nil {
		t.Fatalf("expected degradation, got %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result, got %+v", result)
	}
}

func TestExecute_EmbeddingFailureDegrades(t *testing.T) {
	repo := &stubRepo{result: &datatypes.SearchResult{}}
	embedder := &stubEmbedder{err: errors.New("connection refused")}
	o := newTestOrchestrator(repo, embedder)

	result, err := o.Execute(context.Background(), validQuery())
	if err != nil {
		t.Fatalf("expected degradation, got %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result, got %+v", result)
	}
}

func TestExecute_SlowRepoTimesOutAndDegrades(t *testing.T) {
	t.Setenv("ASKVEC_SEARCH_TIMEOUT", "20ms")

	repo := &stubRepo{
		result: &datatypes.SearchResult{Hits: []datatypes.Hit{{ID: "1"}}},
		delay:  time.Second,
	}
	o := newTestOrchestrator(repo, &stubEmbedder{vector: []float32{0.1}})

	result, err := o.Execute(context.Background(), validQuery())
	if err != nil {
		t.Fatalf("expected the deadline to degrade, not error, got %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result after the search deadline, got %+v", result)
	}
}

func TestExecute_CancelledContextPropagates(t *testing.T) {
	repo := &stubRepo{err: vectorstore.NewConnectionError("ctx", context.Canceled)}
	o := newTestOrchestrator(repo, &stubEmbedder{vector: []float32{0.1}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Execute(ctx, validQuery())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// =============================================================================
// Health
// =============================================================================

func TestHealthy(t *testing.T) {
	o := newTestOrchestrator(&stubRepo{reachable: true}, &stubEmbedder{})
	if !o.Healthy(context.Background()) {
		t.Error("expected healthy")
	}

	o = newTestOrchestrator(&stubRepo{reachable: false}, &stubEmbedder{})
	if o.Healthy(context.Background()) {
		t.Error("expected unhealthy")
	}
}
