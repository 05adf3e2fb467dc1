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
	"testing"

	"github.com/AleutianAI/askvec/services/query/datatypes"
)

func newTestReformulator(t *testing.T) *Reformulator {
	t.Helper()
	return NewReformulator(newTestRules(t))
}

// =============================================================================
// Pronoun Resolution
// =============================================================================

func TestReformulator_NilContextPassthrough(t *testing.T) {
	r := newTestReformulator(t)

	got := r.Reformulate("how many do they have?", nil)

	if got != "how many do they have?" {
		t.Errorf("expected passthrough without context, got %q", got)
	}
}

func TestReformulator_NoEntityPassthrough(t *testing.T) {
	r := newTestReformulator(t)
	conv := &datatypes.ConversationContext{LastCollection: "artists"}

	got := r.Reformulate("show me their work", conv)

	if got != "show me their work" {
		t.Errorf("expected passthrough without entity, got %q", got)
	}
}

func TestReformulator_SubjectPronoun(t *testing.T) {
	r := newTestReformulator(t)
	conv := &datatypes.ConversationContext{LastEntity: "Chris Dyer"}

	got := r.Reformulate("how many works do they have?", conv)

	if got != "how many works do Chris Dyer have?" {
		t.Errorf("unexpected reformulation: %q", got)
	}
}

func TestReformulator_PossessivePronoun(t *testing.T) {
	r := newTestReformulator(t)
	conv := &datatypes.ConversationContext{LastEntity: "Chris Dyer"}

	got := r.Reformulate("show me their latest work", conv)

	if got != "show me Chris Dyer's latest work" {
		t.Errorf("unexpected reformulation: %q", got)
	}
}

func TestReformulator_ItPronoun(t *testing.T) {
	r := newTestReformulator(t)
	conv := &datatypes.ConversationContext{LastEntity: "Ocean Sunrise"}

	got := r.Reformulate("tell me more about it", conv)

	if got != "tell me more about Ocean Sunrise" {
		t.Errorf("unexpected reformulation: %q", got)
	}
}

func TestReformulator_NoPronounUntouched(t *testing.T) {
	r := newTestReformulator(t)
	conv := &datatypes.ConversationContext{LastEntity: "Chris Dyer"}

	got := r.Reformulate("find sunset images", conv)

	if got != "find sunset images" {
		t.Errorf("expected question untouched, got %q", got)
	}
}

// =============================================================================
// Collection Resolution
// =============================================================================

func TestReformulator_ExplicitCollectionWins(t *testing.T) {
	r := newTestReformulator(t)
	conv := &datatypes.ConversationContext{LastCollection: "artists"}

	got := r.ResolveCollection("find cats in gallery", "paintings", conv)

	if got != "paintings" {
		t.Errorf("expected explicit collection to win, got %q", got)
	}
}

func TestReformulator_InPhrase(t *testing.T) {
	r := newTestReformulator(t)

	got := r.ResolveCollection("find cats in the gallery", "", nil)

	if got != "gallery" {
		t.Errorf("expected 'gallery' from in-phrase, got %q", got)
	}
}

func TestReformulator_FromPhrase(t *testing.T) {
	r := newTestReformulator(t)

	got := r.ResolveCollection("show everything from paintings", "", nil)

	if got != "paintings" {
		t.Errorf("expected 'paintings' from from-phrase, got %q", got)
	}
}

func TestReformulator_PronounAfterFromIsNotCollection(t *testing.T) {
	r := newTestReformulator(t)
	conv := &datatypes.ConversationContext{LastCollection: "artists"}

	got := r.ResolveCollection("show me more from them", "", conv)

	if got != "artists" {
		t.Errorf("expected fallback to last collection, got %q", got)
	}
}

func TestReformulator_InheritedCollection(t *testing.T) {
	r := newTestReformulator(t)
	conv := &datatypes.ConversationContext{LastCollection: "artists"}

	got := r.ResolveCollection("how many are there?", "", conv)

	if got != "artists" {
		t.Errorf("expected inherited collection, got %q", got)
	}
}

func TestReformulator_NothingResolves(t *testing.T) {
	r := newTestReformulator(t)

	got := r.ResolveCollection("how many are there?", "", nil)

	if got != "" {
		t.Errorf("expected empty collection, got %q", got)
	}
}
