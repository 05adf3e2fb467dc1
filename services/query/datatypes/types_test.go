// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"fmt"
	"testing"
	"time"
)

func TestWithTurn_Appends(t *testing.T) {
	var conv ConversationContext

	next := conv.WithTurn(ConversationTurn{Question: "find cats", Timestamp: time.Now()})

	if len(next.ConversationHistory) != 1 {
		t.Fatalf("history len = %d, want 1", len(next.ConversationHistory))
	}
	if len(conv.ConversationHistory) != 0 {
		t.Error("original context was mutated")
	}
}

func TestWithTurn_EvictsOldest(t *testing.T) {
	var conv ConversationContext
	for i := 0; i < MaxHistoryTurns+3; i++ {
		conv = conv.WithTurn(ConversationTurn{Question: fmt.Sprintf("q%d", i)})
	}

	if len(conv.ConversationHistory) != MaxHistoryTurns {
		t.Fatalf("history len = %d, want %d", len(conv.ConversationHistory), MaxHistoryTurns)
	}
	if got := conv.ConversationHistory[0].Question; got != "q3" {
		t.Errorf("oldest turn = %q, want q3", got)
	}
	if got := conv.ConversationHistory[MaxHistoryTurns-1].Question; got != fmt.Sprintf("q%d", MaxHistoryTurns+2) {
		t.Errorf("newest turn = %q", got)
	}
}

func TestWithAnswer_PatchesLastTurn(t *testing.T) {
	conv := ConversationContext{}.
		WithTurn(ConversationTurn{Question: "q1"}).
		WithTurn(ConversationTurn{Question: "q2"})

	next := conv.WithAnswer("a2")

	if next.ConversationHistory[1].Answer != "a2" {
		t.Errorf("answer = %q, want a2", next.ConversationHistory[1].Answer)
	}
	if next.ConversationHistory[0].Answer != "" {
		t.Error("earlier turn must not be touched")
	}
	if conv.ConversationHistory[1].Answer != "" {
		t.Error("original context was mutated")
	}
}

func TestWithAnswer_EmptyHistoryNoop(t *testing.T) {
	var conv ConversationContext

	next := conv.WithAnswer("a")

	if len(next.ConversationHistory) != 0 {
		t.Errorf("expected empty history, got %d", len(next.ConversationHistory))
	}
}

func TestIntentType_NeedsSearch(t *testing.T) {
	needs := map[IntentType]bool{
		IntentSearch:    true,
		IntentFilter:    true,
		IntentCount:     true,
		IntentAggregate: false,
		IntentUnknown:   false,
	}
	for intent, want := range needs {
		if got := intent.NeedsSearch(); got != want {
			t.Errorf("%s.NeedsSearch() = %v, want %v", intent, got, want)
		}
	}
}
