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
	"strings"

	"github.com/AleutianAI/askvec/services/query/config"
	"github.com/AleutianAI/askvec/services/query/datatypes"
)

// Reformulator rewrites follow-up questions into standalone ones using
// accumulated conversation context.
//
// Description:
//
//	Two substitutions: pronouns ("they", "them", "it", ...) are replaced
//	with the conversation's last entity, and a missing collection is
//	resolved from an "in <collection>" phrase or the last collection used.
//	Without relevant context the question passes through untouched.
//
// Thread Safety: Safe for concurrent use.
type Reformulator struct {
	rules *config.RulesStore
}

// NewReformulator creates a Reformulator over the given rule store.
func NewReformulator(rules *config.RulesStore) *Reformulator {
	return &Reformulator{rules: rules}
}

// possessivePronouns are replaced with the entity's possessive form.
var possessivePronouns = map[string]bool{
	"their": true,
	"its":   true,
}

// Reformulate resolves pronouns in the question against conversation state.
//
// Inputs:
//
//	question - Raw question text.
//	conv     - Conversation context; may be nil for first-turn questions.
//
// Outputs:
//
//	string - The standalone question. Identical to the input when no
//	    pronoun resolves or no entity is on record.
func (r *Reformulator) Reformulate(question string, conv *datatypes.ConversationContext) string {
	if conv == nil || conv.LastEntity == "" {
		return question
	}

	rules := r.rules.Current()
	re := rules.PronounPattern()

	return re.ReplaceAllStringFunc(question, func(match string) string {
		if possessivePronouns[strings.ToLower(match)] {
			return conv.LastEntity + "'s"
		}
		return conv.LastEntity
	})
}

// ResolveCollection picks the collection a question targets.
//
// Description:
//
//	Precedence: an explicitly requested collection, then an
//	"in <word>" / "from <word>" phrase in the question (stopwords like
//	"the" are skipped over), then the conversation's last collection.
//	Returns "" when nothing resolves.
func (r *Reformulator) ResolveCollection(question, requested string, conv *datatypes.ConversationContext) string {
	if requested != "" {
		return requested
	}

	rules := r.rules.Current()
	words := strings.Fields(strings.ToLower(question))
	for i, w := range words {
		w = strings.Trim(w, `.,!?;:'"()`)
		if w != "in" && w != "from" {
			continue
		}
		for j := i + 1; j < len(words); j++ {
			cand := strings.Trim(words[j], `.,!?;:'"()`)
			if cand == "" || rules.IsCollectionStopword(cand) {
				continue
			}
			// A pronoun after "from" ("from them") is not a collection.
			if rules.IsPronoun(cand) {
				break
			}
			return cand
		}
	}

	if conv != nil && conv.LastCollection != "" {
		return conv.LastCollection
	}
	return ""
}
