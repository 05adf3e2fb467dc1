// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package synthesis turns intent + search results into answer text with
// string templates. No generative model is involved: the same inputs always
// produce the same answer, and nothing can be hallucinated because nothing
// is generated.
package synthesis

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/askvec/services/query/datatypes"
)

// maxNamedHits caps how many result names are listed inline in an answer.
const maxNamedHits = 5

// Synthesizer renders deterministic answers.
//
// Thread Safety: Stateless; safe for concurrent use.
type Synthesizer struct{}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer() *Synthesizer {
	return &Synthesizer{}
}

// Synthesize renders the answer for one completed pipeline pass.
//
// Description:
//
//	Branches on intent type. A nil result for a search-requiring intent
//	means retrieval was degraded and yields an apologetic answer rather
//	than an error. Count answers at the scan cap are hedged with
//	"at least", since the true count may be larger.
//
// Inputs:
//
//	intent - The classified intent.
//	result - Repository hits; nil when the search stage was skipped or
//	    degraded.
//	query  - The resolved search query (for collection and entity wording).
//
// Outputs:
//
//	string - Non-empty answer text.
func (s *Synthesizer) Synthesize(intent datatypes.QueryIntent, result *datatypes.SearchResult, query datatypes.SearchQuery) string {
	switch intent.Type {
	case datatypes.IntentCount:
		return s.countAnswer(intent, result, query)
	case datatypes.IntentFilter:
		return s.filterAnswer(intent, result)
	case datatypes.IntentSearch:
		return s.searchAnswer(result, query)
	case datatypes.IntentAggregate:
		return "I can't compute aggregate statistics yet, but I can count items or search for specific ones. Try asking \"how many\" or describing what you're looking for."
	default:
		if query.Text != "" {
			return fmt.Sprintf("I'm not sure what you're asking with %q. Try describing what you want to find, or ask \"how many\" to count items.", query.Text)
		}
		return "I'm not sure what you're asking. Try describing what you want to find, or ask \"how many\" to count items."
	}
}

// countAnswer renders a count verdict, hedging when retrieval is degraded,
// when nothing matched, or when the scan cap was hit.
func (s *Synthesizer) countAnswer(intent datatypes.QueryIntent, result *datatypes.SearchResult, query datatypes.SearchQuery) string {
	if result == nil {
		return "I couldn't reach the search index to count right now. Please try again in a moment."
	}

	n := len(result.Hits)
	noun := "items"
	if n == 1 {
		noun = "item"
	}

	var scope string
	switch {
	case intent.Entity() != "":
		scope = " for " + intent.Entity()
	case query.Collection != "":
		scope = " in " + query.Collection
	default:
		noun = "matching " + noun
	}

	switch {
	case n == 0:
		return fmt.Sprintf("I found no %s%s. There may be none, or they may be described differently than you asked.", noun, scope)
	case n >= query.Limit && query.Limit > 0:
		return fmt.Sprintf("There are at least %d %s%s.", n, noun, scope)
	case n == 1:
		return fmt.Sprintf("There is 1 %s%s.", noun, scope)
	default:
		return fmt.Sprintf("There are %d %s%s.", n, noun, scope)
	}
}

// filterAnswer renders an entity-scoped retrieval answer.
func (s *Synthesizer) filterAnswer(intent datatypes.QueryIntent, result *datatypes.SearchResult) string {
	entity := intent.Entity()
	if entity == "" {
		entity = "that"
	}

	if result == nil {
		return fmt.Sprintf("I couldn't search for %s right now. Please try again in a moment.", entity)
	}
	if len(result.Hits) == 0 {
		return fmt.Sprintf("I found nothing for %s. It may not be in this collection, or it may be listed under a different name.", entity)
	}

	names := hitNames(result.Hits)
	if len(names) == 0 {
		return fmt.Sprintf("I found %d results for %s.", len(result.Hits), entity)
	}
	return fmt.Sprintf("I found %d results for %s, including %s.", len(result.Hits), entity, joinNames(names))
}

// searchAnswer renders a free-form retrieval answer.
func (s *Synthesizer) searchAnswer(result *datatypes.SearchResult, query datatypes.SearchQuery) string {
	if result == nil {
		return "I couldn't reach the search index right now. Please try again in a moment."
	}
	if len(result.Hits) == 0 {
		if query.Text != "" {
			return fmt.Sprintf("I found nothing matching %q. It may not exist here, or it may be described differently.", query.Text)
		}
		return "I found nothing matching that. It may not exist here, or it may be described differently."
	}

	where := ""
	if query.Collection != "" {
		where = fmt.Sprintf(" in %s", query.Collection)
	}

	names := hitNames(result.Hits)
	if len(names) == 0 {
		return fmt.Sprintf("I found %d results%s.", len(result.Hits), where)
	}
	return fmt.Sprintf("I found %d results%s, including %s.", len(result.Hits), where, joinNames(names))
}

// hitNames pulls display names from hit payloads, best hits first.
func hitNames(hits []datatypes.Hit) []string {
	names := make([]string, 0, maxNamedHits)
	for _, h := range hits {
		if len(names) == maxNamedHits {
			break
		}
		for _, key := range []string{"name", "title", "prompt"} {
			if v, ok := h.Payload[key].(string); ok && v != "" {
				names = append(names, v)
				break
			}
		}
	}
	return names
}

// joinNames renders a short natural-language list ("A, B, and C").
func joinNames(names []string) string {
	switch len(names) {
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + ", and " + names[len(names)-1]
	}
}
