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
	"unicode"

	"github.com/AleutianAI/askvec/services/query/config"
	"github.com/AleutianAI/askvec/services/query/datatypes"
)

// Classifier assigns an intent to a question by walking fixed rule tiers.
//
// Description:
//
//	Tiers run in a strict order and the first match wins:
//
//	  1. count patterns          → IntentCount
//	  2. entity + target noun    → IntentFilter
//	  3. aggregate patterns      → IntentAggregate
//	  4. search verbs            → IntentSearch
//	  5. any non-empty question  → IntentSearch (fallback confidence)
//	  6. otherwise               → IntentUnknown
//
//	Confidence is fixed per tier, loaded from the rule config, so the same
//	question always classifies identically.
//
// Thread Safety: Safe for concurrent use.
type Classifier struct {
	rules     *config.RulesStore
	extractor *Extractor
}

// NewClassifier creates a Classifier over the given rule store.
func NewClassifier(rules *config.RulesStore) *Classifier {
	return &Classifier{
		rules:     rules,
		extractor: NewExtractor(rules),
	}
}

// Classify returns the intent verdict for a question.
//
// Inputs:
//
//	question - Raw (already reformulated) question text.
//
// Outputs:
//
//	datatypes.QueryIntent - Intent type, tier confidence, and any filters
//	    the extractor found. ExtractedFilters is never nil.
func (c *Classifier) Classify(question string) datatypes.QueryIntent {
	rules := c.rules.Current()
	conf := rules.Raw.Confidences
	filters := c.extractor.ExtractFilters(question)

	trimmed := strings.TrimSpace(question)
	if trimmed == "" || !hasWord(trimmed) {
		return datatypes.QueryIntent{
			Type:             datatypes.IntentUnknown,
			Confidence:       0.0,
			ExtractedFilters: filters,
		}
	}

	switch {
	case rules.MatchesCount(trimmed):
		return datatypes.QueryIntent{
			Type:             datatypes.IntentCount,
			Confidence:       conf.Count,
			ExtractedFilters: filters,
		}
	case len(filters) > 0 && rules.HasTargetNoun(trimmed):
		return datatypes.QueryIntent{
			Type:             datatypes.IntentFilter,
			Confidence:       conf.Filter,
			ExtractedFilters: filters,
		}
	case rules.MatchesAggregate(trimmed):
		return datatypes.QueryIntent{
			Type:             datatypes.IntentAggregate,
			Confidence:       conf.Aggregate,
			ExtractedFilters: filters,
		}
	case rules.MatchesSearch(trimmed):
		return datatypes.QueryIntent{
			Type:             datatypes.IntentSearch,
			Confidence:       conf.Search,
			ExtractedFilters: filters,
		}
	default:
		return datatypes.QueryIntent{
			Type:             datatypes.IntentSearch,
			Confidence:       conf.Fallback,
			ExtractedFilters: filters,
		}
	}
}

// hasWord reports whether s contains at least one letter or digit, in any
// script.
func hasWord(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
