// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package nlp implements the deterministic NLP stage of the query pipeline:
// entity/filter extraction, rule-tier intent classification, and cross-turn
// query reformulation. Everything here is pure pattern matching over the
// loaded rule set — same question in, same verdict out.
package nlp

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/AleutianAI/askvec/services/query/config"
)

// quotedDoubleRe captures a double-quoted phrase.
var quotedDoubleRe = regexp.MustCompile(`"([^"]{1,64})"`)

// quotedSingleRe captures a single-quoted phrase. Both quotes must sit on
// word edges so possessives ("Chris Dyer's") do not false-positive.
var quotedSingleRe = regexp.MustCompile(`(?:^|[\s(])'([^']{1,64})'(?:[\s).,!?]|$)`)

// Extractor pulls candidate entities and field filters out of raw question
// text.
//
// Description:
//
//	Three heuristics, in priority order: quoted substrings, capitalized
//	phrases, and the field-keyword vocabulary from the rule set. Extraction
//	never fails — malformed input just yields an empty map.
//
// Thread Safety: Safe for concurrent use.
type Extractor struct {
	rules *config.RulesStore
}

// NewExtractor creates an Extractor over the given rule store.
func NewExtractor(rules *config.RulesStore) *Extractor {
	return &Extractor{rules: rules}
}

// ExtractFilters returns payload field filters found in the question.
//
// Description:
//
//	Quoted phrases and capitalized phrases land under "name". Field
//	keywords ("artist X", "color blue") land under their mapped field.
//	Earlier heuristics win on key collisions. Returns an empty map when
//	nothing matches.
//
// Outputs:
//
//	map[string]string - Field → value. Never nil.
func (e *Extractor) ExtractFilters(question string) map[string]string {
	rules := e.rules.Current()
	filters := make(map[string]string)

	if quoted := extractQuoted(question); quoted != "" {
		filters["name"] = quoted
	}

	if _, ok := filters["name"]; !ok {
		if phrase := extractCapitalizedPhrase(question); phrase != "" {
			filters["name"] = phrase
		}
	}

	e.extractFieldKeywords(question, rules, filters)

	return filters
}

// extractQuoted returns the first quoted phrase, double quotes first.
func extractQuoted(question string) string {
	if m := quotedDoubleRe.FindStringSubmatch(question); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := quotedSingleRe.FindStringSubmatch(question); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// extractCapitalizedPhrase returns the first run of capitalized words,
// possessive suffix stripped.
//
// The question's leading word is only accepted as part of a run of two or
// more — a sentence-initial capital ("Show me...") is not an entity.
func extractCapitalizedPhrase(question string) string {
	words := strings.Fields(question)

	for i := 0; i < len(words); i++ {
		if !isCapitalizedWord(cleanWord(words[i])) {
			continue
		}

		run := []string{cleanWord(words[i])}
		for j := i + 1; j < len(words); j++ {
			w := cleanWord(words[j])
			if !isCapitalizedWord(w) {
				break
			}
			run = append(run, w)
		}

		if i == 0 && len(run) < 2 {
			// Sentence-initial capital on its own; keep scanning.
			i += len(run) - 1
			continue
		}
		return strings.Join(run, " ")
	}
	return ""
}

// extractFieldKeywords applies the "<keyword> <value>" vocabulary.
// Existing keys are never overwritten.
func (e *Extractor) extractFieldKeywords(question string, rules *config.CompiledRules, filters map[string]string) {
	words := strings.Fields(question)
	for i := 0; i < len(words)-1; i++ {
		keyword := strings.ToLower(strings.Trim(words[i], `.,!?;:'"()`))
		field, ok := rules.FieldFor(keyword)
		if !ok {
			continue
		}
		if _, exists := filters[field]; exists {
			continue
		}

		next := cleanWord(words[i+1])
		if next == "" || rules.IsCollectionStopword(next) {
			continue
		}
		// "by" is too common a preposition to trust with arbitrary values;
		// it only extracts capitalized names ("by Chris Dyer").
		if keyword == "by" && !isCapitalizedWord(next) {
			continue
		}

		if isCapitalizedWord(next) {
			// Extend across the full capitalized phrase.
			run := []string{next}
			for j := i + 2; j < len(words); j++ {
				w := cleanWord(words[j])
				if !isCapitalizedWord(w) {
					break
				}
				run = append(run, w)
			}
			filters[field] = strings.Join(run, " ")
		} else {
			filters[field] = strings.ToLower(next)
		}
	}
}

// cleanWord trims punctuation and a possessive 's / ' suffix.
func cleanWord(w string) string {
	w = strings.Trim(w, `.,!?;:"()[]`)
	w = strings.TrimSuffix(w, "'s")
	w = strings.TrimSuffix(w, "'")
	return w
}

// isCapitalizedWord reports whether w starts with an uppercase letter
// followed by at least one lowercase letter ("Chris", not "I" or "NASA").
func isCapitalizedWord(w string) bool {
	runes := []rune(w)
	if len(runes) < 2 {
		return false
	}
	if !unicode.IsUpper(runes[0]) {
		return false
	}
	for _, r := range runes[1:] {
		if unicode.IsUpper(r) {
			return false
		}
		if !unicode.IsLetter(r) && r != '-' {
			return false
		}
	}
	return true
}
