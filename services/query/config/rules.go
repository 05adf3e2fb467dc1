// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the intent classification rule set: the embedded
// default YAML, its loader and validation, pattern pre-compilation, and a
// hot-reload watcher.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Embedded Default Intent Rules
// =============================================================================

//go:embed intent_rules.yaml
var defaultIntentRulesYAML []byte

// =============================================================================
// Intent Rule Types
// =============================================================================

// TierConfidences holds the fixed confidence per classification tier.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type TierConfidences struct {
	// Count is the confidence for quantity-interrogative matches.
	Count float64 `yaml:"count"`

	// Filter is the confidence for entity + target-noun matches.
	Filter float64 `yaml:"filter"`

	// Aggregate is the confidence for aggregate-verb matches.
	Aggregate float64 `yaml:"aggregate"`

	// Search is the confidence for retrieval-verb matches.
	Search float64 `yaml:"search"`

	// Fallback is the confidence when no pattern matched but the question
	// is non-empty (classified as search).
	Fallback float64 `yaml:"fallback"`
}

// IntentRules is the raw rule set as loaded from YAML.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type IntentRules struct {
	// Confidences are the fixed per-tier confidences.
	Confidences TierConfidences `yaml:"confidences"`

	// CountPatterns mark count intents ("how many", "number of").
	CountPatterns []string `yaml:"count_patterns"`

	// AggregatePatterns mark aggregate intents ("average", "total").
	AggregatePatterns []string `yaml:"aggregate_patterns"`

	// SearchPatterns mark search intents ("find", "show", "list").
	SearchPatterns []string `yaml:"search_patterns"`

	// TargetNouns combined with an extracted entity mark filter intents.
	TargetNouns []string `yaml:"target_nouns"`

	// Pronouns resolve to the conversation's last entity.
	Pronouns []string `yaml:"pronouns"`

	// FieldKeywords map question keywords to payload field names.
	FieldKeywords map[string]string `yaml:"field_keywords"`

	// CollectionStopwords can never be collection names.
	CollectionStopwords []string `yaml:"collection_stopwords"`
}

// Validate checks the rule set for holes that would make classification
// degenerate.
func (r *IntentRules) Validate() error {
	if len(r.CountPatterns) == 0 {
		return fmt.Errorf("intent rules: count_patterns must not be empty")
	}
	if len(r.SearchPatterns) == 0 {
		return fmt.Errorf("intent rules: search_patterns must not be empty")
	}
	if len(r.TargetNouns) == 0 {
		return fmt.Errorf("intent rules: target_nouns must not be empty")
	}
	if len(r.Pronouns) == 0 {
		return fmt.Errorf("intent rules: pronouns must not be empty")
	}
	for name, v := range map[string]float64{
		"count":     r.Confidences.Count,
		"filter":    r.Confidences.Filter,
		"aggregate": r.Confidences.Aggregate,
		"search":    r.Confidences.Search,
		"fallback":  r.Confidences.Fallback,
	} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("intent rules: confidence %s=%v outside (0,1]", name, v)
		}
	}
	return nil
}

// =============================================================================
// Compiled Rules
// =============================================================================

// CompiledRules is the pre-compiled, match-ready form of IntentRules.
//
// Thread Safety: Immutable after compilation; safe for concurrent use.
type CompiledRules struct {
	// Raw is the rule set this was compiled from.
	Raw IntentRules

	countRes     []*regexp.Regexp
	aggregateRes []*regexp.Regexp
	searchRes    []*regexp.Regexp

	targetNouns map[string]bool
	pronouns    map[string]bool
	stopwords   map[string]bool

	pronounRe *regexp.Regexp
}

// Compile pre-compiles every pattern for word-boundary, case-insensitive
// matching. Patterns containing ".*" are compiled as-is (regex); all others
// are quoted literals wrapped in \b anchors.
func (r *IntentRules) Compile() (*CompiledRules, error) {
	compile := func(patterns []string) ([]*regexp.Regexp, error) {
		out := make([]*regexp.Regexp, 0, len(patterns))
		for _, p := range patterns {
			var expr string
			if strings.Contains(p, ".*") {
				expr = "(?i)" + p
			} else {
				expr = `(?i)\b` + regexp.QuoteMeta(strings.ToLower(p)) + `\b`
			}
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("intent rules: invalid pattern %q: %w", p, err)
			}
			out = append(out, re)
		}
		return out, nil
	}

	toSet := func(words []string) map[string]bool {
		set := make(map[string]bool, len(words))
		for _, w := range words {
			set[strings.ToLower(w)] = true
		}
		return set
	}

	countRes, err := compile(r.CountPatterns)
	if err != nil {
		return nil, err
	}
	aggregateRes, err := compile(r.AggregatePatterns)
	if err != nil {
		return nil, err
	}
	searchRes, err := compile(r.SearchPatterns)
	if err != nil {
		return nil, err
	}

	pronounAlts := make([]string, 0, len(r.Pronouns))
	for _, p := range r.Pronouns {
		pronounAlts = append(pronounAlts, regexp.QuoteMeta(strings.ToLower(p)))
	}
	pronounRe, err := regexp.Compile(`(?i)\b(` + strings.Join(pronounAlts, "|") + `)\b`)
	if err != nil {
		return nil, fmt.Errorf("intent rules: pronoun pattern: %w", err)
	}

	return &CompiledRules{
		Raw:          *r,
		countRes:     countRes,
		aggregateRes: aggregateRes,
		searchRes:    searchRes,
		targetNouns:  toSet(r.TargetNouns),
		pronouns:     toSet(r.Pronouns),
		stopwords:    toSet(r.CollectionStopwords),
		pronounRe:    pronounRe,
	}, nil
}

// MatchesCount reports whether the question matches a count pattern.
func (c *CompiledRules) MatchesCount(question string) bool {
	return anyMatch(c.countRes, question)
}

// MatchesAggregate reports whether the question matches an aggregate pattern.
func (c *CompiledRules) MatchesAggregate(question string) bool {
	return anyMatch(c.aggregateRes, question)
}

// MatchesSearch reports whether the question matches a retrieval verb.
func (c *CompiledRules) MatchesSearch(question string) bool {
	return anyMatch(c.searchRes, question)
}

// HasTargetNoun reports whether any word in the question is a target noun.
func (c *CompiledRules) HasTargetNoun(question string) bool {
	for _, w := range tokenize(question) {
		if c.targetNouns[w] {
			return true
		}
	}
	return false
}

// FirstTargetNoun returns the first target noun appearing in the question,
// or "" when none does.
func (c *CompiledRules) FirstTargetNoun(question string) string {
	for _, w := range tokenize(question) {
		if c.targetNouns[w] {
			return w
		}
	}
	return ""
}

// PronounPattern returns the compiled word-boundary pattern matching any
// resolvable pronoun.
func (c *CompiledRules) PronounPattern() *regexp.Regexp {
	return c.pronounRe
}

// IsPronoun reports whether word is a resolvable pronoun.
func (c *CompiledRules) IsPronoun(word string) bool {
	return c.pronouns[strings.ToLower(word)]
}

// IsCollectionStopword reports whether word can never name a collection.
func (c *CompiledRules) IsCollectionStopword(word string) bool {
	return c.stopwords[strings.ToLower(word)]
}

// FieldFor returns the payload field a question keyword maps to, if any.
func (c *CompiledRules) FieldFor(keyword string) (string, bool) {
	field, ok := c.Raw.FieldKeywords[strings.ToLower(keyword)]
	return field, ok
}

func anyMatch(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// tokenize lowercases and splits a question into bare words, trimming
// punctuation from both ends of each token.
func tokenize(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `.,!?;:'"()[]`)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// =============================================================================
// Loading
// =============================================================================

// LoadDefault parses and compiles the embedded default rule set.
// Panics on failure — the embedded YAML is part of the binary; a parse
// failure is a build defect, not a runtime condition.
func LoadDefault() *CompiledRules {
	rules, err := parseRules(defaultIntentRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded intent rules are invalid: %v", err))
	}
	compiled, err := rules.Compile()
	if err != nil {
		panic(fmt.Sprintf("embedded intent rules do not compile: %v", err))
	}
	return compiled
}

// LoadFile parses, validates, and compiles a rule set from disk.
func LoadFile(path string) (*CompiledRules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read intent rules %q: %w", path, err)
	}
	rules, err := parseRules(raw)
	if err != nil {
		return nil, err
	}
	return rules.Compile()
}

func parseRules(raw []byte) (*IntentRules, error) {
	var rules IntentRules
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("parse intent rules: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &rules, nil
}

// =============================================================================
// Rules Store
// =============================================================================

// RulesStore holds the active compiled rule set behind an atomic pointer so
// the watcher can swap rules without a lock on the query hot path.
//
// Thread Safety: Safe for concurrent use.
type RulesStore struct {
	current atomic.Pointer[CompiledRules]
}

// NewRulesStore creates a store seeded with the given rules.
func NewRulesStore(rules *CompiledRules) *RulesStore {
	s := &RulesStore{}
	s.current.Store(rules)
	return s
}

// Current returns the active rule set. Never nil.
func (s *RulesStore) Current() *CompiledRules {
	return s.current.Load()
}

// Replace atomically swaps in a new rule set.
func (s *RulesStore) Replace(rules *CompiledRules) {
	s.current.Store(rules)
}
