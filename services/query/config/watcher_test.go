// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// renameReplace saves content the way vim and sed -i do: write a sibling
// file, then rename it over the target, swapping the inode.
func renameReplace(t *testing.T, path, content string) {
	t.Helper()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename over target: %v", err)
	}
}

// waitForCount polls the store until the count confidence reaches want.
func waitForCount(t *testing.T, store *RulesStore, want float64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if store.Current().Raw.Confidences.Count == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("rules never reloaded: count confidence is %v, want %v",
		store.Current().Raw.Confidences.Count, want)
}

// =============================================================================
// Hot Reload
// =============================================================================

func TestWatchFile_ReloadOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, defaultIntentRulesYAML, 0o644); err != nil {
		t.Fatalf("seed rules file: %v", err)
	}

	store := NewRulesStore(LoadDefault())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := WatchFile(ctx, path, store, nil); err != nil {
		t.Fatalf("WatchFile: %v", err)
	}

	edited := strings.Replace(string(defaultIntentRulesYAML), "count: 0.90", "count: 0.91", 1)
	if err := os.WriteFile(path, []byte(edited), 0o644); err != nil {
		t.Fatalf("edit rules file: %v", err)
	}

	waitForCount(t, store, 0.91)
}

func TestWatchFile_SurvivesRenameReplaceSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, defaultIntentRulesYAML, 0o644); err != nil {
		t.Fatalf("seed rules file: %v", err)
	}

	store := NewRulesStore(LoadDefault())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := WatchFile(ctx, path, store, nil); err != nil {
		t.Fatalf("WatchFile: %v", err)
	}

	// Two consecutive rename-replace saves: the second one is where an
	// inode-bound watch would have gone stale.
	first := strings.Replace(string(defaultIntentRulesYAML), "count: 0.90", "count: 0.91", 1)
	renameReplace(t, path, first)
	waitForCount(t, store, 0.91)

	second := strings.Replace(string(defaultIntentRulesYAML), "count: 0.90", "count: 0.92", 1)
	renameReplace(t, path, second)
	waitForCount(t, store, 0.92)
}

func TestWatchFile_BadEditKeepsPreviousRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, defaultIntentRulesYAML, 0o644); err != nil {
		t.Fatalf("seed rules file: %v", err)
	}

	store := NewRulesStore(LoadDefault())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := WatchFile(ctx, path, store, nil); err != nil {
		t.Fatalf("WatchFile: %v", err)
	}

	renameReplace(t, path, "confidences: [not, a, mapping]")

	// Prove the watcher saw the bad save and moved past it: a good save
	// afterwards must still land.
	good := strings.Replace(string(defaultIntentRulesYAML), "count: 0.90", "count: 0.93", 1)
	renameReplace(t, path, good)
	waitForCount(t, store, 0.93)

	before := store.Current()
	if before.Raw.Confidences.Count != 0.93 {
		t.Errorf("expected last good rules active, got count %v", before.Raw.Confidences.Count)
	}
}
