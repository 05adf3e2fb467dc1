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
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchFile reloads the rule set whenever path changes, swapping the result
// into store.
//
// Description:
//
//	Runs until ctx is canceled. A rules file that fails to parse or
//	validate is logged and skipped — the previous rule set stays active, so
//	a bad edit never takes classification down. The watch is on the parent
//	directory, filtered to the rules filename: editors that save via
//	rename-replace (vim, sed -i) swap the inode, and a watch on the file
//	itself would go stale after the first save.
//
// Inputs:
//
//	ctx - Cancels the watch loop.
//	path - Rules YAML file to watch.
//	store - Store receiving reloaded rule sets. Must not be nil.
//	logger - Logger instance. Nil uses slog.Default().
//
// Outputs:
//
//	error - Non-nil only if the watcher cannot be established.
func WatchFile(ctx context.Context, path string, store *RulesStore, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return err
	}
	base := filepath.Base(path)

	go func() {
		defer func() {
			if err := watcher.Close(); err != nil {
				logger.Warn("failed to close rules watcher", slog.String("error", err.Error()))
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != base {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				rules, err := LoadFile(path)
				if err != nil {
					logger.Warn("intent rules reload failed, keeping previous rules",
						slog.String("path", path),
						slog.String("error", err.Error()),
					)
					continue
				}
				store.Replace(rules)
				logger.Info("intent rules reloaded", slog.String("path", path))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("rules watcher error", slog.String("error", err.Error()))
			}
		}
	}()

	return nil
}
