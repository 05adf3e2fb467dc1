// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger wraps BadgerDB behind a small transactional API used for
// service-local caches. The wrapper owns context checks and option defaults;
// callers only see read/update transaction closures.
package badger

import (
	"context"
	"fmt"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// Config controls how the DB is opened.
type Config struct {
	// Path is the on-disk directory for the DB. Required.
	Path string

	// InMemory opens an ephemeral DB with no files. Used by tests.
	InMemory bool

	// GCInterval is how often value-log garbage collection runs.
	// Default: 10 minutes. Zero uses the default; negative disables GC.
	GCInterval time.Duration
}

// DefaultConfig returns the standard cache configuration.
func DefaultConfig() Config {
	return Config{GCInterval: 10 * time.Minute}
}

// DB is an opened BadgerDB instance plus its GC loop.
//
// Thread Safety: Safe for concurrent use. BadgerDB transactions are
// per-goroutine.
type DB struct {
	db     *dgbadger.DB
	stopGC chan struct{}
}

// OpenDB opens (or creates) a BadgerDB at cfg.Path.
//
// Description:
//
//	Badger's own logger is disabled — its output is chatty and unstructured;
//	callers log open/close at the slog level instead. A background goroutine
//	runs value-log GC on the configured interval until Close is called.
//
// Outputs:
//
//	*DB - The opened DB. Never nil on success.
//	error - Non-nil if the directory cannot be opened.
func OpenDB(cfg Config) (*DB, error) {
	var opts dgbadger.Options
	if cfg.InMemory {
		opts = dgbadger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("badger: config path is required")
		}
		opts = dgbadger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(nil)

	inner, err := dgbadger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger open %q: %w", cfg.Path, err)
	}

	db := &DB{db: inner, stopGC: make(chan struct{})}

	interval := cfg.GCInterval
	if interval == 0 {
		interval = 10 * time.Minute
	}
	if interval > 0 && !cfg.InMemory {
		go db.runGC(interval)
	}

	return db, nil
}

// WithReadTxn runs fn inside a read-only transaction.
func (d *DB) WithReadTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.View(fn)
}

// WithUpdateTxn runs fn inside a read-write transaction.
func (d *DB) WithUpdateTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.Update(fn)
}

// Close stops the GC loop and closes the underlying DB.
func (d *DB) Close() error {
	close(d.stopGC)
	return d.db.Close()
}

// runGC periodically reclaims value-log space. ErrNoRewrite is the normal
// "nothing to collect" result and is ignored.
func (d *DB) runGC(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-d.stopGC:
			return
		case <-ticker.C:
			_ = d.db.RunValueLogGC(0.5)
		}
	}
}
