// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package embedding

// =============================================================================
// CachedProvider — Embedding Persistence
// =============================================================================
//
// Query embeddings are cheap individually (~50ms against a local Ollama) but
// conversations repeat themselves: follow-up turns re-embed near-identical
// reformulated text, and health dashboards re-issue the same probe queries.
// This cache persists computed vectors in BadgerDB between service restarts.
//
// Design choices:
//
//	1. BadgerDB (not the vector store): query vectors are service
//	   infrastructure, not user data. A point lookup of a single cached
//	   vector does not benefit from ANN indexing, and caching must keep
//	   working when the vector store is down — degraded answers still embed
//	   their queries on the next retry.
//
//	2. Content hash as cache key: SHA256(model + NUL + text). A model change
//	   produces different keys, so stale vectors are never served across a
//	   model swap; they simply expire via TTL.
//
//	3. BadgerDB native TTL: 7-day expiry is enforced by BadgerDB's GC, not
//	   application code. Expired keys read as ErrKeyNotFound, which the cache
//	   treats as a miss.
//
// Storage layout:
//
//	embed/v1/{sha256}  →  gob-encoded []float32 (unit-normalized)
//	                      TTL: 7 days

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
	"golang.org/x/sync/errgroup"

	badgerstore "github.com/AleutianAI/askvec/services/storage/badger"
)

// cacheDefaultTTL is the lifetime of a persisted embedding entry.
const cacheDefaultTTL = 7 * 24 * time.Hour

// cacheKeyPrefix is prepended to the content hash to form the BadgerDB key.
// Versioned (v1) to allow future format changes without collision.
const cacheKeyPrefix = "embed/v1/"

// warmConcurrency is the number of parallel provider calls during Warm.
const warmConcurrency = 10

// errCacheMiss distinguishes "key not found" from a genuine storage error.
var errCacheMiss = errors.New("cache miss")

// CachedProvider wraps a Provider with an in-memory map plus optional
// BadgerDB persistence.
//
// Description:
//
//	Lookup order: in-memory map → BadgerDB → the wrapped provider. Both
//	cache layers are write-through. The store is nil-safe: a nil DB leaves
//	the cache in in-memory-only mode, which is the correct behavior for
//	tests and for deployments without a cache directory configured.
//
// Thread Safety: Safe for concurrent use.
type CachedProvider struct {
	inner  Provider
	db     *badgerstore.DB
	ttl    time.Duration
	logger *slog.Logger

	mu  sync.RWMutex
	mem map[string][]float32
}

// NewCachedProvider wraps inner with caching.
//
// Inputs:
//
//	inner - The provider that actually computes vectors. Must not be nil.
//	db - Opened BadgerDB wrapper. Nil disables persistence.
//	logger - Logger instance. Nil uses slog.Default().
func NewCachedProvider(inner Provider, db *badgerstore.DB, logger *slog.Logger) *CachedProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedProvider{
		inner:  inner,
		db:     db,
		ttl:    cacheDefaultTTL,
		logger: logger,
		mem:    make(map[string][]float32),
	}
}

// Model returns the wrapped provider's model identifier.
func (c *CachedProvider) Model() string {
	return c.inner.Model()
}

// GenerateEmbedding returns a cached vector when available, otherwise
// computes one and writes it through both cache layers.
//
// Persistence failures are logged as warnings and never fail the call — the
// vector has already been computed.
func (c *CachedProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	key := contentHash(c.inner.Model(), text)

	c.mu.RLock()
	cached, ok := c.mem[key]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	if vec, err := c.loadPersisted(ctx, key); err != nil {
		c.logger.Warn("embedding cache load failed",
			slog.String("hash", shortHash(key)),
			slog.String("error", err.Error()),
		)
	} else if vec != nil {
		c.remember(key, vec)
		return vec, nil
	}

	vec, err := c.inner.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}

	c.remember(key, vec)
	if err := c.savePersisted(ctx, key, vec); err != nil {
		c.logger.Warn("embedding cache save failed",
			slog.String("hash", shortHash(key)),
			slog.String("error", err.Error()),
		)
	}
	return vec, nil
}

// Warm pre-computes embeddings for a list of texts in parallel.
//
// Description:
//
//	Used at startup to pre-load vectors for known probe queries. Individual
//	failures are logged and skipped; Warm only fails when the context is
//	canceled.
func (c *CachedProvider) Warm(ctx context.Context, texts []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(warmConcurrency)

	for _, text := range texts {
		g.Go(func() error {
			if _, err := c.GenerateEmbedding(gctx, text); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.logger.Warn("embedding warm-up skipped a text",
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}
	return g.Wait()
}

// remember writes a vector into the in-memory layer.
func (c *CachedProvider) remember(key string, vec []float32) {
	c.mu.Lock()
	c.mem[key] = vec
	c.mu.Unlock()
}

// loadPersisted reads a vector from BadgerDB. Returns (nil, nil) on miss or
// when persistence is disabled.
func (c *CachedProvider) loadPersisted(ctx context.Context, key string) ([]float32, error) {
	if c.db == nil {
		return nil, nil
	}

	var raw []byte
	err := c.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get([]byte(cacheKeyPrefix + key))
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return errCacheMiss
		}
		if err != nil {
			return fmt.Errorf("get cache key: %w", err)
		}
		raw, err = item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("copy value: %w", err)
		}
		return nil
	})

	if errors.Is(err, errCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("embedding cache load: %w", err)
	}

	var vec []float32
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&vec); err != nil {
		return nil, fmt.Errorf("embedding cache decode: %w", err)
	}
	return vec, nil
}

// savePersisted writes a vector to BadgerDB with the configured TTL. No-op
// when persistence is disabled.
func (c *CachedProvider) savePersisted(ctx context.Context, key string, vec []float32) error {
	if c.db == nil {
		return nil
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(vec); err != nil {
		return fmt.Errorf("embedding cache encode: %w", err)
	}

	return c.db.WithUpdateTxn(ctx, func(txn *dgbadger.Txn) error {
		entry := dgbadger.NewEntry([]byte(cacheKeyPrefix+key), buf.Bytes()).WithTTL(c.ttl)
		return txn.SetEntry(entry)
	})
}

// contentHash returns the hex SHA256 of model + NUL + text.
func contentHash(model, text string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// shortHash truncates a hash for log output.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
