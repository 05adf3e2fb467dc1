// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command askvec starts the AskVec query API server.
//
// AskVec answers natural-language questions over vector collections with:
//   - Deterministic rule-tier intent classification (no LLM in the loop)
//   - Cross-turn pronoun and collection resolution
//   - Weaviate-backed semantic search with graceful degradation
//   - Template-based answer synthesis that cannot hallucinate
//
// Usage:
//
//	go run ./cmd/askvec
//	go run ./cmd/askvec -port 9090
//
// With a local embedding service:
//
//	EMBEDDING_SERVICE_URL=http://localhost:11434/api/embed go run ./cmd/askvec
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/health
//
//	# Ask a question
//	curl -X POST http://localhost:8080/v1/ask \
//	  -H "Content-Type: application/json" \
//	  -d '{"question": "show me Chris Dyer'\''s work", "collection": "gallery"}'
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/AleutianAI/askvec/services/embedding"
	"github.com/AleutianAI/askvec/services/query"
	queryconfig "github.com/AleutianAI/askvec/services/query/config"
	"github.com/AleutianAI/askvec/services/query/nlp"
	"github.com/AleutianAI/askvec/services/search"
	badgerstore "github.com/AleutianAI/askvec/services/storage/badger"
	"github.com/AleutianAI/askvec/services/vectorstore"
)

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug mode")
	rulesPath := flag.String("rules", "", "Path to an intent rules YAML (hot-reloaded); empty uses the embedded defaults")
	flag.Parse()

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C TraceContext propagation so trace IDs flow from inbound headers
	// through every pipeline stage.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Intent rules: embedded defaults, optionally overridden by a watched
	// file. A broken file never takes the service down; the previous rule
	// set stays live.
	rules := queryconfig.NewRulesStore(queryconfig.LoadDefault())
	if *rulesPath != "" {
		if loaded, err := queryconfig.LoadFile(*rulesPath); err != nil {
			slog.Warn("Rules file invalid, using embedded defaults",
				slog.String("path", *rulesPath),
				slog.String("error", err.Error()))
		} else {
			rules.Replace(loaded)
		}
		go func() {
			if err := queryconfig.WatchFile(ctx, *rulesPath, rules, slog.Default()); err != nil {
				slog.Warn("Rules watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	// Embedding cache BadgerDB. Graceful degradation: if unavailable, the
	// cache runs in in-memory-only mode.
	var cacheDB *badgerstore.DB
	cacheDir := os.Getenv("ASKVEC_CACHE_DIR")
	if cacheDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cacheDir = filepath.Join(home, ".askvec", "cache", "embeddings")
		}
	}
	if cacheDir != "" {
		cfg := badgerstore.DefaultConfig()
		cfg.Path = cacheDir
		db, err := badgerstore.OpenDB(cfg)
		if err != nil {
			slog.Warn("Embedding cache BadgerDB unavailable, persistence disabled",
				slog.String("path", cacheDir),
				slog.String("error", err.Error()))
		} else {
			cacheDB = db
			slog.Info("Embedding cache BadgerDB opened", slog.String("path", cacheDir))
		}
	}

	embedder := embedding.NewCachedProvider(embedding.NewOllamaProvider("", slog.Default()), cacheDB, slog.Default())

	store, err := vectorstore.NewWeaviateStore(vectorstore.DefaultWeaviateConfig(), slog.Default())
	if err != nil {
		slog.Error("Failed to create vector store client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if !store.TestConnection(ctx) {
		slog.Warn("Vector store not reachable at startup; queries will degrade until it comes up")
	}

	orchestrator := search.NewOrchestrator(store, embedder, slog.Default())
	processor := nlp.NewProcessor(rules)
	svc := query.NewService(processor, orchestrator, slog.Default())
	handlers := query.NewHandlers(svc)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("askvec"))
	if *debug {
		router.Use(gin.Logger())
	}

	v1 := router.Group("/v1")
	query.RegisterRoutes(v1, handlers)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	printBanner(*port)

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down AskVec server")
		if cacheDB != nil {
			if err := cacheDB.Close(); err != nil {
				slog.Warn("Failed to close embedding cache BadgerDB", slog.String("error", err.Error()))
			}
		}
		os.Exit(0)
	}()

	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Starting AskVec server", slog.String("address", addr))
	if err := router.Run(addr); err != nil {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func printBanner(port int) {
	banner := `
╔═══════════════════════════════════════════════════════════════════╗
║                         ASKVEC SERVER                             ║
╠═══════════════════════════════════════════════════════════════════╣
║                                                                   ║
║  Conversational queries over vector collections, no LLM needed.   ║
║                                                                   ║
║  Quick Start:                                                     ║
║  ┌─────────────────────────────────────────────────────────────┐  ║
║  │ # Health check                                              │  ║
║  │ curl http://localhost:%d/v1/health                        │  ║
║  │                                                             │  ║
║  │ # Ask a question                                            │  ║
║  │ curl -X POST http://localhost:%d/v1/ask \                 │  ║
║  │   -H "Content-Type: application/json" \                     │  ║
║  │   -d '{"question": "find cats", "collection": "gallery"}'   │  ║
║  └─────────────────────────────────────────────────────────────┘  ║
║                                                                   ║
╚═══════════════════════════════════════════════════════════════════╝
`
	fmt.Printf(banner, port, port)
}
