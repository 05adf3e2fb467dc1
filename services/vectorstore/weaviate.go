// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/AleutianAI/askvec/services/query/datatypes"
)

// defaultPayloadFields are the payload properties requested from every class
// when the deployment does not configure its own list.
var defaultPayloadFields = []string{"name", "prompt", "url"}

// WeaviateConfig configures the Weaviate-backed repository.
type WeaviateConfig struct {
	// Host is the Weaviate host:port. Default: localhost:8080.
	Host string

	// Scheme is http or https. Default: http.
	Scheme string

	// PayloadFields are the payload properties to request per hit.
	// Default: name, prompt, url.
	PayloadFields []string

	// RequestTimeout bounds each HTTP call to Weaviate. Default: 10s.
	RequestTimeout time.Duration
}

// DefaultWeaviateConfig returns a config populated from the environment.
//
// Description:
//
//	Reads WEAVIATE_HOST, WEAVIATE_SCHEME, and ASKVEC_PAYLOAD_FIELDS
//	(comma-separated), falling back to local defaults.
func DefaultWeaviateConfig() WeaviateConfig {
	cfg := WeaviateConfig{
		Host:           "localhost:8080",
		Scheme:         "http",
		PayloadFields:  defaultPayloadFields,
		RequestTimeout: 10 * time.Second,
	}
	if host := os.Getenv("WEAVIATE_HOST"); host != "" {
		cfg.Host = host
	}
	if scheme := os.Getenv("WEAVIATE_SCHEME"); scheme != "" {
		cfg.Scheme = scheme
	}
	if fields := os.Getenv("ASKVEC_PAYLOAD_FIELDS"); fields != "" {
		var parsed []string
		for _, f := range strings.Split(fields, ",") {
			if f = strings.TrimSpace(f); f != "" {
				parsed = append(parsed, f)
			}
		}
		if len(parsed) > 0 {
			cfg.PayloadFields = parsed
		}
	}
	return cfg
}

// WeaviateStore is the Weaviate-backed Repository implementation.
//
// Description:
//
//	Searches run as GraphQL Get queries with a nearVector argument and
//	optional exact-match where filters. Collection names are mapped to
//	Weaviate class names by capitalizing the first rune ("midjourneysample"
//	→ "Midjourneysample").
//
// Thread Safety: Safe for concurrent use; the underlying client is stateless
// per call.
type WeaviateStore struct {
	client *weaviate.Client
	cfg    WeaviateConfig
	logger *slog.Logger
}

// NewWeaviateStore creates a WeaviateStore from the given config.
//
// Inputs:
//
//	cfg - Connection and payload config. Zero values use defaults.
//	logger - Logger instance. Nil uses slog.Default().
//
// Outputs:
//
//	*WeaviateStore - The constructed store.
//	error - Non-nil if the client cannot be constructed.
func NewWeaviateStore(cfg WeaviateConfig, logger *slog.Logger) (*WeaviateStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Host == "" {
		cfg.Host = "localhost:8080"
	}
	if cfg.Scheme == "" {
		cfg.Scheme = "http"
	}
	if len(cfg.PayloadFields) == 0 {
		cfg.PayloadFields = defaultPayloadFields
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:             cfg.Host,
		Scheme:           cfg.Scheme,
		ConnectionClient: &http.Client{Timeout: cfg.RequestTimeout},
	})
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}

	return &WeaviateStore{client: client, cfg: cfg, logger: logger}, nil
}

// Search runs a nearVector GraphQL query against the query's collection.
//
// Description:
//
//	Requires a non-empty collection, a vector, and a positive limit. Hits
//	are scored as (1 - distance); hits below ScoreThreshold are dropped
//	client-side so the behavior is identical across distance metrics.
//
// Outputs:
//
//	*datatypes.SearchResult - Hits best-first. Never nil on success.
//	error - StoreError with the appropriate code on failure.
func (s *WeaviateStore) Search(ctx context.Context, query datatypes.SearchQuery) (*datatypes.SearchResult, error) {
	if strings.TrimSpace(query.Collection) == "" {
		return nil, NewValidationError("search requires a collection")
	}
	if len(query.Vector) == 0 {
		return nil, NewValidationError("search requires a query vector")
	}
	if query.Limit <= 0 {
		return nil, NewValidationError("search limit must be positive, got %d", query.Limit)
	}

	className := toClassName(query.Collection)
	start := time.Now()

	get := s.client.GraphQL().Get().
		WithClassName(className).
		WithFields(s.hitFields()...).
		WithNearVector(s.client.GraphQL().NearVectorArgBuilder().WithVector(query.Vector)).
		WithLimit(query.Limit)

	if where := buildWhere(query.Filters); where != nil {
		get = get.WithWhere(where)
	}

	res, err := get.Do(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewConnectionError("weaviate search timed out", err)
		}
		return nil, NewConnectionError("weaviate unreachable", err)
	}
	if len(res.Errors) > 0 {
		msg := res.Errors[0].Message
		if isUnknownClassMessage(msg) {
			return nil, NewCollectionNotFoundError(query.Collection, fmt.Errorf("%s", msg))
		}
		return nil, NewSearchError("weaviate graphql error", fmt.Errorf("%s", msg))
	}

	hits := s.parseHits(res.Data, className)
	if query.ScoreThreshold > 0 {
		filtered := hits[:0]
		for _, h := range hits {
			if h.Score >= query.ScoreThreshold {
				filtered = append(filtered, h)
			}
		}
		hits = filtered
	}

	return &datatypes.SearchResult{
		Hits:            hits,
		ExecutionTimeMs: time.Since(start).Milliseconds(),
		TotalCount:      len(hits),
	}, nil
}

// TestConnection reports whether Weaviate answers its readiness probe.
func (s *WeaviateStore) TestConnection(ctx context.Context) bool {
	ready, err := s.client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		s.logger.Debug("weaviate readiness probe failed", slog.String("error", err.Error()))
		return false
	}
	return ready
}

// hitFields builds the GraphQL field list: configured payload properties
// plus _additional{id, distance}.
func (s *WeaviateStore) hitFields() []graphql.Field {
	fields := make([]graphql.Field, 0, len(s.cfg.PayloadFields)+1)
	for _, name := range s.cfg.PayloadFields {
		fields = append(fields, graphql.Field{Name: name})
	}
	fields = append(fields, graphql.Field{
		Name: "_additional",
		Fields: []graphql.Field{
			{Name: "id"},
			{Name: "distance"},
		},
	})
	return fields
}

// buildWhere converts exact-match field filters into a where clause.
// Returns nil when there are no filters.
func buildWhere(fieldFilters map[string]string) *filters.WhereBuilder {
	if len(fieldFilters) == 0 {
		return nil
	}
	operands := make([]*filters.WhereBuilder, 0, len(fieldFilters))
	for field, value := range fieldFilters {
		operands = append(operands, filters.Where().
			WithPath([]string{field}).
			WithOperator(filters.Equal).
			WithValueText(value))
	}
	if len(operands) == 1 {
		return operands[0]
	}
	return filters.Where().WithOperator(filters.And).WithOperands(operands)
}

// parseHits walks the GraphQL Get response into Hit values.
//
// The response shape is Data["Get"][ClassName] = []object, where each object
// holds the requested payload properties plus an _additional map with id and
// distance.
func (s *WeaviateStore) parseHits(data map[string]models.JSONObject, className string) []datatypes.Hit {
	get, ok := data["Get"].(map[string]any)
	if !ok {
		return nil
	}
	objs, ok := get[className].([]any)
	if !ok {
		return nil
	}

	hits := make([]datatypes.Hit, 0, len(objs))
	for _, raw := range objs {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		hit := datatypes.Hit{Payload: make(map[string]any, len(obj))}
		for k, v := range obj {
			if k == "_additional" {
				continue
			}
			hit.Payload[k] = v
		}
		if add, ok := obj["_additional"].(map[string]any); ok {
			if id, ok := add["id"].(string); ok {
				hit.ID = id
			}
			if dist, ok := add["distance"].(float64); ok {
				hit.Score = 1 - dist
			}
		}
		hits = append(hits, hit)
	}
	return hits
}

// toClassName maps a collection name to a Weaviate class name by
// capitalizing the first rune.
func toClassName(collection string) string {
	runes := []rune(strings.TrimSpace(collection))
	if len(runes) == 0 {
		return ""
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// isUnknownClassMessage recognizes the GraphQL errors Weaviate emits for a
// class that does not exist in the schema.
func isUnknownClassMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "cannot query field") ||
		strings.Contains(lower, "could not find class") ||
		strings.Contains(lower, "class not found")
}
