// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package vectorstore defines the vector repository contract the query
// pipeline searches against, its error taxonomy, and the Weaviate-backed
// implementation.
package vectorstore

import (
	"context"

	"github.com/AleutianAI/askvec/services/query/datatypes"
)

// Repository is the vector repository collaborator contract.
//
// Description:
//
//	The query pipeline only ever consumes this interface; the concrete
//	store is constructed in main and injected. Implementations must be
//	safe for concurrent use.
type Repository interface {
	// Search runs a parameterized vector search against a collection.
	//
	// The query must carry a non-empty Collection and either a Vector or
	// Text (implementations that cannot embed reject text-only queries with
	// a ValidationError). Failures map onto the StoreError taxonomy:
	// ErrCodeValidation, ErrCodeCollectionNotFound, ErrCodeConnection,
	// ErrCodeSearch.
	Search(ctx context.Context, query datatypes.SearchQuery) (*datatypes.SearchResult, error)

	// TestConnection reports whether the repository is reachable and ready.
	// It never returns an error; unreachable is simply false.
	TestConnection(ctx context.Context) bool
}
