// Package memory defines the storage contracts for captured memories.
//
// Memories flow through two independent paths:
//
//   - Write path ([Writer]): durable persistence of a new [Record]. The
//     primary writer is the remote Omi conversation API
//     (pkg/memory/remote); when it is unreachable the local append-only
//     log (pkg/memory/locallog) takes over. The failover policy lives in
//     internal/resilience, not here.
//   - Archive path ([Archive]): a searchable copy of every created memory,
//     optionally embedded for vector similarity search. Backed by
//     PostgreSQL with pgvector (pkg/memory/postgres) and surfaced to MCP
//     clients via the search_memories tool.
//
// All interfaces are public so that external packages can supply alternative
// backends without depending on pipeline internals. Every implementation must
// be safe for concurrent use.
package memory

import (
	"context"
	"time"
)

// SearchOpts narrows an archive search to a subset of stored records.
// All non-zero fields are applied as AND conditions.
type SearchOpts struct {
	// UserID restricts results to memories owned by a specific user.
	// An empty string matches all users.
	UserID string

	// Category restricts results to a single category.
	// An empty string matches all categories.
	Category string

	// After filters records created after this instant (exclusive).
	// A zero Time disables the lower bound.
	After time.Time

	// Before filters records created before this instant (exclusive).
	// A zero Time disables the upper bound.
	Before time.Time

	// Limit caps the number of results returned.
	// A value of 0 means the implementation may apply its own default.
	Limit int
}

// SimilarResult pairs a retrieved record with its vector-space distance from
// the query embedding. Lower Distance values indicate higher semantic
// similarity.
type SimilarResult struct {
	// Record is the retrieved memory.
	Record Record

	// Distance is the cosine distance to the query embedding.
	Distance float64
}

// Writer persists a new memory record.
//
// Write must be atomic from the caller's perspective: on a nil return the
// record is durably stored; on an error nothing observable was written.
// Implementations must be safe for concurrent use.
type Writer interface {
	// Write persists rec. A zero rec.CreatedAt is replaced with the
	// current time.
	Write(ctx context.Context, rec Record) error
}

// Archive is the searchable copy of all created memories.
//
// Unlike [Writer], the archive is best-effort: the pipeline treats archive
// failures as degraded operation rather than memory loss. Implementations
// must be safe for concurrent use.
type Archive interface {
	// Store appends rec to the archive. embedding is the vector
	// representation of rec.Text and may be nil when no embedding
	// provider is configured; records without embeddings are excluded
	// from SearchSimilar results.
	Store(ctx context.Context, rec Record, embedding []float32) error

	// Search performs a full-text search over stored record texts,
	// filtered by opts. An empty query matches all records. Results are
	// ordered newest first.
	// Returns an empty (non-nil) slice when no records match.
	Search(ctx context.Context, query string, opts SearchOpts) ([]Record, error)

	// SearchSimilar finds the topK records whose embeddings are closest
	// to the query embedding, filtered by opts (opts.Limit is ignored in
	// favour of topK). Results are ordered by ascending Distance (most
	// similar first).
	// Returns an empty (non-nil) slice when no records match.
	SearchSimilar(ctx context.Context, embedding []float32, topK int, opts SearchOpts) ([]SimilarResult, error)
}
