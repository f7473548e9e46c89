// Package postgres provides the PostgreSQL-backed implementation of the
// memory archive ([memory.Archive]).
//
// Every created memory lands in a single memories table carrying the record
// fields, a JSONB metadata document, and an optional pgvector embedding. A
// GIN full-text index serves keyword search; an HNSW index serves approximate
// nearest-neighbour search over the embedded subset. The pgvector extension
// must be available in the target database; [Migrate] installs it
// automatically via CREATE EXTENSION IF NOT EXISTS.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn, 1536)
//	if err != nil { … }
//	defer store.Close()
//
//	_ = store.Store(ctx, rec, embedding)
//
//	hits, _ := store.Search(ctx, "coffee", memory.SearchOpts{Category: "note"})
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ddlMemories returns the archive DDL with the embedding dimension
// substituted. The vector dimension is baked into the column type at schema
// creation time.
func ddlMemories(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS memories (
    id          BIGSERIAL    PRIMARY KEY,
    text        TEXT         NOT NULL,
    user_id     TEXT         NOT NULL DEFAULT '',
    category    TEXT         NOT NULL DEFAULT '',
    metadata    JSONB        NOT NULL DEFAULT '{}',
    latitude    DOUBLE PRECISION,
    longitude   DOUBLE PRECISION,
    embedding   vector(%d),
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_memories_user_id
    ON memories (user_id);

CREATE INDEX IF NOT EXISTS idx_memories_category
    ON memories (category);

CREATE INDEX IF NOT EXISTS idx_memories_created_at
    ON memories (created_at);

CREATE INDEX IF NOT EXISTS idx_memories_fts
    ON memories USING GIN (to_tsvector('english', text));

CREATE INDEX IF NOT EXISTS idx_memories_embedding
    ON memories USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures the archive table, indexes, and the pgvector
// extension exist. It is idempotent (CREATE TABLE IF NOT EXISTS / CREATE
// INDEX IF NOT EXISTS) and safe to call on every application start.
//
// embeddingDimensions must match the vector model configured for your
// deployment. Changing this value after the first migration requires a manual
// schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	if _, err := pool.Exec(ctx, ddlMemories(embeddingDimensions)); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}
