package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/k00jax/omi/pkg/memory"
)

// defaultSearchLimit caps result sets when the caller does not specify a
// limit.
const defaultSearchLimit = 50

// Store implements [memory.Archive]. It appends rec to the memories table.
// embedding may be nil, in which case the row is stored without a vector and
// is excluded from [Store.SearchSimilar] results.
func (s *Store) Store(ctx context.Context, rec memory.Record, embedding []float32) error {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	meta := rec.Metadata
	if meta == nil {
		meta = map[string]any{}
	}

	var lat, lon *float64
	if rec.Geolocation != nil {
		lat = &rec.Geolocation.Latitude
		lon = &rec.Geolocation.Longitude
	}

	var vec any
	if len(embedding) > 0 {
		vec = pgvector.NewVector(embedding)
	}

	const q = `
		INSERT INTO memories
		    (text, user_id, category, metadata, latitude, longitude, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, q,
		rec.Text,
		rec.UserID,
		rec.Category,
		meta,
		lat,
		lon,
		vec,
		created,
	)
	if err != nil {
		return fmt.Errorf("postgres archive: store: %w", err)
	}
	return nil
}

// Search implements [memory.Archive]. It performs a PostgreSQL full-text
// search over the text column and applies optional filters from opts. An
// empty query skips the full-text condition and lists records subject only to
// the filters.
//
// The query is passed to plainto_tsquery so no special operator syntax is
// required. Results are ordered newest first.
func (s *Store) Search(ctx context.Context, query string, opts memory.SearchOpts) ([]memory.Record, error) {
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var conditions []string
	if query != "" {
		conditions = append(conditions,
			"to_tsvector('english', text) @@ plainto_tsquery('english', "+next(query)+")")
	}
	if opts.UserID != "" {
		conditions = append(conditions, "user_id = "+next(opts.UserID))
	}
	if opts.Category != "" {
		conditions = append(conditions, "category = "+next(opts.Category))
	}
	if !opts.After.IsZero() {
		conditions = append(conditions, "created_at > "+next(opts.After))
	}
	if !opts.Before.IsZero() {
		conditions = append(conditions, "created_at < "+next(opts.Before))
	}

	q := "SELECT text, user_id, category, metadata, latitude, longitude, created_at\n" +
		"FROM   memories\n"
	if len(conditions) > 0 {
		q += "WHERE  " + strings.Join(conditions, "\n  AND  ") + "\n"
	}
	q += "ORDER  BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	args = append(args, limit)
	q += fmt.Sprintf("\nLIMIT  $%d", len(args))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres archive: search: %w", err)
	}
	return collectRecords(rows)
}

// SearchSimilar implements [memory.Archive]. It finds the topK records whose
// embeddings are closest (cosine distance) to the supplied query embedding,
// optionally filtered by opts. Records stored without an embedding never
// match.
//
// Results are ordered by ascending cosine distance (most similar first).
func (s *Store) SearchSimilar(ctx context.Context, embedding []float32, topK int, opts memory.SearchOpts) ([]memory.SimilarResult, error) {
	queryVec := pgvector.NewVector(embedding)

	args := []any{queryVec} // $1 = query vector
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{"embedding IS NOT NULL"}
	if opts.UserID != "" {
		conditions = append(conditions, "user_id = "+next(opts.UserID))
	}
	if opts.Category != "" {
		conditions = append(conditions, "category = "+next(opts.Category))
	}
	if !opts.After.IsZero() {
		conditions = append(conditions, "created_at > "+next(opts.After))
	}
	if !opts.Before.IsZero() {
		conditions = append(conditions, "created_at < "+next(opts.Before))
	}

	if topK <= 0 {
		topK = defaultSearchLimit
	}
	args = append(args, topK)
	limitArg := fmt.Sprintf("$%d", len(args))

	q := fmt.Sprintf(`
		SELECT text, user_id, category, metadata, latitude, longitude, created_at,
		       embedding <=> $1 AS distance
		FROM   memories
		WHERE  %s
		ORDER  BY distance
		LIMIT  %s`, strings.Join(conditions, "\n  AND  "), limitArg)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres archive: search similar: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.SimilarResult, error) {
		var (
			sr       memory.SimilarResult
			lat, lon *float64
		)
		if err := row.Scan(
			&sr.Record.Text,
			&sr.Record.UserID,
			&sr.Record.Category,
			&sr.Record.Metadata,
			&lat,
			&lon,
			&sr.Record.CreatedAt,
			&sr.Distance,
		); err != nil {
			return memory.SimilarResult{}, err
		}
		if lat != nil && lon != nil {
			sr.Record.Geolocation = &memory.Geolocation{Latitude: *lat, Longitude: *lon}
		}
		return sr, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres archive: scan rows: %w", err)
	}
	if results == nil {
		results = []memory.SimilarResult{}
	}
	return results, nil
}

// collectRecords scans pgx rows into a slice of Record values.
func collectRecords(rows pgx.Rows) ([]memory.Record, error) {
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.Record, error) {
		var (
			rec      memory.Record
			lat, lon *float64
		)
		if err := row.Scan(
			&rec.Text,
			&rec.UserID,
			&rec.Category,
			&rec.Metadata,
			&lat,
			&lon,
			&rec.CreatedAt,
		); err != nil {
			return memory.Record{}, err
		}
		if lat != nil && lon != nil {
			rec.Geolocation = &memory.Geolocation{Latitude: *lat, Longitude: *lon}
		}
		return rec, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres archive: scan rows: %w", err)
	}
	if records == nil {
		records = []memory.Record{}
	}
	return records, nil
}
