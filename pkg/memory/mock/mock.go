// Package mock provides in-memory test doubles for the memory storage
// interfaces.
//
// Each mock records every method call for assertion in tests and exposes
// exported fields that control what the mock returns. All mocks are safe for
// concurrent use via an internal [sync.Mutex].
//
// Typical usage:
//
//	remote := &mock.Writer{WriteErr: errors.New("unreachable")}
//	local := &mock.Writer{}
//
//	// inject both into the system under test …
//
//	if got := len(local.Written()); got != 1 {
//	    t.Errorf("expected 1 local write, got %d", got)
//	}
package mock

import (
	"context"
	"sync"

	"github.com/k00jax/omi/pkg/memory"
)

// ─────────────────────────────────────────────────────────────────────────────
// Writer mock
// ─────────────────────────────────────────────────────────────────────────────

// Writer is a configurable test double for [memory.Writer].
//
// When WriteFunc is set it decides the outcome of every call; otherwise
// WriteErr is returned (nil meaning success). Every record passed to Write is
// retained and can be inspected via [Writer.Written].
type Writer struct {
	mu      sync.Mutex
	written []memory.Record

	// WriteFunc, when non-nil, is invoked for each Write call after the
	// record is recorded. It takes precedence over WriteErr.
	WriteFunc func(ctx context.Context, rec memory.Record) error

	// WriteErr is returned by [Writer.Write] when WriteFunc is nil.
	WriteErr error
}

var _ memory.Writer = (*Writer)(nil)

// Write implements [memory.Writer].
func (m *Writer) Write(ctx context.Context, rec memory.Record) error {
	m.mu.Lock()
	m.written = append(m.written, rec)
	fn := m.WriteFunc
	err := m.WriteErr
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, rec)
	}
	return err
}

// Written returns a copy of all records passed to Write, in call order.
func (m *Writer) Written() []memory.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]memory.Record, len(m.written))
	copy(out, m.written)
	return out
}

// WriteCount returns how many times Write was invoked.
func (m *Writer) WriteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.written)
}

// Reset clears all recorded writes without altering response configuration.
func (m *Writer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Archive mock
// ─────────────────────────────────────────────────────────────────────────────

// StoreCall records the arguments of a single Archive.Store invocation.
type StoreCall struct {
	Record    memory.Record
	Embedding []float32
}

// SearchCall records the arguments of a single Archive.Search invocation.
type SearchCall struct {
	Query string
	Opts  memory.SearchOpts
}

// SearchSimilarCall records the arguments of a single Archive.SearchSimilar
// invocation.
type SearchSimilarCall struct {
	Embedding []float32
	TopK      int
	Opts      memory.SearchOpts
}

// Archive is a configurable test double for [memory.Archive].
// All exported *Err fields default to nil (success); all exported *Result
// fields default to nil (empty non-nil slice returned).
type Archive struct {
	mu sync.Mutex

	storeCalls         []StoreCall
	searchCalls        []SearchCall
	searchSimilarCalls []SearchSimilarCall

	// StoreFunc, when non-nil, is invoked for each Store call after the
	// arguments are recorded. It takes precedence over StoreErr.
	StoreFunc func(ctx context.Context, rec memory.Record, embedding []float32) error

	// StoreErr is returned by [Archive.Store] when StoreFunc is nil.
	StoreErr error

	// SearchResult is returned by [Archive.Search].
	// When nil, Search returns an empty non-nil slice.
	SearchResult []memory.Record

	// SearchErr is returned by [Archive.Search] when non-nil.
	SearchErr error

	// SearchSimilarResult is returned by [Archive.SearchSimilar].
	// When nil, SearchSimilar returns an empty non-nil slice.
	SearchSimilarResult []memory.SimilarResult

	// SearchSimilarErr is returned by [Archive.SearchSimilar] when non-nil.
	SearchSimilarErr error
}

var _ memory.Archive = (*Archive)(nil)

// Store implements [memory.Archive].
func (m *Archive) Store(ctx context.Context, rec memory.Record, embedding []float32) error {
	m.mu.Lock()
	emb := make([]float32, len(embedding))
	copy(emb, embedding)
	if embedding == nil {
		emb = nil
	}
	m.storeCalls = append(m.storeCalls, StoreCall{Record: rec, Embedding: emb})
	fn := m.StoreFunc
	err := m.StoreErr
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, rec, embedding)
	}
	return err
}

// Search implements [memory.Archive].
func (m *Archive) Search(_ context.Context, query string, opts memory.SearchOpts) ([]memory.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchCalls = append(m.searchCalls, SearchCall{Query: query, Opts: opts})
	if m.SearchResult == nil {
		return []memory.Record{}, m.SearchErr
	}
	out := make([]memory.Record, len(m.SearchResult))
	copy(out, m.SearchResult)
	return out, m.SearchErr
}

// SearchSimilar implements [memory.Archive].
func (m *Archive) SearchSimilar(_ context.Context, embedding []float32, topK int, opts memory.SearchOpts) ([]memory.SimilarResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	emb := make([]float32, len(embedding))
	copy(emb, embedding)
	m.searchSimilarCalls = append(m.searchSimilarCalls, SearchSimilarCall{Embedding: emb, TopK: topK, Opts: opts})
	if m.SearchSimilarResult == nil {
		return []memory.SimilarResult{}, m.SearchSimilarErr
	}
	out := make([]memory.SimilarResult, len(m.SearchSimilarResult))
	copy(out, m.SearchSimilarResult)
	return out, m.SearchSimilarErr
}

// StoreCalls returns a copy of all recorded Store invocations.
func (m *Archive) StoreCalls() []StoreCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]StoreCall, len(m.storeCalls))
	copy(out, m.storeCalls)
	return out
}

// SearchCalls returns a copy of all recorded Search invocations.
func (m *Archive) SearchCalls() []SearchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SearchCall, len(m.searchCalls))
	copy(out, m.searchCalls)
	return out
}

// SearchSimilarCalls returns a copy of all recorded SearchSimilar invocations.
func (m *Archive) SearchSimilarCalls() []SearchSimilarCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SearchSimilarCall, len(m.searchSimilarCalls))
	copy(out, m.searchSimilarCalls)
	return out
}

// Reset clears all recorded calls without altering response configuration.
func (m *Archive) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storeCalls = nil
	m.searchCalls = nil
	m.searchSimilarCalls = nil
}
