package intent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/k00jax/omi/pkg/provider/embeddings"
)

// ErrNotReady is returned by [SemanticIndex.Score] before Build has succeeded.
var ErrNotReady = errors.New("intent: semantic index not ready")

// SemanticScore is the best-scoring intent for one utterance.
type SemanticScore struct {
	// IntentID and Description identify the winning intent.
	IntentID    string
	Description string

	// Score is the maximum cosine similarity between the utterance and any
	// example phrasing of the winning intent, in [-1, 1].
	Score float64
}

// SemanticIndex holds pre-computed embedding vectors for every example
// phrasing of every registered intent.
//
// The index has an explicit two-state lifecycle: it is constructed
// uninitialized, then [SemanticIndex.Build] embeds all examples in one batch
// call and flips it to ready. Until then Score reports [ErrNotReady] and the
// matcher runs literal-only; no lazy loading happens on the classification
// path, so a slow or failing embeddings backend can never stall a transcript.
//
// Safe for concurrent use after construction.
type SemanticIndex struct {
	provider embeddings.Provider

	mu      sync.RWMutex
	ready   bool
	entries []indexEntry
}

// indexEntry is one embedded example phrasing.
type indexEntry struct {
	intentID    string
	description string
	example     string
	vector      []float32
}

// NewSemanticIndex returns an uninitialized index over provider.
// Call Build before first use.
func NewSemanticIndex(provider embeddings.Provider) *SemanticIndex {
	return &SemanticIndex{provider: provider}
}

// Build embeds every example phrasing of every intent in a single batch and
// marks the index ready. On error the index stays (or reverts to) not ready
// and the previous entries are discarded; callers may retry.
func (ix *SemanticIndex) Build(ctx context.Context, intents []Intent) error {
	var texts []string
	var owners []Intent
	for _, it := range intents {
		for range it.Examples {
			owners = append(owners, it)
		}
		texts = append(texts, it.Examples...)
	}

	ix.mu.Lock()
	ix.ready = false
	ix.entries = nil
	ix.mu.Unlock()

	if len(texts) == 0 {
		ix.mu.Lock()
		ix.ready = true
		ix.mu.Unlock()
		return nil
	}

	vecs, err := ix.provider.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("intent: build semantic index: %w", err)
	}
	if len(vecs) != len(texts) {
		return fmt.Errorf("intent: build semantic index: expected %d vectors, got %d", len(texts), len(vecs))
	}

	entries := make([]indexEntry, len(texts))
	for i, text := range texts {
		entries[i] = indexEntry{
			intentID:    owners[i].ID,
			description: owners[i].Description,
			example:     text,
			vector:      vecs[i],
		}
	}

	ix.mu.Lock()
	ix.entries = entries
	ix.ready = true
	ix.mu.Unlock()

	slog.Info("intent: semantic index ready",
		"intents", len(intents),
		"examples", len(texts),
		"model", ix.provider.ModelID())
	return nil
}

// Ready reports whether Build has completed successfully.
func (ix *SemanticIndex) Ready() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.ready
}

// Score embeds text and returns the intent whose examples are most similar
// to it. The per-intent score is the maximum cosine similarity over that
// intent's examples; the returned SemanticScore carries the best intent
// overall. A ready index with no examples scores zero against everything.
func (ix *SemanticIndex) Score(ctx context.Context, text string) (SemanticScore, error) {
	ix.mu.RLock()
	ready, entries := ix.ready, ix.entries
	ix.mu.RUnlock()

	if !ready {
		return SemanticScore{}, ErrNotReady
	}
	if len(entries) == 0 {
		return SemanticScore{}, nil
	}

	vec, err := ix.provider.Embed(ctx, text)
	if err != nil {
		return SemanticScore{}, fmt.Errorf("intent: embed utterance: %w", err)
	}

	var best SemanticScore
	for _, e := range entries {
		score := cosine(vec, e.vector)
		if best.IntentID == "" || score > best.Score {
			best = SemanticScore{IntentID: e.intentID, Description: e.description, Score: score}
		}
	}
	return best, nil
}

// cosine returns the cosine similarity of two vectors, or 0 when either is
// empty, zero, or the lengths differ.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		va, vb := float64(a[i]), float64(b[i])
		dot += va * vb
		normA += va * va
		normB += vb * vb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
