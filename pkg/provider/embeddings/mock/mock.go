// Package mock provides a test double for the embeddings.Provider interface.
//
// Use Provider to return pre-canned embedding vectors without a live model
// and to verify that the correct texts are submitted for embedding. For tests
// that need a different vector per input (e.g., driving specific cosine
// similarities through the intent matcher), set EmbedFunc or EmbedBatchFunc.
//
// Example:
//
//	p := &mock.Provider{
//	    EmbedFunc: func(_ context.Context, text string) ([]float32, error) {
//	        return vectors[text], nil
//	    },
//	    DimensionsValue: 3,
//	    ModelIDValue:    "test-embed-v1",
//	}
package mock

import (
	"context"
	"sync"

	"github.com/k00jax/omi/pkg/provider/embeddings"
)

// EmbedCall records a single invocation of Embed.
type EmbedCall struct {
	// Ctx is the context passed to Embed.
	Ctx context.Context
	// Text is the string passed to Embed.
	Text string
}

// EmbedBatchCall records a single invocation of EmbedBatch.
type EmbedBatchCall struct {
	// Ctx is the context passed to EmbedBatch.
	Ctx context.Context
	// Texts is a copy of the string slice passed to EmbedBatch.
	Texts []string
}

// Provider is a mock implementation of embeddings.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// EmbedFunc, if non-nil, is called by Embed after the call is recorded and
	// its result is returned. Takes precedence over EmbedResult/EmbedErr.
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)

	// EmbedResult is returned by Embed when EmbedFunc is nil. If nil, a
	// zero-length slice is returned.
	EmbedResult []float32

	// EmbedErr, if non-nil, is returned as the error from Embed when EmbedFunc
	// is nil.
	EmbedErr error

	// EmbedBatchFunc, if non-nil, is called by EmbedBatch after the call is
	// recorded and its result is returned. Takes precedence over
	// EmbedBatchResult/EmbedBatchErr.
	EmbedBatchFunc func(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedBatchResult is returned by EmbedBatch when EmbedBatchFunc is nil.
	// If nil, a slice of nil slices matching len(texts) is returned.
	EmbedBatchResult [][]float32

	// EmbedBatchErr, if non-nil, is returned as the error from EmbedBatch when
	// EmbedBatchFunc is nil.
	EmbedBatchErr error

	// DimensionsValue is returned by Dimensions.
	DimensionsValue int

	// ModelIDValue is returned by ModelID.
	ModelIDValue string

	// --- Call records ---

	// EmbedCalls records every call to Embed in order.
	EmbedCalls []EmbedCall

	// EmbedBatchCalls records every call to EmbedBatch in order.
	EmbedBatchCalls []EmbedBatchCall

	// DimensionsCallCount is the number of times Dimensions was called.
	DimensionsCallCount int

	// ModelIDCallCount is the number of times ModelID was called.
	ModelIDCallCount int
}

// Embed records the call and returns the scripted result.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.EmbedCalls = append(p.EmbedCalls, EmbedCall{Ctx: ctx, Text: text})
	fn := p.EmbedFunc
	result, resErr := p.EmbedResult, p.EmbedErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	return result, resErr
}

// EmbedBatch records the call and returns the scripted result. When neither
// EmbedBatchFunc nor EmbedBatchResult is set, it returns a slice of nil slices
// matching the length of texts.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	cp := make([]string, len(texts))
	copy(cp, texts)

	p.mu.Lock()
	p.EmbedBatchCalls = append(p.EmbedBatchCalls, EmbedBatchCall{Ctx: ctx, Texts: cp})
	fn := p.EmbedBatchFunc
	result, resErr := p.EmbedBatchResult, p.EmbedBatchErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, texts)
	}
	if resErr != nil {
		return nil, resErr
	}
	if result != nil {
		return result, nil
	}
	// Return a slice of nil slices so the caller gets the right length.
	return make([][]float32, len(texts)), nil
}

// Dimensions records the call and returns DimensionsValue.
func (p *Provider) Dimensions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.DimensionsCallCount++
	return p.DimensionsValue
}

// ModelID records the call and returns ModelIDValue.
func (p *Provider) ModelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ModelIDCallCount++
	return p.ModelIDValue
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = nil
	p.EmbedBatchCalls = nil
	p.DimensionsCallCount = 0
	p.ModelIDCallCount = 0
}

// Ensure Provider implements embeddings.Provider at compile time.
var _ embeddings.Provider = (*Provider)(nil)
