package resilience

import (
	"context"

	"github.com/k00jax/omi/pkg/memory"
)

// MemoryFailover implements [memory.Writer] with remote-first,
// local-fallback ordering: a memory write succeeds when any backend accepts
// it, and fails only when every backend refuses. The remote conversation API
// is typically the primary and the local append-only log the fallback, so a
// network outage degrades to local capture instead of losing memories.
//
// Each backend has its own circuit breaker: once the remote has failed
// MaxFailures times in a row, writes go straight to the fallback until the
// reset timeout elapses.
type MemoryFailover struct {
	group *FallbackGroup[memory.Writer]
}

var _ memory.Writer = (*MemoryFailover)(nil)

// NewMemoryFailover creates a [MemoryFailover] with primary as the preferred
// backend.
func NewMemoryFailover(primary memory.Writer, primaryName string, cbCfg CircuitBreakerConfig) *MemoryFailover {
	return &MemoryFailover{
		group: NewFallbackGroup(primary, primaryName, cbCfg),
	}
}

// AddFallback registers an additional write backend. Fallbacks are tried in
// registration order after the primary.
func (f *MemoryFailover) AddFallback(name string, w memory.Writer) {
	f.group.AddFallback(name, w)
}

// Write implements [memory.Writer]. It writes rec to the first backend that
// accepts it.
func (f *MemoryFailover) Write(ctx context.Context, rec memory.Record) error {
	return f.group.Execute(func(w memory.Writer) error {
		return w.Write(ctx, rec)
	})
}

// BreakerStates reports the breaker state of every registered backend.
func (f *MemoryFailover) BreakerStates() map[string]State {
	return f.group.BreakerStates()
}
