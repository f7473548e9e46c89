package resilience

import (
	"context"

	"github.com/k00jax/omi/pkg/provider/stt"
)

// STTFailover implements [stt.Provider] with automatic failover across
// multiple transcription backends (e.g. Deepgram primary, local whisper
// fallback). Each backend has its own circuit breaker, so a cloud provider
// that keeps refusing connections is bypassed without delaying the dial.
type STTFailover struct {
	group *FallbackGroup[stt.Provider]
}

var _ stt.Provider = (*STTFailover)(nil)

// NewSTTFailover creates an [STTFailover] with primary as the preferred
// backend.
func NewSTTFailover(primary stt.Provider, primaryName string, cbCfg CircuitBreakerConfig) *STTFailover {
	return &STTFailover{
		group: NewFallbackGroup(primary, primaryName, cbCfg),
	}
}

// AddFallback registers an additional transcription backend. Fallbacks are
// tried in registration order after the primary.
func (f *STTFailover) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// StartStream opens a streaming transcription session against the first
// healthy backend. Failover happens only at session establishment; once a
// session is open, its lifetime belongs to that backend.
func (f *STTFailover) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.Session, error) {
	return ExecuteWithResult(f.group, func(p stt.Provider) (stt.Session, error) {
		return p.StartStream(ctx, cfg)
	})
}

// BreakerStates reports the breaker state of every registered backend.
func (f *STTFailover) BreakerStates() map[string]State {
	return f.group.BreakerStates()
}
