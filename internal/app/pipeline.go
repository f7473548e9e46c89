package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/k00jax/omi/internal/config"
	"github.com/k00jax/omi/internal/dispatch"
	"github.com/k00jax/omi/internal/intent"
	"github.com/k00jax/omi/internal/observe"
	"github.com/k00jax/omi/pkg/audio"
	"github.com/k00jax/omi/pkg/memory"
	"github.com/k00jax/omi/pkg/provider/stt"
)

// reloadTimeout bounds the semantic index rebuild triggered by a config
// reload. The old matcher keeps serving until the rebuild completes.
const reloadTimeout = 30 * time.Second

// handlePacket ingests one raw device packet: decode, tee, enqueue. It runs
// on the capture source's delivery goroutine and must not block, so a full
// queue drops the frame instead of waiting.
func (a *App) handlePacket(packet []byte) {
	ctx := context.Background()
	start := time.Now()
	frame := a.decoder.Decode(packet)
	a.metrics.DecodeDuration.Record(ctx, time.Since(start).Seconds())
	if frame.Empty() {
		return
	}
	a.metrics.RecordFrameDecoded(ctx, a.decoder.Mode().String())
	a.enqueue(ctx, frame)
}

// handleFrame ingests one already-canonical PCM frame from the mic source.
func (a *App) handleFrame(frame audio.Frame) {
	if frame.Empty() {
		return
	}
	ctx := context.Background()
	a.metrics.RecordFrameDecoded(ctx, "pcm")
	a.enqueue(ctx, frame)
}

func (a *App) enqueue(ctx context.Context, frame audio.Frame) {
	if a.wav != nil {
		if err := a.wav.Write(frame); err != nil {
			a.wavWarn.Do(func() {
				slog.Warn("wav dump write failed, further errors suppressed", "error", err)
			})
		}
	}
	if err := a.queue.Push(frame); err != nil {
		a.metrics.FramesDropped.Add(ctx, 1)
		slog.Debug("frame dropped", "queue_len", a.queue.Len())
	}
}

// handleTranscript consumes one recognition result. Interim transcripts are
// counted and logged only; a command firing twice for the same utterance,
// once from the interim and once from the final, would double-launch.
func (a *App) handleTranscript(ctx context.Context, t stt.Transcript) error {
	a.metrics.RecordTranscript(ctx, a.cfg.Providers.STT.Name, t.IsFinal)
	if !t.IsFinal {
		slog.Debug("interim transcript", "text", t.Text)
		return nil
	}
	slog.Debug("final transcript", "text", t.Text, "confidence", t.Confidence)

	match := a.matcher.Load().Classify(ctx, t.Text)
	if match.Kind == intent.KindNone {
		return nil
	}

	start := time.Now()
	outcome, err := a.dispatcher.Load().Dispatch(ctx, match, t.Text, nil)
	a.metrics.DispatchDuration.Record(ctx, time.Since(start).Seconds())
	a.metrics.RecordDispatchOutcome(ctx, outcome.Kind.String())
	if err != nil {
		// Already logged with cause by the dispatcher. Returning nil keeps
		// the transcript stream flowing.
		return nil
	}

	if outcome.Kind == dispatch.MemoryCreated && a.backends.Archiver != nil {
		a.backends.Archiver.Submit(memory.Record{
			Text:      t.Text,
			UserID:    a.cfg.Dispatch.UserID,
			Category:  outcome.Category,
			CreatedAt: time.Now().UTC(),
		})
	}
	return nil
}

// buildMatcher assembles an intent matcher from the config tables, falling
// back to the built-in registry where a table is empty.
func (a *App) buildMatcher(cfg *config.IntentConfig) *intent.Matcher {
	opts := []intent.Option{
		intent.WithIntents(intentsFrom(cfg)),
		intent.WithHotPhrases(hotPhrasesFrom(cfg)),
	}
	if len(cfg.WakeWords) > 0 {
		opts = append(opts, intent.WithWakeVariants(cfg.WakeWords))
	}
	if a.semantic != nil {
		opts = append(opts, intent.WithSemanticIndex(a.semantic))
	}
	if cfg.FireThreshold > 0 {
		opts = append(opts, intent.WithFireThreshold(cfg.FireThreshold))
	}
	if cfg.NearThreshold > 0 {
		opts = append(opts, intent.WithNearThreshold(cfg.NearThreshold))
	}
	return intent.New(opts...)
}

func (a *App) buildDispatcher(ic *config.IntentConfig, dc *config.DispatchConfig) *dispatch.Dispatcher {
	opts := []dispatch.Option{
		dispatch.WithStatus(func(msg string) {
			slog.Info("dispatch status", "status", msg)
		}),
	}
	if dc.UserID != "" {
		opts = append(opts, dispatch.WithUserID(dc.UserID))
	}
	if dc.CooldownSeconds > 0 {
		opts = append(opts, dispatch.WithCooldownWindow(time.Duration(dc.CooldownSeconds)*time.Second))
	}
	if a.launcher != nil {
		opts = append(opts, dispatch.WithLauncher(a.launcher))
	}
	return dispatch.New(a.backends.Memory, intentsFrom(ic), opts...)
}

// applyReload is the config watcher callback. Only the log level and the
// matcher tables apply live; everything else needs a restart and is called
// out in the logs so the operator knows the running process diverges from
// the file.
func (a *App) applyReload(old, next *config.Config) {
	diff := config.Diff(old, next)
	if diff.Empty() {
		slog.Info("config changed, no hot-reloadable differences")
		return
	}

	if diff.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(diff.NewLogLevel.Slog())
		slog.Info("log level changed", "level", string(diff.NewLogLevel))
	}

	if diff.MatcherChanged {
		a.cfg.Intent = next.Intent
		if a.semantic != nil {
			ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
			defer cancel()
			if err := a.semantic.Build(ctx, intentsFrom(&next.Intent)); err != nil {
				slog.Warn("semantic index rebuild failed, literal tiers still updated", "error", err)
			}
		}
		a.matcher.Store(a.buildMatcher(&next.Intent))
		// Swapping the dispatcher resets command cooldowns. A reload is an
		// operator action, so the three second window starting over is fine.
		a.dispatcher.Store(a.buildDispatcher(&next.Intent, &a.cfg.Dispatch))
		slog.Info("matcher rebuilt from config",
			"intents", len(intentsFrom(&next.Intent)),
			"hot_phrases", len(hotPhrasesFrom(&next.Intent)))
	}
}

// buildSemanticIndex embeds the intent examples. Failure leaves the matcher
// literal-only rather than failing startup: the embeddings service may be
// down while the voice pipeline is still useful.
func (a *App) buildSemanticIndex(ctx context.Context) {
	if a.semantic == nil {
		return
	}
	if err := a.semantic.Build(ctx, intentsFrom(&a.cfg.Intent)); err != nil {
		slog.Warn("semantic index build failed, matcher runs literal-only", "error", err)
		return
	}
	slog.Info("semantic index ready")
}

// observeQueueDepth samples the frame queue and publishes the delta to the
// up/down counter once a second.
func (a *App) observeQueueDepth(ctx context.Context, m *observe.Metrics) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	last := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			depth := a.queue.Len()
			if depth != last {
				m.QueueDepth.Add(ctx, int64(depth-last))
				last = depth
			}
		}
	}
}

func intentsFrom(cfg *config.IntentConfig) []intent.Intent {
	if len(cfg.Intents) == 0 {
		return intent.DefaultIntents()
	}
	out := make([]intent.Intent, 0, len(cfg.Intents))
	for _, e := range cfg.Intents {
		out = append(out, intent.Intent{
			ID:          e.ID,
			Description: e.Description,
			Examples:    e.Examples,
			Patterns:    e.Patterns,
			Argv:        e.Command,
			Platforms:   e.Platforms,
		})
	}
	return out
}

func hotPhrasesFrom(cfg *config.IntentConfig) []intent.HotPhrase {
	if len(cfg.HotPhrases) == 0 {
		return intent.DefaultHotPhrases()
	}
	out := make([]intent.HotPhrase, 0, len(cfg.HotPhrases))
	for _, e := range cfg.HotPhrases {
		out = append(out, intent.HotPhrase{Phrase: e.Phrase, Category: e.Category})
	}
	return out
}
