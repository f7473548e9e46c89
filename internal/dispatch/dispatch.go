// Package dispatch executes the actions behind classified utterances.
//
// A [Dispatcher] receives the matcher's verdict for one transcript and turns
// it into a side effect:
//
//   - command intents launch a detached external process, rate-limited by a
//     per-command cooldown so a re-recognized utterance cannot double-fire;
//   - hot phrases build a memory record and write it remote-first with a
//     local-log fallback (the failover lives in the injected [memory.Writer]);
//   - everything else is a no-op.
//
// Every dispatch returns a discriminated [Outcome] so the caller can present
// "command executed" differently from "memory created" without inspecting
// side effects.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/k00jax/omi/internal/intent"
	"github.com/k00jax/omi/pkg/memory"
)

const (
	// defaultCooldownWindow suppresses duplicate launches of the same command
	// when a noisy transcript re-recognizes one utterance several times.
	defaultCooldownWindow = 3 * time.Second

	// defaultWriteTimeout bounds one memory write across all backends.
	defaultWriteTimeout = 30 * time.Second

	// defaultUserID matches the remote API's fallback account.
	defaultUserID = "default_user"
)

// Kind discriminates what a dispatch did.
type Kind int

const (
	// Nothing means the match was not actionable.
	Nothing Kind = iota
	// CommandExecuted means a detached process was launched.
	CommandExecuted
	// CommandCooldown means the command was skipped, a prior launch being too
	// recent.
	CommandCooldown
	// CommandFailed means the command could not be launched.
	CommandFailed
	// MemoryCreated means a memory record was accepted by some backend.
	MemoryCreated
	// MemoryFailed means every memory backend refused the record.
	MemoryFailed
)

// String returns a short stable name for logging.
func (k Kind) String() string {
	switch k {
	case Nothing:
		return "nothing"
	case CommandExecuted:
		return "command_executed"
	case CommandCooldown:
		return "command_cooldown"
	case CommandFailed:
		return "command_failed"
	case MemoryCreated:
		return "memory_created"
	case MemoryFailed:
		return "memory_failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of dispatching one match.
type Outcome struct {
	// Kind discriminates what happened.
	Kind Kind

	// Category is the memory category for memory outcomes.
	Category string

	// Description is the command description for command outcomes.
	Description string
}

// Option is a functional option for [New].
type Option func(*Dispatcher)

// WithCooldownWindow sets how long a command signature stays on cooldown
// after a launch. Defaults to 3 seconds.
func WithCooldownWindow(d time.Duration) Option {
	return func(dp *Dispatcher) { dp.cool = newCooldown(d) }
}

// WithWriteTimeout bounds a single memory write across the remote attempt and
// the local fallback. Defaults to 30 seconds.
func WithWriteTimeout(d time.Duration) Option {
	return func(dp *Dispatcher) { dp.writeTimeout = d }
}

// WithUserID sets the account attached to created memory records.
// Defaults to "default_user".
func WithUserID(id string) Option {
	return func(dp *Dispatcher) { dp.userID = id }
}

// WithLauncher replaces the default detached process launcher.
func WithLauncher(l Launcher) Option {
	return func(dp *Dispatcher) { dp.launcher = l }
}

// WithStatus registers a sink for human-readable outcome messages
// ("command executed: ...", "memory created (note)"). Nil disables status
// reporting.
func WithStatus(fn func(string)) Option {
	return func(dp *Dispatcher) { dp.status = fn }
}

// Dispatcher turns matcher verdicts into launched commands and stored
// memories. Safe for concurrent use, though the pipeline invokes it
// sequentially, one transcript at a time.
type Dispatcher struct {
	writer   memory.Writer
	intents  map[string]intent.Intent
	cool     *cooldown
	launcher Launcher
	status   func(string)

	userID       string
	writeTimeout time.Duration

	// goos is the platform commands are gated against.
	goos string
}

// New creates a Dispatcher over the given write path and command registry.
// The registry is indexed by intent ID; a match whose ID is absent reports
// failure rather than launching anything.
func New(writer memory.Writer, intents []intent.Intent, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		writer:       writer,
		intents:      make(map[string]intent.Intent, len(intents)),
		cool:         newCooldown(defaultCooldownWindow),
		launcher:     NewDetachedLauncher(),
		userID:       defaultUserID,
		writeTimeout: defaultWriteTimeout,
		goos:         runtime.GOOS,
	}
	for _, it := range intents {
		d.intents[it.ID] = it
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Dispatch executes the action behind match. text is the utterance that
// produced the match; meta travels into the memory record's metadata and may
// carry a {"location": {"latitude", "longitude"}} entry for geotagging.
//
// The returned error is non-nil exactly when Outcome.Kind is a failed kind,
// carrying the underlying cause. Cooldown skips and no-ops are not errors.
func (d *Dispatcher) Dispatch(ctx context.Context, match intent.Match, text string, meta map[string]any) (Outcome, error) {
	switch match.Kind {
	case intent.KindCommand:
		return d.dispatchCommand(match)
	case intent.KindHotPhrase:
		return d.dispatchMemory(ctx, match, text, meta)
	default:
		return Outcome{Kind: Nothing}, nil
	}
}

func (d *Dispatcher) dispatchCommand(match intent.Match) (Outcome, error) {
	it, ok := d.intents[match.IntentID]
	if !ok {
		d.notify("command failed: " + match.Description)
		return Outcome{Kind: CommandFailed, Description: match.Description},
			fmt.Errorf("dispatch: intent %q not in registry", match.IntentID)
	}
	if len(it.Argv) == 0 {
		d.notify("command failed: " + it.Description)
		return Outcome{Kind: CommandFailed, Description: it.Description},
			fmt.Errorf("dispatch: intent %q has no argv", it.ID)
	}
	if !platformSupported(it.Platforms, d.goos) {
		slog.Warn("dispatch: command not supported on this platform",
			"intent", it.ID, "goos", d.goos)
		d.notify("command failed: " + it.Description)
		return Outcome{Kind: CommandFailed, Description: it.Description},
			fmt.Errorf("dispatch: intent %q not supported on %s", it.ID, d.goos)
	}

	sig := signature(it.Argv)
	if !d.cool.tryAcquire(sig) {
		slog.Debug("dispatch: command on cooldown", "intent", it.ID)
		d.notify("command on cooldown: " + it.Description)
		return Outcome{Kind: CommandCooldown, Description: it.Description}, nil
	}

	// The cooldown slot above stays taken even when the launch fails: a
	// failing command retried every partial transcript would otherwise hammer
	// the system once per recognition.
	if err := d.launcher.Launch(it.Argv); err != nil {
		slog.Warn("dispatch: launch failed", "intent", it.ID, "error", err)
		d.notify("command failed: " + it.Description)
		return Outcome{Kind: CommandFailed, Description: it.Description},
			fmt.Errorf("dispatch: launch %q: %w", sig, err)
	}

	slog.Info("dispatch: command executed", "intent", it.ID, "command", sig)
	d.notify("command executed: " + it.Description)
	return Outcome{Kind: CommandExecuted, Description: it.Description}, nil
}

func (d *Dispatcher) dispatchMemory(ctx context.Context, match intent.Match, text string, meta map[string]any) (Outcome, error) {
	rec := memory.Record{
		Text:        text,
		UserID:      d.userID,
		Category:    match.Category,
		CreatedAt:   time.Now().UTC(),
		Metadata:    meta,
		Geolocation: geolocationFrom(meta),
	}

	// Detached from the caller's cancellation: a shutdown mid-write would
	// tear the record, so the write runs to completion bounded by the write
	// timeout instead.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.writeTimeout)
	defer cancel()

	if err := d.writer.Write(wctx, rec); err != nil {
		slog.Warn("dispatch: memory write failed", "category", match.Category, "error", err)
		d.notify("memory failed (" + match.Category + ")")
		return Outcome{Kind: MemoryFailed, Category: match.Category},
			fmt.Errorf("dispatch: create memory: %w", err)
	}

	slog.Info("dispatch: memory created", "category", match.Category)
	d.notify("memory created (" + match.Category + ")")
	return Outcome{Kind: MemoryCreated, Category: match.Category}, nil
}

func (d *Dispatcher) notify(msg string) {
	if d.status != nil {
		d.status(msg)
	}
}

// geolocationFrom lifts a {"location": {"latitude": .., "longitude": ..}}
// entry out of the dispatch metadata, mirroring the remote API's optional
// geolocation block. Returns nil when absent or malformed.
func geolocationFrom(meta map[string]any) *memory.Geolocation {
	loc, ok := meta["location"].(map[string]any)
	if !ok {
		return nil
	}
	lat, okLat := asFloat(loc["latitude"])
	lon, okLon := asFloat(loc["longitude"])
	if !okLat || !okLon {
		return nil
	}
	return &memory.Geolocation{Latitude: lat, Longitude: lon}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
