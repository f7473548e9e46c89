// Package app wires the configured subsystems into one running pipeline:
// capture source, codec, frame queue, streaming transcription, intent
// matching, dispatch, and the ops surfaces around them.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/k00jax/omi/internal/archive"
	"github.com/k00jax/omi/internal/config"
	"github.com/k00jax/omi/internal/device"
	"github.com/k00jax/omi/internal/dispatch"
	"github.com/k00jax/omi/internal/intent"
	"github.com/k00jax/omi/internal/mcpserver"
	"github.com/k00jax/omi/internal/observe"
	"github.com/k00jax/omi/internal/transcribe"
	"github.com/k00jax/omi/pkg/audio"
	"github.com/k00jax/omi/pkg/codec"
	"github.com/k00jax/omi/pkg/memory"
	"github.com/k00jax/omi/pkg/provider/embeddings"
	"github.com/k00jax/omi/pkg/provider/stt"
)

// Backends holds the externally constructed service clients the pipeline
// runs against. main builds them from the provider registry and the memory
// configuration; tests pass mocks.
type Backends struct {
	// STT is the streaming transcription provider. Required.
	STT stt.Provider

	// Memory is the record writer behind hot-phrase captures, usually a
	// remote-first failover chain. Required.
	Memory memory.Writer

	// Embeddings powers the semantic intent tier and archive vectors.
	// Optional; when nil the matcher runs literal-only.
	Embeddings embeddings.Provider

	// Archive is the searchable long-term store, when configured.
	Archive memory.Archive

	// Archiver is the asynchronous writer feeding Archive.
	Archiver *archive.Archiver
}

// Option adjusts app construction, mostly to substitute test doubles.
type Option func(*App)

// WithSource replaces the config-selected capture source.
func WithSource(src device.Source) Option {
	return func(a *App) { a.source = src }
}

// WithLauncher replaces the process launcher used for command intents.
func WithLauncher(l dispatch.Launcher) Option {
	return func(a *App) { a.launcher = l }
}

// WithMetrics replaces the process-global metrics instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevelVar attaches the handler's level var so config reloads can
// retune verbosity at runtime.
func WithLogLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = lv }
}

// WithConfigPath enables hot reload by watching the given config file.
func WithConfigPath(path string) Option {
	return func(a *App) { a.configPath = path }
}

// App owns the assembled pipeline. Construct with [New], start with [Run],
// release resources with [Close].
type App struct {
	cfg      *config.Config
	backends Backends

	decoder    codec.Decoder
	queue      *audio.FrameQueue
	matcher    atomic.Pointer[intent.Matcher]
	dispatcher atomic.Pointer[dispatch.Dispatcher]
	semantic   *intent.SemanticIndex
	streamer   *transcribe.Streamer
	mcp        *mcpserver.Server
	wav        *audio.WAVSink
	wavWarn    sync.Once
	metrics    *observe.Metrics

	source      device.Source
	deviceState atomic.Value
	launcher    dispatch.Launcher
	logLevel    *slog.LevelVar
	configPath  string
	watcher     *config.Watcher

	closers  []func() error
	stopOnce sync.Once
	stopErr  error
}

// New assembles the pipeline from cfg and backends. The returned app holds
// open resources (WAV sink, config watcher); call Close when done.
func New(cfg *config.Config, backends Backends, opts ...Option) (*App, error) {
	if backends.STT == nil {
		return nil, errors.New("app: backends: STT provider is required")
	}
	if backends.Memory == nil {
		return nil, errors.New("app: backends: memory writer is required")
	}

	a := &App{cfg: cfg, backends: backends}
	for _, opt := range opts {
		opt(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// 1. Codec and frame queue.
	a.decoder = codec.New(codec.Config{
		ForceFallback: cfg.Codec.ForceFallback,
		FrameSamples:  cfg.Codec.FrameSamples,
	})
	a.queue = audio.NewFrameQueue(cfg.Audio.QueueCapacity)

	// 2. Optional frame tee for debugging.
	if cfg.Debug.WAVDump != "" {
		sink, err := audio.NewWAVSink(cfg.Debug.WAVDump)
		if err != nil {
			return nil, fmt.Errorf("app: init wav dump: %w", err)
		}
		a.wav = sink
		a.closers = append(a.closers, sink.Close)
	}

	// 3. Intent matcher and dispatcher. The semantic index is built later,
	// inside Run; the matcher treats an unbuilt index as absent.
	if backends.Embeddings != nil {
		a.semantic = intent.NewSemanticIndex(backends.Embeddings)
	}
	a.matcher.Store(a.buildMatcher(&cfg.Intent))
	a.dispatcher.Store(a.buildDispatcher(&cfg.Intent, &cfg.Dispatch))

	// 4. Streaming transcription client.
	streamOpts := []transcribe.Option{
		transcribe.WithStatus(func(msg string) {
			slog.Info("stt status", "status", msg)
		}),
	}
	if cfg.Transcribe.RetrySeconds > 0 {
		streamOpts = append(streamOpts,
			transcribe.WithRetryDelay(time.Duration(cfg.Transcribe.RetrySeconds)*time.Second))
	}
	a.streamer = transcribe.New(backends.STT, a.queue, a.streamConfig(), a.handleTranscript, streamOpts...)

	// 5. Capture source, unless one was injected.
	if a.source == nil {
		src, err := a.buildSource(&cfg.Device)
		if err != nil {
			return nil, fmt.Errorf("app: init capture source: %w", err)
		}
		a.source = src
	}

	// 6. MCP memory server.
	if cfg.MCP.Enabled {
		mcpOpts := []mcpserver.Option{mcpserver.WithUserID(cfg.Dispatch.UserID)}
		if backends.Archive != nil {
			mcpOpts = append(mcpOpts, mcpserver.WithArchive(backends.Archive))
		}
		if backends.Embeddings != nil {
			mcpOpts = append(mcpOpts, mcpserver.WithEmbedder(backends.Embeddings))
		}
		if backends.Archiver != nil {
			mcpOpts = append(mcpOpts, mcpserver.WithArchiver(backends.Archiver))
		}
		a.mcp = mcpserver.New(backends.Memory, mcpOpts...)
	}

	// 7. Config hot reload.
	if a.configPath != "" {
		w, err := config.NewWatcher(a.configPath, a.applyReload)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("app: init config watcher: %w", err)
		}
		a.watcher = w
		a.closers = append(a.closers, func() error { w.Stop(); return nil })
	}

	return a, nil
}

// Queue exposes the frame queue for replay tooling and tests.
func (a *App) Queue() *audio.FrameQueue { return a.queue }

// Streamer exposes the transcription client, mainly for health reporting.
func (a *App) Streamer() *transcribe.Streamer { return a.streamer }

// Close releases resources acquired in New, last acquired first. Safe to
// call more than once.
func (a *App) Close() error {
	a.stopOnce.Do(func() {
		var errs []error
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		a.stopErr = errors.Join(errs...)
	})
	return a.stopErr
}

func (a *App) streamConfig() stt.StreamConfig {
	variants := a.cfg.Intent.WakeWords
	if len(variants) == 0 {
		variants = intent.DefaultWakeVariants()
	}
	keywords := make([]stt.KeywordBoost, 0, len(variants))
	for _, v := range variants {
		keywords = append(keywords, stt.KeywordBoost{Keyword: v, Boost: 1})
	}
	return stt.StreamConfig{
		SampleRate: audio.SampleRate,
		Channels:   audio.Channels,
		Language:   a.cfg.Transcribe.Language,
		Keywords:   keywords,
	}
}

func (a *App) buildSource(cfg *config.DeviceConfig) (device.Source, error) {
	switch cfg.Source {
	case config.SourceBLE:
		bleCfg := device.BLEConfig{
			Address:     cfg.Address,
			Name:        cfg.Name,
			ScanTimeout: time.Duration(cfg.ScanTimeoutSeconds) * time.Second,
		}
		return device.NewBLESource(device.NewHardwareAdapter(), bleCfg, a.handlePacket,
			device.WithStatus(func(msg string) {
				a.deviceState.Store(msg)
				slog.Info("device status", "status", msg)
			}),
		), nil
	case config.SourceMic:
		return device.NewMicSource(a.handleFrame,
			device.WithMicStatus(func(msg string) {
				a.deviceState.Store(msg)
				slog.Info("mic status", "status", msg)
			}),
		), nil
	case config.SourceNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown device source %q", cfg.Source)
	}
}
