// Command omi runs the wearable audio pipeline: device capture, streaming
// transcription, intent matching, and action dispatch.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/k00jax/omi/internal/app"
	"github.com/k00jax/omi/internal/archive"
	"github.com/k00jax/omi/internal/config"
	"github.com/k00jax/omi/internal/observe"
	"github.com/k00jax/omi/internal/resilience"
	"github.com/k00jax/omi/pkg/memory/locallog"
	"github.com/k00jax/omi/pkg/memory/postgres"
	"github.com/k00jax/omi/pkg/memory/remote"
	"github.com/k00jax/omi/pkg/provider/embeddings"
	ollamaembed "github.com/k00jax/omi/pkg/provider/embeddings/ollama"
	oaembed "github.com/k00jax/omi/pkg/provider/embeddings/openai"
	"github.com/k00jax/omi/pkg/provider/stt"
	"github.com/k00jax/omi/pkg/provider/stt/deepgram"
	"github.com/k00jax/omi/pkg/provider/stt/whisper"
)

const version = "0.1.0"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "omi: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "omi: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	levelVar := new(slog.LevelVar)
	levelVar.Set(cfg.Observe.LogLevel.Slog())
	slog.SetDefault(newLogger(cfg.Observe.LogFormat, levelVar))

	slog.Info("omi starting",
		"version", version,
		"config", *configPath,
		"source", string(cfg.Device.Source),
		"log_level", string(cfg.Observe.LogLevel),
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "omi",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Backends ──────────────────────────────────────────────────────────────
	backends, closeBackends, err := buildBackends(ctx, cfg, reg)
	if err != nil {
		slog.Error("failed to build backends", "err", err)
		return 1
	}
	defer closeBackends()

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(cfg, backends,
		app.WithLogLevelVar(levelVar),
		app.WithConfigPath(*configPath),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	defer application.Close()

	slog.Info("pipeline ready, press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// builtinProviders maps provider category names to the implementations that
// ship with omi. Used for startup logging.
var builtinProviders = map[string][]string{
	"stt":        {"deepgram", "whisper-native"},
	"embeddings": {"openai", "ollama"},
}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the provider
// from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		if ms := optInt(entry.Options, "silence_threshold_ms"); ms > 0 {
			opts = append(opts, whisper.WithSilenceThresholdMs(ms))
		}
		return whisper.New(modelPath, opts...)
	})

	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []ollamaembed.Option
		if dims := optInt(entry.Options, "dimensions"); dims > 0 {
			opts = append(opts, ollamaembed.WithDimensions(dims))
		}
		return ollamaembed.New(entry.BaseURL, entry.Model, opts...)
	})

	for kind, names := range builtinProviders {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// buildBackends instantiates the providers and memory backends named in cfg.
// The returned cleanup function closes everything that was opened, in reverse
// order, and is safe to call even after a partial failure.
func buildBackends(ctx context.Context, cfg *config.Config, reg *config.Registry) (app.Backends, func(), error) {
	var backends app.Backends
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// ── STT ───────────────────────────────────────────────────────────────────
	primary, err := reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return backends, cleanup, fmt.Errorf("create stt provider %q: %w", cfg.Providers.STT.Name, err)
	}
	backends.STT = primary
	slog.Info("provider created", "kind", "stt", "name", cfg.Providers.STT.Name)

	if name := cfg.Providers.STTFallback.Name; name != "" {
		fallback, err := reg.CreateSTT(cfg.Providers.STTFallback)
		if err != nil {
			return backends, cleanup, fmt.Errorf("create stt fallback %q: %w", name, err)
		}
		failover := resilience.NewSTTFailover(primary, cfg.Providers.STT.Name,
			resilience.CircuitBreakerConfig{Name: "stt"})
		failover.AddFallback(name, fallback)
		backends.STT = failover
		slog.Info("provider created", "kind", "stt_fallback", "name", name)
	}

	// ── Embeddings (optional) ─────────────────────────────────────────────────
	if name := cfg.Providers.Embeddings.Name; name != "" {
		p, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("embeddings provider not registered, semantic tier disabled", "name", name)
		} else if err != nil {
			return backends, cleanup, fmt.Errorf("create embeddings provider %q: %w", name, err)
		} else {
			backends.Embeddings = p
			slog.Info("provider created", "kind", "embeddings", "name", name,
				"dimensions", p.Dimensions())
		}
	}

	// ── Memory writers ────────────────────────────────────────────────────────
	local := locallog.New(cfg.Memory.LocalPath)
	if cfg.Memory.Remote.APIKey != "" {
		rc, err := remote.New(cfg.Memory.Remote.BaseURL, cfg.Memory.Remote.APIKey,
			remote.WithTimeout(time.Duration(cfg.Memory.Remote.TimeoutSeconds)*time.Second))
		if err != nil {
			return backends, cleanup, fmt.Errorf("create remote memory client: %w", err)
		}
		failover := resilience.NewMemoryFailover(rc, "remote",
			resilience.CircuitBreakerConfig{Name: "memory"})
		failover.AddFallback("local", local)
		backends.Memory = failover
		slog.Info("memory writer ready", "primary", "remote", "fallback", local.Path())
	} else {
		backends.Memory = local
		slog.Info("memory writer ready", "primary", local.Path(),
			"note", "no OMI_API_KEY, remote path disabled")
	}

	// ── Archive (optional) ────────────────────────────────────────────────────
	if dsn := cfg.Memory.PostgresDSN; dsn != "" {
		store, err := postgres.NewStore(ctx, dsn, archiveDimensions(cfg, backends.Embeddings))
		if err != nil {
			return backends, cleanup, fmt.Errorf("open postgres archive: %w", err)
		}
		closers = append(closers, store.Close)
		backends.Archive = store

		archOpts := []archive.Option{}
		if backends.Embeddings != nil {
			archOpts = append(archOpts, archive.WithEmbedder(backends.Embeddings))
		}
		backends.Archiver = archive.New(store, archOpts...)
		slog.Info("memory archive ready", "backend", "postgres")
	}

	return backends, cleanup, nil
}

// archiveDimensions resolves the pgvector column width: explicit config
// first, then the embeddings model, then the text-embedding-3-small default.
func archiveDimensions(cfg *config.Config, embedder embeddings.Provider) int {
	if cfg.Memory.EmbeddingDimensions > 0 {
		return cfg.Memory.EmbeddingDimensions
	}
	if embedder != nil {
		if dims := embedder.Dimensions(); dims > 0 {
			return dims
		}
	}
	return 1536
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║           omi: startup summary        ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Source", string(cfg.Device.Source))
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("STT fallback", cfg.Providers.STTFallback.Name, cfg.Providers.STTFallback.Model)
	printProvider("Embeddings", cfg.Providers.Embeddings.Name, cfg.Providers.Embeddings.Model)
	if cfg.Memory.Remote.APIKey != "" {
		printRow("Memory", "remote + local")
	} else {
		printRow("Memory", "local only")
	}
	if cfg.Memory.PostgresDSN != "" {
		printRow("Archive", "postgres")
	} else {
		printRow("Archive", "(disabled)")
	}
	if cfg.MCP.Enabled {
		printRow("MCP server", string(cfg.MCP.Transport))
	} else {
		printRow("MCP server", "(disabled)")
	}
	printRow("Ops addr", cfg.Observe.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	printRow(kind, value)
}

func printRow(kind, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(format config.LogFormat, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}

// optInt extracts an integer from a provider Options map. YAML decodes
// unannotated numbers as int.
func optInt(opts map[string]any, key string) int {
	if opts == nil {
		return 0
	}
	switch v := opts[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
