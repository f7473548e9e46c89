package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt":        {"deepgram", "whisper-native"},
	"embeddings": {"openai", "ollama"},
}

// Environment variables overlaid onto the config after parsing. Secrets
// belong in the environment, not in the YAML file.
const (
	EnvDeepgramAPIKey = "DEEPGRAM_API_KEY"
	EnvOmiAPIKey      = "OMI_API_KEY"
	EnvOmiUserID      = "OMI_USER_ID"
	EnvMCPBaseURL     = "MCP_BASE_URL"
	EnvMemoryFile     = "MEMORY_FILE"
)

// Load reads the YAML configuration file at path, overlays environment
// variables, and returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and the
// environment overlay, and validates the result. Useful in tests where
// configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	ApplyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields with their documented defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Device.Source == "" {
		cfg.Device.Source = SourceBLE
	}
	if cfg.Device.ScanTimeoutSeconds <= 0 {
		cfg.Device.ScanTimeoutSeconds = 10
	}
	if cfg.Audio.QueueCapacity <= 0 {
		cfg.Audio.QueueCapacity = 256
	}
	if cfg.Transcribe.Language == "" {
		cfg.Transcribe.Language = "en-US"
	}
	if cfg.Transcribe.RetrySeconds <= 0 {
		cfg.Transcribe.RetrySeconds = 5
	}
	if cfg.Dispatch.CooldownSeconds <= 0 {
		cfg.Dispatch.CooldownSeconds = 3
	}
	if cfg.Dispatch.UserID == "" {
		cfg.Dispatch.UserID = "default_user"
	}
	if cfg.Memory.Remote.TimeoutSeconds <= 0 {
		cfg.Memory.Remote.TimeoutSeconds = 30
	}
	if cfg.Memory.LocalPath == "" {
		cfg.Memory.LocalPath = "omi_memories.txt"
	}
	if cfg.Observe.ListenAddr == "" {
		cfg.Observe.ListenAddr = ":9090"
	}
	if cfg.Observe.LogLevel == "" {
		cfg.Observe.LogLevel = LogInfo
	}
	if cfg.Observe.LogFormat == "" {
		cfg.Observe.LogFormat = LogText
	}
	if cfg.Intent.FireThreshold == 0 {
		cfg.Intent.FireThreshold = 0.80
	}
	if cfg.Intent.NearThreshold == 0 {
		cfg.Intent.NearThreshold = 0.70
	}
	if cfg.MCP.Transport == "" {
		cfg.MCP.Transport = TransportStreamableHTTP
	}
	if cfg.MCP.ListenAddr == "" {
		cfg.MCP.ListenAddr = ":9091"
	}
}

// ApplyEnv overlays secret-bearing environment variables onto cfg. A set
// variable always wins over the YAML value, so that deployments can rotate
// credentials without touching the config file.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvDeepgramAPIKey); v != "" {
		cfg.Providers.STT.APIKey = v
	}
	if v := os.Getenv(EnvOmiAPIKey); v != "" {
		cfg.Memory.Remote.APIKey = v
	}
	if v := os.Getenv(EnvOmiUserID); v != "" {
		cfg.Dispatch.UserID = v
	}
	if v := os.Getenv(EnvMCPBaseURL); v != "" {
		cfg.Memory.Remote.BaseURL = v
	}
	if v := os.Getenv(EnvMemoryFile); v != "" {
		cfg.Memory.LocalPath = v
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Device.Source.IsValid() {
		errs = append(errs, fmt.Errorf("device.source %q is invalid; valid values: ble, mic, none", cfg.Device.Source))
	}
	if cfg.Device.Source == SourceBLE && cfg.Device.Address == "" && cfg.Device.Name == "" {
		slog.Warn("device.address and device.name are both empty; the first device advertising the audio service will be used")
	}

	if s := cfg.Codec.FrameSamples; s != 0 && s != 320 && s != 960 {
		errs = append(errs, fmt.Errorf("codec.frame_samples %d is invalid; valid values: 0 (canonical 320), 320, 960 (legacy firmware)", s))
	}

	if !cfg.Observe.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("observe.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Observe.LogLevel))
	}
	if !cfg.Observe.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("observe.log_format %q is invalid; valid values: text, json", cfg.Observe.LogFormat))
	}

	// Provider name validation: warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("stt", cfg.Providers.STTFallback.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required; the pipeline cannot run without a transcription backend"))
	}
	if cfg.Providers.STT.Name == "deepgram" && cfg.Providers.STT.APIKey == "" {
		errs = append(errs, fmt.Errorf("providers.stt: deepgram requires an API key (set %s or providers.stt.api_key)", EnvDeepgramAPIKey))
	}
	if cfg.Providers.STTFallback.Name != "" && cfg.Providers.STTFallback.Name == cfg.Providers.STT.Name {
		slog.Warn("providers.stt_fallback names the same backend as providers.stt; failover will retry the same service")
	}

	if cfg.Providers.Embeddings.Name == "" {
		slog.Warn("providers.embeddings is not configured; command matching runs literal-only and archive similarity search is unavailable")
	}
	if cfg.Providers.Embeddings.Name != "" && cfg.Memory.PostgresDSN != "" && cfg.Memory.EmbeddingDimensions <= 0 {
		slog.Warn("memory.embedding_dimensions is not set; defaulting to 1536")
	}

	if cfg.Memory.Remote.APIKey == "" {
		slog.Warn("memory.remote.api_key is empty; memories will be written to the local log only")
	}

	// Intent tables.
	seen := make(map[string]int, len(cfg.Intent.Intents))
	for i, it := range cfg.Intent.Intents {
		prefix := fmt.Sprintf("intent.intents[%d]", i)
		if it.ID == "" {
			errs = append(errs, fmt.Errorf("%s.id is required", prefix))
		} else {
			if prev, ok := seen[it.ID]; ok {
				errs = append(errs, fmt.Errorf("%s.id %q is a duplicate of intent.intents[%d]", prefix, it.ID, prev))
			}
			seen[it.ID] = i
		}
		if len(it.Command) == 0 {
			errs = append(errs, fmt.Errorf("%s.command is required", prefix))
		}
		if len(it.Patterns) == 0 && len(it.Examples) == 0 {
			errs = append(errs, fmt.Errorf("%s needs at least one of patterns or examples", prefix))
		}
	}
	for i, hp := range cfg.Intent.HotPhrases {
		prefix := fmt.Sprintf("intent.hot_phrases[%d]", i)
		if hp.Phrase == "" {
			errs = append(errs, fmt.Errorf("%s.phrase is required", prefix))
		}
		if hp.Category == "" {
			errs = append(errs, fmt.Errorf("%s.category is required", prefix))
		}
	}
	if ft, nt := cfg.Intent.FireThreshold, cfg.Intent.NearThreshold; ft < nt {
		errs = append(errs, fmt.Errorf("intent.fire_threshold %.2f must be >= intent.near_threshold %.2f", ft, nt))
	}
	if cfg.Intent.FireThreshold > 1 {
		errs = append(errs, fmt.Errorf("intent.fire_threshold %.2f is out of range (0, 1]", cfg.Intent.FireThreshold))
	}

	if cfg.MCP.Enabled && !cfg.MCP.Transport.IsValid() {
		errs = append(errs, fmt.Errorf("mcp.transport %q is invalid; valid values: stdio, streamable-http", cfg.MCP.Transport))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
