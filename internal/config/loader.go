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

// ValidProviderNames lists known provider names per provider kind. Used by
// [Validate] to warn about unrecognised names without rejecting the config.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq"},
	"stt":        {"whisper"},
	"tts":        {"piper"},
	"embeddings": {"openai"},
}

// Load reads the YAML configuration file at path, overlays it on [Default],
// and returns a validated [Config].
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

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if !cfg.Listen.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("listen.mode %q is invalid; valid values: vad, fixed", cfg.Listen.Mode))
	}
	switch cfg.Listen.SampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		errs = append(errs, fmt.Errorf("listen.sample_rate %d is invalid; valid values: 8000, 16000, 32000, 48000", cfg.Listen.SampleRate))
	}
	switch cfg.Listen.FrameMs {
	case 10, 20, 30:
	default:
		errs = append(errs, fmt.Errorf("listen.frame_ms %d is invalid; valid values: 10, 20, 30", cfg.Listen.FrameMs))
	}
	if cfg.Listen.SilenceMs <= 0 {
		errs = append(errs, fmt.Errorf("listen.silence_ms must be positive, got %d", cfg.Listen.SilenceMs))
	}
	if cfg.Listen.MaxUtteranceMs > 0 && cfg.Listen.MaxUtteranceMs <= cfg.Listen.MinUtteranceMs {
		errs = append(errs, fmt.Errorf("listen.max_utterance_ms (%d) must exceed min_utterance_ms (%d)", cfg.Listen.MaxUtteranceMs, cfg.Listen.MinUtteranceMs))
	}
	if cfg.Listen.Mode == ListenFixed && cfg.Listen.FixedDurationMs <= 0 {
		errs = append(errs, fmt.Errorf("listen.fixed_duration_ms must be positive in fixed mode, got %d", cfg.Listen.FixedDurationMs))
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	for _, fb := range cfg.Providers.LLMFallbacks {
		validateProviderName("llm", fb.Name)
	}
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required"))
	}

	if cfg.Brain.RetrievalK < 0 {
		errs = append(errs, fmt.Errorf("brain.retrieval_k must not be negative, got %d", cfg.Brain.RetrievalK))
	}
	if cfg.Brain.TokenBudget <= 0 {
		errs = append(errs, fmt.Errorf("brain.token_budget must be positive, got %d", cfg.Brain.TokenBudget))
	}
	if cfg.Brain.MaxRounds <= 0 {
		errs = append(errs, fmt.Errorf("brain.max_rounds must be positive, got %d", cfg.Brain.MaxRounds))
	}

	if !cfg.Memory.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("memory.backend %q is invalid; valid values: memory, postgres", cfg.Memory.Backend))
	}
	if cfg.Memory.Backend == BackendPostgres && cfg.Memory.PostgresDSN == "" {
		errs = append(errs, errors.New("memory.postgres_dsn is required when memory.backend is postgres"))
	}
	if cfg.Providers.Embeddings.Name != "" && cfg.Memory.EmbeddingDimensions <= 0 {
		slog.Warn("providers.embeddings is configured but memory.embedding_dimensions is not set; defaulting to 1536")
		cfg.Memory.EmbeddingDimensions = 1536
	}

	if cfg.Analytics.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("analytics.buffer_size must be positive, got %d", cfg.Analytics.BufferSize))
	}

	for i, srv := range cfg.Tools.MCPServers {
		if srv.Name == "" {
			errs = append(errs, fmt.Errorf("tools.mcp_servers[%d].name is required", i))
		}
		if srv.Command == "" {
			errs = append(errs, fmt.Errorf("tools.mcp_servers[%d].command is required", i))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName warns about provider names that are not in the known
// set. Unknown names are allowed so new providers do not require a config
// schema change.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known := ValidProviderNames[kind]
	if !slices.Contains(known, name) {
		slog.Warn("unrecognised provider name", "kind", kind, "name", name, "known", known)
	}
}
