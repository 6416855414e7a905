// Package config provides the configuration schema and loader for the
// assistant.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// ListenMode selects how utterance boundaries are detected.
type ListenMode string

const (
	// ListenVAD segments utterances by trailing silence.
	ListenVAD ListenMode = "vad"

	// ListenFixed records for a fixed duration per utterance (press-to-speak).
	ListenFixed ListenMode = "fixed"
)

// IsValid reports whether m is a recognised listen mode.
func (m ListenMode) IsValid() bool {
	return m == ListenVAD || m == ListenFixed
}

// MemoryBackend selects the storage layer behind the memory manager.
type MemoryBackend string

const (
	BackendMemory   MemoryBackend = "memory"
	BackendPostgres MemoryBackend = "postgres"
)

// IsValid reports whether b is a recognised memory backend.
func (b MemoryBackend) IsValid() bool {
	return b == BackendMemory || b == BackendPostgres
}

// Config is the root configuration structure, typically loaded from a YAML
// file using [Load] or [LoadFromReader].
type Config struct {
	LogLevel  LogLevel        `yaml:"log_level"`
	Listen    ListenConfig    `yaml:"listen"`
	Providers ProvidersConfig `yaml:"providers"`
	Brain     BrainConfig     `yaml:"brain"`
	Memory    MemoryConfig    `yaml:"memory"`
	Tools     ToolsConfig     `yaml:"tools"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Startup   StartupConfig   `yaml:"startup"`
}

// StartupConfig controls what happens before the first utterance.
type StartupConfig struct {
	// Greeting is spoken once the pipeline is ready. Empty skips it.
	Greeting string `yaml:"greeting"`

	// ResumeSession names a saved session to load on start. A missing
	// snapshot is logged and skipped; the assistant starts fresh.
	ResumeSession string `yaml:"resume_session"`
}

// ListenConfig tunes the turn detector.
type ListenConfig struct {
	// Mode selects VAD segmentation or fixed-duration recording.
	Mode ListenMode `yaml:"mode"`

	// SampleRate of the input stream in Hz.
	SampleRate int `yaml:"sample_rate"`

	// FrameMs is the VAD frame size in milliseconds (10, 20, or 30).
	FrameMs int `yaml:"frame_ms"`

	// SilenceMs is the trailing-silence threshold that closes an utterance.
	SilenceMs int `yaml:"silence_ms"`

	// MinUtteranceMs discards utterances shorter than this.
	MinUtteranceMs int `yaml:"min_utterance_ms"`

	// MaxUtteranceMs force-closes utterances longer than this.
	MaxUtteranceMs int `yaml:"max_utterance_ms"`

	// FixedDurationMs is the recording length in fixed mode.
	FixedDurationMs int `yaml:"fixed_duration_ms"`
}

// ProviderEntry selects and parameterises one external provider.
type ProviderEntry struct {
	// Name identifies the implementation (e.g., "openai", "whisper", "piper").
	Name string `yaml:"name"`

	// Model is the model identifier where the provider distinguishes models.
	Model string `yaml:"model"`

	// BaseURL points at a self-hosted or compatible endpoint.
	BaseURL string `yaml:"base_url"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`
}

// ProvidersConfig declares which implementation serves each pipeline stage.
type ProvidersConfig struct {
	// LLM is the primary completion provider.
	LLM ProviderEntry `yaml:"llm"`

	// LLMFallbacks are tried in order when the primary fails.
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`

	STT        ProviderEntry `yaml:"stt"`
	TTS        ProviderEntry `yaml:"tts"`
	Embeddings ProviderEntry `yaml:"embeddings"`
}

// BrainConfig tunes the dispatch loop.
type BrainConfig struct {
	// SystemPrompt is prepended to every model turn.
	SystemPrompt string `yaml:"system_prompt"`

	// RetrievalK is how many memory records are retrieved per turn.
	RetrievalK int `yaml:"retrieval_k"`

	// TokenBudget caps the assembled context size in tokens.
	TokenBudget int `yaml:"token_budget"`

	// MaxRounds caps model rounds per turn before a no-tools completion is
	// forced.
	MaxRounds int `yaml:"max_rounds"`

	// Temperature for completions; zero requests the provider default.
	Temperature float64 `yaml:"temperature"`

	// ModelTimeout bounds a single completion call.
	ModelTimeout time.Duration `yaml:"model_timeout"`

	// ToolTimeout bounds a single tool execution.
	ToolTimeout time.Duration `yaml:"tool_timeout"`

	// EmbedTimeout bounds a single embedding call.
	EmbedTimeout time.Duration `yaml:"embed_timeout"`
}

// MemoryConfig selects and parameterises the memory backends.
type MemoryConfig struct {
	// Backend selects the semantic index and profile storage.
	Backend MemoryBackend `yaml:"backend"`

	// PostgresDSN is required when Backend is "postgres".
	PostgresDSN string `yaml:"postgres_dsn"`

	// EmbeddingDimensions must match the embeddings model output size.
	EmbeddingDimensions int `yaml:"embedding_dimensions"`

	// RedisAddr, when set, stores session snapshots in Redis instead of the
	// selected backend's archive.
	RedisAddr string `yaml:"redis_addr"`

	// RedisPasswordEnv names the environment variable holding the password.
	RedisPasswordEnv string `yaml:"redis_password_env"`

	// RedisDB selects the Redis logical database.
	RedisDB int `yaml:"redis_db"`

	// ProfileSeed is an optional initial profile text (memory backend only).
	ProfileSeed string `yaml:"profile_seed"`
}

// MCPServerConfig declares one external MCP tool server.
type MCPServerConfig struct {
	// Name labels the server in logs and tool provenance.
	Name string `yaml:"name"`

	// Command and Args launch the server over stdio.
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// ToolsConfig declares the tool surface offered to the model.
type ToolsConfig struct {
	// Builtins lists enabled builtin tool names. Empty enables all.
	Builtins []string `yaml:"builtins"`

	// NotesDir is where the notes tool stores its files.
	NotesDir string `yaml:"notes_dir"`

	// ExportDir is where the file-export tool writes.
	ExportDir string `yaml:"export_dir"`

	// SearchBaseURL points the web-search tool at a SearxNG-compatible
	// instance.
	SearchBaseURL string `yaml:"search_base_url"`

	// MCPServers are external tool servers bridged into the registry.
	MCPServers []MCPServerConfig `yaml:"mcp_servers"`
}

// AnalyticsConfig tunes the event collector.
type AnalyticsConfig struct {
	// LogPath is the JSONL events file. Empty disables file output.
	LogPath string `yaml:"log_path"`

	// BufferSize is the event channel capacity; events beyond it are dropped.
	BufferSize int `yaml:"buffer_size"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	// ListenAddr serves /metrics when non-empty (e.g., ":9090").
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns a Config with working defaults for a local setup. Callers
// overlay loaded values on top.
func Default() *Config {
	return &Config{
		LogLevel: LogInfo,
		Listen: ListenConfig{
			Mode:            ListenVAD,
			SampleRate:      16000,
			FrameMs:         30,
			SilenceMs:       300,
			MinUtteranceMs:  250,
			MaxUtteranceMs:  30000,
			FixedDurationMs: 5000,
		},
		Brain: BrainConfig{
			RetrievalK:   5,
			TokenBudget:  4000,
			MaxRounds:    5,
			ModelTimeout: 60 * time.Second,
			ToolTimeout:  30 * time.Second,
			EmbedTimeout: 10 * time.Second,
		},
		Memory: MemoryConfig{
			Backend:             BackendMemory,
			EmbeddingDimensions: 1536,
		},
		Analytics: AnalyticsConfig{
			BufferSize: 256,
		},
	}
}
