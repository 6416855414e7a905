// Command assistant is the speech-driven conversational assistant: it
// listens on a raw PCM stream, segments utterances, routes instant commands,
// runs everything else through the tool dispatch loop, and speaks the
// replies back.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/internal/analytics"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/internal/assistant"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/internal/brain"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/internal/config"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/internal/listen"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/internal/observe"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/internal/resilience"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/internal/router"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/internal/tools"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/internal/tools/builtin/exporter"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/internal/tools/builtin/notes"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/internal/tools/builtin/ragquery"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/internal/tools/builtin/websearch"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/audio"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/audio/rawio"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/memory"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/memory/memstore"
	pgmem "github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/memory/postgres"
	redismem "github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/memory/redis"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/embeddings"
	oaiembed "github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/embeddings/openai"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/llm"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/llm/anyllm"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/stt/whisper"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/tts/piper"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/vad"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/vad/energy"
)

const version = "1.0.0"

// autosaveSession is the archive name used for the shutdown save.
const autosaveSession = "autosave"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	audioIn := flag.String("audio-in", "-", "raw 16-bit PCM input: a file path or - for stdin")
	audioOut := flag.String("audio-out", "-", "raw 16-bit PCM output: a file path or - for stdout")
	flag.Parse()

	// .env is optional; real environments set the variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "assistant: %v\n", err)
		return 1
	}

	slog.SetDefault(newLogger(cfg.LogLevel))
	slog.Info("assistant starting", "config", *configPath, "listen_mode", cfg.Listen.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
		MetricsAddr:    cfg.Metrics.ListenAddr,
	})
	if err != nil {
		slog.Error("metrics init failed", "error", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Warn("metrics shutdown failed", "error", err)
		}
	}()

	model, err := buildLLM(cfg.Providers)
	if err != nil {
		slog.Error("building llm provider failed", "error", err)
		return 1
	}
	embedder, err := buildEmbeddings(cfg.Providers.Embeddings)
	if err != nil {
		slog.Error("building embeddings provider failed", "error", err)
		return 1
	}

	mem, closeMem, err := buildMemory(ctx, cfg, embedder, model)
	if err != nil {
		slog.Error("building memory failed", "error", err)
		return 1
	}
	defer closeMem()

	registry := tools.NewRegistry()
	defer registry.Close()
	if err := registerTools(ctx, registry, cfg.Tools, mem); err != nil {
		slog.Error("registering tools failed", "error", err)
		return 1
	}

	sttProv, err := whisper.New(cfg.Providers.STT.BaseURL)
	if err != nil {
		slog.Error("building stt provider failed", "error", err)
		return 1
	}
	ttsProv, err := piper.New(cfg.Providers.TTS.BaseURL)
	if err != nil {
		slog.Error("building tts provider failed", "error", err)
		return 1
	}

	source, sink, closeAudio, err := openAudio(*audioIn, *audioOut, cfg.Listen)
	if err != nil {
		slog.Error("opening audio streams failed", "error", err)
		return 1
	}
	defer closeAudio()

	detector, err := buildDetector(source, cfg.Listen)
	if err != nil {
		slog.Error("building turn detector failed", "error", err)
		return 1
	}

	collector, err := analytics.NewCollector(cfg.Analytics.LogPath, cfg.Analytics.BufferSize, observe.DefaultMetrics())
	if err != nil {
		slog.Error("opening analytics log failed", "error", err)
		return 1
	}
	defer collector.Close()

	engine, err := brain.NewEngine(model, mem, registry, brain.Config{
		SystemPrompt: cfg.Brain.SystemPrompt,
		RetrievalK:   cfg.Brain.RetrievalK,
		TokenBudget:  cfg.Brain.TokenBudget,
		MaxRounds:    cfg.Brain.MaxRounds,
		Temperature:  cfg.Brain.Temperature,
		ModelTimeout: cfg.Brain.ModelTimeout,
		ToolTimeout:  cfg.Brain.ToolTimeout,
		Metrics:      observe.DefaultMetrics(),
	})
	if err != nil {
		slog.Error("building dispatch loop failed", "error", err)
		return 1
	}

	app, err := assistant.New(detector, sttProv, ttsProv, router.New(mem), engine, sink, collector, assistant.Config{
		ModelName: cfg.Providers.LLM.Model,
	})
	if err != nil {
		slog.Error("building assistant failed", "error", err)
		return 1
	}

	if name := cfg.Startup.ResumeSession; name != "" {
		if err := mem.LoadSession(ctx, name); err != nil {
			slog.Warn("resume session failed, starting fresh", "session", name, "error", err)
		} else {
			slog.Info("resumed session", "session", name, "turns", len(mem.Log()))
		}
	}
	if cfg.Startup.Greeting != "" {
		app.Announce(ctx, cfg.Startup.Greeting)
	}

	slog.Info("listening — press Ctrl+C to shut down")
	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "error", err)
		return 1
	}

	// Best-effort autosave so an interrupted conversation can be restored
	// with "load session autosave".
	if len(mem.Log()) > 0 {
		saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := mem.PersistSession(saveCtx, autosaveSession); err != nil {
			slog.Warn("autosave failed", "error", err)
		}
	}

	slog.Info("goodbye")
	return 0
}

// newLogger builds the process logger at the configured level.
func newLogger(level config.LogLevel) *slog.Logger {
	var l slog.Level
	switch level {
	case config.LogDebug:
		l = slog.LevelDebug
	case config.LogWarn:
		l = slog.LevelWarn
	case config.LogError:
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// buildLLM constructs the primary completion provider and wraps it in a
// fallback group when fallbacks are configured.
func buildLLM(cfg config.ProvidersConfig) (llm.Provider, error) {
	primary, err := newLLMEntry(cfg.LLM)
	if err != nil {
		return nil, err
	}
	if len(cfg.LLMFallbacks) == 0 {
		return primary, nil
	}

	group := resilience.NewLLMFallback(primary, cfg.LLM.Name+"/"+cfg.LLM.Model, resilience.FallbackConfig{})
	for _, entry := range cfg.LLMFallbacks {
		p, err := newLLMEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("fallback %s: %w", entry.Name, err)
		}
		group.AddFallback(entry.Name+"/"+entry.Model, p)
	}
	return group, nil
}

func newLLMEntry(entry config.ProviderEntry) (llm.Provider, error) {
	var opts []anyllmlib.Option
	if key := os.Getenv(entry.APIKeyEnv); entry.APIKeyEnv != "" && key != "" {
		opts = append(opts, anyllmlib.WithAPIKey(key))
	}
	if entry.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
	}
	return anyllm.New(entry.Name, entry.Model, opts...)
}

func buildEmbeddings(entry config.ProviderEntry) (embeddings.Provider, error) {
	var opts []oaiembed.Option
	if entry.BaseURL != "" {
		opts = append(opts, oaiembed.WithBaseURL(entry.BaseURL))
	}
	return oaiembed.New(os.Getenv(entry.APIKeyEnv), entry.Model, opts...)
}

// buildMemory assembles the three storage tiers for the configured backend
// and composes them into a Manager with an LLM-backed session summarizer.
func buildMemory(ctx context.Context, root *config.Config, embedder embeddings.Provider, model llm.Provider) (*memory.Manager, func(), error) {
	cfg := root.Memory
	var (
		archive memory.SessionArchive
		index   memory.SemanticIndex
		profile memory.ProfileStore
		closers []func()
	)

	switch cfg.Backend {
	case config.BackendPostgres:
		store, err := pgmem.NewStore(ctx, cfg.PostgresDSN, cfg.EmbeddingDimensions)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres backend: %w", err)
		}
		closers = append(closers, store.Close)
		archive, index, profile = store.Archive(), store.Index(), store.Profile()
	default:
		archive = memstore.NewArchive()
		index = memstore.NewIndex()
		profile = memstore.NewProfile(cfg.ProfileSeed)
	}

	if cfg.RedisAddr != "" {
		ra, err := redismem.New(ctx, cfg.RedisAddr, os.Getenv(cfg.RedisPasswordEnv), cfg.RedisDB)
		if err != nil {
			return nil, nil, fmt.Errorf("redis archive: %w", err)
		}
		closers = append(closers, func() { _ = ra.Close() })
		archive = ra
	}

	summarizer, err := memory.NewLLMSummarizer(model)
	if err != nil {
		return nil, nil, err
	}
	mem, err := memory.NewManager(embedder, archive, index, profile,
		memory.WithSummarizer(summarizer),
		memory.WithEmbedTimeout(root.Brain.EmbedTimeout))
	if err != nil {
		return nil, nil, err
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	return mem, closeAll, nil
}

// registerTools fills the registry with the enabled builtins and the
// configured MCP servers. A failing MCP server is logged and skipped; the
// assistant still runs with the remaining tools.
func registerTools(ctx context.Context, registry *tools.Registry, cfg config.ToolsConfig, mem *memory.Manager) error {
	enabled := func(name string) bool {
		if len(cfg.Builtins) == 0 {
			return true
		}
		for _, b := range cfg.Builtins {
			if b == name {
				return true
			}
		}
		return false
	}

	var set []tools.Tool
	if enabled("websearch") && cfg.SearchBaseURL != "" {
		set = append(set, websearch.NewTools(cfg.SearchBaseURL, nil)...)
	}
	if enabled("ragquery") {
		set = append(set, ragquery.NewTools(mem)...)
	}
	if enabled("notes") && cfg.NotesDir != "" {
		set = append(set, notes.NewTools(cfg.NotesDir)...)
	}
	if enabled("exporter") && cfg.ExportDir != "" {
		set = append(set, exporter.NewTools(cfg.ExportDir)...)
	}
	for _, t := range set {
		if err := registry.Register(t); err != nil {
			return err
		}
	}

	for _, server := range cfg.MCPServers {
		if err := registry.RegisterMCPServer(ctx, server); err != nil {
			slog.Warn("mcp server unavailable", "server", server.Name, "error", err)
		}
	}
	return nil
}

// openAudio opens the raw PCM input and output streams.
func openAudio(in, out string, cfg config.ListenConfig) (audio.Source, audio.Sink, func(), error) {
	var (
		reader  io.ReadCloser
		writer  io.Writer
		closers []func()
	)

	if in == "-" {
		reader = os.Stdin
	} else {
		f, err := os.Open(in)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("audio input: %w", err)
		}
		reader = f
		closers = append(closers, func() { _ = f.Close() })
	}

	if out == "-" {
		writer = os.Stdout
	} else {
		f, err := os.Create(out)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("audio output: %w", err)
		}
		writer = f
		closers = append(closers, func() { _ = f.Close() })
	}

	source, err := rawio.NewSource(reader, cfg.SampleRate, cfg.FrameMs)
	if err != nil {
		return nil, nil, nil, err
	}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	return source, rawio.NewSink(writer), closeAll, nil
}

// buildDetector wires the turn detector, with a VAD session unless fixed
// mode is configured.
func buildDetector(source audio.Source, cfg config.ListenConfig) (*listen.Detector, error) {
	detectorCfg := listen.Config{
		SampleRate:       cfg.SampleRate,
		SilenceThreshold: time.Duration(cfg.SilenceMs) * time.Millisecond,
		MinUtterance:     time.Duration(cfg.MinUtteranceMs) * time.Millisecond,
		MaxUtterance:     time.Duration(cfg.MaxUtteranceMs) * time.Millisecond,
	}

	var session vad.Session
	if cfg.Mode == config.ListenFixed {
		detectorCfg.FixedDuration = time.Duration(cfg.FixedDurationMs) * time.Millisecond
	} else {
		var err error
		session, err = energy.New().NewSession(vad.Config{
			SampleRate:      cfg.SampleRate,
			FrameSizeMs:     cfg.FrameMs,
			SpeechThreshold: 0.5,
		})
		if err != nil {
			return nil, fmt.Errorf("vad session: %w", err)
		}
	}
	return listen.NewDetector(source, session, detectorCfg)
}
