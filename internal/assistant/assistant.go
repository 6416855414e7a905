// Package assistant wires the full voice pipeline for one conversation:
// turn detection, transcription, command routing, the tool dispatch loop,
// synthesis, and playback, with per-turn analytics around all of it.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/internal/analytics"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/internal/brain"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/internal/listen"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/internal/resilience"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/internal/router"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/audio"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/stt"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/tts"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/types"
)

// sttRetryDelay is the pause before the single transcription retry.
const sttRetryDelay = 200 * time.Millisecond

// Config tunes the turn engine.
type Config struct {
	// ModelName is recorded in analytics events.
	ModelName string
}

// Assistant runs the conversation loop. One Assistant serves one
// conversation; it is not safe to share across streams.
type Assistant struct {
	detector   *listen.Detector
	transcribe stt.Provider
	synthesize tts.Provider
	route      *router.Router
	engine     *brain.Engine
	sink       audio.Sink
	collector  *analytics.Collector
	cfg        Config
	log        *slog.Logger

	speed float64
}

// New creates an Assistant. detector, transcriber, synthesizer, rtr, engine,
// and sink are required; collector may be nil to disable analytics.
func New(detector *listen.Detector, transcriber stt.Provider, synthesizer tts.Provider, rtr *router.Router, engine *brain.Engine, sink audio.Sink, collector *analytics.Collector, cfg Config) (*Assistant, error) {
	if detector == nil || transcriber == nil || synthesizer == nil || rtr == nil || engine == nil || sink == nil {
		return nil, fmt.Errorf("assistant: all pipeline stages must be non-nil")
	}
	return &Assistant{
		detector:   detector,
		transcribe: transcriber,
		synthesize: synthesizer,
		route:      rtr,
		engine:     engine,
		sink:       sink,
		collector:  collector,
		cfg:        cfg,
		log:        slog.With("component", "assistant"),
		speed:      tts.SpeedNormal,
	}, nil
}

// Run processes utterances until the audio stream ends, ctx is cancelled, or
// the user asks to exit. The returned error is the detector's terminal error;
// a user-requested exit and a clean stream close both return nil.
func (a *Assistant) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- a.detector.Run(ctx) }()

	exit := false
	for u := range a.detector.Utterances() {
		if exit {
			continue // drain remaining utterances after goodbye
		}
		exit = a.handleUtterance(ctx, u)
		if exit {
			cancel()
		}
	}

	err := <-errc
	if exit || err == nil || ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("assistant: audio stream failed: %w", err)
}

// handleUtterance runs one utterance through the pipeline and reports whether
// the user asked to exit.
func (a *Assistant) handleUtterance(ctx context.Context, u types.Utterance) bool {
	turnStart := time.Now()

	sttStart := time.Now()
	transcript, err := a.transcribeWithRetry(ctx, u)
	sttMs := time.Since(sttStart).Milliseconds()
	if err != nil {
		a.log.Error("transcription failed", "error", err)
		a.record(analytics.Event{Kind: analytics.KindTurn, STTMs: sttMs, Error: err.Error(), Stage: "stt"})
		a.speak(ctx, "Sorry, I couldn't hear that.")
		return false
	}

	text := Normalize(transcript.Text)
	if text == "" {
		a.log.Debug("inaudible utterance, skipping", "duration", u.Duration())
		return false
	}
	a.log.Info("heard", "text", text, "confidence", transcript.Confidence)

	decision, err := a.route.Route(ctx, text)
	if !decision.Forwarded() {
		a.handleCommand(ctx, text, decision, err, turnStart, sttMs)
		return decision.Exit
	}

	llmStart := time.Now()
	result, err := a.engine.Respond(ctx, text)
	llmMs := time.Since(llmStart).Milliseconds()
	if err != nil {
		a.log.Error("dispatch loop failed", "error", err)
		a.record(analytics.Event{
			Kind: analytics.KindTurn, Transcript: text, Model: a.cfg.ModelName,
			TurnMs: time.Since(turnStart).Milliseconds(), STTMs: sttMs, LLMMs: llmMs,
			Error: err.Error(), Stage: "llm",
		})
		a.speak(ctx, "Sorry, something went wrong answering that.")
		return false
	}

	ttsStart := time.Now()
	a.speak(ctx, result.Reply)
	ttsMs := time.Since(ttsStart).Milliseconds()

	a.record(analytics.Event{
		Kind:             analytics.KindTurn,
		Transcript:       text,
		Model:            a.cfg.ModelName,
		TurnMs:           time.Since(turnStart).Milliseconds(),
		STTMs:            sttMs,
		LLMMs:            llmMs,
		TTSMs:            ttsMs,
		PromptTokens:     result.Usage.PromptTokens,
		CompletionTokens: result.Usage.CompletionTokens,
		Tools:            result.ToolsUsed,
		Rounds:           result.Rounds,
		Truncated:        result.Truncated,
	})
	return false
}

// handleCommand finishes an instant-command turn: apply side state, speak the
// confirmation, record the event.
func (a *Assistant) handleCommand(ctx context.Context, text string, d router.Decision, cmdErr error, turnStart time.Time, sttMs int64) {
	ev := analytics.Event{
		Kind:       analytics.KindCommand,
		Transcript: text,
		Command:    string(d.Kind),
		STTMs:      sttMs,
	}
	if cmdErr != nil {
		a.log.Warn("command failed", "command", d.Kind, "error", cmdErr)
		ev.Error = cmdErr.Error()
		ev.Stage = "command"
		ev.TurnMs = time.Since(turnStart).Milliseconds()
		a.record(ev)
		a.speak(ctx, "Sorry, I couldn't do that.")
		return
	}
	if d.Kind == router.KindSpeed {
		a.speed = tts.ClampSpeed(d.Speed)
	}
	a.speak(ctx, d.Response)
	ev.TurnMs = time.Since(turnStart).Milliseconds()
	a.record(ev)
}

// transcribeWithRetry transcribes with a single retry on transient failure.
// Transcription is idempotent, so the retry is always safe.
func (a *Assistant) transcribeWithRetry(ctx context.Context, u types.Utterance) (stt.Transcript, error) {
	var t stt.Transcript
	err := resilience.Retry(ctx, 2, sttRetryDelay, func(ctx context.Context) error {
		var err error
		t, err = a.transcribe.Transcribe(ctx, u)
		return err
	})
	return t, err
}

// Announce speaks text outside of any turn. It backs the configured startup
// greeting.
func (a *Assistant) Announce(ctx context.Context, text string) {
	a.speak(ctx, text)
}

// speak synthesizes text at the current rate and plays it. Failures are
// logged, never fatal: a turn whose answer cannot be spoken still happened.
func (a *Assistant) speak(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	clip, err := a.synthesize.Synthesize(ctx, text, a.speed)
	if err != nil {
		a.log.Error("synthesis failed", "error", err)
		a.record(analytics.Event{Kind: analytics.KindTurn, Error: err.Error(), Stage: "tts"})
		return
	}
	if err := a.sink.Play(ctx, clip.PCM, clip.SampleRate); err != nil {
		a.log.Error("playback failed", "error", err)
	}
}

// record submits an analytics event when a collector is attached.
func (a *Assistant) record(ev analytics.Event) {
	if a.collector != nil {
		a.collector.Record(ev)
	}
}

// Normalize prepares a raw transcript for routing: lower-cased, trimmed,
// punctuation stripped, whitespace collapsed.
func Normalize(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '\'':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
