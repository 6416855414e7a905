// Package analytics records per-turn events into an append-only JSONL log
// and mirrors the hot counters into OpenTelemetry instruments.
//
// Recording never blocks the turn: events go through a buffered channel to a
// background writer, and when the buffer is full the event is dropped and
// counted. Aggregation is a pure read-side computation over recorded events.
package analytics

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/internal/observe"
)

// Event kinds.
const (
	KindTurn    = "turn"
	KindCommand = "command"
)

// Event is one analytics record. Zero-valued fields are omitted from the log.
type Event struct {
	// Timestamp is when the event was recorded.
	Timestamp time.Time `json:"ts"`

	// Kind is KindTurn for model turns, KindCommand for instant commands.
	Kind string `json:"kind"`

	// Transcript is the normalized user utterance.
	Transcript string `json:"transcript,omitempty"`

	// Command names the instant command that handled the utterance.
	Command string `json:"command,omitempty"`

	// Latencies per pipeline stage, in milliseconds.
	TurnMs int64 `json:"turn_ms,omitempty"`
	STTMs  int64 `json:"stt_ms,omitempty"`
	LLMMs  int64 `json:"llm_ms,omitempty"`
	TTSMs  int64 `json:"tts_ms,omitempty"`

	// Model is the completion model used for the turn.
	Model string `json:"model,omitempty"`

	// Token usage accumulated over all rounds of the turn.
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`

	// Tools lists tool names invoked during the turn, in call order.
	Tools []string `json:"tools,omitempty"`

	// Rounds is how many model rounds the turn took.
	Rounds int `json:"rounds,omitempty"`

	// Truncated marks turns that hit the round cap.
	Truncated bool `json:"truncated,omitempty"`

	// Error holds the failure message for failed turns.
	Error string `json:"error,omitempty"`

	// Stage names the pipeline stage that failed.
	Stage string `json:"stage,omitempty"`
}

// Collector buffers events and appends them to a JSONL file. Safe for
// concurrent use. Close must be called to flush the tail of the buffer.
type Collector struct {
	events  chan Event
	metrics *observe.Metrics

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	done      chan struct{}

	w       io.WriteCloser
	ownsFile bool
}

// NewCollector opens (or creates) the JSONL log at path in append mode and
// starts the background writer. An empty path disables file output; events
// still feed the OTel instruments. metrics may be nil.
func NewCollector(path string, bufferSize int, metrics *observe.Metrics) (*Collector, error) {
	if bufferSize <= 0 {
		bufferSize = 256
	}

	c := &Collector{
		events:  make(chan Event, bufferSize),
		metrics: metrics,
		done:    make(chan struct{}),
	}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("analytics: open log %q: %w", path, err)
		}
		c.w = f
		c.ownsFile = true
	}

	go c.run()
	return c, nil
}

// Record submits an event without blocking. When the buffer is full the event
// is dropped and counted in the drop metric. Events recorded after Close are
// dropped.
func (c *Collector) Record(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		slog.Debug("analytics event dropped, collector closed", "kind", ev.Kind)
		return
	}
	c.observe(ev)

	select {
	case c.events <- ev:
	default:
		if c.metrics != nil {
			c.metrics.DroppedEvents.Add(context.Background(), 1)
		}
		slog.Debug("analytics event dropped, buffer full", "kind", ev.Kind)
	}
}

// observe mirrors the event into the OTel instruments.
func (c *Collector) observe(ev Event) {
	if c.metrics == nil {
		return
	}
	ctx := context.Background()
	if ev.TurnMs > 0 {
		c.metrics.TurnDuration.Record(ctx, float64(ev.TurnMs)/1000)
	}
	if ev.STTMs > 0 {
		c.metrics.STTDuration.Record(ctx, float64(ev.STTMs)/1000)
	}
	if ev.LLMMs > 0 {
		c.metrics.LLMDuration.Record(ctx, float64(ev.LLMMs)/1000)
	}
	if ev.TTSMs > 0 {
		c.metrics.TTSDuration.Record(ctx, float64(ev.TTSMs)/1000)
	}
	if ev.PromptTokens > 0 || ev.CompletionTokens > 0 {
		c.metrics.RecordTokens(ctx, ev.PromptTokens, ev.CompletionTokens)
	}
	if ev.Truncated {
		c.metrics.TruncatedTurns.Add(ctx, 1)
	}
	if ev.Error != "" {
		c.metrics.RecordTurnError(ctx, ev.Stage)
	}
}

// run drains the event channel into the log file until Close.
func (c *Collector) run() {
	defer close(c.done)

	var bw *bufio.Writer
	var enc *json.Encoder
	if c.w != nil {
		bw = bufio.NewWriter(c.w)
		enc = json.NewEncoder(bw)
	}

	for ev := range c.events {
		if enc == nil {
			continue
		}
		if err := enc.Encode(ev); err != nil {
			slog.Warn("analytics write failed", "error", err)
			continue
		}
		if err := bw.Flush(); err != nil {
			slog.Warn("analytics flush failed", "error", err)
		}
	}

	if c.ownsFile {
		if err := c.w.Close(); err != nil {
			slog.Warn("analytics log close failed", "error", err)
		}
	}
}

// Close stops accepting events, flushes the buffer, and closes the log file.
func (c *Collector) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.events)
		<-c.done
	})
}

// ReadEvents loads all events from a JSONL log. Malformed lines are skipped
// with a warning so one bad write cannot poison aggregation.
func ReadEvents(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("analytics: open log %q: %w", path, err)
	}
	defer f.Close()

	var events []Event
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			slog.Warn("analytics: skipping malformed event line", "error", err)
			continue
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("analytics: scan log %q: %w", path, err)
	}
	return events, nil
}
