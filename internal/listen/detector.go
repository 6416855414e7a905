// Package listen segments a live audio stream into discrete utterances.
//
// The Detector consumes fixed-size frames from an audio.Source, classifies
// each with a vad.Session, and drives an IDLE → SPEAKING → TRAILING_SILENCE
// state machine: sustained speech opens an utterance, the first silent frame
// starts the trailing window, and silence past the configured threshold
// closes and emits the utterance. A fixed-duration mode bypasses the state
// machine for press-to-speak setups; both modes emit the same
// [types.Utterance] so downstream stages are mode-agnostic.
package listen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/audio"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/vad"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/types"
)

// defaultDebounceFrames is how many consecutive speech frames are required
// before IDLE transitions to SPEAKING. Rejects single-frame spikes.
const defaultDebounceFrames = 3

type state int

const (
	stateIdle state = iota
	stateSpeaking
	stateTrailing
)

// Config tunes the Detector.
type Config struct {
	// SampleRate of the source stream in Hz.
	SampleRate int

	// SilenceThreshold is the trailing-silence duration that closes an
	// utterance. Default 300ms.
	SilenceThreshold time.Duration

	// MinUtterance discards emitted utterances with less speech than this.
	// Default 250ms.
	MinUtterance time.Duration

	// MaxUtterance force-closes utterances that run longer, flagging them
	// truncated. Zero disables the cap.
	MaxUtterance time.Duration

	// DebounceFrames overrides the speech-onset debounce window.
	DebounceFrames int

	// FixedDuration, when positive, switches to fixed-duration mode: every
	// capture window of this length is emitted as one utterance with no VAD.
	FixedDuration time.Duration
}

func (c *Config) applyDefaults() {
	if c.SilenceThreshold <= 0 {
		c.SilenceThreshold = 300 * time.Millisecond
	}
	if c.MinUtterance <= 0 {
		c.MinUtterance = 250 * time.Millisecond
	}
	if c.DebounceFrames <= 0 {
		c.DebounceFrames = defaultDebounceFrames
	}
}

// Detector turns a frame stream into an utterance stream. Run it from a
// single goroutine; the utterance channel decouples it from downstream work
// so frame consumption continues while a turn is being processed.
type Detector struct {
	source  audio.Source
	session vad.Session
	cfg     Config

	out chan types.Utterance

	state      state
	speechRun  []audio.Frame
	captured   []byte
	start      time.Duration
	lastSpeech time.Duration
	silence    time.Duration
}

// NewDetector creates a Detector over source. session may be nil only in
// fixed-duration mode.
func NewDetector(source audio.Source, session vad.Session, cfg Config) (*Detector, error) {
	cfg.applyDefaults()
	if source == nil {
		return nil, fmt.Errorf("listen: source must not be nil")
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("listen: sample rate must be positive, got %d", cfg.SampleRate)
	}
	if cfg.FixedDuration <= 0 && session == nil {
		return nil, fmt.Errorf("listen: vad session required outside fixed-duration mode")
	}
	return &Detector{
		source:  source,
		session: session,
		cfg:     cfg,
		out:     make(chan types.Utterance, 4),
	}, nil
}

// Utterances returns the channel of emitted utterances. It is closed when
// Run returns.
func (d *Detector) Utterances() <-chan types.Utterance {
	return d.out
}

// Run consumes the source until ctx is cancelled or the stream closes. A
// clean stream close returns nil; device faults propagate as errors with no
// retry — retry policy belongs to the caller. An utterance open at stream
// close is flushed as truncated.
func (d *Detector) Run(ctx context.Context) error {
	defer close(d.out)

	if d.cfg.FixedDuration > 0 {
		return d.runFixed(ctx)
	}
	return d.runVAD(ctx)
}

func (d *Detector) runVAD(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.flush(ctx)
			return ctx.Err()
		default:
		}

		frame, err := d.source.ReadFrame()
		if err != nil {
			d.flush(ctx)
			if errors.Is(err, audio.ErrStreamClosed) {
				return nil
			}
			return fmt.Errorf("listen: read frame: %w", err)
		}

		decision, err := d.session.ProcessFrame(frame.PCM)
		if err != nil {
			return fmt.Errorf("listen: classify frame: %w", err)
		}
		d.step(ctx, frame, decision.Speech)
	}
}

// step advances the state machine by one frame.
func (d *Detector) step(ctx context.Context, frame audio.Frame, speech bool) {
	frameEnd := frame.Timestamp + frame.Duration()

	switch d.state {
	case stateIdle:
		if !speech {
			d.speechRun = d.speechRun[:0]
			return
		}
		d.speechRun = append(d.speechRun, frame)
		if len(d.speechRun) < d.cfg.DebounceFrames {
			return
		}
		// Sustained speech: open the utterance at the first frame of the run.
		d.state = stateSpeaking
		d.start = d.speechRun[0].Timestamp
		d.captured = d.captured[:0]
		for _, f := range d.speechRun {
			d.captured = append(d.captured, f.PCM...)
		}
		d.speechRun = d.speechRun[:0]
		d.lastSpeech = frameEnd

	case stateSpeaking:
		d.captured = append(d.captured, frame.PCM...)
		if speech {
			d.lastSpeech = frameEnd
		} else {
			d.state = stateTrailing
			d.silence = frame.Duration()
		}
		d.enforceMax(ctx, frameEnd)

	case stateTrailing:
		d.captured = append(d.captured, frame.PCM...)
		if speech {
			d.state = stateSpeaking
			d.silence = 0
			d.lastSpeech = frameEnd
			d.enforceMax(ctx, frameEnd)
			return
		}
		d.silence += frame.Duration()
		if d.silence >= d.cfg.SilenceThreshold {
			d.emit(ctx, false)
		}
	}
}

// enforceMax closes a runaway utterance once it exceeds the configured cap.
func (d *Detector) enforceMax(ctx context.Context, now time.Duration) {
	if d.cfg.MaxUtterance > 0 && now-d.start >= d.cfg.MaxUtterance {
		d.emit(ctx, true)
	}
}

// emit hands the captured utterance to the output channel and resets to IDLE.
// Utterances with less speech than MinUtterance are discarded.
func (d *Detector) emit(ctx context.Context, truncated bool) {
	speechDur := d.lastSpeech - d.start
	utt := types.Utterance{
		PCM:        append([]byte(nil), d.captured...),
		SampleRate: d.cfg.SampleRate,
		Start:      d.start,
		End:        d.lastSpeech,
		Truncated:  truncated,
	}

	d.state = stateIdle
	d.captured = d.captured[:0]
	d.silence = 0
	if d.session != nil {
		d.session.Reset()
	}

	if speechDur < d.cfg.MinUtterance {
		slog.Debug("discarding short utterance", "duration", speechDur)
		return
	}

	select {
	case d.out <- utt:
	case <-ctx.Done():
	}
}

// flush emits any utterance open at stream close as truncated.
func (d *Detector) flush(ctx context.Context) {
	if d.state == stateSpeaking || d.state == stateTrailing {
		d.emit(ctx, true)
	}
}

// runFixed emits one utterance per fixed-length capture window.
func (d *Detector) runFixed(ctx context.Context) error {
	var (
		buf      []byte
		start    time.Duration
		captured time.Duration
		open     bool
	)

	emit := func(truncated bool) {
		if !open || captured < d.cfg.MinUtterance {
			buf, open, captured = buf[:0], false, 0
			return
		}
		utt := types.Utterance{
			PCM:        append([]byte(nil), buf...),
			SampleRate: d.cfg.SampleRate,
			Start:      start,
			End:        start + captured,
			Truncated:  truncated,
		}
		buf, open, captured = buf[:0], false, 0
		select {
		case d.out <- utt:
		case <-ctx.Done():
		}
	}

	for {
		select {
		case <-ctx.Done():
			emit(true)
			return ctx.Err()
		default:
		}

		frame, err := d.source.ReadFrame()
		if err != nil {
			emit(true)
			if errors.Is(err, audio.ErrStreamClosed) {
				return nil
			}
			return fmt.Errorf("listen: read frame: %w", err)
		}

		if !open {
			open = true
			start = frame.Timestamp
		}
		buf = append(buf, frame.PCM...)
		captured += frame.Duration()
		if captured >= d.cfg.FixedDuration {
			emit(false)
		}
	}
}
