// Package energy implements a root-mean-square energy VAD engine.
//
// It classifies a frame as speech when its RMS level (in 16-bit PCM units)
// exceeds a threshold derived from a rolling noise-floor estimate. This is
// deliberately simple — no spectral features, no model weights — but it is
// dependency-free, deterministic, and good enough to drive the turn
// detector's debounce and trailing-silence state machine in quiet
// environments. Swap in a stronger Engine for noisy rooms.
package energy

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/vad"
)

const (
	// defaultRMSThreshold is the RMS level (out of a 32767 max for 16-bit
	// audio) treated as the speech floor when no option overrides it.
	// 300 corresponds to near-silence on most capture chains.
	defaultRMSThreshold = 300.0

	// noiseFloorAlpha is the exponential smoothing factor for the adaptive
	// noise-floor estimate. Only silent frames update the floor.
	noiseFloorAlpha = 0.05
)

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithRMSThreshold overrides the base RMS speech floor. Default: 300.
func WithRMSThreshold(rms float64) Option {
	return func(e *Engine) { e.rmsThreshold = rms }
}

// WithAdaptiveFloor enables or disables the rolling noise-floor estimate.
// Enabled by default.
func WithAdaptiveFloor(enabled bool) Option {
	return func(e *Engine) { e.adaptive = enabled }
}

// Engine creates RMS-based VAD sessions.
type Engine struct {
	rmsThreshold float64
	adaptive     bool
}

// Compile-time check: Engine must implement vad.Engine.
var _ vad.Engine = (*Engine)(nil)

// New returns an Engine configured with the supplied options.
func New(opts ...Option) *Engine {
	e := &Engine{
		rmsThreshold: defaultRMSThreshold,
		adaptive:     true,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// NewSession implements vad.Engine.
func (e *Engine) NewSession(cfg vad.Config) (vad.Session, error) {
	switch cfg.SampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return nil, fmt.Errorf("energy vad: unsupported sample rate %d", cfg.SampleRate)
	}
	switch cfg.FrameSizeMs {
	case 10, 20, 30:
	default:
		return nil, fmt.Errorf("energy vad: frame size must be 10, 20, or 30 ms (got %d)", cfg.FrameSizeMs)
	}
	if cfg.SpeechThreshold < 0 || cfg.SpeechThreshold > 1 {
		return nil, fmt.Errorf("energy vad: speech threshold %v out of range [0,1]", cfg.SpeechThreshold)
	}

	frameBytes := cfg.SampleRate * cfg.FrameSizeMs / 1000 * 2
	return &session{
		frameBytes:   frameBytes,
		rmsThreshold: e.rmsThreshold,
		adaptive:     e.adaptive,
		noiseFloor:   e.rmsThreshold,
	}, nil
}

// session holds the per-stream state for one RMS classifier.
type session struct {
	mu           sync.Mutex
	frameBytes   int
	rmsThreshold float64
	adaptive     bool
	noiseFloor   float64
	closed       bool
}

var _ vad.Session = (*session)(nil)

// ProcessFrame implements vad.Session.
func (s *session) ProcessFrame(frame []byte) (vad.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return vad.Decision{}, fmt.Errorf("energy vad: session closed")
	}
	if len(frame) != s.frameBytes {
		return vad.Decision{}, fmt.Errorf("energy vad: frame size mismatch: expected %d bytes, got %d", s.frameBytes, len(frame))
	}

	rms := frameRMS(frame)

	threshold := s.rmsThreshold
	if s.adaptive && s.noiseFloor*2 > threshold {
		threshold = s.noiseFloor * 2
	}

	speech := rms > threshold
	if !speech && s.adaptive {
		s.noiseFloor = (1-noiseFloorAlpha)*s.noiseFloor + noiseFloorAlpha*rms
	}

	// Map RMS onto a rough probability: the threshold itself is 0.5 and
	// twice the threshold (or more) saturates at 1.0.
	prob := rms / (threshold * 2)
	if prob > 1 {
		prob = 1
	}

	return vad.Decision{Speech: speech, Probability: prob}, nil
}

// Reset implements vad.Session.
func (s *session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noiseFloor = s.rmsThreshold
}

// Close implements vad.Session.
func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// frameRMS computes the root-mean-square level of 16-bit little-endian PCM.
func frameRMS(frame []byte) float64 {
	n := len(frame) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(frame[i*2:]))
		sum += float64(sample) * float64(sample)
	}
	return math.Sqrt(sum / float64(n))
}
