// Package mock provides test doubles for the vad package interfaces.
//
// Use Session to script per-frame decisions and inspect the frames that were
// submitted for classification.
//
// Example:
//
//	sess := &mock.Session{Decisions: []vad.Decision{{Speech: true, Probability: 0.9}}}
//	eng := &mock.Engine{Session: sess}
//	handle, _ := eng.NewSession(cfg)
package mock

import (
	"sync"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/vad"
)

// Engine is a mock implementation of vad.Engine.
type Engine struct {
	mu sync.Mutex

	// Session is returned by NewSession. If nil, a new default Session is
	// returned.
	Session vad.Session

	// NewSessionErr, if non-nil, is returned as the error from NewSession.
	NewSessionErr error

	// NewSessionCalls records the Config of every NewSession call in order.
	NewSessionCalls []vad.Config
}

// NewSession records the call and returns Session, NewSessionErr.
func (e *Engine) NewSession(cfg vad.Config) (vad.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.NewSessionCalls = append(e.NewSessionCalls, cfg)
	if e.NewSessionErr != nil {
		return nil, e.NewSessionErr
	}
	if e.Session != nil {
		return e.Session, nil
	}
	return &Session{}, nil
}

// Ensure Engine implements vad.Engine at compile time.
var _ vad.Engine = (*Engine)(nil)

// Session is a mock implementation of vad.Session that replays scripted
// decisions. Once the script is exhausted the last decision repeats.
type Session struct {
	mu sync.Mutex

	// Decisions is the scripted sequence returned by successive ProcessFrame
	// calls. Empty means every frame is classified as silence.
	Decisions []vad.Decision

	// ProcessFrameErr, if non-nil, is returned by every ProcessFrame call.
	ProcessFrameErr error

	// --- Call records ---

	// Frames records a copy of every frame passed to ProcessFrame.
	Frames [][]byte

	// ResetCallCount is the number of times Reset was called.
	ResetCallCount int

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// ProcessFrame records the call and returns the next scripted decision.
func (s *Session) ProcessFrame(frame []byte) (vad.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(frame))
	copy(cp, frame)
	s.Frames = append(s.Frames, cp)
	if s.ProcessFrameErr != nil {
		return vad.Decision{}, s.ProcessFrameErr
	}
	if len(s.Decisions) == 0 {
		return vad.Decision{}, nil
	}
	idx := len(s.Frames) - 1
	if idx >= len(s.Decisions) {
		idx = len(s.Decisions) - 1
	}
	return s.Decisions[idx], nil
}

// Reset records the call by incrementing ResetCallCount.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResetCallCount++
}

// Close records the call.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return nil
}

// Ensure Session implements vad.Session at compile time.
var _ vad.Session = (*Session)(nil)
