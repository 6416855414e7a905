// Package mock provides test doubles for the audio package interfaces.
//
// Use Source to feed a scripted sequence of frames to the turn detector and
// inspect how far it read.
package mock

import (
	"context"
	"sync"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/audio"
)

// Source is a mock implementation of audio.Source that replays a fixed
// sequence of frames and then reports end-of-stream.
type Source struct {
	mu sync.Mutex

	// Frames is the scripted sequence returned by successive ReadFrame calls.
	Frames []audio.Frame

	// ReadErr, if non-nil, is returned once all Frames are consumed instead
	// of audio.ErrStreamClosed. Use it to simulate a device fault.
	ReadErr error

	// --- Call records ---

	// ReadCount is the number of ReadFrame calls made.
	ReadCount int

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	closed bool
}

// ReadFrame returns the next scripted frame, or the configured terminal error.
func (s *Source) ReadFrame() (audio.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return audio.Frame{}, audio.ErrStreamClosed
	}
	if s.ReadCount >= len(s.Frames) {
		if s.ReadErr != nil {
			return audio.Frame{}, s.ReadErr
		}
		return audio.Frame{}, audio.ErrStreamClosed
	}
	f := s.Frames[s.ReadCount]
	s.ReadCount++
	return f, nil
}

// Close records the call and marks the source closed.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	s.closed = true
	return nil
}

// Ensure Source implements audio.Source at compile time.
var _ audio.Source = (*Source)(nil)

// Played is one recorded Sink.Play call.
type Played struct {
	PCM        []byte
	SampleRate int
}

// Sink is a mock implementation of audio.Sink that records every clip.
type Sink struct {
	mu sync.Mutex

	// PlayErr, if non-nil, is returned by every Play call.
	PlayErr error

	// PlayCalls records the clips played, in order.
	PlayCalls []Played
}

// Play records the clip and returns the configured error.
func (s *Sink) Play(_ context.Context, pcm []byte, sampleRate int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PlayCalls = append(s.PlayCalls, Played{PCM: pcm, SampleRate: sampleRate})
	return s.PlayErr
}

// Ensure Sink implements audio.Sink at compile time.
var _ audio.Sink = (*Sink)(nil)
