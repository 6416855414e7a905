// Package audio defines the frame types and the capture Source interface that
// feed the voice-activity turn detector.
//
// The assistant never talks to a sound card directly — platform capture
// (ALSA, PortAudio, a network stream, a WAV file in tests) sits behind the
// Source interface so the turn detector is agnostic to where frames come from.
package audio

import (
	"context"
	"errors"
	"time"
)

// ErrStreamClosed is returned by Source.ReadFrame once the underlying audio
// stream has ended. The turn detector treats it as end-of-stream, not as a
// device fault.
var ErrStreamClosed = errors.New("audio: stream closed")

// Frame is a single fixed-size frame of captured audio.
type Frame struct {
	// PCM is 16-bit signed little-endian mono audio data.
	PCM []byte

	// SampleRate in Hz. Constant for the lifetime of a Source.
	SampleRate int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the frame length implied by its sample count and rate.
func (f Frame) Duration() time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	samples := len(f.PCM) / 2
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}

// Sink plays synthesized audio back to the user. Platform playback (ALSA, a
// network stream, a discard sink in tests) sits behind this interface.
type Sink interface {
	// Play blocks until the clip has been played or ctx is cancelled.
	Play(ctx context.Context, pcm []byte, sampleRate int) error
}

// Source is a live audio capture stream delivering fixed-size frames.
//
// ReadFrame blocks until the next frame is available, the stream ends
// (ErrStreamClosed), or a device fault occurs (any other error). Device
// faults are fatal for the stream; the caller owns any retry policy.
//
// A Source is single-consumer: ReadFrame must not be called concurrently.
type Source interface {
	// ReadFrame returns the next captured frame.
	ReadFrame() (Frame, error)

	// Close releases the capture device. Subsequent ReadFrame calls return
	// ErrStreamClosed. Close is safe to call more than once.
	Close() error
}
