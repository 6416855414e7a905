// Package rawio implements the audio Source and Sink interfaces over plain
// io streams of raw 16-bit little-endian mono PCM. It backs file- and
// pipe-driven runs: arecord/sox piped into stdin on capture, aplay fed from
// stdout on playback.
package rawio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/audio"
)

// Source reads fixed-size PCM frames from an io.ReadCloser.
type Source struct {
	r          io.ReadCloser
	sampleRate int
	frameBytes int
	frameDur   time.Duration
	elapsed    time.Duration
}

// NewSource wraps r as a frame source. frameMs must be 10, 20, or 30 to match
// the classifiers downstream.
func NewSource(r io.ReadCloser, sampleRate, frameMs int) (*Source, error) {
	if r == nil {
		return nil, fmt.Errorf("rawio: reader must not be nil")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("rawio: invalid sample rate %d", sampleRate)
	}
	if frameMs != 10 && frameMs != 20 && frameMs != 30 {
		return nil, fmt.Errorf("rawio: frame size must be 10, 20, or 30 ms, got %d", frameMs)
	}
	return &Source{
		r:          r,
		sampleRate: sampleRate,
		frameBytes: sampleRate / 1000 * frameMs * 2,
		frameDur:   time.Duration(frameMs) * time.Millisecond,
	}, nil
}

// ReadFrame returns the next frame. A trailing partial frame is discarded; a
// stream that ends cleanly reports audio.ErrStreamClosed.
func (s *Source) ReadFrame() (audio.Frame, error) {
	buf := make([]byte, s.frameBytes)
	if _, err := io.ReadFull(s.r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return audio.Frame{}, audio.ErrStreamClosed
		}
		return audio.Frame{}, fmt.Errorf("rawio: read frame: %w", err)
	}
	f := audio.Frame{PCM: buf, SampleRate: s.sampleRate, Timestamp: s.elapsed}
	s.elapsed += s.frameDur
	return f, nil
}

// Close closes the underlying reader.
func (s *Source) Close() error {
	return s.r.Close()
}

var _ audio.Source = (*Source)(nil)

// Sink writes PCM clips to an io.Writer.
type Sink struct {
	w io.Writer
}

// NewSink wraps w as a playback sink.
func NewSink(w io.Writer) *Sink {
	return &Sink{w: w}
}

// Play writes the whole clip. The sample rate is the consumer's problem; raw
// streams carry no header.
func (s *Sink) Play(ctx context.Context, pcm []byte, _ int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.w.Write(pcm); err != nil {
		return fmt.Errorf("rawio: write clip: %w", err)
	}
	return nil
}

var _ audio.Sink = (*Sink)(nil)
