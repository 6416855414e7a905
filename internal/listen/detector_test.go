package listen

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/audio"
	audiomock "github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/audio/mock"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/vad"
	vadmock "github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/vad/mock"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/types"
)

const (
	testRate    = 16000
	frameMs     = 30
	frameBytes  = testRate / 1000 * frameMs * 2 // 16-bit mono
	framePeriod = frameMs * time.Millisecond
)

// makeFrames builds n sequential 30ms frames starting at frame index start.
func makeFrames(n int) []audio.Frame {
	frames := make([]audio.Frame, n)
	for i := range frames {
		frames[i] = audio.Frame{
			PCM:        make([]byte, frameBytes),
			SampleRate: testRate,
			Timestamp:  time.Duration(i) * framePeriod,
		}
	}
	return frames
}

// decisions expands a pattern of (speech, count) pairs into a decision script.
func decisions(pattern ...int) []vad.Decision {
	var out []vad.Decision
	for i := 0; i+1 < len(pattern); i += 2 {
		for j := 0; j < pattern[i+1]; j++ {
			out = append(out, vad.Decision{Speech: pattern[i] == 1, Probability: float64(pattern[i])})
		}
	}
	return out
}

// collect runs the detector to completion and returns everything it emitted.
func collect(t *testing.T, d *Detector) ([]types.Utterance, error) {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- d.Run(context.Background()) }()

	var utts []types.Utterance
	for u := range d.Utterances() {
		utts = append(utts, u)
	}
	select {
	case err := <-errc:
		return utts, err
	case <-time.After(5 * time.Second):
		t.Fatal("detector did not stop")
		return nil, nil
	}
}

func newVADDetector(t *testing.T, frames []audio.Frame, script []vad.Decision, mutate func(*Config)) (*Detector, *vadmock.Session) {
	t.Helper()
	sess := &vadmock.Session{Decisions: script}
	cfg := Config{
		SampleRate:       testRate,
		SilenceThreshold: 300 * time.Millisecond,
		MinUtterance:     250 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	d, err := NewDetector(&audiomock.Source{Frames: frames}, sess, cfg)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	return d, sess
}

func TestDetectorEmitsExactlyOneUtterance(t *testing.T) {
	// 2 silent frames, 10 speech frames (300ms), then enough silence to
	// cross the 300ms threshold.
	script := decisions(0, 2, 1, 10, 0, 12)
	d, sess := newVADDetector(t, makeFrames(len(script)), script, nil)

	utts, err := collect(t, d)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(utts) != 1 {
		t.Fatalf("expected exactly one utterance, got %d", len(utts))
	}

	u := utts[0]
	if u.Truncated {
		t.Error("silence-bounded utterance must not be flagged truncated")
	}
	if u.Start != 2*framePeriod {
		t.Errorf("start = %v, want %v (first speech frame)", u.Start, 2*framePeriod)
	}
	if u.End != 12*framePeriod {
		t.Errorf("end = %v, want %v (end of last speech frame)", u.End, 12*framePeriod)
	}
	if u.SampleRate != testRate {
		t.Errorf("sample rate = %d, want %d", u.SampleRate, testRate)
	}
	// Captured audio covers the debounced onset through the trailing window.
	if len(u.PCM) == 0 || len(u.PCM)%frameBytes != 0 {
		t.Errorf("captured %d bytes, want a whole number of frames", len(u.PCM))
	}
	if sess.ResetCallCount != 1 {
		t.Errorf("session should be reset once per emission, got %d", sess.ResetCallCount)
	}
}

func TestDetectorRejectsSingleFrameSpike(t *testing.T) {
	script := decisions(0, 3, 1, 1, 0, 15)
	d, _ := newVADDetector(t, makeFrames(len(script)), script, nil)

	utts, err := collect(t, d)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(utts) != 0 {
		t.Fatalf("single-frame spike must not open an utterance, got %d", len(utts))
	}
}

func TestDetectorSpeechResumesDuringTrailingSilence(t *testing.T) {
	// Speech, a sub-threshold pause (5 frames = 150ms), more speech, close.
	script := decisions(1, 10, 0, 5, 1, 10, 0, 12)
	d, _ := newVADDetector(t, makeFrames(len(script)), script, nil)

	utts, err := collect(t, d)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(utts) != 1 {
		t.Fatalf("pause below threshold must not split the utterance, got %d", len(utts))
	}
	if want := 25 * framePeriod; utts[0].End != want {
		t.Errorf("end = %v, want %v (end of resumed speech)", utts[0].End, want)
	}
}

func TestDetectorDiscardsShortUtterance(t *testing.T) {
	// 3 speech frames = 90ms of speech, below the 250ms minimum.
	script := decisions(1, 3, 0, 12)
	d, _ := newVADDetector(t, makeFrames(len(script)), script, nil)

	utts, err := collect(t, d)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(utts) != 0 {
		t.Fatalf("short utterance should be discarded, got %d", len(utts))
	}
}

func TestDetectorFlushesTruncatedOnStreamClose(t *testing.T) {
	// Stream ends mid-SPEAKING.
	script := decisions(1, 10)
	d, _ := newVADDetector(t, makeFrames(len(script)), script, nil)

	utts, err := collect(t, d)
	if err != nil {
		t.Fatalf("clean stream close should return nil, got %v", err)
	}
	if len(utts) != 1 {
		t.Fatalf("open utterance must be flushed at close, got %d", len(utts))
	}
	if !utts[0].Truncated {
		t.Error("flushed utterance must be flagged truncated")
	}
}

func TestDetectorPropagatesDeviceFault(t *testing.T) {
	fault := errors.New("device unplugged")
	sess := &vadmock.Session{Decisions: decisions(1, 5)}
	src := &audiomock.Source{Frames: makeFrames(5), ReadErr: fault}
	d, err := NewDetector(src, sess, Config{SampleRate: testRate, MinUtterance: time.Millisecond})
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	utts, err := collect(t, d)
	if !errors.Is(err, fault) {
		t.Fatalf("device fault should propagate, got %v", err)
	}
	if len(utts) != 1 || !utts[0].Truncated {
		t.Errorf("open utterance should be flushed truncated on fault: %+v", utts)
	}
}

func TestDetectorEnforcesMaxUtterance(t *testing.T) {
	// 40 solid speech frames (1.2s) against a 600ms cap.
	script := decisions(1, 40, 0, 12)
	d, _ := newVADDetector(t, makeFrames(len(script)), script, func(c *Config) {
		c.MaxUtterance = 600 * time.Millisecond
	})

	utts, err := collect(t, d)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(utts) < 1 {
		t.Fatal("capped utterance should still be emitted")
	}
	if !utts[0].Truncated {
		t.Error("capped utterance must be flagged truncated")
	}
	if got := utts[0].End - utts[0].Start; got > 700*time.Millisecond {
		t.Errorf("first utterance runs %v, cap is 600ms", got)
	}
}

func TestDetectorFixedDurationMode(t *testing.T) {
	src := &audiomock.Source{Frames: makeFrames(6)}
	d, err := NewDetector(src, nil, Config{
		SampleRate:    testRate,
		FixedDuration: 90 * time.Millisecond,
		MinUtterance:  10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	utts, err := collect(t, d)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(utts) != 2 {
		t.Fatalf("expected 2 fixed windows from 6 frames, got %d", len(utts))
	}
	for i, u := range utts {
		if u.Truncated {
			t.Errorf("utterance %d: complete window must not be truncated", i)
		}
		if len(u.PCM) != 3*frameBytes {
			t.Errorf("utterance %d: captured %d bytes, want %d", i, len(u.PCM), 3*frameBytes)
		}
	}
}

func TestDetectorRequiresSessionOutsideFixedMode(t *testing.T) {
	_, err := NewDetector(&audiomock.Source{}, nil, Config{SampleRate: testRate})
	if err == nil {
		t.Fatal("expected error without a vad session in vad mode")
	}
}
