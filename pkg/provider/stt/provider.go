// Package stt defines the Provider interface for speech-to-text backends.
//
// The assistant processes discrete utterances, not a token-by-token stream:
// the turn detector hands a complete Utterance to Transcribe and waits for
// the full text. Providers that wrap streaming engines should buffer
// internally and return only the final transcript.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/types"
)

// Transcript is the result of transcribing one utterance.
type Transcript struct {
	// Text is the transcribed speech content. Empty (with a nil error) means
	// the audio was inaudible or contained no recognisable speech.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). Zero when the
	// backend does not report confidence.
	Confidence float64

	// Language is the detected or configured BCP-47 language code.
	Language string
}

// Provider is the abstraction over any speech-to-text backend.
//
// Transcribe must respect ctx cancellation and deadlines. Transient faults
// (timeouts, rate limits, connection resets) should be returned as errors;
// the caller applies the retry policy.
type Provider interface {
	// Transcribe converts a captured utterance to text.
	Transcribe(ctx context.Context, u types.Utterance) (Transcript, error)
}
