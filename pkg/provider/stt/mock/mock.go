// Package mock provides test doubles for the stt package interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/stt"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/types"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Utterance is the utterance passed to Transcribe.
	Utterance types.Utterance
}

// Provider is a mock implementation of stt.Provider. Results are consumed in
// order; once exhausted the last result repeats.
type Provider struct {
	mu sync.Mutex

	// Results is the scripted sequence of transcripts to return.
	Results []stt.Transcript

	// Errs is the scripted sequence of errors, consumed in lockstep with
	// Results. A nil entry means success.
	Errs []error

	// TranscribeCalls records every call in order.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns the next scripted result.
func (p *Provider) Transcribe(_ context.Context, u types.Utterance) (stt.Transcript, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Utterance: u})

	idx := len(p.TranscribeCalls) - 1
	if idx < len(p.Errs) && p.Errs[idx] != nil {
		return stt.Transcript{}, p.Errs[idx]
	}
	if len(p.Results) == 0 {
		return stt.Transcript{}, nil
	}
	if idx >= len(p.Results) {
		idx = len(p.Results) - 1
	}
	return p.Results[idx], nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
