// Package mock provides test doubles for the tts package interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Provider.Synthesize.
type SynthesizeCall struct {
	// Text is the text passed to Synthesize.
	Text string

	// Speed is the rate multiplier passed to Synthesize.
	Speed float64
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by every Synthesize call.
	Result tts.Audio

	// SynthesizeErr, if non-nil, is returned by every Synthesize call.
	SynthesizeErr error

	// SynthesizeCalls records every call in order.
	SynthesizeCalls []SynthesizeCall
}

// Synthesize records the call and returns Result, SynthesizeErr.
func (p *Provider) Synthesize(_ context.Context, text string, speed float64) (tts.Audio, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Text: text, Speed: speed})
	if p.SynthesizeErr != nil {
		return tts.Audio{}, p.SynthesizeErr
	}
	return p.Result, nil
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)
