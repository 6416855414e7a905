// Package mock provides test doubles for the llm package interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/llm"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/types"
)

// Provider is a mock implementation of llm.Provider. Responses are scripted:
// the i-th Complete call returns Errs[i] when that entry is non-nil, otherwise
// Responses[i]. Errs is indexed by call count even when Responses is shorter
// or empty; when the response script runs out the last response repeats.
type Provider struct {
	mu sync.Mutex

	// Responses are returned by successive Complete calls.
	Responses []*llm.CompletionResponse

	// Errs are returned by successive Complete calls in lockstep with
	// Responses; a nil entry means no error for that call.
	Errs []error

	// TokensPerTurn is the per-turn count used by CountTokens. Zero means 10.
	TokensPerTurn int

	// CountTokensErr, if non-nil, is returned by every CountTokens call.
	CountTokensErr error

	// Caps is returned by Capabilities. A zero value gets sensible defaults.
	Caps llm.Capabilities

	// CompleteCalls records every request passed to Complete, in order.
	CompleteCalls []llm.CompletionRequest

	next int
}

// Complete records the call and returns the next scripted response.
func (p *Provider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = append(p.CompleteCalls, req)

	i := p.next
	p.next++

	if i < len(p.Errs) && p.Errs[i] != nil {
		return nil, p.Errs[i]
	}
	if i >= len(p.Responses) {
		i = len(p.Responses) - 1
	}
	if i < 0 {
		return &llm.CompletionResponse{}, nil
	}
	return p.Responses[i], nil
}

// CountTokens returns TokensPerTurn (default 10) per turn.
func (p *Provider) CountTokens(turns []types.Turn) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CountTokensErr != nil {
		return 0, p.CountTokensErr
	}
	per := p.TokensPerTurn
	if per == 0 {
		per = 10
	}
	return per * len(turns), nil
}

// Capabilities returns Caps, substituting defaults for zero fields.
func (p *Provider) Capabilities() llm.Capabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	caps := p.Caps
	if caps.ContextWindow == 0 {
		caps.ContextWindow = 8192
	}
	if caps.MaxOutputTokens == 0 {
		caps.MaxOutputTokens = 1024
	}
	return caps
}

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)
