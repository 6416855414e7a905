package resilience

import (
	"context"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/llm"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/types"
)

// LLMFallback implements [llm.Provider] with automatic failover across
// multiple model backends. Each backend has its own circuit breaker; when the
// primary fails or its breaker is open, the next healthy fallback is tried.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

// Compile-time interface assertion.
var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an [LLMFallback] with primary as the preferred
// backend.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional model provider as a fallback.
func (f *LLMFallback) AddFallback(name string, provider llm.Provider) {
	f.group.AddFallback(name, provider)
}

// Complete sends the request to the first healthy provider.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// CountTokens delegates to the primary's counter. Token estimation is local
// arithmetic, so failover adds nothing here.
func (f *LLMFallback) CountTokens(turns []types.Turn) (int, error) {
	return f.group.Primary().CountTokens(turns)
}

// Capabilities returns the primary's capabilities; they are static metadata
// and do not participate in failover.
func (f *LLMFallback) Capabilities() llm.Capabilities {
	return f.group.Primary().Capabilities()
}
