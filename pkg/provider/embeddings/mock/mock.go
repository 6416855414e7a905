// Package mock provides a test double for the embeddings.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/embeddings"
)

// Provider is a mock implementation of embeddings.Provider.
type Provider struct {
	mu sync.Mutex

	// EmbedResult is returned by every Embed call.
	EmbedResult []float32

	// EmbedErr, if non-nil, is returned by every Embed call.
	EmbedErr error

	// EmbedBatchErr, if non-nil, is returned by every EmbedBatch call.
	// Otherwise EmbedBatch returns EmbedResult once per input text.
	EmbedBatchErr error

	// DimensionsValue is returned by Dimensions. Zero means len(EmbedResult).
	DimensionsValue int

	// ModelIDValue is returned by ModelID.
	ModelIDValue string

	// EmbedCalls records the text of every Embed call in order.
	EmbedCalls []string

	// EmbedBatchCalls records copies of every EmbedBatch input in order.
	EmbedBatchCalls [][]string
}

// Embed records the call and returns EmbedResult, EmbedErr.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = append(p.EmbedCalls, text)
	if p.EmbedErr != nil {
		return nil, p.EmbedErr
	}
	return p.EmbedResult, nil
}

// EmbedBatch records the call and returns EmbedResult repeated per text.
func (p *Provider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]string, len(texts))
	copy(cp, texts)
	p.EmbedBatchCalls = append(p.EmbedBatchCalls, cp)
	if p.EmbedBatchErr != nil {
		return nil, p.EmbedBatchErr
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = p.EmbedResult
	}
	return out, nil
}

// Dimensions returns DimensionsValue, or len(EmbedResult) when unset.
func (p *Provider) Dimensions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.DimensionsValue != 0 {
		return p.DimensionsValue
	}
	return len(p.EmbedResult)
}

// ModelID returns ModelIDValue.
func (p *Provider) ModelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ModelIDValue
}

// Ensure Provider implements embeddings.Provider at compile time.
var _ embeddings.Provider = (*Provider)(nil)
