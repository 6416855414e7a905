// Package embeddings defines the Provider interface for text-embedding
// backends.
//
// The semantic memory tier maps distilled facts to dense float32 vectors and
// ranks them by cosine distance against the embedded user utterance. A
// Provider wraps whatever service produces those vectors (OpenAI
// text-embedding-3, a local model behind an OpenAI-compatible endpoint, …).
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// All vectors returned by one Provider instance share the dimensionality
// reported by Dimensions. Vectors from different instances must not be mixed
// in the same similarity computation unless both use the same model.
type Provider interface {
	// Embed computes the embedding vector for a single text string. The input
	// is passed through verbatim; callers apply any model-specific prefixes.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds several texts in one provider call. The i-th result
	// corresponds to texts[i]. On error no partial results are returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed length of every vector this provider
	// produces, constant for the lifetime of the instance.
	Dimensions() int

	// ModelID returns the provider-specific model identifier, for logging and
	// for verifying that stored vectors match the configured model.
	ModelID() string
}
