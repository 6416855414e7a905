// Package ragquery provides the built-in "memory_search" tool, which gives
// the model on-demand access to the long-term semantic memory beyond what was
// retrieved up front for the turn.
//
// All handlers are safe for concurrent use.
package ragquery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/internal/tools"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/memory"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/types"
)

// defaultTopK is the result limit when top_k is not provided.
const defaultTopK = 5

// queryArgs is the JSON-decoded input for the "memory_search" tool.
type queryArgs struct {
	// Query is the natural-language question to match against stored records.
	Query string `json:"query"`

	// TopK caps the number of records returned. Defaults to 5 when <= 0.
	TopK int `json:"top_k,omitempty"`
}

// queryHit is one retrieved record returned to the model.
type queryHit struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Distance float64           `json:"distance"`
}

// makeQueryHandler returns a handler that delegates to mem.Retrieve.
func makeQueryHandler(mem *memory.Manager) func(context.Context, string) (string, error) {
	return func(ctx context.Context, args string) (string, error) {
		var a queryArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("ragquery: failed to parse arguments: %w", err)
		}
		if a.Query == "" {
			return "", fmt.Errorf("ragquery: query must not be empty")
		}
		topK := a.TopK
		if topK <= 0 {
			topK = defaultTopK
		}

		results, err := mem.Retrieve(ctx, a.Query, topK)
		if err != nil {
			return "", fmt.Errorf("ragquery: %w", err)
		}
		if len(results) == 0 {
			return "no stored memories match that query", nil
		}

		hits := make([]queryHit, len(results))
		for i, r := range results {
			hits[i] = queryHit{Content: r.Record.Content, Metadata: r.Record.Metadata, Distance: r.Distance}
		}
		res, err := json.Marshal(hits)
		if err != nil {
			return "", fmt.Errorf("ragquery: encode result: %w", err)
		}
		return string(res), nil
	}
}

// NewTools constructs the memory-search tool set over mem.
func NewTools(mem *memory.Manager) []tools.Tool {
	return []tools.Tool{
		{
			Definition: types.ToolDefinition{
				Name:        "memory_search",
				Description: "Search the user's long-term memory for stored facts and past-session summaries by semantic similarity. Returns matching records ordered most similar first. Use when the answer likely depends on something the user told the assistant before.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query": map[string]any{
							"type":        "string",
							"description": "Natural-language description of what to recall.",
						},
						"top_k": map[string]any{
							"type":        "integer",
							"description": "Maximum number of records to return. Defaults to 5.",
						},
					},
					"required": []string{"query"},
				},
				Idempotent:    true,
				MaxDurationMs: 5000,
			},
			Handler: makeQueryHandler(mem),
		},
	}
}
