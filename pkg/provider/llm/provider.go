// Package llm defines the Provider interface for language-model backends.
//
// An LLM provider wraps a remote or local model API (OpenAI, Anthropic, a
// local Ollama instance, …) and exposes a uniform completion interface so the
// dispatch loop can run the tool-call/tool-result protocol without coupling
// to any specific SDK.
//
// The assistant works with discrete turns, so only batch completion is
// modelled — a response is either final text or a set of tool calls, never a
// token stream.
//
// Implementations must be safe for concurrent use.
package llm

import (
	"context"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/types"
)

// Usage holds token accounting information returned by the backend. All
// counts are in the model's native token unit and may differ between
// providers for the same textual content.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the input messages,
	// system prompt, and tool schemas.
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens.
	TotalTokens int
}

// CompletionRequest carries everything the model needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// SystemPrompt is a high-priority instruction injected before the
	// conversation history.
	SystemPrompt string

	// Messages is the ordered conversation history. The last message is
	// typically the user turn that drives the response.
	Messages []types.Turn

	// Tools is the set of tool definitions offered to the model. Leave nil
	// to force a plain-text answer (used when the dispatch loop hits its
	// round cap).
	Tools []types.ToolDefinition

	// Temperature controls output randomness in [0.0, 2.0]. Zero requests
	// the provider default.
	Temperature float64

	// MaxTokens caps completion length. Zero means provider default.
	MaxTokens int
}

// CompletionResponse is the model's reply: final text, tool calls, or both.
type CompletionResponse struct {
	// Content is the assistant's text. Empty when the model responds
	// exclusively with tool calls.
	Content string

	// ToolCalls lists tool invocations the model is requesting. The caller
	// executes them and appends the results to the conversation.
	ToolCalls []types.ToolCall

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Capabilities describes what a provider's underlying model supports.
type Capabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens one completion can generate.
	MaxOutputTokens int

	// SupportsToolCalling indicates native function/tool calling support.
	SupportsToolCalling bool
}

// Provider is the abstraction over any LLM backend.
//
// Each method must propagate context cancellation promptly.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates how many tokens the given turns would consume in
	// the model's context window. Used to enforce the context budget before
	// sending a request. The result need not be exact but should not
	// undercount.
	CountTokens(turns []types.Turn) (int, error)

	// Capabilities returns static metadata about the underlying model,
	// constant for the lifetime of the Provider instance.
	Capabilities() Capabilities
}
