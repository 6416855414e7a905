// Package types defines the shared types used across all assistant packages.
//
// These types form the lingua franca between the audio front-end, the command
// router, the dispatch loop, and the memory layers. They are intentionally
// minimal — each package defines its own domain types, but cross-cutting data
// structures live here to avoid circular imports.
package types

import "time"

// Utterance is one bounded segment of captured speech audio, emitted by the
// turn detector when a speaker starts and finishes talking. An Utterance is
// immutable once emitted and is consumed exactly once by the transcription
// provider.
type Utterance struct {
	// PCM is the captured audio as 16-bit signed little-endian samples.
	PCM []byte

	// SampleRate in Hz (e.g., 16000 for STT input).
	SampleRate int

	// Start marks when speech began, relative to stream start.
	Start time.Duration

	// End marks when speech ended, relative to stream start.
	End time.Duration

	// Truncated is true when the audio stream closed mid-speech and the
	// segment was flushed without a trailing-silence boundary.
	Truncated bool
}

// Duration returns the captured speech length.
func (u Utterance) Duration() time.Duration { return u.End - u.Start }

// Conversation roles. Instant commands never produce turns; only the model
// path writes to the session log.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Turn is one logical step in the conversation: a user utterance, an
// assistant reply (possibly requesting tool calls), or a tool result. The
// ordered sequence of Turns forms the session log, which is append-only
// within a session.
type Turn struct {
	// Role is one of RoleSystem, RoleUser, RoleAssistant, or RoleTool.
	Role string `json:"role"`

	// Content is the text content. May be empty on an assistant turn that
	// carries only tool calls.
	Content string `json:"content"`

	// ToolCalls contains tool invocations requested by the assistant.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID is set when Role is RoleTool, identifying which call this
	// turn responds to.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// ToolName names the tool that produced a RoleTool turn.
	ToolName string `json:"tool_name,omitempty"`

	// Timestamp is when this turn was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// ToolCall is a tool invocation requested by the model inside a turn. Each
// call is matched 1:1 with a ToolResult via ID.
type ToolCall struct {
	// ID is the unique invocation identifier (provider-assigned).
	ID string `json:"id"`

	// Name is the tool name.
	Name string `json:"name"`

	// Arguments is the JSON-encoded argument object.
	Arguments string `json:"arguments"`
}

// ToolResult is the outcome of executing a single ToolCall.
type ToolResult struct {
	// CallID matches the ToolCall.ID this result resolves.
	CallID string `json:"call_id"`

	// Name is the tool that was executed.
	Name string `json:"name"`

	// Content is the result payload, or a human-readable error description
	// when IsError is true.
	Content string `json:"content"`

	// IsError reports an application-level failure. The dispatch loop feeds
	// error results back to the model so it can self-correct instead of
	// aborting the turn.
	IsError bool `json:"is_error"`
}

// ToolDefinition describes a capability the model may invoke mid-turn.
type ToolDefinition struct {
	// Name is the tool's unique identifier.
	Name string

	// Description explains what the tool does (included in model prompts).
	Description string

	// Parameters is the JSON Schema describing the tool's input parameters.
	Parameters map[string]any

	// Idempotent indicates whether the tool can be safely retried after a
	// transient failure. Side-effecting tools should leave this false.
	Idempotent bool

	// MaxDurationMs is a hard per-call timeout hint. Zero means use the
	// dispatch loop's default tool timeout.
	MaxDurationMs int
}
