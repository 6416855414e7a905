// Package brain runs the tool dispatch loop: it assembles the model context
// for a user utterance, lets the model request tool calls, executes them, and
// feeds the results back until the model produces a final spoken reply or the
// round cap forces one.
//
// The loop maintains two invariants on the session log: every assistant turn
// that requests N tool calls is followed by exactly N tool-result turns in
// call order, and the log is append-only within a turn.
package brain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/internal/observe"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/internal/resilience"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/internal/tools"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/memory"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/llm"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/types"
)

// Defaults applied by NewEngine when the corresponding Config field is zero.
const (
	defaultRetrievalK  = 5
	defaultTokenBudget = 4000
	defaultMaxRounds   = 5
	defaultToolTimeout = 30 * time.Second

	// retryDelay is the pause before the single retry of an idempotent tool.
	retryDelay = 100 * time.Millisecond
)

// ToolHost is the registry surface the loop needs. *tools.Registry satisfies
// it.
type ToolHost interface {
	Definitions() []types.ToolDefinition
	Definition(name string) (types.ToolDefinition, bool)
	Execute(ctx context.Context, name, args string) (tools.Result, error)
}

// Config tunes the dispatch loop.
type Config struct {
	// SystemPrompt is the base instruction prepended to every turn.
	SystemPrompt string

	// RetrievalK is how many memory records are retrieved per turn.
	RetrievalK int

	// TokenBudget caps the conversation history sent to the model. The
	// system prompt and the current user utterance are never dropped.
	TokenBudget int

	// MaxRounds caps tool-call rounds per turn. When the model still wants
	// tools after MaxRounds rounds, a final completion without tool
	// definitions is forced and the turn is flagged truncated.
	MaxRounds int

	// Temperature is passed through to the model.
	Temperature float64

	// ModelTimeout bounds each completion call. Zero means no deadline.
	ModelTimeout time.Duration

	// ToolTimeout bounds each tool execution unless the tool's definition
	// declares its own MaxDurationMs.
	ToolTimeout time.Duration

	// Metrics receives per-tool-call instruments. Nil disables them.
	Metrics *observe.Metrics
}

// TurnResult is what one model turn produced, for synthesis and analytics.
type TurnResult struct {
	// Reply is the final assistant text to speak.
	Reply string

	// Rounds is the number of completion calls made, including a forced
	// final one.
	Rounds int

	// Truncated reports that the round cap cut the tool loop short.
	Truncated bool

	// ToolsUsed lists the tool names executed, in invocation order across
	// rounds (duplicates preserved).
	ToolsUsed []string

	// Usage is the token usage accumulated over all completion calls.
	Usage llm.Usage
}

// Engine drives the dispatch loop for one conversation.
type Engine struct {
	model llm.Provider
	mem   *memory.Manager
	host  ToolHost
	cfg   Config
	log   *slog.Logger
}

// NewEngine creates an Engine. model and mem are required; a nil host
// disables tool calling entirely.
func NewEngine(model llm.Provider, mem *memory.Manager, host ToolHost, cfg Config) (*Engine, error) {
	if model == nil {
		return nil, fmt.Errorf("brain: model provider must not be nil")
	}
	if mem == nil {
		return nil, fmt.Errorf("brain: memory manager must not be nil")
	}
	if cfg.RetrievalK == 0 {
		cfg.RetrievalK = defaultRetrievalK
	}
	if cfg.TokenBudget == 0 {
		cfg.TokenBudget = defaultTokenBudget
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = defaultMaxRounds
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = defaultToolTimeout
	}
	return &Engine{
		model: model,
		mem:   mem,
		host:  host,
		cfg:   cfg,
		log:   slog.With("component", "brain"),
	}, nil
}

// Respond handles one forwarded user utterance and returns the final reply.
// The user turn, every assistant turn, and every tool result are appended to
// the session log as they happen, so a mid-turn failure leaves a consistent
// prefix behind.
func (e *Engine) Respond(ctx context.Context, utterance string) (*TurnResult, error) {
	e.mem.Append(types.Turn{Role: types.RoleUser, Content: utterance})

	system := e.assembleSystem(ctx, utterance)
	res := &TurnResult{}

	for {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("brain: turn cancelled: %w", err)
		}

		var defs []types.ToolDefinition
		forced := false
		if e.host != nil {
			defs = e.host.Definitions()
		}
		if res.Rounds >= e.cfg.MaxRounds && len(defs) > 0 {
			// Round cap reached; ask for a final answer with no tools on
			// offer.
			defs = nil
			forced = true
			res.Truncated = true
			e.log.Warn("round cap reached, forcing final completion", "rounds", res.Rounds)
		}

		messages, err := e.trimToBudget(e.mem.Log())
		if err != nil {
			return res, err
		}

		resp, err := e.complete(ctx, llm.CompletionRequest{
			SystemPrompt: system,
			Messages:     messages,
			Tools:        defs,
			Temperature:  e.cfg.Temperature,
		})
		if err != nil {
			return res, fmt.Errorf("brain: completion round %d: %w", res.Rounds+1, err)
		}
		res.Rounds++
		res.Usage.PromptTokens += resp.Usage.PromptTokens
		res.Usage.CompletionTokens += resp.Usage.CompletionTokens
		res.Usage.TotalTokens += resp.Usage.TotalTokens

		e.mem.Append(types.Turn{
			Role:      types.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		if len(resp.ToolCalls) == 0 || forced {
			res.Reply = resp.Content
			return res, nil
		}

		results, err := e.executeRound(ctx, resp.ToolCalls)
		if err != nil {
			return res, err
		}
		for _, tr := range results {
			res.ToolsUsed = append(res.ToolsUsed, tr.Name)
			content := tr.Content
			if tr.IsError {
				content = "tool error: " + content
			}
			e.mem.Append(types.Turn{
				Role:       types.RoleTool,
				Content:    content,
				ToolCallID: tr.CallID,
				ToolName:   tr.Name,
			})
		}
	}
}

// complete calls the model under the configured timeout.
func (e *Engine) complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if e.cfg.ModelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ModelTimeout)
		defer cancel()
	}
	return e.model.Complete(ctx, req)
}

// executeRound runs all tool calls of one round concurrently and returns one
// result per call, in call order. Every call gets a result: execution
// failures, timeouts, and unknown tools come back as error-kind results so
// the model can recover. Only a cancelled parent context aborts the round.
func (e *Engine) executeRound(ctx context.Context, calls []types.ToolCall) ([]types.ToolResult, error) {
	results := make([]types.ToolResult, len(calls))
	g, gctx := errgroup.WithContext(ctx)

	for i, call := range calls {
		g.Go(func() error {
			results[i] = e.executeCall(gctx, call)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("brain: tool round: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("brain: tool round cancelled: %w", err)
	}
	return results, nil
}

// executeCall runs one tool call with its per-call timeout. Idempotent tools
// get a single retry on transport-level failure; side-effecting tools never
// do.
func (e *Engine) executeCall(ctx context.Context, call types.ToolCall) types.ToolResult {
	// No host means no tools were offered; a model that calls one anyway
	// gets an error result, not a crash.
	if e.host == nil {
		return types.ToolResult{
			CallID:  call.ID,
			Name:    call.Name,
			Content: fmt.Sprintf("tool %q is not available", call.Name),
			IsError: true,
		}
	}

	timeout := e.cfg.ToolTimeout
	idempotent := false
	if def, ok := e.host.Definition(call.Name); ok {
		if def.MaxDurationMs > 0 {
			timeout = time.Duration(def.MaxDurationMs) * time.Millisecond
		}
		idempotent = def.Idempotent
	}

	attempts := 1
	if idempotent {
		attempts = 2
	}

	var out tools.Result
	start := time.Now()
	err := resilience.Retry(ctx, attempts, retryDelay, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		var execErr error
		out, execErr = e.host.Execute(callCtx, call.Name, call.Arguments)
		return execErr
	})

	result := types.ToolResult{CallID: call.ID, Name: call.Name}
	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		result.Content = fmt.Sprintf("tool %q timed out after %s", call.Name, timeout)
		result.IsError = true
	case err != nil:
		result.Content = err.Error()
		result.IsError = true
	default:
		result.Content = out.Content
		result.IsError = out.IsError
	}

	if e.cfg.Metrics != nil {
		status := "ok"
		if result.IsError {
			status = "error"
		}
		e.cfg.Metrics.RecordToolCall(ctx, call.Name, status, time.Since(start).Seconds())
	}
	e.log.Debug("tool call finished",
		"tool", call.Name,
		"error", result.IsError,
		"duration", time.Since(start))
	return result
}

// assembleSystem builds the per-turn system prompt: base instructions plus
// the user-profile excerpt and the memory records retrieved for this
// utterance. Retrieval and profile failures degrade to a plain prompt.
func (e *Engine) assembleSystem(ctx context.Context, utterance string) string {
	var b strings.Builder
	b.WriteString(e.cfg.SystemPrompt)

	if profile, err := e.mem.Profile(ctx); err != nil {
		e.log.Warn("loading profile failed", "error", err)
	} else if profile != "" {
		b.WriteString("\n\nWhat you know about the user:\n")
		b.WriteString(profile)
	}

	records, err := e.mem.Retrieve(ctx, utterance, e.cfg.RetrievalK)
	if err != nil {
		e.log.Warn("memory retrieval failed", "error", err)
	}
	if len(records) > 0 {
		b.WriteString("\n\nRelevant memories:\n")
		for _, r := range records {
			b.WriteString("- ")
			b.WriteString(r.Record.Content)
			b.WriteString("\n")
		}
	}
	return b.String()
}
