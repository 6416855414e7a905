package brain

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/internal/tools"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/memory"
	memmock "github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/memory/mock"
	embmock "github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/embeddings/mock"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/llm"
	llmmock "github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/llm/mock"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/types"
)

// hostMock is a call-recording ToolHost with scripted per-tool behaviour.
type hostMock struct {
	defs     []types.ToolDefinition
	handlers map[string]func(ctx context.Context, args string) (tools.Result, error)

	mu    sync.Mutex
	calls []string
}

var _ ToolHost = (*hostMock)(nil)

func (h *hostMock) Definitions() []types.ToolDefinition { return h.defs }

func (h *hostMock) Definition(name string) (types.ToolDefinition, bool) {
	for _, d := range h.defs {
		if d.Name == name {
			return d, true
		}
	}
	return types.ToolDefinition{}, false
}

func (h *hostMock) Execute(ctx context.Context, name, args string) (tools.Result, error) {
	h.mu.Lock()
	h.calls = append(h.calls, name)
	h.mu.Unlock()
	if fn, ok := h.handlers[name]; ok {
		return fn(ctx, args)
	}
	return tools.Result{Content: "unknown tool", IsError: true}, nil
}

func (h *hostMock) callCount(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.calls {
		if c == name {
			n++
		}
	}
	return n
}

func textResponse(text string) *llm.CompletionResponse {
	return &llm.CompletionResponse{
		Content: text,
		Usage:   llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

func toolResponse(calls ...types.ToolCall) *llm.CompletionResponse {
	return &llm.CompletionResponse{
		ToolCalls: calls,
		Usage:     llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

func okTool(name string, idempotent bool) types.ToolDefinition {
	return types.ToolDefinition{Name: name, Idempotent: idempotent}
}

type fixture struct {
	engine  *Engine
	model   *llmmock.Provider
	mem     *memory.Manager
	host    *hostMock
	profile *memmock.Profile
	index   *memmock.Index
}

func newFixture(t *testing.T, model *llmmock.Provider, host *hostMock, mutate func(*Config)) *fixture {
	t.Helper()
	index := &memmock.Index{}
	profile := &memmock.Profile{}
	embedder := &embmock.Provider{EmbedResult: []float32{1, 0}}
	mem, err := memory.NewManager(embedder, &memmock.Archive{}, index, profile)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	cfg := Config{SystemPrompt: "You are a helpful voice assistant."}
	if mutate != nil {
		mutate(&cfg)
	}
	var th ToolHost
	if host != nil {
		th = host
	}
	engine, err := NewEngine(model, mem, th, cfg)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return &fixture{engine: engine, model: model, mem: mem, host: host, profile: profile, index: index}
}

func TestRespondPlainAnswer(t *testing.T) {
	model := &llmmock.Provider{Responses: []*llm.CompletionResponse{textResponse("hello there")}}
	f := newFixture(t, model, nil, nil)

	res, err := f.engine.Respond(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if res.Reply != "hello there" || res.Rounds != 1 || res.Truncated {
		t.Errorf("result = %+v", res)
	}
	if res.Usage.TotalTokens != 15 {
		t.Errorf("usage = %+v", res.Usage)
	}

	log := f.mem.Log()
	if len(log) != 2 || log[0].Role != types.RoleUser || log[1].Role != types.RoleAssistant {
		t.Fatalf("log = %+v", log)
	}
	if log[0].Content != "hi" {
		t.Errorf("user turn = %q", log[0].Content)
	}
}

func TestRespondToolRoundTrip(t *testing.T) {
	model := &llmmock.Provider{Responses: []*llm.CompletionResponse{
		toolResponse(
			types.ToolCall{ID: "call-1", Name: "alpha", Arguments: `{"x":1}`},
			types.ToolCall{ID: "call-2", Name: "beta", Arguments: `{}`},
		),
		textResponse("done"),
	}}
	host := &hostMock{
		defs: []types.ToolDefinition{okTool("alpha", true), okTool("beta", true)},
		handlers: map[string]func(context.Context, string) (tools.Result, error){
			"alpha": func(context.Context, string) (tools.Result, error) {
				return tools.Result{Content: "alpha says hi"}, nil
			},
			"beta": func(context.Context, string) (tools.Result, error) {
				return tools.Result{Content: "beta says hi"}, nil
			},
		},
	}
	f := newFixture(t, model, host, nil)

	res, err := f.engine.Respond(context.Background(), "do both things")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if res.Reply != "done" || res.Rounds != 2 || res.Truncated {
		t.Errorf("result = %+v", res)
	}
	if len(res.ToolsUsed) != 2 || res.ToolsUsed[0] != "alpha" || res.ToolsUsed[1] != "beta" {
		t.Errorf("tools used = %v", res.ToolsUsed)
	}

	// The log must pair the two calls with exactly two results, in call
	// order, before the final assistant turn.
	log := f.mem.Log()
	if len(log) != 5 {
		t.Fatalf("log has %d turns: %+v", len(log), log)
	}
	if len(log[1].ToolCalls) != 2 {
		t.Fatalf("assistant turn should carry both calls: %+v", log[1])
	}
	if log[2].Role != types.RoleTool || log[2].ToolCallID != "call-1" || log[2].ToolName != "alpha" {
		t.Errorf("first result = %+v", log[2])
	}
	if log[3].Role != types.RoleTool || log[3].ToolCallID != "call-2" || log[3].ToolName != "beta" {
		t.Errorf("second result = %+v", log[3])
	}
	if log[4].Role != types.RoleAssistant || log[4].Content != "done" {
		t.Errorf("final turn = %+v", log[4])
	}

	// The second completion must have seen the tool results.
	if len(model.CompleteCalls) != 2 {
		t.Fatalf("model called %d times", len(model.CompleteCalls))
	}
	second := model.CompleteCalls[1].Messages
	if len(second) != 4 || second[2].Content != "alpha says hi" {
		t.Errorf("second round messages = %+v", second)
	}
}

func TestRespondRoundCapForcesFinal(t *testing.T) {
	loop := types.ToolCall{ID: "c", Name: "alpha", Arguments: "{}"}
	model := &llmmock.Provider{Responses: []*llm.CompletionResponse{
		toolResponse(loop),
		toolResponse(loop),
		textResponse("best effort answer"),
	}}
	host := &hostMock{
		defs: []types.ToolDefinition{okTool("alpha", true)},
		handlers: map[string]func(context.Context, string) (tools.Result, error){
			"alpha": func(context.Context, string) (tools.Result, error) {
				return tools.Result{Content: "more data"}, nil
			},
		},
	}
	f := newFixture(t, model, host, func(c *Config) { c.MaxRounds = 2 })

	res, err := f.engine.Respond(context.Background(), "loop forever")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if !res.Truncated {
		t.Error("round cap must flag the turn truncated")
	}
	if res.Rounds != 3 {
		t.Errorf("rounds = %d, want 3 (2 tool rounds + forced final)", res.Rounds)
	}
	if res.Reply != "best effort answer" {
		t.Errorf("reply = %q", res.Reply)
	}
	// The forced completion must offer no tools.
	last := model.CompleteCalls[len(model.CompleteCalls)-1]
	if len(last.Tools) != 0 {
		t.Errorf("forced completion still offered %d tools", len(last.Tools))
	}
}

func TestRespondToolErrorFedBackToModel(t *testing.T) {
	model := &llmmock.Provider{Responses: []*llm.CompletionResponse{
		toolResponse(types.ToolCall{ID: "c1", Name: "flaky", Arguments: "{}"}),
		textResponse("sorry, that failed"),
	}}
	host := &hostMock{
		defs: []types.ToolDefinition{okTool("flaky", false)},
		handlers: map[string]func(context.Context, string) (tools.Result, error){
			"flaky": func(context.Context, string) (tools.Result, error) {
				return tools.Result{Content: "backend unavailable", IsError: true}, nil
			},
		},
	}
	f := newFixture(t, model, host, nil)

	res, err := f.engine.Respond(context.Background(), "try it")
	if err != nil {
		t.Fatalf("tool failure must not fail the turn: %v", err)
	}
	if res.Reply != "sorry, that failed" {
		t.Errorf("reply = %q", res.Reply)
	}
	log := f.mem.Log()
	if log[2].Role != types.RoleTool || !strings.Contains(log[2].Content, "tool error") {
		t.Errorf("error result turn = %+v", log[2])
	}
}

func TestRespondRetriesIdempotentToolOnce(t *testing.T) {
	model := &llmmock.Provider{Responses: []*llm.CompletionResponse{
		toolResponse(types.ToolCall{ID: "c1", Name: "lookup", Arguments: "{}"}),
		textResponse("ok"),
	}}
	attempts := 0
	host := &hostMock{
		defs: []types.ToolDefinition{okTool("lookup", true)},
		handlers: map[string]func(context.Context, string) (tools.Result, error){
			"lookup": func(context.Context, string) (tools.Result, error) {
				attempts++
				if attempts == 1 {
					return tools.Result{}, errors.New("connection reset")
				}
				return tools.Result{Content: "found it"}, nil
			},
		},
	}
	f := newFixture(t, model, host, nil)

	if _, err := f.engine.Respond(context.Background(), "look it up"); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if host.callCount("lookup") != 2 {
		t.Errorf("idempotent tool should be retried once, got %d attempts", host.callCount("lookup"))
	}
	log := f.mem.Log()
	if log[2].Content != "found it" {
		t.Errorf("retried result = %+v", log[2])
	}
}

func TestRespondNeverRetriesSideEffectingTool(t *testing.T) {
	model := &llmmock.Provider{Responses: []*llm.CompletionResponse{
		toolResponse(types.ToolCall{ID: "c1", Name: "send", Arguments: "{}"}),
		textResponse("reported"),
	}}
	host := &hostMock{
		defs: []types.ToolDefinition{okTool("send", false)},
		handlers: map[string]func(context.Context, string) (tools.Result, error){
			"send": func(context.Context, string) (tools.Result, error) {
				return tools.Result{}, errors.New("timeout mid-write")
			},
		},
	}
	f := newFixture(t, model, host, nil)

	if _, err := f.engine.Respond(context.Background(), "send it"); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if host.callCount("send") != 1 {
		t.Errorf("side-effecting tool must not be retried, got %d attempts", host.callCount("send"))
	}
	log := f.mem.Log()
	if log[2].Role != types.RoleTool || !strings.Contains(log[2].Content, "tool error") {
		t.Errorf("failure should surface as an error result: %+v", log[2])
	}
}

func TestRespondToolTimeoutIsRecoverable(t *testing.T) {
	model := &llmmock.Provider{Responses: []*llm.CompletionResponse{
		toolResponse(types.ToolCall{ID: "c1", Name: "slow", Arguments: "{}"}),
		textResponse("moving on"),
	}}
	host := &hostMock{
		defs: []types.ToolDefinition{{Name: "slow", MaxDurationMs: 20}},
		handlers: map[string]func(context.Context, string) (tools.Result, error){
			"slow": func(ctx context.Context, _ string) (tools.Result, error) {
				<-ctx.Done()
				return tools.Result{}, ctx.Err()
			},
		},
	}
	f := newFixture(t, model, host, nil)

	res, err := f.engine.Respond(context.Background(), "do the slow thing")
	if err != nil {
		t.Fatalf("timeout must not fail the turn: %v", err)
	}
	if res.Reply != "moving on" {
		t.Errorf("reply = %q", res.Reply)
	}
	log := f.mem.Log()
	if !strings.Contains(log[2].Content, "timed out") {
		t.Errorf("timeout result = %+v", log[2])
	}
}

func TestRespondSystemPromptCarriesProfileAndMemories(t *testing.T) {
	model := &llmmock.Provider{Responses: []*llm.CompletionResponse{textResponse("sure")}}
	f := newFixture(t, model, nil, nil)
	f.profile.Blob = "vegetarian, lives in Lisbon"
	f.index.Results = []memory.RecordResult{
		{Record: memory.Record{Content: "prefers window seats"}, Distance: 0.1},
	}

	if _, err := f.engine.Respond(context.Background(), "book a flight"); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	system := model.CompleteCalls[0].SystemPrompt
	for _, want := range []string{"helpful voice assistant", "lives in Lisbon", "prefers window seats"} {
		if !strings.Contains(system, want) {
			t.Errorf("system prompt missing %q:\n%s", want, system)
		}
	}
}

func TestRespondRetrievalFailureDegrades(t *testing.T) {
	model := &llmmock.Provider{Responses: []*llm.CompletionResponse{textResponse("still here")}}
	index := &memmock.Index{}
	profile := &memmock.Profile{}
	embedder := &embmock.Provider{EmbedErr: errors.New("embedding service down")}
	mem, err := memory.NewManager(embedder, &memmock.Archive{}, index, profile)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	engine, err := NewEngine(model, mem, nil, Config{SystemPrompt: "base"})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	res, err := engine.Respond(context.Background(), "hello")
	if err != nil {
		t.Fatalf("retrieval failure must not fail the turn: %v", err)
	}
	if res.Reply != "still here" {
		t.Errorf("reply = %q", res.Reply)
	}
}

func TestTrimToBudget(t *testing.T) {
	// The mock counts 10 tokens per turn.
	model := &llmmock.Provider{}
	f := newFixture(t, model, nil, func(c *Config) { c.TokenBudget = 30 })

	turns := []types.Turn{
		{Role: types.RoleUser, Content: "oldest"},
		{Role: types.RoleAssistant, Content: "a1"},
		{Role: types.RoleUser, Content: "u2"},
		{Role: types.RoleAssistant, Content: "a2"},
		{Role: types.RoleUser, Content: "current"},
	}
	got, err := f.engine.trimToBudget(turns)
	if err != nil {
		t.Fatalf("trimToBudget: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("kept %d turns, want 3", len(got))
	}
	if got[len(got)-1].Content != "current" {
		t.Error("current utterance must never be dropped")
	}
	if got[0].Content != "u2" {
		t.Errorf("window starts at %q, want u2", got[0].Content)
	}
}

func TestTrimToBudgetDropsOrphanedToolResults(t *testing.T) {
	model := &llmmock.Provider{}
	f := newFixture(t, model, nil, func(c *Config) { c.TokenBudget = 30 })

	turns := []types.Turn{
		{Role: types.RoleAssistant, ToolCalls: []types.ToolCall{{ID: "c1", Name: "t"}}},
		{Role: types.RoleTool, ToolCallID: "c1", Content: "result"},
		{Role: types.RoleAssistant, Content: "answer"},
		{Role: types.RoleUser, Content: "current"},
	}
	got, err := f.engine.trimToBudget(turns)
	if err != nil {
		t.Fatalf("trimToBudget: %v", err)
	}
	if got[0].Role == types.RoleTool {
		t.Errorf("window must not start with an orphaned tool result: %+v", got)
	}
	if got[len(got)-1].Content != "current" {
		t.Error("current utterance must never be dropped")
	}
}

func TestTrimToBudgetKeepsCurrentUtteranceMidLoop(t *testing.T) {
	// Mid-loop the current user utterance is no longer the last turn: the
	// round's tool results sit after it. A large tool result must squeeze
	// out older history, never the utterance itself.
	model := &llmmock.Provider{}
	f := newFixture(t, model, nil, func(c *Config) { c.TokenBudget = 25 })

	turns := []types.Turn{
		{Role: types.RoleUser, Content: "current"},
		{Role: types.RoleAssistant, ToolCalls: []types.ToolCall{{ID: "c1", Name: "t"}}},
		{Role: types.RoleTool, ToolCallID: "c1", Content: strings.Repeat("x", 4000)},
	}
	got, err := f.engine.trimToBudget(turns)
	if err != nil {
		t.Fatalf("trimToBudget: %v", err)
	}
	if len(got) != 3 || got[0].Content != "current" {
		t.Fatalf("current utterance dropped mid-loop: %+v", got)
	}
}

func TestTrimToBudgetDropsOnlyHistoryBeforeCurrentUtterance(t *testing.T) {
	model := &llmmock.Provider{}
	f := newFixture(t, model, nil, func(c *Config) { c.TokenBudget = 30 })

	turns := []types.Turn{
		{Role: types.RoleUser, Content: "old"},
		{Role: types.RoleAssistant, Content: "old answer"},
		{Role: types.RoleUser, Content: "current"},
		{Role: types.RoleAssistant, ToolCalls: []types.ToolCall{{ID: "c1", Name: "t"}}},
		{Role: types.RoleTool, ToolCallID: "c1", Content: "result"},
	}
	got, err := f.engine.trimToBudget(turns)
	if err != nil {
		t.Fatalf("trimToBudget: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("kept %d turns, want 3: %+v", len(got), got)
	}
	if got[0].Content != "current" || got[2].Role != types.RoleTool {
		t.Errorf("window = %+v, want current utterance through tool result", got)
	}
}

func TestTrimToBudgetKeepsSingleTurn(t *testing.T) {
	model := &llmmock.Provider{TokensPerTurn: 1000}
	f := newFixture(t, model, nil, func(c *Config) { c.TokenBudget = 30 })

	turns := []types.Turn{{Role: types.RoleUser, Content: "very long utterance"}}
	got, err := f.engine.trimToBudget(turns)
	if err != nil {
		t.Fatalf("trimToBudget: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("the current utterance must survive any budget, got %d turns", len(got))
	}
}

func TestRespondHallucinatedToolCallWithoutHost(t *testing.T) {
	// With no tool host configured, the model sees no tool definitions; a
	// call it invents anyway must come back as an error result, not crash
	// the turn.
	model := &llmmock.Provider{Responses: []*llm.CompletionResponse{
		toolResponse(types.ToolCall{ID: "c1", Name: "imaginary", Arguments: "{}"}),
		textResponse("never mind"),
	}}
	f := newFixture(t, model, nil, nil)

	res, err := f.engine.Respond(context.Background(), "do the thing")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if res.Reply != "never mind" {
		t.Errorf("reply = %q", res.Reply)
	}
	log := f.mem.Log()
	if len(log) != 4 {
		t.Fatalf("log has %d turns: %+v", len(log), log)
	}
	if log[2].Role != types.RoleTool || !strings.Contains(log[2].Content, "not available") {
		t.Errorf("hallucinated call result = %+v", log[2])
	}
}

func TestRespondCancelledContext(t *testing.T) {
	model := &llmmock.Provider{Responses: []*llm.CompletionResponse{textResponse("never")}}
	f := newFixture(t, model, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.engine.Respond(ctx, "hello"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
