// Package tools maintains the registry of capabilities offered to the model:
// in-process builtin tools and external MCP servers bridged through the
// official Go SDK (github.com/modelcontextprotocol/go-sdk). Both kinds sit
// behind the same definition + execute contract, so the dispatch loop never
// cares where a tool runs.
//
// Execution is defensive by design: argument-schema violations and handler
// failures come back as error-kind results, not Go errors, so the model can
// self-correct in its next round instead of the whole turn failing.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"strings"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/internal/config"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/types"
)

// builtinServerName is the pseudo server name used for in-process tools.
const builtinServerName = "__builtin__"

// Tool is a builtin capability ready for registration.
type Tool struct {
	// Definition is the tool's model-facing schema.
	Definition types.ToolDefinition

	// Handler executes the tool with a JSON object argument string and
	// returns the textual result. A non-nil error becomes an error-kind
	// result. Handlers must respect ctx cancellation.
	Handler func(ctx context.Context, args string) (string, error)
}

// Result is the outcome of one tool execution.
type Result struct {
	// Content is the tool output, or the failure message when IsError.
	Content string

	// IsError marks application-level failures the model should see.
	IsError bool
}

type entry struct {
	def        types.ToolDefinition
	serverName string
	handler    func(ctx context.Context, args string) (string, error)
}

type serverConn struct {
	session *mcpsdk.ClientSession
}

// Registry holds all registered tools. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	servers map[string]serverConn
	client  *mcpsdk.Client
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]entry),
		servers: make(map[string]serverConn),
		client: mcpsdk.NewClient(
			&mcpsdk.Implementation{Name: "assistant-toolhost", Version: "1.0.0"},
			nil,
		),
	}
}

// Register adds a builtin tool, replacing any tool with the same name.
func (r *Registry) Register(t Tool) error {
	if t.Definition.Name == "" {
		return fmt.Errorf("tools: builtin tool must have a non-empty name")
	}
	if t.Handler == nil {
		return fmt.Errorf("tools: builtin tool %q must have a non-nil handler", t.Definition.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[t.Definition.Name] = entry{
		def:        t.Definition,
		serverName: builtinServerName,
		handler:    t.Handler,
	}
	return nil
}

// RegisterMCPServer spawns the MCP server described by cfg over stdio and
// imports its tool catalogue. A server registered under the same name is
// replaced along with its tools.
func (r *Registry) RegisterMCPServer(ctx context.Context, cfg config.MCPServerConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("tools: mcp server config must have a non-empty name")
	}
	if cfg.Command == "" {
		return fmt.Errorf("tools: mcp server %q requires a command", cfg.Name)
	}

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	session, err := r.client.Connect(ctx, &mcpsdk.CommandTransport{Command: cmd}, nil)
	if err != nil {
		return fmt.Errorf("tools: connect to mcp server %q: %w", cfg.Name, err)
	}

	var discovered []mcpsdk.Tool
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			_ = session.Close()
			return fmt.Errorf("tools: list tools for server %q: %w", cfg.Name, err)
		}
		discovered = append(discovered, *tool)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.servers[cfg.Name]; ok {
		_ = old.session.Close()
		for name, e := range r.entries {
			if e.serverName == cfg.Name {
				delete(r.entries, name)
			}
		}
	}
	r.servers[cfg.Name] = serverConn{session: session}

	for _, t := range discovered {
		r.entries[t.Name] = entry{
			def: types.ToolDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schemaToMap(t.InputSchema),
			},
			serverName: cfg.Name,
		}
		slog.Info("registered mcp tool", "server", cfg.Name, "tool", t.Name)
	}
	return nil
}

// Definitions returns all registered tool definitions, sorted by name so the
// schema payload sent to the model is stable across rounds.
func (r *Registry) Definitions() []types.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]types.ToolDefinition, 0, len(r.entries))
	for _, e := range r.entries {
		defs = append(defs, e.def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Definition returns the named tool's definition.
func (r *Registry) Definition(name string) (types.ToolDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.def, ok
}

// Execute runs the named tool. All application-level failures — unknown
// tool, schema violations, handler errors — come back as an error-kind
// Result; the Go error is reserved for transport faults against MCP servers.
func (r *Registry) Execute(ctx context.Context, name, args string) (Result, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return Result{Content: fmt.Sprintf("unknown tool %q", name), IsError: true}, nil
	}
	if err := ValidateArgs(e.def, args); err != nil {
		return Result{Content: "invalid arguments: " + err.Error(), IsError: true}, nil
	}

	if e.serverName == builtinServerName {
		output, err := e.handler(ctx, args)
		if err != nil {
			return Result{Content: err.Error(), IsError: true}, nil
		}
		return Result{Content: output}, nil
	}
	return r.executeMCP(ctx, e, args)
}

// executeMCP routes the call to the owning server session.
func (r *Registry) executeMCP(ctx context.Context, e entry, args string) (Result, error) {
	r.mu.RLock()
	conn, ok := r.servers[e.serverName]
	r.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("tools: server %q not found for tool %q", e.serverName, e.def.Name)
	}

	var argsMap map[string]any
	if args != "" && args != "{}" {
		if err := json.Unmarshal([]byte(args), &argsMap); err != nil {
			return Result{Content: "invalid arguments: not a JSON object", IsError: true}, nil
		}
	}

	callResult, err := conn.session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      e.def.Name,
		Arguments: argsMap,
	})
	if err != nil {
		return Result{}, fmt.Errorf("tools: call %q on server %q: %w", e.def.Name, e.serverName, err)
	}

	var sb strings.Builder
	for _, c := range callResult.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return Result{Content: sb.String(), IsError: callResult.IsError}, nil
}

// Close shuts down all MCP server sessions.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, conn := range r.servers {
		if err := conn.session.Close(); err != nil {
			slog.Warn("closing mcp server failed", "server", name, "error", err)
		}
		delete(r.servers, name)
	}
}

// schemaToMap converts an SDK JSON schema to a plain map via a JSON
// round-trip.
func schemaToMap(schema any) map[string]any {
	if schema == nil {
		return nil
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
