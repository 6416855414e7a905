// Package notes provides built-in tools for a simple per-topic notebook kept
// as markdown files under a configured directory. Note names are slugified
// file names; path traversal never reaches the filesystem because names are
// reduced to a safe character set first.
//
// Three tools are exported via [NewTools]:
//   - "add_note"   — append a timestamped entry to a named note.
//   - "read_note"  — return the full content of a named note.
//   - "list_notes" — list the names of all existing notes.
//
// All handlers are safe for concurrent use.
package notes

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/internal/tools"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/types"
)

// maxNoteBytes is the largest note read_note will return.
const maxNoteBytes = 1 << 20

// addArgs is the JSON-decoded input for the "add_note" tool.
type addArgs struct {
	// Note is the note name, e.g. "groceries" or "project ideas".
	Note string `json:"note"`

	// Text is the entry to append.
	Text string `json:"text"`
}

// readArgs is the JSON-decoded input for the "read_note" tool.
type readArgs struct {
	// Note is the note name to read.
	Note string `json:"note"`
}

// slug reduces a note name to a safe file stem: lower-cased, spaces to
// hyphens, everything outside [a-z0-9-] dropped.
func slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

// notePath resolves a note name to its file under dir.
func notePath(dir, name string) (string, error) {
	s := slug(name)
	if s == "" {
		return "", fmt.Errorf("notes: %q is not a usable note name", name)
	}
	return filepath.Join(dir, s+".md"), nil
}

func makeAddHandler(dir string, now func() time.Time) func(context.Context, string) (string, error) {
	return func(ctx context.Context, args string) (string, error) {
		var a addArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("notes: add_note: failed to parse arguments: %w", err)
		}
		if strings.TrimSpace(a.Text) == "" {
			return "", fmt.Errorf("notes: add_note: text must not be empty")
		}
		path, err := notePath(dir, a.Note)
		if err != nil {
			return "", err
		}

		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("notes: add_note: create notes directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return "", fmt.Errorf("notes: add_note: open note: %w", err)
		}
		defer f.Close()

		entry := fmt.Sprintf("- %s %s\n", now().Format("2006-01-02 15:04"), strings.TrimSpace(a.Text))
		if _, err := f.WriteString(entry); err != nil {
			return "", fmt.Errorf("notes: add_note: write entry: %w", err)
		}
		return fmt.Sprintf("added to note %q", slug(a.Note)), nil
	}
}

func makeReadHandler(dir string) func(context.Context, string) (string, error) {
	return func(ctx context.Context, args string) (string, error) {
		var a readArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("notes: read_note: failed to parse arguments: %w", err)
		}
		path, err := notePath(dir, a.Note)
		if err != nil {
			return "", err
		}

		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			return "", fmt.Errorf("notes: read_note: no note named %q", slug(a.Note))
		}
		if err != nil {
			return "", fmt.Errorf("notes: read_note: %w", err)
		}
		if info.Size() > maxNoteBytes {
			return "", fmt.Errorf("notes: read_note: note %q is too large (%d bytes)", slug(a.Note), info.Size())
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("notes: read_note: %w", err)
		}
		return string(data), nil
	}
}

func makeListHandler(dir string) func(context.Context, string) (string, error) {
	return func(ctx context.Context, _ string) (string, error) {
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			return "no notes yet", nil
		}
		if err != nil {
			return "", fmt.Errorf("notes: list_notes: %w", err)
		}
		var names []string
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
				continue
			}
			names = append(names, strings.TrimSuffix(e.Name(), ".md"))
		}
		if len(names) == 0 {
			return "no notes yet", nil
		}
		res, err := json.Marshal(names)
		if err != nil {
			return "", fmt.Errorf("notes: list_notes: encode result: %w", err)
		}
		return string(res), nil
	}
}

// NewTools constructs the notebook tool set rooted at dir.
func NewTools(dir string) []tools.Tool {
	return newTools(dir, time.Now)
}

// newTools allows tests to inject the clock.
func newTools(dir string, now func() time.Time) []tools.Tool {
	return []tools.Tool{
		{
			Definition: types.ToolDefinition{
				Name:        "add_note",
				Description: "Append a timestamped entry to a named note in the user's notebook. Creates the note if it does not exist. Use for to-do items, shopping lists, and reminders the user dictates.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"note": map[string]any{
							"type":        "string",
							"description": "Note name, e.g. groceries or project-ideas.",
						},
						"text": map[string]any{
							"type":        "string",
							"description": "The entry text to append.",
						},
					},
					"required": []string{"note", "text"},
				},
				MaxDurationMs: 1000,
			},
			Handler: makeAddHandler(dir, now),
		},
		{
			Definition: types.ToolDefinition{
				Name:        "read_note",
				Description: "Read the full content of a named note from the user's notebook.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"note": map[string]any{
							"type":        "string",
							"description": "Note name to read.",
						},
					},
					"required": []string{"note"},
				},
				Idempotent:    true,
				MaxDurationMs: 1000,
			},
			Handler: makeReadHandler(dir),
		},
		{
			Definition: types.ToolDefinition{
				Name:        "list_notes",
				Description: "List the names of all notes in the user's notebook.",
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{},
				},
				Idempotent:    true,
				MaxDurationMs: 1000,
			},
			Handler: makeListHandler(dir),
		},
	}
}
