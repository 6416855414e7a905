// Package exporter provides built-in tools that produce files the user can
// pick up after the voice session: drafted emails and exported text
// documents. Everything is written under a configured export directory; file
// names are derived from a safe character set so a model-chosen name can
// never escape it.
//
// Two tools are exported via [NewTools]:
//   - "draft_email" — write an RFC 5322 style .eml draft.
//   - "export_file" — write text content to a named file.
//
// All handlers are safe for concurrent use.
package exporter

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

// draftArgs is the JSON-decoded input for the "draft_email" tool.
type draftArgs struct {
	// To is the recipient address or name.
	To string `json:"to"`

	// Subject is the email subject line.
	Subject string `json:"subject"`

	// Body is the email body text.
	Body string `json:"body"`
}

// exportArgs is the JSON-decoded input for the "export_file" tool.
type exportArgs struct {
	// Filename is the desired file name, including extension.
	Filename string `json:"filename"`

	// Content is the text content to write.
	Content string `json:"content"`
}

// writeResult is echoed back to the model after a successful write.
type writeResult struct {
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
}

// safeName reduces a model-chosen file name to a single safe component.
// Separators become hyphens, so "../x" can never leave the export directory.
func safeName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '/' || r == '\\':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-.")
}

// writeExport writes content to name under dir, creating dir as needed.
func writeExport(dir, name, content string) (writeResult, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return writeResult{}, fmt.Errorf("exporter: create export directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return writeResult{}, fmt.Errorf("exporter: write %q: %w", name, err)
	}
	return writeResult{Path: path, Bytes: len(content)}, nil
}

func makeDraftHandler(dir string, now func() time.Time) func(context.Context, string) (string, error) {
	return func(ctx context.Context, args string) (string, error) {
		var a draftArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("exporter: draft_email: failed to parse arguments: %w", err)
		}
		if a.To == "" || a.Body == "" {
			return "", fmt.Errorf("exporter: draft_email: to and body must not be empty")
		}

		ts := now()
		var msg strings.Builder
		fmt.Fprintf(&msg, "To: %s\r\n", a.To)
		fmt.Fprintf(&msg, "Subject: %s\r\n", a.Subject)
		fmt.Fprintf(&msg, "Date: %s\r\n", ts.Format(time.RFC1123Z))
		msg.WriteString("MIME-Version: 1.0\r\n")
		msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
		msg.WriteString("\r\n")
		msg.WriteString(a.Body)
		msg.WriteString("\r\n")

		name := safeName("draft-" + ts.Format("20060102-150405") + ".eml")
		res, err := writeExport(dir, name, msg.String())
		if err != nil {
			return "", err
		}
		out, err := json.Marshal(res)
		if err != nil {
			return "", fmt.Errorf("exporter: draft_email: encode result: %w", err)
		}
		return string(out), nil
	}
}

func makeExportHandler(dir string) func(context.Context, string) (string, error) {
	return func(ctx context.Context, args string) (string, error) {
		var a exportArgs
		if err := json.Unmarshal([]byte(args), &a); err != nil {
			return "", fmt.Errorf("exporter: export_file: failed to parse arguments: %w", err)
		}
		name := safeName(a.Filename)
		if name == "" {
			return "", fmt.Errorf("exporter: export_file: %q is not a usable file name", a.Filename)
		}
		res, err := writeExport(dir, name, a.Content)
		if err != nil {
			return "", err
		}
		out, err := json.Marshal(res)
		if err != nil {
			return "", fmt.Errorf("exporter: export_file: encode result: %w", err)
		}
		return string(out), nil
	}
}

// NewTools constructs the export tool set rooted at dir.
func NewTools(dir string) []tools.Tool {
	return newTools(dir, time.Now)
}

// newTools allows tests to inject the clock.
func newTools(dir string, now func() time.Time) []tools.Tool {
	return []tools.Tool{
		{
			Definition: types.ToolDefinition{
				Name:        "draft_email",
				Description: "Draft an email and save it as an .eml file in the export directory for the user to review and send later. Nothing is sent automatically.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"to": map[string]any{
							"type":        "string",
							"description": "Recipient address or name.",
						},
						"subject": map[string]any{
							"type":        "string",
							"description": "Subject line.",
						},
						"body": map[string]any{
							"type":        "string",
							"description": "Email body text.",
						},
					},
					"required": []string{"to", "body"},
				},
				MaxDurationMs: 1000,
			},
			Handler: makeDraftHandler(dir, now),
		},
		{
			Definition: types.ToolDefinition{
				Name:        "export_file",
				Description: "Write text content to a named file in the export directory, e.g. a dictated document or a generated summary.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"filename": map[string]any{
							"type":        "string",
							"description": "File name including extension, e.g. meeting-summary.md.",
						},
						"content": map[string]any{
							"type":        "string",
							"description": "Text content to write.",
						},
					},
					"required": []string{"filename", "content"},
				},
				MaxDurationMs: 1000,
			},
			Handler: makeExportHandler(dir),
		},
	}
}
