package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/llm"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/types"
)

// summaryPrompt instructs the model to produce the profile-ready digest.
const summaryPrompt = "Summarize this conversation in 2-3 sentences, " +
	"focusing on durable facts about the user: preferences, plans, and " +
	"decisions. Write in the third person. Output only the summary."

// LLMSummarizer condenses a session log with a language model. It implements
// Summarizer.
type LLMSummarizer struct {
	model llm.Provider
}

// NewLLMSummarizer creates a summarizer over model.
func NewLLMSummarizer(model llm.Provider) (*LLMSummarizer, error) {
	if model == nil {
		return nil, fmt.Errorf("memory: summarizer model must not be nil")
	}
	return &LLMSummarizer{model: model}, nil
}

// Summarize renders the user-visible exchange as a transcript and asks the
// model for a short digest. Tool-call plumbing turns are skipped; they carry
// no facts about the user.
func (s *LLMSummarizer) Summarize(ctx context.Context, turns []types.Turn) (string, error) {
	var b strings.Builder
	for _, t := range turns {
		if t.Role == types.RoleTool || t.Content == "" {
			continue
		}
		b.WriteString(t.Role)
		b.WriteString(": ")
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("memory: nothing to summarize")
	}

	resp, err := s.model.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: summaryPrompt,
		Messages: []types.Turn{
			{Role: types.RoleUser, Content: b.String()},
		},
	})
	if err != nil {
		return "", fmt.Errorf("memory: summarize: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

var _ Summarizer = (*LLMSummarizer)(nil)
