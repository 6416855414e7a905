package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/llm"
	llmmock "github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/llm/mock"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/types"
)

func TestLLMSummarizerRendersTranscript(t *testing.T) {
	model := &llmmock.Provider{Responses: []*llm.CompletionResponse{
		{Content: "  The user is planning a trip to Lisbon.  "},
	}}
	s, err := NewLLMSummarizer(model)
	if err != nil {
		t.Fatalf("NewLLMSummarizer: %v", err)
	}

	turns := []types.Turn{
		{Role: types.RoleUser, Content: "i'm going to lisbon in may"},
		{Role: types.RoleAssistant, Content: "sounds great"},
		{Role: types.RoleTool, Content: "tool noise", ToolCallID: "c1"},
		{Role: types.RoleAssistant, Content: ""},
	}
	summary, err := s.Summarize(context.Background(), turns)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary != "The user is planning a trip to Lisbon." {
		t.Errorf("summary = %q", summary)
	}

	sent := model.CompleteCalls[0].Messages[0].Content
	if !strings.Contains(sent, "user: i'm going to lisbon in may") {
		t.Errorf("transcript missing user turn:\n%s", sent)
	}
	if strings.Contains(sent, "tool noise") {
		t.Error("tool turns must not reach the summarizer")
	}
}

func TestLLMSummarizerEmptyLog(t *testing.T) {
	s, err := NewLLMSummarizer(&llmmock.Provider{})
	if err != nil {
		t.Fatalf("NewLLMSummarizer: %v", err)
	}
	turns := []types.Turn{{Role: types.RoleTool, Content: "plumbing"}}
	if _, err := s.Summarize(context.Background(), turns); err == nil {
		t.Error("tool-only log should fail")
	}
}
