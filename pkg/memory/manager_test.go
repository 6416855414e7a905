package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/memory"
	memmock "github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/memory/mock"
	embmock "github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/embeddings/mock"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/types"
)

func newTestManager(t *testing.T, opts ...memory.ManagerOption) (*memory.Manager, *memmock.Archive, *memmock.Index, *memmock.Profile) {
	t.Helper()
	archive := &memmock.Archive{}
	index := &memmock.Index{}
	profile := &memmock.Profile{}
	embedder := &embmock.Provider{EmbedResult: []float32{0.1, 0.2, 0.3}}

	mgr, err := memory.NewManager(embedder, archive, index, profile, opts...)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return mgr, archive, index, profile
}

func userTurn(content string) types.Turn {
	return types.Turn{Role: types.RoleUser, Content: content, Timestamp: time.Now()}
}

func TestManagerAppendAndLog(t *testing.T) {
	mgr, _, _, _ := newTestManager(t)

	mgr.Append(userTurn("hello"))
	mgr.Append(types.Turn{Role: types.RoleAssistant, Content: "hi"})

	log := mgr.Log()
	if len(log) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(log))
	}
	if log[0].Content != "hello" || log[1].Content != "hi" {
		t.Errorf("unexpected log contents: %+v", log)
	}
	if log[1].Timestamp.IsZero() {
		t.Error("Append should stamp turns missing a timestamp")
	}

	// Mutating the returned slice must not affect the manager's log.
	log[0].Content = "mutated"
	if got := mgr.Log()[0].Content; got != "hello" {
		t.Errorf("Log returned aliased slice, got %q", got)
	}
}

func TestManagerClearLog(t *testing.T) {
	mgr, _, _, _ := newTestManager(t)
	mgr.Append(userTurn("hello"))
	mgr.ClearLog()
	if got := len(mgr.Log()); got != 0 {
		t.Fatalf("expected empty log after clear, got %d turns", got)
	}
}

func TestManagerRetrieve(t *testing.T) {
	mgr, _, index, _ := newTestManager(t)
	index.Results = []memory.RecordResult{
		{Record: memory.Record{ID: "a", Content: "likes jazz"}, Distance: 0.1},
		{Record: memory.Record{ID: "b", Content: "has a dog"}, Distance: 0.4},
	}

	results, err := mgr.Retrieve(context.Background(), "music", 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 2 || results[0].Record.ID != "a" {
		t.Errorf("unexpected results: %+v", results)
	}
	if len(index.SearchCalls) != 1 || index.SearchCalls[0] != 5 {
		t.Errorf("expected one Search call with topK=5, got %v", index.SearchCalls)
	}
}

func TestManagerRetrieveEmptyIndex(t *testing.T) {
	mgr, _, _, _ := newTestManager(t)

	results, err := mgr.Retrieve(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("Retrieve on empty index should not error, got %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %+v", results)
	}
}

func TestManagerRetrieveEmbedError(t *testing.T) {
	archive := &memmock.Archive{}
	index := &memmock.Index{}
	profile := &memmock.Profile{}
	embedder := &embmock.Provider{EmbedErr: errors.New("boom")}
	mgr, err := memory.NewManager(embedder, archive, index, profile)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if _, err := mgr.Retrieve(context.Background(), "q", 3); err == nil {
		t.Fatal("expected error when embedding fails")
	}
	if len(index.SearchCalls) != 0 {
		t.Error("index should not be searched when embedding fails")
	}
}

func TestManagerWrite(t *testing.T) {
	mgr, _, index, _ := newTestManager(t)

	id, err := mgr.Write(context.Background(), "prefers tea over coffee", map[string]string{"source": "conversation"})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if id == "" {
		t.Error("Write should return a non-empty id")
	}
	if len(index.InsertCalls) != 1 {
		t.Fatalf("expected one Insert call, got %d", len(index.InsertCalls))
	}
	rec := index.InsertCalls[0]
	if rec.Content != "prefers tea over coffee" {
		t.Errorf("unexpected record content %q", rec.Content)
	}
	if rec.Metadata["source"] != "conversation" {
		t.Errorf("metadata not carried through: %+v", rec.Metadata)
	}
	if len(rec.Embedding) == 0 {
		t.Error("record should carry the embedding")
	}
}

func TestManagerWriteRejectsEmptyText(t *testing.T) {
	mgr, _, index, _ := newTestManager(t)
	if _, err := mgr.Write(context.Background(), "   ", nil); err == nil {
		t.Fatal("expected error for blank text")
	}
	if len(index.InsertCalls) != 0 {
		t.Error("blank text must not reach the index")
	}
}

func TestManagerPersistSessionWithSummary(t *testing.T) {
	sum := &memmock.Summarizer{Summary: "talked about travel plans"}
	mgr, archive, _, profile := newTestManager(t, memory.WithSummarizer(sum))

	for i := 0; i < 4; i++ {
		mgr.Append(userTurn("turn"))
	}
	if err := mgr.PersistSession(context.Background(), "trip"); err != nil {
		t.Fatalf("PersistSession: %v", err)
	}

	if len(archive.SaveCalls) != 1 {
		t.Fatalf("expected one Save call, got %d", len(archive.SaveCalls))
	}
	snap := archive.SaveCalls[0]
	if snap.Name != "trip" || len(snap.Turns) != 4 {
		t.Errorf("unexpected snapshot: name=%q turns=%d", snap.Name, len(snap.Turns))
	}
	if snap.Summary != "talked about travel plans" {
		t.Errorf("summary not stored in snapshot: %q", snap.Summary)
	}
	if len(profile.AppendCalls) != 1 || profile.AppendCalls[0] != "talked about travel plans" {
		t.Errorf("summary not appended to profile: %v", profile.AppendCalls)
	}
}

func TestManagerPersistSessionShortLogSkipsSummary(t *testing.T) {
	sum := &memmock.Summarizer{Summary: "short"}
	mgr, archive, _, profile := newTestManager(t, memory.WithSummarizer(sum))

	mgr.Append(userTurn("only turn"))
	if err := mgr.PersistSession(context.Background(), "quick"); err != nil {
		t.Fatalf("PersistSession: %v", err)
	}

	if len(sum.SummarizeCalls) != 0 {
		t.Error("short logs must not be summarized")
	}
	if archive.SaveCalls[0].Summary != "" {
		t.Errorf("snapshot should have no summary, got %q", archive.SaveCalls[0].Summary)
	}
	if len(profile.AppendCalls) != 0 {
		t.Error("profile should be untouched for short logs")
	}
}

func TestManagerPersistSessionSummarizerFailureDegrades(t *testing.T) {
	sum := &memmock.Summarizer{SummarizeErr: errors.New("model down")}
	mgr, archive, _, _ := newTestManager(t, memory.WithSummarizer(sum))

	for i := 0; i < 5; i++ {
		mgr.Append(userTurn("turn"))
	}
	if err := mgr.PersistSession(context.Background(), "resilient"); err != nil {
		t.Fatalf("PersistSession should degrade, not fail: %v", err)
	}
	if len(archive.SaveCalls) != 1 || archive.SaveCalls[0].Summary != "" {
		t.Errorf("snapshot should be saved without summary: %+v", archive.SaveCalls)
	}
}

func TestManagerLoadSessionReplacesLog(t *testing.T) {
	mgr, archive, _, _ := newTestManager(t)
	archive.Snapshot = memory.SessionSnapshot{
		Name: "old",
		Turns: []types.Turn{
			{Role: types.RoleUser, Content: "restored a"},
			{Role: types.RoleAssistant, Content: "restored b"},
		},
	}

	mgr.Append(userTurn("current work"))
	if err := mgr.LoadSession(context.Background(), "old"); err != nil {
		t.Fatalf("LoadSession: %v", err)
	}

	log := mgr.Log()
	if len(log) != 2 {
		t.Fatalf("log should be replaced wholesale, got %d turns", len(log))
	}
	if log[0].Content != "restored a" {
		t.Errorf("unexpected first turn: %+v", log[0])
	}
}

func TestManagerLoadSessionNotFound(t *testing.T) {
	mgr, archive, _, _ := newTestManager(t)
	archive.LoadErr = memory.ErrSessionNotFound

	mgr.Append(userTurn("keep me"))
	err := mgr.LoadSession(context.Background(), "ghost")
	if !errors.Is(err, memory.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if len(mgr.Log()) != 1 {
		t.Error("failed load must not clobber the active log")
	}
}

func TestManagerUpdateProfile(t *testing.T) {
	mgr, _, _, profile := newTestManager(t)

	if err := mgr.UpdateProfile(context.Background(), "works night shifts"); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if err := mgr.UpdateProfile(context.Background(), "  "); err != nil {
		t.Fatalf("blank delta should be a no-op, got %v", err)
	}
	if len(profile.AppendCalls) != 1 || profile.AppendCalls[0] != "works night shifts" {
		t.Errorf("unexpected profile appends: %v", profile.AppendCalls)
	}
}
