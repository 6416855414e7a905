// Package mock provides test doubles for the memory backend interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/memory"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/types"
)

// Archive is a mock memory.SessionArchive.
type Archive struct {
	mu sync.Mutex

	// Snapshot is returned by Load.
	Snapshot memory.SessionSnapshot

	// Names is returned by List.
	Names []string

	// SaveErr, LoadErr, ListErr, DeleteErr override the per-method results.
	SaveErr   error
	LoadErr   error
	ListErr   error
	DeleteErr error

	// SaveCalls records every snapshot passed to Save.
	SaveCalls []memory.SessionSnapshot

	// LoadCalls and DeleteCalls record the names passed in order.
	LoadCalls   []string
	DeleteCalls []string
}

func (a *Archive) Save(_ context.Context, snap memory.SessionSnapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.SaveCalls = append(a.SaveCalls, snap)
	return a.SaveErr
}

func (a *Archive) Load(_ context.Context, name string) (memory.SessionSnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.LoadCalls = append(a.LoadCalls, name)
	if a.LoadErr != nil {
		return memory.SessionSnapshot{}, a.LoadErr
	}
	return a.Snapshot, nil
}

func (a *Archive) List(_ context.Context) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Names, a.ListErr
}

func (a *Archive) Delete(_ context.Context, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.DeleteCalls = append(a.DeleteCalls, name)
	return a.DeleteErr
}

// Index is a mock memory.SemanticIndex.
type Index struct {
	mu sync.Mutex

	// Results is returned by every Search call.
	Results []memory.RecordResult

	// InsertErr and SearchErr override the per-method results.
	InsertErr error
	SearchErr error

	// InsertCalls records every record passed to Insert.
	InsertCalls []memory.Record

	// SearchCalls records the topK of every Search call.
	SearchCalls []int
}

func (ix *Index) Insert(_ context.Context, rec memory.Record) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.InsertCalls = append(ix.InsertCalls, rec)
	return ix.InsertErr
}

func (ix *Index) Search(_ context.Context, _ []float32, topK int) ([]memory.RecordResult, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.SearchCalls = append(ix.SearchCalls, topK)
	if ix.SearchErr != nil {
		return nil, ix.SearchErr
	}
	return ix.Results, nil
}

// Profile is a mock memory.ProfileStore.
type Profile struct {
	mu sync.Mutex

	// Blob is returned by Load.
	Blob string

	// LoadErr and AppendErr override the per-method results.
	LoadErr   error
	AppendErr error

	// AppendCalls records every delta passed to Append.
	AppendCalls []string
}

func (p *Profile) Load(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Blob, p.LoadErr
}

func (p *Profile) Append(_ context.Context, delta string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.AppendCalls = append(p.AppendCalls, delta)
	return p.AppendErr
}

// Summarizer is a mock memory.Summarizer.
type Summarizer struct {
	mu sync.Mutex

	// Summary is returned by every Summarize call.
	Summary string

	// SummarizeErr, if non-nil, is returned by every Summarize call.
	SummarizeErr error

	// SummarizeCalls records the turn-count of every call.
	SummarizeCalls []int
}

func (s *Summarizer) Summarize(_ context.Context, turns []types.Turn) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SummarizeCalls = append(s.SummarizeCalls, len(turns))
	if s.SummarizeErr != nil {
		return "", s.SummarizeErr
	}
	return s.Summary, nil
}

// Compile-time interface checks.
var (
	_ memory.SessionArchive = (*Archive)(nil)
	_ memory.SemanticIndex  = (*Index)(nil)
	_ memory.ProfileStore   = (*Profile)(nil)
	_ memory.Summarizer     = (*Summarizer)(nil)
)
