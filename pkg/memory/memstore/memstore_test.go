package memstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/memory"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/memory/memstore"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/types"
)

func TestArchiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := memstore.NewArchive()

	snap := memory.SessionSnapshot{
		Name: "friday",
		Turns: []types.Turn{
			{Role: types.RoleUser, Content: "hello"},
			{Role: types.RoleAssistant, Content: "hi there"},
		},
		Summary: "greeting",
	}
	if err := a.Save(ctx, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := a.Load(ctx, "friday")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Summary != "greeting" || len(got.Turns) != 2 {
		t.Errorf("unexpected snapshot: %+v", got)
	}
}

func TestArchiveLoadUnknown(t *testing.T) {
	a := memstore.NewArchive()
	_, err := a.Load(context.Background(), "nope")
	if !errors.Is(err, memory.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestArchiveListSorted(t *testing.T) {
	ctx := context.Background()
	a := memstore.NewArchive()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := a.Save(ctx, memory.SessionSnapshot{Name: name}); err != nil {
			t.Fatalf("Save %q: %v", name, err)
		}
	}

	names, err := a.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"alpha", "mid", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestArchiveDelete(t *testing.T) {
	ctx := context.Background()
	a := memstore.NewArchive()
	if err := a.Save(ctx, memory.SessionSnapshot{Name: "gone"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := a.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := a.Delete(ctx, "gone"); !errors.Is(err, memory.ErrSessionNotFound) {
		t.Fatalf("second delete should report not found, got %v", err)
	}
}

func TestIndexSearchRanksByCosine(t *testing.T) {
	ctx := context.Background()
	ix := memstore.NewIndex()

	recs := []memory.Record{
		{ID: "orthogonal", Embedding: []float32{0, 1, 0}},
		{ID: "identical", Embedding: []float32{1, 0, 0}},
		{ID: "close", Embedding: []float32{0.9, 0.1, 0}},
	}
	for _, r := range recs {
		if err := ix.Insert(ctx, r); err != nil {
			t.Fatalf("Insert %q: %v", r.ID, err)
		}
	}

	results, err := ix.Search(ctx, []float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	wantOrder := []string{"identical", "close", "orthogonal"}
	for i, want := range wantOrder {
		if results[i].Record.ID != want {
			t.Errorf("results[%d] = %q, want %q", i, results[i].Record.ID, want)
		}
	}
	if results[0].Distance >= results[1].Distance {
		t.Error("distances should be ascending")
	}
}

func TestIndexSearchTopKAndEmpty(t *testing.T) {
	ctx := context.Background()
	ix := memstore.NewIndex()

	results, err := ix.Search(ctx, []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("empty index search should not error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}

	for i := 0; i < 4; i++ {
		if err := ix.Insert(ctx, memory.Record{ID: string(rune('a' + i)), Embedding: []float32{1, float32(i)}}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	results, err = ix.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("topK should cap results, got %d", len(results))
	}
}

func TestProfileAppendOnly(t *testing.T) {
	ctx := context.Background()
	p := memstore.NewProfile("seed")

	if err := p.Append(ctx, "first"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := p.Append(ctx, "first"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	blob, err := p.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if blob != "seed\nfirst\nfirst" {
		t.Errorf("unexpected blob %q; repeated deltas must append repeated text", blob)
	}
}
