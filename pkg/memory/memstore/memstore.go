// Package memstore provides in-process implementations of the memory backend
// interfaces. It is the default for single-machine runs and the workhorse for
// tests: no external services, brute-force cosine search over a slice.
package memstore

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/memory"
)

// Archive is an in-memory memory.SessionArchive.
type Archive struct {
	mu    sync.RWMutex
	snaps map[string]memory.SessionSnapshot
}

// NewArchive creates an empty Archive.
func NewArchive() *Archive {
	return &Archive{snaps: make(map[string]memory.SessionSnapshot)}
}

// Save implements memory.SessionArchive.
func (a *Archive) Save(_ context.Context, snap memory.SessionSnapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snaps[snap.Name] = snap
	return nil
}

// Load implements memory.SessionArchive.
func (a *Archive) Load(_ context.Context, name string) (memory.SessionSnapshot, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	snap, ok := a.snaps[name]
	if !ok {
		return memory.SessionSnapshot{}, memory.ErrSessionNotFound
	}
	return snap, nil
}

// List implements memory.SessionArchive.
func (a *Archive) List(_ context.Context) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.snaps))
	for name := range a.snaps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Delete implements memory.SessionArchive.
func (a *Archive) Delete(_ context.Context, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.snaps[name]; !ok {
		return memory.ErrSessionNotFound
	}
	delete(a.snaps, name)
	return nil
}

// Index is an in-memory memory.SemanticIndex using brute-force cosine
// distance. Fine for the record counts a single user accumulates.
type Index struct {
	mu   sync.RWMutex
	recs []memory.Record
}

// NewIndex creates an empty Index.
func NewIndex() *Index {
	return &Index{}
}

// Insert implements memory.SemanticIndex.
func (ix *Index) Insert(_ context.Context, rec memory.Record) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.recs = append(ix.recs, rec)
	return nil
}

// Search implements memory.SemanticIndex.
func (ix *Index) Search(_ context.Context, embedding []float32, topK int) ([]memory.RecordResult, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	results := make([]memory.RecordResult, 0, len(ix.recs))
	for _, rec := range ix.recs {
		results = append(results, memory.RecordResult{
			Record:   rec,
			Distance: cosineDistance(embedding, rec.Embedding),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// cosineDistance returns 1 - cosine similarity. Mismatched or zero-magnitude
// vectors get the maximum distance so they sort last rather than erroring.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 2
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// Profile is an in-memory memory.ProfileStore.
type Profile struct {
	mu   sync.RWMutex
	blob strings.Builder
}

// NewProfile creates an empty Profile, optionally seeded with initial text.
func NewProfile(initial string) *Profile {
	p := &Profile{}
	p.blob.WriteString(initial)
	return p
}

// Load implements memory.ProfileStore.
func (p *Profile) Load(_ context.Context) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.blob.String(), nil
}

// Append implements memory.ProfileStore.
func (p *Profile) Append(_ context.Context, delta string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.blob.Len() > 0 {
		p.blob.WriteString("\n")
	}
	p.blob.WriteString(delta)
	return nil
}

// Compile-time interface checks.
var (
	_ memory.SessionArchive = (*Archive)(nil)
	_ memory.SemanticIndex  = (*Index)(nil)
	_ memory.ProfileStore   = (*Profile)(nil)
)
