// Package memory implements the assistant's three-tier memory: a long-lived
// user-profile text blob, the in-session ordered turn log, and a semantic
// index of immutable records retrieved by vector similarity.
//
// The tiers sit behind small backend interfaces (SessionArchive,
// SemanticIndex, ProfileStore) so that storage can be in-process
// (memstore), PostgreSQL with pgvector (postgres), or Redis for the session
// archive (redis). Manager composes the backends with an embeddings provider
// and owns the active session log.
package memory

import (
	"context"
	"errors"
	"time"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/types"
)

// ErrSessionNotFound is returned by SessionArchive.Load and Delete when no
// session with the given name exists.
var ErrSessionNotFound = errors.New("memory: session not found")

// Record is one immutable entry in the semantic index.
type Record struct {
	// ID uniquely identifies the record.
	ID string

	// Content is the stored text.
	Content string

	// Metadata carries provenance tags (source, topic, session name).
	Metadata map[string]string

	// Embedding is the vector for Content, with the dimensionality of the
	// embeddings provider that produced it.
	Embedding []float32

	// CreatedAt is when the record was written.
	CreatedAt time.Time
}

// RecordResult is a Record paired with its distance from a query vector.
// Smaller distance means more similar.
type RecordResult struct {
	Record   Record
	Distance float64
}

// SessionSnapshot is a named, durable copy of a session log.
type SessionSnapshot struct {
	// Name keys the snapshot in the archive.
	Name string `json:"name"`

	// Turns is the full ordered session log at save time.
	Turns []types.Turn `json:"turns"`

	// Summary is generated when the snapshot is saved; empty when the log was
	// too short to summarize.
	Summary string `json:"summary,omitempty"`

	// CreatedAt is when the session began.
	CreatedAt time.Time `json:"created_at"`

	// SavedAt is when the snapshot was persisted.
	SavedAt time.Time `json:"saved_at"`
}

// SessionArchive persists named session snapshots. Saving an existing name
// replaces the snapshot wholesale.
type SessionArchive interface {
	Save(ctx context.Context, snap SessionSnapshot) error

	// Load returns ErrSessionNotFound when name is unknown.
	Load(ctx context.Context, name string) (SessionSnapshot, error)

	// List returns the names of all saved sessions, sorted.
	List(ctx context.Context) ([]string, error)

	// Delete returns ErrSessionNotFound when name is unknown.
	Delete(ctx context.Context, name string) error
}

// SemanticIndex stores pre-embedded records and searches them by vector
// similarity. Implementations tolerate concurrent reads during writes; a
// record inserted mid-search may or may not appear in that search's results.
type SemanticIndex interface {
	Insert(ctx context.Context, rec Record) error

	// Search returns up to topK records ordered by ascending distance from
	// the query embedding. An empty index yields an empty slice, not an error.
	Search(ctx context.Context, embedding []float32, topK int) ([]RecordResult, error)
}

// ProfileStore holds the user-profile blob. Append is strictly append-only;
// repeated identical deltas append repeated text.
type ProfileStore interface {
	Load(ctx context.Context) (string, error)
	Append(ctx context.Context, delta string) error
}

// Summarizer condenses a session log into a short text summary. The Manager
// invokes it on session save; the dispatch layer provides an LLM-backed
// implementation.
type Summarizer interface {
	Summarize(ctx context.Context, turns []types.Turn) (string, error)
}
