package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/embeddings"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/types"
)

// summaryMinTurns is the minimum session-log length before a save generates a
// summary. Shorter sessions are saved without one.
const summaryMinTurns = 4

// Manager composes the three memory tiers and owns the active session log.
//
// The log is mutated only by the single active turn, but all methods are safe
// for concurrent use so background readers (analytics, shutdown save) need no
// external locking.
type Manager struct {
	embedder embeddings.Provider
	archive  SessionArchive
	index    SemanticIndex
	profile  ProfileStore

	summarizer   Summarizer
	embedTimeout time.Duration
	now          func() time.Time

	mu        sync.Mutex
	log       []types.Turn
	createdAt time.Time
}

// ManagerOption is a functional option for NewManager.
type ManagerOption func(*Manager)

// WithSummarizer installs a Summarizer used on session save. Without one,
// snapshots are saved without a summary.
func WithSummarizer(s Summarizer) ManagerOption {
	return func(m *Manager) { m.summarizer = s }
}

// WithEmbedTimeout bounds each embedding call. Zero means no bound beyond
// the caller's context.
func WithEmbedTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.embedTimeout = d }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager over the given backends. All four are
// required; use the memstore package for in-process defaults.
func NewManager(embedder embeddings.Provider, archive SessionArchive, index SemanticIndex, profile ProfileStore, opts ...ManagerOption) (*Manager, error) {
	if embedder == nil {
		return nil, fmt.Errorf("memory: embedder must not be nil")
	}
	if archive == nil || index == nil || profile == nil {
		return nil, fmt.Errorf("memory: archive, index, and profile backends must not be nil")
	}
	m := &Manager{
		embedder: embedder,
		archive:  archive,
		index:    index,
		profile:  profile,
		now:      time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	m.createdAt = m.now()
	return m, nil
}

// Append adds a turn to the active session log.
func (m *Manager) Append(turn types.Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if turn.Timestamp.IsZero() {
		turn.Timestamp = m.now()
	}
	m.log = append(m.log, turn)
}

// Log returns a copy of the active session log.
func (m *Manager) Log() []types.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Turn, len(m.log))
	copy(out, m.log)
	return out
}

// ClearLog discards the active session log and starts a fresh session. The
// archive, index, and profile are untouched.
func (m *Manager) ClearLog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = nil
	m.createdAt = m.now()
}

// Retrieve embeds query and returns the k nearest records from the semantic
// index, most similar first. An empty index yields an empty slice.
func (m *Manager) Retrieve(ctx context.Context, query string, k int) ([]RecordResult, error) {
	if k <= 0 {
		return nil, nil
	}
	vec, err := m.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("memory: embed query: %w", err)
	}
	results, err := m.index.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("memory: search index: %w", err)
	}
	return results, nil
}

func (m *Manager) embed(ctx context.Context, text string) ([]float32, error) {
	if m.embedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.embedTimeout)
		defer cancel()
	}
	return m.embedder.Embed(ctx, text)
}

// Write embeds text and inserts it as a new immutable record, returning the
// record's id.
func (m *Manager) Write(ctx context.Context, text string, metadata map[string]string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("memory: text must not be empty")
	}
	vec, err := m.embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("memory: embed record: %w", err)
	}
	rec := Record{
		ID:        uuid.NewString(),
		Content:   text,
		Metadata:  metadata,
		Embedding: vec,
		CreatedAt: m.now(),
	}
	if err := m.index.Insert(ctx, rec); err != nil {
		return "", fmt.Errorf("memory: insert record: %w", err)
	}
	return rec.ID, nil
}

// PersistSession saves the active session log under name, replacing any
// existing snapshot with that name. When the log is long enough and a
// summarizer is installed, a summary is generated and stored in the snapshot
// and appended to the user profile. A summarizer failure degrades to saving
// without a summary rather than failing the save.
func (m *Manager) PersistSession(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("memory: session name must not be empty")
	}

	m.mu.Lock()
	turns := make([]types.Turn, len(m.log))
	copy(turns, m.log)
	createdAt := m.createdAt
	m.mu.Unlock()

	snap := SessionSnapshot{
		Name:      name,
		Turns:     turns,
		CreatedAt: createdAt,
		SavedAt:   m.now(),
	}

	if m.summarizer != nil && len(turns) >= summaryMinTurns {
		summary, err := m.summarizer.Summarize(ctx, turns)
		if err == nil && strings.TrimSpace(summary) != "" {
			snap.Summary = summary
			if perr := m.profile.Append(ctx, summary); perr != nil {
				return fmt.Errorf("memory: append session summary to profile: %w", perr)
			}
		}
	}

	if err := m.archive.Save(ctx, snap); err != nil {
		return fmt.Errorf("memory: save session %q: %w", name, err)
	}
	return nil
}

// LoadSession replaces the active session log wholesale with the named
// snapshot. There is no merge; unsaved turns in the current log are lost.
func (m *Manager) LoadSession(ctx context.Context, name string) error {
	snap, err := m.archive.Load(ctx, name)
	if err != nil {
		return fmt.Errorf("memory: load session %q: %w", name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = make([]types.Turn, len(snap.Turns))
	copy(m.log, snap.Turns)
	m.createdAt = snap.CreatedAt
	return nil
}

// ListSessions returns the names of all saved sessions.
func (m *Manager) ListSessions(ctx context.Context) ([]string, error) {
	names, err := m.archive.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("memory: list sessions: %w", err)
	}
	return names, nil
}

// DeleteSession removes a saved session from the archive. The active log is
// unaffected even if it was loaded from that session.
func (m *Manager) DeleteSession(ctx context.Context, name string) error {
	if err := m.archive.Delete(ctx, name); err != nil {
		return fmt.Errorf("memory: delete session %q: %w", name, err)
	}
	return nil
}

// SummarizeIntoProfile condenses the active session log with the installed
// summarizer and appends the result to the user profile. It backs the "update
// my summary" instant command.
func (m *Manager) SummarizeIntoProfile(ctx context.Context) error {
	if m.summarizer == nil {
		return fmt.Errorf("memory: no summarizer configured")
	}
	turns := m.Log()
	if len(turns) == 0 {
		return fmt.Errorf("memory: nothing to summarize")
	}
	summary, err := m.summarizer.Summarize(ctx, turns)
	if err != nil {
		return fmt.Errorf("memory: summarize session: %w", err)
	}
	return m.UpdateProfile(ctx, summary)
}

// UpdateProfile appends delta to the user-profile blob. No deduplication is
// performed; repeated identical deltas append repeated text.
func (m *Manager) UpdateProfile(ctx context.Context, delta string) error {
	if strings.TrimSpace(delta) == "" {
		return nil
	}
	if err := m.profile.Append(ctx, delta); err != nil {
		return fmt.Errorf("memory: update profile: %w", err)
	}
	return nil
}

// Profile returns the current user-profile blob.
func (m *Manager) Profile(ctx context.Context) (string, error) {
	text, err := m.profile.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("memory: load profile: %w", err)
	}
	return text, nil
}
