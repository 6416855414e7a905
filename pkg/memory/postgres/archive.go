package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/memory"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/types"
)

// ArchiveImpl is the session archive backed by the sessions table. Turns are
// stored as a JSONB array.
//
// Obtain one via [Store.Archive] rather than constructing directly.
type ArchiveImpl struct {
	pool *pgxpool.Pool
}

// Save implements [memory.SessionArchive]. An existing snapshot with the same
// name is replaced wholesale.
func (a *ArchiveImpl) Save(ctx context.Context, snap memory.SessionSnapshot) error {
	turns, err := json.Marshal(snap.Turns)
	if err != nil {
		return fmt.Errorf("postgres archive: marshal turns: %w", err)
	}

	const q = `
		INSERT INTO sessions (name, turns, summary, created_at, saved_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
		    turns      = EXCLUDED.turns,
		    summary    = EXCLUDED.summary,
		    created_at = EXCLUDED.created_at,
		    saved_at   = EXCLUDED.saved_at`

	_, err = a.pool.Exec(ctx, q, snap.Name, turns, snap.Summary, snap.CreatedAt, snap.SavedAt)
	if err != nil {
		return fmt.Errorf("postgres archive: save session: %w", err)
	}
	return nil
}

// Load implements [memory.SessionArchive].
func (a *ArchiveImpl) Load(ctx context.Context, name string) (memory.SessionSnapshot, error) {
	const q = `
		SELECT name, turns, summary, created_at, saved_at
		FROM   sessions
		WHERE  name = $1`

	var (
		snap  memory.SessionSnapshot
		turns []byte
	)
	err := a.pool.QueryRow(ctx, q, name).Scan(
		&snap.Name, &turns, &snap.Summary, &snap.CreatedAt, &snap.SavedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return memory.SessionSnapshot{}, memory.ErrSessionNotFound
	}
	if err != nil {
		return memory.SessionSnapshot{}, fmt.Errorf("postgres archive: load session: %w", err)
	}

	if err := json.Unmarshal(turns, &snap.Turns); err != nil {
		return memory.SessionSnapshot{}, fmt.Errorf("postgres archive: unmarshal turns: %w", err)
	}
	if snap.Turns == nil {
		snap.Turns = []types.Turn{}
	}
	return snap, nil
}

// List implements [memory.SessionArchive].
func (a *ArchiveImpl) List(ctx context.Context) ([]string, error) {
	rows, err := a.pool.Query(ctx, `SELECT name FROM sessions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("postgres archive: list sessions: %w", err)
	}

	names, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var name string
		err := row.Scan(&name)
		return name, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres archive: collect names: %w", err)
	}
	return names, nil
}

// Delete implements [memory.SessionArchive].
func (a *ArchiveImpl) Delete(ctx context.Context, name string) error {
	tag, err := a.pool.Exec(ctx, `DELETE FROM sessions WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("postgres archive: delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return memory.ErrSessionNotFound
	}
	return nil
}
