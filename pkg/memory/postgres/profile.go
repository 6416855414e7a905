package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProfileImpl is the user-profile store backed by the profile_entries table.
// Each Append inserts one row; Load joins all rows in insertion order, so the
// blob is append-only by construction.
//
// Obtain one via [Store.Profile] rather than constructing directly.
type ProfileImpl struct {
	pool *pgxpool.Pool
}

// Load implements [memory.ProfileStore].
func (p *ProfileImpl) Load(ctx context.Context) (string, error) {
	rows, err := p.pool.Query(ctx, `SELECT content FROM profile_entries ORDER BY id`)
	if err != nil {
		return "", fmt.Errorf("postgres profile: load: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var content string
		err := row.Scan(&content)
		return content, err
	})
	if err != nil {
		return "", fmt.Errorf("postgres profile: collect entries: %w", err)
	}
	return strings.Join(entries, "\n"), nil
}

// Append implements [memory.ProfileStore].
func (p *ProfileImpl) Append(ctx context.Context, delta string) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO profile_entries (content) VALUES ($1)`, delta)
	if err != nil {
		return fmt.Errorf("postgres profile: append: %w", err)
	}
	return nil
}
