package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlSessions = `
CREATE TABLE IF NOT EXISTS sessions (
    name        TEXT         PRIMARY KEY,
    turns       JSONB        NOT NULL DEFAULT '[]',
    summary     TEXT         NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    saved_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

const ddlProfile = `
CREATE TABLE IF NOT EXISTS profile_entries (
    id          BIGSERIAL    PRIMARY KEY,
    content     TEXT         NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

// ddlRecords returns the semantic-index DDL with the embedding dimension
// substituted. The dimension is baked into the column type at creation time.
func ddlRecords(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS records (
    id          TEXT         PRIMARY KEY,
    content     TEXT         NOT NULL,
    metadata    JSONB        NOT NULL DEFAULT '{}',
    embedding   vector(%d),
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_records_embedding
    ON records USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures all required tables and extensions exist. It is
// idempotent and safe to call on every application start.
//
// embeddingDimensions must match the configured embedding model (e.g., 1536
// for OpenAI text-embedding-3-small).
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlSessions,
		ddlProfile,
		ddlRecords(embeddingDimensions),
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres store: run migration: %w", err)
		}
	}
	return nil
}
