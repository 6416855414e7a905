package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/memory"
)

// IndexImpl is the semantic index backed by the records table with a pgvector
// HNSW index for fast approximate nearest-neighbour search.
//
// Obtain one via [Store.Index] rather than constructing directly.
type IndexImpl struct {
	pool *pgxpool.Pool
}

// Insert implements [memory.SemanticIndex]. Records are immutable, so an id
// collision replaces the row only to keep the operation idempotent on retry.
func (ix *IndexImpl) Insert(ctx context.Context, rec memory.Record) error {
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("postgres index: marshal metadata: %w", err)
	}

	const q = `
		INSERT INTO records (id, content, metadata, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
		    content    = EXCLUDED.content,
		    metadata   = EXCLUDED.metadata,
		    embedding  = EXCLUDED.embedding,
		    created_at = EXCLUDED.created_at`

	_, err = ix.pool.Exec(ctx, q,
		rec.ID, rec.Content, meta, pgvector.NewVector(rec.Embedding), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres index: insert record: %w", err)
	}
	return nil
}

// Search implements [memory.SemanticIndex]. Results are ordered by ascending
// cosine distance (most similar first).
func (ix *IndexImpl) Search(ctx context.Context, embedding []float32, topK int) ([]memory.RecordResult, error) {
	const q = `
		SELECT id, content, metadata, embedding,
		       created_at, embedding <=> $1 AS distance
		FROM   records
		ORDER  BY distance
		LIMIT  $2`

	rows, err := ix.pool.Query(ctx, q, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("postgres index: search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.RecordResult, error) {
		var (
			rr   memory.RecordResult
			meta []byte
			vec  pgvector.Vector
		)
		if err := row.Scan(
			&rr.Record.ID,
			&rr.Record.Content,
			&meta,
			&vec,
			&rr.Record.CreatedAt,
			&rr.Distance,
		); err != nil {
			return memory.RecordResult{}, err
		}
		rr.Record.Embedding = vec.Slice()
		if err := json.Unmarshal(meta, &rr.Record.Metadata); err != nil {
			return memory.RecordResult{}, err
		}
		return rr, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres index: collect results: %w", err)
	}
	return results, nil
}
