// Package postgres provides a PostgreSQL-backed implementation of the memory
// backend interfaces: the session archive and user profile as plain tables,
// the semantic index as a pgvector HNSW table.
//
// All backends share a single [pgxpool.Pool]. The pgvector extension must be
// available in the target database; [Migrate] installs it via CREATE
// EXTENSION IF NOT EXISTS.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn, 1536)
//	if err != nil { … }
//	defer store.Close()
//
//	mgr, err := memory.NewManager(embedder,
//	    store.Archive(), store.Index(), store.Profile())
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/memory"
)

// Compile-time interface checks.
var (
	_ memory.SessionArchive = (*ArchiveImpl)(nil)
	_ memory.SemanticIndex  = (*IndexImpl)(nil)
	_ memory.ProfileStore   = (*ProfileImpl)(nil)
)

// Store holds the shared connection pool and exposes the three backends via
// [Store.Archive], [Store.Index], and [Store.Profile].
//
// All operations are safe for concurrent use.
type Store struct {
	pool    *pgxpool.Pool
	archive *ArchiveImpl
	index   *IndexImpl
	profile *ProfileImpl
}

// NewStore establishes a connection pool to the PostgreSQL database at dsn,
// registers pgvector types on every connection, and runs [Migrate] to ensure
// all required tables and extensions exist.
//
// embeddingDimensions must match the output dimension of the configured
// embeddings provider (e.g., 1536 for OpenAI text-embedding-3-small).
// Changing it after the first migration requires a manual schema change.
func NewStore(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so vector columns can
	// be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{
		pool:    pool,
		archive: &ArchiveImpl{pool: pool},
		index:   &IndexImpl{pool: pool},
		profile: &ProfileImpl{pool: pool},
	}, nil
}

// Archive returns the session-archive backend.
func (s *Store) Archive() *ArchiveImpl { return s.archive }

// Index returns the semantic-index backend.
func (s *Store) Index() *IndexImpl { return s.index }

// Profile returns the profile-store backend.
func (s *Store) Profile() *ProfileImpl { return s.profile }

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}
