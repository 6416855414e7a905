// Package redis provides a Redis-backed memory.SessionArchive. Snapshots are
// stored as JSON blobs keyed by session name, with a set maintaining the name
// index for listing.
//
// Use it when session persistence should survive process restarts without
// running PostgreSQL, or when several assistant hosts share one archive.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/memory"
)

const (
	sessionKeyPrefix = "assistant:session:"
	sessionIndexKey  = "assistant:sessions"
)

// Compile-time interface check.
var _ memory.SessionArchive = (*Archive)(nil)

// Archive implements memory.SessionArchive on a Redis instance.
type Archive struct {
	client *redis.Client
}

// New connects to the Redis instance at addr (host:port) and verifies the
// connection with a ping. password and db follow go-redis conventions; pass
// "" and 0 for defaults.
func New(ctx context.Context, addr, password string, db int) (*Archive, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis archive: addr must not be empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis archive: ping %s: %w", addr, err)
	}
	return &Archive{client: client}, nil
}

// NewFromClient wraps an existing client. The caller retains ownership of the
// client's lifecycle.
func NewFromClient(client *redis.Client) *Archive {
	return &Archive{client: client}
}

// Save implements memory.SessionArchive.
func (a *Archive) Save(ctx context.Context, snap memory.SessionSnapshot) error {
	blob, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis archive: marshal snapshot: %w", err)
	}

	pipe := a.client.TxPipeline()
	pipe.Set(ctx, sessionKeyPrefix+snap.Name, blob, 0)
	pipe.SAdd(ctx, sessionIndexKey, snap.Name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis archive: save session: %w", err)
	}
	return nil
}

// Load implements memory.SessionArchive.
func (a *Archive) Load(ctx context.Context, name string) (memory.SessionSnapshot, error) {
	blob, err := a.client.Get(ctx, sessionKeyPrefix+name).Bytes()
	if errors.Is(err, redis.Nil) {
		return memory.SessionSnapshot{}, memory.ErrSessionNotFound
	}
	if err != nil {
		return memory.SessionSnapshot{}, fmt.Errorf("redis archive: load session: %w", err)
	}

	var snap memory.SessionSnapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return memory.SessionSnapshot{}, fmt.Errorf("redis archive: unmarshal snapshot: %w", err)
	}
	return snap, nil
}

// List implements memory.SessionArchive.
func (a *Archive) List(ctx context.Context) ([]string, error) {
	names, err := a.client.SMembers(ctx, sessionIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis archive: list sessions: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Delete implements memory.SessionArchive.
func (a *Archive) Delete(ctx context.Context, name string) error {
	pipe := a.client.TxPipeline()
	del := pipe.Del(ctx, sessionKeyPrefix+name)
	pipe.SRem(ctx, sessionIndexKey, name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis archive: delete session: %w", err)
	}
	if del.Val() == 0 {
		return memory.ErrSessionNotFound
	}
	return nil
}

// Close releases the underlying client when it was created by New.
func (a *Archive) Close() error {
	return a.client.Close()
}
