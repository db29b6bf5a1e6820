// Package db provides the Postgres connection, schema migrations and the
// shared replay cache table.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'

	"github.com/onnwee/replaybot/replay"
)

// Connect opens a Postgres connection for dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxIdleTime(5 * time.Minute)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// ReplayCache stores compressed replay blobs in the replay_cache table so
// several bot instances can share one cache.
type ReplayCache struct {
	DB *sql.DB
}

// Read returns the blob for key or replay.ErrCacheMiss.
func (rc *ReplayCache) Read(ctx context.Context, key string) ([]byte, error) {
	if !replay.IsCode(key) {
		return nil, fmt.Errorf("invalid cache key %q", key)
	}
	var blob []byte
	err := rc.DB.QueryRowContext(ctx, `SELECT blob FROM replay_cache WHERE code=$1`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, replay.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("read replay cache: %w", err)
	}
	return blob, nil
}

// Write upserts the blob for key in a single statement.
func (rc *ReplayCache) Write(ctx context.Context, key string, blob []byte) error {
	if !replay.IsCode(key) {
		return fmt.Errorf("invalid cache key %q", key)
	}
	_, err := rc.DB.ExecContext(ctx, `INSERT INTO replay_cache (code, blob, fetched_at) VALUES ($1, $2, NOW())
		ON CONFLICT (code) DO UPDATE SET blob=EXCLUDED.blob, fetched_at=EXCLUDED.fetched_at`, key, blob)
	if err != nil {
		return fmt.Errorf("write replay cache: %w", err)
	}
	return nil
}

// Ping reports whether the database is reachable.
func (rc *ReplayCache) Ping(ctx context.Context) error { return rc.DB.PingContext(ctx) }

// CountOlderThan counts entries fetched before cutoff.
func (rc *ReplayCache) CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	if err := rc.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM replay_cache WHERE fetched_at < $1`, cutoff).Scan(&n); err != nil {
		return 0, fmt.Errorf("count replay cache: %w", err)
	}
	return n, nil
}

// PruneOlderThan deletes entries fetched before cutoff. Pruned replays are
// simply fetched again on their next mention.
func (rc *ReplayCache) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := rc.DB.ExecContext(ctx, `DELETE FROM replay_cache WHERE fetched_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune replay cache: %w", err)
	}
	return res.RowsAffected()
}
