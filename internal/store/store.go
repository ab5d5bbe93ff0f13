// Package store persists nonce snapshots to PostgreSQL so allocation
// state survives a gateway restart, resolving the spec's Open Question
// on nonce-state durability. Grounded on the teacher's internal/db/db.go
// (pgxpool connect + New/Close) and internal/db/migrate.go (goose runner
// over an embed.FS), repurposed from account/character repositories to a
// single nonce_snapshots table.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/udisondev/rtgateway/internal/signer"
	"github.com/udisondev/rtgateway/internal/store/migrations"
)

// Store wraps a pgx connection pool for the nonce snapshot table.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL and returns a Store handle.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

var gooseOnce sync.Once

// Migrate runs the nonce_snapshots goose migration against dsn.
func Migrate(ctx context.Context, dsn string) error {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("opening sql connection for migrations: %w", err)
	}
	defer sqlDB.Close()

	var dialectErr error
	gooseOnce.Do(func() {
		goose.SetBaseFS(migrations.FS)
		dialectErr = goose.SetDialect("postgres")
	})
	if dialectErr != nil {
		return fmt.Errorf("setting goose dialect: %w", dialectErr)
	}
	if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// SaveSnapshots upserts every snapshot's current nonce. Called on a
// periodic cadence by StartSnapshotter's own ticker, not on every
// allocation (nonce allocation is a hot path; DB writes are not).
func (s *Store) SaveSnapshots(ctx context.Context, snaps []signer.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	const upsert = `INSERT INTO nonce_snapshots (public_key, current_nonce, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (public_key) DO UPDATE SET current_nonce = $2, updated_at = now()
		 WHERE nonce_snapshots.current_nonce < $2`

	batch := &pgx.Batch{}
	for _, snap := range snaps {
		batch.Queue(upsert, snap.Key, snap.Current)
	}
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range snaps {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("saving nonce snapshot batch: %w", err)
		}
	}
	return nil
}

// LoadSnapshots reads every persisted nonce snapshot, for
// signer.NonceManager.Restore at startup.
func (s *Store) LoadSnapshots(ctx context.Context) ([]signer.Snapshot, error) {
	rows, err := s.pool.Query(ctx, `SELECT public_key, current_nonce FROM nonce_snapshots`)
	if err != nil {
		return nil, fmt.Errorf("loading nonce snapshots: %w", err)
	}
	defer rows.Close()

	var out []signer.Snapshot
	for rows.Next() {
		var snap signer.Snapshot
		if err := rows.Scan(&snap.Key, &snap.Current); err != nil {
			return nil, fmt.Errorf("scanning nonce snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// StartSnapshotter periodically persists sessions' nonce state until ctx
// is cancelled, mirroring the forwarder's own StartSweeper ticker shape.
func (s *Store) StartSnapshotter(ctx context.Context, nonces *signer.NonceManager, interval time.Duration, onErr func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SaveSnapshots(ctx, nonces.Snapshot()); err != nil && onErr != nil {
				onErr(err)
			}
		}
	}
}
