// Package ledger persists which PRs each user has already seen. Every
// completed scan bumps the user's scan sequence number and stamps the
// currently open PRs with it, which lets the dashboard mark PRs that appear
// for the first time. The ledger is optional; the server runs without it.
package ledger

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jdonszelmann/review-queue/pkg/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Key identifies one PR in the ledger.
type Key struct {
	Repo   model.Repo
	Number int
}

// Store is the Postgres-backed ledger.
type Store struct {
	pool *pgxpool.Pool
}

// Open migrates the schema and connects a pool to databaseURL.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if err := runMigrations(databaseURL); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Ledger database connected", "component", "ledger")
	return &Store{pool: pool}, nil
}

func runMigrations(databaseURL string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() {
		if serr, derr := m.Close(); serr != nil || derr != nil {
			slog.Warn("Failed to close migrator", "sourceError", serr, "databaseError", derr)
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// RecordScan stores the result of one completed scan: it bumps the user's
// scan sequence, stamps every open PR with it, and reports which PRs the
// user had never seen before.
func (s *Store) RecordScan(ctx context.Context, username string, prs []model.Pr) (map[Key]bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Warn("Failed to roll back ledger transaction", "error", err)
		}
	}()

	var seq int64
	err = tx.QueryRow(ctx,
		`INSERT INTO users (username, scan_seq) VALUES ($1, 1)
		 ON CONFLICT (username) DO UPDATE SET scan_seq = users.scan_seq + 1
		 RETURNING scan_seq`, username).Scan(&seq)
	if err != nil {
		return nil, fmt.Errorf("failed to bump scan sequence: %w", err)
	}

	seen, err := seenKeys(ctx, tx, username)
	if err != nil {
		return nil, err
	}

	firstSeen := make(map[Key]bool)
	batch := &pgx.Batch{}
	for _, pr := range prs {
		key := Key{Repo: pr.Repo, Number: pr.Number}
		if !seen[key] {
			firstSeen[key] = true
		}
		batch.Queue(
			`INSERT INTO seen_prs (username, repo_owner, repo_name, pr_number, last_seen_seq)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (username, repo_owner, repo_name, pr_number)
			 DO UPDATE SET last_seen_seq = EXCLUDED.last_seen_seq`,
			username, pr.Repo.Owner, pr.Repo.Name, pr.Number, seq)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, fmt.Errorf("failed to record seen PRs: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit ledger transaction: %w", err)
	}
	return firstSeen, nil
}

func seenKeys(ctx context.Context, tx pgx.Tx, username string) (map[Key]bool, error) {
	rows, err := tx.Query(ctx,
		`SELECT repo_owner, repo_name, pr_number FROM seen_prs WHERE username = $1`, username)
	if err != nil {
		return nil, fmt.Errorf("failed to query seen PRs: %w", err)
	}
	defer rows.Close()

	seen := make(map[Key]bool)
	for rows.Next() {
		var key Key
		if err := rows.Scan(&key.Repo.Owner, &key.Repo.Name, &key.Number); err != nil {
			return nil, fmt.Errorf("failed to scan seen PR row: %w", err)
		}
		seen[key] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read seen PRs: %w", err)
	}
	return seen, nil
}
