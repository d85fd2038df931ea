package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS run_state (
	id           INTEGER PRIMARY KEY CHECK (id = 1),
	last_seen_id TEXT    NOT NULL,
	updated_at   INTEGER NOT NULL
)`

// SQLiteStore keeps the marker in a single-row table. Writes are one
// transaction, so a crash leaves either the old or the new row.
type SQLiteStore struct {
	db        *sql.DB
	logPrefix string
}

func OpenSQLite(path, logPrefix string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	for _, stmt := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000", sqliteSchema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
	}
	return &SQLiteStore{db: db, logPrefix: logPrefix}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) RunState {
	var (
		id      string
		updated int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT last_seen_id, updated_at FROM run_state WHERE id = 1`).Scan(&id, &updated)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("%s state query failed, treating as empty: %v", s.logPrefix, err)
		}
		return RunState{}
	}
	st := RunState{LastSeenID: strings.TrimSpace(id)}
	if updated > 0 {
		st.UpdatedAt = time.Unix(updated, 0).UTC()
	}
	return st
}

func (s *SQLiteStore) Save(ctx context.Context, st RunState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var updated int64
	if !st.UpdatedAt.IsZero() {
		updated = st.UpdatedAt.Unix()
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO run_state (id, last_seen_id, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET last_seen_id = excluded.last_seen_id, updated_at = excluded.updated_at`,
		strings.TrimSpace(st.LastSeenID), updated)
	if err != nil {
		return fmt.Errorf("upsert run_state: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
