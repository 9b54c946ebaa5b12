package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"hftracker/internal/tracker"
	logx "hftracker/pkg/logx"

	"modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	account      TEXT PRIMARY KEY,
	last_checked TEXT NOT NULL,
	model_count  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS models (
	account       TEXT NOT NULL,
	id            TEXT NOT NULL,
	author        TEXT,
	created_at    TEXT,
	updated_at    TEXT,
	last_modified TEXT,
	sha           TEXT,
	tags          TEXT NOT NULL DEFAULT '[]',
	downloads     INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (account, id)
);
`

// sqliteStore keeps the state in two tables. Save replaces both inside a
// single transaction.
type sqliteStore struct {
	db  *sql.DB
	log logx.Logger

	mu sync.Mutex
}

// Primary result codes of a damaged database file.
const (
	sqliteCorrupt = 11
	sqliteNotADB  = 26
)

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = time.Second
	}

	db, err := openSQLiteDB(path, busy)
	if err != nil && isCorrupt(err) {
		// An unreadable state database must not block startup: keep the
		// damaged file for inspection and start from an empty one.
		aside := fmt.Sprintf("%s.corrupt-%s", path, time.Now().UTC().Format("20060102T150405"))
		log.Error("state database corrupt; moving it aside and starting fresh",
			logx.String("path", path), logx.String("moved_to", aside), logx.Err(err))
		if rerr := quarantine(path, aside); rerr != nil {
			return nil, fmt.Errorf("moving corrupt state database aside: %w", rerr)
		}
		db, err = openSQLiteDB(path, busy)
	}
	if err != nil {
		return nil, err
	}
	return &sqliteStore{db: db, log: log}, nil
}

func openSQLiteDB(path string, busy time.Duration) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(context.Background(), sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating sqlite schema: %w", err)
	}
	return db, nil
}

func isCorrupt(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqliteCorrupt, sqliteNotADB:
		return true
	}
	return false
}

// quarantine renames the database and drops its journal side files.
func quarantine(path, aside string) error {
	if err := os.Rename(path, aside); err != nil {
		return err
	}
	for _, suffix := range []string{"-wal", "-shm", "-journal"} {
		if err := os.Remove(path + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) Load(ctx context.Context) *tracker.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return tracker.NewState()
	}

	st, err := s.loadLocked(ctx)
	if err != nil {
		s.log.Error("state database unreadable; starting fresh", logx.Err(err))
		return tracker.NewState()
	}
	if len(st.Accounts) == 0 {
		s.log.Info("no existing state; starting fresh")
	} else {
		s.log.Info("state loaded", logx.Int("accounts", len(st.Accounts)))
	}
	return st
}

func (s *sqliteStore) loadLocked(ctx context.Context) (*tracker.State, error) {
	checked := map[string]time.Time{}
	rows, err := s.db.QueryContext(ctx, `SELECT account, last_checked FROM accounts`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			_ = rows.Close()
			return nil, err
		}
		t, _ := parseTime(raw)
		checked[name] = t
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	records := map[string][]tracker.ArtifactRecord{}
	rows, err = s.db.QueryContext(ctx,
		`SELECT account, id, author, created_at, updated_at, last_modified, sha, tags, downloads FROM models`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			account, id, tags                       string
			author, created, updated, modified, sha sql.NullString
			downloads                               int64
		)
		if err := rows.Scan(&account, &id, &author, &created, &updated, &modified, &sha, &tags, &downloads); err != nil {
			return nil, err
		}
		d := modelDoc{
			ID:           id,
			Author:       fromNull(author),
			CreatedAt:    fromNull(created),
			UpdatedAt:    fromNull(updated),
			LastModified: fromNull(modified),
			SHA:          fromNull(sha),
			Downloads:    &downloads,
		}
		if err := json.Unmarshal([]byte(tags), &d.Tags); err != nil {
			return nil, fmt.Errorf("decode tags of %s: %w", id, err)
		}
		records[account] = append(records[account], decodeRecord(id, d, s.log))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	st := tracker.NewState()
	for name, at := range checked {
		st.Put(name, tracker.NewSnapshot(records[name], at))
	}
	return st, nil
}

func (s *sqliteStore) Save(ctx context.Context, st *tracker.State) error {
	if st == nil {
		st = tracker.NewState()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin state tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM models`); err != nil {
		return fmt.Errorf("clear models: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM accounts`); err != nil {
		return fmt.Errorf("clear accounts: %w", err)
	}

	accStmt, err := tx.PrepareContext(ctx, `INSERT INTO accounts(account, last_checked, model_count) VALUES(?,?,?)`)
	if err != nil {
		return err
	}
	defer accStmt.Close()
	modelStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO models(account, id, author, created_at, updated_at, last_modified, sha, tags, downloads)
		 VALUES(?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer modelStmt.Close()

	for name, snap := range st.Accounts {
		if _, err := accStmt.ExecContext(ctx, name, formatTime(snap.LastChecked), len(snap.Artifacts)); err != nil {
			return fmt.Errorf("insert account %s: %w", name, err)
		}
		for _, r := range snap.Artifacts {
			d := encodeRecord(r)
			tags, err := json.Marshal(d.Tags)
			if err != nil {
				return err
			}
			if _, err := modelStmt.ExecContext(ctx, name, d.ID, toNull(d.Author), toNull(d.CreatedAt),
				toNull(d.UpdatedAt), toNull(d.LastModified), toNull(d.SHA), string(tags), *d.Downloads); err != nil {
				return fmt.Errorf("insert model %s: %w", d.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit state tx: %w", err)
	}
	s.log.Debug("state saved", logx.Int("accounts", len(st.Accounts)))
	return nil
}

func (s *sqliteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func fromNull(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func toNull(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
