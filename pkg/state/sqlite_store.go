package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists snapshots in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore creates or opens the database at path. ":memory:" works
// for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	// A single connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("state: init schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS context_snapshots (
		key TEXT PRIMARY KEY,
		mapping_file TEXT NOT NULL,
		snapshot JSON NOT NULL,
		snapshot_id TEXT,
		etag TEXT,
		updated_at TIMESTAMP,
		extra JSON
	);`)
	return err
}

func (s *SQLiteStore) Load(ctx context.Context, ref Ref) (Snapshot, Meta, bool, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Snapshot{}, Meta{}, false, err
	}
	var (
		payload, extra []byte
		meta           Meta
		updatedAt      sql.NullTime
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT snapshot, snapshot_id, etag, updated_at, extra FROM context_snapshots WHERE key = ?`, key,
	).Scan(&payload, &meta.SnapshotID, &meta.ETag, &updatedAt, &extra)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, Meta{}, false, nil
	}
	if err != nil {
		return Snapshot{}, Meta{}, false, fmt.Errorf("state: query %s: %w", key, err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return Snapshot{}, Meta{}, false, fmt.Errorf("state: decode snapshot %s: %w", key, err)
	}
	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &meta.Extra); err != nil {
			return Snapshot{}, Meta{}, false, fmt.Errorf("state: decode meta %s: %w", key, err)
		}
	}
	if updatedAt.Valid {
		meta.UpdatedAt = updatedAt.Time.UTC()
	}
	return snapshot, meta, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, ref Ref, snapshot Snapshot, meta Meta) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Meta{}, err
	}
	defer tx.Rollback()

	var current sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT etag FROM context_snapshots WHERE key = ?`, key).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Meta{}, fmt.Errorf("state: query %s: %w", key, err)
	}
	if err := checkETag(meta.ETag, current.String); err != nil {
		return Meta{}, err
	}

	stored, payload, err := stamp(snapshot, meta, s.now())
	if err != nil {
		return Meta{}, err
	}
	var extra []byte
	if stored.Extra != nil {
		extra, _ = json.Marshal(stored.Extra)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO context_snapshots (key, mapping_file, snapshot, snapshot_id, etag, updated_at, extra)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			mapping_file=excluded.mapping_file,
			snapshot=excluded.snapshot,
			snapshot_id=excluded.snapshot_id,
			etag=excluded.etag,
			updated_at=excluded.updated_at,
			extra=excluded.extra
	`, key, ref.MappingFile, payload, stored.SnapshotID, stored.ETag, stored.UpdatedAt, extra)
	if err != nil {
		return Meta{}, fmt.Errorf("state: save %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return Meta{}, err
	}
	return stored, nil
}
