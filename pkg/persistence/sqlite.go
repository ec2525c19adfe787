//go:build sqlite

package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/denizumutdereli/stdpcore/pkg/core"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps encoded snapshots in a single table keyed by run and core.
type SQLiteStore struct {
	path  string
	codec *Codec

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string, compress bool) *SQLiteStore {
	return &SQLiteStore{path: path, codec: NewCodec(compress)}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, snap *Snapshot) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	payload, err := s.codec.Encode(snap)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", core.ErrPersistenceFailed, err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO snapshots (run_id, core_id, saved_at, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, core_id) DO UPDATE SET
			saved_at = excluded.saved_at,
			payload = excluded.payload
	`, snap.RunID, snap.CoreID, snap.SavedAt, payload)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrPersistenceFailed, err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, runID string, coreID int) (*Snapshot, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE run_id = ? AND core_id = ?`, runID, coreID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: run %s core %d", core.ErrCoreNotFound, runID, coreID)
		}
		return nil, fmt.Errorf("%w: %v", core.ErrLoadFailed, err)
	}

	snap, err := s.codec.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: decode run %s core %d: %v", core.ErrLoadFailed, runID, coreID, err)
	}
	return snap, nil
}

func (s *SQLiteStore) List(ctx context.Context, runID string) ([]int, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT core_id FROM snapshots WHERE run_id = ? ORDER BY core_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, runID)
	}
	return ids, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, runID string) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `DELETE FROM snapshots WHERE run_id = ?`, runID)
	return err
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS snapshots (
			run_id TEXT NOT NULL,
			core_id INTEGER NOT NULL,
			saved_at INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (run_id, core_id)
		);
	`)
	return err
}

func openSQLiteStore(ctx context.Context, path string, compress bool) (Store, error) {
	store := NewSQLiteStore(path, compress)
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	return store, nil
}
