package persistence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/denizumutdereli/stdpcore/pkg/core"
)

// Store persists core snapshots keyed by run and core.
type Store interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context, runID string, coreID int) (*Snapshot, error)
	// List returns the core IDs saved for runID, ascending.
	List(ctx context.Context, runID string) ([]int, error)
	// Delete removes every snapshot of runID.
	Delete(ctx context.Context, runID string) error
	Close() error
}

const snapshotExt = ".stdp"

// FileStore keeps one file per core under <basePath>/data/<runID>/.
type FileStore struct {
	basePath string
	codec    *Codec
	sync     bool

	mu          sync.RWMutex
	totalWrites uint64
	totalReads  uint64
}

// NewFileStore creates the directory layout under basePath. With sync set,
// every write is fsynced along with its directory.
func NewFileStore(basePath string, compress, sync bool) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(basePath, "data"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data path: %w", err)
	}
	return &FileStore{
		basePath: basePath,
		codec:    NewCodec(compress),
		sync:     sync,
	}, nil
}

// Save persists a snapshot to disk
func (s *FileStore) Save(_ context.Context, snap *Snapshot) error {
	if err := checkRunID(snap.RunID); err != nil {
		return err
	}
	data, err := s.codec.Encode(snap)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", core.ErrPersistenceFailed, err)
	}

	dir := s.runPath(snap.RunID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: %v", core.ErrPersistenceFailed, err)
	}
	if err := s.writeAtomically(s.corePath(snap.RunID, snap.CoreID), data, 0644); err != nil {
		return fmt.Errorf("%w: write: %v", core.ErrPersistenceFailed, err)
	}

	s.mu.Lock()
	s.totalWrites++
	s.mu.Unlock()
	return nil
}

// Load retrieves a snapshot from disk
func (s *FileStore) Load(_ context.Context, runID string, coreID int) (*Snapshot, error) {
	if err := checkRunID(runID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.corePath(runID, coreID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: run %s core %d", core.ErrCoreNotFound, runID, coreID)
		}
		return nil, fmt.Errorf("%w: read: %v", core.ErrLoadFailed, err)
	}

	snap, err := s.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", core.ErrLoadFailed, err)
	}

	s.mu.Lock()
	s.totalReads++
	s.mu.Unlock()
	return snap, nil
}

// List returns the saved core IDs of a run.
func (s *FileStore) List(_ context.Context, runID string) ([]int, error) {
	if err := checkRunID(runID); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.runPath(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, runID)
		}
		return nil, err
	}

	ids := make([]int, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != snapshotExt {
			continue
		}
		id, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSuffix(name, snapshotExt), "core-"))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

// Delete removes a run's directory.
func (s *FileStore) Delete(_ context.Context, runID string) error {
	if err := checkRunID(runID); err != nil {
		return err
	}
	return os.RemoveAll(s.runPath(runID))
}

// Close is a no-op; every Save is complete when it returns.
func (s *FileStore) Close() error { return nil }

// Stats returns store statistics
func (s *FileStore) Stats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"base_path":    s.basePath,
		"total_writes": s.totalWrites,
		"total_reads":  s.totalReads,
	}
}

func (s *FileStore) runPath(runID string) string {
	return filepath.Join(s.basePath, "data", runID)
}

func (s *FileStore) corePath(runID string, coreID int) string {
	return filepath.Join(s.runPath(runID), fmt.Sprintf("core-%04d%s", coreID, snapshotExt))
}

func (s *FileStore) writeAtomically(path string, data []byte, perm os.FileMode) error {
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}

	if s.sync {
		if err := f.Sync(); err != nil {
			f.Close()
			os.Remove(tmpPath)
			return err
		}
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if s.sync {
		return syncDir(filepath.Dir(path))
	}
	return nil
}

func syncDir(path string) error {
	d, err := os.Open(path)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

// checkRunID keeps run IDs usable as directory names.
func checkRunID(runID string) error {
	if runID == "" || runID == "." || runID == ".." || strings.ContainsAny(runID, `/\`) {
		return fmt.Errorf("invalid run id %q", runID)
	}
	return nil
}
