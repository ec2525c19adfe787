package persistence

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/denizumutdereli/stdpcore/pkg/core"
)

// MemoryStore keeps encoded snapshots in memory. Snapshots still go through
// the codec, so a load returns an independent copy.
type MemoryStore struct {
	codec *Codec

	mu   sync.RWMutex
	runs map[string]map[int][]byte
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		codec: NewCodec(false),
		runs:  make(map[string]map[int][]byte),
	}
}

func (s *MemoryStore) Save(_ context.Context, snap *Snapshot) error {
	data, err := s.codec.Encode(snap)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", core.ErrPersistenceFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cores, ok := s.runs[snap.RunID]
	if !ok {
		cores = make(map[int][]byte)
		s.runs[snap.RunID] = cores
	}
	cores[snap.CoreID] = data
	return nil
}

func (s *MemoryStore) Load(_ context.Context, runID string, coreID int) (*Snapshot, error) {
	s.mu.RLock()
	data, ok := s.runs[runID][coreID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: run %s core %d", core.ErrCoreNotFound, runID, coreID)
	}

	snap, err := s.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", core.ErrLoadFailed, err)
	}
	return snap, nil
}

func (s *MemoryStore) List(_ context.Context, runID string) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cores, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, runID)
	}
	ids := make([]int, 0, len(cores))
	for id := range cores {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

func (s *MemoryStore) Delete(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, runID)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
