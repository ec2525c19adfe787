package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/denizumutdereli/stdpcore/pkg/core"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusCreated   Status = "created"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Entry records one simulation run.
type Entry struct {
	ID        string            `json:"id"`
	Rule      string            `json:"rule"`
	Cores     int               `json:"cores"`
	Status    Status            `json:"status"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

func (e *Entry) clone() *Entry {
	c := *e
	if e.Metadata != nil {
		c.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// Store manages run registration with file-based persistence
type Store struct {
	entries  map[string]*Entry
	mu       sync.RWMutex
	filePath string
}

// NewStore opens the registry kept in <dataPath>/runs.json.
func NewStore(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create registry path: %w", err)
	}

	s := &Store{
		entries:  make(map[string]*Entry),
		filePath: filepath.Join(dataPath, "runs.json"),
	}

	if err := s.load(); err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}

	return s, nil
}

// Create registers a new run under a fresh UUID.
func (s *Store) Create(rule string, cores int, metadata map[string]string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	entry := &Entry{
		ID:        uuid.New().String(),
		Rule:      rule,
		Cores:     cores,
		Status:    StatusCreated,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.entries[entry.ID] = entry

	if err := s.save(); err != nil {
		delete(s.entries, entry.ID)
		return nil, fmt.Errorf("failed to persist: %w", err)
	}

	return entry.clone(), nil
}

// Get returns a registered run by ID
func (s *Store) Get(id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, id)
	}
	return entry.clone(), nil
}

// List returns all runs, oldest first.
func (s *Store) List() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		result = append(result, entry.clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// SetStatus moves a run to status.
func (s *Store) SetStatus(id string, status Status) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, id)
	}

	prev, prevUpdated := entry.Status, entry.UpdatedAt
	entry.Status = status
	entry.UpdatedAt = time.Now()

	if err := s.save(); err != nil {
		entry.Status, entry.UpdatedAt = prev, prevUpdated
		return nil, fmt.Errorf("failed to persist: %w", err)
	}

	return entry.clone(), nil
}

// Delete removes a registered run
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted, exists := s.entries[id]
	if !exists {
		return fmt.Errorf("%w: %s", core.ErrRunNotFound, id)
	}
	delete(s.entries, id)

	if err := s.save(); err != nil {
		s.entries[id] = deleted
		return fmt.Errorf("failed to persist: %w", err)
	}

	return nil
}

// Count returns the number of registered runs
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// ── Persistence ──────────────────────────────────────────────

func (s *Store) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No file yet
		}
		return err
	}

	var entries []*Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}

	for _, entry := range entries {
		s.entries[entry.ID] = entry
	}

	return nil
}

func (s *Store) save() error {
	entries := make([]*Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := s.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}

	return os.Rename(tmpPath, s.filePath)
}
