package persistence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/denizumutdereli/stdpcore/pkg/core"
)

// testStoreContract runs the behaviour every Store backend shares.
func testStoreContract(t *testing.T, store Store) {
	ctx := context.Background()
	p := newTestProcessor(t)

	t.Run("SaveAndLoad", func(t *testing.T) {
		snap := NewSnapshot("run-1", 0, p)
		if err := store.Save(ctx, snap); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		loaded, err := store.Load(ctx, "run-1", 0)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		assertSameState(t, snap.State, loaded.State)
	})

	t.Run("Overwrite", func(t *testing.T) {
		snap := NewSnapshot("run-1", 0, p)
		snap.State.Stats.PreSpikes = 99
		if err := store.Save(ctx, snap); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		loaded, err := store.Load(ctx, "run-1", 0)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if loaded.State.Stats.PreSpikes != 99 {
			t.Errorf("expected overwritten stats, got %d", loaded.State.Stats.PreSpikes)
		}
	})

	t.Run("List", func(t *testing.T) {
		for _, id := range []int{3, 1} {
			if err := store.Save(ctx, NewSnapshot("run-1", id, p)); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
		}
		ids, err := store.List(ctx, "run-1")
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		want := []int{0, 1, 3}
		if len(ids) != len(want) {
			t.Fatalf("expected %v, got %v", want, ids)
		}
		for i := range want {
			if ids[i] != want[i] {
				t.Fatalf("expected %v, got %v", want, ids)
			}
		}
	})

	t.Run("Missing", func(t *testing.T) {
		if _, err := store.Load(ctx, "run-1", 42); !errors.Is(err, core.ErrCoreNotFound) {
			t.Errorf("expected ErrCoreNotFound, got %v", err)
		}
		if _, err := store.List(ctx, "nope"); !errors.Is(err, core.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := store.Save(ctx, NewSnapshot("run-2", 0, p)); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if err := store.Delete(ctx, "run-2"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := store.Load(ctx, "run-2", 0); !errors.Is(err, core.ErrCoreNotFound) {
			t.Errorf("expected ErrCoreNotFound after delete, got %v", err)
		}
		if _, err := store.Load(ctx, "run-1", 0); err != nil {
			t.Errorf("delete must not touch other runs: %v", err)
		}
	})

	t.Run("Concurrent", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				if err := store.Save(ctx, NewSnapshot("run-3", id, p)); err != nil {
					errs <- err
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Errorf("concurrent Save failed: %v", err)
		}
		ids, err := store.List(ctx, "run-3")
		if err != nil || len(ids) != 8 {
			t.Errorf("expected 8 cores, got %v (%v)", ids, err)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), true, true)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	testStoreContract(t, store)

	stats := store.Stats()
	if stats["total_writes"].(uint64) == 0 || stats["total_reads"].(uint64) == 0 {
		t.Errorf("expected counted reads and writes, got %v", stats)
	}
}

func TestFileStoreLayout(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, false, false)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	ctx := context.Background()
	if err := store.Save(ctx, NewSnapshot("run-x", 7, newTestProcessor(t))); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	path := filepath.Join(dir, "data", "run-x", "core-0007.stdp")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected snapshot at %s: %v", path, err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	// Stray files in the run directory are ignored by List.
	if err := os.WriteFile(filepath.Join(dir, "data", "run-x", "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	ids, err := store.List(ctx, "run-x")
	if err != nil || len(ids) != 1 || ids[0] != 7 {
		t.Errorf("expected [7], got %v (%v)", ids, err)
	}
}

func TestFileStoreCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewFileStore(dir, true, false)
	ctx := context.Background()
	if err := store.Save(ctx, NewSnapshot("run-c", 0, newTestProcessor(t))); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	path := filepath.Join(dir, "data", "run-c", "core-0000.stdp")
	data, _ := os.ReadFile(path)
	data[len(data)-1] ^= 0xff
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(ctx, "run-c", 0); !errors.Is(err, core.ErrLoadFailed) {
		t.Errorf("expected ErrLoadFailed, got %v", err)
	}
}

func TestFileStoreRejectsBadRunID(t *testing.T) {
	store, _ := NewFileStore(t.TempDir(), false, false)
	ctx := context.Background()
	for _, id := range []string{"", "..", "a/b"} {
		if err := store.Save(ctx, &Snapshot{RunID: id}); err == nil {
			t.Errorf("expected error for run id %q", id)
		}
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, core.StorageConfig{Backend: "memory"})
	if err != nil {
		t.Fatalf("Open memory failed: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("expected *MemoryStore, got %T", store)
	}

	store, err = Open(ctx, core.StorageConfig{Backend: "file", DataPath: t.TempDir()})
	if err != nil {
		t.Fatalf("Open file failed: %v", err)
	}
	if _, ok := store.(*FileStore); !ok {
		t.Errorf("expected *FileStore, got %T", store)
	}
	store.Close()

	if _, err := Open(ctx, core.StorageConfig{Backend: "tape"}); err == nil {
		t.Error("expected unsupported backend error")
	}
}
