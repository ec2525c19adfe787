//go:build sqlite

package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/denizumutdereli/stdpcore/pkg/core"
)

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "stdpcore.db"), true)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	testStoreContract(t, store)
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "stdpcore.db"), false)
	if err := store.Save(context.Background(), &Snapshot{RunID: "r"}); err == nil {
		t.Fatal("expected error before Init")
	}
}

func TestOpenSQLite(t *testing.T) {
	store, err := Open(context.Background(), core.StorageConfig{
		Backend:  "sqlite",
		DataPath: filepath.Join(t.TempDir(), "stdpcore.db"),
	})
	if err != nil {
		t.Fatalf("Open sqlite failed: %v", err)
	}
	defer store.Close()
	if _, ok := store.(*SQLiteStore); !ok {
		t.Errorf("expected *SQLiteStore, got %T", store)
	}
}
