package persistence

import (
	"context"
	"fmt"

	"github.com/denizumutdereli/stdpcore/pkg/core"
)

// Open returns the snapshot store selected by cfg.Backend.
func Open(ctx context.Context, cfg core.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "", "file":
		store, err := NewFileStore(cfg.DataPath, cfg.Compress, true)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return openSQLiteStore(ctx, cfg.DataPath, cfg.Compress)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}
