//go:build !sqlite

package persistence

import (
	"context"
	"fmt"
)

func openSQLiteStore(_ context.Context, _ string, _ bool) (Store, error) {
	return nil, fmt.Errorf("sqlite backend unavailable in this build; rebuild with -tags sqlite")
}
