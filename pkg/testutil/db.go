// Package testutil opens throwaway SQLite-backed stores for tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"cashadvance/pkg/logger"
	"cashadvance/store"

	"gorm.io/gorm"
)

// NewDB opens a migrated SQLite database in t's temp dir and closes it on cleanup.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	gdb, err := store.Open(store.Config{Driver: "sqlite", DSN: path + "?_pragma=busy_timeout(5000)"}, logger.Discard())
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	st := store.New(gdb)
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return gdb
}

// NewStore is NewDB wrapped in a Store.
func NewStore(t testing.TB) *store.Store {
	t.Helper()
	return store.New(NewDB(t))
}
