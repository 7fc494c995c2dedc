// Package storetest opens throwaway sqlite stores for tests.
package storetest

import (
	"path/filepath"
	"testing"

	"github.com/tiammomo/mamoji-sub001/internal/config"
	"github.com/tiammomo/mamoji-sub001/internal/database"
	"github.com/tiammomo/mamoji-sub001/internal/store"
)

// New returns a migrated Store backed by a file in t.TempDir().
func New(t testing.TB) *store.Store {
	t.Helper()
	db, err := database.Init(config.DatabaseConfig{
		Path:          filepath.Join(t.TempDir(), "test.db"),
		BusyTimeoutMS: 10000,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return store.New(db)
}
