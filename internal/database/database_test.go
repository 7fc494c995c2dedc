package database

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/tiammomo/mamoji-sub001/internal/config"
	"github.com/tiammomo/mamoji-sub001/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Path: "data/x.db"})
	assert.True(t, strings.HasPrefix(dsn, "file:data/x.db?"))
	assert.Contains(t, dsn, "_busy_timeout=5000")
	assert.Contains(t, dsn, "_txlock=immediate")

	dsn = DSN(config.DatabaseConfig{Path: "a.db", BusyTimeoutMS: 250})
	assert.Contains(t, dsn, "_busy_timeout=250")
}

func TestInitAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")

	db, err := Init(config.DatabaseConfig{Path: path})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	for _, m := range []any{&models.Transaction{}, &models.Invitation{}, &models.LedgerMember{}} {
		assert.True(t, db.Migrator().HasTable(m))
	}

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}
