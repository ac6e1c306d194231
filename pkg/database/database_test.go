package database

import (
	"biblioteca/pkg/config"
	"biblioteca/pkg/models"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitStoreDBSQLite(t *testing.T) {
	cfg := config.Default().Database
	cfg.Driver = "sqlite"
	cfg.SQLitePath = filepath.Join(t.TempDir(), "nested", "store.db")

	db, err := InitStoreDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	assert.True(t, db.Migrator().HasTable(&models.KVEntry{}))
}

func TestInitStoreDBUnknownDriver(t *testing.T) {
	cfg := config.Default().Database
	cfg.Driver = "oracle"

	_, err := InitStoreDB(cfg)
	assert.Error(t, err)
}
