package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "8070", cfg.Loans.Port)
	assert.Equal(t, "biblioteca_", cfg.Loans.StorePrefix)
	assert.Equal(t, "8080", cfg.Gateway.Port)
	assert.Equal(t, 10*time.Second, cfg.Gateway.Timeout)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.toml")
	content := `
[database]
driver = "sqlite"
sqlite_path = "/tmp/from-file.db"

[gateway]
port = "9090"
breaker_failures = 2
breaker_cooldown = "1m"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("GATEWAY_PORT", "9191")
	t.Setenv("DB_NAME", "loans_test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/from-file.db", cfg.Database.SQLitePath)
	assert.Equal(t, "loans_test", cfg.Database.Name)
	assert.Equal(t, "9191", cfg.Gateway.Port)
	assert.Equal(t, 2, cfg.Gateway.BreakerFailures)
	assert.Equal(t, time.Minute, cfg.Gateway.BreakerCooldown)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadInvalidBreakerFailures(t *testing.T) {
	t.Setenv("BREAKER_FAILURES", "many")

	_, err := Load("")
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	d := Default().Database
	assert.Equal(t,
		"host=postgres user=program password=test dbname=library port=5432 sslmode=disable TimeZone=UTC",
		d.DSN())
}
