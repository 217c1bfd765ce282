package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "db/pg", cfg.DatabaseMigrationFolderPath)
	assert.Equal(t, 10*time.Second, cfg.DatabaseConnMaxLifetime)
	assert.Equal(t, "exchange-events", cfg.KafkaEventsTopic)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr())
	assert.False(t, cfg.AuthEnabled)
}

func TestLoad_EnvFileAndOverrides(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("DB_NAME=fern_test\nPORT=4100\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("DB_NAME")
		os.Unsetenv("PORT")
	})
	t.Setenv("DB_HOST", "pg.internal")

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, 4100, cfg.Port)
	assert.Contains(t, cfg.DatabaseDSN(), "host=pg.internal")
	assert.Contains(t, cfg.DatabaseDSN(), "dbname=fern_test")
}

func TestLoad_RejectsIncompleteAuth(t *testing.T) {
	t.Setenv("AUTH_ENABLED", "true")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
