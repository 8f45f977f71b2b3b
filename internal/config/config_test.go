package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("DATABASE_URL")
	os.Unsetenv("HTTP_LISTEN_ADDR")
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("SCHEDULER_INTERVAL")
	os.Unsetenv("OPERATION_TIMEOUT")
	os.Unsetenv("CONNECT_TIMEOUT")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8090", cfg.HTTPListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "/var/backups/backupd", cfg.LocalBackupDir)
	assert.Equal(t, time.Minute, cfg.SchedulerInterval)
	assert.Equal(t, 30*time.Minute, cfg.OperationTimeout)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
}

func TestLoad_AllEnvVars(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/backupd")
	t.Setenv("HTTP_LISTEN_ADDR", ":7070")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOCAL_BACKUP_DIR", "/tmp/backups")
	t.Setenv("SCHEDULER_INTERVAL", "30s")
	t.Setenv("OPERATION_TIMEOUT", "1h")
	t.Setenv("CONNECT_TIMEOUT", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost:5432/backupd", cfg.DatabaseURL)
	assert.Equal(t, ":7070", cfg.HTTPListenAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/backups", cfg.LocalBackupDir)
	assert.Equal(t, 30*time.Second, cfg.SchedulerInterval)
	assert.Equal(t, time.Hour, cfg.OperationTimeout)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("SCHEDULER_INTERVAL", "often")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCHEDULER_INTERVAL")
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		DatabaseURL:       "postgres://localhost/backupd",
		LocalBackupDir:    "/var/backups/backupd",
		SchedulerInterval: time.Minute,
	}
	require.NoError(t, cfg.Validate())

	cfg.DatabaseURL = ""
	require.Error(t, cfg.Validate())

	cfg.DatabaseURL = "postgres://localhost/backupd"
	cfg.LocalBackupDir = ""
	require.Error(t, cfg.Validate())

	cfg.LocalBackupDir = "/var/backups/backupd"
	cfg.SchedulerInterval = time.Millisecond
	require.Error(t, cfg.Validate())
}
