package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL    string
	HTTPListenAddr string
	LogLevel       string
	ServiceName    string

	// LocalBackupDir is the root of the implicit local destination. Safety
	// backups always land here.
	LocalBackupDir string

	// SeedFile optionally declares bootstrap targets and destinations,
	// applied idempotently at startup.
	SeedFile string

	// SchedulerInterval is the tick interval for schedule evaluation.
	SchedulerInterval time.Duration

	// OperationTimeout bounds driver backup/restore calls; ConnectTimeout
	// bounds test-connection round-trips.
	OperationTimeout time.Duration
	ConnectTimeout   time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		HTTPListenAddr:    getEnv("HTTP_LISTEN_ADDR", ":8090"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		ServiceName:       getEnv("SERVICE_NAME", "backupd"),
		LocalBackupDir:    getEnv("LOCAL_BACKUP_DIR", "/var/backups/backupd"),
		SeedFile:          getEnv("SEED_FILE", ""),
		SchedulerInterval: time.Minute,
		OperationTimeout:  30 * time.Minute,
		ConnectTimeout:    10 * time.Second,
	}

	var err error
	if cfg.SchedulerInterval, err = getDuration("SCHEDULER_INTERVAL", cfg.SchedulerInterval); err != nil {
		return nil, err
	}
	if cfg.OperationTimeout, err = getDuration("OPERATION_TIMEOUT", cfg.OperationTimeout); err != nil {
		return nil, err
	}
	if cfg.ConnectTimeout, err = getDuration("CONNECT_TIMEOUT", cfg.ConnectTimeout); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the fields required to run the daemon.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.LocalBackupDir == "" {
		return fmt.Errorf("LOCAL_BACKUP_DIR is required")
	}
	if c.SchedulerInterval < time.Second {
		return fmt.Errorf("SCHEDULER_INTERVAL must be at least 1s")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	// Accept plain seconds for convenience.
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
