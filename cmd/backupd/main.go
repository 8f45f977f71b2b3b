package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Sokrates1989/backup-restore/internal/api"
	"github.com/Sokrates1989/backup-restore/internal/config"
	"github.com/Sokrates1989/backup-restore/internal/core"
	"github.com/Sokrates1989/backup-restore/internal/db"
	"github.com/Sokrates1989/backup-restore/internal/driver"
	"github.com/Sokrates1989/backup-restore/internal/logging"
	"github.com/Sokrates1989/backup-restore/internal/metrics"
	"github.com/Sokrates1989/backup-restore/internal/orchestrator"
	"github.com/Sokrates1989/backup-restore/internal/scheduler"
	"github.com/Sokrates1989/backup-restore/internal/secret"
)

func main() {
	if len(os.Args) >= 2 && os.Args[1] == "create-api-key" {
		createAPIKey(os.Args[2:])
		return
	}

	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	migrateDirFlag := flag.String("migrate-dir", "migrations", "Migration files directory")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	if *migrateFlag {
		logger.Info().Str("dir", *migrateDirFlag).Msg("running database migrations")
		if err := db.RunMigrations(cfg.DatabaseURL, *migrateDirFlag); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
	}

	if err := os.MkdirAll(cfg.LocalBackupDir, 0o750); err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.LocalBackupDir).Msg("failed to create local backup directory")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to state database")
	}
	defer pool.Close()
	metrics.RegisterPgxPoolMetrics(pool)

	services := core.NewServices(pool)
	secrets := secret.NewResolver()

	registry := driver.NewRegistry(
		driver.NewPostgresDriver(logger),
		driver.NewMySQLDriver(logger),
		driver.NewSQLiteDriver(logger),
		driver.NewNeo4jDriver(logger),
	)

	orch := orchestrator.New(services.Runs, services.Targets, services.Destinations,
		services.Audit, registry, secrets, logger, cfg.LocalBackupDir, cfg.OperationTimeout)

	if cfg.SeedFile != "" {
		if err := applySeed(ctx, cfg.SeedFile, services, logger); err != nil {
			logger.Fatal().Err(err).Str("file", cfg.SeedFile).Msg("failed to apply seed file")
		}
	}

	sched := scheduler.New(services.Schedules, orch, logger, cfg.SchedulerInterval)

	srv := api.NewServer(logger, pool, orch, secrets, cfg)
	defer srv.Close()

	httpServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting API server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		// Run only returns the context error on shutdown.
		if err := sched.Run(gctx); err != nil && err != context.Canceled {
			return err
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-quit:
			logger.Info().Str("signal", sig.String()).Msg("shutting down")
		case <-gctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("daemon exited with error")
	}
}

func createAPIKey(args []string) {
	fs := flag.NewFlagSet("create-api-key", flag.ExitOnError)
	name := fs.String("name", "", "Name for the API key (required)")
	scopes := fs.String("scopes", "*:*", "Comma-separated scopes, e.g. targets:read,runs:create")
	fs.Parse(args)

	if *name == "" {
		fmt.Fprintln(os.Stderr, "error: --name is required")
		fmt.Fprintln(os.Stderr, "usage: backupd create-api-key --name <name> [--scopes <scopes>]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	svc := core.NewAPIKeyService(pool)
	key, rawKey, err := svc.Create(ctx, *name, splitScopes(*scopes))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to create API key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("API key created successfully.\n\n")
	fmt.Printf("  Name:   %s\n", key.Name)
	fmt.Printf("  ID:     %s\n", key.ID)
	fmt.Printf("  Scopes: %s\n", strings.Join(key.Scopes, ", "))
	fmt.Printf("  Key:    %s\n\n", rawKey)
	fmt.Printf("Save this key - it will not be shown again.\n")
}

func splitScopes(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
