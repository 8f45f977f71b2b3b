package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/Sokrates1989/backup-restore/internal/backuperr"
	"github.com/Sokrates1989/backup-restore/internal/model"
)

// PostgresDriver backs up Postgres targets through pg_dump and restores them
// through psql. Connectivity checks and stats use a direct pgx connection.
type PostgresDriver struct {
	logger zerolog.Logger
}

func NewPostgresDriver(logger zerolog.Logger) *PostgresDriver {
	return &PostgresDriver{logger: logger.With().Str("component", "postgres-driver").Logger()}
}

func (d *PostgresDriver) Engine() string { return model.EnginePostgres }

func pgConnString(target *model.Target, secret string) string {
	port := target.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", target.Username, secret, target.Host, port, target.Database)
}

func (d *PostgresDriver) connect(ctx context.Context, target *model.Target, secret string) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, pgConnString(target, secret))
	if err != nil {
		return nil, classifyPgError(ctx, err)
	}
	return conn, nil
}

// classifyPgError maps a pgx connect/query failure to auth, not-found, or
// network.
func classifyPgError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return backuperr.Wrap(backuperr.KindTimeout, "postgres connection timed out", err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "28P01", "28000":
			return backuperr.Wrap(backuperr.KindConnection, "auth: postgres rejected credentials", err)
		case "3D000":
			return backuperr.Wrap(backuperr.KindConnection, "not-found: database does not exist", err)
		}
	}
	return backuperr.Wrap(backuperr.KindConnection, "network: postgres unreachable", err)
}

func (d *PostgresDriver) TestConnection(ctx context.Context, target *model.Target, secret string) error {
	if err := requireTool("pg_dump"); err != nil {
		return err
	}
	conn, err := d.connect(ctx, target, secret)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	var one int
	if err := conn.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return classifyPgError(ctx, err)
	}
	return nil
}

func (d *PostgresDriver) pgArgs(target *model.Target) []string {
	port := target.Port
	if port == 0 {
		port = 5432
	}
	return []string{
		"--no-password",
		"-h", target.Host,
		"-p", strconv.Itoa(port),
		"-U", target.Username,
	}
}

func (d *PostgresDriver) CreateBackup(ctx context.Context, target *model.Target, secret string, sink io.Writer, opts Options) (*ArtifactDescriptor, error) {
	if err := requireTool("pg_dump"); err != nil {
		return nil, err
	}

	cw, out, closeSink := wrapSink(sink, opts.Compress)

	args := append(d.pgArgs(target), "--clean", "--if-exists", target.Database)
	cmd := exec.CommandContext(ctx, "pg_dump", args...)
	cmd.Env = append(cmd.Environ(), "PGPASSWORD="+secret)
	cmd.Stdout = out
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	d.logger.Debug().Str("database", target.Database).Msg("executing pg_dump")
	if err := cmd.Run(); err != nil {
		closeSink()
		return nil, classifyExecError(ctx, backuperr.KindBackup, "pg_dump", stderr.String(), err)
	}
	if err := closeSink(); err != nil {
		return nil, backuperr.Wrap(backuperr.KindBackup, "finalize compressed artifact", err)
	}

	return &ArtifactDescriptor{
		SizeBytes:  cw.n,
		Compressed: opts.Compress,
		Engine:     model.EnginePostgres,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

func (d *PostgresDriver) RestoreBackup(ctx context.Context, target *model.Target, secret string, source io.Reader, opts RestoreOptions) error {
	if err := requireTool("psql"); err != nil {
		return err
	}

	if opts.DropExisting {
		if err := d.runPSQL(ctx, target, secret,
			"DROP SCHEMA public CASCADE; CREATE SCHEMA public;", nil); err != nil {
			return err
		}
	}

	plain, err := maybeGunzip(source)
	if err != nil {
		return backuperr.Wrap(backuperr.KindRestore, "read artifact", err)
	}
	return d.runPSQL(ctx, target, secret, "", plain)
}

// runPSQL executes either a literal command or a SQL stream on stdin.
func (d *PostgresDriver) runPSQL(ctx context.Context, target *model.Target, secret, command string, stdin io.Reader) error {
	args := append(d.pgArgs(target), "-v", "ON_ERROR_STOP=1", "-d", target.Database)
	if command != "" {
		args = append(args, "-c", command)
	}
	cmd := exec.CommandContext(ctx, "psql", args...)
	cmd.Env = append(cmd.Environ(), "PGPASSWORD="+secret)
	cmd.Stdin = stdin
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	d.logger.Debug().Str("database", target.Database).Msg("executing psql")
	if err := cmd.Run(); err != nil {
		return classifyExecError(ctx, backuperr.KindRestore, "psql", stderr.String(), err)
	}
	return nil
}

func (d *PostgresDriver) Stats(ctx context.Context, target *model.Target, secret string) (Stats, error) {
	conn, err := d.connect(ctx, target, secret)
	if err != nil {
		return nil, err
	}
	defer conn.Close(ctx)

	stats := Stats{}
	var tables, rows int64
	err = conn.QueryRow(ctx,
		`SELECT count(*), COALESCE(sum(n_live_tup), 0) FROM pg_stat_user_tables`,
	).Scan(&tables, &rows)
	if err != nil {
		return nil, classifyPgError(ctx, err)
	}
	stats["tables"] = tables
	stats["rows"] = rows
	return stats, nil
}
