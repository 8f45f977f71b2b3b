package driver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sokrates1989/backup-restore/internal/backuperr"
	"github.com/Sokrates1989/backup-restore/internal/model"
)

// MySQLDriver wraps the mysql and mysqldump CLIs. The password travels
// through MYSQL_PWD so it never appears in the process list.
type MySQLDriver struct {
	logger zerolog.Logger
}

func NewMySQLDriver(logger zerolog.Logger) *MySQLDriver {
	return &MySQLDriver{logger: logger.With().Str("component", "mysql-driver").Logger()}
}

func (d *MySQLDriver) Engine() string { return model.EngineMySQL }

func (d *MySQLDriver) baseArgs(target *model.Target) []string {
	port := target.Port
	if port == 0 {
		port = 3306
	}
	return []string{
		"-h", target.Host,
		"-P", strconv.Itoa(port),
		"-u", target.Username,
		"--protocol=TCP",
	}
}

// classifyMySQLStderr maps mysql CLI stderr to auth, not-found, or network.
func classifyMySQLStderr(ctx context.Context, tool, stderr string, err error) error {
	if ctx.Err() != nil {
		return classifyExecError(ctx, backuperr.KindConnection, tool, stderr, err)
	}
	switch {
	case strings.Contains(stderr, "Access denied"):
		return backuperr.Wrap(backuperr.KindConnection, "auth: mysql rejected credentials", err)
	case strings.Contains(stderr, "Unknown database"):
		return backuperr.Wrap(backuperr.KindConnection, "not-found: database does not exist", err)
	case strings.Contains(stderr, "Can't connect"), strings.Contains(stderr, "Unknown MySQL server host"):
		return backuperr.Wrap(backuperr.KindConnection, "network: mysql unreachable", err)
	}
	return classifyExecError(ctx, backuperr.KindConnection, tool, stderr, err)
}

func (d *MySQLDriver) TestConnection(ctx context.Context, target *model.Target, secret string) error {
	if err := requireTool("mysql"); err != nil {
		return err
	}

	args := append(d.baseArgs(target), "-e", "SELECT 1", target.Database)
	cmd := exec.CommandContext(ctx, "mysql", args...)
	cmd.Env = append(cmd.Environ(), "MYSQL_PWD="+secret)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return classifyMySQLStderr(ctx, "mysql", stderr.String(), err)
	}
	return nil
}

func (d *MySQLDriver) CreateBackup(ctx context.Context, target *model.Target, secret string, sink io.Writer, opts Options) (*ArtifactDescriptor, error) {
	if err := requireTool("mysqldump"); err != nil {
		return nil, err
	}

	cw, out, closeSink := wrapSink(sink, opts.Compress)

	args := append(d.baseArgs(target),
		"--single-transaction", "--routines", "--triggers", target.Database)
	cmd := exec.CommandContext(ctx, "mysqldump", args...)
	cmd.Env = append(cmd.Environ(), "MYSQL_PWD="+secret)
	cmd.Stdout = out
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	d.logger.Debug().Str("database", target.Database).Msg("executing mysqldump")
	if err := cmd.Run(); err != nil {
		closeSink()
		return nil, classifyExecError(ctx, backuperr.KindBackup, "mysqldump", stderr.String(), err)
	}
	if err := closeSink(); err != nil {
		return nil, backuperr.Wrap(backuperr.KindBackup, "finalize compressed artifact", err)
	}

	return &ArtifactDescriptor{
		SizeBytes:  cw.n,
		Compressed: opts.Compress,
		Engine:     model.EngineMySQL,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

func (d *MySQLDriver) RestoreBackup(ctx context.Context, target *model.Target, secret string, source io.Reader, opts RestoreOptions) error {
	if err := requireTool("mysql"); err != nil {
		return err
	}

	if opts.DropExisting {
		drop := fmt.Sprintf("DROP DATABASE IF EXISTS `%s`; CREATE DATABASE `%s`;",
			target.Database, target.Database)
		if err := d.exec(ctx, target, secret, "", drop, nil); err != nil {
			return err
		}
	}

	plain, err := maybeGunzip(source)
	if err != nil {
		return backuperr.Wrap(backuperr.KindRestore, "read artifact", err)
	}
	return d.exec(ctx, target, secret, target.Database, "", plain)
}

// exec runs the mysql CLI with either a literal statement or a SQL stream.
func (d *MySQLDriver) exec(ctx context.Context, target *model.Target, secret, database, statement string, stdin io.Reader) error {
	args := d.baseArgs(target)
	if statement != "" {
		args = append(args, "-e", statement)
	}
	if database != "" {
		args = append(args, database)
	}
	cmd := exec.CommandContext(ctx, "mysql", args...)
	cmd.Env = append(cmd.Environ(), "MYSQL_PWD="+secret)
	cmd.Stdin = stdin
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	d.logger.Debug().Str("database", target.Database).Msg("executing mysql")
	if err := cmd.Run(); err != nil {
		return classifyExecError(ctx, backuperr.KindRestore, "mysql", stderr.String(), err)
	}
	return nil
}

func (d *MySQLDriver) Stats(ctx context.Context, target *model.Target, secret string) (Stats, error) {
	if err := requireTool("mysql"); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`SELECT COUNT(*), COALESCE(SUM(table_rows), 0) FROM information_schema.tables WHERE table_schema = '%s'`,
		target.Database)
	args := append(d.baseArgs(target), "-N", "-B", "-e", query)
	cmd := exec.CommandContext(ctx, "mysql", args...)
	cmd.Env = append(cmd.Environ(), "MYSQL_PWD="+secret)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, classifyMySQLStderr(ctx, "mysql", stderr.String(), err)
	}

	fields := strings.Fields(strings.TrimSpace(stdout.String()))
	stats := Stats{}
	if len(fields) == 2 {
		if tables, err := strconv.ParseInt(fields[0], 10, 64); err == nil {
			stats["tables"] = tables
		}
		if rows, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
			stats["rows"] = rows
		}
	}
	return stats, nil
}
