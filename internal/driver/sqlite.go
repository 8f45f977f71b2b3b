package driver

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/Sokrates1989/backup-restore/internal/backuperr"
	"github.com/Sokrates1989/backup-restore/internal/model"
)

// SQLiteDriver backs up file-based SQLite targets. The target's Database
// field holds the database file path. Backup is a streamed file copy;
// restore is an atomic file replace.
type SQLiteDriver struct {
	logger zerolog.Logger
}

func NewSQLiteDriver(logger zerolog.Logger) *SQLiteDriver {
	return &SQLiteDriver{logger: logger.With().Str("component", "sqlite-driver").Logger()}
}

func (d *SQLiteDriver) Engine() string { return model.EngineSQLite }

func (d *SQLiteDriver) open(target *model.Target) (*sql.DB, error) {
	db, err := sql.Open("sqlite", target.Database+"?mode=ro")
	if err != nil {
		return nil, backuperr.Wrap(backuperr.KindConnection, "open sqlite database", err)
	}
	return db, nil
}

func (d *SQLiteDriver) TestConnection(ctx context.Context, target *model.Target, _ string) error {
	info, err := os.Stat(target.Database)
	if os.IsNotExist(err) {
		return backuperr.Newf(backuperr.KindConnection, "not-found: database file %s does not exist", target.Database)
	}
	if err != nil {
		return backuperr.Wrap(backuperr.KindConnection, "auth: database file not accessible", err)
	}
	if info.IsDir() {
		return backuperr.Newf(backuperr.KindConnection, "not-found: %s is a directory", target.Database)
	}

	db, err := d.open(target)
	if err != nil {
		return err
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&result); err != nil {
		return backuperr.Wrap(backuperr.KindConnection, "network: sqlite integrity probe failed", err)
	}
	if result != "ok" {
		return backuperr.Newf(backuperr.KindConnection, "sqlite integrity check reported: %s", result)
	}
	return nil
}

func (d *SQLiteDriver) CreateBackup(ctx context.Context, target *model.Target, _ string, sink io.Writer, opts Options) (*ArtifactDescriptor, error) {
	f, err := os.Open(target.Database)
	if os.IsNotExist(err) {
		return nil, backuperr.Newf(backuperr.KindConnection, "not-found: database file %s does not exist", target.Database)
	}
	if err != nil {
		return nil, backuperr.Wrap(backuperr.KindBackup, "open database file", err)
	}
	defer f.Close()

	cw, out, closeSink := wrapSink(sink, opts.Compress)

	d.logger.Debug().Str("path", target.Database).Msg("copying sqlite database")
	if _, err := io.Copy(out, contextReader{ctx: ctx, r: f}); err != nil {
		closeSink()
		if ctx.Err() != nil {
			return nil, classifyExecError(ctx, backuperr.KindBackup, "sqlite copy", "", err)
		}
		return nil, backuperr.Wrap(backuperr.KindBackup, "copy database file", err)
	}
	if err := closeSink(); err != nil {
		return nil, backuperr.Wrap(backuperr.KindBackup, "finalize compressed artifact", err)
	}

	return &ArtifactDescriptor{
		SizeBytes:  cw.n,
		Compressed: opts.Compress,
		Engine:     model.EngineSQLite,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// RestoreBackup writes the artifact to a temporary file next to the target
// and renames it into place. The rename is atomic on POSIX filesystems, so
// an interrupted restore leaves the original file untouched.
func (d *SQLiteDriver) RestoreBackup(ctx context.Context, target *model.Target, _ string, source io.Reader, _ RestoreOptions) error {
	plain, err := maybeGunzip(source)
	if err != nil {
		return backuperr.Wrap(backuperr.KindRestore, "read artifact", err)
	}

	dir := filepath.Dir(target.Database)
	tmp, err := os.CreateTemp(dir, ".restore-*.sqlite")
	if err != nil {
		return backuperr.Wrap(backuperr.KindRestore, "create temporary file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, contextReader{ctx: ctx, r: plain}); err != nil {
		tmp.Close()
		if ctx.Err() != nil {
			return classifyExecError(ctx, backuperr.KindRestore, "sqlite restore", "", err)
		}
		return backuperr.Wrap(backuperr.KindRestore, "write temporary file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return backuperr.Wrap(backuperr.KindRestore, "sync temporary file", err)
	}
	if err := tmp.Close(); err != nil {
		return backuperr.Wrap(backuperr.KindRestore, "close temporary file", err)
	}

	d.logger.Debug().Str("path", target.Database).Msg("replacing sqlite database")
	if err := os.Rename(tmpName, target.Database); err != nil {
		return backuperr.Wrap(backuperr.KindRestore, "replace database file", err)
	}
	return nil
}

func (d *SQLiteDriver) Stats(ctx context.Context, target *model.Target, _ string) (Stats, error) {
	db, err := d.open(target)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return nil, backuperr.Wrap(backuperr.KindConnection, "list tables", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	stats := Stats{"tables": int64(len(tables))}
	var total int64
	for _, name := range tables {
		var count int64
		if err := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, name)).Scan(&count); err != nil {
			return nil, fmt.Errorf("count rows in %s: %w", name, err)
		}
		total += count
	}
	stats["rows"] = total
	return stats, nil
}

// contextReader aborts a copy when the context expires, so a cancelled run
// does not keep streaming unattended.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
