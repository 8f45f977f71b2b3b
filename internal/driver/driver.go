// Package driver defines the per-engine backup driver contract and the
// registry that selects an implementation by engine kind.
package driver

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Sokrates1989/backup-restore/internal/backuperr"
	"github.com/Sokrates1989/backup-restore/internal/model"
)

// Options controls backup creation.
type Options struct {
	// Compress gzips the artifact stream.
	Compress bool
	// UseBulkExport selects a database-side bulk-export extension where the
	// engine supports one (Neo4j APOC). The default driver-level export has
	// no external dependency.
	UseBulkExport bool
}

// RestoreOptions controls restore behavior.
type RestoreOptions struct {
	// DropExisting clears existing objects before applying the artifact.
	// Clean restore is the only supported mode for relational engines.
	DropExisting bool
}

// ArtifactDescriptor describes a produced backup artifact.
type ArtifactDescriptor struct {
	Filename   string    `json:"filename"`
	SizeBytes  int64     `json:"size_bytes"`
	Compressed bool      `json:"compressed"`
	Engine     string    `json:"engine"`
	CreatedAt  time.Time `json:"created_at"`
}

// Stats holds backend-specific counters. An engine that supports none
// returns an empty map; absence of support is not an error.
type Stats map[string]int64

// Driver is the per-engine backup contract. Implementations wrap an external
// tool or client library and never retain connections between calls.
type Driver interface {
	// Engine returns the engine kind this driver serves.
	Engine() string

	// TestConnection attempts a lightweight round-trip. It never mutates
	// data and classifies failures as auth, network, or not-found.
	TestConnection(ctx context.Context, target *model.Target, secret string) error

	// CreateBackup produces the artifact, streaming into sink. It returns
	// the artifact size; the caller owns naming and placement.
	CreateBackup(ctx context.Context, target *model.Target, secret string, sink io.Writer, opts Options) (*ArtifactDescriptor, error)

	// RestoreBackup consumes the artifact stream and applies it.
	RestoreBackup(ctx context.Context, target *model.Target, secret string, source io.Reader, opts RestoreOptions) error

	// Stats returns backend-specific counters for observability.
	Stats(ctx context.Context, target *model.Target, secret string) (Stats, error)
}

// Registry maps engine kinds to drivers. The set is closed; an unrecognized
// engine is a configuration error, never a fallthrough.
type Registry struct {
	drivers map[string]Driver
}

func NewRegistry(drivers ...Driver) *Registry {
	r := &Registry{drivers: make(map[string]Driver, len(drivers))}
	for _, d := range drivers {
		r.drivers[d.Engine()] = d
	}
	return r
}

func (r *Registry) Get(engine string) (Driver, error) {
	d, ok := r.drivers[engine]
	if !ok {
		return nil, backuperr.Newf(backuperr.KindConfig, "no driver registered for engine %q", engine)
	}
	return d, nil
}

// Engines returns the registered engine kinds.
func (r *Registry) Engines() []string {
	engines := make([]string, 0, len(r.drivers))
	for k := range r.drivers {
		engines = append(engines, k)
	}
	return engines
}

const timestampLayout = "20060102_150405"

// SafetyPrefix marks artifacts produced by the safety-backup protocol.
const SafetyPrefix = "safety_"

func extFor(engine string) string {
	switch engine {
	case model.EngineSQLite:
		return "sqlite"
	case model.EngineNeo4j:
		return "cypher"
	default:
		return "sql"
	}
}

// ArtifactName builds the stable artifact filename
// backup_<enginekind>_<YYYYMMDD_HHMMSS>.<ext>[.gz].
func ArtifactName(engine string, at time.Time, compressed bool) string {
	name := fmt.Sprintf("backup_%s_%s.%s", engine, at.UTC().Format(timestampLayout), extFor(engine))
	if compressed {
		name += ".gz"
	}
	return name
}

// SafetyArtifactName builds the filename for a safety backup taken before a
// restore.
func SafetyArtifactName(engine string, at time.Time, compressed bool) string {
	return SafetyPrefix + ArtifactName(engine, at, compressed)
}
