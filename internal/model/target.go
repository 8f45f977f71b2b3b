package model

import "time"

// Engine kinds form a closed set. An unrecognized engine is a configuration
// error, never a fallthrough to a default behavior.
const (
	EnginePostgres = "relational-postgres"
	EngineMySQL    = "relational-mysql"
	EngineSQLite   = "file-sqlite"
	EngineNeo4j    = "graph-neo4j"
)

// EngineKinds lists all supported engine kinds.
var EngineKinds = []string{EnginePostgres, EngineMySQL, EngineSQLite, EngineNeo4j}

// ValidEngine reports whether kind is a supported engine kind.
func ValidEngine(kind string) bool {
	for _, k := range EngineKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Target is a configured database to back up or restore. Engine is immutable
// after creation; changing it would invalidate the semantics of prior
// artifacts.
type Target struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Engine    string    `json:"engine"`
	Host      string    `json:"host,omitempty"`
	Port      int       `json:"port,omitempty"`
	Database  string    `json:"database"`
	Username  string    `json:"username,omitempty"`
	SecretRef string    `json:"secret_ref,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
