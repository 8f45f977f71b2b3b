package driver

import (
	"bytes"
	"compress/gzip"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sokrates1989/backup-restore/internal/backuperr"
	"github.com/Sokrates1989/backup-restore/internal/model"
)

func TestRegistry_Get(t *testing.T) {
	logger := zerolog.Nop()
	reg := NewRegistry(
		NewPostgresDriver(logger),
		NewMySQLDriver(logger),
		NewSQLiteDriver(logger),
		NewNeo4jDriver(logger),
	)

	for _, engine := range model.EngineKinds {
		d, err := reg.Get(engine)
		require.NoError(t, err)
		assert.Equal(t, engine, d.Engine())
	}
	assert.Len(t, reg.Engines(), 4)
}

func TestRegistry_Get_UnknownEngine(t *testing.T) {
	reg := NewRegistry(NewSQLiteDriver(zerolog.Nop()))

	_, err := reg.Get("relational-oracle")
	require.Error(t, err)
	assert.True(t, backuperr.Is(err, backuperr.KindConfig))
}

func TestArtifactName(t *testing.T) {
	at := time.Date(2026, 8, 23, 12, 30, 45, 0, time.UTC)

	assert.Equal(t, "backup_relational-postgres_20260823_123045.sql.gz",
		ArtifactName(model.EnginePostgres, at, true))
	assert.Equal(t, "backup_relational-mysql_20260823_123045.sql",
		ArtifactName(model.EngineMySQL, at, false))
	assert.Equal(t, "backup_file-sqlite_20260823_123045.sqlite.gz",
		ArtifactName(model.EngineSQLite, at, true))
	assert.Equal(t, "backup_graph-neo4j_20260823_123045.cypher",
		ArtifactName(model.EngineNeo4j, at, false))
}

func TestSafetyArtifactName(t *testing.T) {
	at := time.Date(2026, 8, 23, 1, 2, 3, 0, time.UTC)

	assert.Equal(t, "safety_backup_relational-postgres_20260823_010203.sql.gz",
		SafetyArtifactName(model.EnginePostgres, at, true))
}

func TestArtifactName_UTCNormalized(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	at := time.Date(2026, 8, 23, 14, 0, 0, 0, loc)

	assert.Equal(t, "backup_relational-mysql_20260823_120000.sql",
		ArtifactName(model.EngineMySQL, at, false))
}

func TestWrapSink_Plain(t *testing.T) {
	var buf bytes.Buffer
	cw, out, closeSink := wrapSink(&buf, false)

	_, err := io.WriteString(out, "hello")
	require.NoError(t, err)
	require.NoError(t, closeSink())

	assert.Equal(t, int64(5), cw.n)
	assert.Equal(t, "hello", buf.String())
}

func TestWrapSink_Compressed_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	cw, out, closeSink := wrapSink(&buf, true)

	_, err := io.WriteString(out, "SELECT 1;\n")
	require.NoError(t, err)
	require.NoError(t, closeSink())
	assert.Equal(t, int64(buf.Len()), cw.n)

	gz, err := gzip.NewReader(&buf)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1;\n", string(data))
}

func TestMaybeGunzip(t *testing.T) {
	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	_, err := io.WriteString(gz, "dump contents")
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	r, err := maybeGunzip(&compressed)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "dump contents", string(data))

	r, err = maybeGunzip(bytes.NewReader([]byte("plain dump")))
	require.NoError(t, err)
	data, err = io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "plain dump", string(data))
}

func TestCypherLiteral(t *testing.T) {
	assert.Equal(t, "null", cypherLiteral(nil))
	assert.Equal(t, "true", cypherLiteral(true))
	assert.Equal(t, "42", cypherLiteral(int64(42)))
	assert.Equal(t, "3.14", cypherLiteral(3.14))
	assert.Equal(t, "'hello'", cypherLiteral("hello"))
	assert.Equal(t, `'it\'s'`, cypherLiteral("it's"))
	assert.Equal(t, `'line\nbreak'`, cypherLiteral("line\nbreak"))
	assert.Equal(t, "[1, 'two']", cypherLiteral([]any{int64(1), "two"}))
}

func TestCypherProps_Deterministic(t *testing.T) {
	props := map[string]any{"b": int64(2), "a": "x", "c": true}
	assert.Equal(t, "{`a`: 'x', `b`: 2, `c`: true}", cypherProps(props))
	assert.Equal(t, "{}", cypherProps(nil))
}

func TestCypherLabels(t *testing.T) {
	assert.Equal(t, ":`Person`:`Employee`", cypherLabels([]string{"Person", "Employee"}))
	assert.Equal(t, "", cypherLabels(nil))
}
