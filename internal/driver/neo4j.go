package driver

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog"

	"github.com/Sokrates1989/backup-restore/internal/backuperr"
	"github.com/Sokrates1989/backup-restore/internal/model"
)

// exportIDProp temporarily tags exported nodes so relationships can be
// re-linked on restore. It is removed as the final replay statement.
const exportIDProp = "__backup_export_id"

// Neo4jDriver exports a graph as replayable Cypher statements and restores
// by replaying them against an emptied graph. The default export walks nodes
// and relationships through the driver; UseBulkExport delegates to the APOC
// server-side extension instead.
type Neo4jDriver struct {
	logger zerolog.Logger
}

func NewNeo4jDriver(logger zerolog.Logger) *Neo4jDriver {
	return &Neo4jDriver{logger: logger.With().Str("component", "neo4j-driver").Logger()}
}

func (d *Neo4jDriver) Engine() string { return model.EngineNeo4j }

func neo4jURI(target *model.Target) string {
	port := target.Port
	if port == 0 {
		port = 7687
	}
	return fmt.Sprintf("neo4j://%s:%d", target.Host, port)
}

func (d *Neo4jDriver) connect(ctx context.Context, target *model.Target, secret string) (neo4j.DriverWithContext, error) {
	drv, err := neo4j.NewDriverWithContext(neo4jURI(target), neo4j.BasicAuth(target.Username, secret, ""))
	if err != nil {
		return nil, backuperr.Wrap(backuperr.KindConnection, "network: create neo4j driver", err)
	}
	if err := drv.VerifyConnectivity(ctx); err != nil {
		drv.Close(ctx)
		return nil, classifyNeo4jError(ctx, err)
	}
	return drv, nil
}

func classifyNeo4jError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return backuperr.Wrap(backuperr.KindTimeout, "neo4j operation timed out", err)
		}
		return backuperr.Wrap(backuperr.KindCancelled, "neo4j operation cancelled", err)
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Unauthorized"), strings.Contains(msg, "AuthenticationRateLimit"):
		return backuperr.Wrap(backuperr.KindConnection, "auth: neo4j rejected credentials", err)
	case strings.Contains(msg, "DatabaseNotFound"):
		return backuperr.Wrap(backuperr.KindConnection, "not-found: database does not exist", err)
	}
	return backuperr.Wrap(backuperr.KindConnection, "network: neo4j unreachable", err)
}

func (d *Neo4jDriver) session(drv neo4j.DriverWithContext, ctx context.Context, target *model.Target) neo4j.SessionWithContext {
	cfg := neo4j.SessionConfig{}
	if target.Database != "" {
		cfg.DatabaseName = target.Database
	}
	return drv.NewSession(ctx, cfg)
}

func (d *Neo4jDriver) TestConnection(ctx context.Context, target *model.Target, secret string) error {
	drv, err := d.connect(ctx, target, secret)
	if err != nil {
		return err
	}
	defer drv.Close(ctx)

	session := d.session(drv, ctx, target)
	defer session.Close(ctx)

	if _, err := session.Run(ctx, "RETURN 1", nil); err != nil {
		return classifyNeo4jError(ctx, err)
	}
	return nil
}

func (d *Neo4jDriver) CreateBackup(ctx context.Context, target *model.Target, secret string, sink io.Writer, opts Options) (*ArtifactDescriptor, error) {
	drv, err := d.connect(ctx, target, secret)
	if err != nil {
		return nil, err
	}
	defer drv.Close(ctx)

	session := d.session(drv, ctx, target)
	defer session.Close(ctx)

	cw, out, closeSink := wrapSink(sink, opts.Compress)

	if opts.UseBulkExport {
		err = d.exportWithAPOC(ctx, session, out)
	} else {
		err = d.exportWithQueries(ctx, session, out)
	}
	if err != nil {
		closeSink()
		return nil, err
	}
	if err := closeSink(); err != nil {
		return nil, backuperr.Wrap(backuperr.KindBackup, "finalize compressed artifact", err)
	}

	return &ArtifactDescriptor{
		SizeBytes:  cw.n,
		Compressed: opts.Compress,
		Engine:     model.EngineNeo4j,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// exportWithQueries streams every node and relationship as Cypher CREATE
// statements, one per line. Nodes carry a temporary export id so the
// relationship statements can find their endpoints.
func (d *Neo4jDriver) exportWithQueries(ctx context.Context, session neo4j.SessionWithContext, out io.Writer) error {
	nodeIDs := make(map[string]int64)

	result, err := session.Run(ctx, "MATCH (n) RETURN n", nil)
	if err != nil {
		return backuperr.Wrap(backuperr.KindBackup, "export nodes", err)
	}
	var exportID int64
	for result.Next(ctx) {
		node, ok := result.Record().Values[0].(neo4j.Node)
		if !ok {
			continue
		}
		nodeIDs[node.GetElementId()] = exportID

		props := make(map[string]any, len(node.Props)+1)
		for k, v := range node.Props {
			props[k] = v
		}
		props[exportIDProp] = exportID
		exportID++

		stmt := fmt.Sprintf("CREATE (%s %s);\n", cypherLabels(node.Labels), cypherProps(props))
		if _, err := io.WriteString(out, stmt); err != nil {
			return backuperr.Wrap(backuperr.KindBackup, "write node statement", err)
		}
	}
	if err := result.Err(); err != nil {
		return classifyNeo4jError(ctx, err)
	}

	result, err = session.Run(ctx, "MATCH (a)-[r]->(b) RETURN a, r, b", nil)
	if err != nil {
		return backuperr.Wrap(backuperr.KindBackup, "export relationships", err)
	}
	for result.Next(ctx) {
		values := result.Record().Values
		start, okA := values[0].(neo4j.Node)
		rel, okR := values[1].(neo4j.Relationship)
		end, okB := values[2].(neo4j.Node)
		if !okA || !okR || !okB {
			continue
		}
		startID, okA := nodeIDs[start.GetElementId()]
		endID, okB := nodeIDs[end.GetElementId()]
		if !okA || !okB {
			continue
		}

		stmt := fmt.Sprintf(
			"MATCH (a {`%s`: %d}), (b {`%s`: %d}) CREATE (a)-[:`%s` %s]->(b);\n",
			exportIDProp, startID, exportIDProp, endID, rel.Type, cypherProps(rel.Props))
		if _, err := io.WriteString(out, stmt); err != nil {
			return backuperr.Wrap(backuperr.KindBackup, "write relationship statement", err)
		}
	}
	if err := result.Err(); err != nil {
		return classifyNeo4jError(ctx, err)
	}

	cleanup := fmt.Sprintf("MATCH (n) REMOVE n.`%s`;\n", exportIDProp)
	if _, err := io.WriteString(out, cleanup); err != nil {
		return backuperr.Wrap(backuperr.KindBackup, "write cleanup statement", err)
	}
	return nil
}

// exportWithAPOC uses the server-side APOC extension. Missing APOC surfaces
// as a distinguishable tool-unavailable error.
func (d *Neo4jDriver) exportWithAPOC(ctx context.Context, session neo4j.SessionWithContext, out io.Writer) error {
	result, err := session.Run(ctx,
		"CALL apoc.export.cypher.all(null, {stream: true, format: 'plain'}) YIELD cypherStatements RETURN cypherStatements", nil)
	if err != nil {
		if strings.Contains(err.Error(), "no procedure") {
			return backuperr.Wrap(backuperr.KindToolUnavailable, "APOC export procedures are not installed", err)
		}
		return backuperr.Wrap(backuperr.KindBackup, "apoc export", err)
	}
	for result.Next(ctx) {
		statements, ok := result.Record().Values[0].(string)
		if !ok {
			continue
		}
		if _, err := io.WriteString(out, statements); err != nil {
			return backuperr.Wrap(backuperr.KindBackup, "write apoc statements", err)
		}
	}
	if err := result.Err(); err != nil {
		return classifyNeo4jError(ctx, err)
	}
	return nil
}

// RestoreBackup empties the graph and replays the exported statements.
func (d *Neo4jDriver) RestoreBackup(ctx context.Context, target *model.Target, secret string, source io.Reader, opts RestoreOptions) error {
	drv, err := d.connect(ctx, target, secret)
	if err != nil {
		return err
	}
	defer drv.Close(ctx)

	session := d.session(drv, ctx, target)
	defer session.Close(ctx)

	if opts.DropExisting {
		if _, err := session.Run(ctx, "MATCH (n) DETACH DELETE n", nil); err != nil {
			return backuperr.Wrap(backuperr.KindRestore, "empty graph", err)
		}
	}

	plain, err := maybeGunzip(source)
	if err != nil {
		return backuperr.Wrap(backuperr.KindRestore, "read artifact", err)
	}
	data, err := io.ReadAll(plain)
	if err != nil {
		return backuperr.Wrap(backuperr.KindRestore, "read artifact", err)
	}

	for _, stmt := range strings.Split(string(data), ";\n") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return classifyNeo4jError(ctx, err)
		}
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return backuperr.Wrap(backuperr.KindRestore, "replay statement", err)
		}
	}
	return nil
}

func (d *Neo4jDriver) Stats(ctx context.Context, target *model.Target, secret string) (Stats, error) {
	drv, err := d.connect(ctx, target, secret)
	if err != nil {
		return nil, err
	}
	defer drv.Close(ctx)

	session := d.session(drv, ctx, target)
	defer session.Close(ctx)

	stats := Stats{}
	counts := map[string]string{
		"nodes":         "MATCH (n) RETURN count(n)",
		"relationships": "MATCH ()-[r]->() RETURN count(r)",
	}
	for name, query := range counts {
		result, err := session.Run(ctx, query, nil)
		if err != nil {
			return nil, classifyNeo4jError(ctx, err)
		}
		record, err := result.Single(ctx)
		if err != nil {
			return nil, classifyNeo4jError(ctx, err)
		}
		if count, ok := record.Values[0].(int64); ok {
			stats[name] = count
		}
	}
	return stats, nil
}

// cypherLabels renders node labels, e.g. `:Person:Employee`.
func cypherLabels(labels []string) string {
	var b strings.Builder
	for _, l := range labels {
		b.WriteString(":`")
		b.WriteString(l)
		b.WriteString("`")
	}
	return b.String()
}

// cypherProps renders a property map as a Cypher literal with deterministic
// key order.
func cypherProps(props map[string]any) string {
	if len(props) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "`%s`: %s", k, cypherLiteral(props[k]))
	}
	b.WriteString("}")
	return b.String()
}

// cypherLiteral renders a property value. Strings are escaped so generated
// statements never contain a raw newline; the restore path splits on ";\n".
func cypherLiteral(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int64:
		return fmt.Sprintf("%d", val)
	case float64:
		return fmt.Sprintf("%g", val)
	case string:
		escaped := strings.NewReplacer(
			"\\", "\\\\",
			"'", "\\'",
			"\n", "\\n",
			"\r", "\\r",
		).Replace(val)
		return "'" + escaped + "'"
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = cypherLiteral(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case time.Time:
		return fmt.Sprintf("datetime('%s')", val.Format(time.RFC3339))
	default:
		return cypherLiteral(fmt.Sprintf("%v", val))
	}
}
