package querygen

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ucsync/ucsync/internal/catalog"
	"github.com/ucsync/ucsync/internal/diff"
)

// CloneType is the table clone mode.
type CloneType string

const (
	Shallow CloneType = "SHALLOW"
	Deep    CloneType = "DEEP"
)

// ReplaceStrategy is how a stale table is re-cloned.
type ReplaceStrategy string

const (
	// CreateOrReplace emits a single CREATE OR REPLACE TABLE ... CLONE.
	CreateOrReplace ReplaceStrategy = "create_or_replace"
	// DropCreate emits DROP TABLE followed by CREATE TABLE ... CLONE on one line.
	DropCreate ReplaceStrategy = "drop_create"
)

// Options holds the statement generation policy.
type Options struct {
	// DeepCloneNonManaged deep-clones tables that are not MANAGED DELTA
	// instead of skipping them.
	DeepCloneNonManaged bool
	ReplaceStrategy     ReplaceStrategy

	// Used by the policy-only walk; the plan walk gets these from the differ.
	Staleness             time.Duration
	CreateSchemaIfMissing bool
	Incomplete            func(targetCatalog, schema string) bool
}

// Generator renders SQL statements.
type Generator struct {
	Options Options
	Logger  *slog.Logger
}

// New creates a Generator.
func New(opts Options, logger *slog.Logger) *Generator {
	if opts.ReplaceStrategy == "" {
		opts.ReplaceStrategy = CreateOrReplace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{Options: opts, Logger: logger}
}

// CloneType picks the clone mode for a source table. ok is false when the
// table cannot be cloned under the current options.
func (g *Generator) CloneType(t *catalog.Table) (CloneType, bool) {
	if t.IsManagedDelta() {
		return Shallow, true
	}
	if g.Options.DeepCloneNonManaged {
		return Deep, true
	}
	format := t.DataSourceFormat
	if format == "" {
		format = "N/A"
	}
	g.Logger.Warn("only MANAGED DELTA tables support SHALLOW CLONE, skipping",
		"table", t.Path(), "type", t.TableType, "format", format)
	return "", false
}

// Walk flattens the plan breadth-first: a node always precedes its children.
func Walk(root *diff.Node) []*diff.Node {
	if root == nil {
		return nil
	}
	var out []*diff.Node
	queue := []*diff.Node{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		out = append(out, n)
		queue = append(queue, n.Children...)
	}
	return out
}

// Render returns one line per plan node that produces statements. Creates
// at any level come before statements on objects inside them.
func (g *Generator) Render(root *diff.Node) []string {
	var lines []string
	for _, n := range Walk(root) {
		lines = appendLine(lines, g.Statements(n.Op))
	}
	return lines
}

// Statements returns the SQL for a single operation. Groups and skipped
// clones return nil.
func (g *Generator) Statements(op diff.Operation) []string {
	switch o := op.(type) {
	case diff.Group:
		return nil
	case diff.CreateCatalog:
		return []string{fmt.Sprintf("CREATE CATALOG %s;", o.Name)}
	case diff.CreateSchema:
		return []string{fmt.Sprintf("CREATE SCHEMA %s.%s;", o.Catalog, o.Name)}
	case diff.DropCatalog:
		return []string{fmt.Sprintf("DROP CATALOG %s CASCADE;", o.Name)}
	case diff.DropSchema:
		return []string{fmt.Sprintf("DROP SCHEMA %s.%s CASCADE;", o.Catalog, o.Name)}
	case diff.DropTable:
		return []string{fmt.Sprintf("DROP TABLE %s.%s.%s;", o.Catalog, o.Schema, o.Name)}
	case diff.CloneTable:
		return g.cloneStatements(o.Source, o.TargetPath, o.Target != nil)
	default:
		panic(fmt.Sprintf("querygen: unknown operation %T", op))
	}
}

func (g *Generator) cloneStatements(source *catalog.Table, targetPath string, replace bool) []string {
	ct, ok := g.CloneType(source)
	if !ok {
		return nil
	}
	if !replace {
		return []string{fmt.Sprintf("CREATE TABLE %s %s CLONE %s;", targetPath, ct, source.Path())}
	}
	if g.Options.ReplaceStrategy == DropCreate {
		return []string{
			fmt.Sprintf("DROP TABLE %s;", targetPath),
			fmt.Sprintf("CREATE TABLE %s %s CLONE %s;", targetPath, ct, source.Path()),
		}
	}
	return []string{fmt.Sprintf("CREATE OR REPLACE TABLE %s %s CLONE %s;", targetPath, ct, source.Path())}
}
