package querygen

import (
	"strings"

	"github.com/ucsync/ucsync/internal/catalog"
)

// GeneratePolicyQueries walks every table of source and emits the statements
// needed to bring the same table in target up to date. Unlike the plan walk
// it never drops anything.
func (g *Generator) GeneratePolicyQueries(source, target *catalog.Catalog) []string {
	var (
		queries []string
		created = make(map[string]bool)
		skipped = make(map[string]bool)
	)
	for t := range source.Tables() {
		if skipped[t.SchemaName] {
			continue
		}
		if g.Options.Incomplete != nil && g.Options.Incomplete(target.Name, t.SchemaName) {
			skipped[t.SchemaName] = true
			g.Logger.Warn("table listing failed, leaving schema out of the plan", "schema", target.Name+"."+t.SchemaName)
			continue
		}
		if _, ok := g.CloneType(t); !ok {
			continue
		}
		targetPath := target.Name + "." + t.SchemaName + "." + t.Name

		schema, ok := target.Schemas[t.SchemaName]
		if !ok {
			if !g.Options.CreateSchemaIfMissing {
				g.Logger.Warn("schema does not exist, skipping", "schema", target.Name+"."+t.SchemaName)
				continue
			}
			if !created[t.SchemaName] {
				created[t.SchemaName] = true
				g.Logger.Info("schema does not exist, creating", "schema", target.Name+"."+t.SchemaName)
				queries = append(queries, "CREATE SCHEMA "+target.Name+"."+t.SchemaName+";")
			}
			queries = appendLine(queries, g.cloneStatements(t, targetPath, false))
			continue
		}

		existing, ok := schema.Tables[t.Name]
		if !ok {
			g.Logger.Info("table does not exist, creating", "table", targetPath)
			queries = appendLine(queries, g.cloneStatements(t, targetPath, false))
			continue
		}
		if t.UpdatedAt.Sub(existing.UpdatedAt) > g.Options.Staleness {
			g.Logger.Info("table is stale, recreating", "table", targetPath,
				"lag", t.UpdatedAt.Sub(existing.UpdatedAt))
			queries = appendLine(queries, g.cloneStatements(t, targetPath, true))
		}
	}
	return queries
}

func appendLine(lines, stmts []string) []string {
	if len(stmts) == 0 {
		return lines
	}
	return append(lines, strings.Join(stmts, " "))
}
