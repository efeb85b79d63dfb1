package diff

import (
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/ucsync/ucsync/internal/catalog"
)

// Options controls what counts as a difference.
type Options struct {
	// Staleness is how far a target table may lag its source before it is
	// re-cloned. The comparison is strict: a lag equal to Staleness is in sync.
	Staleness time.Duration

	// CreateSchemaIfMissing allows creating schemas absent from an existing
	// target catalog. When false such schemas are skipped with a warning.
	CreateSchemaIfMissing bool

	// Incomplete, if set, reports schemas whose table listing failed on
	// either side. Such schemas are left out of the plan entirely, since an
	// empty listing would turn into spurious drops or creates.
	Incomplete func(targetCatalog, schema string) bool
}

// Differ compares catalog trees and produces plan trees.
type Differ struct {
	Options Options
	Logger  *slog.Logger
}

// New creates a Differ.
func New(opts Options, logger *slog.Logger) *Differ {
	if logger == nil {
		logger = slog.Default()
	}
	return &Differ{Options: opts, Logger: logger}
}

// DiffForest compares two forests catalog by catalog, matching catalogs by
// name. It returns nil when they are in sync.
func (d *Differ) DiffForest(source, target *catalog.Forest) *Node {
	var children []*Node
	for _, name := range unionKeys(source.Catalogs, target.Catalogs) {
		src, inSource := source.Catalogs[name]
		tgt, inTarget := target.Catalogs[name]
		switch {
		case !inTarget:
			children = appendNode(children, d.DiffCatalog(src, name, nil))
		case !inSource:
			children = append(children, &Node{Op: DropCatalog{Name: name}})
		default:
			children = appendNode(children, d.DiffCatalog(src, name, tgt))
		}
	}
	return group(LevelForest, "", children)
}

// DiffCatalog compares source against the catalog targetName. A nil target
// means the catalog does not exist and everything in source is created.
// It returns nil when there is nothing to do.
func (d *Differ) DiffCatalog(source *catalog.Catalog, targetName string, target *catalog.Catalog) *Node {
	if target == nil {
		node := &Node{Op: CreateCatalog{Name: targetName}}
		for _, name := range slices.Sorted(maps.Keys(source.Schemas)) {
			if d.incomplete(targetName, name) {
				continue
			}
			node.Children = append(node.Children, d.createSchema(source.Schemas[name], targetName))
		}
		return node
	}

	var children []*Node
	for _, name := range unionKeys(source.Schemas, target.Schemas) {
		if d.incomplete(targetName, name) {
			continue
		}
		src, inSource := source.Schemas[name]
		tgt, inTarget := target.Schemas[name]
		switch {
		case !inTarget:
			if !d.Options.CreateSchemaIfMissing {
				d.Logger.Warn("schema does not exist in target, skipping",
					"schema", targetName+"."+name, "source", source.Name+"."+name)
				continue
			}
			children = append(children, d.createSchema(src, targetName))
		case !inSource:
			children = append(children, &Node{Op: DropSchema{Catalog: targetName, Name: name}})
		default:
			children = appendNode(children, d.diffSchema(src, targetName, tgt))
		}
	}
	return group(LevelCatalog, targetName, children)
}

func (d *Differ) incomplete(targetCatalog, schema string) bool {
	if d.Options.Incomplete == nil || !d.Options.Incomplete(targetCatalog, schema) {
		return false
	}
	d.Logger.Warn("table listing failed, leaving schema out of the plan", "schema", targetCatalog+"."+schema)
	return true
}

func (d *Differ) createSchema(source *catalog.Schema, targetCatalog string) *Node {
	node := &Node{Op: CreateSchema{Catalog: targetCatalog, Name: source.Name}}
	for _, name := range slices.Sorted(maps.Keys(source.Tables)) {
		node.Children = append(node.Children, d.diffTable(source.Tables[name], targetCatalog, nil))
	}
	return node
}

func (d *Differ) diffSchema(source *catalog.Schema, targetCatalog string, target *catalog.Schema) *Node {
	var children []*Node
	for _, name := range unionKeys(source.Tables, target.Tables) {
		src, inSource := source.Tables[name]
		tgt, inTarget := target.Tables[name]
		switch {
		case !inTarget:
			children = appendNode(children, d.diffTable(src, targetCatalog, nil))
		case !inSource:
			children = append(children, &Node{Op: DropTable{Catalog: targetCatalog, Schema: target.Name, Name: name}})
		default:
			children = appendNode(children, d.diffTable(src, targetCatalog, tgt))
		}
	}
	return group(LevelSchema, targetCatalog+"."+target.Name, children)
}

// diffTable is the leaf decision: clone when the target is missing or lags
// the source by more than the staleness threshold.
func (d *Differ) diffTable(source *catalog.Table, targetCatalog string, target *catalog.Table) *Node {
	op := CloneTable{
		Source:     source,
		Target:     target,
		TargetPath: targetCatalog + "." + source.SchemaName + "." + source.Name,
	}
	if target == nil {
		return &Node{Op: op}
	}
	if source.UpdatedAt.Sub(target.UpdatedAt) > d.Options.Staleness {
		return &Node{Op: op}
	}
	return nil
}

func group(level Level, name string, children []*Node) *Node {
	if len(children) == 0 {
		return nil
	}
	return &Node{Op: Group{Level: level, Name: name}, Children: children}
}

func appendNode(nodes []*Node, n *Node) []*Node {
	if n == nil {
		return nodes
	}
	return append(nodes, n)
}

func unionKeys[V any](a, b map[string]V) []string {
	keys := slices.Collect(maps.Keys(a))
	for k := range b {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}
