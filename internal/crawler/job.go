package crawler

import (
	"context"
	"fmt"

	"github.com/ucsync/ucsync/internal/catalog"
	"github.com/ucsync/ucsync/internal/unity"
)

// Lister is the part of the metadata client the crawler needs.
type Lister interface {
	ListCatalogs(ctx context.Context) ([]unity.CatalogInfo, error)
	ListSchemas(ctx context.Context, catalog string) ([]unity.SchemaInfo, error)
	ListTables(ctx context.Context, catalog, schema string) ([]unity.TableInfo, error)
}

// Job is one unit of crawl work: fetch the children of a single node.
// The variants are FetchAllCatalogs, FetchCatalogChildren and FetchSchemaChildren.
type Job interface {
	// Expand fetches the node's children and returns them along with the
	// follow-up jobs. It does not touch the forest.
	Expand(ctx context.Context, l Lister) (Expansion, error)
	String() string
	isJob()
}

// SchemaRef identifies a schema to insert.
type SchemaRef struct {
	Catalog string
	Name    string
}

// Expansion is what a completed job contributes: entities to insert, in
// parent-first order, and child jobs to enqueue afterwards.
type Expansion struct {
	Catalogs []string
	Schemas  []SchemaRef
	Tables   []*catalog.Table
	Jobs     []Job
}

// FetchAllCatalogs discovers every catalog on the service.
type FetchAllCatalogs struct{}

// FetchCatalogChildren lists the schemas of one catalog.
type FetchCatalogChildren struct {
	Catalog string
}

// FetchSchemaChildren lists the tables of one schema. It yields no further jobs.
type FetchSchemaChildren struct {
	Catalog string
	Schema  string
}

func (FetchAllCatalogs) isJob()     {}
func (FetchCatalogChildren) isJob() {}
func (FetchSchemaChildren) isJob()  {}

func (FetchAllCatalogs) String() string { return "catalogs" }

func (j FetchCatalogChildren) String() string { return "schemas of " + j.Catalog }

func (j FetchSchemaChildren) String() string {
	return fmt.Sprintf("tables of %s.%s", j.Catalog, j.Schema)
}

func (FetchAllCatalogs) Expand(ctx context.Context, l Lister) (Expansion, error) {
	catalogs, err := l.ListCatalogs(ctx)
	if err != nil {
		return Expansion{}, fmt.Errorf("listing catalogs: %w", err)
	}
	var exp Expansion
	for _, c := range catalogs {
		exp.Catalogs = append(exp.Catalogs, c.Name)
		exp.Jobs = append(exp.Jobs, FetchCatalogChildren{Catalog: c.Name})
	}
	return exp, nil
}

func (j FetchCatalogChildren) Expand(ctx context.Context, l Lister) (Expansion, error) {
	schemas, err := l.ListSchemas(ctx, j.Catalog)
	if err != nil {
		return Expansion{}, fmt.Errorf("listing schemas of %s: %w", j.Catalog, err)
	}
	exp := Expansion{Catalogs: []string{j.Catalog}}
	for _, s := range schemas {
		exp.Schemas = append(exp.Schemas, SchemaRef{Catalog: j.Catalog, Name: s.Name})
		exp.Jobs = append(exp.Jobs, FetchSchemaChildren{Catalog: j.Catalog, Schema: s.Name})
	}
	return exp, nil
}

func (j FetchSchemaChildren) Expand(ctx context.Context, l Lister) (Expansion, error) {
	tables, err := l.ListTables(ctx, j.Catalog, j.Schema)
	if err != nil {
		return Expansion{}, fmt.Errorf("listing tables of %s.%s: %w", j.Catalog, j.Schema, err)
	}
	var exp Expansion
	for _, t := range tables {
		exp.Tables = append(exp.Tables, TableFromInfo(j.Catalog, j.Schema, t))
	}
	return exp, nil
}

// TableFromInfo converts a wire record into a model table placed under
// catalogName.schemaName.
func TableFromInfo(catalogName, schemaName string, t unity.TableInfo) *catalog.Table {
	return &catalog.Table{
		Name:             t.Name,
		CatalogName:      catalogName,
		SchemaName:       schemaName,
		TableType:        t.TableType,
		DataSourceFormat: t.DataSourceFormat,
		UpdatedAt:        catalog.FromEpochMillis(t.UpdatedAt),
		UpdatedBy:        t.UpdatedBy,
		Properties:       t.Properties,
	}
}

// apply inserts an expansion's entities into the forest, parents first.
func apply(f *catalog.Forest, exp Expansion) error {
	for _, name := range exp.Catalogs {
		f.UpsertCatalog(name)
	}
	for _, s := range exp.Schemas {
		if _, err := f.UpsertSchema(s.Catalog, s.Name); err != nil {
			return err
		}
	}
	for _, t := range exp.Tables {
		if err := f.UpsertTable(t.CatalogName, t.SchemaName, t); err != nil {
			return err
		}
	}
	return nil
}
