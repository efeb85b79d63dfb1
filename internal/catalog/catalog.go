package catalog

import (
	"fmt"
	"iter"
	"maps"
	"slices"
	"time"
)

// Forest is the set of crawled catalogs keyed by name.
type Forest struct {
	Catalogs map[string]*Catalog `yaml:"catalogs"`
}

// Catalog is a top-level namespace owning schemas.
type Catalog struct {
	Name    string             `yaml:"name"`
	Schemas map[string]*Schema `yaml:"schemas"`
}

// Schema belongs to a catalog and owns tables. CatalogName is a lookup key,
// not a pointer back to the owner.
type Schema struct {
	Name        string            `yaml:"name"`
	CatalogName string            `yaml:"catalog_name"`
	Tables      map[string]*Table `yaml:"tables"`
}

// Table is a leaf of the hierarchy.
type Table struct {
	Name             string            `yaml:"name"`
	CatalogName      string            `yaml:"catalog_name"`
	SchemaName       string            `yaml:"schema_name"`
	TableType        string            `yaml:"table_type"`                   // MANAGED, EXTERNAL, VIEW, ...
	DataSourceFormat string            `yaml:"data_source_format,omitempty"` // DELTA, PARQUET, ... empty if unknown
	UpdatedAt        time.Time         `yaml:"updated_at"`
	UpdatedBy        string            `yaml:"updated_by,omitempty"`
	Properties       map[string]string `yaml:"properties,omitempty"`
}

const (
	TableTypeManaged = "MANAGED"
	FormatDelta      = "DELTA"
)

// MissingAncestorError is returned when a schema or table is inserted before
// its parent. It means the crawl ordering was broken and the run must abort.
type MissingAncestorError struct {
	Kind string // "catalog" or "schema"
	Path string
}

func (e *MissingAncestorError) Error() string {
	return fmt.Sprintf("%s %s does not exist", e.Kind, e.Path)
}

// NewForest returns an empty forest.
func NewForest() *Forest {
	return &Forest{Catalogs: make(map[string]*Catalog)}
}

// UpsertCatalog returns the catalog with the given name, creating it if needed.
func (f *Forest) UpsertCatalog(name string) *Catalog {
	if c, ok := f.Catalogs[name]; ok {
		return c
	}
	c := &Catalog{Name: name, Schemas: make(map[string]*Schema)}
	f.Catalogs[name] = c
	return c
}

// UpsertSchema inserts or refreshes a schema. The owning catalog must exist.
func (f *Forest) UpsertSchema(catalogName, name string) (*Schema, error) {
	c, ok := f.Catalogs[catalogName]
	if !ok {
		return nil, &MissingAncestorError{Kind: "catalog", Path: catalogName}
	}
	s, ok := c.Schemas[name]
	if !ok {
		s = &Schema{Tables: make(map[string]*Table)}
		c.Schemas[name] = s
	}
	s.Name = name
	s.CatalogName = catalogName
	return s, nil
}

// UpsertTable inserts t under catalogName.schemaName, replacing any previous
// table with the same name. The owning schema must exist.
func (f *Forest) UpsertTable(catalogName, schemaName string, t *Table) error {
	c, ok := f.Catalogs[catalogName]
	if !ok {
		return &MissingAncestorError{Kind: "catalog", Path: catalogName}
	}
	s, ok := c.Schemas[schemaName]
	if !ok {
		return &MissingAncestorError{Kind: "schema", Path: catalogName + "." + schemaName}
	}
	t.CatalogName = catalogName
	t.SchemaName = schemaName
	s.Tables[t.Name] = t
	return nil
}

// GetCatalog looks up a catalog by name.
func (f *Forest) GetCatalog(name string) (*Catalog, bool) {
	c, ok := f.Catalogs[name]
	return c, ok
}

// Tables yields every table in the catalog ordered by schema then table name.
func (c *Catalog) Tables() iter.Seq[*Table] {
	return func(yield func(*Table) bool) {
		for _, sn := range slices.Sorted(maps.Keys(c.Schemas)) {
			s := c.Schemas[sn]
			for _, tn := range slices.Sorted(maps.Keys(s.Tables)) {
				if !yield(s.Tables[tn]) {
					return
				}
			}
		}
	}
}

// Path returns the dotted catalog.schema.table name.
func (t *Table) Path() string {
	return t.CatalogName + "." + t.SchemaName + "." + t.Name
}

// IsManagedDelta reports whether the table supports a shallow clone.
func (t *Table) IsManagedDelta() bool {
	return t.TableType == TableTypeManaged && t.DataSourceFormat == FormatDelta
}

// FromEpochMillis converts a wire timestamp to UTC.
func FromEpochMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
