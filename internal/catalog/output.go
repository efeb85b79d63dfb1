package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadYAML reads a forest snapshot from a YAML file.
func LoadYAML(path string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading forest file: %w", err)
	}
	f := NewForest()
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parsing forest: %w", err)
	}
	f.normalize()
	return f, nil
}

// WriteYAML writes the forest to a YAML file at the given path.
func (f *Forest) WriteYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshaling forest: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Summary returns a human-readable summary of the forest.
func (f *Forest) Summary() string {
	var schemas, tables int
	for _, c := range f.Catalogs {
		schemas += len(c.Schemas)
		for _, s := range c.Schemas {
			tables += len(s.Tables)
		}
	}
	return fmt.Sprintf("Found %d catalogs, %d schemas, %d tables", len(f.Catalogs), schemas, tables)
}

// normalize fills in keys and empty maps a hand-edited snapshot may omit.
func (f *Forest) normalize() {
	if f.Catalogs == nil {
		f.Catalogs = make(map[string]*Catalog)
	}
	for cn, c := range f.Catalogs {
		if c == nil {
			c = &Catalog{}
			f.Catalogs[cn] = c
		}
		c.Name = cn
		if c.Schemas == nil {
			c.Schemas = make(map[string]*Schema)
		}
		for sn, s := range c.Schemas {
			if s == nil {
				s = &Schema{}
				c.Schemas[sn] = s
			}
			s.Name = sn
			s.CatalogName = cn
			if s.Tables == nil {
				s.Tables = make(map[string]*Table)
			}
			for tn, t := range s.Tables {
				if t == nil {
					delete(s.Tables, tn)
					continue
				}
				t.Name = tn
				t.CatalogName = cn
				t.SchemaName = sn
				t.UpdatedAt = t.UpdatedAt.UTC()
			}
		}
	}
}
