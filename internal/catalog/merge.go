package catalog

// Merge overlays several catalogs into one catalog called name. Schemas are
// unioned. A table present in more than one catalog is taken from the one
// updated most recently, ties going to the earlier catalog. Tables are
// shared, not copied, so their Path still names the catalog they came from.
func Merge(name string, catalogs ...*Catalog) *Catalog {
	merged := &Catalog{Name: name, Schemas: make(map[string]*Schema)}
	for _, c := range catalogs {
		for sn, s := range c.Schemas {
			ms, ok := merged.Schemas[sn]
			if !ok {
				ms = &Schema{Name: sn, CatalogName: name, Tables: make(map[string]*Table)}
				merged.Schemas[sn] = ms
			}
			for tn, t := range s.Tables {
				if cur, ok := ms.Tables[tn]; ok && !t.UpdatedAt.After(cur.UpdatedAt) {
					continue
				}
				ms.Tables[tn] = t
			}
		}
	}
	return merged
}
