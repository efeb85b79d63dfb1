package cmd

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ucsync/ucsync/internal/catalog"
	"github.com/ucsync/ucsync/internal/config"
	"github.com/ucsync/ucsync/internal/engine"
	"github.com/ucsync/ucsync/internal/report"
)

func writeForest(t *testing.T, path string, catalogs ...string) {
	t.Helper()
	f := catalog.NewForest()
	for _, name := range catalogs {
		f.UpsertCatalog(name)
		_, err := f.UpsertSchema(name, "sales")
		require.NoError(t, err)
		require.NoError(t, f.UpsertTable(name, "sales", &catalog.Table{
			Name:             "orders",
			TableType:        catalog.TableTypeManaged,
			DataSourceFormat: catalog.FormatDelta,
			UpdatedAt:        time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		}))
	}
	require.NoError(t, f.WriteYAML(path))
}

func TestCompareSnapshots(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "source.yaml")
	tgt := filepath.Join(dir, "target.yaml")
	writeForest(t, src, "main", "shared")
	writeForest(t, tgt, "shared", "legacy")

	out, err := runRoot(t, "compare", src, tgt)
	require.NoError(t, err)
	assert.Contains(t, out, "create catalog main")
	assert.Contains(t, out, "drop catalog legacy")
	assert.Contains(t, out, "CREATE CATALOG main;")
	assert.Contains(t, out, "CREATE TABLE main.sales.orders SHALLOW CLONE main.sales.orders;")
	assert.Contains(t, out, "DROP CATALOG legacy CASCADE;")
	assert.NotContains(t, out, "shared.sales")
}

func TestReportShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	cfg := &config.Config{
		Host:       "example.cloud.databricks.com",
		Catalogs:   []config.SyncEntry{{Catalog: "dev", PinnedCatalogs: []string{"prod"}}},
		Generation: config.GenerationConfig{Mode: config.ModePlan},
	}
	res := &engine.Result{
		RunID: "run-42",
		Plans: []engine.EntryPlan{{
			Target:     "dev",
			Pinned:     []string{"prod"},
			Statements: []string{"CREATE SCHEMA dev.sales;"},
		}},
	}
	require.NoError(t, report.WriteJSON(report.GenerateReport(cfg, res), path))

	out, err := runRoot(t, "report", "show", path)
	require.NoError(t, err)
	assert.Contains(t, out, "run-42")
	assert.Contains(t, out, "dev <- prod: 1 statement(s)")

	_, err = runRoot(t, "report", "show", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
