package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ucsync/ucsync/internal/config"
	"github.com/ucsync/ucsync/internal/crawler"
	"github.com/ucsync/ucsync/internal/diff"
	"github.com/ucsync/ucsync/internal/unity"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var tNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func ordersInfo(updated time.Time) unity.TableInfo {
	return unity.TableInfo{
		Name:             "orders",
		TableType:        "MANAGED",
		DataSourceFormat: "DELTA",
		UpdatedAt:        updated.UnixMilli(),
		UpdatedBy:        "etl",
	}
}

func deltaInfo(name string, updated time.Time) unity.TableInfo {
	info := ordersInfo(updated)
	info.Name = name
	return info
}

func testConfig(mode string) *config.Config {
	return &config.Config{
		Version:  1,
		Host:     "example.cloud.databricks.com",
		Token:    "t",
		Catalogs: []config.SyncEntry{{Catalog: "dev", PinnedCatalogs: []string{"prod"}}},
		Generation: config.GenerationConfig{
			Mode:                  mode,
			MaxStalenessHours:     1,
			CreateSchemaIfMissing: true,
			ReplaceStrategy:       "create_or_replace",
		},
		Crawl: config.CrawlConfig{MaxInFlight: 10},
	}
}

func TestRunPlanMode(t *testing.T) {
	l := &crawler.MockLister{
		Schemas: map[string][]unity.SchemaInfo{
			"prod": {{Name: "sales"}, {Name: "finance"}},
			"dev":  {{Name: "finance"}},
		},
		Tables: map[string][]unity.TableInfo{
			"prod.sales":   {ordersInfo(tNow)},
			"prod.finance": {{Name: "ledger", TableType: "MANAGED", DataSourceFormat: "DELTA", UpdatedAt: tNow.UnixMilli()}},
			"dev.finance":  {{Name: "ledger", TableType: "MANAGED", DataSourceFormat: "DELTA", UpdatedAt: tNow.Add(-2 * time.Hour).UnixMilli()}},
		},
	}
	e := NewWithLister(testConfig(config.ModePlan), l, discard)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	require.Len(t, res.Plans, 1)
	assert.NotNil(t, res.Plans[0].Root)

	assert.Equal(t, []string{
		"CREATE SCHEMA dev.sales;",
		"CREATE OR REPLACE TABLE dev.finance.ledger SHALLOW CLONE prod.finance.ledger;",
		"CREATE TABLE dev.sales.orders SHALLOW CLONE prod.sales.orders;",
	}, res.Statements())
}

func TestRunPolicyMode(t *testing.T) {
	l := &crawler.MockLister{
		Schemas: map[string][]unity.SchemaInfo{
			"prod": {{Name: "sales"}},
			"dev":  {{Name: "sales"}, {Name: "scratch"}},
		},
		Tables: map[string][]unity.TableInfo{
			"prod.sales": {ordersInfo(tNow)},
			"dev.sales":  {ordersInfo(tNow.Add(-2 * time.Hour))},
		},
	}
	e := NewWithLister(testConfig(config.ModePolicy), l, discard)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Plans, 1)
	assert.Nil(t, res.Plans[0].Root)
	assert.Equal(t, []string{
		"CREATE OR REPLACE TABLE dev.sales.orders SHALLOW CLONE prod.sales.orders;",
	}, res.Statements())
}

func TestMissingTargetCatalogIsCreated(t *testing.T) {
	l := &crawler.MockLister{
		Schemas: map[string][]unity.SchemaInfo{"prod": {{Name: "sales"}}},
		Tables:  map[string][]unity.TableInfo{"prod.sales": {ordersInfo(tNow)}},
	}
	e := NewWithLister(testConfig(config.ModePlan), l, discard)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, diff.CreateCatalog{Name: "dev"}, res.Plans[0].Root.Op)
	assert.Equal(t, []string{
		"CREATE CATALOG dev;",
		"CREATE SCHEMA dev.sales;",
		"CREATE TABLE dev.sales.orders SHALLOW CLONE prod.sales.orders;",
	}, res.Statements())
}

func TestMissingTargetInPolicyModeFails(t *testing.T) {
	l := &crawler.MockLister{
		Schemas: map[string][]unity.SchemaInfo{"prod": {{Name: "sales"}}},
	}
	e := NewWithLister(testConfig(config.ModePolicy), l, discard)

	_, err := e.Run(context.Background())
	var missing *MissingCatalogError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "target", missing.Role)
}

func TestTransientTargetFailureIsFatal(t *testing.T) {
	l := &crawler.MockLister{
		Schemas: map[string][]unity.SchemaInfo{"prod": {{Name: "sales"}}, "dev": nil},
		Errs:    map[string]error{"dev": errors.New("giving up after 4 attempt(s)")},
	}
	e := NewWithLister(testConfig(config.ModePlan), l, discard)

	_, err := e.Run(context.Background())
	var missing *MissingCatalogError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "dev", missing.Catalog)
}

func TestMissingPinnedCatalogIsFatal(t *testing.T) {
	l := &crawler.MockLister{
		Schemas: map[string][]unity.SchemaInfo{"dev": {{Name: "sales"}}},
	}
	e := NewWithLister(testConfig(config.ModePlan), l, discard)

	_, err := e.Run(context.Background())
	var missing *MissingCatalogError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "pinned", missing.Role)
	assert.Equal(t, "pinned catalog prod not found in crawled metadata", missing.Error())
}

func TestStrictCrawlFailsOnAnyJobError(t *testing.T) {
	l := &crawler.MockLister{
		Schemas: map[string][]unity.SchemaInfo{"prod": {{Name: "sales"}}, "dev": {{Name: "sales"}}},
		Errs:    map[string]error{"prod.sales": errors.New("boom")},
	}
	cfg := testConfig(config.ModePlan)

	res, err := NewWithLister(cfg, l, discard).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Stats.Failures, 1)

	cfg.Crawl.Strict = true
	_, err = NewWithLister(cfg, l, discard).Run(context.Background())
	var incomplete *CrawlIncompleteError
	require.ErrorAs(t, err, &incomplete)
	assert.Contains(t, incomplete.Error(), "tables of prod.sales")
}

func TestSeveralPinnedCatalogsAreMerged(t *testing.T) {
	l := &crawler.MockLister{
		Schemas: map[string][]unity.SchemaInfo{
			"dev":   {{Name: "s"}},
			"prodA": {{Name: "s"}},
			"prodB": {{Name: "s"}},
		},
		Tables: map[string][]unity.TableInfo{
			"dev.s":   {ordersInfo(tNow), deltaInfo("old", tNow)},
			"prodA.s": {deltaInfo("fresh", tNow)},
			"prodB.s": {ordersInfo(tNow), deltaInfo("fresh", tNow.Add(3*time.Hour))},
		},
	}
	cfg := testConfig(config.ModePlan)
	cfg.Catalogs[0].PinnedCatalogs = []string{"prodA", "prodB"}

	res, err := NewWithLister(cfg, l, discard).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Plans, 1)
	assert.Equal(t, []string{"prodA", "prodB"}, res.Plans[0].Pinned)

	// orders is only in prodB and must survive; old is in neither.
	assert.Equal(t, []string{
		"CREATE TABLE dev.s.fresh SHALLOW CLONE prodB.s.fresh;",
		"DROP TABLE dev.s.old;",
	}, res.Statements())
}

func TestFailedSchemaListingProducesNoDrops(t *testing.T) {
	l := &crawler.MockLister{
		Schemas: map[string][]unity.SchemaInfo{
			"prod": {{Name: "sales"}, {Name: "hr"}},
			"dev":  {{Name: "sales"}, {Name: "hr"}},
		},
		Tables: map[string][]unity.TableInfo{
			"dev.sales": {ordersInfo(tNow)},
			"prod.hr":   {deltaInfo("staff", tNow)},
		},
		Errs: map[string]error{
			"prod.sales": errors.New("giving up after 4 attempt(s)"),
			"dev.hr":     errors.New("giving up after 4 attempt(s)"),
		},
	}

	for _, mode := range []string{config.ModePlan, config.ModePolicy} {
		t.Run(mode, func(t *testing.T) {
			res, err := NewWithLister(testConfig(mode), l, discard).Run(context.Background())
			require.NoError(t, err)
			assert.Len(t, res.Stats.Failures, 2)
			assert.Empty(t, res.Statements())
		})
	}
}
