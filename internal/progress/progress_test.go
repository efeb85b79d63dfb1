package progress

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ucsync/ucsync/internal/catalog"
	"github.com/ucsync/ucsync/internal/crawler"
	"github.com/ucsync/ucsync/internal/diff"
)

func TestNewCrawlModel(t *testing.T) {
	m := NewCrawlModel(nil)
	if m.Cancelled() {
		t.Error("should not be cancelled initially")
	}
	if m.Init() == nil {
		t.Error("Init should start the spinner")
	}
}

func TestCrawlModel_Cancel(t *testing.T) {
	called := false
	m := NewCrawlModel(func() { called = true })
	result, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	rm := result.(CrawlModel)
	if !rm.Cancelled() {
		t.Error("q should cancel")
	}
	if !called {
		t.Error("q should call the cancel func")
	}
	if cmd == nil {
		t.Error("q should quit the program")
	}
	if !strings.Contains(rm.View(), "Cancelled") {
		t.Error("view should show cancellation")
	}
}

func TestCrawlModel_ProgressDisplay(t *testing.T) {
	m := NewCrawlModel(nil)
	result, _ := m.Update(UpdateMsg{Completed: 14, Failed: 2, InFlight: 4, Queued: 2})
	v := result.(CrawlModel).View()

	if !strings.Contains(v, "Completed:") || !strings.Contains(v, "14") {
		t.Error("view should show completed jobs")
	}
	if !strings.Contains(v, "In flight: 4") {
		t.Error("view should show in-flight jobs")
	}
	if !strings.Contains(v, "Failed: 2") {
		t.Error("view should show failed jobs")
	}
	if !strings.Contains(v, "70%") {
		t.Errorf("view should show 70%% complete, got:\n%s", v)
	}
}

func TestCrawlModel_Done(t *testing.T) {
	m := NewCrawlModel(nil)
	stats := &crawler.Stats{Catalogs: 2, Schemas: 3, Tables: 9, Duration: time.Second}
	result, cmd := m.Update(DoneMsg{Stats: stats})
	rm := result.(CrawlModel)
	if !rm.done || rm.Cancelled() {
		t.Error("done message should finish without cancelling")
	}
	if cmd == nil {
		t.Error("done message should quit the program")
	}
	if !strings.Contains(rm.View(), "2 catalogs, 3 schemas, 9 tables") {
		t.Error("view should summarize the crawl")
	}

	result, _ = m.Update(DoneMsg{Err: errors.New("crawl interrupted")})
	if !strings.Contains(result.(CrawlModel).View(), "crawl interrupted") {
		t.Error("view should show the error")
	}
}

func TestRenderProgressBar(t *testing.T) {
	if got := renderProgressBar(50, 10); got != "[=====     ]" {
		t.Errorf("unexpected bar %q", got)
	}
	if got := renderProgressBar(150, 10); got != "[==========]" {
		t.Errorf("bar should clamp, got %q", got)
	}
}

func TestRenderPlan(t *testing.T) {
	src := &catalog.Table{Name: "orders", CatalogName: "prod", SchemaName: "sales"}
	root := &diff.Node{
		Op: diff.Group{Level: diff.LevelCatalog, Name: "dev"},
		Children: []*diff.Node{
			{Op: diff.CreateSchema{Catalog: "dev", Name: "sales"}, Children: []*diff.Node{
				{Op: diff.CloneTable{Source: src, TargetPath: "dev.sales.orders"}},
			}},
			{Op: diff.DropSchema{Catalog: "dev", Name: "scratch"}},
		},
	}

	out := RenderPlan("dev <- prod", root)
	for _, want := range []string{
		"dev <- prod",
		"catalog dev",
		"create schema dev.sales",
		"clone prod.sales.orders -> dev.sales.orders",
		"drop schema dev.scratch",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("plan output missing %q:\n%s", want, out)
		}
	}

	if !strings.Contains(RenderPlan("x", nil), "nothing to do") {
		t.Error("nil plan should render as in sync")
	}
}
