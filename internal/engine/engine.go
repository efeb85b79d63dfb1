package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/ucsync/ucsync/internal/catalog"
	"github.com/ucsync/ucsync/internal/config"
	"github.com/ucsync/ucsync/internal/crawler"
	"github.com/ucsync/ucsync/internal/diff"
	"github.com/ucsync/ucsync/internal/querygen"
	"github.com/ucsync/ucsync/internal/unity"
)

// Engine runs the crawl, diff and render phases for a config.
type Engine struct {
	Config *config.Config
	Lister crawler.Lister
	Logger *slog.Logger
	RunID  string

	// OnProgress is forwarded to the crawl scheduler.
	OnProgress func(crawler.Progress)
}

// EntryPlan is the outcome for one target and its pinned catalogs.
type EntryPlan struct {
	Target     string
	Pinned     []string
	Root       *diff.Node // nil in policy mode or when already in sync
	Statements []string
}

// Result is everything a run produced.
type Result struct {
	RunID  string
	Forest *catalog.Forest
	Stats  *crawler.Stats
	Plans  []EntryPlan
}

// Statements returns every rendered line in config order.
func (r *Result) Statements() []string {
	var out []string
	for _, p := range r.Plans {
		out = append(out, p.Statements...)
	}
	return out
}

// MissingCatalogError is returned when a configured catalog is not in the
// crawled forest and cannot be treated as absent.
type MissingCatalogError struct {
	Catalog string
	Role    string // "target" or "pinned"
}

func (e *MissingCatalogError) Error() string {
	return fmt.Sprintf("%s catalog %s not found in crawled metadata", e.Role, e.Catalog)
}

// CrawlIncompleteError is returned in strict mode when any fetch job failed.
type CrawlIncompleteError struct {
	Failures []crawler.Failure
}

func (e *CrawlIncompleteError) Error() string {
	f := e.Failures[0]
	return fmt.Sprintf("%d fetch job(s) failed, first: %s: %v", len(e.Failures), f.Job, f.Err)
}

// New creates an Engine talking to the configured host.
func New(cfg *config.Config, logger *slog.Logger) *Engine {
	client := unity.New(cfg.Host, cfg.Token,
		unity.WithMaxRetries(cfg.Crawl.MaxRetries),
		unity.WithRateLimit(cfg.Crawl.RequestsPerSecond, cfg.Crawl.Burst),
		unity.WithLogger(logger),
	)
	return NewWithLister(cfg, client, logger)
}

// NewWithLister creates an Engine backed by an arbitrary Lister.
func NewWithLister(cfg *config.Config, l crawler.Lister, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &Engine{
		Config: cfg,
		Lister: l,
		Logger: logger.With("run_id", id),
		RunID:  id,
	}
}

// Crawl fetches every catalog named in the config, targets and pinned alike.
func (e *Engine) Crawl(ctx context.Context) (*catalog.Forest, *crawler.Stats, error) {
	seeds := e.Config.Seeds()
	e.Logger.Info("crawling catalogs", "host", e.Config.Host, "catalogs", seeds)

	s := crawler.NewScheduler(e.Lister, e.Logger)
	s.MaxInFlight = e.Config.Crawl.MaxInFlight
	s.OnProgress = e.OnProgress
	return s.Run(ctx, seeds)
}

// Plan diffs every configured target against its pinned catalogs. stats
// may be nil when the forest was loaded from a snapshot.
//
// Several pinned catalogs are merged into one source first, the newest copy
// of a table winning, so an object only one of them holds is never dropped.
func (e *Engine) Plan(forest *catalog.Forest, stats *crawler.Stats) ([]EntryPlan, error) {
	gen := e.Config.Generation
	incomplete := e.incompleteSchemas(stats)
	differ := diff.New(diff.Options{
		Staleness:             gen.Staleness(),
		CreateSchemaIfMissing: gen.CreateSchemaIfMissing,
		Incomplete:            incomplete,
	}, e.Logger)
	qg := querygen.New(querygen.Options{
		DeepCloneNonManaged:   gen.DeepCloneNonManaged,
		ReplaceStrategy:       querygen.ReplaceStrategy(gen.ReplaceStrategy),
		Staleness:             gen.Staleness(),
		CreateSchemaIfMissing: gen.CreateSchemaIfMissing,
		Incomplete:            incomplete,
	}, e.Logger)

	var plans []EntryPlan
	for _, entry := range e.Config.Catalogs {
		target, ok := forest.GetCatalog(entry.Catalog)
		if !ok {
			// Only a confirmed 404 means the catalog really is absent.
			if gen.Mode != config.ModePlan || stats == nil || !stats.CatalogNotFound(entry.Catalog) {
				return nil, &MissingCatalogError{Catalog: entry.Catalog, Role: "target"}
			}
			e.Logger.Info("target catalog does not exist, creating", "catalog", entry.Catalog)
			target = nil
		}

		sources := make([]*catalog.Catalog, 0, len(entry.PinnedCatalogs))
		for _, name := range entry.PinnedCatalogs {
			c, ok := forest.GetCatalog(name)
			if !ok {
				return nil, &MissingCatalogError{Catalog: name, Role: "pinned"}
			}
			sources = append(sources, c)
		}
		if len(sources) == 0 {
			continue
		}
		source := sources[0]
		if len(sources) > 1 {
			source = catalog.Merge(strings.Join(entry.PinnedCatalogs, "+"), sources...)
		}

		p := EntryPlan{Target: entry.Catalog, Pinned: entry.PinnedCatalogs}
		if gen.Mode == config.ModePolicy {
			p.Statements = qg.GeneratePolicyQueries(source, target)
		} else {
			p.Root = differ.DiffCatalog(source, entry.Catalog, target)
			p.Statements = qg.Render(p.Root)
		}
		e.Logger.Info("planned sync", "target", p.Target, "pinned", p.Pinned, "statements", len(p.Statements))
		plans = append(plans, p)
	}
	return plans, nil
}

// incompleteSchemas builds the differ's filter from the crawl failures: a
// schema is incomplete for a target when its listing failed in the target
// or in any of the target's pinned catalogs.
func (e *Engine) incompleteSchemas(stats *crawler.Stats) func(targetCatalog, schema string) bool {
	if stats == nil {
		return nil
	}
	failed := stats.FailedSchemas()
	if len(failed) == 0 {
		return nil
	}
	related := make(map[string][]string)
	for _, entry := range e.Config.Catalogs {
		related[entry.Catalog] = append(related[entry.Catalog], entry.Catalog)
		related[entry.Catalog] = append(related[entry.Catalog], entry.PinnedCatalogs...)
	}
	return func(targetCatalog, schema string) bool {
		for _, c := range related[targetCatalog] {
			if failed[c+"."+schema] {
				return true
			}
		}
		return false
	}
}

// Run crawls and plans.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	forest, stats, err := e.Crawl(ctx)
	if err != nil {
		return nil, fmt.Errorf("crawling: %w", err)
	}
	if n := len(stats.Failures); n > 0 {
		if e.Config.Crawl.Strict {
			return nil, &CrawlIncompleteError{Failures: stats.Failures}
		}
		e.Logger.Warn("crawl finished with failed jobs; affected subtrees are missing", "failed", n)
	}

	plans, err := e.Plan(forest, stats)
	if err != nil {
		return nil, fmt.Errorf("planning: %w", err)
	}
	return &Result{RunID: e.RunID, Forest: forest, Stats: stats, Plans: plans}, nil
}
