package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ucsync/ucsync/internal/catalog"
	"github.com/ucsync/ucsync/internal/unity"
)

// DefaultMaxInFlight bounds concurrent fetches when none is configured.
const DefaultMaxInFlight = 10

// Scheduler crawls the catalog hierarchy. Fetches run concurrently, but the
// queue and the forest are only touched by the goroutine that called Run.
type Scheduler struct {
	Lister      Lister
	MaxInFlight int
	Logger      *slog.Logger

	// OnProgress, if set, is called from the Run goroutine after every job.
	OnProgress func(Progress)
}

// Progress is a snapshot of the crawl. Completed counts failed jobs too.
type Progress struct {
	Completed int
	Failed    int
	InFlight  int
	Queued    int
}

// Failure records a job that failed after the client's own retries.
type Failure struct {
	Job Job
	Err error
}

// NotFound reports whether the service said the node does not exist.
func (f Failure) NotFound() bool {
	return errors.Is(f.Err, unity.ErrNotFound)
}

// Stats summarizes a crawl.
type Stats struct {
	Jobs     int
	Failures []Failure
	Catalogs int
	Schemas  int
	Tables   int
	Duration time.Duration
}

// FailedSchemas returns the "catalog.schema" paths whose table listing
// failed. Those schemas are present in the forest but may be missing tables.
func (s *Stats) FailedSchemas() map[string]bool {
	failed := make(map[string]bool)
	for _, f := range s.Failures {
		if j, ok := f.Job.(FetchSchemaChildren); ok {
			failed[j.Catalog+"."+j.Schema] = true
		}
	}
	return failed
}

// CatalogNotFound reports whether listing the schemas of name failed with a 404.
func (s *Stats) CatalogNotFound(name string) bool {
	for _, f := range s.Failures {
		if j, ok := f.Job.(FetchCatalogChildren); ok && j.Catalog == name && f.NotFound() {
			return true
		}
	}
	return false
}

type result struct {
	job Job
	exp Expansion
	err error
}

// NewScheduler creates a scheduler with the default concurrency cap.
func NewScheduler(l Lister, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		Lister:      l,
		MaxInFlight: DefaultMaxInFlight,
		Logger:      logger,
	}
}

// Run crawls everything below seeds. With no seeds, the full catalog
// inventory is discovered first. Failed jobs are logged and skipped, so the
// returned forest may be missing subtrees; Stats lists them.
func (s *Scheduler) Run(ctx context.Context, seeds []string) (*catalog.Forest, *Stats, error) {
	start := time.Now()
	logger := s.logger()
	limit := s.MaxInFlight
	if limit <= 0 {
		limit = DefaultMaxInFlight
	}

	forest := catalog.NewForest()
	stats := &Stats{}

	var queue []Job
	if len(seeds) == 0 {
		queue = append(queue, FetchAllCatalogs{})
	}
	for _, name := range seeds {
		queue = append(queue, FetchCatalogChildren{Catalog: name})
	}

	// runCtx is cancelled when an insert fails so in-flight fetches stop early.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(limit)

	var (
		results  = make(chan result)
		inFlight int
		runErr   error
	)

	launch := func() {
		for inFlight < limit && len(queue) > 0 && gctx.Err() == nil {
			job := queue[0]
			queue[0] = nil
			queue = queue[1:]
			inFlight++
			g.Go(func() error {
				exp, err := job.Expand(gctx, s.Lister)
				results <- result{job: job, exp: exp, err: err}
				if err != nil && gctx.Err() != nil {
					return gctx.Err()
				}
				return nil
			})
		}
	}

	launch()
	for inFlight > 0 {
		r := <-results
		inFlight--
		stats.Jobs++

		switch {
		case r.err != nil:
			stats.Failures = append(stats.Failures, Failure{Job: r.job, Err: r.err})
			logger.Warn("fetch job failed", "job", r.job.String(), "error", r.err)
		case runErr != nil:
			// draining after an abort
		default:
			if err := apply(forest, r.exp); err != nil {
				runErr = fmt.Errorf("inserting results of %s: %w", r.job, err)
				queue = nil
				cancel()
				break
			}
			stats.Schemas += len(r.exp.Schemas)
			stats.Tables += len(r.exp.Tables)
			queue = append(queue, r.exp.Jobs...)
			logger.Debug("fetch job done", "job", r.job.String(), "children", len(r.exp.Jobs))
		}

		if runErr == nil {
			launch()
		}
		if s.OnProgress != nil {
			s.OnProgress(Progress{
				Completed: stats.Jobs,
				Failed:    len(stats.Failures),
				InFlight:  inFlight,
				Queued:    len(queue),
			})
		}
	}
	waitErr := g.Wait()

	stats.Duration = time.Since(start)
	stats.Catalogs = len(forest.Catalogs)
	if runErr != nil {
		return nil, stats, runErr
	}
	if waitErr == nil {
		waitErr = ctx.Err()
	}
	if waitErr != nil {
		return nil, stats, fmt.Errorf("crawl interrupted: %w", waitErr)
	}

	logger.Info("crawl finished",
		"jobs", stats.Jobs,
		"failed", len(stats.Failures),
		"catalogs", len(forest.Catalogs),
		"tables", stats.Tables,
		"duration", stats.Duration.Round(time.Millisecond),
	)
	return forest, stats, nil
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
