package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ucsync/ucsync/internal/config"
	"github.com/ucsync/ucsync/internal/engine"
)

// SyncReport describes one sync run.
type SyncReport struct {
	Version     string         `json:"version"`
	RunID       string         `json:"run_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Host        string         `json:"host"`
	Mode        string         `json:"mode"`
	Seeds       []string       `json:"seeds"`
	Crawl       CrawlSummary   `json:"crawl"`
	Entries     []EntrySummary `json:"entries"`
	Statements  int            `json:"statements"`
}

// CrawlSummary describes the metadata crawl.
type CrawlSummary struct {
	Jobs       int           `json:"jobs"`
	Catalogs   int           `json:"catalogs"`
	Schemas    int           `json:"schemas"`
	Tables     int           `json:"tables"`
	DurationMS int64         `json:"duration_ms"`
	Failures   []FailedFetch `json:"failures,omitempty"`
}

// FailedFetch is a fetch job that contributed nothing to the forest.
type FailedFetch struct {
	Job      string `json:"job"`
	Error    string `json:"error"`
	NotFound bool   `json:"not_found,omitempty"`
}

// EntrySummary holds the statements generated for one target/pinned pair.
type EntrySummary struct {
	Target     string   `json:"target"`
	Pinned     []string `json:"pinned"`
	Operations int      `json:"operations"`
	Statements []string `json:"statements"`
}

// GenerateReport builds a SyncReport from a finished run.
func GenerateReport(cfg *config.Config, res *engine.Result) *SyncReport {
	r := &SyncReport{
		Version:     "1",
		RunID:       res.RunID,
		GeneratedAt: time.Now().UTC(),
		Host:        cfg.Host,
		Mode:        cfg.Generation.Mode,
		Seeds:       cfg.Seeds(),
	}
	if s := res.Stats; s != nil {
		r.Crawl = CrawlSummary{
			Jobs:       s.Jobs,
			Catalogs:   s.Catalogs,
			Schemas:    s.Schemas,
			Tables:     s.Tables,
			DurationMS: s.Duration.Milliseconds(),
		}
		for _, f := range s.Failures {
			r.Crawl.Failures = append(r.Crawl.Failures, FailedFetch{
				Job:      f.Job.String(),
				Error:    f.Err.Error(),
				NotFound: f.NotFound(),
			})
		}
	}
	for _, p := range res.Plans {
		e := EntrySummary{
			Target:     p.Target,
			Pinned:     p.Pinned,
			Statements: p.Statements,
		}
		if p.Root != nil {
			e.Operations = p.Root.Count()
		}
		if e.Statements == nil {
			e.Statements = []string{}
		}
		r.Statements += len(p.Statements)
		r.Entries = append(r.Entries, e)
	}
	return r
}

// WriteJSON writes the report as JSON.
func WriteJSON(report *SyncReport, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadJSON reads a report from a JSON file.
func ReadJSON(path string) (*SyncReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	r := &SyncReport{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}
	return r, nil
}

// FormatText renders the report as human-readable text.
func FormatText(report *SyncReport) string {
	var b strings.Builder

	b.WriteString("=== ucsync Report ===\n")
	fmt.Fprintf(&b, "Run:       %s\n", report.RunID)
	fmt.Fprintf(&b, "Generated: %s\n", report.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Host:      %s\n", report.Host)
	fmt.Fprintf(&b, "Mode:      %s\n\n", report.Mode)

	c := report.Crawl
	b.WriteString("Crawl:\n")
	fmt.Fprintf(&b, "  Jobs:     %d (%d failed)\n", c.Jobs, len(c.Failures))
	fmt.Fprintf(&b, "  Found:    %d catalogs, %d schemas, %d tables\n", c.Catalogs, c.Schemas, c.Tables)
	fmt.Fprintf(&b, "  Duration: %s\n", time.Duration(c.DurationMS)*time.Millisecond)
	for _, f := range c.Failures {
		fmt.Fprintf(&b, "  [FAIL] %s: %s\n", f.Job, f.Error)
	}
	b.WriteString("\n")

	b.WriteString("Entries:\n")
	for _, e := range report.Entries {
		fmt.Fprintf(&b, "  %s <- %s: %d statement(s)\n", e.Target, strings.Join(e.Pinned, ", "), len(e.Statements))
	}
	fmt.Fprintf(&b, "\nTotal statements: %d\n", report.Statements)
	return b.String()
}
