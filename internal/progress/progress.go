package progress

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ucsync/ucsync/internal/crawler"
)

// UpdateMsg carries a crawl progress snapshot into the model.
type UpdateMsg crawler.Progress

// DoneMsg ends the crawl display.
type DoneMsg struct {
	Stats *crawler.Stats
	Err   error
}

// CrawlModel is the bubbletea model for the crawl progress display.
type CrawlModel struct {
	spinner   spinner.Model
	progress  crawler.Progress
	stats     *crawler.Stats
	err       error
	started   time.Time
	done      bool
	cancelled bool
	width     int
	cancel    context.CancelFunc
}

// NewCrawlModel creates a crawl progress model. cancel is called when the
// user interrupts the display and may be nil.
func NewCrawlModel(cancel context.CancelFunc) CrawlModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return CrawlModel{
		spinner: s,
		started: time.Now(),
		width:   80,
		cancel:  cancel,
	}
}

func (m CrawlModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m CrawlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.cancelled = true
			m.done = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		return m, nil

	case UpdateMsg:
		m.progress = crawler.Progress(msg)
		return m, nil

	case DoneMsg:
		m.stats = msg.Stats
		m.err = msg.Err
		m.done = true
		return m, tea.Quit

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m CrawlModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Crawling catalog metadata"))
	b.WriteString("\n\n")

	p := m.progress
	total := p.Completed + p.InFlight + p.Queued
	var pct float64
	if total > 0 {
		pct = float64(p.Completed) / float64(total) * 100
	}

	switch {
	case m.cancelled:
		b.WriteString(errStyle.Render("  Cancelled"))
		b.WriteString("\n")
	case m.err != nil:
		b.WriteString(errStyle.Render(fmt.Sprintf("  Crawl failed: %v", m.err)))
		b.WriteString("\n")
	case m.done:
		b.WriteString(successStyle.Render("  Crawl complete"))
		if m.stats != nil {
			fmt.Fprintf(&b, "  %d catalogs, %d schemas, %d tables in %s",
				m.stats.Catalogs, m.stats.Schemas, m.stats.Tables, m.stats.Duration.Round(time.Millisecond))
		}
		b.WriteString("\n")
	default:
		fmt.Fprintf(&b, "  %s %s %.0f%%\n", m.spinner.View(), renderProgressBar(pct, m.width-20), pct)
	}

	fmt.Fprintf(&b, "  Completed: %s  In flight: %d  Queued: %d",
		highlightStyle.Render(fmt.Sprint(p.Completed)), p.InFlight, p.Queued)
	if p.Failed > 0 {
		b.WriteString("  ")
		b.WriteString(errStyle.Render(fmt.Sprintf("Failed: %d", p.Failed)))
	}
	b.WriteString("\n")

	if !m.done {
		fmt.Fprintf(&b, "  %s\n", dimStyle.Render("Elapsed: "+time.Since(m.started).Round(time.Second).String()+"  q: cancel"))
	}
	return b.String()
}

// Cancelled returns true if the user interrupted the crawl.
func (m CrawlModel) Cancelled() bool { return m.cancelled }

// Display runs a CrawlModel program in the background.
type Display struct {
	program   *tea.Program
	exited    chan struct{}
	cancelled bool
}

// Start launches the progress display on w. Keyboard input is read from
// the terminal so stdout stays free for statements.
func Start(w io.Writer, cancel context.CancelFunc) *Display {
	d := &Display{
		program: tea.NewProgram(NewCrawlModel(cancel), tea.WithOutput(w)),
		exited:  make(chan struct{}),
	}
	go func() {
		defer close(d.exited)
		final, err := d.program.Run()
		if m, ok := final.(CrawlModel); ok && err == nil {
			d.cancelled = m.Cancelled()
		}
	}()
	return d
}

// Update forwards a progress snapshot; it is safe to pass as
// crawler.Scheduler.OnProgress.
func (d *Display) Update(p crawler.Progress) {
	d.program.Send(UpdateMsg(p))
}

// Finish renders the final state and waits for the program to exit. It
// reports whether the user interrupted the crawl.
func (d *Display) Finish(stats *crawler.Stats, err error) bool {
	d.program.Send(DoneMsg{Stats: stats, Err: err})
	<-d.exited
	return d.cancelled
}

func renderProgressBar(pct float64, width int) string {
	if width < 10 {
		width = 10
	}
	filled := int(pct / 100 * float64(width))
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).BorderStyle(lipgloss.DoubleBorder()).BorderBottom(true).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)
