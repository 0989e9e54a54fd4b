// Package dashboard renders a live terminal view of a running bot.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/brensch/gravbot/executor/bot"
	"github.com/brensch/gravbot/executor/scan"
	"github.com/brensch/gravbot/executor/targeting"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const recentSearches = 10

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle    = lipgloss.NewStyle().Faint(true)
	foundStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	notFoundStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	abortedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

type searchMsg bot.SearchReport
type worldMsg bot.WorldReport

type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func waitForUpdate(updates chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-updates
	}
}

// Dashboard is a bot.Observer feeding a bubbletea program. Reports that do
// not fit in the queue are dropped.
type Dashboard struct {
	updates chan tea.Msg
	stats   func() scan.RuntimeStats
	dropped atomic.Int64
}

// New returns a dashboard. stats may be nil.
func New(stats func() scan.RuntimeStats) *Dashboard {
	return &Dashboard{updates: make(chan tea.Msg, 128), stats: stats}
}

func (d *Dashboard) RecordSearch(rep bot.SearchReport) { d.push(searchMsg(rep)) }
func (d *Dashboard) RecordWorld(rep bot.WorldReport)   { d.push(worldMsg(rep)) }

func (d *Dashboard) push(msg tea.Msg) {
	select {
	case d.updates <- msg:
	default:
		d.dropped.Add(1)
	}
}

func (d *Dashboard) Model() tea.Model {
	return model{
		startTime: time.Now(),
		updates:   d.updates,
		statsFn:   d.stats,
	}
}

// Run blocks until the user quits or ctx is done.
func (d *Dashboard) Run(ctx context.Context, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)
	_, err := tea.NewProgram(d.Model(), opts...).Run()
	if err != nil && errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

type model struct {
	startTime time.Time
	updates   chan tea.Msg
	statsFn   func() scan.RuntimeStats

	searches int
	found    int
	notFound int
	aborted  int
	world    bot.WorldReport
	stats    scan.RuntimeStats
	recent   []string
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), tickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case TickMsg:
		if m.statsFn != nil {
			m.stats = m.statsFn()
		}
		return m, tickCmd()
	case worldMsg:
		m.world = bot.WorldReport(msg)
		return m, waitForUpdate(m.updates)
	case searchMsg:
		m.searches++
		switch msg.Result.Status {
		case targeting.Found:
			m.found++
		case targeting.Aborted:
			m.aborted++
		default:
			m.notFound++
		}
		m.recent = append([]string{searchLine(bot.SearchReport(msg))}, m.recent...)
		if len(m.recent) > recentSearches {
			m.recent = m.recent[:recentSearches]
		}
		return m, waitForUpdate(m.updates)
	}
	return m, nil
}

func searchLine(rep bot.SearchReport) string {
	res := rep.Result
	took := res.Stats.Duration.Round(time.Millisecond)
	switch res.Status {
	case targeting.Found:
		return foundStyle.Render(fmt.Sprintf("target %d: fire v=%g at %.2f° (%s)",
			rep.TargetID, res.Shot.Velocity, rep.Degrees, took))
	case targeting.Aborted:
		return abortedStyle.Render(fmt.Sprintf("target %d: aborted, %s (%s)",
			rep.TargetID, res.Reason, took))
	default:
		return notFoundStyle.Render(fmt.Sprintf("target %d: no shot after %d samples (%s)",
			rep.TargetID, res.Stats.Evaluated, took))
	}
}

func (m model) View() string {
	duration := time.Since(m.startTime)
	samplesPerSec := 0.0
	if duration.Seconds() >= 1 {
		samplesPerSec = float64(m.stats.TotalSamples) / duration.Seconds()
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("gravbot") + "\n\n")
	row := func(label, format string, args ...any) {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-12s", label)))
		b.WriteString(fmt.Sprintf(format, args...) + "\n")
	}
	row("Own id:", "%d", m.world.OwnID)
	row("World:", "v%d, %d players, %d planets", m.world.Version, m.world.Players, m.world.Planets)
	row("Energy:", "%.1f", m.world.Energy)
	row("Ignored:", "%v", m.world.Ignored)
	row("Searches:", "%d (found %d, none %d, aborted %d)", m.searches, m.found, m.notFound, m.aborted)
	row("Scans:", "%d, avg %.1fms", m.stats.TotalScans, m.stats.AvgRunMs)
	row("Samples/s:", "%.0f", samplesPerSec)
	row("Uptime:", "%s", duration.Round(time.Second))

	b.WriteString("\n" + titleStyle.Render("Recent searches") + "\n")
	for _, line := range m.recent {
		b.WriteString(line + "\n")
	}
	b.WriteString("\nPress q to quit.\n")
	return b.String()
}
