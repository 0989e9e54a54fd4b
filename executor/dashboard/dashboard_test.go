package dashboard

import (
	"strings"
	"testing"
	"time"

	"github.com/brensch/gravbot/ballistics"
	"github.com/brensch/gravbot/executor/bot"
	"github.com/brensch/gravbot/executor/scan"
	"github.com/brensch/gravbot/executor/targeting"
	tea "github.com/charmbracelet/bubbletea"
)

func TestModelCountsSearches(t *testing.T) {
	d := New(func() scan.RuntimeStats { return scan.RuntimeStats{TotalScans: 9, AvgRunMs: 1.5} })
	var m tea.Model = d.Model()

	reports := []targeting.Result{
		{Status: targeting.Found, Shot: ballistics.Shot{Velocity: 11}, HitID: 2},
		{Status: targeting.NotFound, Stats: targeting.Stats{Evaluated: 10800}},
		{Status: targeting.Aborted, Reason: targeting.ReasonWorldChanged},
	}
	for i, res := range reports {
		var cmd tea.Cmd
		m, cmd = m.Update(searchMsg(bot.SearchReport{TargetID: i + 2, Degrees: 12.25, Result: res}))
		if cmd == nil {
			t.Fatalf("search %d: no follow-up command", i)
		}
	}
	m, _ = m.Update(worldMsg(bot.WorldReport{OwnID: 1, Version: 7, Players: 3, Planets: 5, Ignored: []int{3}}))
	m, _ = m.Update(TickMsg(time.Now()))

	mm := m.(model)
	if mm.searches != 3 || mm.found != 1 || mm.notFound != 1 || mm.aborted != 1 {
		t.Fatalf("counts = %d/%d/%d/%d", mm.searches, mm.found, mm.notFound, mm.aborted)
	}
	if mm.stats.TotalScans != 9 {
		t.Errorf("stats not refreshed on tick: %+v", mm.stats)
	}

	view := m.View()
	for _, want := range []string{
		"v7, 3 players, 5 planets",
		"[3]",
		"target 2: fire v=11 at 12.25°",
		"target 3: no shot after 10800 samples",
		"target 4: aborted, world_changed",
		"Press q to quit.",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if strings.Index(view, "target 4") > strings.Index(view, "target 2") {
		t.Error("recent searches not newest first")
	}
}

func TestModelKeepsRecentBounded(t *testing.T) {
	var m tea.Model = New(nil).Model()
	for i := 0; i < recentSearches+5; i++ {
		m, _ = m.Update(searchMsg(bot.SearchReport{TargetID: i}))
	}
	if got := len(m.(model).recent); got != recentSearches {
		t.Fatalf("recent = %d, want %d", got, recentSearches)
	}
}

func TestModelQuits(t *testing.T) {
	m := New(nil).Model()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("no command for q")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q did not quit")
	}
}

func TestDashboardDropsWhenFull(t *testing.T) {
	d := New(nil)
	for i := 0; i < cap(d.updates)+3; i++ {
		d.RecordWorld(bot.WorldReport{})
	}
	if d.dropped.Load() != 3 {
		t.Fatalf("dropped = %d, want 3", d.dropped.Load())
	}
}
