package game

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func dumpSnapshot(s *Snapshot) string {
	if s == nil {
		return "<nil snapshot>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "v%d own=%d\n", s.Version(), s.OwnID())
	for _, p := range s.Planets() {
		fmt.Fprintf(&b, "planet %d (%.1f,%.1f) r=%.1f m=%.1f\n", p.ID, p.Position.X(), p.Position.Y(), p.Radius, p.Mass)
	}
	for _, p := range s.Players() {
		fmt.Fprintf(&b, "player %d (%.1f,%.1f)\n", p.ID, p.Position.X(), p.Position.Y())
	}
	return b.String()
}

func testPlanets() []Planet {
	return []Planet{
		{ID: 0, Position: mgl64.Vec2{500, 500}, Radius: 30, Mass: 1000},
		{ID: 1, Position: mgl64.Vec2{1200, 300}, Radius: 20, Mass: 400},
	}
}

func TestNewSnapshotSortsPlayers(t *testing.T) {
	players := []Player{
		{ID: 7, Position: mgl64.Vec2{10, 10}},
		{ID: 2, Position: mgl64.Vec2{20, 20}},
		{ID: 4, Position: mgl64.Vec2{30, 30}},
	}
	s, err := NewSnapshot(testPlanets(), players, 4, 1)
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}

	got := s.Players()
	for i, want := range []int{2, 4, 7} {
		if got[i].ID != want {
			t.Fatalf("players[%d].ID = %d, want %d\n%s", i, got[i].ID, want, dumpSnapshot(s))
		}
	}
	if s.Self().Position != (mgl64.Vec2{30, 30}) {
		t.Errorf("Self() = %v", s.Self())
	}
	opp := s.Opponents()
	if len(opp) != 2 || opp[0].ID != 2 || opp[1].ID != 7 {
		t.Errorf("Opponents() = %v", opp)
	}

	// The input slice must not alias the snapshot.
	players[0].Position = mgl64.Vec2{-1, -1}
	if p, _ := s.Player(7); p.Position != (mgl64.Vec2{10, 10}) {
		t.Errorf("snapshot aliased caller slice: %v", p)
	}
}

func TestNewSnapshotValidation(t *testing.T) {
	self := []Player{{ID: 1, Position: mgl64.Vec2{100, 100}}}

	tooManyPlanets := make([]Planet, MaxPlanets+1)
	for i := range tooManyPlanets {
		tooManyPlanets[i] = Planet{ID: i, Position: mgl64.Vec2{float64(i) * 10, 0}, Radius: 1, Mass: 1}
	}
	tooManyPlayers := make([]Player, MaxPlayers+1)
	for i := range tooManyPlayers {
		tooManyPlayers[i] = Player{ID: i + 1}
	}

	tests := []struct {
		name    string
		planets []Planet
		players []Player
		own     int
		want    error
	}{
		{"no planets", nil, self, 1, ErrNoPlanets},
		{"unknown own", testPlanets(), self, 9, ErrUnknownOwnID},
		{"negative radius", []Planet{{Radius: -1, Mass: 1}}, self, 1, ErrInvalidPlanet},
		{"nan mass", []Planet{{Radius: 1, Mass: math.NaN()}}, self, 1, ErrInvalidPlanet},
		{"too many planets", tooManyPlanets, self, 1, ErrTooManyPlanets},
		{"too many players", testPlanets(), tooManyPlayers, 1, ErrTooManyPlayers},
		{"duplicate player", testPlanets(), []Player{{ID: 1}, {ID: 1}}, 1, ErrDuplicatePlayer},
		{"nan player", testPlanets(), []Player{{ID: 1}, {ID: 2, Position: mgl64.Vec2{math.NaN(), 10}}}, 1, ErrInvalidPlayer},
		{"infinite self", testPlanets(), []Player{{ID: 1, Position: mgl64.Vec2{10, math.Inf(-1)}}}, 1, ErrInvalidPlayer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSnapshot(tt.planets, tt.players, tt.own, 0)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSnapshotDrifted(t *testing.T) {
	players := []Player{
		{ID: 1, Position: mgl64.Vec2{100, 100}},
		{ID: 2, Position: mgl64.Vec2{800, 400}},
		{ID: 3, Position: mgl64.Vec2{1500, 900}},
	}
	base, err := NewSnapshot(testPlanets(), players, 1, 1)
	if err != nil {
		t.Fatalf("NewSnapshot: %v", err)
	}

	moved := func(id int, pos mgl64.Vec2) *Snapshot {
		ps := base.Players()
		for i := range ps {
			if ps[i].ID == id {
				ps[i].Position = pos
			}
		}
		s, err := NewSnapshot(base.Planets(), ps, 1, 2)
		if err != nil {
			t.Fatalf("NewSnapshot: %v", err)
		}
		return s
	}

	if base.Drifted(base, 2) {
		t.Errorf("snapshot drifted from itself")
	}
	same, _ := NewSnapshot(testPlanets(), players, 1, 2)
	if base.Drifted(same, 2) {
		t.Errorf("identical rebuild reported as drift")
	}
	if !base.Drifted(moved(1, mgl64.Vec2{101, 100}), 2) {
		t.Errorf("own move not detected")
	}
	if !base.Drifted(moved(2, mgl64.Vec2{800, 401}), 2) {
		t.Errorf("target move not detected")
	}
	if base.Drifted(moved(3, mgl64.Vec2{0, 0}), 2) {
		t.Errorf("unwatched opponent move reported as drift")
	}

	planets := testPlanets()
	planets[1].Mass++
	relaid, _ := NewSnapshot(planets, players, 1, 2)
	if !base.Drifted(relaid, 2) {
		t.Errorf("planet change not detected")
	}

	gone, _ := NewSnapshot(testPlanets(), players[:1], 1, 2)
	if !base.Drifted(gone, 2) {
		t.Errorf("departed target not detected")
	}
	if !base.Drifted(nil, 2) {
		t.Errorf("nil latest must count as drift")
	}
}

func TestFieldContains(t *testing.T) {
	f := DefaultField()
	if !f.Contains(-FieldMargin, -FieldMargin) || !f.Contains(FieldWidth+FieldMargin, FieldHeight+FieldMargin) {
		t.Errorf("field edges must be inside")
	}
	if f.Contains(-FieldMargin-0.01, 0) || f.Contains(0, FieldHeight+FieldMargin+0.01) {
		t.Errorf("points past the margin must be outside")
	}
	if math.Abs(FieldWidth*FieldHeight-BattlefieldArea) > 1e-6 {
		t.Errorf("field area = %v, want %v", FieldWidth*FieldHeight, BattlefieldArea)
	}
}
