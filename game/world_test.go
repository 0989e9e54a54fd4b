package game

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestWorldSnapshotLifecycle(t *testing.T) {
	w := NewWorld()

	if _, err := w.Snapshot(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("empty world snapshot err = %v, want ErrNotReady", err)
	}

	mustApply := func(ev Event) {
		t.Helper()
		if err := w.Apply(ev); err != nil {
			t.Fatalf("Apply(%s): %v", ev.Kind, err)
		}
	}

	mustApply(Event{Kind: EventOwnID, PlayerID: 3})
	mustApply(Event{Kind: EventPlayerMoved, PlayerID: 3, Position: mgl64.Vec2{100, 200}})

	if _, err := w.Snapshot(); !errors.Is(err, ErrNoPlanets) {
		t.Fatalf("snapshot without planets err = %v, want ErrNoPlanets", err)
	}

	mustApply(Event{Kind: EventPlanets, Planets: testPlanets()})
	mustApply(Event{Kind: EventPlayerMoved, PlayerID: 5, Position: mgl64.Vec2{900, 400}})

	s1, err := w.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	s1again, _ := w.Snapshot()
	if s1 != s1again {
		t.Errorf("unchanged world rebuilt its snapshot")
	}

	// Energy and shot events do not touch the targeting picture.
	mustApply(Event{Kind: EventEnergy, Energy: 42.7})
	mustApply(Event{Kind: EventShotEnd})
	if s, _ := w.Snapshot(); s != s1 {
		t.Errorf("energy update rebuilt snapshot")
	}
	if w.Energy() != 42 {
		t.Errorf("Energy() = %v, want 42", w.Energy())
	}

	mustApply(Event{Kind: EventPlayerMoved, PlayerID: 5, Position: mgl64.Vec2{901, 400}})
	s2, err := w.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if s2 == s1 || s2.Version() <= s1.Version() {
		t.Fatalf("move did not produce a newer snapshot: v%d -> v%d", s1.Version(), s2.Version())
	}
	if p, _ := s1.Player(5); p.Position != (mgl64.Vec2{900, 400}) {
		t.Errorf("old snapshot mutated: %v", p)
	}
	if !s1.Drifted(s2, 5) {
		t.Errorf("expected drift between versions")
	}

	if got := w.Opponents(); len(got) != 1 || got[0] != 5 {
		t.Errorf("Opponents() = %v, want [5]", got)
	}

	mustApply(Event{Kind: EventPlayerLeft, PlayerID: 5})
	if w.HasPlayer(5) {
		t.Errorf("player 5 still present after leaving")
	}
	if err := w.Apply(Event{Kind: EventPlayerLeft, PlayerID: 5}); !errors.Is(err, ErrUnknownPlayer) {
		t.Errorf("double leave err = %v, want ErrUnknownPlayer", err)
	}
}
