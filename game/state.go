// Package game defines the world model for the gravity artillery bot.
//
// A Snapshot is an immutable, validated view of the battlefield that search
// code can share freely between goroutines. World is the mutable tracker that
// applies server events and hands out a fresh Snapshot after every material
// change.
package game

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrUnknownOwnID    = errors.New("own player id not present in snapshot")
	ErrNoPlanets       = errors.New("snapshot has no planets")
	ErrTooManyPlanets  = errors.New("too many planets")
	ErrTooManyPlayers  = errors.New("too many players")
	ErrInvalidPlanet   = errors.New("invalid planet")
	ErrDuplicatePlayer = errors.New("duplicate player id")
	ErrInvalidPlayer   = errors.New("invalid player")
)

type Planet struct {
	ID       int
	Position mgl64.Vec2
	Radius   float64
	Mass     float64
}

type Player struct {
	ID       int
	Position mgl64.Vec2
}

// Snapshot is the complete state needed for one targeting search.
// Players are kept in ascending id order.
type Snapshot struct {
	planets []Planet
	players []Player
	ownID   int
	version uint64
}

// NewSnapshot validates and copies the given layout.
func NewSnapshot(planets []Planet, players []Player, ownID int, version uint64) (*Snapshot, error) {
	if len(planets) == 0 {
		return nil, ErrNoPlanets
	}
	if len(planets) > MaxPlanets {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyPlanets, len(planets), MaxPlanets)
	}
	if len(players) > MaxPlayers {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyPlayers, len(players), MaxPlayers)
	}

	for _, p := range planets {
		if !finite(p.Radius) || !finite(p.Mass) || p.Radius < 0 || p.Mass < 0 ||
			!finite(p.Position.X()) || !finite(p.Position.Y()) {
			return nil, fmt.Errorf("%w: id=%d radius=%v mass=%v", ErrInvalidPlanet, p.ID, p.Radius, p.Mass)
		}
	}
	for _, p := range players {
		if !finite(p.Position.X()) || !finite(p.Position.Y()) {
			return nil, fmt.Errorf("%w: id=%d position=%v", ErrInvalidPlayer, p.ID, p.Position)
		}
	}

	s := &Snapshot{
		planets: slices.Clone(planets),
		players: slices.Clone(players),
		ownID:   ownID,
		version: version,
	}
	slices.SortFunc(s.players, func(a, b Player) int { return a.ID - b.ID })

	foundOwn := false
	for i, p := range s.players {
		if i > 0 && s.players[i-1].ID == p.ID {
			return nil, fmt.Errorf("%w: %d", ErrDuplicatePlayer, p.ID)
		}
		if p.ID == ownID {
			foundOwn = true
		}
	}
	if !foundOwn {
		return nil, fmt.Errorf("%w: %d", ErrUnknownOwnID, ownID)
	}

	return s, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (s *Snapshot) OwnID() int      { return s.ownID }
func (s *Snapshot) Version() uint64 { return s.version }
func (s *Snapshot) NumPlanets() int { return len(s.planets) }
func (s *Snapshot) NumPlayers() int { return len(s.players) }

// Planets returns a copy of the planet layout.
func (s *Snapshot) Planets() []Planet {
	return slices.Clone(s.planets)
}

// Players returns a copy of all players, including the own player.
func (s *Snapshot) Players() []Player {
	return slices.Clone(s.players)
}

// Player looks up a player by id.
func (s *Snapshot) Player(id int) (Player, bool) {
	i, ok := slices.BinarySearchFunc(s.players, id, func(p Player, id int) int { return p.ID - id })
	if !ok {
		return Player{}, false
	}
	return s.players[i], true
}

// Self returns the own player. NewSnapshot guarantees it exists.
func (s *Snapshot) Self() Player {
	p, _ := s.Player(s.ownID)
	return p
}

// Opponents returns every player except the own one, in id order.
func (s *Snapshot) Opponents() []Player {
	out := make([]Player, 0, len(s.players))
	for _, p := range s.players {
		if p.ID != s.ownID {
			out = append(out, p)
		}
	}
	return out
}

// Drifted reports whether latest differs from s in any way that invalidates a
// search: the planet layout, the own position, or the position of any of the
// watched player ids. A watched player missing from either side counts as
// drift.
func (s *Snapshot) Drifted(latest *Snapshot, watch ...int) bool {
	if latest == nil {
		return true
	}
	if latest == s {
		return false
	}
	if latest.ownID != s.ownID {
		return true
	}
	if !slices.Equal(s.planets, latest.planets) {
		return true
	}

	ids := append([]int{s.ownID}, watch...)
	for _, id := range ids {
		a, okA := s.Player(id)
		b, okB := latest.Player(id)
		if !okA || !okB || a.Position != b.Position {
			return true
		}
	}
	return false
}
