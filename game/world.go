package game

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrNotReady      = errors.New("world not ready")
	ErrUnknownPlayer = errors.New("unknown player")
)

type EventKind uint8

const (
	EventOwnID EventKind = iota + 1
	EventPlayerLeft
	EventPlayerMoved
	EventPlanets
	EventEnergy
	EventShotBegin
	EventShotEnd
)

func (k EventKind) String() string {
	switch k {
	case EventOwnID:
		return "own_id"
	case EventPlayerLeft:
		return "player_left"
	case EventPlayerMoved:
		return "player_moved"
	case EventPlanets:
		return "planets"
	case EventEnergy:
		return "energy"
	case EventShotBegin:
		return "shot_begin"
	case EventShotEnd:
		return "shot_end"
	default:
		return fmt.Sprintf("event(%d)", uint8(k))
	}
}

// Event is one decoded server message. Only the fields relevant to Kind are set.
type Event struct {
	Kind     EventKind
	PlayerID int
	Position mgl64.Vec2
	Planets  []Planet
	Energy   float64
}

// World tracks the live battlefield. It is safe for concurrent use, but is
// normally written by a single goroutine (the bot loop).
type World struct {
	mu      sync.RWMutex
	ownID   int
	hasOwn  bool
	players map[int]mgl64.Vec2
	planets []Planet
	energy  float64
	version uint64

	snap *Snapshot
}

func NewWorld() *World {
	return &World{players: make(map[int]mgl64.Vec2)}
}

// Apply folds ev into the world. Events that change the targeting picture
// bump the version so the next Snapshot call rebuilds.
func (w *World) Apply(ev Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch ev.Kind {
	case EventOwnID:
		w.ownID = ev.PlayerID
		w.hasOwn = true
	case EventPlayerLeft:
		if _, ok := w.players[ev.PlayerID]; !ok {
			return fmt.Errorf("%w: %d", ErrUnknownPlayer, ev.PlayerID)
		}
		delete(w.players, ev.PlayerID)
	case EventPlayerMoved:
		w.players[ev.PlayerID] = ev.Position
	case EventPlanets:
		w.planets = slices.Clone(ev.Planets)
	case EventEnergy:
		w.energy = math.Floor(ev.Energy)
		return nil
	case EventShotBegin, EventShotEnd:
		return nil
	default:
		return fmt.Errorf("apply %s: unsupported event", ev.Kind)
	}

	w.version++
	w.snap = nil
	return nil
}

// Snapshot returns the snapshot for the current version, building it on first
// use. The same pointer is returned until the world changes again.
func (w *World) Snapshot() (*Snapshot, error) {
	w.mu.RLock()
	if w.snap != nil {
		s := w.snap
		w.mu.RUnlock()
		return s, nil
	}
	w.mu.RUnlock()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.snap != nil {
		return w.snap, nil
	}
	if !w.hasOwn {
		return nil, fmt.Errorf("%w: own id not received", ErrNotReady)
	}

	players := make([]Player, 0, len(w.players))
	for id, pos := range w.players {
		players = append(players, Player{ID: id, Position: pos})
	}

	s, err := NewSnapshot(w.planets, players, w.ownID, w.version)
	if err != nil {
		return nil, fmt.Errorf("build snapshot v%d: %w", w.version, err)
	}
	w.snap = s
	return s, nil
}

// OwnID returns the own player id, if the server has sent it.
func (w *World) OwnID() (int, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.ownID, w.hasOwn
}

func (w *World) HasPlayer(id int) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.players[id]
	return ok
}

func (w *World) Energy() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.energy
}

func (w *World) Version() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.version
}

// Opponents returns the ids of all known players except the own one, sorted.
func (w *World) Opponents() []int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]int, 0, len(w.players))
	for id := range w.players {
		if w.hasOwn && id == w.ownID {
			continue
		}
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
