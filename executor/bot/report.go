package bot

import (
	"slices"
	"time"

	"github.com/brensch/gravbot/ballistics"
	"github.com/brensch/gravbot/executor/targeting"
	"github.com/brensch/gravbot/game"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// SearchReport describes one finished search. Degrees is only set when the
// search found a shot.
type SearchReport struct {
	ID       uuid.UUID
	Time     time.Time
	OwnID    int
	TargetID int
	Mode     ballistics.Mode
	Version  uint64
	Planets  int
	Players  int
	Self     mgl64.Vec2
	Target   mgl64.Vec2
	Degrees  float64
	Result   targeting.Result
}

// WorldReport is sent after every event that changed the world.
type WorldReport struct {
	Time    time.Time
	Event   game.EventKind
	Version uint64
	OwnID   int
	Players int
	Planets int
	Energy  float64
	Ignored []int
}

// Observer receives reports from the bot goroutine. Implementations must not
// block.
type Observer interface {
	RecordSearch(SearchReport)
	RecordWorld(WorldReport)
}

func (b *Bot) notifySearch(rep SearchReport) {
	for _, o := range b.observers {
		o.RecordSearch(rep)
	}
}

func (b *Bot) notifyWorld(ev game.Event) {
	if len(b.observers) == 0 {
		return
	}
	rep := WorldReport{
		Time:    time.Now(),
		Event:   ev.Kind,
		Version: b.world.Version(),
		Energy:  b.world.Energy(),
		Players: len(b.world.Opponents()),
	}
	if own, ok := b.world.OwnID(); ok {
		rep.OwnID = own
	}
	if snap, err := b.world.Snapshot(); err == nil {
		rep.Players = snap.NumPlayers()
		rep.Planets = snap.NumPlanets()
	}
	for id := range b.ignored {
		rep.Ignored = append(rep.Ignored, id)
	}
	slices.Sort(rep.Ignored)
	for _, o := range b.observers {
		o.RecordWorld(rep)
	}
}
