// Package bot runs the play loop: apply server events to the world, pick an
// opponent, search for a shot and fire it.
package bot

//go:generate go tool mockgen -destination=./mocks/conn_mock.go -package=mocks . Conn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/brensch/gravbot/ballistics"
	"github.com/brensch/gravbot/executor/scan"
	"github.com/brensch/gravbot/executor/targeting"
	"github.com/brensch/gravbot/game"
	"github.com/google/uuid"
)

// Conn is the bot's view of the server connection.
type Conn interface {
	// Next returns the next event. ok is false when nothing is pending.
	Next(ctx context.Context) (ev game.Event, ok bool, err error)
	// Poll is Next without waiting for a message to start arriving.
	Poll(ctx context.Context) (ev game.Event, ok bool, err error)
	SetName(ctx context.Context, name string) error
	Fire(ctx context.Context, velocity, degrees float64) error
}

type Config struct {
	Targeting targeting.Config
	Names     []string
	Seed      uint64
}

func DefaultConfig() Config {
	return Config{
		Targeting: targeting.DefaultConfig(),
		Names:     DefaultNames,
		Seed:      uint64(time.Now().UnixNano()),
	}
}

// DefaultNames are cycled through whenever the planet layout changes.
var DefaultNames = []string{
	"Slingshot Sally",
	"Periapsis",
	"Hohmann's Revenge",
	"Escape Velocity",
	"Lagrange Lurker",
	"Roche Limit",
	"Tidal Lock",
	"Apoapsis Andy",
	"Gravity Well Wisher",
	"Orbital Decay",
}

type Bot struct {
	cfg    Config
	conn   Conn
	world  *game.World
	coord  *targeting.Coordinator
	rng    *rand.Rand
	logger *slog.Logger

	observers []Observer

	ignored map[int]bool
	name    string
	warned  bool
}

func New(conn Conn, pool *scan.Pool, cfg Config, logger *slog.Logger, observers ...Observer) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bot{
		cfg:       cfg,
		conn:      conn,
		world:     game.NewWorld(),
		rng:       rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		logger:    logger.With("component", "bot"),
		observers: observers,
		ignored:   make(map[int]bool),
	}
	coord, err := targeting.NewCoordinator(cfg.Targeting, pool, b, logger)
	if err != nil {
		return nil, fmt.Errorf("new bot: %w", err)
	}
	b.coord = coord
	return b, nil
}

func (b *Bot) World() *game.World { return b.world }

// Run loops until ctx is done or the connection fails. Pending events always
// take priority over searching.
func (b *Bot) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		handled, err := b.processIncoming(ctx, b.conn.Next)
		if err != nil {
			return err
		}
		if handled {
			continue
		}
		if err := b.scanField(ctx); err != nil {
			return err
		}
	}
}

// Latest applies every event that has already arrived and returns the newest
// snapshot. The coordinator calls it at its freshness checkpoints, so it never
// waits on an idle connection.
func (b *Bot) Latest(ctx context.Context) (*game.Snapshot, error) {
	for {
		handled, err := b.processIncoming(ctx, b.conn.Poll)
		if err != nil {
			return nil, err
		}
		if !handled {
			break
		}
	}
	snap, err := b.world.Snapshot()
	if err != nil {
		// A world we cannot snapshot matches nothing we aimed at.
		b.logger.Debug("latest snapshot unavailable", "error", err)
		return nil, nil
	}
	return snap, nil
}

type receiveFunc func(ctx context.Context) (game.Event, bool, error)

func (b *Bot) processIncoming(ctx context.Context, receive receiveFunc) (bool, error) {
	ev, ok, err := receive(ctx)
	if err != nil {
		return false, fmt.Errorf("receive: %w", err)
	}
	if !ok {
		return false, nil
	}
	if err := b.handle(ctx, ev); err != nil {
		return true, err
	}
	return true, nil
}

func (b *Bot) handle(ctx context.Context, ev game.Event) error {
	own, hasOwn := b.world.OwnID()
	joined := ev.Kind == game.EventPlayerMoved && !b.world.HasPlayer(ev.PlayerID)

	if err := b.world.Apply(ev); err != nil {
		b.logger.Warn("dropping event", "event", ev.Kind.String(), "error", err)
		return nil
	}

	switch ev.Kind {
	case game.EventOwnID:
		b.logger.Info("own id", "id", ev.PlayerID)
	case game.EventPlayerMoved:
		if hasOwn && ev.PlayerID == own {
			b.logger.Info("moved", "x", ev.Position.X(), "y", ev.Position.Y())
			clear(b.ignored)
		} else {
			if joined {
				b.logger.Info("player joined", "id", ev.PlayerID, "x", ev.Position.X(), "y", ev.Position.Y())
			} else {
				b.logger.Info("player moved", "id", ev.PlayerID, "x", ev.Position.X(), "y", ev.Position.Y())
			}
			delete(b.ignored, ev.PlayerID)
		}
		b.warned = false
	case game.EventPlayerLeft:
		b.logger.Info("player left", "id", ev.PlayerID)
		delete(b.ignored, ev.PlayerID)
	case game.EventPlanets:
		b.logger.Info("planet layout", "planets", len(ev.Planets))
		clear(b.ignored)
		b.warned = false
		if err := b.rename(ctx); err != nil {
			return err
		}
	case game.EventEnergy:
		b.logger.Debug("energy", "energy", b.world.Energy())
	}

	if ev.Kind != game.EventShotBegin && ev.Kind != game.EventShotEnd {
		b.notifyWorld(ev)
	}
	return nil
}

func (b *Bot) rename(ctx context.Context) error {
	choices := make([]string, 0, len(b.cfg.Names))
	for _, n := range b.cfg.Names {
		if n != b.name {
			choices = append(choices, n)
		}
	}
	if len(choices) == 0 {
		return nil
	}
	name := choices[b.rng.IntN(len(choices))]
	if err := b.conn.SetName(ctx, name); err != nil {
		return fmt.Errorf("set name: %w", err)
	}
	b.name = name
	b.logger.Info("renamed", "name", name)
	return nil
}

func (b *Bot) candidates() []int {
	opp := b.world.Opponents()
	return slices.DeleteFunc(opp, func(id int) bool { return b.ignored[id] })
}

func (b *Bot) scanField(ctx context.Context) error {
	targets := b.candidates()
	if len(targets) == 0 {
		return nil
	}

	snap, err := b.world.Snapshot()
	if err != nil {
		// Not ready yet (no own id or no planets), or a layout we refuse to
		// search. Either way wait for the next event.
		if !errors.Is(err, game.ErrNotReady) && !b.warned {
			b.logger.Warn("world not searchable", "error", err)
			b.warned = true
		}
		return nil
	}

	target := targets[b.rng.IntN(len(targets))]
	if b.cfg.Targeting.Mode == ballistics.ModePlayers {
		target = -1
	}

	rep := SearchReport{
		ID:       uuid.New(),
		Time:     time.Now(),
		OwnID:    snap.OwnID(),
		TargetID: target,
		Mode:     b.cfg.Targeting.Mode,
		Version:  snap.Version(),
		Planets:  snap.NumPlanets(),
		Players:  snap.NumPlayers(),
		Self:     snap.Self().Position,
	}
	if p, ok := snap.Player(target); ok {
		rep.Target = p.Position
	}

	logger := b.logger.With("search", rep.ID.String(), "target", target)
	logger.Info("searching")

	res, err := b.coord.Search(ctx, snap, target)
	rep.Result = res
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, targeting.ErrUnknownTarget) || errors.Is(err, targeting.ErrNoOpponents) {
			logger.Warn("search rejected", "error", err)
			return nil
		}
		return fmt.Errorf("search: %w", err)
	}

	switch res.Status {
	case targeting.Found:
		rep.Degrees = ballistics.Degrees(res.Shot.Angle)
		logger.Info("firing", "velocity", res.Shot.Velocity, "degrees", rep.Degrees, "hit", res.HitID,
			"evaluated", res.Stats.Evaluated, "took", res.Stats.Duration)
		if err := b.conn.Fire(ctx, res.Shot.Velocity, rep.Degrees); err != nil {
			return fmt.Errorf("fire: %w", err)
		}
	case targeting.NotFound:
		logger.Info("no solution", "evaluated", res.Stats.Evaluated, "took", res.Stats.Duration)
	case targeting.Aborted:
		logger.Info("search aborted", "reason", res.Reason.String())
	}
	b.notifySearch(rep)

	if res.Status == targeting.Aborted {
		return nil
	}
	if target >= 0 {
		b.ignored[target] = true
	} else {
		for _, id := range targets {
			b.ignored[id] = true
		}
	}
	if len(b.candidates()) == 0 {
		logger.Info("no remaining targets")
	}
	return nil
}
