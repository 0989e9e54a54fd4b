package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/brensch/gravbot/ballistics"
	"github.com/brensch/gravbot/executor/bot"
	"github.com/brensch/gravbot/executor/scan"
	"github.com/brensch/gravbot/executor/targeting"
	"github.com/brensch/gravbot/game"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// scenario is a frozen battlefield, usually copied out of a feed message or a
// bug report.
type scenario struct {
	OwnID      int       `json:"own_id"`
	TargetID   int       `json:"target_id"`
	Mode       string    `json:"mode,omitempty"`
	Velocities []float64 `json:"velocities,omitempty"`
	Planets    []struct {
		ID     int     `json:"id"`
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Radius float64 `json:"radius"`
		Mass   float64 `json:"mass"`
	} `json:"planets"`
	Players []struct {
		ID int     `json:"id"`
		X  float64 `json:"x"`
		Y  float64 `json:"y"`
	} `json:"players"`
}

func loadScenario(path string) (scenario, error) {
	var sc scenario
	b, err := os.ReadFile(path)
	if err != nil {
		return sc, err
	}
	if err := json.Unmarshal(b, &sc); err != nil {
		return sc, fmt.Errorf("decode %s: %w", path, err)
	}
	return sc, nil
}

func (sc scenario) snapshot() (*game.Snapshot, error) {
	planets := make([]game.Planet, len(sc.Planets))
	for i, p := range sc.Planets {
		planets[i] = game.Planet{ID: p.ID, Position: mgl64.Vec2{p.X, p.Y}, Radius: p.Radius, Mass: p.Mass}
	}
	players := make([]game.Player, len(sc.Players))
	for i, p := range sc.Players {
		players[i] = game.Player{ID: p.ID, Position: mgl64.Vec2{p.X, p.Y}}
	}
	return game.NewSnapshot(planets, players, sc.OwnID, 1)
}

func (sc scenario) targeting() (targeting.Config, error) {
	cfg := targeting.DefaultConfig()
	switch sc.Mode {
	case "", "target":
	case "players":
		cfg.Mode = ballistics.ModePlayers
	default:
		return cfg, fmt.Errorf("unknown mode %q", sc.Mode)
	}
	if len(sc.Velocities) > 0 {
		cfg.Velocities = sc.Velocities
	}
	return cfg, cfg.Validate()
}

// searchScenario runs one search with freshness checks disabled.
func searchScenario(ctx context.Context, sc scenario, poolCfg scan.Config, logger *slog.Logger) (bot.SearchReport, error) {
	snap, err := sc.snapshot()
	if err != nil {
		return bot.SearchReport{}, err
	}
	tcfg, err := sc.targeting()
	if err != nil {
		return bot.SearchReport{}, err
	}
	sim, err := ballistics.NewSimulator(ballistics.DefaultConfig())
	if err != nil {
		return bot.SearchReport{}, err
	}
	coord, err := targeting.NewCoordinator(tcfg, scan.NewPool(sim, poolCfg), nil, logger)
	if err != nil {
		return bot.SearchReport{}, err
	}

	res, err := coord.Search(ctx, snap, sc.TargetID)
	if err != nil {
		return bot.SearchReport{}, err
	}
	self := snap.Self()
	target, _ := snap.Player(sc.TargetID)
	rep := bot.SearchReport{
		ID:       uuid.New(),
		Time:     time.Now(),
		OwnID:    sc.OwnID,
		TargetID: sc.TargetID,
		Mode:     tcfg.Mode,
		Version:  snap.Version(),
		Planets:  snap.NumPlanets(),
		Players:  snap.NumPlayers(),
		Self:     self.Position,
		Target:   target.Position,
		Result:   res,
	}
	if res.Status == targeting.Found {
		rep.Degrees = ballistics.Degrees(res.Shot.Angle)
	}
	return rep, nil
}
