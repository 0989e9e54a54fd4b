// Package targeting turns a world snapshot into a firing solution.
//
// A search runs in two stages per velocity. The broad stage sweeps the whole
// circle with a generous hit radius and keeps the closest few angles. The
// fine stage re-sweeps a narrow window around each of them with the real hit
// radius. Before and after fine work the coordinator asks its WorldSource for
// the newest snapshot and abandons the search if anything it aimed at moved.
package targeting

//go:generate go tool mockgen -destination=./mocks/world_source_mock.go -package=mocks . WorldSource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/brensch/gravbot/ballistics"
	"github.com/brensch/gravbot/executor/scan"
	"github.com/brensch/gravbot/game"
)

var (
	ErrNilSnapshot   = errors.New("nil snapshot")
	ErrUnknownTarget = errors.New("target not in snapshot")
	ErrNoOpponents   = errors.New("no opponents to shoot at")
)

// WorldSource hands out the newest snapshot, applying any pending updates
// first. A nil snapshot counts as drift.
type WorldSource interface {
	Latest(ctx context.Context) (*game.Snapshot, error)
}

type Status uint8

const (
	NotFound Status = iota
	Found
	Aborted
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case Aborted:
		return "aborted"
	default:
		return "not_found"
	}
}

type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonWorldChanged
	ReasonCancelled
)

func (r Reason) String() string {
	switch r {
	case ReasonWorldChanged:
		return "world_changed"
	case ReasonCancelled:
		return "cancelled"
	default:
		return ""
	}
}

type Stats struct {
	BroadScans int
	FineScans  int
	Candidates int
	Evaluated  int
	Duration   time.Duration
}

type Result struct {
	Status Status
	Reason Reason
	Shot   ballistics.Shot
	HitID  int
	Stats  Stats
}

type Coordinator struct {
	cfg    Config
	pool   *scan.Pool
	source WorldSource
	logger *slog.Logger
}

// NewCoordinator builds a coordinator. A nil source disables the freshness
// checks, which is what offline tools want.
func NewCoordinator(cfg Config, pool *scan.Pool, source WorldSource, logger *slog.Logger) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{cfg: cfg, pool: pool, source: source, logger: logger.With("component", "targeting")}, nil
}

func (c *Coordinator) Config() Config { return c.cfg }

type candidate struct {
	angle float64
	miss  float64
}

// Search looks for a shot from the own player at targetID. In ModePlayers
// targetID is ignored and any opponent counts.
func (c *Coordinator) Search(ctx context.Context, snap *game.Snapshot, targetID int) (res Result, err error) {
	start := time.Now()
	res.HitID = -1
	defer func() { res.Stats.Duration = time.Since(start) }()

	if snap == nil {
		return res, ErrNilSnapshot
	}

	self := snap.Self()
	params := ballistics.Params{
		Mode:      c.cfg.Mode,
		Launch:    self.Position,
		ShooterID: self.ID,
		TargetID:  -1,
	}

	var watch []int
	var aims []float64
	if c.cfg.Mode == ballistics.ModePlayers {
		opp := snap.Opponents()
		if len(opp) == 0 {
			return res, ErrNoOpponents
		}
		for _, p := range opp {
			watch = append(watch, p.ID)
			aims = append(aims, ballistics.AngleTo(self.Position, p.Position))
		}
	} else {
		target, ok := snap.Player(targetID)
		if !ok || targetID == self.ID {
			return res, fmt.Errorf("%w: %d", ErrUnknownTarget, targetID)
		}
		params.Target = target.Position
		params.TargetID = target.ID
		watch = []int{target.ID}
		aims = []float64{ballistics.AngleTo(self.Position, target.Position)}
	}

	bodies := ballistics.Compile(snap)
	logger := c.logger.With("target", targetID, "mode", c.cfg.Mode.String(), "version", snap.Version())

	for _, velocity := range c.cfg.Velocities {
		broad := c.stageJob(bodies, params, c.cfg.Broad)
		broad.Shots = broadShots(velocity, c.cfg.Broad.Samples)
		out := c.pool.Run(ctx, broad, nil)
		res.Stats.BroadScans++
		res.Stats.Evaluated += out.Evaluated
		if err := ctx.Err(); err != nil {
			res.Status, res.Reason = Aborted, ReasonCancelled
			return res, err
		}

		cands := rankCandidates(broad.Shots, out.Outcomes, c.cfg.Broad, aims)
		res.Stats.Candidates += len(cands)
		logger.Debug("broad stage done", "velocity", velocity, "evaluated", out.Evaluated, "candidates", len(cands))
		if len(cands) == 0 {
			continue
		}

		stale, err := c.stale(ctx, snap, watch)
		if err != nil {
			return res, err
		}
		if stale {
			logger.Debug("world changed before fine stage", "velocity", velocity)
			res.Status, res.Reason = Aborted, ReasonWorldChanged
			return res, nil
		}

		for _, cand := range cands {
			fine := c.stageJob(bodies, params, c.cfg.Fine)
			fine.Shots = fineShots(cand.angle, velocity, c.cfg.Fine)
			out := c.pool.Run(ctx, fine, nil)
			res.Stats.FineScans++
			res.Stats.Evaluated += out.Evaluated
			if err := ctx.Err(); err != nil {
				res.Status, res.Reason = Aborted, ReasonCancelled
				return res, err
			}

			idx := firstHit(out.Outcomes)

			stale, err := c.stale(ctx, snap, watch)
			if err != nil {
				return res, err
			}
			if stale {
				logger.Debug("world changed after fine stage", "velocity", velocity, "candidate", cand.angle)
				res.Status, res.Reason = Aborted, ReasonWorldChanged
				return res, nil
			}

			if idx >= 0 {
				res.Status = Found
				res.Shot = fine.Shots[idx]
				res.HitID = out.Outcomes[idx].HitID
				logger.Debug("solution found", "velocity", velocity, "angle", res.Shot.Angle, "hit", res.HitID)
				return res, nil
			}
		}
	}

	res.Status = NotFound
	return res, nil
}

func (c *Coordinator) stageJob(bodies *ballistics.Bodies, params ballistics.Params, st Stage) *scan.Job {
	params.HitRadius = st.HitRadius
	params.SelfExclusion = st.SelfExclusion
	return &scan.Job{Bodies: bodies, Params: params, StopOnHit: st.StopOnHit}
}

func (c *Coordinator) stale(ctx context.Context, snap *game.Snapshot, watch []int) (bool, error) {
	if c.source == nil {
		return false, nil
	}
	latest, err := c.source.Latest(ctx)
	if err != nil {
		return false, fmt.Errorf("freshness check: %w", err)
	}
	return snap.Drifted(latest, watch...), nil
}

// broadShots spreads n angles uniformly over [-pi, pi).
func broadShots(velocity float64, n int) []ballistics.Shot {
	shots := make([]ballistics.Shot, n)
	step := 2 * math.Pi / float64(n)
	for i := range shots {
		shots[i] = ballistics.Shot{Angle: -math.Pi + float64(i)*step, Velocity: velocity}
	}
	return shots
}

// fineShots spreads n angles evenly over the closed window around center.
func fineShots(center, velocity float64, st Stage) []ballistics.Shot {
	n := st.Samples
	shots := make([]ballistics.Shot, n)
	if n == 1 {
		shots[0] = ballistics.Shot{Angle: center, Velocity: velocity}
		return shots
	}
	lo := center - st.HalfWidth
	step := 2 * st.HalfWidth / float64(n-1)
	for i := range shots {
		shots[i] = ballistics.Shot{Angle: lo + float64(i)*step, Velocity: velocity}
	}
	return shots
}

// rankCandidates keeps the TopK evaluated shots closer than AcceptMiss,
// closest first, with ties in angle order. The sweep is a circle: a run of
// neighbouring hits collapses into one candidate at the middle of its arc with
// a miss of zero, even when the run crosses from the last sample back to the
// first. When every sample hits the run has no middle, so the aims (straight
// lines at whatever we may hit) stand in for it.
func rankCandidates(shots []ballistics.Shot, outcomes []ballistics.Outcome, st Stage, aims []float64) []candidate {
	n := len(outcomes)
	cands := make([]candidate, 0, n)

	first := slices.IndexFunc(outcomes, func(o ballistics.Outcome) bool { return o.Kind != ballistics.Hit })
	if first < 0 {
		for _, a := range aims {
			cands = append(cands, candidate{angle: a, miss: 0})
		}
		if n > 0 && len(cands) == 0 {
			cands = append(cands, candidate{angle: shots[0].Angle, miss: 0})
		}
		return topK(cands, st.TopK)
	}

	// Walk the circle starting just after a miss so no run is split.
	runStart, prev := -1, -1
	for k := 1; k <= n; k++ {
		i := (first + k) % n
		o := outcomes[i]
		if o.Kind == ballistics.Hit {
			if runStart < 0 {
				runStart = i
			}
			prev = i
			continue
		}
		if runStart >= 0 {
			mid := arcMidpoint(shots[runStart].Angle, shots[prev].Angle)
			cands = append(cands, candidate{angle: mid, miss: 0})
			runStart = -1
		}

		switch o.Kind {
		case ballistics.NotEvaluated, ballistics.SelfCollision:
			continue
		}
		if o.MissDistance < st.AcceptMiss {
			cands = append(cands, candidate{angle: shots[i].Angle, miss: o.MissDistance})
		}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].miss != cands[j].miss {
			return cands[i].miss < cands[j].miss
		}
		return cands[i].angle < cands[j].angle
	})
	return topK(cands, st.TopK)
}

func topK(cands []candidate, k int) []candidate {
	if len(cands) > k {
		return cands[:k]
	}
	return cands
}

// arcMidpoint is the angle halfway along the counter-clockwise arc from one
// angle to another, wrapped into [-pi, pi).
func arcMidpoint(from, to float64) float64 {
	span := math.Mod(to-from, 2*math.Pi)
	if span < 0 {
		span += 2 * math.Pi
	}
	return wrapAngle(from + span/2)
}

func wrapAngle(a float64) float64 {
	if a >= -math.Pi && a < math.Pi {
		return a
	}
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

func firstHit(outcomes []ballistics.Outcome) int {
	for i, o := range outcomes {
		if o.Kind == ballistics.Hit {
			return i
		}
	}
	return -1
}
