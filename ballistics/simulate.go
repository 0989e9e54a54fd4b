// Package ballistics integrates projectile flights through the planet field.
//
// The integration is a fixed-step Euler scheme: each segment sums the
// inverse-square pull of every planet, then applies the velocity and position
// deltas divided by SegmentSteps. Everything here is pure and deterministic,
// so one Simulator can be shared by every scan worker.
package ballistics

import (
	"errors"
	"fmt"
	"math"

	"github.com/brensch/gravbot/game"
	"github.com/go-gl/mathgl/mgl64"
)

type Kind uint8

const (
	// NotEvaluated is the zero value and marks scan slots that were skipped
	// because the scan was cancelled.
	NotEvaluated Kind = iota
	OutOfBounds
	PlanetCollision
	SegmentBudgetExhausted
	Hit
	// SelfCollision ends a flight that comes back onto the shooter, or whose
	// target sits on the launch point. Its miss distance is +Inf.
	SelfCollision
)

func (k Kind) String() string {
	switch k {
	case NotEvaluated:
		return "not_evaluated"
	case OutOfBounds:
		return "out_of_bounds"
	case PlanetCollision:
		return "planet_collision"
	case SegmentBudgetExhausted:
		return "segment_budget_exhausted"
	case Hit:
		return "hit"
	case SelfCollision:
		return "self_collision"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Mode selects what a flight is aimed at.
type Mode uint8

const (
	// ModeTarget aims at a single fixed point.
	ModeTarget Mode = iota
	// ModePlayers counts a hit on any opponent in the snapshot.
	ModePlayers
)

func (m Mode) String() string {
	if m == ModePlayers {
		return "players"
	}
	return "target"
}

type Shot struct {
	Angle    float64
	Velocity float64
}

// Outcome is how a single flight ended. MissDistance is the closest approach
// to the target (or to any opponent in ModePlayers) over the whole flight.
type Outcome struct {
	Kind         Kind
	MissDistance float64
	HitID        int
	Segments     int
}

// Params describes who shoots at what. It is shared by every shot of a scan.
type Params struct {
	Mode      Mode
	Launch    mgl64.Vec2
	Target    mgl64.Vec2
	TargetID  int
	ShooterID int

	HitRadius     float64
	SelfExclusion float64
}

type Config struct {
	Field        game.Field
	SegmentSteps int
	MaxSegments  int
}

func DefaultConfig() Config {
	return Config{
		Field:        game.DefaultField(),
		SegmentSteps: game.SegmentSteps,
		MaxSegments:  game.MaxSegments,
	}
}

var ErrInvalidConfig = errors.New("invalid simulator config")

func (c Config) Validate() error {
	if c.SegmentSteps <= 0 {
		return fmt.Errorf("%w: segment steps %d", ErrInvalidConfig, c.SegmentSteps)
	}
	if c.MaxSegments <= 0 {
		return fmt.Errorf("%w: max segments %d", ErrInvalidConfig, c.MaxSegments)
	}
	if c.Field.Width <= 0 || c.Field.Height <= 0 || c.Field.Margin < 0 {
		return fmt.Errorf("%w: field %+v", ErrInvalidConfig, c.Field)
	}
	return nil
}

type Simulator struct {
	cfg Config
	inv float64
}

func NewSimulator(cfg Config) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Simulator{cfg: cfg, inv: 1 / float64(cfg.SegmentSteps)}, nil
}

func (s *Simulator) Config() Config { return s.cfg }

// Simulate flies one shot and reports how it ended.
func (s *Simulator) Simulate(b *Bodies, p *Params, shot Shot) Outcome {
	x, y := p.Launch.X(), p.Launch.Y()
	vx := shot.Velocity * math.Cos(shot.Angle)
	vy := -shot.Velocity * math.Sin(shot.Angle)

	var minDist float64
	if p.Mode == ModePlayers {
		minDist = s.closestOpponent(b, p, x, y)
	} else {
		minDist = math.Hypot(p.Target.X()-x, p.Target.Y()-y)
	}
	launchToTarget := math.Hypot(p.Target.X()-p.Launch.X(), p.Target.Y()-p.Launch.Y())
	leaveDist := p.SelfExclusion + 1
	left := false

	for seg := 1; seg <= s.cfg.MaxSegments; seg++ {
		// 1. Planets: collision first, then accumulate the pull.
		var ax, ay float64
		for i := range b.planetX {
			dx := b.planetX[i] - x
			dy := b.planetY[i] - y
			d := math.Sqrt(dx*dx + dy*dy)
			if d <= b.planetR[i] {
				return Outcome{Kind: PlanetCollision, MissDistance: minDist, HitID: -1, Segments: seg}
			}
			f := b.planetM[i] / (d * d * d)
			ax += dx * f
			ay += dy * f
		}

		// 2. Advance.
		vx += ax * s.inv
		vy += ay * s.inv
		x += vx * s.inv
		y += vy * s.inv

		// 3. Launch immunity: nothing counts until we are clear of the shooter.
		if !left && math.Hypot(x-p.Launch.X(), y-p.Launch.Y()) > leaveDist {
			left = true
		}

		// 4. Hits.
		if p.Mode == ModePlayers {
			if out, done := s.checkPlayers(b, p, x, y, left, &minDist); done {
				out.Segments = seg
				return out
			}
		} else {
			d := math.Hypot(p.Target.X()-x, p.Target.Y()-y)
			if d < minDist {
				minDist = d
			}
			if left {
				if d <= p.HitRadius {
					return Outcome{Kind: Hit, MissDistance: minDist, HitID: p.TargetID, Segments: seg}
				}
				if launchToTarget <= p.HitRadius {
					return Outcome{Kind: SelfCollision, MissDistance: math.Inf(1), HitID: -1, Segments: seg}
				}
			}
		}

		// 5. Bounds.
		if !s.cfg.Field.Contains(x, y) {
			return Outcome{Kind: OutOfBounds, MissDistance: minDist, HitID: -1, Segments: seg}
		}
	}

	return Outcome{Kind: SegmentBudgetExhausted, MissDistance: minDist, HitID: -1, Segments: s.cfg.MaxSegments}
}

func (s *Simulator) closestOpponent(b *Bodies, p *Params, x, y float64) float64 {
	best := math.Inf(1)
	for i := range b.playerX {
		if b.playerID[i] == p.ShooterID {
			continue
		}
		if d := math.Hypot(b.playerX[i]-x, b.playerY[i]-y); d < best {
			best = d
		}
	}
	return best
}

func (s *Simulator) checkPlayers(b *Bodies, p *Params, x, y float64, left bool, minDist *float64) (Outcome, bool) {
	for i := range b.playerX {
		d := math.Hypot(b.playerX[i]-x, b.playerY[i]-y)
		self := b.playerID[i] == p.ShooterID
		if !self && d < *minDist {
			*minDist = d
		}
		if !left {
			continue
		}
		// The shooter is only as big as its exclusion radius; the hit radius
		// is a tolerance around opponents.
		if self {
			if d <= p.SelfExclusion {
				return Outcome{Kind: SelfCollision, MissDistance: math.Inf(1), HitID: -1}, true
			}
			continue
		}
		if d <= p.HitRadius {
			return Outcome{Kind: Hit, MissDistance: *minDist, HitID: b.playerID[i]}, true
		}
	}
	return Outcome{}, false
}
