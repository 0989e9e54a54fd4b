package targeting

import (
	"errors"
	"fmt"

	"github.com/brensch/gravbot/ballistics"
	"github.com/go-gl/mathgl/mgl64"
)

var ErrInvalidConfig = errors.New("invalid targeting config")

// Stage tunes one pass of the search. The broad stage sweeps the full circle
// and uses Samples, AcceptMiss and TopK. The fine stage sweeps
// [candidate-HalfWidth, candidate+HalfWidth] and uses StopOnHit.
type Stage struct {
	Samples       int
	HalfWidth     float64
	HitRadius     float64
	SelfExclusion float64
	AcceptMiss    float64
	TopK          int
	StopOnHit     bool
}

type Config struct {
	Mode       ballistics.Mode
	Velocities []float64
	Broad      Stage
	Fine       Stage
}

func DefaultConfig() Config {
	return Config{
		Mode:       ballistics.ModeTarget,
		Velocities: []float64{10, 11, 12},
		Broad: Stage{
			Samples:       3600,
			HitRadius:     80,
			SelfExclusion: 4,
			AcceptMiss:    80,
			TopK:          8,
		},
		Fine: Stage{
			Samples:       101,
			HalfWidth:     mgl64.DegToRad(0.5),
			HitRadius:     4,
			SelfExclusion: 4,
			StopOnHit:     true,
		},
	}
}

func (c Config) Validate() error {
	if len(c.Velocities) == 0 {
		return fmt.Errorf("%w: no velocities", ErrInvalidConfig)
	}
	for _, v := range c.Velocities {
		if !(v > 0) {
			return fmt.Errorf("%w: velocity %v", ErrInvalidConfig, v)
		}
	}
	if c.Broad.Samples <= 0 || c.Fine.Samples <= 0 {
		return fmt.Errorf("%w: samples broad=%d fine=%d", ErrInvalidConfig, c.Broad.Samples, c.Fine.Samples)
	}
	if c.Broad.TopK <= 0 {
		return fmt.Errorf("%w: top-k %d", ErrInvalidConfig, c.Broad.TopK)
	}
	if c.Fine.HalfWidth < 0 {
		return fmt.Errorf("%w: fine half width %v", ErrInvalidConfig, c.Fine.HalfWidth)
	}
	for _, s := range []Stage{c.Broad, c.Fine} {
		if s.HitRadius < 0 || s.SelfExclusion < 0 {
			return fmt.Errorf("%w: hit radius %v self exclusion %v", ErrInvalidConfig, s.HitRadius, s.SelfExclusion)
		}
	}
	return nil
}
