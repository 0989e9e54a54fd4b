package ballistics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AngleTo returns the launch angle pointing straight from one point at
// another. Screen y grows downwards, so the y delta is negated.
func AngleTo(from, to mgl64.Vec2) float64 {
	d := to.Sub(from)
	return math.Atan2(-d.Y(), d.X())
}

// Degrees converts a launch angle to the degrees the server expects,
// normalised to (-180, 180].
func Degrees(angle float64) float64 {
	deg := math.Mod(mgl64.RadToDeg(angle), 360)
	switch {
	case deg > 180:
		deg -= 360
	case deg <= -180:
		deg += 360
	}
	return deg
}
