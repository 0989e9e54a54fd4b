package game

import "math"

// BattlefieldArea is the playing area in square units. The field keeps a
// 16:9 aspect ratio regardless of the area.
const BattlefieldArea = 2_000_000.0

var (
	FieldWidth  = math.Sqrt(BattlefieldArea * 16 / 9)
	FieldHeight = math.Sqrt(BattlefieldArea * 9 / 16)
)

const (
	// FieldMargin is how far a projectile may leave the visible field before
	// it is considered gone.
	FieldMargin = 500.0

	MaxPlanets = 24
	MaxPlayers = 12

	SegmentSteps = 25
	MaxSegments  = 2000
)

// Field is the rectangle a projectile may travel in, including the margin.
type Field struct {
	Width  float64
	Height float64
	Margin float64
}

// DefaultField returns the standard battlefield.
func DefaultField() Field {
	return Field{Width: FieldWidth, Height: FieldHeight, Margin: FieldMargin}
}

// Contains reports whether (x, y) lies inside the field including its margin.
func (f Field) Contains(x, y float64) bool {
	return x >= -f.Margin && x <= f.Width+f.Margin &&
		y >= -f.Margin && y <= f.Height+f.Margin
}
