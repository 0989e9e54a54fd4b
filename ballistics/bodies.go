package ballistics

import "github.com/brensch/gravbot/game"

// Bodies is a snapshot flattened into parallel float64 slices so the
// integration loop walks contiguous memory. It is read-only after Compile and
// may be shared by any number of goroutines.
type Bodies struct {
	planetX []float64
	planetY []float64
	planetR []float64
	planetM []float64

	playerX  []float64
	playerY  []float64
	playerID []int
}

// Compile flattens a snapshot.
func Compile(s *game.Snapshot) *Bodies {
	return NewBodies(s.Planets(), s.Players())
}

// NewBodies flattens the given planets and players. Players keep the order
// they are given in.
func NewBodies(planets []game.Planet, players []game.Player) *Bodies {
	b := &Bodies{
		planetX:  make([]float64, len(planets)),
		planetY:  make([]float64, len(planets)),
		planetR:  make([]float64, len(planets)),
		planetM:  make([]float64, len(planets)),
		playerX:  make([]float64, len(players)),
		playerY:  make([]float64, len(players)),
		playerID: make([]int, len(players)),
	}
	for i, p := range planets {
		b.planetX[i] = p.Position.X()
		b.planetY[i] = p.Position.Y()
		b.planetR[i] = p.Radius
		b.planetM[i] = p.Mass
	}
	for i, p := range players {
		b.playerX[i] = p.Position.X()
		b.playerY[i] = p.Position.Y()
		b.playerID[i] = p.ID
	}
	return b
}

func (b *Bodies) NumPlanets() int { return len(b.planetX) }
func (b *Bodies) NumPlayers() int { return len(b.playerX) }
