package agents

import (
	"math/rand"

	"github.com/varelagames/aldea/internal/world"
)

// The world is carved into a coarse sector grid for exploration. Idle agents
// walk toward unvisited sectors so the whole map sees traffic over time.
const (
	SectorCols = 12
	SectorRows = 9
)

// ExploreGrid tracks which sectors an agent has passed through.
type ExploreGrid struct {
	visited [SectorRows][SectorCols]bool
	left    int
}

// NewExploreGrid returns a grid with every sector unvisited.
func NewExploreGrid() *ExploreGrid {
	g := &ExploreGrid{}
	g.left = SectorRows * SectorCols
	return g
}

// Reset marks every sector unvisited again.
func (g *ExploreGrid) Reset() {
	g.visited = [SectorRows][SectorCols]bool{}
	g.left = SectorRows * SectorCols
}

// MarkVisited records the sector containing the world position (x, y).
func (g *ExploreGrid) MarkVisited(x, y float64) {
	col := int(x / (world.Width / SectorCols))
	row := int(y / (world.Height / SectorRows))
	if col < 0 || col >= SectorCols || row < 0 || row >= SectorRows {
		return
	}
	if !g.visited[row][col] {
		g.visited[row][col] = true
		g.left--
	}
}

// Remaining returns the number of unvisited sectors.
func (g *ExploreGrid) Remaining() int {
	return g.left
}

// NextTarget picks a random unvisited sector and returns a point near its
// center. When the grid is exhausted it resets and steers to the world
// center so agents regroup before fanning out again.
func (g *ExploreGrid) NextTarget(rng *rand.Rand) (float64, float64) {
	if g.left == 0 {
		g.Reset()
		return world.Width / 2, world.Height / 2
	}

	n := rng.Intn(g.left)
	for row := 0; row < SectorRows; row++ {
		for col := 0; col < SectorCols; col++ {
			if g.visited[row][col] {
				continue
			}
			if n == 0 {
				cw := world.Width / SectorCols
				ch := world.Height / SectorRows
				x := float64(col)*cw + cw/2 + (rng.Float64()-0.5)*cw*0.5
				y := float64(row)*ch + ch/2 + (rng.Float64()-0.5)*ch*0.5
				return world.Clamp(x, 0, world.Width), world.Clamp(y, 0, world.Height)
			}
			n--
		}
	}
	return world.Width / 2, world.Height / 2
}
