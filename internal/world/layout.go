// Default world layout generation. A fresh deployment has no structures
// until a client bootstraps them; seeding a deterministic layout keeps the
// agent economy alive from the first tick.
package world

import (
	"fmt"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Layout is a generated set of default structures.
type Layout struct {
	Factories []Structure
	Banks     []Structure
	Houses    []House
}

const (
	defaultFactories = 3
	defaultBanks     = 2
	defaultHouses    = 8
)

// DefaultLayout scatters the default structures over the world rectangle.
// Candidate positions are sampled on a coarse grid and ranked by simplex
// noise so buildings cluster along natural "desirability" ridges instead of
// landing uniformly at random. Deterministic for a given seed.
func DefaultLayout(seed int64) Layout {
	noise := opensimplex.NewNormalized(seed)
	rng := rand.New(rand.NewSource(seed + 1))

	type candidate struct {
		x, y  float64
		score float64
	}

	// Sample a margin-inset grid; jitter keeps rows from looking stamped.
	var candidates []candidate
	const cols, rows = 10, 7
	const margin = 120.0
	cellW := (Width - 2*margin) / cols
	cellH := (Height - 2*margin) / rows
	for iy := 0; iy < rows; iy++ {
		for ix := 0; ix < cols; ix++ {
			x := margin + (float64(ix)+0.5)*cellW + (rng.Float64()-0.5)*cellW*0.4
			y := margin + (float64(iy)+0.5)*cellH + (rng.Float64()-0.5)*cellH*0.4
			candidates = append(candidates, candidate{
				x: x, y: y,
				score: noise.Eval2(x/400.0, y/400.0),
			})
		}
	}

	// Highest-scoring cells first.
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].score > candidates[j-1].score; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}

	next := func() (float64, float64) {
		c := candidates[0]
		candidates = candidates[1:]
		return c.x, c.y
	}

	var l Layout
	for i := 0; i < defaultFactories; i++ {
		x, y := next()
		l.Factories = append(l.Factories, Structure{
			ID:   fmt.Sprintf("F%d", i+1),
			Kind: "factory",
			Rect: Rect{X: x, Y: y, W: 160, H: 120},
		})
	}
	for i := 0; i < defaultBanks; i++ {
		x, y := next()
		l.Banks = append(l.Banks, Structure{
			ID:   fmt.Sprintf("K%d", i+1),
			Kind: "bank",
			Rect: Rect{X: x, Y: y, W: 120, H: 100},
		})
	}
	for i := 0; i < defaultHouses; i++ {
		x, y := next()
		l.Houses = append(l.Houses, House{
			ID:        fmt.Sprintf("H%d", i+1),
			Rect:      Rect{X: x, Y: y, W: 90, H: 80},
			CreatedAt: Now(),
		})
	}
	return l
}
