package agents

import (
	"github.com/varelagames/aldea/internal/world"
)

const (
	// ArriveThreshold is how close an agent must be to its target, in world
	// units, before the target counts as reached.
	ArriveThreshold = 20.0

	// Velocity smoothing weights. The old velocity dominates so agents turn
	// in arcs instead of snapping.
	velKeep  = 0.85
	velSteer = 0.15
)

// Step advances the agent toward its target by dt seconds. Velocity is an
// exponential moving average of the normalized direction scaled by the
// agent's speed, and the position is clamped to the world bounds.
func Step(p *Player, dt float64) {
	if !p.HasTarget {
		p.VX *= velKeep
		p.VY *= velKeep
	} else {
		dx := p.TargetX - p.X
		dy := p.TargetY - p.Y
		d := world.Dist(p.X, p.Y, p.TargetX, p.TargetY)
		if d > 1e-6 {
			p.VX = p.VX*velKeep + (dx/d)*p.Speed*velSteer
			p.VY = p.VY*velKeep + (dy/d)*p.Speed*velSteer
		}
	}

	p.X = world.Clamp(p.X+p.VX*dt, 0, world.Width)
	p.Y = world.Clamp(p.Y+p.VY*dt, 0, world.Height)
}
