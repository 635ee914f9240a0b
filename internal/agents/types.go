// Package agents provides the live player model, the server-agent behavior
// state machine, and the exploration grid that keeps idle agents roaming.
package agents

import (
	"time"

	"github.com/varelagames/aldea/internal/world"
)

// Activity names the state-machine phase an agent is in. Values travel in
// snapshots so clients can animate accordingly.
const (
	ActIdle   = "idle"
	ActGoWork = "go_work"
	ActWork   = "work"
	ActGoBank = "go_bank"
	ActGoShop = "go_shop"
)

// Player is a live world entity, either a connected human or a server agent.
// Durable balances live in the profile store; the copies here feed the
// snapshot broadcast and the behavior engine.
type Player struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	IsBot    bool   `json:"isBot,omitempty"`

	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	VX float64 `json:"vx"`
	VY float64 `json:"vy"`

	Money int `json:"money"`
	Bank  int `json:"bank"`

	Gender   string `json:"gender,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Vehicle  string `json:"vehicle,omitempty"`
	State    string `json:"state,omitempty"`
	SpouseID string `json:"spouseId,omitempty"`

	OwnedHouseID  string `json:"ownedHouseId,omitempty"`
	RentedHouseID string `json:"rentedHouseId,omitempty"`
	MarkerInitial string `json:"markerInitial,omitempty"`

	Activity string `json:"activity,omitempty"`

	// Behavior internals, not broadcast.
	Speed        float64      `json:"-"`
	TargetX      float64      `json:"-"`
	TargetY      float64      `json:"-"`
	HasTarget    bool         `json:"-"`
	ActivityEnds time.Time    `json:"-"`
	RestUntil    time.Time    `json:"-"`
	LastPurchase time.Time    `json:"-"`
	LastUpdate   time.Time    `json:"-"`
	Grid         *ExploreGrid `json:"-"`

	pendingShop string
}

// Paired reports whether the player is in a committed relationship.
func (p *Player) Paired() bool {
	return p.State == "paired" && p.SpouseID != ""
}

// SetTarget points the agent at a world position.
func (p *Player) SetTarget(x, y float64) {
	p.TargetX = world.Clamp(x, 0, world.Width)
	p.TargetY = world.Clamp(y, 0, world.Height)
	p.HasTarget = true
}

// Arrived reports whether the agent is within the arrival threshold of its
// current target.
func (p *Player) Arrived() bool {
	if !p.HasTarget {
		return true
	}
	return world.Dist(p.X, p.Y, p.TargetX, p.TargetY) < ArriveThreshold
}
