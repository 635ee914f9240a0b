// Server-agent behavior. Agents run a small work loop: rest in place,
// walk to the nearest factory, work a shift, carry the pay to a bank, rest
// again. While idle they roam the exploration grid, occasionally shop, and
// paired agents with savings buy a house.
package agents

import (
	"math/rand"
	"time"

	"github.com/varelagames/aldea/internal/world"
)

const (
	WorkDuration  = 6 * time.Second
	RestDuration  = 45 * time.Second
	DepositAmount = 20

	ShopChance   = 0.01
	ShopCooldown = 300 * time.Second
	DefaultPrice = 2

	HouseCost = 3000
)

// Env is the slice of the world a behavior tick may touch. The owner of the
// live state wires the mutation callbacks; reads come from the snapshot
// slices so a tick never blocks on locks.
type Env struct {
	Factories []world.Structure
	Banks     []world.Structure
	Shops     []world.Shop
	Houses    []world.House

	Rng *rand.Rand

	// Deposit moves a finished shift's pay into the agent's bank balance.
	Deposit func(p *Player, amount int)
	// Purchase debits the agent and credits the shop cashbox. Returns false
	// when the purchase could not be applied.
	Purchase func(p *Player, shop world.Shop) bool
	// BuyHouse transfers a house to the agent. Returns false when the house
	// was taken in the meantime.
	BuyHouse func(p *Player, h world.House) bool
}

// Tick advances one agent by dt seconds of simulated time. Human players
// are never ticked; their clients drive movement.
func Tick(p *Player, env *Env, now time.Time, dt float64) {
	if !p.IsBot {
		return
	}
	if p.Activity == "" {
		p.Activity = ActIdle
	}
	if p.Grid == nil {
		p.Grid = NewExploreGrid()
	}

	maybeBuyHouse(p, env)

	switch p.Activity {
	case ActIdle:
		tickIdle(p, env, now)
	case ActGoWork:
		if p.Arrived() {
			p.HasTarget = false
			p.Activity = ActWork
			p.ActivityEnds = now.Add(WorkDuration)
		}
	case ActWork:
		if now.After(p.ActivityEnds) {
			p.Activity = ActGoBank
			steerToNearest(p, env.Banks)
		}
	case ActGoBank:
		if p.Arrived() {
			p.HasTarget = false
			if env.Deposit != nil {
				env.Deposit(p, DepositAmount)
			}
			p.Activity = ActIdle
			p.RestUntil = now.Add(RestDuration)
		}
	case ActGoShop:
		if p.Arrived() {
			p.HasTarget = false
			finishShopping(p, env, now)
			p.Activity = ActIdle
		}
	}

	Step(p, dt)
	p.Grid.MarkVisited(p.X, p.Y)
}

func tickIdle(p *Player, env *Env, now time.Time) {
	// Shopping interrupts rest occasionally.
	if now.After(p.LastPurchase.Add(ShopCooldown)) && env.Rng.Float64() < ShopChance {
		if shop, ok := randomOwnedShop(env.Shops, env.Rng); ok {
			cx, cy := shop.Rect.Center()
			p.SetTarget(cx, cy)
			p.pendingShop = shop.ID
			p.Activity = ActGoShop
			return
		}
	}

	if now.After(p.RestUntil) && len(env.Factories) > 0 {
		p.Activity = ActGoWork
		steerToNearest(p, env.Factories)
		return
	}

	// Roam while resting.
	if p.Arrived() {
		x, y := p.Grid.NextTarget(env.Rng)
		p.SetTarget(x, y)
	}
}

func finishShopping(p *Player, env *Env, now time.Time) {
	if p.pendingShop == "" || env.Purchase == nil {
		return
	}
	if shop, ok := shopByID(env.Shops, p.pendingShop); ok {
		if env.Purchase(p, shop) {
			p.LastPurchase = now
		}
	}
	p.pendingShop = ""
}

func maybeBuyHouse(p *Player, env *Env) {
	if !p.Paired() || p.OwnedHouseID != "" || p.Money < HouseCost {
		return
	}
	for _, h := range env.Houses {
		if h.Vacant() && env.BuyHouse != nil && env.BuyHouse(p, h) {
			return
		}
	}
}

func steerToNearest(p *Player, options []world.Structure) {
	best := -1
	bestDist := 0.0
	for i, s := range options {
		cx, cy := s.Rect.Center()
		d := world.Dist(p.X, p.Y, cx, cy)
		if best == -1 || d < bestDist {
			best, bestDist = i, d
		}
	}
	if best >= 0 {
		cx, cy := options[best].Rect.Center()
		p.SetTarget(cx, cy)
	}
}

func randomOwnedShop(shops []world.Shop, rng *rand.Rand) (world.Shop, bool) {
	var owned []world.Shop
	for _, s := range shops {
		if s.OwnerID != "" {
			owned = append(owned, s)
		}
	}
	if len(owned) == 0 {
		return world.Shop{}, false
	}
	return owned[rng.Intn(len(owned))], true
}

func shopByID(shops []world.Shop, id string) (world.Shop, bool) {
	for _, s := range shops {
		if s.ID == id {
			return s, true
		}
	}
	return world.Shop{}, false
}
