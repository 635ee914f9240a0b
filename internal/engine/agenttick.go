package engine

import (
	"fmt"
	"time"

	"github.com/varelagames/aldea/internal/agents"
	"github.com/varelagames/aldea/internal/profile"
	"github.com/varelagames/aldea/internal/protocol"
	"github.com/varelagames/aldea/internal/world"
)

// tickAgents advances every server agent by dt seconds. The environment is
// rebuilt each tick from the registry and progress so agents always act on
// current placements.
func (s *Simulation) tickAgents(now time.Time, dt float64) {
	factories, banks := s.registry.Structures()
	env := &agents.Env{
		Factories: factories,
		Banks:     banks,
		Shops:     s.profiles.AllShops(),
		Houses:    s.registry.Houses(),
		Rng:       s.rng,
		Deposit:   s.agentDeposit,
		Purchase:  s.agentPurchase,
		BuyHouse:  s.agentBuyHouse,
	}

	for _, p := range s.players {
		agents.Tick(p, env, now, dt)
	}
}

// agentDeposit pays out a finished shift once the agent reaches the bank.
// Pay lands in pocket money so it can fund purchases and, eventually, a
// house.
func (s *Simulation) agentDeposit(p *agents.Player, amount int) {
	money := p.Money + amount
	s.profiles.SetMoney(p.ID, money, nil)
	p.Money = money
}

// agentPurchase debits the shopper and routes the price into the shop
// cashbox, where it funds salaries.
func (s *Simulation) agentPurchase(p *agents.Player, shop world.Shop) bool {
	price := shop.Price
	if price <= 0 {
		price = agents.DefaultPrice
	}
	if p.Money < price {
		return false
	}
	s.profiles.SetMoney(p.ID, p.Money-price, nil)
	p.Money -= price
	box := shop.Cashbox + price
	s.profiles.UpdateShop(shop.ID, profile.ShopPatch{Cashbox: &box})
	return true
}

// agentBuyHouse transfers a vacant house to a paired agent with savings.
func (s *Simulation) agentBuyHouse(p *agents.Player, h world.House) bool {
	if p.Money < agents.HouseCost {
		return false
	}
	owner := p.ID
	if !s.registry.UpdateGlobalHouse(h.ID, world.HousePatch{OwnerID: &owner}) {
		return false
	}
	s.profiles.SetMoney(p.ID, p.Money-agents.HouseCost, nil)
	p.Money -= agents.HouseCost
	p.OwnedHouseID = h.ID
	if p.RentedHouseID == h.ID {
		p.RentedHouseID = ""
	}
	h.OwnerID = owner
	h.RentedBy = ""
	s.profiles.AddHouse(p.ID, h)
	s.broadcast(protocol.TypeToast, protocol.ToastMsg{Message: fmt.Sprintf("%s bought a house", p.Username)})
	return true
}
