// Periodic economy cycles. A failure on one entity is logged and never
// aborts the rest of the pass.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/varelagames/aldea/internal/profile"
	"github.com/varelagames/aldea/internal/protocol"
)

// collectRent charges every tenant of an unowned rented house. Sufficient
// funds move tenant -> treasury; insufficient funds only notify the tenant.
func (s *Simulation) collectRent() {
	rent := s.cfg.RentAmount
	for _, h := range s.registry.Houses() {
		if h.RentedBy == "" || h.OwnerID != "" {
			continue
		}
		s.guard("rent", h.ID, func() {
			// Only tenants present in the live world are billed.
			p, ok := s.players[h.RentedBy]
			if !ok {
				return
			}
			if p.Money < rent {
				s.toast(p.ID, fmt.Sprintf("Rent due (%d), not enough money", rent))
				return
			}
			s.profiles.SetMoney(p.ID, p.Money-rent, nil)
			p.Money -= rent
			s.registry.AddGovernmentFunds(rent)
			s.toast(p.ID, fmt.Sprintf("Rent paid (%d)", rent))
		})
	}
	s.refreshGov()
}

// paySalaries moves one salary per staffed shop from the cashbox to the
// treasury. An insolvent shop loses its employee; the cashbox is untouched.
func (s *Simulation) paySalaries() {
	salary := s.cfg.SalaryAmount
	for _, shop := range s.profiles.AllShops() {
		if shop.EmployeeID == "" {
			continue
		}
		s.guard("salary", shop.ID, func() {
			if shop.Cashbox >= salary {
				box := shop.Cashbox - salary
				s.profiles.UpdateShop(shop.ID, profile.ShopPatch{Cashbox: &box})
				s.registry.AddGovernmentFunds(salary)
				return
			}

			// Employment terminated.
			empty := ""
			s.profiles.UpdateShop(shop.ID, profile.ShopPatch{EmployeeID: &empty})
			if p, ok := s.players[shop.EmployeeID]; ok && p.IsBot {
				delete(s.players, shop.EmployeeID)
				s.broadcast(protocol.TypePlayerLeft, protocol.PlayerLeftMsg{ID: shop.EmployeeID})
			}
			slog.Info("shop insolvent, employee let go",
				"shop", shop.ID, "employee", shop.EmployeeID, "cashbox", shop.Cashbox)
		})
	}
	s.refreshGov()
}

// guard isolates one entity's processing inside a periodic pass.
func (s *Simulation) guard(cycle, entity string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("economy cycle entity failed", "cycle", cycle, "entity", entity, "err", r)
		}
	}()
	fn()
}
