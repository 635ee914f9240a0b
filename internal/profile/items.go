package profile

import (
	"github.com/varelagames/aldea/internal/world"
)

// AddShop appends a shop to the user's owned list.
func (s *Store) AddShop(userID string, shop world.Shop) {
	s.mu.Lock()
	p := s.ensureProgressLocked(userID)
	p.Shops = append(p.Shops, shop)
	s.log("shop_add", userID, map[string]any{"id": shop.ID})
	s.mu.Unlock()
	s.saver.Schedule()
}

// AddHouse appends a house to the user's owned list.
func (s *Store) AddHouse(userID string, house world.House) {
	s.mu.Lock()
	p := s.ensureProgressLocked(userID)
	p.Houses = append(p.Houses, house)
	s.log("house_add", userID, map[string]any{"id": house.ID})
	s.mu.Unlock()
	s.saver.Schedule()
}

// SetVehicle sets the user's active vehicle.
func (s *Store) SetVehicle(userID, vehicle string) {
	s.mu.Lock()
	p := s.ensureProgressLocked(userID)
	p.Vehicle = vehicle
	s.mu.Unlock()
	s.saver.Schedule()
}

// AddOwnedVehicle records a vehicle as acquired. Duplicates are ignored.
func (s *Store) AddOwnedVehicle(userID, vehicle string) {
	if vehicle == "" {
		return
	}
	s.mu.Lock()
	p := s.ensureProgressLocked(userID)
	for _, v := range p.Vehicles {
		if v == vehicle {
			s.mu.Unlock()
			return
		}
	}
	p.Vehicles = append(p.Vehicles, vehicle)
	s.log("vehicle_add", userID, map[string]any{"vehicle": vehicle})
	s.mu.Unlock()
	s.saver.Schedule()
}

// AllShops flattens every user's owned-shop list; the agent engine shops
// from this aggregate.
func (s *Store) AllShops() []world.Shop {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []world.Shop
	for _, p := range s.progress {
		out = append(out, p.Shops...)
	}
	return out
}

// ShopPatch is a partial update for an owned shop.
type ShopPatch struct {
	Cashbox    *int
	Price      *int
	EmployeeID *string
}

// UpdateShop merges the patch into the matching shop wherever it lives in a
// user's owned list. Returns false if no shop matches.
func (s *Store) UpdateShop(shopID string, patch ShopPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.progress {
		for i := range p.Shops {
			if p.Shops[i].ID != shopID {
				continue
			}
			if patch.Cashbox != nil {
				p.Shops[i].Cashbox = clampInt(*patch.Cashbox)
			}
			if patch.Price != nil {
				p.Shops[i].Price = *patch.Price
			}
			if patch.EmployeeID != nil {
				p.Shops[i].EmployeeID = *patch.EmployeeID
			}
			s.saver.Schedule()
			return true
		}
	}
	return false
}
