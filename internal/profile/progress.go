package profile

import (
	"github.com/varelagames/aldea/internal/world"
)

// Relationship states.
const (
	StateSingle = "single"
	StatePaired = "paired"
)

// DefaultMoney is the starting balance for fresh progress.
const DefaultMoney = 400

// Progress is the durable per-user mutable game state. One record exists per
// user id, including server-controlled agent ids.
type Progress struct {
	Money int `json:"money"`
	Bank  int `json:"bank"`

	Vehicle  string   `json:"vehicle,omitempty"`
	Vehicles []string `json:"vehicles"`

	Shops  []world.Shop  `json:"shops"`
	Houses []world.House `json:"houses"`

	Name   string   `json:"name,omitempty"`
	Avatar string   `json:"avatar,omitempty"`
	Likes  []string `json:"likes"`

	Gender  string `json:"gender,omitempty"`
	Age     int    `json:"age,omitempty"`
	Country string `json:"country,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`

	InitialRentPaid bool   `json:"initialRentPaid"`
	RentedHouseID   string `json:"rentedHouseId,omitempty"`

	State    string `json:"state"`
	SpouseID string `json:"spouseId,omitempty"`

	IsBot bool `json:"isBot,omitempty"`
}

// backfill fills fields absent from documents written by older schema
// versions without discarding existing data.
func (p *Progress) backfill() {
	if p.Vehicles == nil {
		p.Vehicles = []string{}
	}
	if p.Shops == nil {
		p.Shops = []world.Shop{}
	}
	if p.Houses == nil {
		p.Houses = []world.House{}
	}
	if p.Likes == nil {
		p.Likes = []string{}
	}
	if p.State == "" {
		p.State = StateSingle
	}
}

func defaultProgress() *Progress {
	p := &Progress{Money: DefaultMoney, State: StateSingle}
	p.backfill()
	return p
}

// ensureProgressLocked returns existing progress or lazily creates the
// default. Caller must hold s.mu.
func (s *Store) ensureProgressLocked(userID string) *Progress {
	p, ok := s.progress[userID]
	if !ok {
		p = defaultProgress()
		s.progress[userID] = p
		return p
	}
	p.backfill()
	return p
}

// EnsureProgress returns a copy of the user's progress, creating the default
// record on first access.
func (s *Store) EnsureProgress(userID string) Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.ensureProgressLocked(userID)
}

// RegisterAgent creates a progress record for a server-controlled agent id.
// Idempotent: an existing record is returned untouched.
func (s *Store) RegisterAgent(agentID, name string, money int) Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.progress[agentID]; ok {
		p.backfill()
		return *p
	}
	p := defaultProgress()
	p.Name = name
	if money > 0 {
		p.Money = money
	}
	p.IsBot = true
	s.progress[agentID] = p
	s.log("bot_register", agentID, map[string]any{"name": name})
	s.saver.Schedule()
	return *p
}

// ProgressPatch is the whitelisted partial update for progress. Nil fields
// are unchanged; array fields are replaced wholesale, never merged.
type ProgressPatch struct {
	Money           *int          `json:"money,omitempty"`
	Bank            *int          `json:"bank,omitempty"`
	Vehicle         *string       `json:"vehicle,omitempty"`
	Vehicles        []string      `json:"vehicles,omitempty"`
	Shops           []world.Shop  `json:"shops,omitempty"`
	Houses          []world.House `json:"houses,omitempty"`
	Name            *string       `json:"name,omitempty"`
	Avatar          *string       `json:"avatar,omitempty"`
	Likes           []string      `json:"likes,omitempty"`
	Gender          *string       `json:"gender,omitempty"`
	Age             *int          `json:"age,omitempty"`
	Country         *string       `json:"country,omitempty"`
	Email           *string       `json:"email,omitempty"`
	Phone           *string       `json:"phone,omitempty"`
	InitialRentPaid *bool         `json:"initialRentPaid,omitempty"`
	RentedHouseID   *string       `json:"rentedHouseId,omitempty"`
	State           *string       `json:"state,omitempty"`
	SpouseID        *string       `json:"spouseId,omitempty"`
}

// UpdateProgress applies a whitelisted patch. Balance fields route through
// the same clamp-and-record path as SetMoney so the ledger sees them.
func (s *Store) UpdateProgress(userID string, patch ProgressPatch) error {
	if userID == "" {
		return ErrValidation
	}

	s.mu.Lock()
	p := s.ensureProgressLocked(userID)

	if patch.Money != nil || patch.Bank != nil {
		s.setMoneyLocked(userID, p, patch.Money, patch.Bank, "update")
	}
	if patch.Vehicle != nil {
		p.Vehicle = *patch.Vehicle
	}
	if patch.Vehicles != nil {
		p.Vehicles = patch.Vehicles
	}
	if patch.Shops != nil {
		p.Shops = patch.Shops
	}
	if patch.Houses != nil {
		p.Houses = patch.Houses
	}
	if patch.Likes != nil {
		p.Likes = patch.Likes
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Avatar != nil {
		p.Avatar = *patch.Avatar
	}
	if patch.Gender != nil {
		p.Gender = *patch.Gender
	}
	if patch.Age != nil {
		p.Age = *patch.Age
	}
	if patch.Country != nil {
		p.Country = *patch.Country
	}
	if patch.Email != nil {
		p.Email = *patch.Email
	}
	if patch.Phone != nil {
		p.Phone = *patch.Phone
	}
	if patch.InitialRentPaid != nil {
		p.InitialRentPaid = *patch.InitialRentPaid
	}
	if patch.RentedHouseID != nil {
		p.RentedHouseID = *patch.RentedHouseID
	}
	if patch.State != nil {
		p.State = *patch.State
	}
	if patch.SpouseID != nil {
		p.SpouseID = *patch.SpouseID
	}

	s.log("progress_update", userID, nil)
	s.mu.Unlock()
	s.saver.Schedule()
	return nil
}
