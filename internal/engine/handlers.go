package engine

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/varelagames/aldea/internal/agents"
	"github.com/varelagames/aldea/internal/profile"
	"github.com/varelagames/aldea/internal/protocol"
	"github.com/varelagames/aldea/internal/world"
)

func (s *Simulation) handleJoin(c Client) {
	s.clients[c.ConnID()] = c
}

// handleLeave removes the live entry and tells everyone. Durable progress
// is untouched; it is the source of truth for the next reconnect.
func (s *Simulation) handleLeave(connID string) {
	c, ok := s.clients[connID]
	if !ok {
		return
	}
	delete(s.clients, connID)

	uid := c.UserID()
	if uid == "" || s.clientByUser(uid) != nil {
		// Spectator, or the user still has another connection bound.
		return
	}
	if _, live := s.players[uid]; live {
		delete(s.players, uid)
		s.broadcast(protocol.TypePlayerLeft, protocol.PlayerLeftMsg{ID: uid})
	}
}

// ack replies to the frame's sender when an ack was requested.
func ack(in Inbound, a protocol.Ack) {
	if in.Env.Seq != 0 {
		in.Client.Send(protocol.TypeAck, in.Env.Seq, a)
	}
}

// dispatch routes one client frame. A handler failure acks that caller and
// never takes the loop down.
func (s *Simulation) dispatch(in Inbound) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked", "type", in.Env.Type, "err", r)
			ack(in, protocol.Fail("internal error"))
		}
	}()

	uid := in.Client.UserID()
	if uid == "" {
		ack(in, protocol.Fail("not authenticated"))
		return
	}

	switch in.Env.Type {
	case protocol.TypeCreatePlayer:
		s.handleCreatePlayer(in, uid)
	case protocol.TypeUpdate:
		s.handleUpdate(in, uid)
	case protocol.TypePlaceShop:
		s.handlePlaceShop(in, uid)
	case protocol.TypePlaceHouse:
		s.handlePlaceHouse(in, uid)
	case protocol.TypeRestoreItems:
		s.handleRestoreItems(in, uid)
	case protocol.TypeMarriage:
		s.handleMarriage(in)
	case protocol.TypePlaceGov:
		s.handlePlaceGov(in)
	case protocol.TypeHireEmployee:
		s.handleHireEmployee(in)
	case protocol.TypeFireEmployee:
		s.handleFireEmployee(in)
	case protocol.TypeChatSend:
		s.handleChat(in, uid)
	default:
		ack(in, protocol.Fail("unknown event"))
	}
}

func decode[T any](in Inbound) (T, bool) {
	var msg T
	if len(in.Env.Data) > 0 {
		if err := json.Unmarshal(in.Env.Data, &msg); err != nil {
			ack(in, protocol.Fail("bad payload"))
			var zero T
			return zero, false
		}
	}
	return msg, true
}

// handleCreatePlayer is idempotent per user: a reconnect rebinds the
// connection to the existing live entry instead of duplicating it.
func (s *Simulation) handleCreatePlayer(in Inbound, uid string) {
	msg, ok := decode[protocol.CreatePlayerMsg](in)
	if !ok {
		return
	}

	if p, exists := s.players[uid]; exists {
		ack(in, protocol.Ack{OK: true, ID: p.ID, Money: &p.Money})
		return
	}

	prog := s.profiles.EnsureProgress(uid)
	p := &agents.Player{
		ID:       uid,
		Username: in.Client.Username(),
		X:        world.Clamp(msg.X, 0, world.Width),
		Y:        world.Clamp(msg.Y, 0, world.Height),
		Money:    prog.Money,
		Bank:     prog.Bank,
		Gender:   prog.Gender,
		Avatar:   prog.Avatar,
		Vehicle:  prog.Vehicle,
		State:    prog.State,
		SpouseID: prog.SpouseID,

		RentedHouseID: prog.RentedHouseID,
	}
	if msg.Gender != "" {
		p.Gender = msg.Gender
	}
	if msg.Avatar != "" {
		p.Avatar = msg.Avatar
	}
	for _, h := range prog.Houses {
		if h.OwnerID == uid {
			p.OwnedHouseID = h.ID
			break
		}
	}

	s.players[uid] = p
	s.broadcast(protocol.TypePlayerJoined, p)
	ack(in, protocol.Ack{OK: true, ID: p.ID, Money: &p.Money})
}

// handleUpdate applies client movement and balance changes, rate limited
// per connection. Money changes dual-write to the profile store so the
// broadcast mirror never drifts from durable truth.
func (s *Simulation) handleUpdate(in Inbound, uid string) {
	p, exists := s.players[uid]
	if !exists {
		ack(in, protocol.Fail("no live player"))
		return
	}

	now := time.Now()
	if now.Sub(p.LastUpdate) < s.cfg.UpdateMinGap {
		ack(in, protocol.Fail("too fast"))
		return
	}
	p.LastUpdate = now

	msg, ok := decode[protocol.UpdateMsg](in)
	if !ok {
		return
	}

	if msg.X != nil {
		p.X = world.Clamp(*msg.X, 0, world.Width)
	}
	if msg.Y != nil {
		p.Y = world.Clamp(*msg.Y, 0, world.Height)
	}
	if msg.Money != nil || msg.Bank != nil {
		money := p.Money
		if msg.Money != nil {
			money = *msg.Money
		}
		s.profiles.SetMoney(uid, money, msg.Bank)
		prog := s.profiles.EnsureProgress(uid)
		p.Money = prog.Money
		p.Bank = prog.Bank
	}
	if msg.Vehicle != nil {
		p.Vehicle = *msg.Vehicle
		s.profiles.SetVehicle(uid, *msg.Vehicle)
	}
	ack(in, protocol.OKAck())
}

func (s *Simulation) handlePlaceShop(in Inbound, uid string) {
	msg, ok := decode[protocol.PlaceShopMsg](in)
	if !ok {
		return
	}
	if msg.W <= 0 || msg.H <= 0 {
		ack(in, protocol.Fail("bad size"))
		return
	}

	price := msg.Price
	if price <= 0 {
		price = agents.DefaultPrice
	}
	shop := world.Shop{
		ID:        "S-" + uuid.NewString()[:8],
		Rect:      world.Rect{X: msg.X, Y: msg.Y, W: msg.W, H: msg.H},
		Kind:      msg.Kind,
		Price:     price,
		OwnerID:   uid,
		CreatedAt: time.Now().UnixMilli(),
	}
	s.profiles.AddShop(uid, shop)
	s.broadcast(protocol.TypeShopPlaced, shop)
	ack(in, protocol.Ack{OK: true, ID: shop.ID, Shop: &shop})
}

func (s *Simulation) handlePlaceHouse(in Inbound, uid string) {
	msg, ok := decode[protocol.PlaceHouseMsg](in)
	if !ok {
		return
	}
	if msg.W <= 0 || msg.H <= 0 {
		ack(in, protocol.Fail("bad size"))
		return
	}

	house := world.House{
		ID:        "H-" + uuid.NewString()[:8],
		Rect:      world.Rect{X: msg.X, Y: msg.Y, W: msg.W, H: msg.H},
		OwnerID:   uid,
		CreatedAt: time.Now().UnixMilli(),
	}
	if !s.registry.AddGlobalHouse(house) {
		ack(in, protocol.Fail("house already exists here"))
		return
	}
	s.profiles.AddHouse(uid, house)
	s.broadcast(protocol.TypeHousePlaced, house)
	ack(in, protocol.Ack{OK: true, ID: house.ID, House: &house})
}

// Tolerances for reconciling client-replayed structures after a reconnect.
const (
	restorePosTol  = 16.0
	restoreSizeTol = 12.0
)

// handleRestoreItems re-inserts previously-owned structures a client still
// believes it has, skipping anything the live state already contains at
// roughly the same place.
func (s *Simulation) handleRestoreItems(in Inbound, uid string) {
	msg, ok := decode[protocol.RestoreItemsMsg](in)
	if !ok {
		return
	}

	restored := 0
	live := s.profiles.AllShops()
	for _, shop := range msg.Shops {
		if similarShopExists(live, shop.Rect) {
			continue
		}
		shop.OwnerID = uid
		if shop.ID == "" {
			shop.ID = "S-" + uuid.NewString()[:8]
		}
		s.profiles.AddShop(uid, shop)
		s.broadcast(protocol.TypeShopPlaced, shop)
		restored++
	}

	houses := s.registry.Houses()
	for _, house := range msg.Houses {
		if similarHouseExists(houses, house.Rect) {
			continue
		}
		house.OwnerID = uid
		if house.ID == "" {
			house.ID = "H-" + uuid.NewString()[:8]
		}
		if s.registry.AddGlobalHouse(house) {
			s.profiles.AddHouse(uid, house)
			s.broadcast(protocol.TypeHousePlaced, house)
			restored++
		}
	}
	ack(in, protocol.Ack{OK: true, Msg: fmt.Sprintf("restored %d", restored)})
}

func similarShopExists(shops []world.Shop, r world.Rect) bool {
	for _, s := range shops {
		if world.SimilarPlacement(s.Rect, r, restorePosTol, restoreSizeTol) {
			return true
		}
	}
	return false
}

func similarHouseExists(houses []world.House, r world.Rect) bool {
	for _, h := range houses {
		if world.SimilarPlacement(h.Rect, r, restorePosTol, restoreSizeTol) {
			return true
		}
	}
	return false
}

// handleMarriage pairs two live players atomically: both transition or
// neither does.
func (s *Simulation) handleMarriage(in Inbound) {
	msg, ok := decode[protocol.MarriageMsg](in)
	if !ok {
		return
	}

	a, aOK := s.players[msg.AID]
	b, bOK := s.players[msg.BID]
	if !aOK || !bOK || msg.AID == msg.BID {
		ack(in, protocol.Fail("both players must be present"))
		return
	}
	if a.SpouseID == b.ID && b.SpouseID == a.ID {
		// Repeat of an applied marriage, safe no-op.
		ack(in, protocol.OKAck())
		return
	}
	if a.Paired() || b.Paired() {
		ack(in, protocol.Fail("already paired"))
		return
	}

	a.State, b.State = profile.StatePaired, profile.StatePaired
	a.SpouseID, b.SpouseID = b.ID, a.ID

	paired := profile.StatePaired
	if !a.IsBot {
		s.profiles.UpdateProgress(a.ID, profile.ProgressPatch{State: &paired, SpouseID: &b.ID})
	}
	if !b.IsBot {
		s.profiles.UpdateProgress(b.ID, profile.ProgressPatch{State: &paired, SpouseID: &a.ID})
	}
	ack(in, protocol.OKAck())
}

func (s *Simulation) handlePlaceGov(in Inbound) {
	msg, ok := decode[protocol.PlaceGovMsg](in)
	if !ok {
		return
	}

	s.registry.PlaceGovernment(world.Placement{
		Cost: msg.Cost,
		Rect: world.Rect{X: msg.X, Y: msg.Y, W: msg.W, H: msg.H},
	})
	if msg.Cost > 0 {
		s.registry.AddGovernmentFunds(-msg.Cost)
	}
	s.refreshGov()
	s.broadcast(protocol.TypeGovPlaced, protocol.GovPlacedMsg{
		Placement: world.Placement{Cost: msg.Cost, Rect: world.Rect{X: msg.X, Y: msg.Y, W: msg.W, H: msg.H}},
		Funds:     s.gov.Funds,
	})
	ack(in, protocol.OKAck())
}

// handleHireEmployee staffs a shop with an unemployed server agent.
func (s *Simulation) handleHireEmployee(in Inbound) {
	msg, ok := decode[protocol.EmployeeMsg](in)
	if !ok {
		return
	}

	shops := s.profiles.AllShops()
	var target *world.Shop
	employed := map[string]bool{}
	for i := range shops {
		if shops[i].EmployeeID != "" {
			employed[shops[i].EmployeeID] = true
		}
		if shops[i].ID == msg.ShopID {
			target = &shops[i]
		}
	}
	if target == nil {
		ack(in, protocol.Fail("shop not found"))
		return
	}
	if target.EmployeeID != "" {
		ack(in, protocol.Fail("shop already staffed"))
		return
	}

	for _, p := range s.players {
		if !p.IsBot || employed[p.ID] {
			continue
		}
		eid := p.ID
		s.profiles.UpdateShop(msg.ShopID, profile.ShopPatch{EmployeeID: &eid})
		ack(in, protocol.Ack{OK: true, ID: eid})
		return
	}
	ack(in, protocol.Fail("nobody available to hire"))
}

func (s *Simulation) handleFireEmployee(in Inbound) {
	msg, ok := decode[protocol.EmployeeMsg](in)
	if !ok {
		return
	}
	empty := ""
	if !s.profiles.UpdateShop(msg.ShopID, profile.ShopPatch{EmployeeID: &empty}) {
		ack(in, protocol.Fail("shop not found"))
		return
	}
	ack(in, protocol.OKAck())
}

// handleChat delivers directly to the resolved recipient plus an echo to
// the sender. Chat is never broadcast.
func (s *Simulation) handleChat(in Inbound, uid string) {
	msg, ok := decode[protocol.ChatSendMsg](in)
	if !ok {
		return
	}

	to := msg.To
	if to == "" && msg.ToName != "" {
		for id, p := range s.players {
			if p.Username == msg.ToName {
				to = id
				break
			}
		}
	}
	rc := s.clientByUser(to)
	if rc == nil {
		ack(in, protocol.Fail("recipient offline"))
		return
	}

	out := protocol.ChatMsg{
		From: uid, To: to,
		Text: msg.Text, Gift: msg.Gift,
		TS: time.Now().UnixMilli(),
	}
	rc.Send(protocol.TypeChatMsg, 0, out)
	in.Client.Send(protocol.TypeChatMsg, 0, out)
	ack(in, protocol.OKAck())
}
