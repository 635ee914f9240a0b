package engine

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varelagames/aldea/internal/agents"
	"github.com/varelagames/aldea/internal/ledger"
	"github.com/varelagames/aldea/internal/profile"
	"github.com/varelagames/aldea/internal/protocol"
	"github.com/varelagames/aldea/internal/store"
	"github.com/varelagames/aldea/internal/world"
)

type frame struct {
	Typ  string
	Seq  int64
	Data any
}

type fakeClient struct {
	id, name string
	frames   []frame
}

func (c *fakeClient) ConnID() string   { return "conn:" + c.id }
func (c *fakeClient) UserID() string   { return c.id }
func (c *fakeClient) Username() string { return c.name }
func (c *fakeClient) Send(typ string, seq int64, data any) {
	c.frames = append(c.frames, frame{typ, seq, data})
}

func (c *fakeClient) lastAck(t *testing.T) protocol.Ack {
	t.Helper()
	for i := len(c.frames) - 1; i >= 0; i-- {
		if c.frames[i].Typ == protocol.TypeAck {
			return c.frames[i].Data.(protocol.Ack)
		}
	}
	t.Fatal("no ack received")
	return protocol.Ack{}
}

func (c *fakeClient) count(typ string) int {
	n := 0
	for _, f := range c.frames {
		if f.Typ == typ {
			n++
		}
	}
	return n
}

func newTestSim(t *testing.T) *Simulation {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "aldea.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	led, err := ledger.New(st)
	require.NoError(t, err)
	profiles, err := profile.New(st, led)
	require.NoError(t, err)
	registry, err := world.NewRegistry(st)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Seed = 1
	cfg.AgentCount = 0
	return New(cfg, profiles, registry)
}

// event builds an inbound frame the way the websocket layer would.
func event(t *testing.T, c Client, typ string, seq int64, payload any) Inbound {
	t.Helper()
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		raw = b
	}
	return Inbound{Client: c, Env: protocol.Envelope{Type: typ, Seq: seq, Data: raw}}
}

func TestCreatePlayerIdempotent(t *testing.T) {
	s := newTestSim(t)
	c := &fakeClient{id: "u1", name: "ana"}
	s.handleJoin(c)

	s.dispatch(event(t, c, protocol.TypeCreatePlayer, 1, protocol.CreatePlayerMsg{X: 100, Y: 100, Gender: "F"}))
	require.Len(t, s.players, 1)
	first := c.lastAck(t)
	assert.True(t, first.OK)
	require.NotNil(t, first.Money)
	assert.Equal(t, profile.DefaultMoney, *first.Money)

	// Reconnect on a new socket: same live entry, rebinding only.
	c2 := &fakeClient{id: "u1", name: "ana"}
	s.handleJoin(c2)
	s.dispatch(event(t, c2, protocol.TypeCreatePlayer, 2, protocol.CreatePlayerMsg{X: 500, Y: 500}))
	assert.Len(t, s.players, 1)
	assert.Equal(t, 100.0, s.players["u1"].X)
	assert.Same(t, c2, s.clients[c2.ConnID()].(*fakeClient))
}

func TestUnauthenticatedCannotMutate(t *testing.T) {
	s := newTestSim(t)
	c := &fakeClient{}
	s.dispatch(event(t, c, protocol.TypeCreatePlayer, 1, protocol.CreatePlayerMsg{}))
	a := c.lastAck(t)
	assert.False(t, a.OK)
	assert.Empty(t, s.players)
}

func TestUpdateRateLimitAndDualWrite(t *testing.T) {
	s := newTestSim(t)
	c := &fakeClient{id: "u1", name: "ana"}
	s.handleJoin(c)
	s.dispatch(event(t, c, protocol.TypeCreatePlayer, 1, protocol.CreatePlayerMsg{}))

	money := 350
	s.dispatch(event(t, c, protocol.TypeUpdate, 2, protocol.UpdateMsg{Money: &money}))
	assert.True(t, c.lastAck(t).OK)

	// Within the minimum spacing: rejected, no state change.
	money2 := 1
	s.dispatch(event(t, c, protocol.TypeUpdate, 3, protocol.UpdateMsg{Money: &money2}))
	assert.False(t, c.lastAck(t).OK)

	assert.Equal(t, 350, s.players["u1"].Money)
	assert.Equal(t, 350, s.profiles.EnsureProgress("u1").Money)
}

func TestPlaceShopAssignsIDAndBroadcasts(t *testing.T) {
	s := newTestSim(t)
	c := &fakeClient{id: "u1", name: "ana"}
	s.handleJoin(c)
	s.dispatch(event(t, c, protocol.TypeCreatePlayer, 1, protocol.CreatePlayerMsg{}))

	s.dispatch(event(t, c, protocol.TypePlaceShop, 2, protocol.PlaceShopMsg{X: 10, Y: 10, W: 60, H: 40}))
	a := c.lastAck(t)
	require.True(t, a.OK)
	require.NotNil(t, a.Shop)
	assert.NotEmpty(t, a.Shop.ID)
	assert.Equal(t, "u1", a.Shop.OwnerID)
	assert.Equal(t, agents.DefaultPrice, a.Shop.Price)
	assert.Equal(t, 1, c.count(protocol.TypeShopPlaced))
	assert.Len(t, s.profiles.AllShops(), 1)
}

func TestRestoreItemsSkipsNearDuplicates(t *testing.T) {
	s := newTestSim(t)
	c := &fakeClient{id: "u1", name: "ana"}
	s.handleJoin(c)
	s.dispatch(event(t, c, protocol.TypeCreatePlayer, 1, protocol.CreatePlayerMsg{}))
	s.dispatch(event(t, c, protocol.TypePlaceShop, 2, protocol.PlaceShopMsg{X: 100, Y: 100, W: 60, H: 40}))

	// One shop within tolerance of the live one, one genuinely new.
	s.dispatch(event(t, c, protocol.TypeRestoreItems, 3, protocol.RestoreItemsMsg{
		Shops: []world.Shop{
			{Rect: world.Rect{X: 108, Y: 94, W: 62, H: 38}},
			{Rect: world.Rect{X: 900, Y: 900, W: 60, H: 40}},
		},
	}))
	assert.True(t, c.lastAck(t).OK)
	assert.Len(t, s.profiles.AllShops(), 2)
}

func TestMarriageBothOrNeither(t *testing.T) {
	s := newTestSim(t)
	a := &fakeClient{id: "u1", name: "ana"}
	b := &fakeClient{id: "u2", name: "leo"}
	s.handleJoin(a)
	s.handleJoin(b)
	s.dispatch(event(t, a, protocol.TypeCreatePlayer, 1, protocol.CreatePlayerMsg{}))

	// Partner has no live player yet: nothing changes.
	s.dispatch(event(t, a, protocol.TypeMarriage, 2, protocol.MarriageMsg{AID: "u1", BID: "u2"}))
	assert.False(t, a.lastAck(t).OK)
	assert.False(t, s.players["u1"].Paired())

	s.dispatch(event(t, b, protocol.TypeCreatePlayer, 3, protocol.CreatePlayerMsg{}))
	s.dispatch(event(t, a, protocol.TypeMarriage, 4, protocol.MarriageMsg{AID: "u1", BID: "u2"}))
	assert.True(t, a.lastAck(t).OK)
	assert.True(t, s.players["u1"].Paired())
	assert.True(t, s.players["u2"].Paired())
	assert.Equal(t, "u2", s.players["u1"].SpouseID)

	// Persisted for humans.
	assert.Equal(t, profile.StatePaired, s.profiles.EnsureProgress("u1").State)

	// The same pair again is a safe no-op; a different partner fails.
	s.dispatch(event(t, a, protocol.TypeMarriage, 5, protocol.MarriageMsg{AID: "u1", BID: "u2"}))
	assert.True(t, a.lastAck(t).OK)
	assert.Equal(t, "u2", s.players["u1"].SpouseID)
	c := &fakeClient{id: "u3", name: "mia"}
	s.handleJoin(c)
	s.dispatch(event(t, c, protocol.TypeCreatePlayer, 6, protocol.CreatePlayerMsg{}))
	s.dispatch(event(t, a, protocol.TypeMarriage, 7, protocol.MarriageMsg{AID: "u1", BID: "u3"}))
	assert.False(t, a.lastAck(t).OK)
}

func TestChatDirectDelivery(t *testing.T) {
	s := newTestSim(t)
	a := &fakeClient{id: "u1", name: "ana"}
	b := &fakeClient{id: "u2", name: "leo"}
	s.handleJoin(a)
	s.handleJoin(b)
	s.dispatch(event(t, a, protocol.TypeCreatePlayer, 1, protocol.CreatePlayerMsg{}))
	s.dispatch(event(t, b, protocol.TypeCreatePlayer, 1, protocol.CreatePlayerMsg{}))

	s.dispatch(event(t, a, protocol.TypeChatSend, 2, protocol.ChatSendMsg{ToName: "leo", Text: "hola"}))
	assert.True(t, a.lastAck(t).OK)
	assert.Equal(t, 1, b.count(protocol.TypeChatMsg))
	assert.Equal(t, 1, a.count(protocol.TypeChatMsg), "sender gets an echo")

	// Offline recipient fails.
	s.handleLeave(b.ConnID())
	s.dispatch(event(t, a, protocol.TypeChatSend, 3, protocol.ChatSendMsg{To: "u2", Text: "hola?"}))
	assert.False(t, a.lastAck(t).OK)
}

func TestShiftPayLandsInPocketMoney(t *testing.T) {
	s := newTestSim(t)
	p := &agents.Player{ID: "B1", IsBot: true, Money: 400}
	s.players["B1"] = p

	s.agentDeposit(p, agents.DepositAmount)
	assert.Equal(t, 420, p.Money)
	assert.Equal(t, 0, p.Bank)
	assert.Equal(t, 420, s.profiles.EnsureProgress("B1").Money)

	// Enough shifts must eventually fund a house purchase.
	for p.Money < agents.HouseCost {
		s.agentDeposit(p, agents.DepositAmount)
	}
	assert.GreaterOrEqual(t, p.Money, agents.HouseCost)
	assert.Equal(t, p.Money, s.profiles.EnsureProgress("B1").Money)
}

func TestRentCollection(t *testing.T) {
	s := newTestSim(t)
	s.registry.AddGlobalHouse(world.House{ID: "H1", Rect: world.Rect{X: 10, Y: 10, W: 90, H: 80}, RentedBy: "u1"})
	s.profiles.SetMoney("u1", 100, nil)
	s.players["u1"] = &agents.Player{ID: "u1", Money: 100}

	s.collectRent()
	assert.Equal(t, 50, s.players["u1"].Money)
	assert.Equal(t, 50, s.profiles.EnsureProgress("u1").Money)
	assert.Equal(t, 50, s.registry.GovernmentState().Funds)
	assert.Equal(t, 50, s.gov.Funds)
}

func TestRentSkipsAbsentTenant(t *testing.T) {
	s := newTestSim(t)
	s.registry.AddGlobalHouse(world.House{ID: "H1", Rect: world.Rect{X: 10, Y: 10, W: 90, H: 80}, RentedBy: "B1"})
	s.profiles.SetMoney("B1", 100, nil)

	// The tenant despawned; its durable balance stays untouched.
	s.collectRent()
	assert.Equal(t, 100, s.profiles.EnsureProgress("B1").Money)
	assert.Equal(t, 0, s.registry.GovernmentState().Funds)
}

func TestRentInsufficientFundsOnlyNotifies(t *testing.T) {
	s := newTestSim(t)
	s.registry.AddGlobalHouse(world.House{ID: "H1", Rect: world.Rect{X: 10, Y: 10, W: 90, H: 80}, RentedBy: "u1"})
	s.profiles.SetMoney("u1", 40, nil)
	s.players["u1"] = &agents.Player{ID: "u1", Money: 40}
	c := &fakeClient{id: "u1", name: "ana"}
	s.handleJoin(c)

	s.collectRent()
	assert.Equal(t, 40, s.profiles.EnsureProgress("u1").Money)
	assert.Equal(t, 0, s.registry.GovernmentState().Funds)
	assert.Equal(t, 1, c.count(protocol.TypeToast))
}

func TestOwnedHouseNotCharged(t *testing.T) {
	s := newTestSim(t)
	s.registry.AddGlobalHouse(world.House{ID: "H1", Rect: world.Rect{X: 10, Y: 10, W: 90, H: 80}, OwnerID: "u1"})
	s.profiles.SetMoney("u1", 100, nil)

	s.collectRent()
	assert.Equal(t, 100, s.profiles.EnsureProgress("u1").Money)
}

func TestSalaryPaidFromCashbox(t *testing.T) {
	s := newTestSim(t)
	s.profiles.AddShop("u1", world.Shop{ID: "S1", Cashbox: 100, EmployeeID: "B1"})

	s.paySalaries()
	shops := s.profiles.AllShops()
	require.Len(t, shops, 1)
	assert.Equal(t, 75, shops[0].Cashbox)
	assert.Equal(t, "B1", shops[0].EmployeeID)
	assert.Equal(t, 25, s.registry.GovernmentState().Funds)
}

func TestSalaryInsolvencyFiresEmployee(t *testing.T) {
	s := newTestSim(t)
	s.profiles.AddShop("u1", world.Shop{ID: "S1", Cashbox: 10, EmployeeID: "B1"})
	s.players["B1"] = &agents.Player{ID: "B1", IsBot: true}
	watcher := &fakeClient{id: "u9", name: "x"}
	s.handleJoin(watcher)

	s.paySalaries()
	shops := s.profiles.AllShops()
	require.Len(t, shops, 1)
	assert.Equal(t, 10, shops[0].Cashbox, "cashbox untouched on insolvency")
	assert.Empty(t, shops[0].EmployeeID)
	assert.NotContains(t, s.players, "B1")
	assert.Equal(t, 1, watcher.count(protocol.TypePlayerLeft))
	assert.Equal(t, 0, s.registry.GovernmentState().Funds)
}

func TestHireAndFireEmployee(t *testing.T) {
	s := newTestSim(t)
	c := &fakeClient{id: "u1", name: "ana"}
	s.handleJoin(c)
	s.dispatch(event(t, c, protocol.TypeCreatePlayer, 1, protocol.CreatePlayerMsg{}))
	s.dispatch(event(t, c, protocol.TypePlaceShop, 2, protocol.PlaceShopMsg{X: 10, Y: 10, W: 60, H: 40}))
	shopID := c.lastAck(t).Shop.ID

	// Nobody to hire yet.
	s.dispatch(event(t, c, protocol.TypeHireEmployee, 3, protocol.EmployeeMsg{ShopID: shopID}))
	assert.False(t, c.lastAck(t).OK)

	s.players["B1"] = &agents.Player{ID: "B1", IsBot: true}
	s.dispatch(event(t, c, protocol.TypeHireEmployee, 4, protocol.EmployeeMsg{ShopID: shopID}))
	a := c.lastAck(t)
	require.True(t, a.OK)
	assert.Equal(t, "B1", a.ID)
	assert.Equal(t, "B1", s.profiles.AllShops()[0].EmployeeID)

	s.dispatch(event(t, c, protocol.TypeFireEmployee, 5, protocol.EmployeeMsg{ShopID: shopID}))
	assert.True(t, c.lastAck(t).OK)
	assert.Empty(t, s.profiles.AllShops()[0].EmployeeID)
}

func TestPlaceGovClampsTreasury(t *testing.T) {
	s := newTestSim(t)
	c := &fakeClient{id: "u1", name: "ana"}
	s.handleJoin(c)
	s.dispatch(event(t, c, protocol.TypeCreatePlayer, 1, protocol.CreatePlayerMsg{}))

	s.dispatch(event(t, c, protocol.TypePlaceGov, 2, protocol.PlaceGovMsg{Cost: 500, X: 1, Y: 1, W: 50, H: 50}))
	assert.True(t, c.lastAck(t).OK)
	assert.Equal(t, 0, s.gov.Funds, "treasury clamps at zero")
	assert.Len(t, s.registry.GovernmentState().Placed, 1)
	assert.Equal(t, 1, c.count(protocol.TypeGovPlaced))
}

func TestDisconnectKeepsProgress(t *testing.T) {
	s := newTestSim(t)
	c := &fakeClient{id: "u1", name: "ana"}
	s.handleJoin(c)
	s.dispatch(event(t, c, protocol.TypeCreatePlayer, 1, protocol.CreatePlayerMsg{}))
	money := 777
	s.dispatch(event(t, c, protocol.TypeUpdate, 2, protocol.UpdateMsg{Money: &money}))

	s.handleLeave(c.ConnID())
	assert.Empty(t, s.players)
	assert.Equal(t, 777, s.profiles.EnsureProgress("u1").Money)
}

func TestSeedAgentsAssignsVacantHouses(t *testing.T) {
	s := newTestSim(t)
	s.cfg.AgentCount = 2
	s.registry.AddGlobalHouse(world.House{ID: "H1", Rect: world.Rect{X: 10, Y: 10, W: 90, H: 80}})
	s.registry.AddGlobalHouse(world.House{ID: "H2", Rect: world.Rect{X: 500, Y: 10, W: 90, H: 80}})

	s.seedAgents()
	require.Len(t, s.players, 2)
	rented := 0
	for _, h := range s.registry.Houses() {
		if h.RentedBy != "" {
			assert.NotEmpty(t, h.MarkerInitial)
			rented++
		}
	}
	assert.Equal(t, 2, rented)
	assert.Equal(t, profile.DefaultMoney, s.players["B1"].Money)
}

func TestRunLoopStops(t *testing.T) {
	s := newTestSim(t)
	done := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { done <- s.Run(ctx) }()

	c := &fakeClient{id: "u1", name: "ana"}
	s.Join(c)
	s.Deliver(c, protocol.Envelope{Type: protocol.TypeCreatePlayer, Seq: 1})

	time.Sleep(50 * time.Millisecond)
	s.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run loop did not stop")
	}
}
