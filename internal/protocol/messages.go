package protocol

import (
	"github.com/varelagames/aldea/internal/agents"
	"github.com/varelagames/aldea/internal/world"
)

// createPlayer (client -> server)
type CreatePlayerMsg struct {
	Code   string  `json:"code,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Gender string  `json:"gender,omitempty"`
	Avatar string  `json:"avatar,omitempty"`
}

// update (client -> server). Pointer fields distinguish absent from zero.
type UpdateMsg struct {
	X       *float64 `json:"x,omitempty"`
	Y       *float64 `json:"y,omitempty"`
	Money   *int     `json:"money,omitempty"`
	Bank    *int     `json:"bank,omitempty"`
	Vehicle *string  `json:"vehicle,omitempty"`
}

// placeShop (client -> server)
type PlaceShopMsg struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
	Kind  string  `json:"kind,omitempty"`
	Price int     `json:"price,omitempty"`
}

// placeHouse (client -> server)
type PlaceHouseMsg struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// restoreItems (client -> server)
type RestoreItemsMsg struct {
	Shops  []world.Shop  `json:"shops"`
	Houses []world.House `json:"houses"`
}

// marriage (client -> server)
type MarriageMsg struct {
	AID string `json:"aId"`
	BID string `json:"bId"`
}

// placeGov (client -> server)
type PlaceGovMsg struct {
	Cost int     `json:"cost"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	W    float64 `json:"w"`
	H    float64 `json:"h"`
}

// hireEmployee / fireEmployee (client -> server)
type EmployeeMsg struct {
	ShopID string `json:"shopId"`
}

// chat:send (client -> server). To is a player id; ToName resolves by
// username when To is empty.
type ChatSendMsg struct {
	To     string `json:"to,omitempty"`
	ToName string `json:"toName,omitempty"`
	Text   string `json:"text,omitempty"`
	Gift   string `json:"gift,omitempty"`
}

// state (server -> client), the periodic full snapshot.
type StateMsg struct {
	Players    []agents.Player  `json:"players"`
	Shops      []world.Shop     `json:"shops"`
	Houses     []world.House    `json:"houses"`
	Government world.Government `json:"government"`
}

// playerLeft (server -> client)
type PlayerLeftMsg struct {
	ID string `json:"id"`
}

// toast (server -> client)
type ToastMsg struct {
	Message string `json:"message"`
}

// chat:msg (server -> client)
type ChatMsg struct {
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text,omitempty"`
	Gift string `json:"gift,omitempty"`
	TS   int64  `json:"ts"`
}

// govPlaced (server -> client)
type GovPlacedMsg struct {
	Placement world.Placement `json:"placement"`
	Funds     int             `json:"funds"`
}

// Ack is the generic response to a mutating client event. Extra result
// fields ride alongside ok/msg per event type.
type Ack struct {
	OK  bool   `json:"ok"`
	Msg string `json:"msg,omitempty"`

	ID    string       `json:"id,omitempty"`
	Shop  *world.Shop  `json:"shop,omitempty"`
	House *world.House `json:"house,omitempty"`
	Money *int         `json:"money,omitempty"`
}

// Fail builds a failure ack with a human-readable reason.
func Fail(msg string) Ack {
	return Ack{OK: false, Msg: msg}
}

// OKAck builds a bare success ack.
func OKAck() Ack {
	return Ack{OK: true}
}
