// Package protocol defines the websocket wire format: client events,
// server broadcasts, and the ack envelope.
package protocol

import "encoding/json"

// Client -> server event types.
const (
	TypeCreatePlayer = "createPlayer"
	TypeUpdate       = "update"
	TypePlaceShop    = "placeShop"
	TypePlaceHouse   = "placeHouse"
	TypeRestoreItems = "restoreItems"
	TypeMarriage     = "marriage"
	TypePlaceGov     = "placeGov"
	TypeHireEmployee = "hireEmployee"
	TypeFireEmployee = "fireEmployee"
	TypeChatSend     = "chat:send"
)

// Server -> client event types.
const (
	TypeState        = "state"
	TypePlayerJoined = "playerJoined"
	TypePlayerLeft   = "playerLeft"
	TypeShopPlaced   = "shopPlaced"
	TypeHousePlaced  = "housePlaced"
	TypeGovPlaced    = "govPlaced"
	TypeToast        = "toast"
	TypeChatMsg      = "chat:msg"
	TypeAck          = "ack"
)

// Envelope frames every message in both directions. Seq is a client-chosen
// id echoed back on the matching ack; zero means no ack is wanted.
type Envelope struct {
	Type string          `json:"type"`
	Seq  int64           `json:"seq,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// DecodeBase routes an incoming frame by type without committing to a
// payload shape.
func DecodeBase(b []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(b, &e)
	return e, err
}

// Encode frames an outgoing message.
func Encode(typ string, seq int64, data any) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Envelope{Type: typ, Seq: seq, Data: raw})
}
