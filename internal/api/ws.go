// Websocket transport into the live world. Each connection gets a writer
// goroutine fed from a bounded queue; the reader loop decodes frames and
// hands them to the world loop in arrival order.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/varelagames/aldea/internal/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16 * 1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeWait  = 5 * time.Second
	pongWait   = 120 * time.Second
	sendBuffer = 64
)

// pingPeriod must leave the peer enough slack to answer before pongWait
// expires. Variable so tests can shorten the keepalive cycle.
var pingPeriod = 45 * time.Second

// wsClient is one socket bound to an authenticated user. Send never blocks
// the world loop: when the queue is full the frame is dropped and the next
// snapshot repairs the client's view.
type wsClient struct {
	connID   string
	userID   string
	username string
	out      chan []byte
}

func (c *wsClient) ConnID() string   { return c.connID }
func (c *wsClient) UserID() string   { return c.userID }
func (c *wsClient) Username() string { return c.username }

func (c *wsClient) Send(typ string, seq int64, data any) {
	b, err := protocol.Encode(typ, seq, data)
	if err != nil {
		slog.Warn("encode frame", "type", typ, "error", err)
		return
	}
	select {
	case c.out <- b:
	default:
	}
}

// handleWS upgrades the connection. A session token (cookie or ?token=)
// binds the socket to a user; without one the socket may read broadcasts
// but every mutating event is refused.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	userID, username, _ := s.sessionFromRequest(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	c := &wsClient{
		connID:   uuid.NewString(),
		userID:   userID,
		username: username,
		out:      make(chan []byte, sendBuffer),
	}
	s.Sim.Join(c)
	defer s.Sim.Leave(c.connID)

	done := make(chan struct{})
	defer close(done)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Writer. Pings keep idle spectators alive; a missed pong lets the
	// read deadline expire and tear the connection down.
	go func() {
		ping := time.NewTicker(pingPeriod)
		defer ping.Stop()
		for {
			select {
			case <-done:
				return
			case <-ping.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case b := <-c.out:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
		}
	}()

	// Reader.
	for {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := protocol.DecodeBase(msg)
		if err != nil || env.Type == "" {
			continue
		}
		s.Sim.Deliver(c, env)
	}
}
