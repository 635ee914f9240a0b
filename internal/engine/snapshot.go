package engine

import (
	"github.com/varelagames/aldea/internal/agents"
	"github.com/varelagames/aldea/internal/protocol"
)

// broadcastState publishes the full world to every connection. Everybody
// gets everything; world sizes are hundreds of entities, not thousands.
func (s *Simulation) broadcastState() {
	if len(s.clients) == 0 {
		return
	}

	players := make([]agents.Player, 0, len(s.players))
	for _, p := range s.players {
		players = append(players, *p)
	}

	s.broadcast(protocol.TypeState, protocol.StateMsg{
		Players:    players,
		Shops:      s.profiles.AllShops(),
		Houses:     s.registry.Houses(),
		Government: s.gov,
	})
}
