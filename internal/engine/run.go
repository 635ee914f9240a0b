package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/varelagames/aldea/internal/agents"
	"github.com/varelagames/aldea/internal/profile"
	"github.com/varelagames/aldea/internal/world"
)

// Run owns the world until the context is cancelled or Stop is called.
// Every mutation of live state happens on this goroutine, so handlers never
// take locks on the players map.
func (s *Simulation) Run(ctx context.Context) error {
	s.seedAgents()

	snapshot := time.NewTicker(s.cfg.SnapshotInterval)
	defer snapshot.Stop()
	agentTick := time.NewTicker(s.cfg.AgentTick)
	defer agentTick.Stop()
	rent := time.NewTicker(s.cfg.RentInterval)
	defer rent.Stop()
	salary := time.NewTicker(s.cfg.SalaryInterval)
	defer salary.Stop()
	explore := time.NewTicker(s.cfg.ExploreReset)
	defer explore.Stop()

	lastAgentTick := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case c := <-s.join:
			s.handleJoin(c)
		case id := <-s.leave:
			s.handleLeave(id)
		case in := <-s.inbox:
			s.dispatch(in)
		case now := <-agentTick.C:
			dt := now.Sub(lastAgentTick).Seconds()
			lastAgentTick = now
			s.tickAgents(now, dt)
		case <-snapshot.C:
			s.broadcastState()
		case <-rent.C:
			s.collectRent()
		case <-salary.C:
			s.paySalaries()
		case <-explore.C:
			s.resetExploration()
		}
	}
}

// seedAgents brings the server-agent population up to the configured count
// and assigns vacant houses as rentals.
func (s *Simulation) seedAgents() {
	taken := map[string]bool{}
	for _, h := range s.registry.Houses() {
		if h.MarkerInitial != "" {
			taken[h.MarkerInitial] = true
		}
	}

	for i := 0; i < s.cfg.AgentCount; i++ {
		p := s.spawner.Spawn(i)
		if _, ok := s.players[p.ID]; ok {
			continue
		}

		// Durable progress survives restarts; the spawned defaults only
		// apply the first time.
		prog := s.profiles.RegisterAgent(p.ID, p.Username, p.Money)
		p.Money = prog.Money
		p.Bank = prog.Bank
		if prog.State != "" {
			p.State = prog.State
		}
		p.SpouseID = prog.SpouseID
		p.RentedHouseID = prog.RentedHouseID
		for _, h := range prog.Houses {
			if h.OwnerID == p.ID {
				p.OwnedHouseID = h.ID
				break
			}
		}

		if p.RentedHouseID == "" && p.OwnedHouseID == "" {
			for _, h := range s.registry.Houses() {
				if !h.Vacant() {
					continue
				}
				marker := agents.MarkerInitial(p.Username, taken)
				taken[marker] = true
				tenant := p.ID
				if s.registry.UpdateGlobalHouse(h.ID, world.HousePatch{RentedBy: &tenant, MarkerInitial: &marker}) {
					p.RentedHouseID = h.ID
					p.MarkerInitial = marker
					hid := h.ID
					s.profiles.UpdateProgress(p.ID, profile.ProgressPatch{RentedHouseID: &hid})
				}
				break
			}
		}

		s.players[p.ID] = p
	}
	slog.Info("agents seeded", "count", s.cfg.AgentCount)
}

// resetExploration wipes every agent's sector grid so the map gets
// re-covered periodically.
func (s *Simulation) resetExploration() {
	for _, p := range s.players {
		if p.IsBot && p.Grid != nil {
			p.Grid.Reset()
		}
	}
	slog.Debug("exploration grids reset")
}
