// Package engine runs the live world. One goroutine owns all mutable live
// state; client events, joins, and leaves arrive over channels, and tickers
// drive the snapshot broadcast, agent behavior, and the economy cycles.
// Durable state stays in the profile store and world registry; the engine
// mirrors balances into live players so snapshots never drift from the
// ledger's truth.
package engine

import (
	"math/rand"
	"time"

	"github.com/varelagames/aldea/internal/agents"
	"github.com/varelagames/aldea/internal/profile"
	"github.com/varelagames/aldea/internal/protocol"
	"github.com/varelagames/aldea/internal/world"
)

// Config sets the engine's cycle lengths and economy amounts.
type Config struct {
	SnapshotInterval time.Duration
	AgentTick        time.Duration
	RentInterval     time.Duration
	SalaryInterval   time.Duration
	ExploreReset     time.Duration

	RentAmount   int
	SalaryAmount int
	UpdateMinGap time.Duration

	AgentCount int
	Seed       int64
}

// DefaultConfig returns the production cycle lengths.
func DefaultConfig() Config {
	return Config{
		SnapshotInterval: 150 * time.Millisecond,
		AgentTick:        120 * time.Millisecond,
		RentInterval:     10 * time.Minute,
		SalaryInterval:   2 * time.Minute,
		ExploreReset:     15 * time.Minute,
		RentAmount:       50,
		SalaryAmount:     25,
		UpdateMinGap:     80 * time.Millisecond,
		AgentCount:       8,
		Seed:             time.Now().UnixNano(),
	}
}

// Client is one connected socket. UserID is empty for spectators, who
// receive broadcasts but cannot mutate. Send must not block; slow consumers
// drop frames rather than stalling the world loop.
type Client interface {
	ConnID() string
	UserID() string
	Username() string
	Send(typ string, seq int64, data any)
}

// Inbound is a decoded frame from one client.
type Inbound struct {
	Client Client
	Env    protocol.Envelope
}

// Simulation owns the live world. All fields are touched only from the Run
// goroutine once it starts.
type Simulation struct {
	cfg      Config
	profiles *profile.Store
	registry *world.Registry
	rng      *rand.Rand
	spawner  *agents.Spawner

	players map[string]*agents.Player
	clients map[string]Client // keyed by connection id
	gov     world.Government

	join  chan Client
	leave chan string
	inbox chan Inbound
	stop  chan struct{}
}

// New wires a simulation over the durable stores. Call Run to start it.
func New(cfg Config, profiles *profile.Store, registry *world.Registry) *Simulation {
	return &Simulation{
		cfg:      cfg,
		profiles: profiles,
		registry: registry,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		spawner:  agents.NewSpawner(cfg.Seed),
		players:  make(map[string]*agents.Player),
		clients:  make(map[string]Client),
		gov:      registry.GovernmentState(),
		join:     make(chan Client, 16),
		leave:    make(chan string, 16),
		inbox:    make(chan Inbound, 256),
		stop:     make(chan struct{}),
	}
}

// Join hands a connected client to the world loop.
func (s *Simulation) Join(c Client) { s.join <- c }

// Leave tells the world loop a connection is gone.
func (s *Simulation) Leave(connID string) { s.leave <- connID }

// Deliver queues one decoded client frame.
func (s *Simulation) Deliver(c Client, env protocol.Envelope) {
	s.inbox <- Inbound{Client: c, Env: env}
}

// Stop terminates Run.
func (s *Simulation) Stop() { close(s.stop) }

// broadcast sends one frame to every connected client.
func (s *Simulation) broadcast(typ string, data any) {
	for _, c := range s.clients {
		c.Send(typ, 0, data)
	}
}

// clientByUser finds a connected client bound to the user, if any.
func (s *Simulation) clientByUser(userID string) Client {
	if userID == "" {
		return nil
	}
	for _, c := range s.clients {
		if c.UserID() == userID {
			return c
		}
	}
	return nil
}

// toast sends a transient notification to one user, if connected.
func (s *Simulation) toast(userID, message string) {
	if c := s.clientByUser(userID); c != nil {
		c.Send(protocol.TypeToast, 0, protocol.ToastMsg{Message: message})
	}
}

// refreshGov re-reads the treasury mirror after a registry mutation.
func (s *Simulation) refreshGov() {
	s.gov = s.registry.GovernmentState()
}
