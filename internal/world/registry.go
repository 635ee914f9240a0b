package world

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/varelagames/aldea/internal/store"
)

// DocKey is the registry's document key in the durable store.
const DocKey = "world"

// Tolerance, in world units, under which two houses count as the same
// placement. Guards against double-registration from redundant client replay.
const houseDedupTolerance = 2.0

// Registry holds the canonical world structures and the government treasury.
// It is safe for concurrent use; mutations schedule a debounced durable save.
type Registry struct {
	mu        sync.Mutex
	factories []Structure
	banks     []Structure
	houses    []House
	gov       Government

	saver *store.Saver
}

type registryDoc struct {
	Factories  []Structure `json:"factories"`
	Banks      []Structure `json:"banks"`
	Houses     []House     `json:"houses"`
	Government Government  `json:"government"`
}

// NewRegistry loads the world document from the store, or starts empty when
// none exists yet.
func NewRegistry(st store.DocStore) (*Registry, error) {
	r := &Registry{}
	r.saver = store.NewSaver(st, DocKey, store.DefaultDebounce, r.marshal)

	body, err := st.Load(DocKey)
	if errors.Is(err, store.ErrNotFound) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load world: %w", err)
	}

	var doc registryDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode world: %w", err)
	}
	r.factories = doc.Factories
	r.banks = doc.Banks
	r.houses = doc.Houses
	r.gov = doc.Government
	if r.gov.Placed == nil {
		r.gov.Placed = []Placement{}
	}
	return r, nil
}

func (r *Registry) marshal() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return json.Marshal(registryDoc{
		Factories:  r.factories,
		Banks:      r.banks,
		Houses:     r.houses,
		Government: r.gov,
	})
}

// Flush persists the registry synchronously.
func (r *Registry) Flush() error {
	return r.saver.Flush()
}

// SetWorldStructures wholesale-replaces factories and banks. A nil slice
// leaves the corresponding list untouched (bootstrap may send only one).
func (r *Registry) SetWorldStructures(factories, banks []Structure) {
	r.mu.Lock()
	if factories != nil {
		r.factories = factories
	}
	if banks != nil {
		r.banks = banks
	}
	r.mu.Unlock()
	r.saver.Schedule()
}

// Structures returns copies of the factory and bank lists.
func (r *Registry) Structures() (factories, banks []Structure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Structure(nil), r.factories...), append([]Structure(nil), r.banks...)
}

// AddGlobalHouse registers a house unless one with the same id, or one within
// the dedup tolerance of its position, already exists.
func (r *Registry) AddGlobalHouse(h House) bool {
	r.mu.Lock()
	for _, existing := range r.houses {
		samePos := math.Abs(existing.X-h.X) < houseDedupTolerance &&
			math.Abs(existing.Y-h.Y) < houseDedupTolerance
		if existing.ID == h.ID || samePos {
			r.mu.Unlock()
			return false
		}
	}
	r.houses = append(r.houses, h)
	r.mu.Unlock()
	r.saver.Schedule()
	return true
}

// Houses returns a copy of the global house list.
func (r *Registry) Houses() []House {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]House(nil), r.houses...)
}

// HousePatch is a partial update for a house. Nil fields are unchanged;
// pointing at the empty string clears a field.
type HousePatch struct {
	OwnerID       *string
	RentedBy      *string
	MarkerInitial *string
}

// UpdateGlobalHouse merges the patch into the matching house. Occupancy stays
// exclusive: taking ownership clears the renter and taking a rental clears
// the owner, regardless of what the patch says about the other field.
// Returns false if no house matches.
func (r *Registry) UpdateGlobalHouse(id string, patch HousePatch) bool {
	r.mu.Lock()
	var target *House
	for i := range r.houses {
		if r.houses[i].ID == id {
			target = &r.houses[i]
			break
		}
	}
	if target == nil {
		r.mu.Unlock()
		return false
	}

	if patch.OwnerID != nil {
		target.OwnerID = *patch.OwnerID
		if target.OwnerID != "" {
			target.RentedBy = ""
		}
	}
	if patch.RentedBy != nil {
		target.RentedBy = *patch.RentedBy
		if target.RentedBy != "" {
			target.OwnerID = ""
		}
	}
	if patch.MarkerInitial != nil {
		target.MarkerInitial = *patch.MarkerInitial
	}
	r.mu.Unlock()
	r.saver.Schedule()
	return true
}

// GovernmentState returns a copy of the government singleton.
func (r *Registry) GovernmentState() Government {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := r.gov
	g.Placed = append([]Placement(nil), r.gov.Placed...)
	return g
}

// AddGovernmentFunds applies a signed delta to the treasury, clamped at zero.
// A zero delta is rejected. Returns the resulting funds.
func (r *Registry) AddGovernmentFunds(delta int) (int, bool) {
	if delta == 0 {
		return 0, false
	}
	r.mu.Lock()
	r.gov.Funds += delta
	if r.gov.Funds < 0 {
		r.gov.Funds = 0
	}
	funds := r.gov.Funds
	r.mu.Unlock()
	r.saver.Schedule()
	slog.Info("government funds changed", "delta", delta, "funds", funds)
	return funds, true
}

// PlaceGovernment appends a placement record.
func (r *Registry) PlaceGovernment(p Placement) {
	r.mu.Lock()
	r.gov.Placed = append(r.gov.Placed, p)
	r.mu.Unlock()
	r.saver.Schedule()
}

// Bootstrap seeds the registry with a generated layout when it is empty.
func (r *Registry) Bootstrap(seed int64) {
	r.mu.Lock()
	empty := len(r.factories) == 0 && len(r.banks) == 0 && len(r.houses) == 0
	r.mu.Unlock()
	if !empty {
		return
	}

	layout := DefaultLayout(seed)
	r.mu.Lock()
	r.factories = layout.Factories
	r.banks = layout.Banks
	r.houses = layout.Houses
	r.mu.Unlock()
	r.saver.Schedule()
	slog.Info("world layout generated",
		"factories", len(layout.Factories),
		"banks", len(layout.Banks),
		"houses", len(layout.Houses),
		"seed", seed)
}

// Now returns the current wall-clock in unix milliseconds. Variable so tests
// can pin time.
var Now = func() int64 { return time.Now().UnixMilli() }
