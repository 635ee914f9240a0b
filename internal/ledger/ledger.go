// Package ledger keeps the append-only money movement log and the derived
// per-user balance snapshots. Every balance mutation in the system records a
// movement here, which is what makes idempotent crediting and post-restart
// balance restoration possible.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/varelagames/aldea/internal/store"
)

// DocKey is the ledger's document key in the durable store.
const DocKey = "ledger"

// MaxMovements bounds the movement log; the oldest entries are trimmed when
// the document persists.
const MaxMovements = 20000

// Movement is one immutable balance-affecting event.
type Movement struct {
	TS       int64  `json:"ts"`
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
	Delta    int    `json:"delta"`
	Money    int    `json:"money"`
	Bank     int    `json:"bank"`
	Reason   string `json:"reason"`
}

// Snapshot is the latest known balance for one user, overwritten by every
// newer movement.
type Snapshot struct {
	Username  string `json:"username,omitempty"`
	LastMoney int    `json:"lastMoney"`
	LastBank  int    `json:"lastBank"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Balance is a point-in-time money/bank pair.
type Balance struct {
	Money int
	Bank  int
}

// Ledger holds the movement log and snapshots. Safe for concurrent use;
// mutations schedule a debounced durable save.
type Ledger struct {
	mu        sync.Mutex
	users     map[string]Snapshot
	movements []Movement

	saver *store.Saver
}

type ledgerDoc struct {
	Users     map[string]Snapshot `json:"users"`
	Movements []Movement          `json:"movements"`
}

// New loads the ledger document from the store, or starts empty when none
// exists yet.
func New(st store.DocStore) (*Ledger, error) {
	l := &Ledger{users: make(map[string]Snapshot)}
	l.saver = store.NewSaver(st, DocKey, store.DefaultDebounce, l.marshal)

	body, err := st.Load(DocKey)
	if errors.Is(err, store.ErrNotFound) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	var doc ledgerDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}
	if doc.Users != nil {
		l.users = doc.Users
	}
	l.movements = doc.Movements
	return l, nil
}

func (l *Ledger) marshal() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	// Trim at persist time so the document stays bounded.
	if len(l.movements) > MaxMovements {
		l.movements = append(l.movements[:0:0], l.movements[len(l.movements)-MaxMovements:]...)
	}
	return json.Marshal(ledgerDoc{Users: l.users, Movements: l.movements})
}

// Flush persists the ledger synchronously. The logout path must call this
// and surface the error before acknowledging the session end.
func (l *Ledger) Flush() error {
	return l.saver.Flush()
}

// RecordMovement appends a movement and overwrites the user's snapshot.
// A movement with an empty user id is dropped.
func (l *Ledger) RecordMovement(userID, usernameHint string, delta, newMoney, newBank int, reason string) {
	if userID == "" {
		return
	}
	if reason == "" {
		reason = "update"
	}

	l.mu.Lock()
	username := usernameHint
	if username == "" {
		username = l.users[userID].Username
	}
	l.movements = append(l.movements, Movement{
		TS:       time.Now().UnixMilli(),
		UserID:   userID,
		Username: username,
		Delta:    delta,
		Money:    newMoney,
		Bank:     newBank,
		Reason:   reason,
	})
	l.users[userID] = Snapshot{
		Username:  username,
		LastMoney: newMoney,
		LastBank:  newBank,
		UpdatedAt: time.Now().UnixMilli(),
	}
	l.mu.Unlock()
	l.saver.Schedule()
}

// HasReason reports whether any retained movement carries exactly this
// reason tag. This is the idempotence check behind CreditOnce: reason keys
// must be globally unique per real-world event.
func (l *Ledger) HasReason(reason string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.movements {
		if l.movements[i].Reason == reason {
			return true
		}
	}
	return false
}

// LatestBalance returns the user's snapshot balance, if one exists.
func (l *Ledger) LatestBalance(userID string) (Balance, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	snap, ok := l.users[userID]
	if !ok {
		return Balance{}, false
	}
	return Balance{Money: snap.LastMoney, Bank: snap.LastBank}, true
}

// Movements returns a copy of the retained movement log (audit access).
func (l *Ledger) Movements() []Movement {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Movement(nil), l.movements...)
}
