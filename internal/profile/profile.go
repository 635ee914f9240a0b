// Package profile owns durable user identity and per-user game progress.
// Progress is the source of truth for balances; every balance mutation made
// here is dual-written to the ledger so money never changes outside ledger
// visibility.
package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/varelagames/aldea/internal/ledger"
	"github.com/varelagames/aldea/internal/store"
)

// DocKey is the profile store's document key in the durable store.
const DocKey = "brain"

// Sentinel errors — callers distinguish validation, conflict, and not-found
// outcomes with errors.Is.
var (
	ErrValidation   = errors.New("profile: invalid input")
	ErrUserExists   = errors.New("profile: username already taken")
	ErrInvalidLogin = errors.New("profile: invalid username or password")
	ErrNotFound     = errors.New("profile: not found")
)

// User is a registered account. PassHash never leaves this package.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	PassHash    string `json:"passHash"`
	CreatedAt   int64  `json:"createdAt"`
	LastLoginAt int64  `json:"lastLoginAt,omitempty"`
	Gender      string `json:"gender,omitempty"`
	Country     string `json:"country,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// PublicUser is the credential-free view returned to clients.
type PublicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Gender   string `json:"gender,omitempty"`
	Country  string `json:"country,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// Public strips credentials from a user record.
func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username, Gender: u.Gender,
		Country: u.Country, Email: u.Email, Phone: u.Phone}
}

// Activity is one entry in the bounded audit trail.
type Activity struct {
	TS      int64          `json:"ts"`
	Type    string         `json:"type"`
	UserID  string         `json:"userId,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// maxActivity bounds the activity log.
const maxActivity = 5000

// Store holds users, progress, and the activity log. Safe for concurrent
// use; mutations schedule a debounced durable save.
type Store struct {
	mu       sync.Mutex
	users    []User
	progress map[string]*Progress
	activity []Activity

	ledger *ledger.Ledger
	saver  *store.Saver
}

type storeDoc struct {
	Users       []User               `json:"users"`
	Progress    map[string]*Progress `json:"progress"`
	ActivityLog []Activity           `json:"activityLog"`
}

// New loads the profile document from the store, or starts empty when none
// exists yet. The ledger receives a movement for every balance mutation.
func New(st store.DocStore, led *ledger.Ledger) (*Store, error) {
	s := &Store{progress: make(map[string]*Progress), ledger: led}
	s.saver = store.NewSaver(st, DocKey, store.DefaultDebounce, s.marshal)

	body, err := st.Load(DocKey)
	if errors.Is(err, store.ErrNotFound) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}

	var doc storeDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}
	s.users = doc.Users
	if doc.Progress != nil {
		s.progress = doc.Progress
	}
	s.activity = doc.ActivityLog

	// Backfill fields older documents are missing.
	for _, p := range s.progress {
		p.backfill()
	}
	return s, nil
}

func (s *Store) marshal() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.Marshal(storeDoc{Users: s.users, Progress: s.progress, ActivityLog: s.activity})
}

// Flush persists the profile document synchronously.
func (s *Store) Flush() error {
	return s.saver.Flush()
}

// log appends an activity entry. Caller must hold s.mu.
func (s *Store) log(typ, userID string, details map[string]any) {
	s.activity = append(s.activity, Activity{
		TS: time.Now().UnixMilli(), Type: typ, UserID: userID, Details: details,
	})
	if len(s.activity) > maxActivity {
		s.activity = s.activity[len(s.activity)-maxActivity:]
	}
}

// Note records an activity entry for an event that happened outside this
// package, such as a treasury change.
func (s *Store) Note(typ, userID string, details map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log(typ, userID, details)
	s.saver.Schedule()
}

// UserByID returns the user record for an id.
func (s *Store) UserByID(id string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, true
		}
	}
	return User{}, false
}

// usernameOf returns the username for an id, or empty. Caller holds s.mu.
func (s *Store) usernameOf(id string) string {
	for _, u := range s.users {
		if u.ID == id {
			return u.Username
		}
	}
	return ""
}
