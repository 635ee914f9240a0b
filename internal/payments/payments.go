// Package payments handles top-up purchases: intents, the provider webhook,
// and signed return URLs. A verified payment credits a fixed in-game amount
// exactly once per provider transaction id.
package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/varelagames/aldea/internal/profile"
)

const (
	// MinUSD is the smallest accepted purchase.
	MinUSD = 5
	// CreditAmount is the in-game money granted per verified payment.
	CreditAmount = 500
)

// Intent statuses.
const (
	StatusPending    = "pending"
	StatusCompleted  = "completed"
	StatusDuplicated = "duplicated"
	StatusFailed     = "failed"
)

var (
	ErrTooSmall     = errors.New("payments: amount below minimum")
	ErrBadSignature = errors.New("payments: signature mismatch")
	ErrNotFound     = errors.New("payments: intent not found")
)

// Intent is one pending or settled purchase.
type Intent struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	AmountUSD int    `json:"amountUsd"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	TxID      string `json:"txId,omitempty"`
	CreatedAt int64  `json:"createdAt"`
}

// Service tracks intents in memory. Money, the part that matters, is
// durable through the profile store's idempotent credit; a lost intent
// record only loses status display.
type Service struct {
	mu      sync.Mutex
	intents map[string]*Intent

	profiles *profile.Store
	secret   string
	hmacKey  []byte
}

// New wires the payments service. secret is the provider's shared webhook
// secret; hmacKey signs return URLs and verifies body signatures.
func New(profiles *profile.Store, secret string, hmacKey []byte) *Service {
	return &Service{
		intents:  make(map[string]*Intent),
		profiles: profiles,
		secret:   secret,
		hmacKey:  hmacKey,
	}
}

// CreateIntent opens a pending purchase for a user.
func (s *Service) CreateIntent(userID string, amountUSD int, currency string) (*Intent, error) {
	if amountUSD < MinUSD {
		return nil, ErrTooSmall
	}
	if currency == "" {
		currency = "USD"
	}
	in := &Intent{
		ID:        "PI-" + uuid.NewString()[:12],
		UserID:    userID,
		AmountUSD: amountUSD,
		Currency:  currency,
		Status:    StatusPending,
		CreatedAt: time.Now().UnixMilli(),
	}
	s.mu.Lock()
	s.intents[in.ID] = in
	s.mu.Unlock()
	return in, nil
}

// webhookPayload is what the provider posts back.
type webhookPayload struct {
	Ref       string `json:"ref"`
	TxID      string `json:"txId"`
	AmountUSD int    `json:"amountUsd"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
}

// HandleWebhook verifies and settles a provider notification. Verification
// accepts either the shared secret header or an HMAC of the raw body.
// Settling credits the buyer once per transaction id; a replay reports
// duplicated, which is a safe no-op, not an error.
func (s *Service) HandleWebhook(body []byte, secretHeader, signatureHeader string) (*Intent, error) {
	if !s.verifyWebhook(body, secretHeader, signatureHeader) {
		return nil, ErrBadSignature
	}

	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}
	if p.TxID == "" {
		return nil, errors.New("payments: missing txId")
	}

	s.mu.Lock()
	in, ok := s.intents[p.Ref]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	if p.AmountUSD < MinUSD || (p.Status != "" && p.Status != "succeeded") {
		s.setStatus(in, StatusFailed, p.TxID)
		return in, nil
	}

	res, err := s.profiles.CreditOnce(in.UserID, CreditAmount, "payment:"+p.TxID)
	if err != nil {
		return nil, fmt.Errorf("credit payment: %w", err)
	}
	if res.Duplicated {
		s.setStatus(in, StatusDuplicated, p.TxID)
	} else {
		s.setStatus(in, StatusCompleted, p.TxID)
		slog.Info("payment credited", "intent", in.ID, "user", in.UserID, "tx", p.TxID, "credit", CreditAmount)
	}
	return in, nil
}

func (s *Service) verifyWebhook(body []byte, secretHeader, signatureHeader string) bool {
	if s.secret != "" && secretHeader != "" &&
		hmac.Equal([]byte(secretHeader), []byte(s.secret)) {
		return true
	}
	if signatureHeader != "" {
		return hmac.Equal([]byte(signatureHeader), []byte(s.SignBody(body)))
	}
	return false
}

func (s *Service) setStatus(in *Intent, status, txID string) {
	s.mu.Lock()
	in.Status = status
	in.TxID = txID
	s.mu.Unlock()
}

// SignBody returns the hex HMAC of a webhook body.
func (s *Service) SignBody(body []byte) string {
	mac := hmac.New(sha256.New, s.hmacKey)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignReturn signs the fields a provider return URL carries.
func (s *Service) SignReturn(ref, txID string, amountUSD int, currency string, ts int64) string {
	mac := hmac.New(sha256.New, s.hmacKey)
	fmt.Fprintf(mac, "%s|%s|%d|%s|%d", ref, txID, amountUSD, currency, ts)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyReturn checks a return URL's signature.
func (s *Service) VerifyReturn(ref, txID string, amountUSD int, currency string, ts int64, sig string) bool {
	return hmac.Equal([]byte(sig), []byte(s.SignReturn(ref, txID, amountUSD, currency, ts)))
}

// Intent looks up one intent by id.
func (s *Service) Intent(id string) (Intent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.intents[id]
	if !ok {
		return Intent{}, false
	}
	return *in, true
}

// ByUser lists a user's intents, newest first.
func (s *Service) ByUser(userID string) []Intent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Intent
	for _, in := range s.intents {
		if in.UserID == userID {
			out = append(out, *in)
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt > out[i].CreatedAt {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}
