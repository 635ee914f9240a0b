package profile

import "fmt"

// CreditResult reports the outcome of an idempotent credit. Duplicated is an
// expected, safe no-op — not an error.
type CreditResult struct {
	Applied    bool
	Duplicated bool
	Money      int
}

// setMoneyLocked clamps and assigns balances and records the movement.
// Caller must hold s.mu. This is the single choke point for balance writes:
// nothing mutates money or bank without passing through here.
func (s *Store) setMoneyLocked(userID string, p *Progress, money, bank *int, reason string) {
	prev := p.Money
	if money != nil {
		p.Money = clampInt(*money)
	}
	if bank != nil {
		p.Bank = clampInt(*bank)
	}
	s.ledger.RecordMovement(userID, s.usernameOf(userID), p.Money-prev, p.Money, p.Bank, reason)
}

func clampInt(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// SetMoney assigns the user's balances, clamped to non-negative integers.
// Pass a nil bank to leave it untouched.
func (s *Store) SetMoney(userID string, money int, bank *int) {
	if userID == "" {
		return
	}
	s.mu.Lock()
	p := s.ensureProgressLocked(userID)
	s.setMoneyLocked(userID, p, &money, bank, "update")
	s.mu.Unlock()
	s.saver.Schedule()
}

// AddMoney credits a positive delta to the user's money and records the
// movement under reason.
func (s *Store) AddMoney(userID string, delta int, reason string) (int, error) {
	if userID == "" || delta <= 0 {
		return 0, fmt.Errorf("%w: credit must be a positive amount", ErrValidation)
	}
	if reason == "" {
		reason = "credit"
	}
	s.mu.Lock()
	p := s.ensureProgressLocked(userID)
	next := p.Money + delta
	s.setMoneyLocked(userID, p, &next, nil, reason)
	money := p.Money
	s.mu.Unlock()
	s.saver.Schedule()
	return money, nil
}

// CreditOnce applies a credit at most once per reason key. A key already
// present in the movement log reports Duplicated without touching balances.
// Reason keys must be globally unique per real-world event
// (e.g. "payment:<transactionId>"). The duplicate check and the movement
// append happen under one hold of s.mu, and every append with a reason key
// goes through setMoneyLocked, so concurrent replays of the same key
// serialize instead of double-crediting.
func (s *Store) CreditOnce(userID string, delta int, reasonKey string) (CreditResult, error) {
	if userID == "" || delta <= 0 {
		return CreditResult{}, fmt.Errorf("%w: credit must be a positive amount", ErrValidation)
	}
	if reasonKey == "" {
		reasonKey = "credit:once"
	}
	s.mu.Lock()
	if s.ledger.HasReason(reasonKey) {
		s.mu.Unlock()
		return CreditResult{Duplicated: true}, nil
	}
	p := s.ensureProgressLocked(userID)
	next := p.Money + delta
	s.setMoneyLocked(userID, p, &next, nil, reasonKey)
	money := p.Money
	s.mu.Unlock()
	s.saver.Schedule()
	return CreditResult{Applied: true, Money: money}, nil
}

// RestoreFromLedger copies the latest ledger snapshot back into progress
// (the login path) and records a zero-delta movement for audit continuity.
// Reports false when no snapshot exists.
func (s *Store) RestoreFromLedger(userID string) bool {
	bal, ok := s.ledger.LatestBalance(userID)
	if !ok {
		return false
	}
	s.mu.Lock()
	p := s.ensureProgressLocked(userID)
	p.Money = clampInt(bal.Money)
	p.Bank = clampInt(bal.Bank)
	s.ledger.RecordMovement(userID, s.usernameOf(userID), 0, p.Money, p.Bank, "login-restore")
	s.mu.Unlock()
	s.saver.Schedule()
	return true
}

// SaveAndFlush is the logout path: assign final balances, record the
// movement, then synchronously persist both the profile and ledger
// documents. The error must reach the caller — an unacknowledged flush
// failure here is how session balances get lost.
func (s *Store) SaveAndFlush(userID string, money, bank *int) error {
	s.mu.Lock()
	p := s.ensureProgressLocked(userID)
	s.setMoneyLocked(userID, p, money, bank, "logout-save")
	s.mu.Unlock()

	if err := s.Flush(); err != nil {
		return fmt.Errorf("flush profiles: %w", err)
	}
	if err := s.ledger.Flush(); err != nil {
		return fmt.Errorf("flush ledger: %w", err)
	}
	return nil
}
