package payments

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varelagames/aldea/internal/ledger"
	"github.com/varelagames/aldea/internal/profile"
	"github.com/varelagames/aldea/internal/store"
)

func newTestService(t *testing.T) (*Service, *profile.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "aldea.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	led, err := ledger.New(st)
	require.NoError(t, err)
	profiles, err := profile.New(st, led)
	require.NoError(t, err)
	return New(profiles, "whsec", []byte("hmac-key")), profiles
}

func webhookBody(t *testing.T, ref, txID string, usd int) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"ref": ref, "txId": txID, "amountUsd": usd, "currency": "USD", "status": "succeeded",
	})
	require.NoError(t, err)
	return b
}

func TestCreateIntentMinimum(t *testing.T) {
	s, _ := newTestService(t)

	_, err := s.CreateIntent("u1", 4, "USD")
	assert.ErrorIs(t, err, ErrTooSmall)

	in, err := s.CreateIntent("u1", 5, "")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, in.Status)
	assert.Equal(t, "USD", in.Currency)
	assert.NotEmpty(t, in.ID)
}

func TestWebhookCreditsOncePerTx(t *testing.T) {
	s, profiles := newTestService(t)
	profiles.SetMoney("u1", 100, nil)
	in, err := s.CreateIntent("u1", 10, "USD")
	require.NoError(t, err)

	body := webhookBody(t, in.ID, "TX1", 10)
	settled, err := s.HandleWebhook(body, "whsec", "")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, settled.Status)
	assert.Equal(t, 100+CreditAmount, profiles.EnsureProgress("u1").Money)

	// Replay: same transaction id, no double credit.
	settled, err = s.HandleWebhook(body, "whsec", "")
	require.NoError(t, err)
	assert.Equal(t, StatusDuplicated, settled.Status)
	assert.Equal(t, 100+CreditAmount, profiles.EnsureProgress("u1").Money)
}

func TestWebhookRejectsBadCredentials(t *testing.T) {
	s, _ := newTestService(t)
	in, err := s.CreateIntent("u1", 10, "USD")
	require.NoError(t, err)
	body := webhookBody(t, in.ID, "TX1", 10)

	_, err = s.HandleWebhook(body, "wrong", "")
	assert.ErrorIs(t, err, ErrBadSignature)
	_, err = s.HandleWebhook(body, "", "deadbeef")
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestWebhookHMACSignature(t *testing.T) {
	s, profiles := newTestService(t)
	in, err := s.CreateIntent("u1", 10, "USD")
	require.NoError(t, err)
	body := webhookBody(t, in.ID, "TX9", 10)

	settled, err := s.HandleWebhook(body, "", s.SignBody(body))
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, settled.Status)
	assert.Equal(t, CreditAmount, profiles.EnsureProgress("u1").Money)
}

func TestWebhookBelowMinimumFails(t *testing.T) {
	s, profiles := newTestService(t)
	in, err := s.CreateIntent("u1", 10, "USD")
	require.NoError(t, err)

	settled, err := s.HandleWebhook(webhookBody(t, in.ID, "TX2", 3), "whsec", "")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, settled.Status)
	assert.Equal(t, 0, profiles.EnsureProgress("u1").Money)
}

func TestWebhookUnknownIntent(t *testing.T) {
	s, _ := newTestService(t)
	_, err := s.HandleWebhook(webhookBody(t, "PI-missing", "TX3", 10), "whsec", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReturnSignatureRoundTrip(t *testing.T) {
	s, _ := newTestService(t)
	ts := time.Now().Unix()

	sig := s.SignReturn("PI-1", "TX1", 10, "USD", ts)
	assert.True(t, s.VerifyReturn("PI-1", "TX1", 10, "USD", ts, sig))
	assert.False(t, s.VerifyReturn("PI-1", "TX1", 11, "USD", ts, sig))
	assert.False(t, s.VerifyReturn("PI-1", "TX1", 10, "USD", ts+1, sig))
}

func TestByUserNewestFirst(t *testing.T) {
	s, _ := newTestService(t)
	a, _ := s.CreateIntent("u1", 5, "USD")
	time.Sleep(2 * time.Millisecond)
	b, _ := s.CreateIntent("u1", 6, "USD")
	s.CreateIntent("u2", 7, "USD")

	got := s.ByUser("u1")
	require.Len(t, got, 2)
	assert.Equal(t, b.ID, got[0].ID)
	assert.Equal(t, a.ID, got[1].ID)
}
