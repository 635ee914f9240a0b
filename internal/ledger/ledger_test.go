package ledger

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varelagames/aldea/internal/store"
)

func newTestLedger(t *testing.T) (*Ledger, *store.SQLite) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "aldea.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	l, err := New(st)
	require.NoError(t, err)
	return l, st
}

func TestRecordMovementUpdatesSnapshot(t *testing.T) {
	l, _ := newTestLedger(t)

	l.RecordMovement("u1", "ana", 50, 450, 0, "credit")
	l.RecordMovement("u1", "ana", -20, 430, 10, "purchase")

	bal, ok := l.LatestBalance("u1")
	require.True(t, ok)
	assert.Equal(t, Balance{Money: 430, Bank: 10}, bal)
	assert.Len(t, l.Movements(), 2)
}

func TestRecordMovementEmptyUserIsNoop(t *testing.T) {
	l, _ := newTestLedger(t)

	l.RecordMovement("", "ghost", 10, 10, 0, "credit")
	assert.Empty(t, l.Movements())
}

func TestLatestBalanceUnknownUser(t *testing.T) {
	l, _ := newTestLedger(t)

	_, ok := l.LatestBalance("nobody")
	assert.False(t, ok)
}

func TestHasReason(t *testing.T) {
	l, _ := newTestLedger(t)

	l.RecordMovement("u1", "ana", 500, 900, 0, "payment:T1")
	assert.True(t, l.HasReason("payment:T1"))
	assert.False(t, l.HasReason("payment:T2"))
}

func TestMovementLogTrimmedAtPersist(t *testing.T) {
	l, _ := newTestLedger(t)

	for i := 0; i < MaxMovements+500; i++ {
		l.RecordMovement("u1", "ana", 1, i, 0, fmt.Sprintf("tick:%d", i))
	}
	require.NoError(t, l.Flush())

	moves := l.Movements()
	assert.Len(t, moves, MaxMovements)
	// Oldest entries trimmed, newest retained.
	assert.Equal(t, "tick:500", moves[0].Reason)
	assert.Equal(t, fmt.Sprintf("tick:%d", MaxMovements+499), moves[len(moves)-1].Reason)
}

func TestLedgerPersistsAcrossReopen(t *testing.T) {
	l, st := newTestLedger(t)

	l.RecordMovement("u1", "ana", 400, 400, 0, "register")
	require.NoError(t, l.Flush())

	l2, err := New(st)
	require.NoError(t, err)
	bal, ok := l2.LatestBalance("u1")
	require.True(t, ok)
	assert.Equal(t, 400, bal.Money)
	assert.True(t, l2.HasReason("register"))
}

func TestUsernameBackfilledFromSnapshot(t *testing.T) {
	l, _ := newTestLedger(t)

	l.RecordMovement("u1", "ana", 400, 400, 0, "register")
	l.RecordMovement("u1", "", -50, 350, 0, "rent")

	moves := l.Movements()
	assert.Equal(t, "ana", moves[1].Username)
}
