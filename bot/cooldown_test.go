package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCooldownLedger_FirstAttemptAlwaysAllowed(t *testing.T) {
	ledger := NewCooldownLedger()
	assert.True(t, ledger.Allow("user-1", "wo_approve", time.Minute))
}

func TestCooldownLedger_RapidRetryIsBlocked(t *testing.T) {
	ledger := NewCooldownLedger()
	require := assert.New(t)

	require.True(ledger.Allow("user-1", "wo_approve", time.Minute))
	require.False(ledger.Allow("user-1", "wo_approve", time.Minute))
}

func TestCooldownLedger_DistinctActionsAreIndependent(t *testing.T) {
	ledger := NewCooldownLedger()
	assert.True(t, ledger.Allow("user-1", "wo_approve", time.Minute))
	assert.True(t, ledger.Allow("user-1", "wo_reject", time.Minute))
}

func TestCooldownLedger_DistinctUsersAreIndependent(t *testing.T) {
	ledger := NewCooldownLedger()
	assert.True(t, ledger.Allow("user-1", "wo_approve", time.Minute))
	assert.True(t, ledger.Allow("user-2", "wo_approve", time.Minute))
}

func TestCooldownLedger_ElapsedCooldownAllowsAgain(t *testing.T) {
	ledger := NewCooldownLedger()
	assert.True(t, ledger.Allow("user-1", "search", time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	assert.True(t, ledger.Allow("user-1", "search", time.Millisecond))
}
