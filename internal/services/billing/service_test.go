package billing

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/longform/internal/common"
	"github.com/ternarybob/longform/internal/interfaces"
	"github.com/ternarybob/longform/internal/storage/badger"
)

func newTestService(t *testing.T, startingBalance int) *Service {
	t.Helper()
	logger := arbor.NewLogger()
	manager, err := badger.NewManager(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	cfg := common.NewDefaultConfig().Credits
	cfg.StartingBalance = startingBalance
	return NewService(manager.LedgerStorage(), &cfg, logger)
}

func TestBilling_ProvisionsStartingBalance(t *testing.T) {
	s := newTestService(t, 25)
	ctx := context.Background()

	balance, err := s.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 25, balance)

	balance, err = s.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 25, balance, "provisioning happens once")
}

func TestBilling_CheckAndDebit(t *testing.T) {
	s := newTestService(t, 10)
	ctx := context.Background()

	ok, err := s.CheckBalance(ctx, "u1", 10)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.CheckBalance(ctx, "u1", 11)
	require.NoError(t, err)
	assert.False(t, ok)

	receipt, err := s.Debit(ctx, "u1", "req_1", 4, map[string]string{"topic": "apollo"})
	require.NoError(t, err)
	assert.Equal(t, 4, receipt.Amount)
	assert.Equal(t, 6, receipt.BalanceAfter)
	assert.False(t, receipt.Duplicate)

	again, err := s.Debit(ctx, "u1", "req_1", 4, nil)
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, receipt.EntryID, again.EntryID)

	balance, err := s.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 6, balance)

	_, err = s.Debit(ctx, "u1", "req_2", 7, nil)
	assert.ErrorIs(t, err, interfaces.ErrInsufficientCredits)
}

func TestBilling_ConcurrentFirstTouch(t *testing.T) {
	s := newTestService(t, 10)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Balance(ctx, "u1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	balance, err := s.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 10, balance)
}

func TestBilling_Grant(t *testing.T) {
	s := newTestService(t, 0)
	ctx := context.Background()

	entry, err := s.Grant(ctx, "u1", 50, "top-up")
	require.NoError(t, err)
	assert.Equal(t, 50, entry.BalanceAfter)

	history, err := s.History(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
