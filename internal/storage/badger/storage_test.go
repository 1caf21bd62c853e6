package badger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/longform/internal/interfaces"
	"github.com/ternarybob/longform/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	tmpDir := t.TempDir()
	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &BadgerDB{store: store, logger: arbor.NewLogger()}
}

func TestLedgerStorage_DebitIsIdempotentPerRequest(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerStorage(db, arbor.NewLogger())
	ctx := context.Background()

	_, err := ledger.Grant(ctx, "user-1", 10, "top-up")
	require.NoError(t, err)

	first, dup, err := ledger.Debit(ctx, "user-1", "req-1", 4, "script generation", map[string]string{"topic": "bees"})
	require.NoError(t, err)
	assert.False(t, dup)
	assert.Equal(t, 6, first.BalanceAfter)

	second, dup, err := ledger.Debit(ctx, "user-1", "req-1", 4, "script generation", nil)
	require.NoError(t, err)
	assert.True(t, dup)
	assert.Equal(t, first.ID, second.ID)

	account, err := ledger.GetAccount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 6, account.Balance, "duplicate debit must not change the balance")

	entries, err := ledger.ListEntries(ctx, "user-1", 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestLedgerStorage_DebitRejectsReusedRequestID(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerStorage(db, arbor.NewLogger())
	ctx := context.Background()

	for _, user := range []string{"alice", "bob"} {
		_, err := ledger.Grant(ctx, user, 10, "top-up")
		require.NoError(t, err)
	}

	_, _, err := ledger.Debit(ctx, "alice", "key-1", 4, "script generation", nil)
	require.NoError(t, err)

	_, dup, err := ledger.Debit(ctx, "bob", "key-1", 4, "script generation", nil)
	assert.ErrorIs(t, err, interfaces.ErrDebitConflict)
	assert.False(t, dup)

	_, _, err = ledger.Debit(ctx, "alice", "key-1", 9, "script generation", nil)
	assert.ErrorIs(t, err, interfaces.ErrDebitConflict)

	bob, err := ledger.GetAccount(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 10, bob.Balance)

	alice, err := ledger.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 6, alice.Balance)
}

func TestLedgerStorage_DebitRejectsInsufficientBalance(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerStorage(db, arbor.NewLogger())
	ctx := context.Background()

	_, _, err := ledger.Debit(ctx, "nobody", "req-1", 1, "", nil)
	assert.ErrorIs(t, err, interfaces.ErrInsufficientCredits)

	_, err = ledger.Grant(ctx, "user-2", 2, "top-up")
	require.NoError(t, err)

	_, _, err = ledger.Debit(ctx, "user-2", "req-2", 3, "", nil)
	assert.ErrorIs(t, err, interfaces.ErrInsufficientCredits)

	account, err := ledger.GetAccount(ctx, "user-2")
	require.NoError(t, err)
	assert.Equal(t, 2, account.Balance)
}

func TestLedgerStorage_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedgerStorage(db, arbor.NewLogger())
	ctx := context.Background()

	_, err := ledger.Grant(ctx, "user-3", 5, "top-up")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, _ = ledger.Debit(ctx, "user-3", "req-"+string(rune('a'+i)), 1, "", nil)
		}(i)
	}
	wg.Wait()

	account, err := ledger.GetAccount(ctx, "user-3")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, account.Balance, 0)
}

func TestScriptStorage_SaveGetList(t *testing.T) {
	db := newTestDB(t)
	scripts := NewScriptStorage(db, arbor.NewLogger())
	ctx := context.Background()

	older := &models.ScriptRecord{ID: "scr_1", UserID: "u1", Topic: "first", CreatedAt: time.Now().Add(-time.Hour)}
	newer := &models.ScriptRecord{ID: "scr_2", UserID: "u1", Topic: "second"}
	other := &models.ScriptRecord{ID: "scr_3", UserID: "u2", Topic: "other"}
	for _, r := range []*models.ScriptRecord{older, newer, other} {
		require.NoError(t, scripts.SaveScript(ctx, r))
	}

	got, err := scripts.GetScript(ctx, "scr_2")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Topic)

	_, err = scripts.GetScript(ctx, "missing")
	assert.ErrorIs(t, err, interfaces.ErrScriptNotFound)

	list, err := scripts.ListScripts(ctx, &interfaces.ScriptListOptions{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "scr_2", list[0].ID, "newest first")

	count, err := scripts.CountScripts(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRunStorage_DeleteRunsBefore(t *testing.T) {
	db := newTestDB(t)
	runs := NewRunStorage(db, arbor.NewLogger())
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, runs.SaveRun(ctx, &models.GenerationRun{ID: "run-old", UserID: "u", StartedAt: now.Add(-48 * time.Hour)}))
	require.NoError(t, runs.SaveRun(ctx, &models.GenerationRun{ID: "run-new", UserID: "u", StartedAt: now}))

	deleted, err := runs.DeleteRunsBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = runs.GetRun(ctx, "run-old")
	assert.ErrorIs(t, err, interfaces.ErrRunNotFound)

	remaining, err := runs.ListRuns(ctx, "u", 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "run-new", remaining[0].ID)
}

func TestKVStorage_ListByPrefix(t *testing.T) {
	db := newTestDB(t)
	kv := NewKVStorage(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "Upload:Report", "a", ""))
	require.NoError(t, kv.Set(ctx, "upload:notes", "b", ""))
	require.NoError(t, kv.Set(ctx, "gemini_api_key", "c", ""))

	v, err := kv.Get(ctx, "upload:report")
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	pairs, err := kv.ListByPrefix(ctx, "upload:")
	require.NoError(t, err)
	assert.Len(t, pairs, 2)

	require.NoError(t, kv.Delete(ctx, "upload:notes"))
	assert.ErrorIs(t, kv.Delete(ctx, "upload:notes"), interfaces.ErrKeyNotFound)
}
