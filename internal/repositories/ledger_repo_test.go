package repositories

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/anayak07/walletsync/internal/models"
)

func TestPostgresLedger_AllocateAndAppend(t *testing.T) {
	pool := getTestPool(t)
	ctx := context.Background()
	walletID, _, _ := setupTestWallet(t, ctx, pool)
	ledger := NewPostgresLedger(pool)

	event := testEvent(walletID, 0)
	err := ledger.WithWalletTx(ctx, walletID, func(tx LedgerTx) error {
		seq, err := tx.NextSeq(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(1), seq)

		event.ServerSeq = seq
		return tx.AppendEvent(ctx, event)
	})
	require.NoError(t, err)

	events, lastSeq, err := ledger.EventsSince(ctx, walletID, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), lastSeq)
	require.Len(t, events, 1)
	assert.Equal(t, event.EventID, events[0].EventID)
	assert.Equal(t, int64(1), events[0].ServerSeq)
}

func TestPostgresLedger_UnknownWallet(t *testing.T) {
	pool := getTestPool(t)
	ctx := context.Background()
	ledger := NewPostgresLedger(pool)

	err := ledger.WithWalletTx(ctx, uuid.New(), func(tx LedgerTx) error { return nil })
	assert.ErrorIs(t, err, ErrWalletNotFound)

	_, _, err = ledger.EventsSince(ctx, uuid.New(), 0)
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

// A returned error rolls back everything: the ledger row, the mirror
// write, and the allocated sequence number.
func TestPostgresLedger_RollbackOnError(t *testing.T) {
	pool := getTestPool(t)
	ctx := context.Background()
	walletID, accountID, _ := setupTestWallet(t, ctx, pool)
	ledger := NewPostgresLedger(pool)

	boom := errors.New("boom")
	err := ledger.WithWalletTx(ctx, walletID, func(tx LedgerTx) error {
		seq, err := tx.NextSeq(ctx)
		require.NoError(t, err)

		event := testEvent(walletID, seq)
		require.NoError(t, tx.AppendEvent(ctx, event))
		require.NoError(t, tx.UpsertTransaction(ctx, &models.Transaction{
			ID:          uuid.New(),
			WalletID:    walletID,
			AccountID:   accountID,
			Type:        models.TransactionExpense,
			AmountCents: 100,
			OccurredAt:  time.Now().UTC(),
			Description: "rolled back",
		}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	events, lastSeq, err := ledger.EventsSince(ctx, walletID, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, int64(0), lastSeq)
}

// Two goroutines admitting events for the same wallet serialize on the
// wallet row lock and get distinct consecutive sequence numbers.
func TestPostgresLedger_ConcurrentAllocation(t *testing.T) {
	pool := getTestPool(t)
	ctx := context.Background()
	walletID, _, _ := setupTestWallet(t, ctx, pool)
	ledger := NewPostgresLedger(pool)

	const writers = 4
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = ledger.WithWalletTx(ctx, walletID, func(tx LedgerTx) error {
				seq, err := tx.NextSeq(ctx)
				if err != nil {
					return err
				}
				return tx.AppendEvent(ctx, testEvent(walletID, seq))
			})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	events, lastSeq, err := ledger.EventsSince(ctx, walletID, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(writers), lastSeq)
	require.Len(t, events, writers)
	for i, event := range events {
		assert.Equal(t, int64(i+1), event.ServerSeq)
	}
}

func TestPostgresLedger_SoftDeleteTombstone(t *testing.T) {
	pool := getTestPool(t)
	ctx := context.Background()
	walletID, _, _ := setupTestWallet(t, ctx, pool)
	ledger := NewPostgresLedger(pool)

	id := uuid.New()
	deletedAt := time.Now().UTC().Truncate(time.Microsecond)
	err := ledger.WithWalletTx(ctx, walletID, func(tx LedgerTx) error {
		return tx.SoftDeleteTransaction(ctx, walletID, id, deletedAt)
	})
	require.NoError(t, err)

	txns, err := ledger.TransactionsByWallet(ctx, walletID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, id, txns[0].ID)
	require.NotNil(t, txns[0].DeletedAt)
	assert.True(t, deletedAt.Equal(*txns[0].DeletedAt))
}
