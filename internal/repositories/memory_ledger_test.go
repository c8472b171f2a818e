package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/anayak07/walletsync/internal/models"
)

func testEvent(walletID uuid.UUID, seq int64) *models.Event {
	return &models.Event{
		EventID:    uuid.New(),
		WalletID:   walletID,
		UserID:     uuid.New(),
		DeviceID:   "test-device",
		EventType:  models.EventTransactionCreated,
		Payload:    []byte(`{}`),
		ServerSeq:  seq,
		ReceivedAt: time.Now().UTC(),
	}
}

func TestMemoryLedger_UnknownWallet(t *testing.T) {
	ledger := NewMemoryLedger()

	err := ledger.WithWalletTx(context.Background(), uuid.New(), func(tx LedgerTx) error {
		t.Fatal("fn must not run for an unknown wallet")
		return nil
	})
	assert.ErrorIs(t, err, ErrWalletNotFound)

	_, _, err = ledger.EventsSince(context.Background(), uuid.New(), 0)
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestMemoryLedger_CommitAndRead(t *testing.T) {
	ledger := NewMemoryLedger()
	walletID := uuid.New()
	ledger.CreateWallet(walletID)

	err := ledger.WithWalletTx(context.Background(), walletID, func(tx LedgerTx) error {
		for i := 0; i < 3; i++ {
			seq, err := tx.NextSeq(context.Background())
			require.NoError(t, err)
			require.NoError(t, tx.AppendEvent(context.Background(), testEvent(walletID, seq)))
		}
		return nil
	})
	require.NoError(t, err)

	events, lastSeq, err := ledger.EventsSince(context.Background(), walletID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), lastSeq)
	require.Len(t, events, 2)
	assert.Equal(t, int64(2), events[0].ServerSeq)
	assert.Equal(t, int64(3), events[1].ServerSeq)
}

// A failed unit of work stages nothing: no events, no sequence burn,
// no transaction rows.
func TestMemoryLedger_RollbackOnError(t *testing.T) {
	ledger := NewMemoryLedger()
	walletID := uuid.New()
	ledger.CreateWallet(walletID)

	boom := errors.New("boom")
	err := ledger.WithWalletTx(context.Background(), walletID, func(tx LedgerTx) error {
		seq, err := tx.NextSeq(context.Background())
		require.NoError(t, err)
		require.NoError(t, tx.AppendEvent(context.Background(), testEvent(walletID, seq)))
		require.NoError(t, tx.UpsertTransaction(context.Background(), &models.Transaction{
			ID:       uuid.New(),
			WalletID: walletID,
		}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	events, lastSeq, err := ledger.EventsSince(context.Background(), walletID, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, int64(0), lastSeq)

	txns, err := ledger.TransactionsByWallet(context.Background(), walletID)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

// HasEvent sees both committed rows and rows staged earlier in the
// same unit of work.
func TestMemoryLedger_HasEventSeesStagedWrites(t *testing.T) {
	ledger := NewMemoryLedger()
	walletID := uuid.New()
	ledger.CreateWallet(walletID)

	event := testEvent(walletID, 1)
	err := ledger.WithWalletTx(context.Background(), walletID, func(tx LedgerTx) error {
		seen, err := tx.HasEvent(context.Background(), event.EventID)
		require.NoError(t, err)
		require.False(t, seen)

		require.NoError(t, tx.AppendEvent(context.Background(), event))

		seen, err = tx.HasEvent(context.Background(), event.EventID)
		require.NoError(t, err)
		require.True(t, seen)
		return nil
	})
	require.NoError(t, err)

	err = ledger.WithWalletTx(context.Background(), walletID, func(tx LedgerTx) error {
		seen, err := tx.HasEvent(context.Background(), event.EventID)
		require.NoError(t, err)
		assert.True(t, seen)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryLedger_SoftDelete(t *testing.T) {
	ledger := NewMemoryLedger()
	walletID := uuid.New()
	ledger.CreateWallet(walletID)

	id := uuid.New()
	deletedAt := time.Now().UTC()

	// Delete for a never-seen id leaves a tombstone.
	err := ledger.WithWalletTx(context.Background(), walletID, func(tx LedgerTx) error {
		return tx.SoftDeleteTransaction(context.Background(), walletID, id, deletedAt)
	})
	require.NoError(t, err)

	txns, err := ledger.TransactionsByWallet(context.Background(), walletID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	require.NotNil(t, txns[0].DeletedAt)
	assert.Equal(t, deletedAt, *txns[0].DeletedAt)

	// Deleting an existing row keeps its fields.
	full := &models.Transaction{
		ID:          id,
		WalletID:    walletID,
		AccountID:   uuid.New(),
		Type:        models.TransactionExpense,
		AmountCents: 250,
		Description: "groceries",
		OccurredAt:  time.Now().UTC(),
	}
	err = ledger.WithWalletTx(context.Background(), walletID, func(tx LedgerTx) error {
		if err := tx.UpsertTransaction(context.Background(), full); err != nil {
			return err
		}
		return tx.SoftDeleteTransaction(context.Background(), walletID, id, deletedAt)
	})
	require.NoError(t, err)

	txns, err = ledger.TransactionsByWallet(context.Background(), walletID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "groceries", txns[0].Description)
	assert.NotNil(t, txns[0].DeletedAt)
}
