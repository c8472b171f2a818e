package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/anayak07/walletsync/internal/models"
	"github.com/anayak07/walletsync/internal/repositories"
)

func newTestDirectory(walletID, accountID, categoryID uuid.UUID) *repositories.MemoryDirectory {
	dir := repositories.NewMemoryDirectory()
	dir.AddWallet(walletID)
	dir.AddAccount(walletID, accountID)
	dir.AddCategory(walletID, categoryID)
	return dir
}

func validPayload(walletID, accountID uuid.UUID) models.TransactionPayload {
	return models.TransactionPayload{
		ID:          uuid.New().String(),
		WalletID:    walletID.String(),
		AccountID:   accountID.String(),
		Type:        "EXPENSE",
		AmountCents: 500,
		OccurredAt:  "2024-01-01T10:00:00Z",
		Description: "coffee",
	}
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestParseEvent_Valid(t *testing.T) {
	walletID, accountID, categoryID := uuid.New(), uuid.New(), uuid.New()
	dir := newTestDirectory(walletID, accountID, categoryID)

	payload := validPayload(walletID, accountID)
	payload.CategoryID = ptr(categoryID.String())

	txn, err := parseEvent(context.Background(), dir, walletID, models.EventTransactionCreated, mustJSON(t, payload), time.Now())
	require.NoError(t, err)
	assert.Equal(t, walletID, txn.WalletID)
	assert.Equal(t, accountID, txn.AccountID)
	assert.Equal(t, models.TransactionExpense, txn.Type)
	assert.Equal(t, int64(500), txn.AmountCents)
	assert.Equal(t, "coffee", txn.Description)
	require.NotNil(t, txn.CategoryID)
	assert.Equal(t, categoryID, *txn.CategoryID)
	assert.Nil(t, txn.DeletedAt)
}

func TestParseEvent_RuleViolations(t *testing.T) {
	walletID, accountID, categoryID := uuid.New(), uuid.New(), uuid.New()
	dir := newTestDirectory(walletID, accountID, categoryID)
	otherAccount := uuid.New()
	dir.AddAccount(walletID, otherAccount)

	tests := []struct {
		name      string
		eventType models.EventType
		mutate    func(p *models.TransactionPayload)
		wantErr   error
	}{
		{
			name:      "unsupported event type",
			eventType: models.EventType("WALLET_RENAMED"),
			mutate:    func(p *models.TransactionPayload) {},
			wantErr:   ErrUnsupportedEventType,
		},
		{
			name:      "malformed transaction id",
			eventType: models.EventTransactionCreated,
			mutate:    func(p *models.TransactionPayload) { p.ID = "not-a-uuid" },
			wantErr:   ErrMalformedPayload,
		},
		{
			name:      "malformed type",
			eventType: models.EventTransactionCreated,
			mutate:    func(p *models.TransactionPayload) { p.Type = "REFUND" },
			wantErr:   ErrMalformedPayload,
		},
		{
			name:      "wallet mismatch",
			eventType: models.EventTransactionCreated,
			mutate:    func(p *models.TransactionPayload) { p.WalletID = uuid.New().String() },
			wantErr:   ErrWalletMismatch,
		},
		{
			name:      "zero amount",
			eventType: models.EventTransactionCreated,
			mutate:    func(p *models.TransactionPayload) { p.AmountCents = 0 },
			wantErr:   ErrInvalidAmount,
		},
		{
			name:      "negative amount",
			eventType: models.EventTransactionCreated,
			mutate:    func(p *models.TransactionPayload) { p.AmountCents = -100 },
			wantErr:   ErrInvalidAmount,
		},
		{
			name:      "blank description",
			eventType: models.EventTransactionCreated,
			mutate:    func(p *models.TransactionPayload) { p.Description = "   " },
			wantErr:   ErrMissingDescription,
		},
		{
			name:      "transfer without counterparty",
			eventType: models.EventTransactionCreated,
			mutate:    func(p *models.TransactionPayload) { p.Type = "TRANSFER" },
			wantErr:   ErrInvalidCounterparty,
		},
		{
			name:      "transfer to itself",
			eventType: models.EventTransactionCreated,
			mutate: func(p *models.TransactionPayload) {
				p.Type = "TRANSFER"
				p.CounterpartyAccountID = ptr(p.AccountID)
			},
			wantErr: ErrInvalidCounterparty,
		},
		{
			name:      "counterparty on expense",
			eventType: models.EventTransactionCreated,
			mutate: func(p *models.TransactionPayload) {
				p.CounterpartyAccountID = ptr(otherAccount.String())
			},
			wantErr: ErrInvalidCounterparty,
		},
		{
			name:      "unknown account",
			eventType: models.EventTransactionCreated,
			mutate:    func(p *models.TransactionPayload) { p.AccountID = uuid.New().String() },
			wantErr:   ErrInvalidAccount,
		},
		{
			name:      "unknown category",
			eventType: models.EventTransactionUpdated,
			mutate:    func(p *models.TransactionPayload) { p.CategoryID = ptr(uuid.New().String()) },
			wantErr:   ErrInvalidCategory,
		},
		{
			name:      "counterparty from another wallet",
			eventType: models.EventTransactionCreated,
			mutate: func(p *models.TransactionPayload) {
				p.Type = "TRANSFER"
				p.CounterpartyAccountID = ptr(uuid.New().String())
			},
			wantErr: ErrInvalidCounterpartyAccount,
		},
		{
			name:      "bad occurredAt",
			eventType: models.EventTransactionCreated,
			mutate:    func(p *models.TransactionPayload) { p.OccurredAt = "yesterday" },
			wantErr:   ErrInvalidTimestamp,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			payload := validPayload(walletID, accountID)
			tc.mutate(&payload)

			_, err := parseEvent(context.Background(), dir, walletID, tc.eventType, mustJSON(t, payload), time.Now())
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

// The first violated rule wins: a payload breaking both the amount and
// the description rules reports the amount, matching the rule order.
func TestParseEvent_RuleOrderDeterministic(t *testing.T) {
	walletID, accountID := uuid.New(), uuid.New()
	dir := newTestDirectory(walletID, accountID, uuid.New())

	payload := validPayload(walletID, accountID)
	payload.AmountCents = -5
	payload.Description = ""

	_, err := parseEvent(context.Background(), dir, walletID, models.EventTransactionCreated, mustJSON(t, payload), time.Now())
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

// A payload that is both malformed and wallet-mismatched reports the
// malformation: field parsing is part of rule 2 and precedes the
// wallet comparison.
func TestParseEvent_MalformedBeatsWalletMismatch(t *testing.T) {
	walletID, accountID := uuid.New(), uuid.New()
	dir := newTestDirectory(walletID, accountID, uuid.New())

	payload := validPayload(walletID, accountID)
	payload.WalletID = uuid.New().String()
	payload.Type = "REFUND"
	_, err := parseEvent(context.Background(), dir, walletID, models.EventTransactionCreated, mustJSON(t, payload), time.Now())
	assert.ErrorIs(t, err, ErrMalformedPayload)

	payload = validPayload(walletID, accountID)
	payload.WalletID = uuid.New().String()
	payload.AccountID = "not-a-uuid"
	_, err = parseEvent(context.Background(), dir, walletID, models.EventTransactionCreated, mustJSON(t, payload), time.Now())
	assert.ErrorIs(t, err, ErrMalformedPayload)

	// With every field well-formed, the mismatch is reported.
	payload = validPayload(walletID, accountID)
	payload.WalletID = uuid.New().String()
	_, err = parseEvent(context.Background(), dir, walletID, models.EventTransactionCreated, mustJSON(t, payload), time.Now())
	assert.ErrorIs(t, err, ErrWalletMismatch)
}

func TestParseEvent_RawGarbage(t *testing.T) {
	walletID := uuid.New()
	dir := newTestDirectory(walletID, uuid.New(), uuid.New())

	_, err := parseEvent(context.Background(), dir, walletID, models.EventTransactionCreated, json.RawMessage(`{"amountCents":"five"}`), time.Now())
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

// A DELETED payload is validated for identity only: deletes may race
// ahead of their create across devices, so missing amount, account and
// description are tolerated and fold into a tombstone.
func TestParseEvent_DeleteTombstone(t *testing.T) {
	walletID := uuid.New()
	dir := newTestDirectory(walletID, uuid.New(), uuid.New())
	id := uuid.New()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	payload := models.TransactionPayload{
		ID:       id.String(),
		WalletID: walletID.String(),
	}
	txn, err := parseEvent(context.Background(), dir, walletID, models.EventTransactionDeleted, mustJSON(t, payload), now)
	require.NoError(t, err)
	assert.Equal(t, id, txn.ID)
	require.NotNil(t, txn.DeletedAt)
	assert.Equal(t, now, *txn.DeletedAt)

	// Explicit deletedAt wins over the admission time.
	payload.DeletedAt = ptr("2024-02-01T00:00:00Z")
	txn, err = parseEvent(context.Background(), dir, walletID, models.EventTransactionDeleted, mustJSON(t, payload), now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), txn.DeletedAt.UTC())

	// But a garbled deletedAt is still a timestamp error.
	payload.DeletedAt = ptr("soon")
	_, err = parseEvent(context.Background(), dir, walletID, models.EventTransactionDeleted, mustJSON(t, payload), now)
	assert.ErrorIs(t, err, ErrInvalidTimestamp)
}

func ptr[T any](v T) *T { return &v }
