package models

import (
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TransactionIncome   TransactionType = "INCOME"
	TransactionExpense  TransactionType = "EXPENSE"
	TransactionTransfer TransactionType = "TRANSFER"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionIncome, TransactionExpense, TransactionTransfer:
		return true
	}
	return false
}

// TransactionPayload is the wire shape of a transaction event payload.
// Timestamps and ids stay as strings here; parsing them into a
// Transaction is part of the ordered validation sequence, so each
// malformed field surfaces as its own error kind.
type TransactionPayload struct {
	ID                    string  `json:"id"`
	WalletID              string  `json:"walletId"`
	AccountID             string  `json:"accountId"`
	Type                  string  `json:"type"`
	AmountCents           int64   `json:"amountCents"`
	OccurredAt            string  `json:"occurredAt"`
	Description           string  `json:"description"`
	CategoryID            *string `json:"categoryId,omitempty"`
	CounterpartyAccountID *string `json:"counterpartyAccountId,omitempty"`
	DeletedAt             *string `json:"deletedAt,omitempty"`
}

// Transaction is the materialized row derived by folding events in
// server admission order. DeletedAt non-nil marks a soft-deleted row;
// the row itself is retained.
type Transaction struct {
	ID                    uuid.UUID       `json:"id"`
	WalletID              uuid.UUID       `json:"walletId"`
	AccountID             uuid.UUID       `json:"accountId"`
	Type                  TransactionType `json:"type"`
	AmountCents           int64           `json:"amountCents"`
	OccurredAt            time.Time       `json:"occurredAt"`
	Description           string          `json:"description"`
	CategoryID            *uuid.UUID      `json:"categoryId,omitempty"`
	CounterpartyAccountID *uuid.UUID      `json:"counterpartyAccountId,omitempty"`
	DeletedAt             *time.Time      `json:"deletedAt,omitempty"`
}
