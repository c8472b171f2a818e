package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/anayak07/walletsync/internal/models"
)

// ErrLocalNotFound is returned for reads of rows the local mirror does
// not hold.
var ErrLocalNotFound = errors.New("not found in local store")

func ptr[T any](v T) *T { return &v }

func payloadFromTransaction(txn *models.Transaction) models.TransactionPayload {
	payload := models.TransactionPayload{
		ID:          txn.ID.String(),
		WalletID:    txn.WalletID.String(),
		AccountID:   txn.AccountID.String(),
		Type:        string(txn.Type),
		AmountCents: txn.AmountCents,
		OccurredAt:  txn.OccurredAt.UTC().Format(time.RFC3339),
		Description: txn.Description,
	}
	if txn.CategoryID != nil {
		payload.CategoryID = ptr(txn.CategoryID.String())
	}
	if txn.CounterpartyAccountID != nil {
		payload.CounterpartyAccountID = ptr(txn.CounterpartyAccountID.String())
	}
	if txn.DeletedAt != nil {
		payload.DeletedAt = ptr(txn.DeletedAt.UTC().Format(time.RFC3339))
	}
	return payload
}

func upsertMirrorRow(ctx context.Context, tx *sql.Tx, txn *models.Transaction) error {
	var categoryID, counterpartyID *string
	if txn.CategoryID != nil {
		categoryID = ptr(txn.CategoryID.String())
	}
	if txn.CounterpartyAccountID != nil {
		counterpartyID = ptr(txn.CounterpartyAccountID.String())
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (id, wallet_id, account_id, type, amount_cents, occurred_at, description, category_id, counterparty_account_id, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
		ON CONFLICT(id) DO UPDATE SET
			account_id = excluded.account_id,
			type = excluded.type,
			amount_cents = excluded.amount_cents,
			occurred_at = excluded.occurred_at,
			description = excluded.description,
			category_id = excluded.category_id,
			counterparty_account_id = excluded.counterparty_account_id,
			deleted_at = NULL
	`,
		txn.ID.String(),
		txn.WalletID.String(),
		txn.AccountID.String(),
		string(txn.Type),
		txn.AmountCents,
		txn.OccurredAt.UTC().Format(time.RFC3339),
		txn.Description,
		categoryID,
		counterpartyID,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert mirror row: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQueueEntry(sc scanner) (*models.QueueEntry, error) {
	var entry models.QueueEntry
	var eventID, walletID, userID, eventType, payload, status, createdAt string
	err := sc.Scan(&eventID, &walletID, &userID, &entry.DeviceID, &eventType, &payload, &status, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan queue entry: %w", err)
	}

	if entry.EventID, err = uuid.Parse(eventID); err != nil {
		return nil, fmt.Errorf("corrupt queue entry id: %w", err)
	}
	if entry.WalletID, err = uuid.Parse(walletID); err != nil {
		return nil, fmt.Errorf("corrupt queue entry wallet id: %w", err)
	}
	if entry.UserID, err = uuid.Parse(userID); err != nil {
		return nil, fmt.Errorf("corrupt queue entry user id: %w", err)
	}
	entry.EventType = models.EventType(eventType)
	entry.Payload = []byte(payload)
	entry.Status = models.QueueStatus(status)
	if entry.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("corrupt queue entry timestamp: %w", err)
	}
	return &entry, nil
}

func scanMirrorRow(sc scanner) (*models.Transaction, error) {
	var txn models.Transaction
	var id, walletID, accountID, txType, occurredAt string
	var categoryID, counterpartyID, deletedAt *string
	err := sc.Scan(&id, &walletID, &accountID, &txType, &txn.AmountCents, &occurredAt, &txn.Description, &categoryID, &counterpartyID, &deletedAt)
	if err != nil {
		return nil, err
	}

	if txn.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("corrupt mirror row id: %w", err)
	}
	if txn.WalletID, err = uuid.Parse(walletID); err != nil {
		return nil, fmt.Errorf("corrupt mirror row wallet id: %w", err)
	}
	// Tombstones applied before their create carry empty fields.
	if accountID != "" {
		if txn.AccountID, err = uuid.Parse(accountID); err != nil {
			return nil, fmt.Errorf("corrupt mirror row account id: %w", err)
		}
	}
	txn.Type = models.TransactionType(txType)
	if occurredAt != "" {
		if txn.OccurredAt, err = time.Parse(time.RFC3339, occurredAt); err != nil {
			return nil, fmt.Errorf("corrupt mirror row timestamp: %w", err)
		}
	}
	if categoryID != nil {
		parsed, err := uuid.Parse(*categoryID)
		if err != nil {
			return nil, fmt.Errorf("corrupt mirror row category id: %w", err)
		}
		txn.CategoryID = &parsed
	}
	if counterpartyID != nil {
		parsed, err := uuid.Parse(*counterpartyID)
		if err != nil {
			return nil, fmt.Errorf("corrupt mirror row counterparty id: %w", err)
		}
		txn.CounterpartyAccountID = &parsed
	}
	if deletedAt != nil {
		parsed, err := time.Parse(time.RFC3339, *deletedAt)
		if err != nil {
			return nil, fmt.Errorf("corrupt mirror row deleted_at: %w", err)
		}
		txn.DeletedAt = &parsed
	}
	return &txn, nil
}
