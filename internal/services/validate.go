package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/anayak07/walletsync/internal/models"
	"github.com/anayak07/walletsync/internal/repositories"
)

// Validation failures, one sentinel per rule so a rejected push names
// the exact rule it broke. The checks run in a fixed order; tests rely
// on the first violated rule being the one reported.
var (
	ErrUnsupportedEventType       = errors.New("unsupported event type")
	ErrMalformedPayload           = errors.New("malformed payload")
	ErrWalletMismatch             = errors.New("payload wallet does not match")
	ErrInvalidAmount              = errors.New("amount must be a positive integer")
	ErrMissingDescription         = errors.New("description is required")
	ErrInvalidCounterparty        = errors.New("invalid counterparty for transaction type")
	ErrInvalidAccount             = errors.New("account does not belong to wallet")
	ErrInvalidCategory            = errors.New("category does not belong to wallet")
	ErrInvalidCounterpartyAccount = errors.New("counterparty account does not belong to wallet")
	ErrInvalidTimestamp           = errors.New("invalid timestamp")
)

// parseEvent validates a raw event payload against the ordered rule
// list and returns the materialized transaction it folds to. For
// DELETED events only the identity and timestamps are checked: a
// delete may arrive before its create (or reference fields this device
// never saw), and it folds to a tombstone rather than an error.
func parseEvent(ctx context.Context, dir repositories.WalletDirectory, walletID uuid.UUID, eventType models.EventType, raw json.RawMessage, now time.Time) (*models.Transaction, error) {
	// Rule 1: supported event type.
	if !eventType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEventType, eventType)
	}

	// Rule 2: payload parses against the transaction shape.
	var payload models.TransactionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	id, err := uuid.Parse(payload.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: id: %v", ErrMalformedPayload, err)
	}
	payloadWallet, err := uuid.Parse(payload.WalletID)
	if err != nil {
		return nil, fmt.Errorf("%w: walletId: %v", ErrMalformedPayload, err)
	}

	// Still rule 2: the remaining field parses, so a payload that is
	// both malformed and wallet-mismatched reports the malformation.
	// Tombstone payloads carry identity only and skip these.
	var (
		accountID      uuid.UUID
		txType         models.TransactionType
		categoryID     *uuid.UUID
		counterpartyID *uuid.UUID
	)
	if eventType != models.EventTransactionDeleted {
		accountID, err = uuid.Parse(payload.AccountID)
		if err != nil {
			return nil, fmt.Errorf("%w: accountId: %v", ErrMalformedPayload, err)
		}
		txType = models.TransactionType(payload.Type)
		if !txType.Valid() {
			return nil, fmt.Errorf("%w: type %q", ErrMalformedPayload, payload.Type)
		}
		if payload.CategoryID != nil {
			parsed, err := uuid.Parse(*payload.CategoryID)
			if err != nil {
				return nil, fmt.Errorf("%w: categoryId: %v", ErrMalformedPayload, err)
			}
			categoryID = &parsed
		}
		if payload.CounterpartyAccountID != nil {
			parsed, err := uuid.Parse(*payload.CounterpartyAccountID)
			if err != nil {
				return nil, fmt.Errorf("%w: counterpartyAccountId: %v", ErrMalformedPayload, err)
			}
			counterpartyID = &parsed
		}
	}

	// Rule 3: payload wallet must match the enclosing wallet.
	if payloadWallet != walletID {
		return nil, ErrWalletMismatch
	}

	if eventType == models.EventTransactionDeleted {
		return parseTombstone(id, walletID, payload, now)
	}

	// Rule 4: positive amount.
	if payload.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, payload.AmountCents)
	}

	// Rule 5: non-empty description.
	description := strings.TrimSpace(payload.Description)
	if description == "" {
		return nil, ErrMissingDescription
	}

	// Rule 6: counterparty required for transfers, forbidden otherwise,
	// and never the source account itself.
	if txType == models.TransactionTransfer {
		if counterpartyID == nil {
			return nil, fmt.Errorf("%w: transfer requires counterpartyAccountId", ErrInvalidCounterparty)
		}
		if *counterpartyID == accountID {
			return nil, fmt.Errorf("%w: counterparty equals source account", ErrInvalidCounterparty)
		}
	} else if counterpartyID != nil {
		return nil, fmt.Errorf("%w: counterpartyAccountId only valid for transfers", ErrInvalidCounterparty)
	}

	// Rule 7: account belongs to the wallet.
	ok, err := dir.AccountExists(ctx, walletID, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to check account: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAccount, accountID)
	}

	// Rule 8: category, when present, belongs to the wallet.
	if categoryID != nil {
		ok, err := dir.CategoryExists(ctx, walletID, *categoryID)
		if err != nil {
			return nil, fmt.Errorf("failed to check category: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCategory, *categoryID)
		}
	}

	// Rule 9: counterparty account belongs to the wallet.
	if counterpartyID != nil {
		ok, err := dir.AccountExists(ctx, walletID, *counterpartyID)
		if err != nil {
			return nil, fmt.Errorf("failed to check counterparty account: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCounterpartyAccount, *counterpartyID)
		}
	}

	// Rule 10: occurredAt is a valid instant.
	occurredAt, err := time.Parse(time.RFC3339, payload.OccurredAt)
	if err != nil {
		return nil, fmt.Errorf("%w: occurredAt: %v", ErrInvalidTimestamp, err)
	}

	return &models.Transaction{
		ID:                    id,
		WalletID:              walletID,
		AccountID:             accountID,
		Type:                  txType,
		AmountCents:           payload.AmountCents,
		OccurredAt:            occurredAt,
		Description:           description,
		CategoryID:            categoryID,
		CounterpartyAccountID: counterpartyID,
	}, nil
}

// parseTombstone folds a DELETED payload. The deletedAt timestamp
// defaults to the admission time; a delete for a never-seen id still
// produces a row carrying only its identity.
func parseTombstone(id, walletID uuid.UUID, payload models.TransactionPayload, now time.Time) (*models.Transaction, error) {
	deletedAt := now
	if payload.DeletedAt != nil {
		parsed, err := time.Parse(time.RFC3339, *payload.DeletedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: deletedAt: %v", ErrInvalidTimestamp, err)
		}
		deletedAt = parsed
	}
	return &models.Transaction{
		ID:        id,
		WalletID:  walletID,
		DeletedAt: &deletedAt,
	}, nil
}
