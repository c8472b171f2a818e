package client

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/anayak07/walletsync/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// Store is the device-local database: the pending/acked event queue,
// the mirror of transaction state the UI reads, and the per-wallet
// pull cursor. Every local mutation writes the mirror row and its
// queue entry in one transaction, so readers never see one without
// the other.
type Store struct {
	db       *sql.DB
	userID   uuid.UUID
	deviceID string
}

// OpenStore creates or opens the device database at the given path.
// Safe to call repeatedly; schema application is idempotent.
func OpenStore(path string, userID uuid.UUID, deviceID string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY between the UI writer and the sync loop.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, userID: userID, deviceID: deviceID}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateTransaction writes the mirror row and queues a CREATED event
// in one atomic unit of work. The UI sees the row immediately; the
// server learns about it on the next sync cycle.
func (s *Store) CreateTransaction(ctx context.Context, txn *models.Transaction) (uuid.UUID, error) {
	return s.enqueueMutation(ctx, models.EventTransactionCreated, txn)
}

// UpdateTransaction replaces the mirror row's mutable fields and
// queues an UPDATED event.
func (s *Store) UpdateTransaction(ctx context.Context, txn *models.Transaction) (uuid.UUID, error) {
	return s.enqueueMutation(ctx, models.EventTransactionUpdated, txn)
}

// DeleteTransaction soft-deletes the mirror row and queues a DELETED
// event carrying the deletion time.
func (s *Store) DeleteTransaction(ctx context.Context, walletID, id uuid.UUID) (uuid.UUID, error) {
	now := time.Now().UTC()
	eventID := uuid.New()
	payload := models.TransactionPayload{
		ID:        id.String(),
		WalletID:  walletID.String(),
		DeletedAt: ptr(now.Format(time.RFC3339)),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (id, wallet_id, deleted_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET deleted_at = excluded.deleted_at
	`, id.String(), walletID.String(), now.Format(time.RFC3339))
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to soft delete mirror row: %w", err)
	}

	if err := s.insertQueueEntry(ctx, tx, eventID, walletID, models.EventTransactionDeleted, raw, now); err != nil {
		return uuid.Nil, err
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit: %w", err)
	}
	return eventID, nil
}

func (s *Store) enqueueMutation(ctx context.Context, eventType models.EventType, txn *models.Transaction) (uuid.UUID, error) {
	now := time.Now().UTC()
	eventID := uuid.New()
	raw, err := json.Marshal(payloadFromTransaction(txn))
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := upsertMirrorRow(ctx, tx, txn); err != nil {
		return uuid.Nil, err
	}
	if err := s.insertQueueEntry(ctx, tx, eventID, txn.WalletID, eventType, raw, now); err != nil {
		return uuid.Nil, err
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit: %w", err)
	}
	return eventID, nil
}

func (s *Store) insertQueueEntry(ctx context.Context, tx *sql.Tx, eventID uuid.UUID, walletID uuid.UUID, eventType models.EventType, payload []byte, createdAt time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO queue_entries (event_id, wallet_id, user_id, device_id, event_type, payload, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 'PENDING', ?)
	`,
		eventID.String(),
		walletID.String(),
		s.userID.String(),
		s.deviceID,
		string(eventType),
		string(payload),
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert queue entry: %w", err)
	}
	return nil
}

// PendingEntries returns the wallet's unacked queue entries in
// creation order, the order they must be pushed in. Ordering is by
// rowid: created_at is RFC3339Nano text, which is not lexicographically
// sortable, so same-second entries would come back shuffled on it.
func (s *Store) PendingEntries(ctx context.Context, walletID uuid.UUID) ([]*models.QueueEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, wallet_id, user_id, device_id, event_type, payload, status, created_at
		FROM queue_entries
		WHERE wallet_id = ? AND status = 'PENDING'
		ORDER BY rowid ASC
	`, walletID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query pending entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.QueueEntry
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}
	return entries, nil
}

// MarkAcked flips the given entries to ACKED. Accepted and
// recognized-duplicate events are both acks; ACKED is terminal.
func (s *Store) MarkAcked(ctx context.Context, eventIDs []uuid.UUID) error {
	if len(eventIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, id := range eventIDs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE queue_entries SET status = 'ACKED' WHERE event_id = ?`,
			id.String(),
		); err != nil {
			return fmt.Errorf("failed to ack entry %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Cursor returns the highest server sequence this device has durably
// applied for the wallet; zero when the wallet has never been pulled.
func (s *Store) Cursor(ctx context.Context, walletID uuid.UUID) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_seq FROM sync_cursors WHERE wallet_id = ?`,
		walletID.String(),
	).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read cursor: %w", err)
	}
	return seq, nil
}

// ApplyRemote folds pulled events into the mirror and advances the
// cursor, all in one transaction; a crash mid-apply leaves the cursor
// untouched so the next pull re-requests the same events.
func (s *Store) ApplyRemote(ctx context.Context, walletID uuid.UUID, events []*models.Event, nextSeq int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, event := range events {
		if err := applyRemoteEvent(ctx, tx, event); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sync_cursors (wallet_id, last_seq)
		VALUES (?, ?)
		ON CONFLICT(wallet_id) DO UPDATE SET last_seq = excluded.last_seq
	`, walletID.String(), nextSeq)
	if err != nil {
		return fmt.Errorf("failed to advance cursor: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func applyRemoteEvent(ctx context.Context, tx *sql.Tx, event *models.Event) error {
	var payload models.TransactionPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("failed to parse event %s payload: %w", event.EventID, err)
	}

	if event.EventType == models.EventTransactionDeleted {
		deletedAt := event.ReceivedAt.UTC().Format(time.RFC3339)
		if payload.DeletedAt != nil {
			deletedAt = *payload.DeletedAt
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO transactions (id, wallet_id, deleted_at)
			VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET deleted_at = excluded.deleted_at
		`, payload.ID, payload.WalletID, deletedAt)
		if err != nil {
			return fmt.Errorf("failed to apply delete: %w", err)
		}
		return nil
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
		payload.ID,
		payload.WalletID,
		payload.AccountID,
		payload.Type,
		payload.AmountCents,
		payload.OccurredAt,
		payload.Description,
		payload.CategoryID,
		payload.CounterpartyAccountID,
	)
	if err != nil {
		return fmt.Errorf("failed to apply upsert: %w", err)
	}
	return nil
}

// Transactions reads the wallet's mirror rows, soft-deleted rows
// excluded. This is the UI read path.
func (s *Store) Transactions(ctx context.Context, walletID uuid.UUID) ([]*models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, wallet_id, account_id, type, amount_cents, occurred_at, description, category_id, counterparty_account_id, deleted_at
		FROM transactions
		WHERE wallet_id = ? AND deleted_at IS NULL
		ORDER BY occurred_at ASC
	`, walletID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txns []*models.Transaction
	for rows.Next() {
		txn, err := scanMirrorRow(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txns, nil
}

// Transaction reads one mirror row by id, tombstones included.
func (s *Store) Transaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, wallet_id, account_id, type, amount_cents, occurred_at, description, category_id, counterparty_account_id, deleted_at
		FROM transactions
		WHERE id = ?
	`, id.String())

	txn, err := scanMirrorRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLocalNotFound
	}
	if err != nil {
		return nil, err
	}
	return txn, nil
}
