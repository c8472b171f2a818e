package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/anayak07/walletsync/internal/models"
)

// PostgresLedger stores the event ledger and the materialized
// transaction state in Postgres. Sequence allocation is a row-level
// atomic increment on wallets.last_seq inside the same transaction as
// the ledger insert, so a crash can never leave an allocated number
// without its event and concurrent pushes for one wallet serialize on
// the row lock.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

type postgresLedgerTx struct {
	tx       pgx.Tx
	walletID uuid.UUID
	lastSeq  int64
}

func (l *PostgresLedger) WithWalletTx(ctx context.Context, walletID uuid.UUID, fn func(tx LedgerTx) error) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin ledger tx: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if committed

	// Locking the wallet row serializes sequence allocation per wallet.
	var lastSeq int64
	err = tx.QueryRow(ctx, `SELECT last_seq FROM wallets WHERE id = $1 FOR UPDATE`, walletID).Scan(&lastSeq)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrWalletNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock wallet: %w", err)
	}

	if err := fn(&postgresLedgerTx{tx: tx, walletID: walletID, lastSeq: lastSeq}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit ledger tx: %w", err)
	}
	return nil
}

func (t *postgresLedgerTx) CurrentSeq(ctx context.Context) (int64, error) {
	return t.lastSeq, nil
}

func (t *postgresLedgerTx) NextSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := t.tx.QueryRow(ctx,
		`UPDATE wallets SET last_seq = last_seq + 1 WHERE id = $1 RETURNING last_seq`,
		t.walletID,
	).Scan(&seq)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrWalletNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to allocate sequence: %w", err)
	}
	t.lastSeq = seq
	return seq, nil
}

func (t *postgresLedgerTx) HasEvent(ctx context.Context, eventID uuid.UUID) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM sync_events WHERE event_id = $1)`,
		eventID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check event: %w", err)
	}
	return exists, nil
}

func (t *postgresLedgerTx) AppendEvent(ctx context.Context, event *models.Event) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO sync_events (event_id, wallet_id, user_id, device_id, event_type, payload, server_seq, received_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.EventID,
		event.WalletID,
		event.UserID,
		event.DeviceID,
		string(event.EventType),
		event.Payload,
		event.ServerSeq,
		event.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (t *postgresLedgerTx) UpsertTransaction(ctx context.Context, txn *models.Transaction) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO transactions (id, wallet_id, account_id, type, amount_cents, occurred_at, description, category_id, counterparty_account_id, deleted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE
		 SET account_id = EXCLUDED.account_id,
		     type = EXCLUDED.type,
		     amount_cents = EXCLUDED.amount_cents,
		     occurred_at = EXCLUDED.occurred_at,
		     description = EXCLUDED.description,
		     category_id = EXCLUDED.category_id,
		     counterparty_account_id = EXCLUDED.counterparty_account_id,
		     deleted_at = EXCLUDED.deleted_at`,
		txn.ID,
		txn.WalletID,
		txn.AccountID,
		string(txn.Type),
		txn.AmountCents,
		txn.OccurredAt,
		txn.Description,
		txn.CategoryID,
		txn.CounterpartyAccountID,
		txn.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert transaction: %w", err)
	}
	return nil
}

func (t *postgresLedgerTx) SoftDeleteTransaction(ctx context.Context, walletID, id uuid.UUID, deletedAt time.Time) error {
	// Existing rows keep their fields; unseen ids become tombstones.
	_, err := t.tx.Exec(ctx,
		`INSERT INTO transactions (id, wallet_id, account_id, occurred_at, deleted_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET deleted_at = EXCLUDED.deleted_at`,
		id,
		walletID,
		uuid.Nil,
		time.Time{},
		deletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to soft delete transaction: %w", err)
	}
	return nil
}

func (l *PostgresLedger) EventsSince(ctx context.Context, walletID uuid.UUID, sinceSeq int64) ([]*models.Event, int64, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to begin pull tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var nextSeq int64
	err = tx.QueryRow(ctx, `SELECT last_seq FROM wallets WHERE id = $1`, walletID).Scan(&nextSeq)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, ErrWalletNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read wallet sequence: %w", err)
	}

	rows, err := tx.Query(ctx,
		`SELECT event_id, wallet_id, user_id, device_id, event_type, payload, server_seq, received_at
		 FROM sync_events
		 WHERE wallet_id = $1 AND server_seq > $2
		 ORDER BY server_seq ASC`,
		walletID, sinceSeq,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		var event models.Event
		var eventType string
		err := rows.Scan(
			&event.EventID,
			&event.WalletID,
			&event.UserID,
			&event.DeviceID,
			&eventType,
			&event.Payload,
			&event.ServerSeq,
			&event.ReceivedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan event: %w", err)
		}
		event.EventType = models.EventType(eventType)
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating events: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, fmt.Errorf("failed to commit pull tx: %w", err)
	}
	return events, nextSeq, nil
}

func (l *PostgresLedger) TransactionsByWallet(ctx context.Context, walletID uuid.UUID) ([]*models.Transaction, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, wallet_id, account_id, type, amount_cents, occurred_at, description, category_id, counterparty_account_id, deleted_at
		 FROM transactions
		 WHERE wallet_id = $1
		 ORDER BY occurred_at ASC`,
		walletID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txns []*models.Transaction
	for rows.Next() {
		var txn models.Transaction
		var txType string
		err := rows.Scan(
			&txn.ID,
			&txn.WalletID,
			&txn.AccountID,
			&txType,
			&txn.AmountCents,
			&txn.OccurredAt,
			&txn.Description,
			&txn.CategoryID,
			&txn.CounterpartyAccountID,
			&txn.DeletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txn.Type = models.TransactionType(txType)
		txns = append(txns, &txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txns, nil
}
