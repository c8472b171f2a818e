package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/anayak07/walletsync/internal/models"
)

// MemoryLedger is an in-process LedgerStore for single-node runs and
// tests. A single mutex serializes admission transactions; writes are
// staged inside the unit of work and merged only when fn succeeds, so
// a failed batch leaves no partial state, matching the Postgres store.
type MemoryLedger struct {
	mu      sync.Mutex
	wallets map[uuid.UUID]*memoryWallet
}

type memoryWallet struct {
	lastSeq      int64
	events       []*models.Event
	eventIDs     map[uuid.UUID]bool
	transactions map[uuid.UUID]*models.Transaction
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{wallets: map[uuid.UUID]*memoryWallet{}}
}

// CreateWallet registers a wallet with a zero sequence counter.
func (l *MemoryLedger) CreateWallet(walletID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.wallets[walletID]; !ok {
		l.wallets[walletID] = &memoryWallet{
			eventIDs:     map[uuid.UUID]bool{},
			transactions: map[uuid.UUID]*models.Transaction{},
		}
	}
}

type memoryLedgerTx struct {
	wallet       *memoryWallet
	seq          int64
	events       []*models.Event
	transactions map[uuid.UUID]*models.Transaction
}

func (l *MemoryLedger) WithWalletTx(ctx context.Context, walletID uuid.UUID, fn func(tx LedgerTx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.wallets[walletID]
	if !ok {
		return ErrWalletNotFound
	}

	tx := &memoryLedgerTx{
		wallet:       w,
		seq:          w.lastSeq,
		transactions: map[uuid.UUID]*models.Transaction{},
	}
	if err := fn(tx); err != nil {
		return err
	}

	// Commit staged writes.
	w.lastSeq = tx.seq
	for _, event := range tx.events {
		w.events = append(w.events, event)
		w.eventIDs[event.EventID] = true
	}
	for id, txn := range tx.transactions {
		w.transactions[id] = txn
	}
	return nil
}

func (t *memoryLedgerTx) CurrentSeq(ctx context.Context) (int64, error) {
	return t.seq, nil
}

func (t *memoryLedgerTx) NextSeq(ctx context.Context) (int64, error) {
	t.seq++
	return t.seq, nil
}

func (t *memoryLedgerTx) HasEvent(ctx context.Context, eventID uuid.UUID) (bool, error) {
	if t.wallet.eventIDs[eventID] {
		return true, nil
	}
	for _, event := range t.events {
		if event.EventID == eventID {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryLedgerTx) AppendEvent(ctx context.Context, event *models.Event) error {
	copied := *event
	t.events = append(t.events, &copied)
	return nil
}

func (t *memoryLedgerTx) UpsertTransaction(ctx context.Context, txn *models.Transaction) error {
	copied := *txn
	t.transactions[txn.ID] = &copied
	return nil
}

func (t *memoryLedgerTx) SoftDeleteTransaction(ctx context.Context, walletID, id uuid.UUID, deletedAt time.Time) error {
	existing, ok := t.transactions[id]
	if !ok {
		if committed, found := t.wallet.transactions[id]; found {
			copied := *committed
			existing, ok = &copied, true
		}
	}
	if ok {
		existing.DeletedAt = &deletedAt
		t.transactions[id] = existing
		return nil
	}
	t.transactions[id] = &models.Transaction{
		ID:        id,
		WalletID:  walletID,
		DeletedAt: &deletedAt,
	}
	return nil
}

func (l *MemoryLedger) EventsSince(ctx context.Context, walletID uuid.UUID, sinceSeq int64) ([]*models.Event, int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.wallets[walletID]
	if !ok {
		return nil, 0, ErrWalletNotFound
	}

	var events []*models.Event
	for _, event := range w.events {
		if event.ServerSeq > sinceSeq {
			copied := *event
			events = append(events, &copied)
		}
	}
	return events, w.lastSeq, nil
}

func (l *MemoryLedger) TransactionsByWallet(ctx context.Context, walletID uuid.UUID) ([]*models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.wallets[walletID]
	if !ok {
		return nil, ErrWalletNotFound
	}

	var txns []*models.Transaction
	for _, txn := range w.transactions {
		copied := *txn
		txns = append(txns, &copied)
	}
	return txns, nil
}
