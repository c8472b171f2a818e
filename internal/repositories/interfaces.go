package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/anayak07/walletsync/internal/models"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrWalletNotFound = errors.New("wallet not found")
)

// LedgerTx is the unit of work for admitting events into one wallet's
// ledger. All methods run inside the same database transaction; the
// wallet's sequence counter row is locked for the duration, so no two
// concurrent admissions for the same wallet interleave.
type LedgerTx interface {
	// CurrentSeq returns the wallet's sequence counter as of this
	// transaction.
	CurrentSeq(ctx context.Context) (int64, error)
	// NextSeq atomically increments and returns the wallet's counter.
	NextSeq(ctx context.Context) (int64, error)
	// HasEvent reports whether an event id is already in the ledger.
	HasEvent(ctx context.Context, eventID uuid.UUID) (bool, error)
	// AppendEvent inserts a ledger row. ServerSeq and ReceivedAt must
	// be set by the caller.
	AppendEvent(ctx context.Context, event *models.Event) error
	// UpsertTransaction folds a validated payload into the
	// materialized transaction state.
	UpsertTransaction(ctx context.Context, txn *models.Transaction) error
	// SoftDeleteTransaction marks a row deleted, keeping its fields.
	// For a never-seen id it inserts a tombstone carrying only the
	// identity and the deletion time.
	SoftDeleteTransaction(ctx context.Context, walletID, id uuid.UUID, deletedAt time.Time) error
}

// LedgerStore is the server-side event ledger plus its per-wallet
// sequence allocator.
type LedgerStore interface {
	// WithWalletTx runs fn as one atomic unit of work holding the
	// wallet's sequence lock. If fn returns an error nothing is
	// persisted. Returns ErrWalletNotFound for an unknown wallet.
	WithWalletTx(ctx context.Context, walletID uuid.UUID, fn func(tx LedgerTx) error) error
	// EventsSince returns all events with server_seq > sinceSeq in
	// ascending server_seq order, plus the wallet's current counter.
	EventsSince(ctx context.Context, walletID uuid.UUID, sinceSeq int64) ([]*models.Event, int64, error)
	// TransactionsByWallet reads the materialized state, soft-deleted
	// rows included.
	TransactionsByWallet(ctx context.Context, walletID uuid.UUID) ([]*models.Transaction, error)
}

// WalletDirectory answers the existence and membership questions the
// event applier and the sync endpoints need. Backed by the wallet CRUD
// collaborators.
type WalletDirectory interface {
	WalletExists(ctx context.Context, walletID uuid.UUID) (bool, error)
	AccountExists(ctx context.Context, walletID, accountID uuid.UUID) (bool, error)
	CategoryExists(ctx context.Context, walletID, categoryID uuid.UUID) (bool, error)
	// MemberRole returns ErrNotFound when the user has no role on the
	// wallet.
	MemberRole(ctx context.Context, walletID, userID uuid.UUID) (models.WalletRole, error)
}

// WalletAdmin is the management surface for wallets and their
// reference data. Implemented by PostgresWalletRepository alongside
// WalletDirectory.
type WalletAdmin interface {
	Create(ctx context.Context, wallet *models.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	AddMember(ctx context.Context, walletID, userID uuid.UUID, role models.WalletRole) error
	CreateAccount(ctx context.Context, account *models.Account) error
	CreateCategory(ctx context.Context, category *models.Category) error
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) error
}

type PresenceRepository interface {
	Touch(ctx context.Context, presence *models.DevicePresence) error
	Get(ctx context.Context, walletID uuid.UUID, deviceID string) (*models.DevicePresence, error)
}
