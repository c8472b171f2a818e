package models

import (
	"time"

	"github.com/google/uuid"
)

type WalletRole string

const (
	RoleViewer WalletRole = "viewer"
	RoleEditor WalletRole = "editor"
	RoleOwner  WalletRole = "owner"
)

// CanPush reports whether the role may submit events for the wallet.
func (r WalletRole) CanPush() bool {
	return r == RoleEditor || r == RoleOwner
}

// CanPull reports whether the role may read the wallet's event stream.
func (r WalletRole) CanPull() bool {
	return r == RoleViewer || r == RoleEditor || r == RoleOwner
}

// Wallet is the unit of sharing and of event ordering. LastSeq is the
// per-wallet sequence counter, owned exclusively by the allocate-and-insert
// transaction.
type Wallet struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	LastSeq   int64     `json:"last_seq"`
	CreatedAt time.Time `json:"created_at"`
}

type Account struct {
	ID        uuid.UUID `json:"id"`
	WalletID  uuid.UUID `json:"wallet_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Category struct {
	ID        uuid.UUID `json:"id"`
	WalletID  uuid.UUID `json:"wallet_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
