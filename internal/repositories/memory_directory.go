package repositories

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/anayak07/walletsync/internal/models"
)

// MemoryDirectory is the in-process twin of the wallet directory, used
// next to MemoryLedger in single-node runs and tests.
type MemoryDirectory struct {
	mu         sync.RWMutex
	wallets    map[uuid.UUID]bool
	accounts   map[uuid.UUID]map[uuid.UUID]bool
	categories map[uuid.UUID]map[uuid.UUID]bool
	members    map[uuid.UUID]map[uuid.UUID]models.WalletRole
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		wallets:    map[uuid.UUID]bool{},
		accounts:   map[uuid.UUID]map[uuid.UUID]bool{},
		categories: map[uuid.UUID]map[uuid.UUID]bool{},
		members:    map[uuid.UUID]map[uuid.UUID]models.WalletRole{},
	}
}

func (d *MemoryDirectory) AddWallet(walletID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.wallets[walletID] = true
}

func (d *MemoryDirectory) AddAccount(walletID, accountID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.accounts[walletID] == nil {
		d.accounts[walletID] = map[uuid.UUID]bool{}
	}
	d.accounts[walletID][accountID] = true
}

func (d *MemoryDirectory) AddCategory(walletID, categoryID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.categories[walletID] == nil {
		d.categories[walletID] = map[uuid.UUID]bool{}
	}
	d.categories[walletID][categoryID] = true
}

func (d *MemoryDirectory) AddMember(walletID, userID uuid.UUID, role models.WalletRole) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.members[walletID] == nil {
		d.members[walletID] = map[uuid.UUID]models.WalletRole{}
	}
	d.members[walletID][userID] = role
}

func (d *MemoryDirectory) WalletExists(ctx context.Context, walletID uuid.UUID) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.wallets[walletID], nil
}

func (d *MemoryDirectory) AccountExists(ctx context.Context, walletID, accountID uuid.UUID) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.accounts[walletID][accountID], nil
}

func (d *MemoryDirectory) CategoryExists(ctx context.Context, walletID, categoryID uuid.UUID) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.categories[walletID][categoryID], nil
}

func (d *MemoryDirectory) MemberRole(ctx context.Context, walletID, userID uuid.UUID) (models.WalletRole, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	role, ok := d.members[walletID][userID]
	if !ok {
		return "", ErrNotFound
	}
	return role, nil
}
