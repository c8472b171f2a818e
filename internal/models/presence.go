package models

import (
	"time"

	"github.com/google/uuid"
)

// DevicePresence records when a device last synced against a wallet.
// It is advisory state kept in Redis with a TTL, not part of the ledger.
type DevicePresence struct {
	WalletID uuid.UUID `json:"wallet_id"`
	DeviceID string    `json:"device_id"`
	LastSeen time.Time `json:"last_seen"`
}
