package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventTransactionCreated EventType = "TRANSACTION_CREATED"
	EventTransactionUpdated EventType = "TRANSACTION_UPDATED"
	EventTransactionDeleted EventType = "TRANSACTION_DELETED"
)

// Valid reports whether the event type is one of the supported
// transaction event kinds.
func (t EventType) Valid() bool {
	switch t {
	case EventTransactionCreated, EventTransactionUpdated, EventTransactionDeleted:
		return true
	}
	return false
}

// Event is one client-side mutation intent. EventID is globally unique
// and acts as the idempotency key: an event id the server has already
// admitted is never re-applied. ServerSeq is zero until the server
// admits the event and assigns the wallet's next sequence number.
type Event struct {
	EventID    uuid.UUID       `json:"eventId"`
	WalletID   uuid.UUID       `json:"walletId"`
	UserID     uuid.UUID       `json:"userId"`
	DeviceID   string          `json:"deviceId"`
	EventType  EventType       `json:"eventType"`
	Payload    json.RawMessage `json:"payload"`
	ServerSeq  int64           `json:"serverSeq,omitempty"`
	ReceivedAt time.Time       `json:"serverReceivedAt,omitzero"`
}
