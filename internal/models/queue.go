package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type QueueStatus string

const (
	QueuePending QueueStatus = "PENDING"
	QueueAcked   QueueStatus = "ACKED"
)

// QueueEntry is one locally produced event awaiting server confirmation.
// Entries move PENDING -> ACKED once and are never deleted; the acked
// rows double as the device's audit trail.
type QueueEntry struct {
	EventID   uuid.UUID       `json:"event_id"`
	WalletID  uuid.UUID       `json:"wallet_id"`
	UserID    uuid.UUID       `json:"user_id"`
	DeviceID  string          `json:"device_id"`
	EventType EventType       `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	Status    QueueStatus     `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

// Event converts the queue entry back into its wire event for push.
func (e *QueueEntry) Event() *Event {
	return &Event{
		EventID:   e.EventID,
		WalletID:  e.WalletID,
		UserID:    e.UserID,
		DeviceID:  e.DeviceID,
		EventType: e.EventType,
		Payload:   e.Payload,
	}
}
