package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/anayak07/walletsync/internal/models"
)

const (
	presenceKeyPrefix = "presence:"
	presenceTTL       = 5 * time.Minute // Entry expires without a sync within the TTL
)

// RedisPresenceRepository tracks which devices synced a wallet recently.
// Advisory only: the ledger, not presence, is the source of truth.
type RedisPresenceRepository struct {
	client *redis.Client
}

func NewRedisPresenceRepository(client *redis.Client) *RedisPresenceRepository {
	return &RedisPresenceRepository{client: client}
}

// Touch records that a device just synced against a wallet.
func (r *RedisPresenceRepository) Touch(ctx context.Context, presence *models.DevicePresence) error {
	presence.LastSeen = time.Now().UTC()

	data, err := json.Marshal(presence)
	if err != nil {
		return fmt.Errorf("failed to marshal presence: %w", err)
	}

	key := presenceKey(presence.WalletID, presence.DeviceID)
	if err := r.client.Set(ctx, key, data, presenceTTL).Err(); err != nil {
		return fmt.Errorf("failed to set presence: %w", err)
	}
	return nil
}

func (r *RedisPresenceRepository) Get(ctx context.Context, walletID uuid.UUID, deviceID string) (*models.DevicePresence, error) {
	key := presenceKey(walletID, deviceID)

	data, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		// No entry: the device has not synced within the TTL.
		return &models.DevicePresence{WalletID: walletID, DeviceID: deviceID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get presence: %w", err)
	}

	var presence models.DevicePresence
	if err := json.Unmarshal([]byte(data), &presence); err != nil {
		return nil, fmt.Errorf("failed to unmarshal presence: %w", err)
	}
	return &presence, nil
}

func presenceKey(walletID uuid.UUID, deviceID string) string {
	return fmt.Sprintf("%s%s:%s", presenceKeyPrefix, walletID, deviceID)
}
