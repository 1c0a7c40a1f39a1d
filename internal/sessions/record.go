package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/mdelarosa/tallypos-backend/pkg/enums"
	"github.com/mdelarosa/tallypos-backend/pkg/redis"
)

// ErrStaleRecord signals a persist racing a newer write for the same device.
var ErrStaleRecord = errors.New("sessions: device record is stale")

// DeviceRecord mirrors the backend session row on one device. It carries the
// host's plan state so participants compute quotas without extra lookups.
type DeviceRecord struct {
	Code               string         `json:"code"`
	SessionID          uuid.UUID      `json:"sessionId"`
	EventID            *uuid.UUID     `json:"eventId,omitempty"`
	HostUserID         uuid.UUID      `json:"hostUserId"`
	HostDeviceID       uuid.UUID      `json:"hostDeviceId"`
	IsHost             bool           `json:"isHost"`
	HostPlanTier       enums.PlanTier `json:"hostPlanTier"`
	HostPlanPaused     bool           `json:"hostPlanPaused"`
	RequiresPassphrase bool           `json:"requiresPassphrase"`
	ApprovalRequired   bool           `json:"approvalRequired"`
	CreatedAt          time.Time      `json:"createdAt"`
	Revision           int64          `json:"revision"`
}

// DeviceStore persists at most one DeviceRecord per user/device pair.
type DeviceStore interface {
	Restore(ctx context.Context, userID, deviceID uuid.UUID) (*DeviceRecord, error)
	Persist(ctx context.Context, userID, deviceID uuid.UUID, record DeviceRecord) error
	Clear(ctx context.Context, userID, deviceID uuid.UUID) error
}

type recordStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	DeviceSessionKey(userID, deviceID string) string
}

type redisDeviceStore struct {
	store recordStore
	ttl   time.Duration
}

// NewRedisDeviceStore builds a device store backed by the shared redis client.
// Records expire after ttl; a restore past that point evicts rather than renews.
func NewRedisDeviceStore(client *redis.Client, ttl time.Duration) DeviceStore {
	return &redisDeviceStore{store: client, ttl: ttl}
}

func (s *redisDeviceStore) Restore(ctx context.Context, userID, deviceID uuid.UUID) (*DeviceRecord, error) {
	key := s.store.DeviceSessionKey(userID.String(), deviceID.String())
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		if err == redislib.Nil {
			return nil, nil
		}
		return nil, err
	}

	var record DeviceRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		// Unreadable records are evicted rather than surfaced.
		_ = s.store.Del(ctx, key)
		return nil, nil
	}

	// Redis expiry normally handles this; the explicit check also covers
	// records written before a TTL change.
	if s.ttl > 0 && !record.CreatedAt.IsZero() && time.Since(record.CreatedAt) > s.ttl {
		_ = s.store.Del(ctx, key)
		return nil, nil
	}
	return &record, nil
}

// Persist writes the record unless a newer revision is already stored. The
// check-then-set keeps a slow refresh from clobbering a later join or end.
func (s *redisDeviceStore) Persist(ctx context.Context, userID, deviceID uuid.UUID, record DeviceRecord) error {
	key := s.store.DeviceSessionKey(userID.String(), deviceID.String())

	raw, err := s.store.Get(ctx, key)
	if err != nil && err != redislib.Nil {
		return err
	}
	if err == nil {
		var current DeviceRecord
		if jsonErr := json.Unmarshal([]byte(raw), &current); jsonErr == nil && current.Revision >= record.Revision {
			return ErrStaleRecord
		}
	}

	encoded, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, key, string(encoded), s.ttl)
}

func (s *redisDeviceStore) Clear(ctx context.Context, userID, deviceID uuid.UUID) error {
	return s.store.Del(ctx, s.store.DeviceSessionKey(userID.String(), deviceID.String()))
}
