package sessions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
)

type fakeRecordStore struct {
	data map[string]string
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{data: make(map[string]string)}
}

func (f *fakeRecordStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	f.data[key] = value.(string)
	return nil
}

func (f *fakeRecordStore) Get(ctx context.Context, key string) (string, error) {
	v, ok := f.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return v, nil
}

func (f *fakeRecordStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeRecordStore) DeviceSessionKey(userID, deviceID string) string {
	return "tp:device_session:" + userID + ":" + deviceID
}

func newTestDeviceStore() (*redisDeviceStore, *fakeRecordStore) {
	store := newFakeRecordStore()
	return &redisDeviceStore{store: store, ttl: 72 * time.Hour}, store
}

func TestDeviceStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestDeviceStore()
	userID, deviceID := uuid.New(), uuid.New()

	record := DeviceRecord{
		Code:       "AB3XYZ",
		SessionID:  uuid.New(),
		HostUserID: userID,
		IsHost:     true,
		CreatedAt:  time.Now().UTC(),
		Revision:   1,
	}
	if err := store.Persist(ctx, userID, deviceID, record); err != nil {
		t.Fatalf("persist: %v", err)
	}

	restored, err := store.Restore(ctx, userID, deviceID)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored == nil || restored.Code != record.Code || !restored.IsHost {
		t.Fatalf("unexpected restored record %+v", restored)
	}
}

func TestDeviceStoreRestoreMissing(t *testing.T) {
	store, _ := newTestDeviceStore()
	record, err := store.Restore(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if record != nil {
		t.Fatal("expected nil for missing record")
	}
}

func TestDeviceStoreEvictsExpiredRecords(t *testing.T) {
	ctx := context.Background()
	store, backing := newTestDeviceStore()
	userID, deviceID := uuid.New(), uuid.New()

	record := DeviceRecord{
		Code:      "OLD123",
		SessionID: uuid.New(),
		CreatedAt: time.Now().UTC().Add(-73 * time.Hour),
		Revision:  1,
	}
	if err := store.Persist(ctx, userID, deviceID, record); err != nil {
		t.Fatalf("persist: %v", err)
	}

	restored, err := store.Restore(ctx, userID, deviceID)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored != nil {
		t.Fatal("expired record should not be restored")
	}
	if len(backing.data) != 0 {
		t.Fatal("expired record should be deleted as a side effect")
	}
}

func TestDeviceStoreRejectsStaleRevision(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestDeviceStore()
	userID, deviceID := uuid.New(), uuid.New()

	newer := DeviceRecord{Code: "NEWER1", SessionID: uuid.New(), CreatedAt: time.Now().UTC(), Revision: 3}
	if err := store.Persist(ctx, userID, deviceID, newer); err != nil {
		t.Fatalf("persist newer: %v", err)
	}

	stale := DeviceRecord{Code: "STALE1", SessionID: uuid.New(), CreatedAt: time.Now().UTC(), Revision: 2}
	if err := store.Persist(ctx, userID, deviceID, stale); !errors.Is(err, ErrStaleRecord) {
		t.Fatalf("expected ErrStaleRecord, got %v", err)
	}

	restored, err := store.Restore(ctx, userID, deviceID)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored == nil || restored.Code != "NEWER1" {
		t.Fatalf("newer record should win, got %+v", restored)
	}
}
