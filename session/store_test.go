package session

import (
	"context"
	"crypto/sha256"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newStoreTest(t *testing.T) (*Store, *redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	return NewStore(rdb, "ak"), rdb, func() {
		rdb.Close()
		mr.Close()
	}
}

func newSession(id, userID, deviceID string, secret string) *Session {
	now := time.Now().Unix()
	return &Session{
		ID:          id,
		UserID:      userID,
		DeviceID:    deviceID,
		DeviceModel: "Pixel 8",
		DeviceOS:    "Android 15",
		RefreshHash: sha256.Sum256([]byte(secret)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestUpsertReusesDeviceSlot(t *testing.T) {
	store, _, cleanup := newStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	first, err := store.Upsert(ctx, newSession("sid-1", "u1", "d1", "secret-a"), time.Hour)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if first.ID != "sid-1" {
		t.Fatalf("fresh device must keep candidate id, got %s", first.ID)
	}

	// Same device again under a new candidate id: the indexed id wins.
	second, err := store.Upsert(ctx, newSession("sid-2", "u1", "d1", "secret-b"), time.Hour)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != "sid-1" {
		t.Fatalf("expected reused id sid-1, got %s", second.ID)
	}

	got, err := store.Get(ctx, "sid-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RefreshHash != sha256.Sum256([]byte("secret-b")) {
		t.Fatalf("replacement must overwrite the refresh hash")
	}

	sessions, err := store.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("one device must hold one session, got %d", len(sessions))
	}
}

func TestUpsertDistinctDevices(t *testing.T) {
	store, _, cleanup := newStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := store.Upsert(ctx, newSession("sid-1", "u1", "d1", "a"), time.Hour); err != nil {
		t.Fatalf("upsert d1: %v", err)
	}
	if _, err := store.Upsert(ctx, newSession("sid-2", "u1", "d2", "b"), time.Hour); err != nil {
		t.Fatalf("upsert d2: %v", err)
	}

	sessions, err := store.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}

	if _, err := store.GetByDevice(ctx, "u1", "d2"); err != nil {
		t.Fatalf("get by device: %v", err)
	}
}

func TestRotateSwapsHash(t *testing.T) {
	store, _, cleanup := newStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	sess := newSession("sid-1", "u1", "d1", "secret-a")
	sess.UpdatedAt = time.Now().Add(-time.Hour).Unix()
	if _, err := store.Upsert(ctx, sess, time.Hour); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	next := sha256.Sum256([]byte("secret-b"))
	rotated, err := store.Rotate(ctx, "sid-1", sha256.Sum256([]byte("secret-a")), next, time.Hour)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if rotated.RefreshHash != next {
		t.Fatalf("rotation must install the next hash")
	}
	if rotated.UpdatedAt <= sess.UpdatedAt {
		t.Fatalf("rotation must advance UpdatedAt")
	}
	if rotated.UserID != "u1" || rotated.DeviceID != "d1" {
		t.Fatalf("rotation must preserve identity fields")
	}

	got, err := store.Get(ctx, "sid-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RefreshHash != next {
		t.Fatalf("stored blob must carry the next hash")
	}
}

func TestRotateMismatchDeletesSession(t *testing.T) {
	store, _, cleanup := newStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := store.Upsert(ctx, newSession("sid-1", "u1", "d1", "secret-a"), time.Hour); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	wrong := sha256.Sum256([]byte("stolen"))
	next := sha256.Sum256([]byte("next"))
	if _, err := store.Rotate(ctx, "sid-1", wrong, next, time.Hour); !errors.Is(err, ErrRefreshHashMismatch) {
		t.Fatalf("expected ErrRefreshHashMismatch, got %v", err)
	}

	if _, err := store.Get(ctx, "sid-1"); !errors.Is(err, redis.Nil) {
		t.Fatalf("mismatch must delete the session, got %v", err)
	}
	if _, err := store.GetByDevice(ctx, "u1", "d1"); !errors.Is(err, redis.Nil) {
		t.Fatalf("device index must be gone, got %v", err)
	}
	sessions, err := store.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("user set must be pruned, got %d sessions", len(sessions))
	}
}

func TestRotateMissingSession(t *testing.T) {
	store, _, cleanup := newStoreTest(t)
	defer cleanup()

	var hash [32]byte
	if _, err := store.Rotate(context.Background(), "sid-absent", hash, hash, time.Hour); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil, got %v", err)
	}
}

func TestRotateCorruptBlob(t *testing.T) {
	store, rdb, cleanup := newStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	if err := rdb.Set(ctx, "ak:s:sid-1", "short", time.Hour).Err(); err != nil {
		t.Fatalf("seed corrupt blob: %v", err)
	}

	var hash [32]byte
	if _, err := store.Rotate(ctx, "sid-1", hash, hash, time.Hour); !errors.Is(err, ErrSessionCorrupt) {
		t.Fatalf("expected ErrSessionCorrupt, got %v", err)
	}
}

func TestRotatePersistedBlobTreatedAsExpired(t *testing.T) {
	store, rdb, cleanup := newStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	data, err := Encode(newSession("sid-1", "u1", "d1", "secret-a"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// No TTL: the script refuses to rotate a blob that cannot expire.
	if err := rdb.Set(ctx, "ak:s:sid-1", data, 0).Err(); err != nil {
		t.Fatalf("seed blob: %v", err)
	}

	hash := sha256.Sum256([]byte("secret-a"))
	if _, err := store.Rotate(ctx, "sid-1", hash, hash, time.Hour); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil for unexpirable blob, got %v", err)
	}
	if err := rdb.Get(ctx, "ak:s:sid-1").Err(); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected blob removed, got %v", err)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	store, _, cleanup := newStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	sess, err := store.Upsert(ctx, newSession("sid-1", "u1", "d1", "a"), time.Hour)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := store.Delete(ctx, sess); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := store.Delete(ctx, sess); err != nil {
		t.Fatalf("second delete must be a no-op: %v", err)
	}

	if _, err := store.Get(ctx, "sid-1"); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected session gone, got %v", err)
	}
	if _, err := store.GetByDevice(ctx, "u1", "d1"); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected device index gone, got %v", err)
	}
}

func TestDeleteKeepsForeignDeviceIndex(t *testing.T) {
	store, rdb, cleanup := newStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := store.Upsert(ctx, newSession("sid-1", "u1", "d1", "a"), time.Hour); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// A stale Session value whose device slot has since been re-pointed.
	if err := rdb.Set(ctx, "ak:d:u1:d1", "sid-other", time.Hour).Err(); err != nil {
		t.Fatalf("repoint device index: %v", err)
	}

	if err := store.Delete(ctx, newSession("sid-1", "u1", "d1", "a")); err != nil {
		t.Fatalf("delete: %v", err)
	}

	sid, err := rdb.Get(ctx, "ak:d:u1:d1").Result()
	if err != nil || sid != "sid-other" {
		t.Fatalf("device index pointing elsewhere must survive, got %q %v", sid, err)
	}
}

func TestGetByDevicePrunesStaleIndex(t *testing.T) {
	store, rdb, cleanup := newStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := store.Upsert(ctx, newSession("sid-1", "u1", "d1", "a"), time.Hour); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := rdb.Del(ctx, "ak:s:sid-1").Err(); err != nil {
		t.Fatalf("drop session blob: %v", err)
	}

	if _, err := store.GetByDevice(ctx, "u1", "d1"); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil, got %v", err)
	}
	if err := rdb.Get(ctx, "ak:d:u1:d1").Err(); !errors.Is(err, redis.Nil) {
		t.Fatalf("stale device index must be pruned, got %v", err)
	}

	sessions, err := store.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("stale id must leave the user set, got %d", len(sessions))
	}
}

func TestListByUserOrdering(t *testing.T) {
	store, _, cleanup := newStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	base := time.Now().Unix()
	for i, dev := range []string{"d3", "d1", "d2"} {
		sess := newSession("sid-"+dev, "u1", dev, "s-"+dev)
		sess.CreatedAt = base + int64(2-i)
		sess.UpdatedAt = sess.CreatedAt
		if _, err := store.Upsert(ctx, sess, time.Hour); err != nil {
			t.Fatalf("upsert %s: %v", dev, err)
		}
	}

	sessions, err := store.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}
	for i := 1; i < len(sessions); i++ {
		if sessions[i-1].CreatedAt > sessions[i].CreatedAt {
			t.Fatalf("sessions out of order: %v", sessions)
		}
	}
}

func TestListByUserEmpty(t *testing.T) {
	store, _, cleanup := newStoreTest(t)
	defer cleanup()

	sessions, err := store.ListByUser(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("expected empty list, got %d", len(sessions))
	}
}
