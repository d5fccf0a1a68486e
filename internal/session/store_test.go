package session

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

// newTestStore connects to a local Redis instance. Tests that call this helper
// require a running Redis on localhost:6379.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore("localhost:6379", "test-server")
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	connID := "test_" + uuid.New().String()

	if err := store.Create(ctx, connID, "alice"); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	t.Cleanup(func() { store.Delete(ctx, connID) })

	sess, err := store.Get(ctx, connID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if sess == nil {
		t.Fatal("expected session, got nil")
	}
	if sess.UserID != "alice" {
		t.Errorf("expected user_id %q, got %q", "alice", sess.UserID)
	}
	if sess.Server != "test-server" {
		t.Errorf("expected server %q, got %q", "test-server", sess.Server)
	}
	if sess.ConnectedAt == 0 {
		t.Error("connected_at should be set")
	}

	// The record carries a TTL so crashed servers age out.
	ttl, err := store.Client().TTL(ctx, SessionPrefix+connID).Result()
	if err != nil {
		t.Fatalf("TTL() error: %v", err)
	}
	if ttl <= 0 || ttl > SessionTTL {
		t.Errorf("expected TTL in (0, %v], got %v", SessionTTL, ttl)
	}
}

func TestGet_Missing(t *testing.T) {
	store := newTestStore(t)

	sess, err := store.Get(context.Background(), "test_"+uuid.New().String())
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if sess != nil {
		t.Errorf("expected nil for unknown connection, got %+v", sess)
	}
}

func TestTouch_UpdatesLastActive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	connID := "test_" + uuid.New().String()

	if err := store.Create(ctx, connID, "alice"); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	t.Cleanup(func() { store.Delete(ctx, connID) })

	if err := store.Touch(ctx, connID); err != nil {
		t.Fatalf("Touch() error: %v", err)
	}
	sess, err := store.Get(ctx, connID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if sess.LastActive < sess.ConnectedAt {
		t.Errorf("last_active (%d) should not precede connected_at (%d)", sess.LastActive, sess.ConnectedAt)
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	connID := "test_" + uuid.New().String()

	if err := store.Create(ctx, connID, "alice"); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := store.Delete(ctx, connID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	sess, err := store.Get(ctx, connID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if sess != nil {
		t.Errorf("expected nil after delete, got %+v", sess)
	}
}
