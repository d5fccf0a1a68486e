package chat

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/amora/chat-backend/internal/db"
)

func TestParticipantsKey_OrderIndependent(t *testing.T) {
	k1 := participantsKey([]string{"alice", "bob"})
	k2 := participantsKey([]string{"bob", "alice"})
	if k1 != k2 {
		t.Errorf("keys should be identical regardless of order: %s, %s", k1, k2)
	}
	if k1 != "alice,bob" {
		t.Errorf("expected canonical key %q, got %q", "alice,bob", k1)
	}
}

func TestParticipantsKey_DifferentSets(t *testing.T) {
	k1 := participantsKey([]string{"alice", "bob"})
	k2 := participantsKey([]string{"alice", "carol"})
	if k1 == k2 {
		t.Error("different participant sets should produce different keys")
	}
}

func TestParticipantsKey_DoesNotMutateInput(t *testing.T) {
	in := []string{"bob", "alice"}
	participantsKey(in)
	if in[0] != "bob" || in[1] != "alice" {
		t.Errorf("input slice was mutated: %v", in)
	}
}

// newTestStore connects to a local PostgreSQL instance and applies migrations.
// Tests that call this helper require a running database; set TEST_DATABASE_URL
// to override the default DSN.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	config := db.DefaultConfig()
	config.MigrationsPath = "../../migrations"
	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		config.DSN = dsn
	}

	pool, err := db.Open(config)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return NewStore(pool)
}

// testUsers returns fresh participant IDs so runs never collide on the
// direct-room uniqueness constraint.
func testUsers(n int) []string {
	users := make([]string, n)
	for i := range users {
		users[i] = "test_" + uuid.New().String()
	}
	return users
}

func TestCreateRoom_DirectDedup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	users := testUsers(2)

	first, created, err := store.CreateRoom(ctx, users, KindDirect, "dating")
	if err != nil {
		t.Fatalf("CreateRoom() error: %v", err)
	}
	if !created {
		t.Fatal("first insert should report created=true")
	}

	// An identical request (participants reversed) must resolve to the same row.
	reversed := []string{users[1], users[0]}
	second, created, err := store.CreateRoom(ctx, reversed, KindDirect, "dating")
	if err != nil {
		t.Fatalf("duplicate CreateRoom() error: %v", err)
	}
	if created {
		t.Error("duplicate insert should report created=false")
	}
	if second.ID != first.ID {
		t.Errorf("expected existing room %s, got %s", first.ID, second.ID)
	}

	// A different category is a different room.
	other, created, err := store.CreateRoom(ctx, users, KindDirect, "friends")
	if err != nil {
		t.Fatalf("CreateRoom() with other category error: %v", err)
	}
	if !created || other.ID == first.ID {
		t.Error("different category should create a separate room")
	}
}

func TestFindDirectRoom_Missing(t *testing.T) {
	store := newTestStore(t)

	room, err := store.FindDirectRoom(context.Background(), testUsers(2), "dating")
	if err != nil {
		t.Fatalf("FindDirectRoom() error: %v", err)
	}
	if room != nil {
		t.Errorf("expected nil for unknown participant set, got %+v", room)
	}
}

func TestGetRoom_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRoom(context.Background(), uuid.New().String())
	if err != ErrRoomNotFound {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestMessageLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	users := testUsers(2)

	room, _, err := store.CreateRoom(ctx, users, KindDirect, "")
	if err != nil {
		t.Fatalf("CreateRoom() error: %v", err)
	}

	msg, err := store.CreateMessage(ctx, room.ID, users[0], "hello")
	if err != nil {
		t.Fatalf("CreateMessage() error: %v", err)
	}
	if msg.Read {
		t.Error("new messages must start unread")
	}
	if err := store.UpdateRoomLastMessage(ctx, room.ID, msg); err != nil {
		t.Fatalf("UpdateRoomLastMessage() error: %v", err)
	}

	got, err := store.GetRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("GetRoom() error: %v", err)
	}
	if got.LastMessageID != msg.ID {
		t.Errorf("expected last_message_id %s, got %s", msg.ID, got.LastMessageID)
	}

	// The recipient has one unread message; the sender has none.
	count, err := store.UnreadCount(ctx, room.ID, users[1])
	if err != nil {
		t.Fatalf("UnreadCount() error: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 unread for recipient, got %d", count)
	}
	count, _ = store.UnreadCount(ctx, room.ID, users[0])
	if count != 0 {
		t.Errorf("expected 0 unread for sender, got %d", count)
	}
}

func TestMarkRead_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	users := testUsers(2)

	room, _, err := store.CreateRoom(ctx, users, KindDirect, "")
	if err != nil {
		t.Fatalf("CreateRoom() error: %v", err)
	}
	if _, err := store.CreateMessage(ctx, room.ID, users[0], "one"); err != nil {
		t.Fatalf("CreateMessage() error: %v", err)
	}
	if _, err := store.CreateMessage(ctx, room.ID, users[0], "two"); err != nil {
		t.Fatalf("CreateMessage() error: %v", err)
	}

	// The recipient marks everything read: two rows flip.
	n, err := store.MarkRead(ctx, room.ID, users[1])
	if err != nil {
		t.Fatalf("MarkRead() error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows updated, got %d", n)
	}

	// A second pass with nothing new updates nothing.
	n, err = store.MarkRead(ctx, room.ID, users[1])
	if err != nil {
		t.Fatalf("second MarkRead() error: %v", err)
	}
	if n != 0 {
		t.Errorf("repeat mark-as-read should update 0 rows, got %d", n)
	}
}

func TestFindRoomsForUser_OrderedByActivity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	users := testUsers(3)

	first, _, err := store.CreateRoom(ctx, []string{users[0], users[1]}, KindDirect, "")
	if err != nil {
		t.Fatalf("CreateRoom() error: %v", err)
	}
	second, _, err := store.CreateRoom(ctx, []string{users[0], users[2]}, KindDirect, "")
	if err != nil {
		t.Fatalf("CreateRoom() error: %v", err)
	}

	// Touch the first room so it becomes the most recently active.
	msg, err := store.CreateMessage(ctx, first.ID, users[0], "bump")
	if err != nil {
		t.Fatalf("CreateMessage() error: %v", err)
	}
	if err := store.UpdateRoomLastMessage(ctx, first.ID, msg); err != nil {
		t.Fatalf("UpdateRoomLastMessage() error: %v", err)
	}

	rooms, err := store.FindRoomsForUser(ctx, users[0])
	if err != nil {
		t.Fatalf("FindRoomsForUser() error: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(rooms))
	}
	if rooms[0].ID != first.ID || rooms[1].ID != second.ID {
		t.Errorf("expected order [%s %s], got [%s %s]", first.ID, second.ID, rooms[0].ID, rooms[1].ID)
	}
}
