// Package room validates and executes room-scoped operations: create-or-reuse
// of direct rooms, membership changes, mark-as-read, and the auto-join that
// makes a fresh connection immediately receptive to fan-out.
package room

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/amora/chat-backend/internal/chat"
	"github.com/amora/chat-backend/internal/dispatch"
	"github.com/amora/chat-backend/internal/metrics"
	"github.com/amora/chat-backend/internal/protocol"
	"github.com/amora/chat-backend/internal/push"
)

// Validation errors reported back to the originating connection.
var (
	ErrInvalidKind         = errors.New("room: kind must be direct or group")
	ErrTooFewParticipants  = errors.New("room: at least two participants required")
	ErrNotParticipant      = errors.New("room: user is not a participant")
	ErrInitiatorNotInRoom  = errors.New("room: initiator must be a participant")
)

// Store is the slice of the persistence store the manager needs.
type Store interface {
	CreateRoom(ctx context.Context, participants []string, kind, category string) (*chat.Room, bool, error)
	FindDirectRoom(ctx context.Context, participants []string, category string) (*chat.Room, error)
	FindRoomsForUser(ctx context.Context, userID string) ([]*chat.Room, error)
	GetRoom(ctx context.Context, roomID string) (*chat.Room, error)
	MarkRead(ctx context.Context, roomID, excludingSender string) (int64, error)
	RoomParticipantSummaries(ctx context.Context, roomID string) ([]chat.ParticipantSummary, error)
}

// Presence is the slice of the connection registry the manager needs.
type Presence interface {
	JoinRoom(connID, roomID string)
	LeaveRoom(connID, roomID string)
	ConnectionsInRoom(roomID string) []string
}

// Deliverer makes the live-vs-push decision for a single recipient.
type Deliverer interface {
	DeliverOrNotify(ctx context.Context, userID string, event []byte, note push.Notification) dispatch.Outcome
}

// ConnWriter writes a frame to a single connection.
type ConnWriter interface {
	SendMessage(connID string, data []byte) error
}

// Manager coordinates registry presence with persisted room state.
type Manager struct {
	store      Store
	presence   Presence
	dispatcher Deliverer
	writer     ConnWriter
}

// NewManager creates a room session manager.
func NewManager(store Store, presence Presence, dispatcher Deliverer, writer ConnWriter) *Manager {
	return &Manager{store: store, presence: presence, dispatcher: dispatcher, writer: writer}
}

// AutoJoinOnConnect joins a freshly authenticated connection to every room
// its user participates in, so fan-out reaches it without per-room join
// handshakes.
func (m *Manager) AutoJoinOnConnect(ctx context.Context, connID, userID string) error {
	rooms, err := m.store.FindRoomsForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("room: auto-join for user %s: %w", userID, err)
	}
	for _, r := range rooms {
		m.presence.JoinRoom(connID, r.ID)
	}
	return nil
}

// JoinRoom joins a connection to a room after checking that its user is a
// participant. Joining twice is a no-op.
func (m *Manager) JoinRoom(ctx context.Context, connID, userID, roomID string) error {
	r, err := m.store.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if !contains(r.Participants, userID) {
		return ErrNotParticipant
	}
	m.presence.JoinRoom(connID, roomID)
	return nil
}

// LeaveRoom removes a connection from a room. Leaving a room the connection
// is not in is a no-op.
func (m *Manager) LeaveRoom(connID, roomID string) {
	m.presence.LeaveRoom(connID, roomID)
}

// CreateOrReuseDirectRoom creates a room, or returns the existing direct room
// for an identical (participant set, category) pair. On reuse the event goes
// to the initiator only; on create every other participant is reached through
// the presence-aware dispatcher and the initiator's connection is joined to
// the new room.
func (m *Manager) CreateOrReuseDirectRoom(ctx context.Context, connID, userID string, participants []string, kind, category string) error {
	if kind != chat.KindDirect && kind != chat.KindGroup {
		return ErrInvalidKind
	}
	if len(participants) < 2 {
		return ErrTooFewParticipants
	}
	if !contains(participants, userID) {
		return ErrInitiatorNotInRoom
	}

	if kind == chat.KindDirect {
		existing, err := m.store.FindDirectRoom(ctx, participants, category)
		if err != nil {
			return fmt.Errorf("room: lookup direct room: %w", err)
		}
		if existing != nil {
			return m.reuseRoom(ctx, connID, userID, existing)
		}
	}

	r, created, err := m.store.CreateRoom(ctx, participants, kind, category)
	if err != nil {
		return fmt.Errorf("room: create: %w", err)
	}
	if !created {
		// A concurrent identical request won the insert. Behave exactly like
		// the lookup path: no duplicate notifications.
		return m.reuseRoom(ctx, connID, userID, r)
	}

	summaries, err := m.store.RoomParticipantSummaries(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("room: participant summaries: %w", err)
	}

	m.presence.JoinRoom(connID, r.ID)

	initiatorName := "Someone"
	for _, s := range summaries {
		if s.UserID == userID && s.Name != "" {
			initiatorName = s.Name
			break
		}
	}

	for _, p := range r.Participants {
		if p == userID {
			continue
		}
		event, err := roomCreatedEvent(r, chat.CounterpartFor(summaries, p))
		if err != nil {
			log.Printf("[room] build new_room event for user=%s: %v", p, err)
			continue
		}
		note := push.Notification{
			Title: "New conversation",
			Body:  fmt.Sprintf("%s started a conversation with you", initiatorName),
			Data: map[string]string{
				"room_id":      r.ID,
				"initiator_id": userID,
			},
		}
		m.dispatcher.DeliverOrNotify(ctx, p, event, note)
	}

	event, err := roomCreatedEvent(r, chat.CounterpartFor(summaries, userID))
	if err != nil {
		return fmt.Errorf("room: build new_room event: %w", err)
	}
	if err := m.writer.SendMessage(connID, event); err != nil {
		log.Printf("[room] send new_room to initiator conn=%s: %v", connID, err)
	}

	metrics.RoomsCreatedTotal.WithLabelValues("created").Inc()
	return nil
}

// reuseRoom joins the initiator to the existing room and echoes it back. No
// other participant is notified: the room already existed for them.
func (m *Manager) reuseRoom(ctx context.Context, connID, userID string, r *chat.Room) error {
	summaries, err := m.store.RoomParticipantSummaries(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("room: participant summaries: %w", err)
	}

	m.presence.JoinRoom(connID, r.ID)

	event, err := roomCreatedEvent(r, chat.CounterpartFor(summaries, userID))
	if err != nil {
		return fmt.Errorf("room: build new_room event: %w", err)
	}
	if err := m.writer.SendMessage(connID, event); err != nil {
		log.Printf("[room] send new_room to initiator conn=%s: %v", connID, err)
	}

	metrics.RoomsCreatedTotal.WithLabelValues("reused").Inc()
	return nil
}

// MarkRoomRead bulk-marks every message in the room not sent by the user as
// read, then broadcasts a read receipt to all connected members, the reader's
// own connections included. Calling it again with no new messages updates
// nothing and emits nothing.
func (m *Manager) MarkRoomRead(ctx context.Context, userID, roomID string) error {
	n, err := m.store.MarkRead(ctx, roomID, userID)
	if err != nil {
		return fmt.Errorf("room: mark read: %w", err)
	}
	if n == 0 {
		return nil
	}

	event, err := protocol.NewServerMessage(protocol.TypeMessageRead, protocol.MessageReadMsg{
		RoomID:   roomID,
		ReaderID: userID,
	})
	if err != nil {
		return fmt.Errorf("room: build message_read event: %w", err)
	}

	for _, cid := range m.presence.ConnectionsInRoom(roomID) {
		if err := m.writer.SendMessage(cid, event); err != nil {
			log.Printf("[room] send message_read conn=%s: %v", cid, err)
		}
	}
	return nil
}

// ForwardTyping relays a transient typing indicator to every room connection
// except the one that produced it. Nothing is persisted.
func (m *Manager) ForwardTyping(connID, userID, roomID string) {
	event, err := protocol.NewServerMessage(protocol.TypeUserTyping, protocol.UserTypingMsg{
		RoomID: roomID,
		UserID: userID,
	})
	if err != nil {
		log.Printf("[room] build user_typing event: %v", err)
		return
	}

	for _, cid := range m.presence.ConnectionsInRoom(roomID) {
		if cid == connID {
			continue
		}
		if err := m.writer.SendMessage(cid, event); err != nil {
			log.Printf("[room] send user_typing conn=%s: %v", cid, err)
		}
	}
}

func roomCreatedEvent(r *chat.Room, other chat.ParticipantSummary) ([]byte, error) {
	return protocol.NewServerMessage(protocol.TypeRoomCreated, protocol.RoomCreatedMsg{
		RoomID:       r.ID,
		Participants: r.Participants,
		Kind:         r.Kind,
		Category:     r.Category,
		LastActivity: r.LastActivity.UnixMilli(),
		Other: protocol.UserSummary{
			UserID: other.UserID,
			Name:   other.Name,
			Avatar: other.Avatar,
		},
	})
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
