// Package relay implements the message path: persist, update the room's
// denormalized summary state, fan out to present connections, and trigger the
// push fallback for absent participants.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/amora/chat-backend/internal/chat"
	"github.com/amora/chat-backend/internal/dispatch"
	"github.com/amora/chat-backend/internal/metrics"
	"github.com/amora/chat-backend/internal/moderation"
	"github.com/amora/chat-backend/internal/profile"
	"github.com/amora/chat-backend/internal/protocol"
	"github.com/amora/chat-backend/internal/push"
)

// Validation errors reported back to the sender.
var (
	ErrNotParticipant = errors.New("relay: sender is not a room participant")
	ErrBlockedContent = errors.New("relay: message blocked by moderation")
)

// Store is the slice of the persistence store the relay needs.
type Store interface {
	GetRoom(ctx context.Context, roomID string) (*chat.Room, error)
	CreateMessage(ctx context.Context, roomID, senderID, content string) (*chat.Message, error)
	UpdateRoomLastMessage(ctx context.Context, roomID string, msg *chat.Message) error
}

// Profiles resolves sender display summaries for message enrichment.
type Profiles interface {
	Summary(ctx context.Context, userID string) (profile.Summary, error)
}

// Presence is the slice of the connection registry the relay needs.
type Presence interface {
	ConnectionsInRoom(roomID string) []string
	UsersInRoom(roomID string) map[string]struct{}
}

// Deliverer makes the live-vs-push decision for absent participants.
type Deliverer interface {
	DeliverOrNotify(ctx context.Context, userID string, event []byte, note push.Notification) dispatch.Outcome
}

// ConnWriter writes a frame to a single connection.
type ConnWriter interface {
	SendMessage(connID string, data []byte) error
}

// Relay accepts inbound message events and drives them through persistence,
// fan-out, and fallback.
type Relay struct {
	store      Store
	profiles   Profiles
	presence   Presence
	dispatcher Deliverer
	writer     ConnWriter
	filter     *moderation.Filter
}

// New creates a message relay.
func New(store Store, profiles Profiles, presence Presence, dispatcher Deliverer, writer ConnWriter, filter *moderation.Filter) *Relay {
	return &Relay{
		store:      store,
		profiles:   profiles,
		presence:   presence,
		dispatcher: dispatcher,
		writer:     writer,
		filter:     filter,
	}
}

// Send relays a message from an authenticated connection into a room. The
// sender identity comes from the connection, never the payload. A
// persistence failure aborts the whole operation before any broadcast;
// fallback notification failures are logged and swallowed since durability
// and live fan-out have already succeeded.
func (r *Relay) Send(ctx context.Context, connID, userID, roomID, content string) error {
	start := time.Now()

	if err := chat.ValidateContent(content); err != nil {
		metrics.MessagesTotal.WithLabelValues("rejected").Inc()
		return err
	}
	if r.filter != nil {
		if res := r.filter.Check(content); res.Blocked {
			log.Printf("[relay] blocked message user=%s room=%s reason=%s term=%q", userID, roomID, res.Reason, res.Term)
			metrics.MessagesTotal.WithLabelValues("rejected").Inc()
			return ErrBlockedContent
		}
	}

	room, err := r.store.GetRoom(ctx, roomID)
	if err != nil {
		metrics.MessagesTotal.WithLabelValues("failed").Inc()
		return err
	}
	if !room.HasParticipant(userID) {
		metrics.MessagesTotal.WithLabelValues("rejected").Inc()
		return ErrNotParticipant
	}

	msg, err := r.store.CreateMessage(ctx, roomID, userID, content)
	if err != nil {
		metrics.MessagesTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("relay: persist message: %w", err)
	}
	if err := r.store.UpdateRoomLastMessage(ctx, roomID, msg); err != nil {
		metrics.MessagesTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("relay: update room summary: %w", err)
	}

	sender, err := r.profiles.Summary(ctx, userID)
	if err != nil {
		// Enrichment is cosmetic. The message is durable; deliver it with a
		// bare summary rather than failing the relay.
		log.Printf("[relay] sender summary user=%s: %v", userID, err)
		sender = profile.Summary{UserID: userID}
	}

	event, err := protocol.NewServerMessage(protocol.TypeNewMessage, protocol.NewMessageMsg{
		MessageID: msg.ID,
		RoomID:    msg.RoomID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		Timestamp: msg.Timestamp.UnixMilli(),
		Read:      msg.Read,
		Sender: protocol.UserSummary{
			Name:   sender.Name,
			Avatar: sender.Avatar,
		},
	})
	if err != nil {
		return fmt.Errorf("relay: build new_message event: %w", err)
	}

	// Snapshot presence once, then broadcast sequentially so per-room order
	// matches persistence order. Senders receive their own echo.
	conns := r.presence.ConnectionsInRoom(roomID)
	present := r.presence.UsersInRoom(roomID)
	for _, cid := range conns {
		if err := r.writer.SendMessage(cid, event); err != nil {
			log.Printf("[relay] broadcast conn=%s room=%s: %v", cid, roomID, err)
		}
	}

	// Absent participants get the push fallback with the raw content as body
	// and deep-link identifiers in the data payload.
	title := sender.Name
	if title == "" {
		title = "New message"
	}
	note := push.Notification{
		Title: title,
		Body:  content,
		Data: map[string]string{
			"room_id":    roomID,
			"sender_id":  userID,
			"message_id": msg.ID,
		},
	}
	for _, p := range room.Participants {
		if _, ok := present[p]; ok {
			continue
		}
		r.dispatcher.DeliverOrNotify(ctx, p, event, note)
	}

	metrics.MessagesTotal.WithLabelValues("relayed").Inc()
	metrics.RelayLatency.Observe(time.Since(start).Seconds())
	return nil
}
