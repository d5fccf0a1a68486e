// Package dispatch decides, for each event addressed to a user, between live
// fan-out over open connections and the asynchronous push fallback. It is the
// single decision point used by both the room session manager and the message
// relay.
package dispatch

import (
	"context"
	"log"

	"github.com/amora/chat-backend/internal/metrics"
	"github.com/amora/chat-backend/internal/push"
)

// Presence answers reachability questions. Implemented by *registry.Registry.
type Presence interface {
	ConnectionsForUser(userID string) []string
}

// ConnWriter writes a frame to a single connection. Implemented by
// *ws.Server.
type ConnWriter interface {
	SendMessage(connID string, data []byte) error
}

// Outcome is the tagged result of a dispatch decision. Exactly one of the two
// paths is taken: Delivered lists the connections the live event was written
// to; when it is empty, FallbackAttempted records that the push path ran and
// FallbackSucceeded whether the sender accepted the notification.
type Outcome struct {
	Delivered         []string
	FallbackAttempted bool
	FallbackSucceeded bool
}

// Live reports whether the event was delivered over at least one open
// connection.
func (o Outcome) Live() bool {
	return len(o.Delivered) > 0
}

// Dispatcher routes events to users by presence. A user may disconnect
// between the reachability check and the write, or connect between the check
// and the notification: both races are accepted as bounded inconsistency and
// resolved on the next reconnect or push.
type Dispatcher struct {
	presence Presence
	writer   ConnWriter
	sender   push.Sender
}

// New creates a Dispatcher over the given presence source, connection writer,
// and push sender.
func New(presence Presence, writer ConnWriter, sender push.Sender) *Dispatcher {
	return &Dispatcher{presence: presence, writer: writer, sender: sender}
}

// DeliverOrNotify delivers the event live to every connection bound to the
// user, or falls back to a push notification when no connection is open. The
// fallback result is logged but never surfaced: push delivery is best-effort
// and must not fail the primary operation.
func (d *Dispatcher) DeliverOrNotify(ctx context.Context, userID string, event []byte, note push.Notification) Outcome {
	// Snapshot the connections before any suspending call.
	conns := d.presence.ConnectionsForUser(userID)

	if len(conns) > 0 {
		delivered := make([]string, 0, len(conns))
		for _, connID := range conns {
			if err := d.writer.SendMessage(connID, event); err != nil {
				// The connection closed between snapshot and write. The
				// transport cleans it up; nothing to retract here.
				log.Printf("[dispatch] live write user=%s conn=%s: %v", userID, connID, err)
				continue
			}
			delivered = append(delivered, connID)
		}
		if len(delivered) > 0 {
			metrics.DeliveriesTotal.WithLabelValues("live").Inc()
			return Outcome{Delivered: delivered}
		}
		// Every snapshot connection vanished mid-write; fall through to push.
	}

	ok := d.sender.Send(ctx, userID, note)
	if !ok {
		log.Printf("[dispatch] push fallback for user=%s failed", userID)
	}
	metrics.DeliveriesTotal.WithLabelValues("push").Inc()
	return Outcome{FallbackAttempted: true, FallbackSucceeded: ok}
}
