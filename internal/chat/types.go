// Package chat holds the durable conversation model — rooms and messages —
// and the PostgreSQL store that persists them. Rooms and messages are created
// once and never deleted; the only mutable message field is the read flag.
package chat

import "time"

// Room kinds.
const (
	KindDirect = "direct"
	KindGroup  = "group"
)

// Room is a durable conversation between two or more participants. For direct
// rooms at most one room exists per (participant set, category) pair; the
// store enforces this with a uniqueness constraint on the sorted participant
// set.
type Room struct {
	ID            string
	Participants  []string // user IDs, at least 2
	Kind          string   // "direct" or "group"
	Category      string
	LastMessageID string // denormalized back-reference, "" until first message
	LastActivity  time.Time
}

// Message is a single chat message. Immutable once created except for Read,
// which is flipped in bulk by mark-as-read.
type Message struct {
	ID        string
	RoomID    string
	SenderID  string
	Content   string
	Timestamp time.Time
	Read      bool
}

// HasParticipant reports whether the user belongs to the room.
func (r *Room) HasParticipant(userID string) bool {
	for _, p := range r.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// ParticipantSummary is the display summary of one room participant, joined
// from the profiles table.
type ParticipantSummary struct {
	UserID string
	Name   string
	Avatar string
}

// CounterpartFor returns the summary of the participant a recipient should see
// as "the other side" of the room: the first participant that is not the
// recipient. Returns a zero summary if none qualifies.
func CounterpartFor(summaries []ParticipantSummary, recipientID string) ParticipantSummary {
	for _, s := range summaries {
		if s.UserID != recipientID {
			return s
		}
	}
	return ParticipantSummary{}
}
