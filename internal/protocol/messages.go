// Package protocol defines the WebSocket message types and structures used for
// communication between the client and server. All messages are serialized as
// JSON and follow a consistent envelope format with a type discriminator.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Message type constants
// ---------------------------------------------------------------------------

// Client -> Server message types.
const (
	TypeJoinRoom    = "join_room"
	TypeLeaveRoom   = "leave_room"
	TypeSendMessage = "send_message"
	TypeNewRoom     = "new_room"
	TypeMarkAsRead  = "mark_as_read"
	TypeTyping      = "typing"
	TypePing        = "ping"
)

// Server -> Client message types.
const (
	TypeConnected   = "connected"
	TypeNewMessage  = "new_message"
	TypeRoomCreated = "new_room"
	TypeMessageRead = "message_read"
	TypeUserTyping  = "user_typing"
	TypeError       = "error"
	TypePong        = "pong"
)

// ---------------------------------------------------------------------------
// Envelope — used for initial JSON parsing to extract the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. It captures the
// full raw bytes and extracts only the "type" field so that the rest of the
// payload can be decoded later into the appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	// Capture the full raw message for deferred parsing.
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	// Extract only the type field.
	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Client -> Server message structs
// ---------------------------------------------------------------------------

// JoinRoomMsg is sent by the client to join one of its conversation rooms.
// Joining a room the connection is already in is a no-op.
type JoinRoomMsg struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// LeaveRoomMsg is sent by the client to leave a conversation room. Leaving a
// room the connection is not in is a no-op.
type LeaveRoomMsg struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// SendMessageMsg is a chat message sent by the client into a room. The sender
// identity and timestamp are assigned server-side.
type SendMessageMsg struct {
	Type    string `json:"type"`
	RoomID  string `json:"room_id"`
	Content string `json:"content"`
}

// NewRoomMsg is sent by the client to create (or reuse) a conversation room
// with the given participants.
type NewRoomMsg struct {
	Type         string   `json:"type"`
	Participants []string `json:"participants"`
	Kind         string   `json:"kind"` // "direct" or "group"
	Category     string   `json:"category,omitempty"`
}

// MarkAsReadMsg is sent by the client to mark all messages in a room that were
// not sent by it as read.
type MarkAsReadMsg struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// TypingMsg indicates the client is currently typing in a room. Not persisted.
type TypingMsg struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// PingMsg is a client-initiated keepalive ping.
type PingMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client message structs
// ---------------------------------------------------------------------------

// ConnectedMsg is sent by the server once the handshake has been authenticated
// and the connection registered.
type ConnectedMsg struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connection_id"`
	UserID       string `json:"user_id"`
}

// UserSummary is the display summary of a message sender or room counterpart,
// joined from the profile store.
type UserSummary struct {
	UserID string `json:"user_id,omitempty"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// NewMessageMsg is a chat message relayed by the server to every connection
// present in the room. Clients deduplicate their own echo by message ID.
type NewMessageMsg struct {
	Type      string      `json:"type"`
	MessageID string      `json:"message_id"`
	RoomID    string      `json:"room_id"`
	SenderID  string      `json:"sender_id"`
	Content   string      `json:"content"`
	Timestamp int64       `json:"timestamp"` // unix milliseconds
	Read      bool        `json:"read"`
	Sender    UserSummary `json:"sender"`
}

// RoomCreatedMsg announces a new (or reused) room to a participant. Other is
// recipient-relative: it describes the counterpart of whoever receives the
// event, not of whoever created the room.
type RoomCreatedMsg struct {
	Type         string      `json:"type"`
	RoomID       string      `json:"room_id"`
	Participants []string    `json:"participants"`
	Kind         string      `json:"kind"`
	Category     string      `json:"category,omitempty"`
	LastActivity int64       `json:"last_activity"`
	Other        UserSummary `json:"other"`
}

// MessageReadMsg is broadcast to all connected room members after a bulk
// mark-as-read, including the reader's own connections.
type MessageReadMsg struct {
	Type     string `json:"type"`
	RoomID   string `json:"room_id"`
	ReaderID string `json:"reader_id"`
}

// UserTypingMsg relays a typing indicator to the other room members.
type UserTypingMsg struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

// ErrorMsg is sent by the server to communicate an error condition.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PongMsg is the server's response to a client ping.
type PongMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientMessage parses raw WebSocket bytes into a typed client message.
// It returns the message type string, the decoded struct, and any error
// encountered during parsing. An error is returned for unknown or
// server-only message types.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeJoinRoom:
		var m JoinRoomMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeLeaveRoom:
		var m LeaveRoomMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeSendMessage:
		var m SendMessageMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeNewRoom:
		var m NewRoomMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeMarkAsRead:
		var m MarkAsReadMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeTyping:
		var m TypingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage creates a JSON-encoded byte slice for a server message.
// The msgType is injected into the payload under the "type" key. The payload
// should be one of the server message structs; this function marshals it to
// JSON, injects the type field, and returns the final bytes.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	// Marshal the payload struct to a generic map so we can ensure the "type"
	// field is present and correct.
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}
