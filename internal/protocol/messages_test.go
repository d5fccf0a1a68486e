package protocol

import (
	"encoding/json"
	"testing"
)

// ---------------------------------------------------------------------------
// Test: Parsing a valid send_message message
// ---------------------------------------------------------------------------

func TestParseClientMessage_SendMessage(t *testing.T) {
	input := []byte(`{"type":"send_message","room_id":"abc-123","content":"Hello!"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeSendMessage {
		t.Fatalf("expected type %q, got %q", TypeSendMessage, msgType)
	}

	sm, ok := msg.(SendMessageMsg)
	if !ok {
		t.Fatalf("expected SendMessageMsg, got %T", msg)
	}
	if sm.RoomID != "abc-123" {
		t.Errorf("expected room_id %q, got %q", "abc-123", sm.RoomID)
	}
	if sm.Content != "Hello!" {
		t.Errorf("expected content %q, got %q", "Hello!", sm.Content)
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing a valid new_room message
// ---------------------------------------------------------------------------

func TestParseClientMessage_NewRoom(t *testing.T) {
	input := []byte(`{"type":"new_room","participants":["alice","bob"],"kind":"direct","category":"dating"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeNewRoom {
		t.Fatalf("expected type %q, got %q", TypeNewRoom, msgType)
	}

	nr, ok := msg.(NewRoomMsg)
	if !ok {
		t.Fatalf("expected NewRoomMsg, got %T", msg)
	}
	if len(nr.Participants) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(nr.Participants))
	}
	if nr.Kind != "direct" {
		t.Errorf("expected kind %q, got %q", "direct", nr.Kind)
	}
	if nr.Category != "dating" {
		t.Errorf("expected category %q, got %q", "dating", nr.Category)
	}
}

// ---------------------------------------------------------------------------
// Test: Creating a new_message server message
// ---------------------------------------------------------------------------

func TestNewServerMessage_NewMessage(t *testing.T) {
	payload := NewMessageMsg{
		MessageID: "msg-1",
		RoomID:    "room-1",
		SenderID:  "alice",
		Content:   "hey",
		Timestamp: 1700000000000,
		Sender:    UserSummary{Name: "Alice", Avatar: "a.png"},
	}

	data, err := NewServerMessage(TypeNewMessage, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["type"] != TypeNewMessage {
		t.Errorf("expected type %q, got %v", TypeNewMessage, result["type"])
	}
	if result["message_id"] != "msg-1" {
		t.Errorf("expected message_id %q, got %v", "msg-1", result["message_id"])
	}
	if result["sender_id"] != "alice" {
		t.Errorf("expected sender_id %q, got %v", "alice", result["sender_id"])
	}

	sender, ok := result["sender"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected sender to be an object, got %T", result["sender"])
	}
	if sender["name"] != "Alice" {
		t.Errorf("expected sender name %q, got %v", "Alice", sender["name"])
	}

	ts, ok := result["timestamp"].(float64)
	if !ok {
		t.Fatalf("expected timestamp to be a number, got %T", result["timestamp"])
	}
	if int64(ts) != 1700000000000 {
		t.Errorf("expected timestamp 1700000000000, got %v", ts)
	}
}

// ---------------------------------------------------------------------------
// Test: The new_room event is recipient-relative through the "other" field
// ---------------------------------------------------------------------------

func TestNewServerMessage_RoomCreated(t *testing.T) {
	payload := RoomCreatedMsg{
		RoomID:       "room-1",
		Participants: []string{"alice", "bob"},
		Kind:         "direct",
		LastActivity: 1700000000000,
		Other:        UserSummary{UserID: "bob", Name: "Bob"},
	}

	data, err := NewServerMessage(TypeRoomCreated, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}
	if result["type"] != TypeRoomCreated {
		t.Errorf("expected type %q, got %v", TypeRoomCreated, result["type"])
	}

	other, ok := result["other"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected other to be an object, got %T", result["other"])
	}
	if other["user_id"] != "bob" {
		t.Errorf("expected other user_id %q, got %v", "bob", other["user_id"])
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing an unknown message type returns an error
// ---------------------------------------------------------------------------

func TestParseClientMessage_UnknownType(t *testing.T) {
	input := []byte(`{"type":"unknown_type","data":"something"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err == nil {
		t.Fatal("expected an error for unknown message type, got nil")
	}
	if msg != nil {
		t.Errorf("expected nil message for unknown type, got %v", msg)
	}
	if msgType != "unknown_type" {
		t.Errorf("expected returned type %q, got %q", "unknown_type", msgType)
	}
}

// ---------------------------------------------------------------------------
// Test: Server-only types are rejected on the inbound path
// ---------------------------------------------------------------------------

func TestParseClientMessage_ServerOnlyType(t *testing.T) {
	input := []byte(`{"type":"new_message","room_id":"r1","content":"spoofed"}`)

	if _, _, err := ParseClientMessage(input); err == nil {
		t.Fatal("expected an error for a server-only message type, got nil")
	}
}

// ---------------------------------------------------------------------------
// Test: Envelope UnmarshalJSON edge cases
// ---------------------------------------------------------------------------

func TestEnvelope_MissingType(t *testing.T) {
	input := []byte(`{"data":"no type field"}`)
	var env Envelope
	if err := json.Unmarshal(input, &env); err == nil {
		t.Fatal("expected error for missing type field, got nil")
	}
}

func TestEnvelope_InvalidJSON(t *testing.T) {
	input := []byte(`{invalid json}`)
	var env Envelope
	if err := json.Unmarshal(input, &env); err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing all client message types succeeds
// ---------------------------------------------------------------------------

func TestParseClientMessage_AllTypes(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		wantType string
	}{
		{"join_room", `{"type":"join_room","room_id":"r1"}`, TypeJoinRoom},
		{"leave_room", `{"type":"leave_room","room_id":"r1"}`, TypeLeaveRoom},
		{"send_message", `{"type":"send_message","room_id":"r1","content":"hi"}`, TypeSendMessage},
		{"new_room", `{"type":"new_room","participants":["a","b"],"kind":"direct"}`, TypeNewRoom},
		{"mark_as_read", `{"type":"mark_as_read","room_id":"r1"}`, TypeMarkAsRead},
		{"typing", `{"type":"typing","room_id":"r1"}`, TypeTyping},
		{"ping", `{"type":"ping"}`, TypePing},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msgType, msg, err := ParseClientMessage([]byte(tc.input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if msgType != tc.wantType {
				t.Errorf("expected type %q, got %q", tc.wantType, msgType)
			}
			if msg == nil {
				t.Error("expected non-nil message")
			}
		})
	}
}
