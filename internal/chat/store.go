package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrRoomNotFound is returned when a room ID does not exist.
var ErrRoomNotFound = errors.New("chat: room not found")

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations, used to detect concurrent direct-room creation.
const uniqueViolation = "23505"

// Store persists rooms and messages in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a chat store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// participantsKey returns the canonical identity of a participant set:
// sorted user IDs joined with commas. The rooms table carries a uniqueness
// constraint on (participants_key, category) for direct rooms, which closes
// the check-then-create race under concurrent identical requests.
func participantsKey(participants []string) string {
	sorted := make([]string, len(participants))
	copy(sorted, participants)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// CreateRoom inserts a new room. For direct rooms, a concurrent identical
// request may win the insert first; in that case the existing room is
// returned with created=false and no new row is written.
func (s *Store) CreateRoom(ctx context.Context, participants []string, kind, category string) (*Room, bool, error) {
	room := &Room{
		ID:           uuid.New().String(),
		Participants: participants,
		Kind:         kind,
		Category:     category,
		LastActivity: time.Now().UTC(),
	}

	const query = `
		INSERT INTO rooms (id, participants, participants_key, kind, category, last_activity)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.ExecContext(ctx, query,
		room.ID,
		pq.Array(room.Participants),
		participantsKey(participants),
		room.Kind,
		room.Category,
		room.LastActivity,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation && kind == KindDirect {
			existing, ferr := s.FindDirectRoom(ctx, participants, category)
			if ferr != nil {
				return nil, false, fmt.Errorf("chat: resolve duplicate room: %w", ferr)
			}
			if existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, fmt.Errorf("chat: insert room: %w", err)
	}
	return room, true, nil
}

// FindDirectRoom looks up the direct room for an exact participant set and
// category. Returns nil if no such room exists.
func (s *Store) FindDirectRoom(ctx context.Context, participants []string, category string) (*Room, error) {
	const query = `
		SELECT id, participants, kind, category, COALESCE(last_message_id::text, ''), last_activity
		FROM rooms
		WHERE kind = 'direct' AND participants_key = $1 AND category = $2`

	room, err := s.scanRoom(s.db.QueryRowContext(ctx, query, participantsKey(participants), category))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chat: find direct room: %w", err)
	}
	return room, nil
}

// FindRoomsForUser returns every room the user participates in, most recently
// active first. Used to auto-join a fresh connection to its rooms.
func (s *Store) FindRoomsForUser(ctx context.Context, userID string) ([]*Room, error) {
	const query = `
		SELECT id, participants, kind, category, COALESCE(last_message_id::text, ''), last_activity
		FROM rooms
		WHERE $1 = ANY(participants)
		ORDER BY last_activity DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("chat: find rooms for user: %w", err)
	}
	defer rows.Close()

	var rooms []*Room
	for rows.Next() {
		room, err := s.scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("chat: scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// GetRoom retrieves a room by ID. Returns ErrRoomNotFound if it does not exist.
func (s *Store) GetRoom(ctx context.Context, roomID string) (*Room, error) {
	const query = `
		SELECT id, participants, kind, category, COALESCE(last_message_id::text, ''), last_activity
		FROM rooms
		WHERE id = $1`

	room, err := s.scanRoom(s.db.QueryRowContext(ctx, query, roomID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("chat: get room: %w", err)
	}
	return room, nil
}

// UpdateRoomLastMessage writes the denormalized last-message reference and
// bumps the room's last-activity timestamp. Called synchronously after every
// message insert so the reference never lags the message log.
func (s *Store) UpdateRoomLastMessage(ctx context.Context, roomID string, msg *Message) error {
	const query = `
		UPDATE rooms SET last_message_id = $2, last_activity = $3 WHERE id = $1`

	_, err := s.db.ExecContext(ctx, query, roomID, msg.ID, msg.Timestamp)
	if err != nil {
		return fmt.Errorf("chat: update last message: %w", err)
	}
	return nil
}

// CreateMessage persists a new message with a server-assigned ID and
// timestamp. The sender identity comes from the authenticated connection,
// never from the client payload.
func (s *Store) CreateMessage(ctx context.Context, roomID, senderID, content string) (*Message, error) {
	msg := &Message{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		SenderID:  senderID,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}

	const query = `
		INSERT INTO messages (id, room_id, sender_id, content, created_at, read)
		VALUES ($1, $2, $3, $4, $5, false)`

	_, err := s.db.ExecContext(ctx, query, msg.ID, msg.RoomID, msg.SenderID, msg.Content, msg.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("chat: insert message: %w", err)
	}
	return msg, nil
}

// MarkRead flips the read flag on every unread message in the room that was
// not sent by excludingSender. Returns the number of messages updated, so
// callers can skip the read-receipt broadcast when nothing changed.
func (s *Store) MarkRead(ctx context.Context, roomID, excludingSender string) (int64, error) {
	const query = `
		UPDATE messages SET read = true
		WHERE room_id = $1 AND sender_id <> $2 AND read = false`

	res, err := s.db.ExecContext(ctx, query, roomID, excludingSender)
	if err != nil {
		return 0, fmt.Errorf("chat: mark read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("chat: mark read rows: %w", err)
	}
	return n, nil
}

// UnreadCount returns the number of unread messages in the room addressed to
// the given user (i.e. sent by someone else).
func (s *Store) UnreadCount(ctx context.Context, roomID, userID string) (int, error) {
	const query = `
		SELECT COUNT(*) FROM messages
		WHERE room_id = $1 AND sender_id <> $2 AND read = false`

	var count int
	if err := s.db.QueryRowContext(ctx, query, roomID, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("chat: unread count: %w", err)
	}
	return count, nil
}

// RoomParticipantSummaries joins the room's participant set with the profiles
// table and returns display summaries (name, avatar) for every participant.
func (s *Store) RoomParticipantSummaries(ctx context.Context, roomID string) ([]ParticipantSummary, error) {
	const query = `
		SELECT p.user_id, COALESCE(p.name, ''), COALESCE(p.avatar, '')
		FROM profiles p
		JOIN rooms r ON p.user_id = ANY(r.participants)
		WHERE r.id = $1`

	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("chat: participant summaries: %w", err)
	}
	defer rows.Close()

	var summaries []ParticipantSummary
	for rows.Next() {
		var s ParticipantSummary
		if err := rows.Scan(&s.UserID, &s.Name, &s.Avatar); err != nil {
			return nil, fmt.Errorf("chat: scan summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanRoom.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanRoom(row rowScanner) (*Room, error) {
	var room Room
	var participants pq.StringArray
	if err := row.Scan(&room.ID, &participants, &room.Kind, &room.Category, &room.LastMessageID, &room.LastActivity); err != nil {
		return nil, err
	}
	room.Participants = participants
	return &room, nil
}
