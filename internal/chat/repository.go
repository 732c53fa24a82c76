package chat

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// participantSeparator is the storage encoding of a participant id sequence.
// It never leaks past this file: rows are split on read, joined on write.
const participantSeparator = ","

func joinParticipants(ids []string) string {
	return strings.Join(ids, participantSeparator)
}

func splitParticipants(encoded string) []string {
	if encoded == "" {
		return nil
	}
	return strings.Split(encoded, participantSeparator)
}

type RoomRepository struct {
	db *sql.DB
}

func NewRoomRepository(db *sql.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

func (r *RoomRepository) Create(ctx context.Context, name, lastMessage string, participantIDs []string) (*Room, error) {
	room := &Room{
		ID:             uuid.NewString(),
		Name:           name,
		LastMessage:    lastMessage,
		ParticipantIDs: participantIDs,
		CreatedAt:      time.Now().UTC(),
	}

	query := `INSERT INTO rooms (id, name, last_message, participant_ids, created_at)
	          VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query,
		room.ID, room.Name, room.LastMessage, joinParticipants(room.ParticipantIDs), room.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("room insert failed: %w", err)
	}
	return room, nil
}

func (r *RoomRepository) List(ctx context.Context) ([]Room, error) {
	query := "SELECT id, name, last_message, participant_ids, created_at FROM rooms"
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("room listing failed: %w", err)
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var room Room
		var encoded string
		if err := rows.Scan(&room.ID, &room.Name, &room.LastMessage, &encoded, &room.CreatedAt); err != nil {
			return nil, err
		}
		room.ParticipantIDs = splitParticipants(encoded)
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// UpdateLastMessage applies the preview update and returns the refreshed
// room, or nil when the id is unknown.
func (r *RoomRepository) UpdateLastMessage(ctx context.Context, roomID, text string) (*Room, error) {
	query := "UPDATE rooms SET last_message = $1 WHERE id = $2"
	if _, err := r.db.ExecContext(ctx, query, text, roomID); err != nil {
		return nil, fmt.Errorf("room update failed: %w", err)
	}

	room := &Room{}
	var encoded string
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, last_message, participant_ids, created_at FROM rooms WHERE id = $1", roomID).
		Scan(&room.ID, &room.Name, &room.LastMessage, &encoded, &room.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("room lookup failed: %w", err)
	}
	room.ParticipantIDs = splitParticipants(encoded)
	return room, nil
}

type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// ListByRoom returns the room's messages oldest-first. An unknown room id is
// indistinguishable from a room with no messages: both yield an empty slice,
// not an error.
func (r *ConversationRepository) ListByRoom(ctx context.Context, roomID string) ([]Conversation, error) {
	query := `SELECT id, user_id, room_id, content, created_at
	          FROM conversations WHERE room_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("conversation listing failed: %w", err)
	}
	defer rows.Close()

	var conversations []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.RoomID, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

func (r *ConversationRepository) Create(ctx context.Context, userID, roomID, content string) (*Conversation, error) {
	c := &Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		RoomID:    roomID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	query := `INSERT INTO conversations (id, user_id, room_id, content, created_at)
	          VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query, c.ID, c.UserID, c.RoomID, c.Content, c.CreatedAt); err != nil {
		return nil, fmt.Errorf("conversation insert failed: %w", err)
	}
	return c, nil
}
