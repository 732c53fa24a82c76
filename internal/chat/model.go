package chat

import (
	"time"

	"go-chat/internal/user"
)

// Room is the persisted shape of a chat room. ParticipantIDs is an ordered
// sequence at this layer; the comma-delimited column encoding is a detail of
// the repository.
type Room struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	LastMessage    string    `json:"last_message"`
	ParticipantIDs []string  `json:"participant_ids"`
	CreatedAt      time.Time `json:"created_at"`
}

// Conversation is one persisted message. Append-only; never mutated.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	RoomID    string    `json:"room_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// RoomResponse is the denormalized read view joining a room to its
// participant users. Users holds exactly the records referenced by
// ParticipantIDs, in the same order. Reconstructed on read, never persisted.
type RoomResponse struct {
	Room  Room        `json:"room"`
	Users []user.User `json:"users"`
}

type UpdateRoomRequest struct {
	ID          string `json:"id"`
	LastMessage string `json:"last_message"`
}
