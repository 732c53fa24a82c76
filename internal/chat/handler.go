package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"go-chat/internal/config"
	"go-chat/internal/httpapi"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for now (Dev mode)
	},
}

// Rooms is what the REST layer needs from the room service.
type Rooms interface {
	RoomsForUser(ctx context.Context, userID string) ([]RoomResponse, error)
	AllRooms(ctx context.Context) ([]RoomResponse, error)
	ProvisionRoomsFor(ctx context.Context, userID string) ([]RoomResponse, error)
	RecordLastMessage(ctx context.Context, roomID, text string) (*Room, error)
	ConversationsByRoom(ctx context.Context, roomID string) ([]Conversation, error)
}

type Handler struct {
	registry *Registry
	rooms    Rooms
	cfg      config.Config
	log      zerolog.Logger
}

func NewHandler(registry *Registry, rooms Rooms, cfg config.Config, log zerolog.Logger) *Handler {
	return &Handler{
		registry: registry,
		rooms:    rooms,
		cfg:      cfg,
		log:      log,
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/ws", h.ServeWs)
	r.Get("/rooms", h.GetRooms)
	r.Get("/rooms/user/{uid}", h.GetRoomsByUser)
	r.Get("/rooms/prepare/{user_id}", h.PrepareRooms)
	r.Put("/rooms/update", h.UpdateRoom)
	r.Get("/conversations/{room_id}", h.GetConversations)
}

// ServeWs upgrades the connection and hands it to the registry as a new
// session.
func (h *Handler) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	session := NewSession(h.registry, conn, h.cfg, h.log)
	h.registry.Connect(session)

	go session.writePump()
	go session.readPump()
}

func (h *Handler) GetRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.rooms.AllRooms(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("listing rooms")
		httpapi.Internal(w)
		return
	}

	if len(rooms) == 0 {
		httpapi.NotFound(w, "No rooms available at the moment.")
		return
	}
	httpapi.JSON(w, http.StatusOK, rooms)
}

func (h *Handler) GetRoomsByUser(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")

	rooms, err := h.rooms.RoomsForUser(r.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", uid).Msg("listing rooms for user")
		httpapi.Internal(w)
		return
	}

	if len(rooms) == 0 {
		httpapi.NotFound(w, "No rooms available at the moment.")
		return
	}
	httpapi.JSON(w, http.StatusOK, rooms)
}

func (h *Handler) PrepareRooms(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "user_id")

	// Frontends sometimes send the literal string, keep rejecting it.
	if uid == "undefined" {
		httpapi.Error(w, http.StatusBadRequest, "No user_id available at the moment.")
		return
	}

	rooms, err := h.rooms.ProvisionRoomsFor(r.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", uid).Msg("provisioning rooms")
		httpapi.Internal(w)
		return
	}

	if len(rooms) == 0 {
		httpapi.NotFound(w, "No room available at the moment.")
		return
	}
	httpapi.JSON(w, http.StatusOK, rooms)
}

func (h *Handler) UpdateRoom(w http.ResponseWriter, r *http.Request) {
	var req UpdateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpapi.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	room, err := h.rooms.RecordLastMessage(r.Context(), req.ID, req.LastMessage)
	if err != nil {
		h.log.Error().Err(err).Str("room_id", req.ID).Msg("updating room")
		httpapi.Internal(w)
		return
	}

	if room == nil {
		httpapi.NotFound(w, fmt.Sprintf("No room with room_id: %s", req.ID))
		return
	}
	httpapi.JSON(w, http.StatusOK, room)
}

func (h *Handler) GetConversations(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room_id")

	conversations, err := h.rooms.ConversationsByRoom(r.Context(), roomID)
	if err != nil {
		h.log.Error().Err(err).Str("room_id", roomID).Msg("listing conversations")
		httpapi.Internal(w)
		return
	}
	httpapi.JSON(w, http.StatusOK, conversations)
}
